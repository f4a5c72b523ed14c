package postgres

import (
	"context"
	"fmt"
	"time"

	"recruitment-portal/internal/domain"

	"github.com/uptrace/bun"
)

type noticeRow struct {
	bun.BaseModel `bun:"table:notices"`

	ID        string    `bun:"id,pk"`
	Title     string    `bun:"title,notnull"`
	Content   string    `bun:"content,notnull"`
	Date      time.Time `bun:"date,notnull"`
	Important bool      `bun:"important,notnull"`
}

type eventRow struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description,notnull"`
	StartsAt    time.Time `bun:"starts_at,notnull"`
}

// Announcements stores notices and events through bun.
type Announcements struct {
	db *bun.DB
}

func NewAnnouncements(db *bun.DB) *Announcements {
	return &Announcements{db: db}
}

func (a *Announcements) AddNotice(ctx context.Context, n domain.Notice) error {
	row := noticeRow{ID: n.ID, Title: n.Title, Content: n.Content, Date: n.Date, Important: n.Important}
	if _, err := a.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return nil
}

func (a *Announcements) DeleteNotice(ctx context.Context, id string) error {
	res, err := a.db.NewDelete().Model((*noticeRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNoticeNotFound
	}
	return nil
}

func (a *Announcements) ListNotices(ctx context.Context) ([]domain.Notice, error) {
	var rows []noticeRow
	if err := a.db.NewSelect().Model(&rows).OrderExpr("important DESC, date DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	out := make([]domain.Notice, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Notice{ID: r.ID, Title: r.Title, Content: r.Content, Date: r.Date, Important: r.Important})
	}
	return out, nil
}

func (a *Announcements) AddEvent(ctx context.Context, e domain.Event) error {
	row := eventRow{ID: e.ID, Title: e.Title, Description: e.Description, StartsAt: e.StartsAt}
	if _, err := a.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (a *Announcements) DeleteEvent(ctx context.Context, id string) error {
	res, err := a.db.NewDelete().Model((*eventRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (a *Announcements) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var rows []eventRow
	if err := a.db.NewSelect().Model(&rows).Order("starts_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Event{ID: r.ID, Title: r.Title, Description: r.Description, StartsAt: r.StartsAt})
	}
	return out, nil
}
