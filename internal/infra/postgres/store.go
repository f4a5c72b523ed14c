package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store persists users, questionnaires, responses and timers in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `uid, email, display_name, photo_url, selected_domains, attempted, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (domain.UserProfile, error) {
	var (
		u         domain.UserProfile
		selected  []byte
		attempted []byte
		lastLogin *time.Time
	)
	if err := row.Scan(&u.UID, &u.Email, &u.DisplayName, &u.PhotoURL, &selected, &attempted, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.UserProfile{}, err
	}
	if err := json.Unmarshal(selected, &u.SelectedDomains); err != nil {
		return domain.UserProfile{}, fmt.Errorf("unmarshal selected domains: %w", err)
	}
	if err := json.Unmarshal(attempted, &u.Attempted); err != nil {
		return domain.UserProfile{}, fmt.Errorf("unmarshal attempted: %w", err)
	}
	if lastLogin != nil {
		u.LastLogin = *lastLogin
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (domain.UserProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uid=$1`, uid)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// SaveUser upserts the profile. Stored attempted flags survive the write: keys
// missing from the incoming map are kept and a stored true is never cleared.
func (s *Store) SaveUser(ctx context.Context, user domain.UserProfile) error {
	selected, err := json.Marshal(orEmptyDomains(user.SelectedDomains))
	if err != nil {
		return err
	}
	attempted, err := json.Marshal(orEmptyAttempted(user.Attempted))
	if err != nil {
		return err
	}
	var lastLogin *time.Time
	if !user.LastLogin.IsZero() {
		lastLogin = &user.LastLogin
	}
	created := user.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := user.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)
		ON CONFLICT (uid) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url,
			selected_domains = EXCLUDED.selected_domains,
			attempted = users.attempted || (
				SELECT COALESCE(jsonb_object_agg(
					key, to_jsonb(value = 'true'::jsonb OR COALESCE((users.attempted->>key)::boolean, false))
				), '{}'::jsonb)
				FROM jsonb_each(EXCLUDED.attempted)
			),
			last_login = EXCLUDED.last_login,
			updated_at = EXCLUDED.updated_at`,
		user.UID, user.Email, user.DisplayName, user.PhotoURL,
		string(selected), string(attempted), lastLogin, created, updated,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) GetQuestionnaire(ctx context.Context, d domain.Domain) (domain.Questionnaire, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM questionnaires WHERE domain=$1`, string(d)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Questionnaire{}, domain.ErrQuestionnaireNotFound
	}
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load questionnaire: %w", err)
	}
	var q domain.Questionnaire
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("unmarshal questionnaire: %w", err)
	}
	q.Domain = d
	return q, nil
}

func (s *Store) SaveQuestionnaire(ctx context.Context, q domain.Questionnaire) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO questionnaires (domain, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (domain) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		string(q.Domain), string(data),
	)
	if err != nil {
		return fmt.Errorf("save questionnaire: %w", err)
	}
	return nil
}

func (s *Store) ListQuestionnaires(ctx context.Context) ([]domain.Questionnaire, error) {
	rows, err := s.pool.Query(ctx, `SELECT domain, data FROM questionnaires ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("list questionnaires: %w", err)
	}
	defer rows.Close()

	var out []domain.Questionnaire
	for rows.Next() {
		var (
			name string
			raw  []byte
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var q domain.Questionnaire
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal questionnaire %s: %w", name, err)
		}
		q.Domain = domain.Domain(name)
		out = append(out, q)
	}
	return out, rows.Err()
}

// RecordSubmission flips the attempted flag with a guarded UPDATE and inserts
// the response in the same transaction.
func (s *Store) RecordSubmission(ctx context.Context, resp domain.QuizResponse) error {
	answers, err := json.Marshal(resp.Responses)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin submission: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET attempted = attempted || jsonb_build_object($2::text, true), updated_at = $3
		WHERE uid = $1 AND NOT COALESCE((attempted->>$2::text)::boolean, false)`,
		resp.UserID, string(resp.Domain), resp.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("mark attempted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE uid=$1)`, resp.UserID).Scan(&exists); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return domain.ErrUserNotFound
		}
		return domain.ErrAlreadyAttempted
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO responses (user_id, domain, responses, submitted_at, time_expired)
		VALUES ($1, $2, $3::jsonb, $4, $5)`,
		resp.UserID, string(resp.Domain), string(answers), resp.Timestamp, resp.TimeExpired,
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

func (s *Store) ListResponses(ctx context.Context) ([]domain.QuizResponse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, domain, responses, submitted_at, time_expired
		FROM responses ORDER BY user_id, domain`)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizResponse
	for rows.Next() {
		var (
			r    domain.QuizResponse
			name string
			raw  []byte
		)
		if err := rows.Scan(&r.UserID, &name, &raw, &r.Timestamp, &r.TimeExpired); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &r.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
		r.Domain = domain.Domain(name)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetTimer(ctx context.Context, scope app.TimerScope, kind domain.TimerKind) (domain.TimerConfig, error) {
	cfg := domain.TimerConfig{Kind: kind}
	err := s.pool.QueryRow(ctx,
		`SELECT end_time, updated_by, updated_at FROM timers WHERE scope=$1 AND kind=$2`,
		string(scope), string(kind),
	).Scan(&cfg.EndTime, &cfg.UpdatedBy, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TimerConfig{}, domain.ErrTimerNotFound
	}
	if err != nil {
		return domain.TimerConfig{}, fmt.Errorf("load timer %s: %w", scope.Path(kind), err)
	}
	return cfg, nil
}

func (s *Store) SaveTimer(ctx context.Context, scope app.TimerScope, cfg domain.TimerConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO timers (scope, kind, end_time, updated_by, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, kind) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		string(scope), string(cfg.Kind), cfg.EndTime, cfg.UpdatedBy, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save timer %s: %w", scope.Path(cfg.Kind), err)
	}
	return nil
}

func orEmptyDomains(ds []domain.Domain) []domain.Domain {
	if ds == nil {
		return []domain.Domain{}
	}
	return ds
}

func orEmptyAttempted(m map[domain.Domain]bool) map[domain.Domain]bool {
	if m == nil {
		return map[domain.Domain]bool{}
	}
	return m
}
