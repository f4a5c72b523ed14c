package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/export"
	"recruitment-portal/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Authorizer checks admin rights against a configured email allowlist.
type Authorizer struct {
	emails map[string]struct{}
}

func NewAuthorizer(emails []string) *Authorizer {
	a := &Authorizer{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			a.emails[e] = struct{}{}
		}
	}
	return a
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// IsAdmin reports whether email is on the allowlist. A nil Authorizer has no admins.
func (a *Authorizer) IsAdmin(email string) bool {
	if a == nil {
		return false
	}
	_, ok := a.emails[normalizeEmail(email)]
	return ok
}

// Authorize returns an AccessDenied error unless email is an admin.
func (a *Authorizer) Authorize(email string) error {
	if email == "" {
		return domain.AuthError("authorize", domain.ErrUnauthenticated)
	}
	if !a.IsAdmin(email) {
		return domain.AccessDenied("authorize", domain.ErrNotAdmin)
	}
	return nil
}

// DefaultQuestionnaires are seeded into empty domains.
var DefaultQuestionnaires = map[domain.Domain][]string{
	domain.Technical: {
		"What programming languages are you proficient in?",
		"Describe a technical project you've worked on.",
		"What is your experience with web development?",
	},
	domain.Design: {
		"What design tools are you familiar with?",
		"Share your design portfolio or previous work.",
		"What is your design process?",
	},
	domain.Editorial: {
		"What type of content do you enjoy writing?",
		"Share a writing sample or previous work.",
		"How do you approach content research?",
	},
	domain.Management: {
		"What is your leadership experience?",
		"How do you handle team conflicts?",
		"Describe your project management approach.",
	},
}

// NewQuestion is the admin input for a question.
type NewQuestion struct {
	Text    string
	Type    string
	Options []string
}

// NewNotice is the admin input for a notice.
type NewNotice struct {
	Title     string
	Content   string
	Date      time.Time
	Important bool
}

// NewEvent is the admin input for an event.
type NewEvent struct {
	Title       string
	Description string
	StartsAt    time.Time
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	// Domain, when set, keeps only users who selected it.
	Domain domain.Domain
}

// UserRecord is a user together with the responses recorded for them.
type UserRecord struct {
	User      domain.UserProfile                   `json:"user"`
	Responses map[domain.Domain]domain.QuizResponse `json:"responses"`
	// InProgress lists domains with a running attempt.
	InProgress []domain.Domain `json:"inProgress"`
}

// AdminDeps groups AdminService collaborators.
type AdminDeps struct {
	Authorizer     *Authorizer
	Users          UserRepository
	Questionnaires QuestionnaireRepository
	Cache          QuestionnaireCache
	Responses      ResponseRepository
	Timers         TimerRepository
	TimerCache     TimerCache
	Announcements  AnnouncementRepository
	// Live is optional; without it no attempt is reported as in progress.
	Live LiveAttempts
}

// AdminService implements the admin panel operations. Every method first
// checks the actor against the allowlist.
type AdminService struct {
	auth           *Authorizer
	users          UserRepository
	questionnaires QuestionnaireRepository
	cache          QuestionnaireCache
	responses      ResponseRepository
	timers         TimerRepository
	timerCache     TimerCache
	announcements  AnnouncementRepository
	live           LiveAttempts
	now            func() time.Time
	newID          func() string
	log            *zap.Logger
}

func NewAdminService(deps AdminDeps, log *zap.Logger) *AdminService {
	return &AdminService{
		auth:           deps.Authorizer,
		users:          deps.Users,
		questionnaires: deps.Questionnaires,
		cache:          deps.Cache,
		responses:      deps.Responses,
		timers:         deps.Timers,
		timerCache:     deps.TimerCache,
		announcements:  deps.Announcements,
		live:           deps.Live,
		now:            time.Now,
		newID:          func() string { return uuid.NewString() },
		log:            logging.OrNop(log),
	}
}

// WithClock replaces the service's time source.
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

// ListUsers returns users with their responses, ordered by uid.
func (s *AdminService) ListUsers(ctx context.Context, actor string, filter UserFilter) ([]UserRecord, error) {
	if err := s.auth.Authorize(actor); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, domain.DataUnavailable("list users", err)
	}
	responses, err := s.responses.ListResponses(ctx)
	if err != nil {
		return nil, domain.DataUnavailable("list responses", err)
	}

	byUser := make(map[string]map[domain.Domain]domain.QuizResponse)
	for _, r := range responses {
		if byUser[r.UserID] == nil {
			byUser[r.UserID] = make(map[domain.Domain]domain.QuizResponse)
		}
		byUser[r.UserID][r.Domain] = r
	}
	running := s.runningAttempts(ctx)

	out := make([]UserRecord, 0, len(users))
	for _, u := range users {
		if filter.Domain != "" && !u.HasSelected(filter.Domain) {
			continue
		}
		rec := UserRecord{User: u, Responses: byUser[u.UID], InProgress: running[u.UID]}
		if rec.Responses == nil {
			rec.Responses = map[domain.Domain]domain.QuizResponse{}
		}
		if rec.InProgress == nil {
			rec.InProgress = []domain.Domain{}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.UID < out[j].User.UID })
	return out, nil
}

// runningAttempts groups live attempt domains by user. A failing registry
// only hides the in-progress markers.
func (s *AdminService) runningAttempts(ctx context.Context) map[string][]domain.Domain {
	if s.live == nil {
		return nil
	}
	keys, err := s.live.LiveAttempts(ctx)
	if err != nil {
		s.log.Warn("live attempts unavailable", zap.Error(err))
		return nil
	}
	out := make(map[string][]domain.Domain)
	for _, k := range keys {
		out[k.UserID] = append(out[k.UserID], k.Domain)
	}
	for uid := range out {
		sort.Slice(out[uid], func(i, j int) bool { return out[uid][i] < out[uid][j] })
	}
	return out
}

// ListQuestionnaires returns one questionnaire per domain; missing ones are empty.
func (s *AdminService) ListQuestionnaires(ctx context.Context, actor string) ([]domain.Questionnaire, error) {
	if err := s.auth.Authorize(actor); err != nil {
		return nil, err
	}
	stored, err := s.questionnaires.ListQuestionnaires(ctx)
	if err != nil {
		return nil, domain.DataUnavailable("list questionnaires", err)
	}
	byDomain := make(map[domain.Domain]domain.Questionnaire, len(stored))
	for _, q := range stored {
		byDomain[q.Domain] = q
	}
	out := make([]domain.Questionnaire, 0, len(domain.AllDomains))
	for _, d := range domain.AllDomains {
		q, ok := byDomain[d]
		if !ok {
			q = domain.Questionnaire{Domain: d}
		}
		if q.Questions == nil {
			q.Questions = []domain.Question{}
		}
		out = append(out, q)
	}
	return out, nil
}

// ValidateQuestion normalizes admin input. Choice questions keep only
// non-blank options and need at least two; text questions carry none.
func ValidateQuestion(in NewQuestion) (domain.Question, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.Question{}, domain.ErrInvalidQuestion
	}
	qt, ok := domain.ParseQuestionType(in.Type)
	if !ok {
		return domain.Question{}, domain.ErrInvalidQuestion
	}
	q := domain.Question{Text: text, Type: qt}
	if !qt.IsChoice() {
		return q, nil
	}
	for _, opt := range in.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			q.Options = append(q.Options, opt)
		}
	}
	if len(q.Options) < 2 {
		return domain.Question{}, domain.ErrNotEnoughOptions
	}
	return q, nil
}

// AddQuestion appends a question to d's questionnaire.
func (s *AdminService) AddQuestion(ctx context.Context, actor string, d domain.Domain, in NewQuestion) (domain.Questionnaire, error) {
	const op = "add question"
	if err := s.auth.Authorize(actor); err != nil {
		return domain.Questionnaire{}, err
	}
	question, err := ValidateQuestion(in)
	if err != nil {
		return domain.Questionnaire{}, domain.Invalid(op, err)
	}
	q, err := s.loadQuestionnaire(ctx, op, d)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	q.Questions = append(q.Questions, question)
	if err := s.saveQuestionnaire(ctx, op, q); err != nil {
		return domain.Questionnaire{}, err
	}
	s.log.Info("question added", zap.String("actor", actor), zap.String("domain", string(d)), zap.Int("count", len(q.Questions)))
	return q, nil
}

// DeleteQuestion removes the question at a zero-based index.
func (s *AdminService) DeleteQuestion(ctx context.Context, actor string, d domain.Domain, index int) (domain.Questionnaire, error) {
	const op = "delete question"
	if err := s.auth.Authorize(actor); err != nil {
		return domain.Questionnaire{}, err
	}
	q, err := s.loadQuestionnaire(ctx, op, d)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	if index < 0 || index >= len(q.Questions) {
		return domain.Questionnaire{}, domain.Invalid(op, domain.ErrQuestionIndex)
	}
	q.Questions = append(q.Questions[:index:index], q.Questions[index+1:]...)
	if err := s.saveQuestionnaire(ctx, op, q); err != nil {
		return domain.Questionnaire{}, err
	}
	s.log.Info("question deleted", zap.String("actor", actor), zap.String("domain", string(d)), zap.Int("index", index))
	return q, nil
}

// SeedDefaultQuestionnaires fills every domain without questions with the
// built-in defaults and returns the domains it seeded.
func (s *AdminService) SeedDefaultQuestionnaires(ctx context.Context, actor string) ([]domain.Domain, error) {
	const op = "seed questionnaires"
	if err := s.auth.Authorize(actor); err != nil {
		return nil, err
	}
	var seeded []domain.Domain
	for _, d := range domain.AllDomains {
		q, err := s.loadQuestionnaire(ctx, op, d)
		if err != nil {
			return seeded, err
		}
		if len(q.Questions) > 0 {
			continue
		}
		for _, text := range DefaultQuestionnaires[d] {
			q.Questions = append(q.Questions, domain.Question{Text: text, Type: domain.QuestionText})
		}
		if err := s.saveQuestionnaire(ctx, op, q); err != nil {
			return seeded, err
		}
		seeded = append(seeded, d)
	}
	if len(seeded) > 0 {
		s.log.Info("default questionnaires seeded", zap.String("actor", actor), zap.Any("domains", seeded))
	}
	return seeded, nil
}

func (s *AdminService) loadQuestionnaire(ctx context.Context, op string, d domain.Domain) (domain.Questionnaire, error) {
	if _, ok := domain.ParseDomain(string(d)); !ok {
		return domain.Questionnaire{}, domain.Invalid(op, domain.ErrUnknownDomain)
	}
	q, err := s.questionnaires.GetQuestionnaire(ctx, d)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrQuestionnaireNotFound):
		q = domain.Questionnaire{Domain: d}
	default:
		return domain.Questionnaire{}, domain.DataUnavailable(op, err)
	}
	q.Domain = d
	return q, nil
}

func (s *AdminService) saveQuestionnaire(ctx context.Context, op string, q domain.Questionnaire) error {
	if err := s.questionnaires.SaveQuestionnaire(ctx, q); err != nil {
		return domain.WriteFailure(op, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, q.Domain); err != nil {
			s.log.Warn("questionnaire cache invalidation failed", zap.String("domain", string(q.Domain)), zap.Error(err))
		}
	}
	return nil
}

// SetTimer stores a future deadline for kind in both the private and public scopes.
func (s *AdminService) SetTimer(ctx context.Context, actor string, kind domain.TimerKind, endTime time.Time) (domain.TimerConfig, error) {
	const op = "set timer"
	if err := s.auth.Authorize(actor); err != nil {
		return domain.TimerConfig{}, err
	}
	if _, ok := domain.ParseTimerKind(string(kind)); !ok {
		return domain.TimerConfig{}, domain.Invalid(op, domain.ErrInvalidTimerKind)
	}
	now := s.now()
	if endTime.IsZero() || !endTime.After(now) {
		return domain.TimerConfig{}, domain.Invalid(op, domain.ErrTimerInPast)
	}

	cfg := domain.TimerConfig{
		Kind:      kind,
		EndTime:   endTime.UTC(),
		UpdatedBy: actor,
		UpdatedAt: now.UTC(),
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, scope := range []TimerScope{ScopePrivate, ScopePublic} {
		scope := scope
		g.Go(func() error { return s.timers.SaveTimer(gctx, scope, cfg) })
	}
	if err := g.Wait(); err != nil {
		return domain.TimerConfig{}, domain.WriteFailure(op, err)
	}
	if s.timerCache != nil {
		if err := s.timerCache.Remember(ctx, kind, cfg.EndTime); err != nil {
			s.log.Warn("timer cache update failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	s.log.Info("timer updated", zap.String("actor", actor), zap.String("kind", string(kind)), zap.Time("endTime", cfg.EndTime))
	return cfg, nil
}

// Timers returns the configured private-scope deadlines; unset kinds are omitted.
func (s *AdminService) Timers(ctx context.Context, actor string) ([]domain.TimerConfig, error) {
	if err := s.auth.Authorize(actor); err != nil {
		return nil, err
	}
	out := make([]domain.TimerConfig, 0, len(domain.TimerKinds))
	for _, kind := range domain.TimerKinds {
		cfg, err := s.timers.GetTimer(ctx, ScopePrivate, kind)
		if errors.Is(err, domain.ErrTimerNotFound) {
			continue
		}
		if err != nil {
			return nil, domain.DataUnavailable("list timers", err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// AddNotice publishes a notice. Title and content are required; a zero date means today.
func (s *AdminService) AddNotice(ctx context.Context, actor string, in NewNotice) (domain.Notice, error) {
	const op = "add notice"
	if err := s.auth.Authorize(actor); err != nil {
		return domain.Notice{}, err
	}
	n := domain.Notice{
		ID:        s.newID(),
		Title:     strings.TrimSpace(in.Title),
		Content:   strings.TrimSpace(in.Content),
		Date:      in.Date,
		Important: in.Important,
	}
	if n.Title == "" || n.Content == "" {
		return domain.Notice{}, domain.Invalid(op, domain.ErrMissingFields)
	}
	if n.Date.IsZero() {
		n.Date = s.now().UTC()
	}
	if err := s.announcements.AddNotice(ctx, n); err != nil {
		return domain.Notice{}, domain.WriteFailure(op, err)
	}
	return n, nil
}

// DeleteNotice removes a notice by id.
func (s *AdminService) DeleteNotice(ctx context.Context, actor, id string) error {
	if err := s.auth.Authorize(actor); err != nil {
		return err
	}
	if err := s.announcements.DeleteNotice(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNoticeNotFound) {
			return domain.Invalid("delete notice", err)
		}
		return domain.WriteFailure("delete notice", err)
	}
	return nil
}

// Notices lists notices, important first.
func (s *AdminService) Notices(ctx context.Context, actor string) ([]domain.Notice, error) {
	if err := s.auth.Authorize(actor); err != nil {
		return nil, err
	}
	notices, err := s.announcements.ListNotices(ctx)
	if err != nil {
		return nil, domain.DataUnavailable("list notices", err)
	}
	return SortNotices(notices), nil
}

// AddEvent schedules an event. Title, description and start time are required.
func (s *AdminService) AddEvent(ctx context.Context, actor string, in NewEvent) (domain.Event, error) {
	const op = "add event"
	if err := s.auth.Authorize(actor); err != nil {
		return domain.Event{}, err
	}
	e := domain.Event{
		ID:          s.newID(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		StartsAt:    in.StartsAt.UTC(),
	}
	if e.Title == "" || e.Description == "" || in.StartsAt.IsZero() {
		return domain.Event{}, domain.Invalid(op, domain.ErrMissingFields)
	}
	if err := s.announcements.AddEvent(ctx, e); err != nil {
		return domain.Event{}, domain.WriteFailure(op, err)
	}
	return e, nil
}

// DeleteEvent removes an event by id.
func (s *AdminService) DeleteEvent(ctx context.Context, actor, id string) error {
	if err := s.auth.Authorize(actor); err != nil {
		return err
	}
	if err := s.announcements.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			return domain.Invalid("delete event", err)
		}
		return domain.WriteFailure("delete event", err)
	}
	return nil
}

// Events lists every event, soonest first.
func (s *AdminService) Events(ctx context.Context, actor string) ([]domain.Event, error) {
	if err := s.auth.Authorize(actor); err != nil {
		return nil, err
	}
	events, err := s.announcements.ListEvents(ctx)
	if err != nil {
		return nil, domain.DataUnavailable("list events", err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].StartsAt.Before(events[j].StartsAt) })
	return events, nil
}

// ExportFilter narrows an export. The zero value exports everyone.
type ExportFilter struct {
	UserID string
}

// ExportTable flattens users and their responses into rows. With a user id set
// only that user's row is built, and a user without responses is rejected.
func (s *AdminService) ExportTable(ctx context.Context, actor string, filter ExportFilter) (export.Table, error) {
	const op = "export"
	if err := s.auth.Authorize(actor); err != nil {
		return export.Table{}, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return export.Table{}, domain.DataUnavailable(op, err)
	}
	responses, err := s.responses.ListResponses(ctx)
	if err != nil {
		return export.Table{}, domain.DataUnavailable(op, err)
	}
	if filter.UserID == "" {
		return export.BuildTable(users, responses), nil
	}

	var one []domain.UserProfile
	for _, u := range users {
		if u.UID == filter.UserID {
			one = append(one, u)
			break
		}
	}
	if len(one) == 0 {
		return export.Table{}, domain.Invalid(op, domain.ErrUserNotFound)
	}
	var theirs []domain.QuizResponse
	for _, r := range responses {
		if r.UserID == filter.UserID {
			theirs = append(theirs, r)
		}
	}
	if len(theirs) == 0 {
		return export.Table{}, domain.Invalid(op, domain.ErrNoResponses)
	}
	return export.BuildTable(one, theirs), nil
}

// Export writes the response table to w in format f.
func (s *AdminService) Export(ctx context.Context, actor string, f export.Format, filter ExportFilter, w io.Writer) error {
	table, err := s.ExportTable(ctx, actor, filter)
	if err != nil {
		return err
	}
	if err := export.Write(w, f, table); err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			return domain.Invalid("export", err)
		}
		return err
	}
	s.log.Info("responses exported",
		zap.String("actor", actor),
		zap.String("format", string(f)),
		zap.String("uid", filter.UserID),
		zap.Int("rows", len(table.Rows)),
	)
	return nil
}

// Section loads the data behind one admin panel view.
func (s *AdminService) Section(ctx context.Context, actor string, section domain.Section) (any, error) {
	switch section {
	case domain.SectionUsers:
		return s.ListUsers(ctx, actor, UserFilter{})
	case domain.SectionQuestions:
		return s.ListQuestionnaires(ctx, actor)
	case domain.SectionTimers:
		return s.Timers(ctx, actor)
	case domain.SectionNotices:
		return s.Notices(ctx, actor)
	case domain.SectionEvents:
		return s.Events(ctx, actor)
	}
	return nil, domain.Invalid("admin section", domain.ErrInvalidSectionName)
}
