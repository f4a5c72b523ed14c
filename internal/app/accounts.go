package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"recruitment-portal/internal/countdown"
	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/logging"

	"go.uber.org/zap"
)

// EmailPolicy restricts which accounts may sign in.
type EmailPolicy struct {
	// Suffix, when set, must end every accepted email (e.g. "@vitstudent.ac.in").
	Suffix string
}

// Allows reports whether email satisfies the policy.
func (p EmailPolicy) Allows(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	if p.Suffix == "" {
		return true
	}
	return strings.HasSuffix(email, strings.ToLower(p.Suffix))
}

// SignInResult is returned after a successful sign-in.
type SignInResult struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      domain.UserProfile `json:"user"`
	IsAdmin   bool               `json:"isAdmin"`
	// NextStep is where the client goes after sign-in.
	NextStep domain.Redirect `json:"nextStep"`
}

// Dashboard is the signed-in landing view.
type Dashboard struct {
	User       domain.UserProfile   `json:"user"`
	IsAdmin    bool                 `json:"isAdmin"`
	Notices    []domain.Notice      `json:"notices"`
	Events     []domain.Event       `json:"events"`
	Countdowns []countdown.Snapshot `json:"countdowns"`
}

// AccountService handles sign-in, domain selection and the dashboard.
type AccountService struct {
	users         UserRepository
	announcements AnnouncementRepository
	verifier      IdentityVerifier
	sessions      SessionIssuer
	policy        EmailPolicy
	admins        *Authorizer
	countdowns    *CountdownService
	now           func() time.Time
	log           *zap.Logger
}

// AccountDeps groups AccountService collaborators.
type AccountDeps struct {
	Users         UserRepository
	Announcements AnnouncementRepository
	Verifier      IdentityVerifier
	Sessions      SessionIssuer
	Policy        EmailPolicy
	Admins        *Authorizer
	Countdowns    *CountdownService
}

func NewAccountService(deps AccountDeps, log *zap.Logger) *AccountService {
	return &AccountService{
		users:         deps.Users,
		announcements: deps.Announcements,
		verifier:      deps.Verifier,
		sessions:      deps.Sessions,
		policy:        deps.Policy,
		admins:        deps.Admins,
		countdowns:    deps.Countdowns,
		now:           time.Now,
		log:           logging.OrNop(log),
	}
}

// WithClock replaces the service's time source.
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// SignIn verifies an identity-provider credential, creates or refreshes the
// profile and issues a session token.
func (s *AccountService) SignIn(ctx context.Context, credential string) (SignInResult, error) {
	if strings.TrimSpace(credential) == "" {
		return SignInResult{}, domain.AuthError("sign in", domain.ErrInvalidCredential)
	}
	ident, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		s.log.Info("credential rejected", zap.Error(err))
		return SignInResult{}, domain.AuthError("sign in", err)
	}
	if ident.Subject == "" {
		return SignInResult{}, domain.AuthError("sign in", domain.ErrInvalidCredential)
	}
	if !s.policy.Allows(ident.Email) {
		s.log.Info("email outside allowed domain", zap.String("email", ident.Email))
		return SignInResult{}, domain.AuthError("sign in", domain.ErrEmailNotAllowed)
	}

	now := s.now().UTC()
	user, err := s.users.GetUser(ctx, ident.Subject)
	switch {
	case err == nil:
		user.LastLogin = now
		user.UpdatedAt = now
		if user.Email == "" {
			user.Email = ident.Email
		}
		if user.DisplayName == "" {
			user.DisplayName = ident.Name
		}
		if user.PhotoURL == "" {
			user.PhotoURL = ident.Picture
		}
	case errors.Is(err, domain.ErrUserNotFound):
		user = domain.UserProfile{
			UID:         ident.Subject,
			Email:       ident.Email,
			DisplayName: ident.Name,
			PhotoURL:    ident.Picture,
			Attempted:   map[domain.Domain]bool{},
			LastLogin:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.log.Info("profile created", zap.String("uid", user.UID))
	default:
		return SignInResult{}, domain.DataUnavailable("sign in", err)
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return SignInResult{}, domain.WriteFailure("sign in", err)
	}

	token, expiresAt, err := s.sessions.Issue(user.UID, user.Email)
	if err != nil {
		return SignInResult{}, domain.AuthError("sign in", err)
	}

	next := domain.RedirectDashboard
	if len(user.SelectedDomains) == 0 {
		next = domain.RedirectDomainSelection
	}
	return SignInResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
		IsAdmin:   s.admins.IsAdmin(user.Email),
		NextStep:  next,
	}, nil
}

// Profile returns the user's profile.
func (s *AccountService) Profile(ctx context.Context, uid string) (domain.UserProfile, error) {
	if uid == "" {
		return domain.UserProfile{}, domain.AuthError("profile", domain.ErrUnauthenticated)
	}
	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.UserProfile{}, domain.AccessDenied("profile", err)
		}
		return domain.UserProfile{}, domain.DataUnavailable("profile", err)
	}
	return user, nil
}

// SelectDomains replaces the user's domain selection. Selections are locked
// once any questionnaire has been recorded.
func (s *AccountService) SelectDomains(ctx context.Context, uid string, raw []string) (domain.UserProfile, error) {
	const op = "select domains"
	selected, err := parseSelection(raw)
	if err != nil {
		return domain.UserProfile{}, domain.Invalid(op, err)
	}

	user, err := s.Profile(ctx, uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if user.AnyAttempted() {
		return domain.UserProfile{}, domain.AccessDenied(op, domain.ErrSelectionLocked)
	}

	attempted := make(map[domain.Domain]bool, len(selected))
	for _, d := range selected {
		attempted[d] = user.Attempted[d]
	}
	user.SelectedDomains = selected
	user.Attempted = attempted
	user.UpdatedAt = s.now().UTC()

	if err := s.users.SaveUser(ctx, user); err != nil {
		return domain.UserProfile{}, domain.WriteFailure(op, err)
	}
	s.log.Info("domains selected", zap.String("uid", uid), zap.Any("domains", selected))
	return user, nil
}

func parseSelection(raw []string) ([]domain.Domain, error) {
	seen := make(map[domain.Domain]bool, len(raw))
	out := make([]domain.Domain, 0, len(raw))
	for _, r := range raw {
		d, ok := domain.ParseDomain(r)
		if !ok {
			return nil, domain.ErrUnknownDomain
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoDomainSelected
	}
	if len(out) > domain.MaxSelectedDomains {
		return nil, domain.ErrTooManyDomains
	}
	return out, nil
}

// Dashboard assembles the landing view. Announcement read failures leave the
// lists empty rather than failing the page.
func (s *AccountService) Dashboard(ctx context.Context, uid string) (Dashboard, error) {
	user, err := s.Profile(ctx, uid)
	if err != nil {
		return Dashboard{}, err
	}
	now := s.now()
	dash := Dashboard{
		User:    user,
		IsAdmin: s.admins.IsAdmin(user.Email),
		Notices: []domain.Notice{},
		Events:  []domain.Event{},
	}

	if s.announcements != nil {
		if notices, err := s.announcements.ListNotices(ctx); err != nil {
			s.log.Warn("load notices failed", zap.Error(err))
		} else {
			dash.Notices = SortNotices(notices)
		}
		if events, err := s.announcements.ListEvents(ctx); err != nil {
			s.log.Warn("load events failed", zap.Error(err))
		} else {
			dash.Events = UpcomingEvents(events, now)
		}
	}

	if s.countdowns != nil {
		for _, kind := range domain.TimerKinds {
			dash.Countdowns = append(dash.Countdowns, s.countdowns.Snapshot(ctx, kind))
		}
	}
	return dash, nil
}

// SortNotices orders important notices first, then newest first.
func SortNotices(notices []domain.Notice) []domain.Notice {
	out := append([]domain.Notice(nil), notices...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Important != out[j].Important {
			return out[i].Important
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// UpcomingEvents keeps events starting after now, soonest first.
func UpcomingEvents(events []domain.Event, now time.Time) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if e.StartsAt.After(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}
