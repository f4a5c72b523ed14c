package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"
)

type stubVerifier struct {
	ident app.Identity
	err   error
}

func (v stubVerifier) Verify(context.Context, string) (app.Identity, error) {
	return v.ident, v.err
}

type stubIssuer struct{}

func (stubIssuer) Issue(uid, _ string) (string, time.Time, error) {
	return "token-" + uid, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func newAccounts(f *fixture, verifier app.IdentityVerifier, now time.Time) *app.AccountService {
	svc := app.NewAccountService(app.AccountDeps{
		Users:         f.store,
		Announcements: f.store,
		Verifier:      verifier,
		Sessions:      stubIssuer{},
		Policy:        app.EmailPolicy{Suffix: "@vitstudent.ac.in"},
		Admins:        app.NewAuthorizer([]string{"Lead@VITstudent.ac.in"}),
		Countdowns:    f.countdowns,
	}, nil)
	return svc.WithClock(func() time.Time { return now })
}

func TestSignInCreatesProfile(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(app.AttemptConfig{})
	accounts := newAccounts(f, stubVerifier{ident: app.Identity{Subject: "g-1", Email: "lead@vitstudent.ac.in", Name: "Lead"}}, now)

	res, err := accounts.SignIn(ctx, "credential")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if res.Token != "token-g-1" || !res.IsAdmin || res.NextStep != domain.RedirectDomainSelection {
		t.Fatalf("unexpected result %+v", res)
	}
	user, err := f.store.GetUser(ctx, "g-1")
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if !user.CreatedAt.Equal(now) || !user.LastLogin.Equal(now) {
		t.Fatalf("unexpected timestamps %+v", user)
	}
}

func TestSignInKeepsSelectionsAndAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{})
	_ = f.store.SaveUser(ctx, domain.UserProfile{
		UID:             "g-1",
		Email:           "a@vitstudent.ac.in",
		SelectedDomains: []domain.Domain{domain.Design},
		Attempted:       map[domain.Domain]bool{domain.Design: true},
	})
	later := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	accounts := newAccounts(f, stubVerifier{ident: app.Identity{Subject: "g-1", Email: "a@vitstudent.ac.in"}}, later)

	res, err := accounts.SignIn(ctx, "credential")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if res.NextStep != domain.RedirectDashboard || res.IsAdmin {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.User.HasAttempted(domain.Design) || !res.User.LastLogin.Equal(later) {
		t.Fatalf("sign in must refresh last login only, got %+v", res.User)
	}
}

func TestSignInKeepsSubmissionRecordedDuringSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{})
	f.seedUser("g-1", domain.Design)
	f.seedQuestionnaire(domain.Design, 1)
	f.store.interleaveAfterRead(func(uid string) {
		err := f.store.Store.RecordSubmission(ctx, domain.QuizResponse{
			UserID:      uid,
			Domain:      domain.Design,
			Responses:   map[string]string{"q1": ""},
			Timestamp:   time.Now().UTC(),
			TimeExpired: true,
		})
		if err != nil {
			t.Errorf("record submission: %v", err)
		}
	})
	accounts := newAccounts(f, stubVerifier{ident: app.Identity{Subject: "g-1", Email: "g-1@vitstudent.ac.in"}}, time.Now())

	if _, err := accounts.SignIn(ctx, "credential"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	user, err := f.store.GetUser(ctx, "g-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.HasAttempted(domain.Design) {
		t.Fatalf("attempted flag reverted by sign in: %+v", user.Attempted)
	}
	decision, err := f.gate.Check(ctx, "g-1", domain.Design)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Allowed || decision.Reason != domain.DenyAlreadyAttempted {
		t.Fatalf("expected already attempted, got %+v", decision)
	}
}

func TestSelectDomainsKeepsSubmissionRecordedDuringSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{})
	f.seedUser("u1", domain.Technical)
	accounts := newAccounts(f, stubVerifier{}, time.Now())
	f.store.interleaveAfterRead(func(uid string) {
		_ = f.store.Store.RecordSubmission(ctx, domain.QuizResponse{
			UserID:    uid,
			Domain:    domain.Technical,
			Responses: map[string]string{"q1": "a"},
			Timestamp: time.Now().UTC(),
		})
	})

	if _, err := accounts.SelectDomains(ctx, "u1", []string{"Design"}); err != nil {
		t.Fatalf("select domains: %v", err)
	}
	user, _ := f.store.GetUser(ctx, "u1")
	if !user.HasAttempted(domain.Technical) {
		t.Fatalf("dropped domain lost its attempted flag: %+v", user.Attempted)
	}
}

func TestSignInRejectsForeignEmail(t *testing.T) {
	f := newFixture(app.AttemptConfig{})
	accounts := newAccounts(f, stubVerifier{ident: app.Identity{Subject: "g-2", Email: "someone@gmail.com"}}, time.Now())

	_, err := accounts.SignIn(context.Background(), "credential")
	if !errors.Is(err, domain.ErrEmailNotAllowed) || domain.KindOf(err) != domain.KindAuth {
		t.Fatalf("expected email policy auth error, got %v", err)
	}
	if _, err := f.store.GetUser(context.Background(), "g-2"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("rejected sign-in must not create a profile")
	}
}

func TestSignInVerifierFailure(t *testing.T) {
	f := newFixture(app.AttemptConfig{})
	accounts := newAccounts(f, stubVerifier{err: domain.ErrInvalidCredential}, time.Now())

	if _, err := accounts.SignIn(context.Background(), "credential"); domain.KindOf(err) != domain.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, err := accounts.SignIn(context.Background(), ""); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential for empty token, got %v", err)
	}
}

func TestSelectDomainsRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{})
	f.seedUser("u1")
	accounts := newAccounts(f, stubVerifier{}, time.Now())

	cases := []struct {
		name string
		in   []string
		want error
	}{
		{"none", nil, domain.ErrNoDomainSelected},
		{"three", []string{"Technical", "Design", "Editorial"}, domain.ErrTooManyDomains},
		{"unknown", []string{"Marketing"}, domain.ErrUnknownDomain},
	}
	for _, tc := range cases {
		if _, err := accounts.SelectDomains(ctx, "u1", tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	user, err := accounts.SelectDomains(ctx, "u1", []string{"technical", "Design", "Technical"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(user.SelectedDomains) != 2 || user.SelectedDomains[0] != domain.Technical {
		t.Fatalf("unexpected selection %v", user.SelectedDomains)
	}
}

func TestSelectDomainsLockedAfterAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{})
	f.seedUser("u1", domain.Technical)
	_ = f.store.RecordSubmission(ctx, domain.QuizResponse{UserID: "u1", Domain: domain.Technical})
	accounts := newAccounts(f, stubVerifier{}, time.Now())

	_, err := accounts.SelectDomains(ctx, "u1", []string{"Design"})
	if !errors.Is(err, domain.ErrSelectionLocked) || domain.KindOf(err) != domain.KindAccessDenied {
		t.Fatalf("expected selection locked, got %v", err)
	}
}

func TestDashboardOrdersAnnouncements(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	f := newFixture(app.AttemptConfig{})
	f.seedUser("u1", domain.Technical)
	f.countdowns.WithClock(func() time.Time { return now })

	_ = f.store.AddNotice(ctx, domain.Notice{ID: "old", Title: "Old", Date: now.Add(-72 * time.Hour)})
	_ = f.store.AddNotice(ctx, domain.Notice{ID: "new", Title: "New", Date: now.Add(-time.Hour)})
	_ = f.store.AddNotice(ctx, domain.Notice{ID: "pinned", Title: "Pinned", Date: now.Add(-96 * time.Hour), Important: true})
	_ = f.store.AddEvent(ctx, domain.Event{ID: "past", Title: "Past", StartsAt: now.Add(-time.Hour)})
	_ = f.store.AddEvent(ctx, domain.Event{ID: "later", Title: "Later", StartsAt: now.Add(48 * time.Hour)})
	_ = f.store.AddEvent(ctx, domain.Event{ID: "soon", Title: "Soon", StartsAt: now.Add(time.Hour)})

	dash, err := newAccounts(f, stubVerifier{}, now).Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dash.Notices) != 3 {
		t.Fatalf("expected 3 notices, got %d", len(dash.Notices))
	}
	gotNotices := [3]string{dash.Notices[0].ID, dash.Notices[1].ID, dash.Notices[2].ID}
	if gotNotices != [3]string{"pinned", "new", "old"} {
		t.Fatalf("unexpected notice order %v", gotNotices)
	}
	if len(dash.Events) != 2 || dash.Events[0].ID != "soon" || dash.Events[1].ID != "later" {
		t.Fatalf("unexpected events %+v", dash.Events)
	}
	if len(dash.Countdowns) != len(domain.TimerKinds) {
		t.Fatalf("expected a countdown per timer kind, got %d", len(dash.Countdowns))
	}
}
