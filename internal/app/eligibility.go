package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/logging"

	"go.uber.org/zap"
)

// RegistrationWindow is what is known about the outer registration deadline.
type RegistrationWindow struct {
	Known   bool
	EndTime time.Time
}

// Closed reports whether the window is known to have ended at now.
func (w RegistrationWindow) Closed(now time.Time) bool {
	return w.Known && now.After(w.EndTime)
}

// EligibilityInput is the snapshot a decision is computed from.
type EligibilityInput struct {
	SignedIn bool
	// User is nil when the signed-in account has no profile yet.
	User               *domain.UserProfile
	Domain             domain.Domain
	QuestionnaireFound bool
	QuestionCount      int
	Registration       RegistrationWindow
	Now                time.Time
}

// EvaluateEligibility decides whether the user may start the domain's
// questionnaire. It depends only on its input.
func EvaluateEligibility(in EligibilityInput) domain.Decision {
	if d := evaluateProfile(in); !d.Allowed {
		return d
	}
	return evaluateContent(in)
}

func evaluateProfile(in EligibilityInput) domain.Decision {
	if !in.SignedIn {
		return domain.Deny(domain.DenyNotSignedIn, "You must be logged in to continue", domain.RedirectLogin)
	}
	if in.User == nil || len(in.User.SelectedDomains) == 0 {
		return domain.Deny(domain.DenyDomainNotSelected, "Please select your domains first", domain.RedirectDomainSelection)
	}
	if !in.User.HasSelected(in.Domain) {
		return domain.Deny(domain.DenyDomainNotSelected, "You have not selected this domain", domain.RedirectDashboard)
	}
	if in.User.HasAttempted(in.Domain) {
		return domain.Deny(domain.DenyAlreadyAttempted, "You have already completed this questionnaire", domain.RedirectDashboard)
	}
	return domain.Allow()
}

func evaluateContent(in EligibilityInput) domain.Decision {
	if !in.QuestionnaireFound || in.QuestionCount == 0 {
		return domain.Deny(domain.DenyQuestionnaireUnavailable, "No questions found for this domain", domain.RedirectDashboard)
	}
	if in.Registration.Closed(in.Now) {
		return domain.Deny(domain.DenyRegistrationClosed, "Registration is closed", domain.RedirectDashboard)
	}
	return domain.Allow()
}

// DeniedError carries a rejecting decision through error returns.
type DeniedError struct {
	Decision domain.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("not eligible: %s", e.Decision.Reason)
}

// Is lets errors.Is match the matching sentinel for the already-attempted case.
func (e *DeniedError) Is(target error) bool {
	return target == domain.ErrAlreadyAttempted && e.Decision.Reason == domain.DenyAlreadyAttempted
}

// RegistrationSource reports the registration window; an error means unknown.
type RegistrationSource interface {
	RegistrationWindow(ctx context.Context) (RegistrationWindow, error)
}

// Gate runs the eligibility check against live data.
type Gate struct {
	users          UserRepository
	questionnaires QuestionnaireReader
	registration   RegistrationSource
	now            func() time.Time
	log            *zap.Logger
}

// NewGate builds a gate. registration may be nil, which disables the window check.
func NewGate(users UserRepository, questionnaires QuestionnaireReader, registration RegistrationSource, log *zap.Logger) *Gate {
	return &Gate{
		users:          users,
		questionnaires: questionnaires,
		registration:   registration,
		now:            time.Now,
		log:            logging.OrNop(log),
	}
}

// WithClock replaces the gate's time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Check decides whether uid may start d. Read failures of the profile or the
// questionnaire are DataUnavailable errors; a failing registration read never denies.
func (g *Gate) Check(ctx context.Context, uid string, d domain.Domain) (domain.Decision, error) {
	decision, _, err := g.check(ctx, uid, d)
	return decision, err
}

// profileInput loads the profile half of an eligibility input.
func (g *Gate) profileInput(ctx context.Context, uid string, d domain.Domain) (EligibilityInput, error) {
	in := EligibilityInput{SignedIn: uid != "", Domain: d}
	if !in.SignedIn {
		return in, nil
	}
	user, err := g.users.GetUser(ctx, uid)
	switch {
	case err == nil:
		in.User = &user
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		return in, domain.DataUnavailable("load profile", err)
	}
	return in, nil
}

func (g *Gate) check(ctx context.Context, uid string, d domain.Domain) (domain.Decision, domain.Questionnaire, error) {
	in, err := g.profileInput(ctx, uid, d)
	if err != nil {
		return domain.Decision{}, domain.Questionnaire{}, err
	}
	if decision := evaluateProfile(in); !decision.Allowed {
		return decision, domain.Questionnaire{}, nil
	}

	q, err := g.questionnaires.GetQuestionnaire(ctx, d)
	switch {
	case err == nil:
		in.QuestionnaireFound = true
		in.QuestionCount = len(q.Questions)
	case errors.Is(err, domain.ErrQuestionnaireNotFound):
	default:
		return domain.Decision{}, domain.Questionnaire{}, domain.DataUnavailable("load questionnaire", err)
	}

	if g.registration != nil && in.QuestionCount > 0 {
		window, err := g.registration.RegistrationWindow(ctx)
		if err != nil {
			g.log.Warn("registration window unavailable, allowing entry", zap.Error(err))
		} else {
			in.Registration = window
		}
	}
	in.Now = g.now()

	return EvaluateEligibility(in), q, nil
}
