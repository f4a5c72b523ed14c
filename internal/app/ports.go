package app

import (
	"context"
	"time"

	"recruitment-portal/internal/domain"
)

// UserRepository stores user profiles keyed by uid.
type UserRepository interface {
	GetUser(ctx context.Context, uid string) (domain.UserProfile, error)
	SaveUser(ctx context.Context, user domain.UserProfile) error
	ListUsers(ctx context.Context) ([]domain.UserProfile, error)
}

// QuestionnaireReader is the read path of the quiz runner (usually a cache).
type QuestionnaireReader interface {
	GetQuestionnaire(ctx context.Context, d domain.Domain) (domain.Questionnaire, error)
}

// QuestionnaireRepository is the admin-managed questionnaire store.
type QuestionnaireRepository interface {
	QuestionnaireReader
	SaveQuestionnaire(ctx context.Context, q domain.Questionnaire) error
	ListQuestionnaires(ctx context.Context) ([]domain.Questionnaire, error)
}

// QuestionnaireCache is a QuestionnaireReader whose entries can be dropped after edits.
type QuestionnaireCache interface {
	QuestionnaireReader
	Invalidate(ctx context.Context, d domain.Domain) error
}

// ResponseRepository stores quiz responses.
type ResponseRepository interface {
	// RecordSubmission stores resp and sets the user's attempted flag for
	// resp.Domain as one conditional write. It returns domain.ErrAlreadyAttempted
	// without writing anything if the flag is already set.
	RecordSubmission(ctx context.Context, resp domain.QuizResponse) error
	ListResponses(ctx context.Context) ([]domain.QuizResponse, error)
}

// TimerScope selects which copy of a timer is read or written.
type TimerScope string

const (
	// ScopePrivate is readable by signed-in users.
	ScopePrivate TimerScope = "timers"
	// ScopePublic is mirrored for anonymous readers.
	ScopePublic TimerScope = "public/timers"
)

// Path is the logical key of a timer in this scope.
func (s TimerScope) Path(kind domain.TimerKind) string {
	return string(s) + "/" + string(kind)
}

// TimerRepository stores timer deadlines per scope.
type TimerRepository interface {
	GetTimer(ctx context.Context, scope TimerScope, kind domain.TimerKind) (domain.TimerConfig, error)
	SaveTimer(ctx context.Context, scope TimerScope, cfg domain.TimerConfig) error
}

// TimerCache keeps the last deadline successfully read for each timer kind.
type TimerCache interface {
	Remember(ctx context.Context, kind domain.TimerKind, endTime time.Time) error
	LastKnown(ctx context.Context, kind domain.TimerKind) (time.Time, bool, error)
}

// AnnouncementRepository stores notices and events.
type AnnouncementRepository interface {
	AddNotice(ctx context.Context, n domain.Notice) error
	DeleteNotice(ctx context.Context, id string) error
	ListNotices(ctx context.Context) ([]domain.Notice, error)
	AddEvent(ctx context.Context, e domain.Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// Identity is a verified account returned by the identity provider.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier checks a credential issued by the identity provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// SessionIssuer mints session tokens for signed-in users.
type SessionIssuer interface {
	Issue(uid, email string) (token string, expiresAt time.Time, err error)
}

// Principal is the signed-in caller extracted from a session token.
type Principal struct {
	UID   string
	Email string
}

// Authenticator resolves a session token into a Principal.
// LiveAttempts lists attempts marked as running, across instances where the
// backing registry supports it.
type LiveAttempts interface {
	LiveAttempts(ctx context.Context) ([]AttemptKey, error)
}

type Authenticator interface {
	Authenticate(token string) (Principal, error)
}
