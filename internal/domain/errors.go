package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when no profile exists for a uid.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuestionnaireNotFound indicates no questionnaire is stored for a domain.
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	// ErrTimerNotFound indicates no deadline is configured for a timer kind.
	ErrTimerNotFound = errors.New("timer not found")
	// ErrNoticeNotFound indicates an unknown notice id.
	ErrNoticeNotFound = errors.New("notice not found")
	// ErrEventNotFound indicates an unknown event id.
	ErrEventNotFound = errors.New("event not found")
	// ErrAttemptNotFound is returned when no live attempt exists for a user and domain.
	ErrAttemptNotFound = errors.New("attempt not found")

	ErrUnauthenticated    = errors.New("not signed in")
	ErrInvalidCredential  = errors.New("invalid sign-in credential")
	ErrEmailNotAllowed    = errors.New("email domain is not allowed")
	ErrNotAdmin           = errors.New("admin access required")
	ErrUnknownDomain      = errors.New("unknown domain")
	ErrNoDomainSelected   = errors.New("select at least one domain")
	ErrTooManyDomains     = errors.New("you can only select up to 2 domains")
	ErrSelectionLocked    = errors.New("you cannot change domains after completing a quiz")
	ErrAlreadyAttempted   = errors.New("questionnaire already attempted")
	ErrIncompleteAnswers  = errors.New("please answer all questions before submitting")
	ErrSubmitInFlight     = errors.New("submission already in progress")
	ErrAttemptClosed      = errors.New("attempt already submitted")
	ErrQuestionIndex      = errors.New("question index out of range")
	ErrInvalidQuestion    = errors.New("question text is required")
	ErrNotEnoughOptions   = errors.New("multiple choice questions require at least 2 options")
	ErrInvalidTimerKind   = errors.New("unknown timer kind")
	ErrTimerInPast        = errors.New("end time must be in the future")
	ErrMissingFields      = errors.New("please fill in all fields")
	ErrUnsupportedFormat  = errors.New("unsupported export format")
	ErrNoResponses        = errors.New("no responses available for this user")
	ErrInvalidSectionName = errors.New("unknown admin section")
)

// ErrorKind classifies failures by how the caller should react.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindAuth covers sign-in failures; the user returns to a safe screen.
	KindAuth
	// KindAccessDenied covers eligibility and permission rejections.
	KindAccessDenied
	// KindDataUnavailable covers store read failures.
	KindDataUnavailable
	// KindWriteFailure covers store write failures; the operation is retryable.
	KindWriteFailure
	// KindInvalid covers rejected input.
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindAccessDenied:
		return "access_denied"
	case KindDataUnavailable:
		return "data_unavailable"
	case KindWriteFailure:
		return "write_failure"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Error attaches a kind and operation name to an underlying error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// AuthError wraps err as a sign-in failure.
func AuthError(op string, err error) error { return newError(KindAuth, op, err) }

// AccessDenied wraps err as a permission or eligibility rejection.
func AccessDenied(op string, err error) error { return newError(KindAccessDenied, op, err) }

// DataUnavailable wraps err as a store read failure.
func DataUnavailable(op string, err error) error { return newError(KindDataUnavailable, op, err) }

// WriteFailure wraps err as a retryable store write failure.
func WriteFailure(op string, err error) error { return newError(KindWriteFailure, op, err) }

// Invalid wraps err as rejected input.
func Invalid(op string, err error) error { return newError(KindInvalid, op, err) }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
