package domain

// DenyReason names why a user may not start a questionnaire.
type DenyReason string

const (
	DenyNotSignedIn              DenyReason = "not signed in"
	DenyDomainNotSelected        DenyReason = "domain not selected"
	DenyAlreadyAttempted         DenyReason = "already attempted"
	DenyQuestionnaireUnavailable DenyReason = "questionnaire unavailable"
	DenyRegistrationClosed       DenyReason = "registration closed"
)

// Redirect is the page a denied user is sent to.
type Redirect string

const (
	RedirectLogin           Redirect = "/login"
	RedirectDashboard       Redirect = "/dashboard"
	RedirectDomainSelection Redirect = "/domain-selection"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed  bool       `json:"allowed"`
	Reason   DenyReason `json:"reason,omitempty"`
	Message  string     `json:"message,omitempty"`
	Redirect Redirect   `json:"redirect,omitempty"`
}

// Allow is the permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a rejecting decision.
func Deny(reason DenyReason, message string, redirect Redirect) Decision {
	return Decision{Reason: reason, Message: message, Redirect: redirect}
}
