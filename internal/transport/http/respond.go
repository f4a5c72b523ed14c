package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type errorBody struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind"`
	Reason    domain.DenyReason `json:"reason,omitempty"`
	Redirect  domain.Redirect   `json:"redirect,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse maps an error onto a status code and body by its kind.
func errorResponse(err error) (int, errorBody) {
	body := errorBody{Error: err.Error(), Kind: domain.KindOf(err).String()}

	var denied *app.DeniedError
	if errors.As(err, &denied) {
		body.Error = denied.Decision.Message
		body.Reason = denied.Decision.Reason
		body.Redirect = denied.Decision.Redirect
		if denied.Decision.Reason == domain.DenyNotSignedIn {
			return http.StatusUnauthorized, body
		}
		return http.StatusForbidden, body
	}

	switch {
	case errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrAttemptClosed), errors.Is(err, domain.ErrSubmitInFlight):
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrEmailNotAllowed):
		body.Redirect = domain.RedirectLogin
		return http.StatusForbidden, body
	}

	switch domain.KindOf(err) {
	case domain.KindAuth:
		body.Redirect = domain.RedirectLogin
		return http.StatusUnauthorized, body
	case domain.KindAccessDenied:
		body.Redirect = domain.RedirectDashboard
		return http.StatusForbidden, body
	case domain.KindDataUnavailable:
		body.Redirect = domain.RedirectDashboard
		return http.StatusServiceUnavailable, body
	case domain.KindWriteFailure:
		body.Retryable = true
		return http.StatusBadGateway, body
	case domain.KindInvalid:
		return http.StatusBadRequest, body
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error", Kind: body.Kind}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", requestFields(r, status, err)...)
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: domain.KindInvalid.String()})
}

// decode reads a JSON body into dst and runs struct validation on it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func pathDomain(r *http.Request) (domain.Domain, error) {
	raw := mux.Vars(r)["domain"]
	d, ok := domain.ParseDomain(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDomain, raw)
	}
	return d, nil
}

func pathIndex(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		return 0, fmt.Errorf("invalid question index: %w", err)
	}
	return n, nil
}

func timerKind(raw string) (domain.TimerKind, error) {
	kind, ok := domain.ParseTimerKind(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidTimerKind, raw)
	}
	return kind, nil
}
