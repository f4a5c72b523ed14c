package http

import (
	"errors"
	"net/http"

	"recruitment-portal/internal/domain"

	"github.com/gorilla/mux"
)

var errUnknownMove = errors.New("unknown navigation kind")

type signInRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type selectDomainsRequest struct {
	Domains []string `json:"domains" validate:"dive,required"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type navigateRequest struct {
	Kind   string `json:"kind" validate:"required"`
	Target int    `json:"target" validate:"gte=0"`
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := h.accounts.SignIn(r.Context(), req.IDToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Profile(r.Context(), principalFrom(r.Context()).UID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) selectDomains(w http.ResponseWriter, r *http.Request) {
	var req selectDomainsRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, err := h.accounts.SelectDomains(r.Context(), principalFrom(r.Context()).UID, req.Domains)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.accounts.Dashboard(r.Context(), principalFrom(r.Context()).UID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// timer is the public countdown snapshot; it never fails, an unresolvable
// deadline is reported through the snapshot state.
func (h *Handler) timer(w http.ResponseWriter, r *http.Request) {
	kind, err := timerKind(mux.Vars(r)["kind"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.countdowns.Snapshot(r.Context(), kind))
}

func (h *Handler) eligibility(w http.ResponseWriter, r *http.Request) {
	d, err := pathDomain(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	decision, err := h.gate.Check(r.Context(), principalFrom(r.Context()).UID, d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	d, err := pathDomain(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	view, err := h.attempts.Start(r.Context(), principalFrom(r.Context()).UID, d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) attemptStatus(w http.ResponseWriter, r *http.Request) {
	d, err := pathDomain(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	status, err := h.attempts.Status(r.Context(), principalFrom(r.Context()).UID, d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	d, err := pathDomain(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	index, err := pathIndex(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req answerRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	status, err := h.attempts.Answer(r.Context(), principalFrom(r.Context()).UID, d, index, req.Answer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	d, err := pathDomain(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req navigateRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	move, err := parseMove(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	status, err := h.attempts.Navigate(r.Context(), principalFrom(r.Context()).UID, d, move)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	d, err := pathDomain(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	resp, err := h.attempts.Submit(r.Context(), principalFrom(r.Context()).UID, d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseMove(req navigateRequest) (domain.Move, error) {
	kind, ok := domain.ParseMoveKind(req.Kind)
	if !ok {
		return domain.Move{}, errUnknownMove
	}
	return domain.Move{Kind: kind, Target: req.Target}, nil
}
