package http

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/export"

	"github.com/gorilla/mux"
)

type questionRequest struct {
	Text    string   `json:"text" validate:"required"`
	Type    string   `json:"type" validate:"required,oneof=text radio checkbox"`
	Options []string `json:"options"`
}

type timerRequest struct {
	EndTime time.Time `json:"endTime" validate:"required"`
}

type noticeRequest struct {
	Title     string    `json:"title" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	Date      time.Time `json:"date"`
	Important bool      `json:"important"`
}

type eventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
}

func actor(r *http.Request) string {
	return principalFrom(r.Context()).Email
}

func (h *Handler) adminSection(w http.ResponseWriter, r *http.Request) {
	section, err := domain.ParseSection(mux.Vars(r)["section"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	data, err := h.admin.Section(r.Context(), actor(r), section)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"section": section, "data": data})
}

func (h *Handler) adminUsers(w http.ResponseWriter, r *http.Request) {
	var filter app.UserFilter
	if raw := r.URL.Query().Get("domain"); raw != "" {
		d, ok := domain.ParseDomain(raw)
		if !ok {
			badRequest(w, domain.ErrUnknownDomain.Error())
			return
		}
		filter.Domain = d
	}
	users, err := h.admin.ListUsers(r.Context(), actor(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) adminQuestionnaires(w http.ResponseWriter, r *http.Request) {
	qs, err := h.admin.ListQuestionnaires(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) adminSeed(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.admin.SeedDefaultQuestionnaires(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeded": seeded})
}

func (h *Handler) adminAddQuestion(w http.ResponseWriter, r *http.Request) {
	d, err := pathDomain(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req questionRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	q, err := h.admin.AddQuestion(r.Context(), actor(r), d, app.NewQuestion{Text: req.Text, Type: req.Type, Options: req.Options})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) adminDeleteQuestion(w http.ResponseWriter, r *http.Request) {
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
	q, err := h.admin.DeleteQuestion(r.Context(), actor(r), d, index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) adminTimers(w http.ResponseWriter, r *http.Request) {
	timers, err := h.admin.Timers(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timers)
}

func (h *Handler) adminSetTimer(w http.ResponseWriter, r *http.Request) {
	kind, err := timerKind(mux.Vars(r)["kind"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req timerRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	cfg, err := h.admin.SetTimer(r.Context(), actor(r), kind, req.EndTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) adminNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.admin.Notices(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notices)
}

func (h *Handler) adminAddNotice(w http.ResponseWriter, r *http.Request) {
	var req noticeRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	n, err := h.admin.AddNotice(r.Context(), actor(r), app.NewNotice{
		Title:     req.Title,
		Content:   req.Content,
		Date:      req.Date,
		Important: req.Important,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *Handler) adminDeleteNotice(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteNotice(r.Context(), actor(r), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.admin.Events(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) adminAddEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := h.decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	e, err := h.admin.AddEvent(r.Context(), actor(r), app.NewEvent{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) adminDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteEvent(r.Context(), actor(r), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminExport renders the user responses table. The file is built in memory
// so a failure can still be reported as a JSON error.
func (h *Handler) adminExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	filter := app.ExportFilter{UserID: r.URL.Query().Get("uid")}
	var buf bytes.Buffer
	if err := h.admin.Export(r.Context(), actor(r), format, filter, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.FileNameFor(filter.UserID)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
