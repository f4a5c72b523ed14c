package http

import (
	"net/http"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/countdown"
	"recruitment-portal/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Accounts   *app.AccountService
	Attempts   *app.AttemptService
	Gate       *app.Gate
	Countdowns *app.CountdownService
	Admin      *app.AdminService
	Admins     *app.Authorizer
	Auth       app.Authenticator
	Logger     *zap.Logger

	// CountdownInterval is the tick period of /ws/countdown streams.
	CountdownInterval time.Duration
}

// Handler serves the REST API and the websocket streams.
type Handler struct {
	accounts   *app.AccountService
	attempts   *app.AttemptService
	gate       *app.Gate
	countdowns *app.CountdownService
	admin      *app.AdminService
	admins     *app.Authorizer
	auth       app.Authenticator
	log        *zap.Logger
	validate   *validator.Validate
	upgrader   websocket.Upgrader
	interval   time.Duration
}

func NewHandler(d Deps) *Handler {
	interval := d.CountdownInterval
	if interval <= 0 {
		interval = countdown.DefaultInterval
	}
	return &Handler{
		accounts:   d.Accounts,
		attempts:   d.Attempts,
		gate:       d.Gate,
		countdowns: d.Countdowns,
		admin:      d.Admin,
		admins:     d.Admins,
		auth:       d.Auth,
		log:        logging.OrNop(d.Logger),
		validate:   validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: interval,
	}
}

// Router wires every route onto a gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/ws/countdown", h.ServeCountdown).Methods(http.MethodGet)
	r.Handle("/ws/attempt", h.authenticate(http.HandlerFunc(h.ServeAttempt))).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/google", h.signIn).Methods(http.MethodPost)
	api.HandleFunc("/timers/{kind}", h.timer).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.authenticate, h.requireAdmin)
	admin.HandleFunc("/sections/{section}", h.adminSection).Methods(http.MethodGet)
	admin.HandleFunc("/users", h.adminUsers).Methods(http.MethodGet)
	admin.HandleFunc("/questionnaires", h.adminQuestionnaires).Methods(http.MethodGet)
	admin.HandleFunc("/questionnaires/seed", h.adminSeed).Methods(http.MethodPost)
	admin.HandleFunc("/questionnaires/{domain}/questions", h.adminAddQuestion).Methods(http.MethodPost)
	admin.HandleFunc("/questionnaires/{domain}/questions/{index:[0-9]+}", h.adminDeleteQuestion).Methods(http.MethodDelete)
	admin.HandleFunc("/timers", h.adminTimers).Methods(http.MethodGet)
	admin.HandleFunc("/timers/{kind}", h.adminSetTimer).Methods(http.MethodPut)
	admin.HandleFunc("/notices", h.adminNotices).Methods(http.MethodGet)
	admin.HandleFunc("/notices", h.adminAddNotice).Methods(http.MethodPost)
	admin.HandleFunc("/notices/{id}", h.adminDeleteNotice).Methods(http.MethodDelete)
	admin.HandleFunc("/events", h.adminEvents).Methods(http.MethodGet)
	admin.HandleFunc("/events", h.adminAddEvent).Methods(http.MethodPost)
	admin.HandleFunc("/events/{id}", h.adminDeleteEvent).Methods(http.MethodDelete)
	admin.HandleFunc("/export", h.adminExport).Methods(http.MethodGet)

	user := api.NewRoute().Subrouter()
	user.Use(h.authenticate)
	user.HandleFunc("/me", h.me).Methods(http.MethodGet)
	user.HandleFunc("/me/domains", h.selectDomains).Methods(http.MethodPut)
	user.HandleFunc("/dashboard", h.dashboard).Methods(http.MethodGet)
	user.HandleFunc("/eligibility/{domain}", h.eligibility).Methods(http.MethodGet)
	user.HandleFunc("/attempts/{domain}", h.startAttempt).Methods(http.MethodPost)
	user.HandleFunc("/attempts/{domain}", h.attemptStatus).Methods(http.MethodGet)
	user.HandleFunc("/attempts/{domain}/answers/{index:[0-9]+}", h.answer).Methods(http.MethodPut)
	user.HandleFunc("/attempts/{domain}/navigate", h.navigate).Methods(http.MethodPost)
	user.HandleFunc("/attempts/{domain}/submit", h.submit).Methods(http.MethodPost)

	return r
}
