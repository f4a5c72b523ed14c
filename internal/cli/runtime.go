package cli

import (
	"context"
	"fmt"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/config"
	"recruitment-portal/internal/identity"
	"recruitment-portal/internal/infra/memory"
	"recruitment-portal/internal/infra/postgres"
	infraredis "recruitment-portal/internal/infra/redis"
	"recruitment-portal/internal/logging"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// stores groups the persistence ports; Postgres-backed when configured,
// in-memory otherwise.
type stores struct {
	users          app.UserRepository
	questionnaires app.QuestionnaireRepository
	responses      app.ResponseRepository
	timers         app.TimerRepository
	announcements  app.AnnouncementRepository
}

// runtime is the wired service graph shared by every subcommand.
type runtime struct {
	cfg        config.Config
	log        *zap.Logger
	sessions   *identity.Sessions
	admins     *app.Authorizer
	gate       *app.Gate
	countdowns *app.CountdownService
	attempts   *app.AttemptService
	accounts   *app.AccountService
	admin      *app.AdminService

	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
}

func loadRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return rt, nil
}

func buildRuntime(ctx context.Context, cfg config.Config, log *zap.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}
	rt.closers = append(rt.closers, func() { _ = log.Sync() })

	st, err := rt.openStores(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	attemptDuration := config.TTLDuration(cfg.Quiz.AttemptDuration, 0)

	var (
		questionnaireCache app.QuestionnaireCache
		timerCache         app.TimerCache
		registry           interface {
			app.AttemptRegistry
			app.LiveAttempts
		}
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		markerTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)
		questionnaireCache = infraredis.NewQuestionnaireCache(client, st.questionnaires, quizTTL, log.Named("questionnaire-cache"))
		timerCache = infraredis.NewTimerCache(client)
		registry = infraredis.NewAttemptRegistry(client, markerTTL)
		log.Info("using redis caches", zap.String("addr", cfg.Redis.Addr))
	} else {
		questionnaireCache = memory.NewQuestionnaireCache(st.questionnaires, quizTTL)
		timerCache = memory.NewTimerCache()
		registry = memory.NewAttemptRegistry()
	}

	if cfg.Auth.JWTSecret != "" {
		rt.sessions, err = identity.NewSessions(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.SessionTTL, identity.DefaultSessionTTL))
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	rt.admins = app.NewAuthorizer(cfg.Admins)

	defaults := app.DefaultCountdowns
	defaults.Registration = config.TTLDuration(cfg.Timers.RegistrationDefault, defaults.Registration)
	defaults.Results = config.TTLDuration(cfg.Timers.ResultsDefault, defaults.Results)

	rt.countdowns = app.NewCountdownService(st.timers, timerCache, defaults, log.Named("countdown"))
	rt.gate = app.NewGate(st.users, questionnaireCache, rt.countdowns, log.Named("gate"))
	rt.attempts = app.NewAttemptService(rt.gate, app.NewRecorder(st.responses, log.Named("recorder")), registry,
		app.AttemptConfig{Duration: attemptDuration}, log.Named("attempts"))
	rt.admin = app.NewAdminService(app.AdminDeps{
		Authorizer:     rt.admins,
		Users:          st.users,
		Questionnaires: st.questionnaires,
		Cache:          questionnaireCache,
		Responses:      st.responses,
		Timers:         st.timers,
		TimerCache:     timerCache,
		Announcements:  st.announcements,
		Live:           registry,
	}, log.Named("admin"))
	if rt.sessions != nil {
		rt.accounts = app.NewAccountService(app.AccountDeps{
			Users:         st.users,
			Announcements: st.announcements,
			Verifier:      identity.NewGoogleVerifier(cfg.Auth.GoogleClientID),
			Sessions:      rt.sessions,
			Policy:        app.EmailPolicy{Suffix: cfg.Auth.AllowedEmailSuffix},
			Admins:        rt.admins,
			Countdowns:    rt.countdowns,
		}, log.Named("accounts"))
	}
	return rt, nil
}

func (rt *runtime) openStores(ctx context.Context) (stores, error) {
	if rt.cfg.Postgres.URL == "" {
		rt.log.Warn("postgres not configured, using in-memory store")
		mem := memory.NewStore()
		return stores{users: mem, questionnaires: mem, responses: mem, timers: mem, announcements: mem}, nil
	}

	db := postgres.OpenBun(rt.cfg.Postgres.URL)
	rt.closers = append(rt.closers, func() { _ = db.Close() })
	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return stores{}, err
	}
	if len(applied) > 0 {
		rt.log.Info("migrations applied", zap.Strings("migrations", applied))
	}

	pool, err := pgxpool.Connect(ctx, rt.cfg.Postgres.URL)
	if err != nil {
		return stores{}, fmt.Errorf("connect postgres: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)

	pg := postgres.NewStore(pool)
	return stores{
		users:          pg,
		questionnaires: pg,
		responses:      pg,
		timers:         pg,
		announcements:  postgres.NewAnnouncements(db),
	}, nil
}

// actorFor picks the admin identity used by offline subcommands.
func (rt *runtime) actorFor(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if len(rt.cfg.Admins) == 0 {
		return "", fmt.Errorf("no admins configured; pass --as")
	}
	return rt.cfg.Admins[0], nil
}
