package app

import (
	"context"
	"errors"
	"time"

	"recruitment-portal/internal/countdown"
	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/fallback"
	"recruitment-portal/internal/logging"

	"go.uber.org/zap"
)

// Source names reported in countdown snapshots.
const (
	SourcePrivate = "private"
	SourcePublic  = "public"
	SourceCache   = "cache"
	SourceDefault = "default"
)

// CountdownDefaults are offsets from now used when no deadline can be read.
type CountdownDefaults struct {
	Registration time.Duration
	Results      time.Duration
}

// DefaultCountdowns are the built-in fallback offsets.
var DefaultCountdowns = CountdownDefaults{
	Registration: 3 * 24 * time.Hour,
	Results:      10 * 24 * time.Hour,
}

func (d CountdownDefaults) offset(kind domain.TimerKind) time.Duration {
	if kind == domain.TimerRegistration {
		return d.Registration
	}
	return d.Results
}

// CountdownService resolves timer deadlines and builds countdown engines.
type CountdownService struct {
	timers   TimerRepository
	cache    TimerCache
	defaults CountdownDefaults
	now      func() time.Time
	log      *zap.Logger
}

// NewCountdownService builds the service. cache may be nil.
func NewCountdownService(timers TimerRepository, cache TimerCache, defaults CountdownDefaults, log *zap.Logger) *CountdownService {
	if defaults.Registration <= 0 {
		defaults.Registration = DefaultCountdowns.Registration
	}
	if defaults.Results <= 0 {
		defaults.Results = DefaultCountdowns.Results
	}
	return &CountdownService{timers: timers, cache: cache, defaults: defaults, now: time.Now, log: logging.OrNop(log)}
}

// WithClock replaces the service's time source.
func (s *CountdownService) WithClock(now func() time.Time) *CountdownService {
	s.now = now
	return s
}

// Now is the service's current time.
func (s *CountdownService) Now() time.Time { return s.now() }

// Resolve finds the deadline for kind. With withDefault the chain always ends
// in a value; without it, ErrNoValue is returned when no store has one.
func (s *CountdownService) Resolve(ctx context.Context, kind domain.TimerKind, withDefault bool) (fallback.Resolution[time.Time], error) {
	sources := []fallback.Source[time.Time]{
		fallback.Named(SourcePrivate, s.storeSource(kind, ScopePrivate)),
		fallback.Named(SourcePublic, s.storeSource(kind, ScopePublic)),
	}
	if s.cache != nil {
		sources = append(sources, fallback.Named(SourceCache, func(ctx context.Context) (time.Time, bool, error) {
			return s.cache.LastKnown(ctx, kind)
		}))
	}
	if withDefault {
		sources = append(sources, fallback.Static(SourceDefault, s.now().Add(s.defaults.offset(kind))))
	}

	res, err := fallback.Resolve(ctx, sources...)
	for _, f := range res.Failures {
		s.log.Warn("timer source failed",
			zap.String("kind", string(kind)),
			zap.String("source", f.Source),
			zap.Error(f.Err),
		)
	}
	return res, err
}

func (s *CountdownService) storeSource(kind domain.TimerKind, scope TimerScope) fallback.Fetch[time.Time] {
	return func(ctx context.Context) (time.Time, bool, error) {
		cfg, err := s.timers.GetTimer(ctx, scope, kind)
		if errors.Is(err, domain.ErrTimerNotFound) {
			return time.Time{}, false, nil
		}
		if err != nil {
			return time.Time{}, false, err
		}
		if cfg.EndTime.IsZero() {
			return time.Time{}, false, nil
		}
		if s.cache != nil {
			if err := s.cache.Remember(ctx, kind, cfg.EndTime); err != nil {
				s.log.Debug("remember timer failed", zap.String("kind", string(kind)), zap.Error(err))
			}
		}
		return cfg.EndTime, true, nil
	}
}

// Engine returns a loaded countdown engine for kind. Store outages degrade to
// the cached or default deadline, so it never fails.
func (s *CountdownService) Engine(ctx context.Context, kind domain.TimerKind) *countdown.Engine {
	engine := countdown.NewEngine(string(kind))
	res, err := s.Resolve(ctx, kind, true)
	if err != nil {
		// Only reachable through ctx cancellation.
		engine.MarkUnavailable()
		return engine
	}
	engine.Load(res.Value, res.Source)
	return engine
}

// Snapshot samples the countdown for kind at the current time.
func (s *CountdownService) Snapshot(ctx context.Context, kind domain.TimerKind) countdown.Snapshot {
	return s.Engine(ctx, kind).Tick(s.now())
}

// RegistrationWindow reports the registration deadline without applying a default.
func (s *CountdownService) RegistrationWindow(ctx context.Context) (RegistrationWindow, error) {
	res, err := s.Resolve(ctx, domain.TimerRegistration, false)
	if err != nil {
		if errors.Is(err, fallback.ErrNoValue) && !res.Degraded() {
			return RegistrationWindow{}, nil
		}
		return RegistrationWindow{}, err
	}
	return RegistrationWindow{Known: true, EndTime: res.Value}, nil
}

// Refresh re-reads every timer so the cache holds the latest deadlines.
func (s *CountdownService) Refresh(ctx context.Context) error {
	var errs []error
	for _, kind := range domain.TimerKinds {
		res, err := s.Resolve(ctx, kind, false)
		if err != nil && !errors.Is(err, fallback.ErrNoValue) {
			errs = append(errs, err)
			continue
		}
		if res.Degraded() {
			errs = append(errs, res.Failures[0].Err)
		}
	}
	return errors.Join(errs...)
}
