// Package app assembles the harness from configuration. One App is one run:
// every service shares its identifier ledger, session store and publisher.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Renzios/sharerapy-harness/internal/config"
	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/datasource/postgres"
	"github.com/Renzios/sharerapy-harness/internal/datasource/postgrest"
	"github.com/Renzios/sharerapy-harness/internal/engine"
	authHandler "github.com/Renzios/sharerapy-harness/internal/handler/auth"
	healthHandler "github.com/Renzios/sharerapy-harness/internal/handler/health"
	lookupHandler "github.com/Renzios/sharerapy-harness/internal/handler/lookup"
	patientHandler "github.com/Renzios/sharerapy-harness/internal/handler/patient"
	reportHandler "github.com/Renzios/sharerapy-harness/internal/handler/report"
	therapistHandler "github.com/Renzios/sharerapy-harness/internal/handler/therapist"
	"github.com/Renzios/sharerapy-harness/internal/middleware"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/internal/router"
	"github.com/Renzios/sharerapy-harness/internal/service/auth"
	"github.com/Renzios/sharerapy-harness/internal/service/lookup"
	"github.com/Renzios/sharerapy-harness/internal/service/patient"
	"github.com/Renzios/sharerapy-harness/internal/service/report"
	"github.com/Renzios/sharerapy-harness/internal/service/therapist"
	"github.com/Renzios/sharerapy-harness/internal/session"
	"github.com/Renzios/sharerapy-harness/pkg/circuitbreaker"
	"github.com/Renzios/sharerapy-harness/pkg/logger"
	"github.com/Renzios/sharerapy-harness/pkg/messaging"
	"github.com/Renzios/sharerapy-harness/pkg/messaging/redis"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
	"github.com/Renzios/sharerapy-harness/pkg/security"
)

const metricsNamespace = "harness"

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Ledger   *engine.Ledger
	Sessions *session.Store
	Users    *session.Users

	// Broker is nil when events are disabled.
	Broker    messaging.Broker
	Publisher *messaging.BrokerPublisher

	Patients   *patient.Service
	Therapists *therapist.Service
	Reports    *report.Service
	Auth       *auth.Service
	Lookups    *lookup.Service

	source  datasource.Source
	pinger  datasource.Pinger
	closers []func() error
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*App)

// WithSource replaces the configured backend, mainly for tests.
func WithSource(source datasource.Source) Option {
	return func(a *App) {
		a.source = source
		a.pinger, _ = source.(datasource.Pinger)
	}
}

func WithBroker(broker messaging.Broker) Option {
	return func(a *App) {
		a.Broker = broker
	}
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
		Ledger:   engine.NewLedger(engine.WithSyntheticTTL(cfg.Existence.SyntheticTTL)),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.Metrics = metrics.NewMetrics(a.Registry, metricsNamespace)
	a.Sessions = session.NewStore(session.WithMetrics(a.Metrics))
	a.Users = session.NewUsers(security.NewBcryptHasher(cfg.Auth.BcryptCost))
	a.closers = append(a.closers, a.Sessions.Close, a.Users.Close)

	mock := cfg.Mock()
	if !mock && a.source == nil {
		if err := a.openSource(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if err := a.openBroker(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var source datasource.Source
	if !mock {
		source = a.decorate(a.source)
	}

	eopts := engine.Options{
		Mock: mock,
		Classifier: engine.Classifier{
			MaxIDLength:     cfg.Existence.MaxIDLength,
			MissingSentinel: cfg.Existence.MissingSentinel,
			UnknownFound:    cfg.Existence.UnknownFound,
		},
		Ledger:    a.Ledger,
		Pager:     query.NewPager(cfg.Paging.DefaultPageSize, cfg.Paging.MaxPageSize),
		Publisher: a.publisher(),
		Metrics:   a.Metrics,
		Logger:    log,
	}

	a.Patients = patient.NewService(source, eopts)
	a.Therapists = therapist.NewService(source, eopts)
	a.Reports = report.NewService(source, eopts)
	a.Auth = auth.NewService(source, a.Sessions, a.Users, eopts)
	a.Lookups = lookup.NewService(source, eopts, cfg.Lookup.CacheTTL)

	log.Info().
		Bool("mock", mock).
		Str("driver", cfg.Driver()).
		Bool("events", a.Broker != nil).
		Msg("harness assembled")

	return a, nil
}

func (a *App) openSource(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Driver() {
	case config.DriverPostgREST:
		src, err := postgrest.NewSource(postgrest.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseKey}, &http.Client{})
		if err != nil {
			return err
		}
		a.source, a.pinger = src, src
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.DatabaseURL, cfg.Database)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		src := postgres.NewSource(db)
		a.source, a.pinger = src, src
	default:
		return fmt.Errorf("no backend configured")
	}
	return nil
}

// decorate wraps the backend so a call is bounded by the request timeout,
// rejected fast while the breaker is open, measured and logged.
func (a *App) decorate(src datasource.Source) datasource.Source {
	cfg := a.Config
	log := logger.Component(a.Logger, "datasource")

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:                "backend",
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.MaxFailures,
		OnStateChange: func(name, from, to string) {
			log.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("circuit breaker state changed")
		},
	})

	src = datasource.WithTimeout(src, cfg.Backend.RequestTimeout)
	src = datasource.WithBreaker(src, cb)
	src = datasource.WithMetrics(src, a.Metrics)
	return datasource.WithLogging(src, log)
}

func (a *App) openBroker(ctx context.Context) error {
	if a.Broker == nil && a.Config.Events.RedisURL != "" {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{URL: a.Config.Events.RedisURL}, logger.Component(a.Logger, "events"))
		if err != nil {
			return err
		}
		a.Broker = broker
	}
	if a.Broker != nil {
		a.Publisher = messaging.NewBrokerPublisher(a.Broker, a.Config.Events.Prefix)
		a.closers = append(a.closers, a.Broker.Close)
	}
	return nil
}

func (a *App) publisher() messaging.Publisher {
	if a.Publisher == nil {
		return messaging.Noop{}
	}
	return a.Publisher
}

// Router builds the HTTP surface over the app's services.
func (a *App) Router() *router.Router {
	cfg := a.Config
	handlers := []router.Handler{
		patientHandler.NewHandler(a.Patients),
		therapistHandler.NewHandler(a.Therapists),
		reportHandler.NewHandler(a.Reports),
		authHandler.NewHandler(a.Auth),
		lookupHandler.NewHandler(a.Lookups),
	}

	limit := rate.Inf
	if cfg.Server.RateLimit > 0 {
		limit = rate.Limit(cfg.Server.RateLimit)
	}

	return router.NewRouter(
		healthHandler.NewHandler(a.pinger, cfg.Mock()),
		handlers,
		router.RouterConfig{
			RateLimit:   limit,
			RateBurst:   cfg.Server.RateBurst,
			Timeout:     cfg.ServerTimeout(),
			MaxBodySize: middleware.DefaultMaxBodySize,
			CORSConfig:  middleware.DefaultCORSConfig(),
			Logger:      logger.Component(a.Logger, "http"),
			Metrics:     a.Metrics,
			Gatherer:    a.Registry,
		},
	)
}

// Close releases everything New opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}
