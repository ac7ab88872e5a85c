package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	jwttoken "showcase/internal/jwt_token"
	"showcase/internal/notify/bus"
	"showcase/internal/notify/forward"
	notifymetrics "showcase/internal/notify/metrics"
	"showcase/internal/notify/relay"
	"showcase/internal/notify/transport"
	"showcase/internal/platform/config"
	"showcase/internal/platform/database"
	"showcase/internal/platform/httpserver"
	"showcase/internal/platform/kafka"
	"showcase/internal/platform/logger"
	platformmetrics "showcase/internal/platform/metrics"
	"showcase/internal/platform/middleware"
	redisclient "showcase/internal/platform/redis"
	profilehandler "showcase/internal/profile/handler"
	profilemetrics "showcase/internal/profile/metrics"
	"showcase/internal/profile/orchestrator"
	"showcase/internal/profile/scheduler"
	"showcase/internal/profile/service"
	"showcase/internal/profile/source"
	"showcase/internal/profile/store"
	ratelimitmetrics "showcase/internal/ratelimit/metrics"
	ratelimitmw "showcase/internal/ratelimit/middleware"
	"showcase/internal/ratelimit/models"
	"showcase/internal/ratelimit/store/bucket"
	"showcase/pkg/platform/circuit"
	"showcase/pkg/platform/httputil"
)

const adminAudience = "showcase-admin"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	configPath := flag.String("config", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// infra holds the optional external connections.
type infra struct {
	db    *sql.DB
	redis *redisclient.Client
	kafka *kgo.Client
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("closing redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("closing database", "error", err)
		}
	}
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}
	var err error
	if in.db, err = database.Open(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if in.redis, err = redisclient.New(ctx, cfg.Redis); err != nil {
		in.close(log)
		return nil, err
	}
	if in.kafka, err = kafka.New(ctx, cfg.Kafka); err != nil {
		in.close(log)
		return nil, err
	}
	log.Info("infrastructure ready",
		"database", in.db != nil,
		"redis", in.redis != nil,
		"kafka", in.kafka != nil,
	)
	return in, nil
}

type stores struct {
	cache    store.Store
	states   store.SyncStateStore
	profiles store.ProfileStore
}

func buildStores(ctx context.Context, cfg config.Config, db *sql.DB) (stores, error) {
	if db == nil {
		return stores{
			cache:    store.NewInMemoryStore(),
			states:   store.NewInMemorySyncStateStore(),
			profiles: store.NewInMemoryProfileStore(),
		}, nil
	}
	dialect := store.Dialect(database.Dialect(cfg.Database.Driver))
	if cfg.Database.AutoMigrate {
		if err := store.ApplySchema(ctx, db, dialect); err != nil {
			return stores{}, fmt.Errorf("apply schema: %w", err)
		}
	}
	return stores{
		cache:    store.NewSQLStore(db, dialect),
		states:   store.NewSQLSyncStateStore(db, dialect),
		profiles: store.NewSQLProfileStore(db, dialect),
	}, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	st, err := buildStores(ctx, cfg, in.db)
	if err != nil {
		return err
	}

	httpMetrics := platformmetrics.New()
	reg := httpMetrics.Registerer()

	// Notification bus. With Redis the relay carries events between instances
	// and every local publish goes through it.
	notifyMetrics := notifymetrics.New(reg)
	hub := bus.NewHub(
		bus.WithBuffer(cfg.Notify.SubscriberBuffer),
		bus.WithMetrics(notifyMetrics),
		bus.WithLogger(log),
	)
	defer hub.Close()
	var publisher orchestrator.Publisher = hub
	var eventRelay *relay.Relay
	if in.redis != nil {
		eventRelay = relay.New(in.redis.Client, hub,
			relay.WithChannel(cfg.Redis.Channel),
			relay.WithMetrics(notifyMetrics),
			relay.WithLogger(log),
		)
		publisher = eventRelay
	}

	// Sync core.
	breaker := circuit.New("openalex",
		circuit.WithFailureThreshold(cfg.Source.BreakerFailures),
		circuit.WithCooldown(cfg.Source.BreakerCooldown),
	)
	src := source.New(cfg.Source.BaseURL,
		source.WithTimeout(cfg.Source.Timeout),
		source.WithMailto(cfg.Source.Mailto),
		source.WithUserAgent(cfg.Source.UserAgent),
		source.WithBreaker(breaker),
		source.WithLogger(log),
	)
	orch := orchestrator.New(src, st.cache, st.states,
		orchestrator.WithPublisher(publisher),
		orchestrator.WithRetry(cfg.Sync.RetryAttempts, cfg.Sync.RetryInterval),
		orchestrator.WithRunTimeout(cfg.Sync.RunTimeout),
		orchestrator.WithPersistMode(orchestrator.PersistMode(cfg.Sync.PersistMode)),
		orchestrator.WithPaging(cfg.Source.PageSize, cfg.Source.MaxPages),
		orchestrator.WithMetrics(profilemetrics.New(reg)),
		orchestrator.WithLogger(log),
	)
	profiles := service.New(orch, st.cache, st.states, st.profiles, publisher, hub,
		service.WithLogger(log),
	)
	sched := scheduler.New(profiles, cfg.Sync.ScheduleInterval,
		scheduler.WithConcurrency(cfg.Sync.ScheduleConcurrency),
		scheduler.WithLogger(log),
	)

	limiter := newRateLimiter(cfg.RateLimit, in.redis, ratelimitmetrics.New(reg), log)

	// HTTP.
	jwtService := jwttoken.NewJWTService(cfg.Server.AdminJWTKey, cfg.Server.AdminJWTIssuer, adminAudience)
	profileHandler := profilehandler.New(profiles, log,
		profilehandler.WithSyncMiddleware(limiter.RateLimit(models.ClassSync)),
	)
	streams := transport.New(hub,
		transport.WithHeartbeat(cfg.Notify.HeartbeatInterval),
		transport.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics(httpMetrics))

	r.Get("/healthz", healthz(in))
	r.Handle("/metrics", httpMetrics.Handler())
	r.Group(func(r chi.Router) {
		r.Use(limiter.RateLimit(models.ClassRead))
		profileHandler.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(limiter.RateLimit(models.ClassStream))
		streams.Register(r)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(jwttoken.NewJWTServiceAdapter(jwtService), log))
		profileHandler.RegisterAdmin(r)
	})

	srv := httpserver.New(cfg.Server, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting showcase", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if eventRelay != nil {
		g.Go(func() error {
			return eventRelay.Run(gctx)
		})
	}
	if in.kafka != nil {
		fwd := forward.New(in.kafka, cfg.Kafka.Topic, hub,
			forward.WithMetrics(notifyMetrics),
			forward.WithLogger(log),
		)
		g.Go(func() error {
			return fwd.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv, orch, hub, cfg, log)
	})

	return g.Wait()
}

// shutdown stops accepting requests, closes live streams and lets background
// syncs finish within the shutdown timeout.
func shutdown(srv *http.Server, orch *orchestrator.Orchestrator, hub *bus.Hub, cfg config.Config, log *slog.Logger) error {
	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	hub.Close()
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	if err := orch.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining syncs: %w", err))
	}
	return errors.Join(errs...)
}

func newRateLimiter(cfg config.RateLimitConfig, rc *redisclient.Client, m *ratelimitmetrics.Metrics, log *slog.Logger) *ratelimitmw.Middleware {
	var primary ratelimitmw.BucketStore = bucket.New()
	if cfg.Backend == config.BackendRedis && rc != nil {
		primary = bucket.NewRedis(rc.Client)
	}
	return ratelimitmw.New(primary,
		ratelimitmw.WithDisabled(!cfg.Enabled),
		ratelimitmw.WithLimits(map[models.EndpointClass]models.Limit{
			models.ClassSync:   {RequestsPerWindow: cfg.SyncLimit, Window: cfg.Window},
			models.ClassRead:   {RequestsPerWindow: cfg.ReadLimit, Window: cfg.Window},
			models.ClassStream: {RequestsPerWindow: cfg.StreamLimit, Window: cfg.Window},
		}),
		ratelimitmw.WithMetrics(m),
		ratelimitmw.WithLogger(log),
	)
}

func healthz(in *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		healthy := true
		if in.db != nil {
			checks["database"] = "ok"
			if err := in.db.PingContext(r.Context()); err != nil {
				checks["database"], healthy = err.Error(), false
			}
		}
		if in.redis != nil {
			checks["redis"] = "ok"
			if err := in.redis.Health(r.Context()); err != nil {
				checks["redis"], healthy = err.Error(), false
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
	}
}
