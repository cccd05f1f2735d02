package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"leasecover/internal/activity/relay"
	"leasecover/internal/filestore"
	"leasecover/internal/gateway"
	jwttoken "leasecover/internal/jwt_token"
	"leasecover/internal/notification"
	"leasecover/internal/platform/config"
	"leasecover/internal/platform/httpserver"
	"leasecover/internal/platform/logger"
	platformmetrics "leasecover/internal/platform/metrics"
	"leasecover/internal/platform/postgres"
	"leasecover/internal/platform/ratelimit"
	"leasecover/internal/platform/redis"
	policyhandler "leasecover/internal/policy/handler"
	policymetrics "leasecover/internal/policy/metrics"
	policyservice "leasecover/internal/policy/service"
	policystore "leasecover/internal/policy/store"
	"leasecover/internal/policy/worker"
	"leasecover/pkg/platform/circuit"
	"leasecover/pkg/platform/httputil"
	"leasecover/pkg/platform/middleware/metadata"
	"leasecover/pkg/platform/middleware/request"
	"leasecover/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies and owns the process lifecycle. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("leasecover exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	checks := map[string]readinessCheck{}
	if db != nil {
		defer db.Close()
		checks["postgres"] = db.PingContext
	}

	storage, err := openStorage(cfg, log)
	if err != nil {
		return err
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	validator := jwttoken.NewJWTServiceAdapter(tokens)

	opts := []policyservice.Option{
		policyservice.WithLogger(log),
		policyservice.WithMetrics(policymetrics.New()),
		policyservice.WithStorage(storage),
		policyservice.WithNotifier(newNotifier(cfg.Notify, log)),
		policyservice.WithGateway(gateway.NewFake(cfg.Gateway.BaseURL)),
		policyservice.WithTokens(tokens, validator),
		policyservice.WithInvitationTTL(cfg.Auth.InvitationTTL),
		policyservice.WithExpiryBatch(cfg.Policy.ExpiryBatchSize),
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemory()
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
		opts = append(opts, policyservice.WithEventDeduper(redis.NewDeduper(redisClient, cfg.Redis.DedupeTTL)))
		limiter = ratelimit.NewRedis(redisClient)
		log.Info("redis enabled for webhook dedupe and rate limits")
	}

	service := policyservice.New(store, store, opts...)

	if cfg.Gateway.WebhookSecret == "" {
		if cfg.Gateway.AllowUnsignedWebhooks {
			log.Warn("GATEWAY_ALLOW_UNSIGNED_WEBHOOKS set, accepting unsigned payment webhooks")
		} else {
			log.Warn("GATEWAY_WEBHOOK_SECRET not set, payment webhooks will be rejected")
		}
	}

	handler := policyhandler.New(service, validator, log,
		policyhandler.WithWebhookSecret(cfg.Gateway.WebhookSecret),
		policyhandler.WithUnsignedWebhooks(cfg.Gateway.AllowUnsignedWebhooks),
		policyhandler.WithMaxUploadBytes(cfg.MaxUploadBytes),
		policyhandler.WithPublicLimit(ratelimit.PerClientIP(limiter, "resolve", cfg.RateLimit.ResolveLimit, cfg.RateLimit.ResolveWindow, log)),
	)
	router := newRouter(cfg, log, handler, checks)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting leasecover", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	expirer := worker.NewExpirer(service, cfg.Policy.ExpirySweepInterval, worker.WithLogger(log))
	g.Go(func() error {
		return ignoreCancel(expirer.Run(gctx))
	})

	if len(cfg.Kafka.Brokers) > 0 && cfg.DatabaseURL != "" {
		activityRelay, closeRelay, err := newRelay(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeRelay()
		g.Go(func() error {
			return ignoreCancel(activityRelay.Run(gctx))
		})
	}

	return g.Wait()
}

// readinessCheck reports whether a backing dependency is reachable.
type readinessCheck func(ctx context.Context) error

func newRouter(cfg config.Server, log *slog.Logger, handler *policyhandler.Handler, checks map[string]readinessCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Timeout(cfg.RequestTimeout))
	r.Use(request.ContentTypeJSON)
	r.Use(platformmetrics.New().Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, failing := http.StatusOK, map[string]string{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				log.WarnContext(r.Context(), "readiness check failed", "dependency", name, "error", err)
				failing[name] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if status != http.StatusOK {
			httputil.WriteJSON(w, status, map[string]any{"status": "unavailable", "failing": failing})
			return
		}
		httputil.WriteJSON(w, status, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	handler.Register(r)
	return r
}

type transactionalStore interface {
	policyservice.Store
	policyservice.StoreTx
}

// openStore returns the Postgres store when DATABASE_URL is set and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (transactionalStore, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return policystore.NewMemory(), nil, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return policystore.NewPostgres(db), db, nil
}

func openStorage(cfg config.Server, log *slog.Logger) (filestore.Storage, error) {
	if cfg.StorageDir == "" {
		log.Warn("STORAGE_DIR not set, keeping uploads in memory")
		return filestore.NewMemory(), nil
	}
	return filestore.NewLocal(cfg.StorageDir)
}

func newNotifier(cfg config.NotifyConfig, log *slog.Logger) notification.Notifier {
	fallback := notification.NewLogNotifier(log)
	if cfg.URL == "" {
		return fallback
	}
	breaker := circuit.New("notifications",
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.SuccessThreshold),
	)
	return notification.NewBreaker(notification.NewHTTPNotifier(cfg.URL, cfg.APIKey, cfg.Timeout), fallback, breaker, log)
}

func newRelay(ctx context.Context, cfg config.Server, log *slog.Logger) (*relay.Relay, func(), error) {
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := relay.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := publisher.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
		publisher.Close()
		pool.Close()
		return nil, nil, err
	}
	log.Info("activity relay enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)

	r := relay.New(relay.NewPostgresSource(pool.Pool), publisher, cfg.Kafka.RelayInterval,
		relay.WithLogger(log),
		relay.WithMetrics(relay.NewMetrics()),
		relay.WithBatchSize(cfg.Kafka.RelayBatch),
	)
	return r, func() {
		publisher.Close()
		pool.Close()
	}, nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
