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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	allocationmetrics "quorum/internal/allocation/metrics"
	"quorum/internal/allocation/store/ledger"
	assemblyhandler "quorum/internal/assembly/handler"
	assemblyservice "quorum/internal/assembly/service"
	assemblystore "quorum/internal/assembly/store"
	delegatehandler "quorum/internal/delegate/handler"
	delegatemetrics "quorum/internal/delegate/metrics"
	"quorum/internal/delegate/personlock"
	delegateservice "quorum/internal/delegate/service"
	delegatestore "quorum/internal/delegate/store/delegate"
	"quorum/internal/delegate/store/mirror"
	"quorum/internal/delegate/store/profile"
	"quorum/internal/platform/config"
	"quorum/internal/platform/httpserver"
	"quorum/internal/platform/kafka"
	"quorum/internal/platform/logger"
	"quorum/internal/platform/metrics"
	"quorum/internal/platform/middleware"
	"quorum/internal/platform/outbox"
	"quorum/internal/platform/postgres"
	"quorum/internal/platform/redis"
	"quorum/internal/quota"
	reporthandler "quorum/internal/report/handler"
	reportservice "quorum/internal/report/service"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/audit/publisher"
	auditmemory "quorum/pkg/platform/audit/store/memory"
	auditpostgres "quorum/pkg/platform/audit/store/postgres"
	"quorum/pkg/platform/httputil"
)

const (
	requestTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
	auditBuffer     = 1024
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat)
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// backend holds the storage-dependent pieces of the process.
type backend struct {
	db        *sql.DB
	events    assemblyservice.Store
	delegates *delegateDeps
	ledger    ledgerBackend
	tx        delegateservice.TxRunner
	audit     audit.Store
	async     bool
}

type delegateDeps struct {
	roster   delegateservice.DelegateStore
	profiles delegateservice.ProfileStore
	mirrors  mirrorStore
}

type mirrorStore interface {
	delegateservice.MirrorStore
	reportservice.MirrorLister
}

type ledgerBackend interface {
	delegateservice.Ledger
	reportservice.SnapshotReader
}

func serve(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	schema, err := quota.Load(cfg.SchemaPath)
	if err != nil {
		return err
	}
	log.Info("quota schema loaded",
		"categories", len(schema.Categories()),
		"open_category", schema.OpenCategory().String(),
		"overridden_states", len(schema.OverriddenStates()),
	)

	reg := metrics.NewRegistry()
	httpMetrics := metrics.New(reg)
	allocMetrics := allocationmetrics.New(reg)

	b, err := openBackend(ctx, cfg, schema, allocMetrics, log)
	if err != nil {
		return err
	}
	if b.db != nil {
		defer b.db.Close()
	}

	pubOpts := []publisher.Option{publisher.WithLogger(log)}
	if b.async {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(auditBuffer))
	}
	auditPublisher := publisher.NewPublisher(b.audit, pubOpts...)
	defer func() {
		if err := auditPublisher.Close(); err != nil {
			log.Error("failed to flush audit publisher", "error", err)
		}
	}()

	locker, redisClient, err := openLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	events := assemblyservice.New(b.events, b.delegates.roster,
		assemblyservice.WithLogger(log),
		assemblyservice.WithAuditPublisher(auditPublisher),
	)
	delegates, err := delegateservice.New(delegateservice.Deps{
		Delegates: b.delegates.roster,
		Profiles:  b.delegates.profiles,
		Mirrors:   b.delegates.mirrors,
		Ledger:    b.ledger,
		Events:    events,
		Locker:    locker,
	},
		delegateservice.WithLogger(log),
		delegateservice.WithAuditPublisher(auditPublisher),
		delegateservice.WithMetrics(delegatemetrics.New(reg)),
		delegateservice.WithTx(b.tx),
	)
	if err != nil {
		return err
	}
	reports, err := reportservice.New(schema, b.ledger, events, b.delegates.mirrors, reportservice.WithLogger(log))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log, httpMetrics))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))
	r.Get("/healthz", healthHandler(b.db, redisClient))
	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(requestTimeout))
		api.Use(middleware.ContentTypeJSON)
		assemblyhandler.New(events, log).Register(api)
		delegatehandler.New(delegates, log).Register(api)
		reporthandler.New(reports, log).Register(api)
	})

	g, gctx := errgroup.WithContext(ctx)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			return err
		}
		worker := outbox.NewWorker(outbox.NewPostgresStore(b.db), producer,
			outbox.WithLogger(log),
			outbox.WithInterval(cfg.Kafka.OutboxInterval),
			outbox.WithBatchSize(cfg.Kafka.OutboxBatch),
			outbox.WithRegisterer(reg),
		)
		g.Go(func() error {
			return worker.Run(gctx)
		})
		log.Info("outbox relay enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	srv := httpserver.New(cfg.Addr, r)
	g.Go(func() error {
		log.Info("starting quorum", "addr", cfg.Addr, "postgres", cfg.UsesPostgres(), "redis_lock", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openBackend selects PostgreSQL when a database URL is configured and the
// in-memory stores otherwise.
func openBackend(ctx context.Context, cfg config.Server, schema *quota.Schema, m *allocationmetrics.Metrics, log *slog.Logger) (*backend, error) {
	if !cfg.UsesPostgres() {
		return &backend{
			events: assemblystore.NewInMemory(),
			delegates: &delegateDeps{
				roster:   delegatestore.NewInMemory(),
				profiles: profile.NewInMemory(),
				mirrors:  mirror.NewInMemory(),
			},
			ledger: ledger.NewInMemory(schema, ledger.WithMetrics(m)),
			audit:  auditmemory.NewInMemoryStore(),
			async:  true,
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		log.Info("migrations applied", "names", applied)
	}
	return &backend{
		db:     db,
		events: assemblystore.NewPostgres(db),
		delegates: &delegateDeps{
			roster:   delegatestore.NewPostgres(db),
			profiles: profile.NewPostgres(db),
			mirrors:  mirror.NewPostgres(db),
		},
		ledger: ledger.NewPostgres(db, schema, m),
		tx:     postgres.NewTxRunner(db),
		audit:  auditpostgres.New(db),
	}, nil
}

// openLocker returns the Redis person lock when Redis is configured, so that
// several replicas serialize on the same person. The returned client is nil
// otherwise.
func openLocker(ctx context.Context, cfg config.Server, log *slog.Logger) (personlock.Locker, *redis.Client, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return personlock.NewKeyed(), nil, nil
	}
	return personlock.NewRedis(client.Client, cfg.Redis.LockTTL, personlock.WithLogger(log)), client, nil
}

func healthHandler(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "database unavailable"))
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "redis unavailable"))
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
