package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"storegate/internal/bulk"
	"storegate/internal/client"
	"storegate/internal/guardrail"
	"storegate/internal/idempotency"
	"storegate/internal/plan"
	"storegate/internal/platform/config"
	"storegate/internal/platform/httpserver"
	"storegate/internal/platform/logger"
	"storegate/internal/platform/metrics"
	"storegate/internal/platform/redis"
	"storegate/internal/session"
	"storegate/internal/token"
	httptransport "storegate/internal/transport/http"
	"storegate/pkg/platform/audit"
	auditfile "storegate/pkg/platform/audit/store/file"
	auditpg "storegate/pkg/platform/audit/store/postgres"
	"storegate/pkg/platform/audit/publisher"
	auditworker "storegate/pkg/platform/audit/worker"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services; everything here is construction and
// shutdown ordering.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.AdminKeyHash == "" {
		log.Error("STOREGATE_ADMIN_KEY_HASH is required; generate one with the hashkey tool")
		os.Exit(1)
	}

	m := metrics.New()
	sessions := session.NewRegistry()
	guards := guardrail.New(cfg.Guardrails)
	throttle := guardrail.NewPurgeThrottle(cfg.Guardrails.PurgeMaxPerWindow, cfg.Guardrails.PurgeWindow)
	tokens := token.NewService(cfg.JWTSigningKey, "storegate", cfg.TokenTTL)
	ledger := idempotency.Load(cfg.LedgerPath, idempotency.WithLogger(log))
	platformClient := client.New(client.WithLogger(log))

	var plans plan.Store
	rdb, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		plans = plan.NewRedisStore(rdb.Client, cfg.PlanTTL)
		log.Info("plan store: redis")
	} else {
		plans = plan.NewInMemoryStore(cfg.PlanTTL)
		log.Info("plan store: in-memory")
	}

	fileStore, err := auditfile.Open(cfg.AuditFilePath)
	if err != nil {
		log.Error("could not open audit log", "path", cfg.AuditFilePath, "error", err)
		os.Exit(1)
	}
	defer fileStore.Close()

	auditStores := audit.Tee{fileStore}
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("could not open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgStore := auditpg.New(db)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			log.Error("could not ensure audit schema", "error", err)
			os.Exit(1)
		}
		auditStores = append(auditStores, pgStore)
		log.Info("audit store: file + postgres")
	}

	auditInbox := make(chan audit.Event, 256)
	workerOpts := []auditworker.Option{auditworker.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := publisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("could not connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		workerOpts = append(workerOpts, auditworker.WithPublisher(kafka))
		log.Info("audit publisher: kafka", "topic", cfg.KafkaTopic)
	}
	worker := auditworker.New(auditStores, auditInbox, workerOpts...)

	bulkSvc := bulk.New(sessions, plans, ledger, guards, platformClient,
		bulk.WithLogger(log),
		bulk.WithMetrics(m),
		bulk.WithAuditSink(auditInbox),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      m,
		Sessions:     sessions,
		Bulk:         bulkSvc,
		Tokens:       tokens,
		Platform:     platformClient,
		Throttle:     throttle,
		AdminKeyHash: cfg.AdminKeyHash,
		Audit:        auditInbox,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("storegate listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Janitor: the stores also evict lazily, but the sweep keeps the expiry
	// metric honest on idle deployments.
	group.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				expired, err := plans.Cleanup(ctx)
				if err != nil {
					log.Warn("plan cleanup failed", "error", err)
					continue
				}
				if expired > 0 {
					m.PlansExpired.Add(float64(expired))
				}
			}
		}
	})

	if err := group.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("storegate stopped")
}
