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

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"conveyr/internal/documents"
	"conveyr/internal/escrow/cache"
	"conveyr/internal/escrow/events"
	"conveyr/internal/escrow/handler"
	emetrics "conveyr/internal/escrow/metrics"
	"conveyr/internal/escrow/service"
	"conveyr/internal/escrow/store"
	jwt_token "conveyr/internal/jwt_token"
	"conveyr/internal/payments"
	"conveyr/internal/platform/config"
	"conveyr/internal/platform/httpserver"
	"conveyr/internal/platform/kafka/consumer"
	"conveyr/internal/platform/kafka/producer"
	"conveyr/internal/platform/logger"
	"conveyr/internal/platform/metrics"
	"conveyr/internal/platform/redis"
	"conveyr/pkg/platform/audit"
	auditconsumer "conveyr/pkg/platform/audit/consumer"
	auditmem "conveyr/pkg/platform/audit/store/memory"
	auditworker "conveyr/pkg/platform/audit/worker"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages; everything here is assembly.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ==================== Storage ====================

	var escrowStore store.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		escrowStore = pg
		log.Info("using postgres store")
	} else {
		escrowStore = store.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	// ==================== Payments ====================

	var executor payments.Executor
	if cfg.Payments.BaseURL != "" {
		executor = payments.NewHTTPExecutor(cfg.Payments.BaseURL, cfg.Payments.APIKey)
		log.Info("using settlement provider", "base_url", cfg.Payments.BaseURL)
	} else {
		executor = payments.NewFake()
		log.Warn("PAYMENTS_BASE_URL not set, using fake payment executor")
	}

	// ==================== Audit trail ====================

	auditPublisher, auditInbox := audit.NewPublisher(1024)
	auditStore := auditmem.NewInMemoryStore()
	worker := auditworker.NewWorker(auditStore, auditInbox)

	// ==================== Service options ====================

	escrowMetrics := emetrics.New()

	// Evidence references are opaque to the engine; without a document store
	// in front of it, accept any non-blank reference.
	docResolver := documents.NewInMemory()
	docResolver.AcceptAll = true

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(escrowMetrics),
		service.WithAuditPublisher(auditPublisher),
		service.WithDocumentResolver(docResolver),
	}
	if cfg.ReleaseRequestTTL > 0 {
		opts = append(opts, service.WithReleaseRequestTTL(cfg.ReleaseRequestTTL))
	}

	if cfg.Redis.URL != "" {
		redisClient, err := redis.New(cfg.Redis)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		opts = append(opts, service.WithSummaryCache(
			cache.NewRedisSummaryCache(redisClient.Client, cfg.SummaryCacheTTL)))
		log.Info("summary cache enabled", "ttl", cfg.SummaryCacheTTL)
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		prod, err := producer.New(cfg.Kafka.Brokers,
			[]string{cfg.Kafka.EventTopic, cfg.Kafka.AuditTopic}, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer prod.Close()
		opts = append(opts, service.WithEventPublisher(
			events.NewKafkaPublisher(prod, cfg.Kafka.EventTopic, cfg.Kafka.AuditTopic)))

		router := auditconsumer.NewRouter(log, auditconsumer.NewOpsHandler(auditStore, log))
		router.Register(cfg.Kafka.AuditTopic, auditconsumer.NewComplianceHandler(auditStore, log))
		cons, err := consumer.New(cfg.Kafka.Brokers, "conveyr-audit",
			[]string{cfg.Kafka.EventTopic, cfg.Kafka.AuditTopic}, router, log)
		if err != nil {
			log.Error("connect kafka consumer", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return cons.Run(gctx) })
		log.Info("kafka publishing enabled", "brokers", cfg.Kafka.Brokers)
	}

	svc := service.New(escrowStore, executor, opts...)

	// ==================== HTTP ====================

	httpMetrics := metrics.New()
	jwtService := jwt_token.NewJWTService(cfg.JWTSigningKey, "conveyr", "conveyr-api")
	escrowHandler := handler.New(svc, log, httpMetrics,
		jwt_token.NewJWTServiceAdapter(jwtService), cfg.AdminToken)

	router := chi.NewRouter()
	escrowHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		log.Info("starting conveyr", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
