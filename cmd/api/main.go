package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"listenline/internal/audit"
	"listenline/internal/calls"
	"listenline/internal/config"
	"listenline/internal/events"
	"listenline/internal/ledger"
	"listenline/internal/presence"
	"listenline/internal/rates"
	"listenline/internal/reporting"
	"listenline/pkg/logger"
	"listenline/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load() // optional .env for local runs

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	ledgerSvc := ledger.NewService(ledger.NewPostgresStore(db))
	presenceSvc := presence.NewService(presence.NewPostgresStore(db))
	rateSvc := rates.NewService(rates.Chain(
		rates.NewPostgresRepo(db),
		rates.NewMemoryRepo(rates.Defaults(cfg.Billing.AudioRatePerMinute, cfg.Billing.VideoRatePerMinute)),
	))

	flags := audit.NewService(audit.NewPostgresRepo(db))

	callStore := calls.NewPostgresStore(db)
	cache := calls.NewCache(rdb)
	finalizer := calls.NewFinalizer(callStore, ledgerSvc, presenceSvc, log).
		WithCache(cache).
		WithFlags(flags).
		WithSlotReleaser(func(ctx context.Context, listenerID string) error {
			return utils.ReleaseCallSlot(ctx, rdb, listenerSlotKey(listenerID))
		})

	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		finalizer.WithEvents(producer)
	}
	callSvc := calls.NewService(callStore, rateSvc, ledgerSvc, presenceSvc, finalizer, log).
		WithCache(cache).
		WithSlotAcquirer(func(ctx context.Context, listenerID string, ttl time.Duration) (bool, error) {
			return utils.AcquireCallSlot(ctx, rdb, listenerSlotKey(listenerID), 1, ttl)
		})

	reportingSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, handlers(callSvc, ledgerSvc, presenceSvc, reportingSvc))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func listenerSlotKey(listenerID string) string {
	return "listener_slots:" + listenerID
}
