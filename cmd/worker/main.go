package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"listenline/internal/audit"
	"listenline/internal/billing"
	"listenline/internal/calls"
	"listenline/internal/config"
	"listenline/internal/events"
	"listenline/internal/ledger"
	"listenline/internal/presence"
	"listenline/internal/rates"
	"listenline/internal/reconcile"
	"listenline/internal/worker"
	"listenline/pkg/logger"
	"listenline/pkg/utils"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load() // optional .env for local runs

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "worker")
	slog.SetDefault(log)

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
	presenceStore := presence.NewPostgresStore(db)
	presenceSvc := presence.NewService(presenceStore)
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
			return utils.ReleaseCallSlot(ctx, rdb, "listener_slots:"+listenerID)
		})

	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		finalizer.WithEvents(producer)
	}

	engine := billing.NewEngine(callStore, ledgerSvc, rateSvc, finalizer,
		billing.PercentSplit(cfg.Billing.PlatformFeePercent), log).
		WithCache(cache).
		WithFlags(flags)

	sweeper := reconcile.NewSweeper(callStore, presenceStore, engine, finalizer, log)
	presenceReconciler := presence.NewReconciler(presenceStore, cfg.Worker.InactivityThreshold, log)

	runner := worker.NewRunner(log,
		worker.Job{
			Name:     "billing",
			Interval: cfg.Worker.BillingInterval,
			Run: func(ctx context.Context) error {
				_, err := engine.Run(ctx)
				return err
			},
		},
		worker.Job{
			Name:     "call-sweep",
			Interval: cfg.Worker.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := sweeper.Run(ctx)
				return err
			},
		},
		worker.Job{
			Name:     "presence-sweep",
			Interval: cfg.Worker.PresenceInterval,
			Run: func(ctx context.Context) error {
				_, err := presenceReconciler.Run(ctx)
				return err
			},
		},
	)

	log.Info("worker started",
		"billing_interval", cfg.Worker.BillingInterval.String(),
		"sweep_interval", cfg.Worker.SweepInterval.String(),
		"presence_interval", cfg.Worker.PresenceInterval.String(),
	)
	runner.Start(rootCtx)
	log.Info("worker stopped")
}
