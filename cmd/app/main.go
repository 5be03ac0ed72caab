// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-channel-subscription/internal/config"
	pg "telegram-channel-subscription/internal/infra/db/postgres"
	"telegram-channel-subscription/internal/infra/logging"
	"telegram-channel-subscription/internal/infra/metrics"
	red "telegram-channel-subscription/internal/infra/redis"
	"telegram-channel-subscription/internal/infra/sched"
	tele "telegram-channel-subscription/internal/infra/telegram"
	"telegram-channel-subscription/internal/infra/web"
	"telegram-channel-subscription/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed security)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional; only the sweep lease uses it) ----
	var locker usecase.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; sweep lease disabled, using in-process guard only")
	}

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	logRepo := pg.NewDeliveryLogRepo(pool)

	// ---- Telegram ----
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, userRepo, cfg.Recovery.DispatchTimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	notifier := tele.NewAdminAlerter(botAdapter, cfg.Bot.AdminIDs, logger)

	// ---- Use cases ----
	recoveryUC := usecase.NewRecoveryUseCase(
		payRepo, userRepo, planRepo, logRepo,
		botAdapter, notifier, locker,
		usecase.RecoveryOptions{
			MaxAttempts: cfg.Recovery.MaxAttempts,
			BaseDelay:   cfg.Recovery.BaseDelay,
			MaxDelay:    cfg.Recovery.MaxDelay,
			ItemDelay:   cfg.Recovery.ItemDelay,
			StaleAfter:  cfg.Recovery.StaleAfter,
			BatchLimit:  cfg.Recovery.BatchLimit,
			LockTTL:     cfg.Recovery.LockTTL,
		},
		cfg.Recovery.DispatchTimeout,
		logger,
	)
	botAdapter.SetRecovery(recoveryUC)

	paymentUC := usecase.NewPaymentUseCase(payRepo, planRepo, txm, recoveryUC, logger)
	statsUC := usecase.NewStatsUseCase(payRepo, logRepo)

	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Sweep worker ----
	worker := sched.NewDeliveryWorker(cfg.Recovery.SweepInterval, cfg.Recovery.RunOnStartup, recoveryUC, logger)
	if cfg.Recovery.Enabled {
		worker.Start(ctx)
	} else {
		logger.Warn().Msg("recovery sweeps disabled; manual triggers still available")
	}

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	srv := web.NewServer(recoveryUC, statsUC, paymentUC, worker, auth, cfg.Admin.Password, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("admin api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	if cfg.Recovery.Enabled {
		worker.Stop()
	}
	botAdapter.StopPolling()
	cancel()
}
