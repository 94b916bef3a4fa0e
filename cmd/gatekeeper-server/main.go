package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/communitygate/gatekeeper/internal/config"
	"github.com/communitygate/gatekeeper/internal/db"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/service"
	sqlitestore "github.com/communitygate/gatekeeper/internal/gatekeeper/store/sqlite"
	"github.com/communitygate/gatekeeper/internal/httpapi"
	"github.com/communitygate/gatekeeper/internal/platform"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{Identifier: cfg.Identifier}); err != nil {
			logger.Error("seed dev data", "error", err)
			os.Exit(1)
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	recordStore := sqlitestore.NewRecordStore(conn, writer)
	platformClient := platform.NewRESTClient(cfg.GatewayBaseURL, cfg.GatewayToken)

	issuer := service.NewIssuer(recordStore, cfg, logger)
	evaluator := service.NewEvaluator(recordStore, cfg, logger)
	reconciler := service.NewReconciler(recordStore, platformClient, cfg, logger)
	joinService := service.NewJoinService(evaluator, reconciler, platformClient, cfg, logger)

	pruner := service.NewRecordPruner(recordStore, service.PrunerConfig{
		RetentionDays: cfg.RetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTPAddr,
		Config:      cfg,
		Issuer:      issuer,
		JoinService: joinService,
		Platform:    platformClient,
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Error("server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
