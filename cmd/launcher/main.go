package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobspider/internal/config"
	"jobspider/internal/launch"
	"jobspider/internal/scheduler"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Printed verbatim on any setup failure; scripts grep for it.
const setupFailedMsg = "error: spider launch setup failed"

func main() {
	daemon := flag.Bool("daemon", false, "keep running and launch one crawl run per interval")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("failed to sync logger: %v", err)
		}
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting launcher",
		zap.String("output_root", cfg.OutputRoot),
		zap.String("spider_command", cfg.SpiderCommand),
		zap.Strings("spider_modes", cfg.SpiderModes),
		zap.Bool("daemon", *daemon))

	launcher := launch.NewLauncher(logger, cfg)

	if !*daemon {
		if err := launcher.RunOnce(context.Background(), time.Now()); err != nil {
			logger.Error("launch failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, setupFailedMsg)
			os.Exit(1)
		}
		// Children keep running after we exit; their failures are
		// theirs alone.
		return
	}

	sched := scheduler.New(launcher, logger, cfg.RunInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler failed", zap.Error(err))
		}
	}()

	logger.Info("launcher daemon started", zap.Duration("interval", cfg.RunInterval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	sched.Stop()
	cancel()
	logger.Info("shutdown complete")
}
