package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"jobspider/internal/cache"
	"jobspider/internal/cache/redis"
	"jobspider/internal/config"
	"jobspider/internal/dataset"
	"jobspider/internal/fetch"
	"jobspider/internal/messaging"
	"jobspider/internal/spider"
	"jobspider/internal/targets"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	mode := flag.String("mode", spider.ModeSearch, "crawl mode: search or list")
	targetsPath := flag.String("targets", "", "path to the targets CSV (overrides TARGETS_PATH)")
	outPath := flag.String("out", "", "path to the output CSV")
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
	if *targetsPath != "" {
		cfg.TargetsPath = *targetsPath
	}
	if *outPath == "" {
		logger.Fatal("-out is required")
	}

	logger.Info("starting spider",
		zap.String("mode", *mode),
		zap.String("targets", cfg.TargetsPath),
		zap.String("out", *outPath))

	targetURLs, err := targets.Load(cfg.TargetsPath)
	if err != nil {
		logger.Fatal("failed to load targets", zap.Error(err))
	}

	writer, err := dataset.NewWriter(*outPath)
	if err != nil {
		logger.Fatal("failed to open output file", zap.Error(err))
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Warn("failed to close output file", zap.Error(err))
		}
	}()

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.PublishEvents {
		publisher, err = messaging.NewPublisher(logger, cfg)
		if err != nil {
			logger.Fatal("failed to create NATS publisher", zap.Error(err))
		}
	}
	defer publisher.Close()

	pageCache := redis.New(cache.Options{
		RedisURL:      cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		DefaultTTL:    cfg.CacheTTL,
	})
	defer func() {
		if err := pageCache.Close(); err != nil {
			logger.Warn("failed to close cache", zap.Error(err))
		}
	}()

	client := fetch.NewClient(logger, cfg, pageCache)
	s := spider.New(client, publisher, writer, logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()

	stats, err := s.Run(ctx, *mode, targetURLs)
	if shutdownRequested(err) {
		logger.Info("spider run cancelled")
		return
	}
	if err != nil {
		logger.Fatal("spider run failed", zap.Error(err))
	}

	logger.Info("spider run complete",
		zap.Int32("pages_fetched", stats.PagesFetched),
		zap.Int32("postings_written", stats.PostingsWritten),
		zap.Int32("failures", stats.Failures))
}

// shutdownRequested reports whether a run error is the result of a signal
// cancelling the context rather than a real failure.
func shutdownRequested(err error) bool {
	return errors.Is(err, context.Canceled)
}
