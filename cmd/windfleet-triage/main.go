package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"windfleet-triage/internal/cache"
	"windfleet-triage/internal/config"
	"windfleet-triage/internal/consumer"
	"windfleet-triage/internal/database"
	"windfleet-triage/internal/logger"
	"windfleet-triage/internal/redisx"
	"windfleet-triage/internal/service"
	"windfleet-triage/internal/worker"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "windfleet-triage")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redisx.NewClient(&cfg.Redis)
	defer redisClient.Close()
	if err := redisx.Ping(ctx, redisClient); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	triage := service.NewTriageService(db, redisClient, cfg, log)

	recCache := cache.NewRecommendationCache(
		redisClient,
		cfg.Triage.Cache.KeyPrefix,
		cfg.Triage.Cache.KeySuffix,
		time.Duration(cfg.Triage.Cache.TTL)*time.Second,
		log,
	)
	var wg sync.WaitGroup

	reconciler := worker.NewSnoozeReconciler(db, triage, recCache, cfg, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Start(ctx)
	}()

	alarmConsumer := consumer.NewAlarmConsumer(redisClient, triage, cfg, log)
	consumerErrChan := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := alarmConsumer.Start(ctx); err != nil && err != context.Canceled {
			consumerErrChan <- err
		}
	}()

	log.Info("windfleet-triage started",
		zap.String("stream", cfg.Triage.Stream.Name),
		zap.Int("reconcile_interval_s", cfg.Triage.ReconcileInterval))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))
	case err := <-consumerErrChan:
		log.Error("Consumer error, shutting down", zap.Error(err))
	}

	// Let in-flight consumer and reconciler work finish before exiting.
	cancel()
	wg.Wait()

	log.Info("windfleet-triage stopped")
}
