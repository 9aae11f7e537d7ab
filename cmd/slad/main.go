package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/config"
	"sla-status-tracking/pkg/handlers"
	"sla-status-tracking/pkg/metrics"
	"sla-status-tracking/pkg/monitor"
	redisClient "sla-status-tracking/pkg/redis"
	"sla-status-tracking/pkg/reports"
	"sla-status-tracking/pkg/server"
	"sla-status-tracking/pkg/sla"
	"sla-status-tracking/pkg/store"
	"sla-status-tracking/pkg/summary"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithField("pod_id", cfg.PodID).Info("Starting SLA status service")

	metrics := metrics.NewMetrics()

	redis, err := redisClient.NewClient(context.Background(), redisClient.DefaultConnectionConfig(cfg.RedisURL, cfg.PodID), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	rdb := redis.GetRedisClient()
	conversationStore := store.NewStore(rdb, logger, metrics)
	evaluator := sla.NewEvaluator()

	summarizer := summary.NewService(
		summary.NewRedisCache(rdb),
		summary.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		summary.Options{
			Model:        cfg.SummaryModel,
			LargeModel:   cfg.SummaryLargeModel,
			SystemPrompt: cfg.SummarySystemPrompt,
		},
		logger,
		metrics,
	)

	monitorService := monitor.NewService(rdb, conversationStore, evaluator, monitor.LogNotifier{Logger: logger}, cfg, logger, metrics)

	handler := handlers.NewHandler(
		conversationStore,
		evaluator,
		reports.NewMetricFilter(cfg.ReportHiddenMetrics),
		summarizer,
		logger,
		metrics,
		monitorService.IsLeader,
	)
	httpServer := server.NewHTTPServer(cfg, handler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitorService.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start breach monitor")
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shutdown HTTP server")
	}
	monitorService.Stop()
	cancel()

	logger.Info("SLA status service shutdown complete")
}
