package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/config"
	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/metrics"
	"sla-status-tracking/pkg/sla"
	"sla-status-tracking/pkg/store"
)

// Service runs the background side of breach monitoring: leader election,
// periodic detection, event consumption and stale state cleanup.
type Service struct {
	config         *config.Config
	logger         *logrus.Logger
	store          *store.Store
	leaderElection *LeaderElection
	publisher      *StreamPublisher
	detector       *Detector
	consumer       *StreamConsumer
	stopCh         chan struct{}
}

func NewService(rdb *redis.Client, st *store.Store, evaluator *sla.Evaluator, notifier Notifier, config *config.Config, logger *logrus.Logger, metrics *metrics.Metrics) *Service {
	publisher := NewStreamPublisher(rdb, config.ConsumerGroupName, logger)

	return &Service{
		config:         config,
		logger:         logger,
		store:          st,
		leaderElection: NewLeaderElection(rdb, config, logger, metrics),
		publisher:      publisher,
		detector:       NewDetector(st, publisher, evaluator, logger, metrics),
		consumer:       NewStreamConsumer(rdb, config, notifier, logger, metrics),
		stopCh:         make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting SLA breach monitor")

	if err := s.publisher.EnsureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("failed to prepare breach stream: %w", err)
	}

	if err := s.leaderElection.Start(ctx); err != nil {
		return fmt.Errorf("failed to start leader election: %w", err)
	}

	// every pod consumes, only the leader detects
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream consumer: %w", err)
	}

	go s.detector.Run(ctx, s.config.CheckInterval(), s.leaderElection.IsLeader, s.stopCh)
	go s.cleanupRoutine(ctx)

	s.logger.WithField("pod_id", s.config.PodID).Info("SLA breach monitor started")
	return nil
}

func (s *Service) Stop() {
	s.logger.Info("Stopping SLA breach monitor")

	close(s.stopCh)
	s.consumer.Stop()
	s.leaderElection.Stop()

	s.logger.Info("SLA breach monitor stopped")
}

func (s *Service) IsLeader() bool {
	return s.leaderElection.IsLeader()
}

func (s *Service) cleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(constants.DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.leaderElection.IsLeader() {
				continue
			}
			if _, err := s.store.CleanupStale(ctx, s.config.StaleConversationAge()); err != nil {
				s.logger.WithError(err).Error("Failed to cleanup stale conversations")
			}
		}
	}
}
