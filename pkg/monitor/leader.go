package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/config"
	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/metrics"
)

const (
	renewScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("EXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	resignScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

// LeaderElection keeps a single pod responsible for breach scans
type LeaderElection struct {
	rdb      *redis.Client
	config   *config.Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	mu       sync.RWMutex
	isLeader bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewLeaderElection(rdb *redis.Client, config *config.Config, logger *logrus.Logger, metrics *metrics.Metrics) *LeaderElection {
	return &LeaderElection{
		rdb:     rdb,
		config:  config,
		logger:  logger,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
}

func (le *LeaderElection) Start(ctx context.Context) error {
	le.logger.Info("Starting leader election process")

	le.tryBecomeLeader(ctx)
	go le.leaderElectionLoop(ctx)

	return nil
}

func (le *LeaderElection) Stop() {
	le.stopOnce.Do(func() {
		close(le.stopCh)
		if le.IsLeader() {
			le.resignLeadership(context.Background())
		}
	})
}

// IsLeader returns the locally known leadership state
func (le *LeaderElection) IsLeader() bool {
	le.mu.RLock()
	defer le.mu.RUnlock()
	return le.isLeader
}

func (le *LeaderElection) setLeader(leader bool) {
	le.mu.Lock()
	defer le.mu.Unlock()
	le.isLeader = leader
}

func (le *LeaderElection) leaderElectionLoop(ctx context.Context) {
	ticker := time.NewTicker(constants.DefaultLeaderElectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-le.stopCh:
			return
		case <-ticker.C:
			le.tryBecomeLeader(ctx)
		}
	}
}

func (le *LeaderElection) tryBecomeLeader(ctx context.Context) {
	start := time.Now()
	defer func() {
		le.metrics.LeaderElectionDuration.Observe(time.Since(start).Seconds())
	}()

	acquired, err := le.rdb.SetNX(ctx, constants.LeaderElectionKey, le.config.PodID, le.config.LeaderElectionTTLDuration()).Result()
	if err != nil {
		le.logger.WithError(err).Error("Failed to attempt leader election")
		return
	}

	if acquired {
		if !le.IsLeader() {
			le.logger.WithField("pod_id", le.config.PodID).Info("Became leader")
			le.metrics.LeaderChanges.Inc()
			le.setLeader(true)
		}
		return
	}

	// Key already held; renew succeeds only if we are the holder
	le.renewLeadership(ctx)
}

func (le *LeaderElection) renewLeadership(ctx context.Context) {
	result, err := le.rdb.Eval(ctx, renewScript, []string{constants.LeaderElectionKey}, le.config.PodID, le.config.LeaderElectionTTL).Int64()
	if err != nil {
		le.logger.WithError(err).Error("Failed to renew leadership")
		le.setLeader(false)
		return
	}

	wasLeader := le.IsLeader()
	switch {
	case result == 1 && !wasLeader:
		le.logger.Info("Confirmed leadership from Redis")
		le.metrics.LeaderChanges.Inc()
		le.setLeader(true)
	case result == 0 && wasLeader:
		le.logger.Warn("Leadership renewal failed - no longer leader")
		le.setLeader(false)
	}
}

func (le *LeaderElection) resignLeadership(ctx context.Context) {
	if err := le.rdb.Eval(ctx, resignScript, []string{constants.LeaderElectionKey}, le.config.PodID).Err(); err != nil {
		le.logger.WithError(err).Error("Failed to resign leadership")
	} else {
		le.logger.Info("Resigned leadership")
	}
	le.setLeader(false)
}
