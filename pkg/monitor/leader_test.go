package monitor

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sla-status-tracking/pkg/config"
	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/metrics"
)

func newTestElection(t *testing.T, podID string) *LeaderElection {
	rdb := setupTestRedis(t)
	cfg := &config.Config{
		PodID:             podID,
		LeaderElectionTTL: 5,
	}
	return NewLeaderElection(rdb, cfg, testLogger(), metrics.NewMetricsWithRegisterer(prometheus.NewRegistry()))
}

func TestLeaderElection_SingleLeader(t *testing.T) {
	ctx := context.Background()

	first := newTestElection(t, "pod-a")
	second := NewLeaderElection(first.rdb, &config.Config{PodID: "pod-b", LeaderElectionTTL: 5}, testLogger(), metrics.NewMetricsWithRegisterer(prometheus.NewRegistry()))

	first.tryBecomeLeader(ctx)
	second.tryBecomeLeader(ctx)

	assert.True(t, first.IsLeader())
	assert.False(t, second.IsLeader())

	holder, err := first.rdb.Get(ctx, constants.LeaderElectionKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "pod-a", holder)

	// renewal keeps the same holder
	first.tryBecomeLeader(ctx)
	assert.True(t, first.IsLeader())
}

func TestLeaderElection_StopResignsLeadership(t *testing.T) {
	ctx := context.Background()

	first := newTestElection(t, "pod-a")
	second := NewLeaderElection(first.rdb, &config.Config{PodID: "pod-b", LeaderElectionTTL: 5}, testLogger(), metrics.NewMetricsWithRegisterer(prometheus.NewRegistry()))

	first.tryBecomeLeader(ctx)
	require.True(t, first.IsLeader())

	first.Stop()
	assert.False(t, first.IsLeader())

	exists, err := first.rdb.Exists(ctx, constants.LeaderElectionKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)

	second.tryBecomeLeader(ctx)
	assert.True(t, second.IsLeader())

	// stopping twice is a no-op
	first.Stop()
}

func TestLeaderElection_LosesLeadershipWhenKeyTaken(t *testing.T) {
	ctx := context.Background()

	le := newTestElection(t, "pod-a")
	le.tryBecomeLeader(ctx)
	require.True(t, le.IsLeader())

	require.NoError(t, le.rdb.Set(ctx, constants.LeaderElectionKey, "pod-z", 0).Err())

	le.tryBecomeLeader(ctx)
	assert.False(t, le.IsLeader())
}
