package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/metrics"
	"sla-status-tracking/pkg/models"
)

// ErrNotTracked is returned when a conversation has no SLA state stored
var ErrNotTracked = errors.New("conversation not tracked")

// Store keeps SLA assignments and conversation snapshots in Redis.
// Every write bumps the conversation's score in the tracked set to the
// write time so stale conversations can be swept.
type Store struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewStore(rdb *redis.Client, logger *logrus.Logger, metrics *metrics.Metrics) *Store {
	return &Store{
		rdb:     rdb,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *Store) observe(operation string, start time.Time) {
	s.metrics.RedisOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SaveAssignment stores the due timestamps applied to a conversation
func (s *Store) SaveAssignment(ctx context.Context, conversationID string, applied models.AppliedSLA) error {
	defer s.observe("save_assignment", time.Now())

	if err := s.write(ctx, constants.SLAAssignmentsKey, conversationID, applied, true); err != nil {
		s.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to save SLA assignment")
		return fmt.Errorf("failed to save SLA assignment: %w", err)
	}

	s.logger.WithField("conversation_id", conversationID).Debug("Saved SLA assignment")
	return nil
}

// SaveSnapshot stores the latest response state of a conversation
func (s *Store) SaveSnapshot(ctx context.Context, conversationID string, snapshot models.ConversationSnapshot) error {
	defer s.observe("save_snapshot", time.Now())

	if err := s.write(ctx, constants.ConversationSnapshotsKey, conversationID, snapshot, false); err != nil {
		s.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to save conversation snapshot")
		return fmt.Errorf("failed to save conversation snapshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"status":          snapshot.Status,
	}).Debug("Saved conversation snapshot")
	return nil
}

// write stores value under hashKey and refreshes tracking in one pipeline.
// New due timestamps clear breach markers so the new deadlines can be notified.
func (s *Store) write(ctx context.Context, hashKey, conversationID string, value interface{}, resetBreaches bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", hashKey, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, hashKey, conversationID, data)
	pipe.ZAdd(ctx, constants.TrackedConversationsKey, &redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: conversationID,
	})
	if resetBreaches {
		pipe.HDel(ctx, constants.BreachStatesKey, breachFields(conversationID)...)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// GetAssignment returns nil without error when no assignment is stored
func (s *Store) GetAssignment(ctx context.Context, conversationID string) (*models.AppliedSLA, error) {
	defer s.observe("get_assignment", time.Now())

	var applied models.AppliedSLA
	found, err := s.read(ctx, constants.SLAAssignmentsKey, conversationID, &applied)
	if err != nil || !found {
		return nil, err
	}
	return &applied, nil
}

// GetSnapshot returns nil without error when no snapshot is stored
func (s *Store) GetSnapshot(ctx context.Context, conversationID string) (*models.ConversationSnapshot, error) {
	defer s.observe("get_snapshot", time.Now())

	var snapshot models.ConversationSnapshot
	found, err := s.read(ctx, constants.ConversationSnapshotsKey, conversationID, &snapshot)
	if err != nil || !found {
		return nil, err
	}
	return &snapshot, nil
}

// Load returns both halves of a conversation's SLA state. Either may be nil.
func (s *Store) Load(ctx context.Context, conversationID string) (*models.AppliedSLA, *models.ConversationSnapshot, error) {
	applied, err := s.GetAssignment(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := s.GetSnapshot(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return applied, snapshot, nil
}

func (s *Store) read(ctx context.Context, hashKey, conversationID string, dest interface{}) (bool, error) {
	data, err := s.rdb.HGet(ctx, hashKey, conversationID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", hashKey, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("invalid %s entry for %s: %w", hashKey, conversationID, err)
	}
	return true, nil
}

// Untrack removes all SLA state for a conversation
func (s *Store) Untrack(ctx context.Context, conversationID string) error {
	defer s.observe("untrack", time.Now())

	pipe := s.rdb.TxPipeline()
	removed := pipe.ZRem(ctx, constants.TrackedConversationsKey, conversationID)
	pipe.HDel(ctx, constants.SLAAssignmentsKey, conversationID)
	pipe.HDel(ctx, constants.ConversationSnapshotsKey, conversationID)
	pipe.HDel(ctx, constants.BreachStatesKey, breachFields(conversationID)...)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to untrack conversation: %w", err)
	}

	if removed.Val() == 0 {
		return ErrNotTracked
	}

	s.logger.WithField("conversation_id", conversationID).Debug("Untracked conversation")
	return nil
}

// TrackedConversations returns the IDs of all tracked conversations
func (s *Store) TrackedConversations(ctx context.Context) ([]string, error) {
	defer s.observe("list_tracked", time.Now())

	ids, err := s.rdb.ZRange(ctx, constants.TrackedConversationsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked conversations: %w", err)
	}
	return ids, nil
}

// TrackedCount returns the current number of tracked conversations
func (s *Store) TrackedCount(ctx context.Context) (int64, error) {
	defer s.observe("tracked_count", time.Now())

	count, err := s.rdb.ZCard(ctx, constants.TrackedConversationsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get tracked conversations count: %w", err)
	}
	return count, nil
}

// CleanupStale removes conversations whose state has not changed within maxAge
func (s *Store) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	defer s.observe("cleanup_stale", time.Now())

	cutoff := time.Now().Add(-maxAge).UnixMilli()

	ids, err := s.rdb.ZRangeByScore(ctx, constants.TrackedConversationsKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to find stale conversations: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if err := s.Untrack(ctx, id); err != nil && !errors.Is(err, ErrNotTracked) {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed_count": removed,
			"max_age":       maxAge,
		}).Info("Cleaned up stale conversations")
	}

	return removed, nil
}

// MarkBreached records that a breach of slaType has been notified
func (s *Store) MarkBreached(ctx context.Context, conversationID string, slaType models.SLAType, detectedAt time.Time) error {
	defer s.observe("mark_breached", time.Now())

	err := s.rdb.HSet(ctx, constants.BreachStatesKey, breachField(conversationID, slaType), detectedAt.Unix()).Err()
	if err != nil {
		return fmt.Errorf("failed to mark breach: %w", err)
	}
	return nil
}

// IsBreachNotified reports whether a breach of slaType was already notified
func (s *Store) IsBreachNotified(ctx context.Context, conversationID string, slaType models.SLAType) (bool, error) {
	defer s.observe("get_breach_state", time.Now())

	exists, err := s.rdb.HExists(ctx, constants.BreachStatesKey, breachField(conversationID, slaType)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to get breach state: %w", err)
	}
	return exists, nil
}

func breachField(conversationID string, slaType models.SLAType) string {
	return conversationID + ":" + string(slaType)
}

func breachFields(conversationID string) []string {
	return []string{
		breachField(conversationID, models.SLATypeFirstResponse),
		breachField(conversationID, models.SLATypeNextResponse),
		breachField(conversationID, models.SLATypeResolution),
	}
}
