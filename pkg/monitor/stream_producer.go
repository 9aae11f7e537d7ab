package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/models"
)

// StreamPublisher appends breach events to a Redis stream
type StreamPublisher struct {
	rdb    *redis.Client
	group  string
	logger *logrus.Logger
}

func NewStreamPublisher(rdb *redis.Client, group string, logger *logrus.Logger) *StreamPublisher {
	return &StreamPublisher{
		rdb:    rdb,
		group:  group,
		logger: logger,
	}
}

// EnsureConsumerGroup creates the consumer group and stream if missing
func (sp *StreamPublisher) EnsureConsumerGroup(ctx context.Context) error {
	err := sp.rdb.XGroupCreateMkStream(ctx, constants.BreachEventsStream, sp.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	sp.logger.WithField("consumer_group", sp.group).Info("Consumer group ready")
	return nil
}

func (sp *StreamPublisher) Publish(ctx context.Context, event models.SLABreachEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal breach event: %w", err)
	}

	messageID, err := sp.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: constants.BreachEventsStream,
		Values: encodeBreachEvent(event, eventData),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add message to stream: %w", err)
	}

	sp.logger.WithFields(logrus.Fields{
		"conversation_id": event.ConversationID,
		"type":            event.Type,
		"message_id":      messageID,
	}).Debug("Published breach event to stream")

	return nil
}

func encodeBreachEvent(event models.SLABreachEvent, eventData []byte) map[string]interface{} {
	return map[string]interface{}{
		"event_id":        event.EventID,
		"conversation_id": event.ConversationID,
		"type":            string(event.Type),
		"due_at":          event.DueAt.Unix(),
		"threshold":       event.Threshold,
		"detected_at":     event.DetectedAt.Unix(),
		"attempt":         event.Attempt,
		"event_data":      string(eventData),
	}
}
