package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/config"
	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/metrics"
	"sla-status-tracking/pkg/models"
)

// Notifier delivers a breach alert to agents
type Notifier interface {
	Notify(ctx context.Context, event models.SLABreachEvent) error
}

// LogNotifier writes breach alerts to the service log
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) Notify(ctx context.Context, event models.SLABreachEvent) error {
	n.Logger.WithFields(logrus.Fields{
		"conversation_id": event.ConversationID,
		"type":            event.Type,
		"due_at":          event.DueAt,
		"overdue_by":      event.Threshold,
		"attempt":         event.Attempt,
	}).Warn("SLA missed")
	return nil
}

// StreamConsumer reads breach events from the consumer group and notifies
type StreamConsumer struct {
	rdb          *redis.Client
	config       *config.Config
	logger       *logrus.Logger
	metrics      *metrics.Metrics
	notifier     Notifier
	consumerName string
	minIdle      time.Duration
	stopCh       chan struct{}
}

func NewStreamConsumer(rdb *redis.Client, config *config.Config, notifier Notifier, logger *logrus.Logger, metrics *metrics.Metrics) *StreamConsumer {
	return &StreamConsumer{
		rdb:          rdb,
		config:       config,
		logger:       logger,
		metrics:      metrics,
		notifier:     notifier,
		consumerName: fmt.Sprintf("consumer-%s", config.PodID),
		minIdle:      constants.DefaultPendingMinIdle,
		stopCh:       make(chan struct{}),
	}
}

func (sc *StreamConsumer) Start(ctx context.Context) error {
	sc.logger.WithField("consumer_name", sc.consumerName).Info("Starting stream consumer")

	go sc.consumeLoop(ctx)
	go sc.pendingMessagesRecovery(ctx)

	return nil
}

func (sc *StreamConsumer) Stop() {
	close(sc.stopCh)
}

func (sc *StreamConsumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		default:
			sc.consumeMessages(ctx)
		}
	}
}

func (sc *StreamConsumer) consumeMessages(ctx context.Context) {
	streams, err := sc.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    sc.config.ConsumerGroupName,
		Consumer: sc.consumerName,
		Streams:  []string{constants.BreachEventsStream, ">"},
		Count:    10,
		Block:    1 * time.Second,
	}).Result()

	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			sc.logger.WithError(err).Error("Failed to read from stream")
			time.Sleep(time.Second)
		}
		return
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			sc.processMessage(ctx, message, 1)
		}
	}
}

// processMessage notifies and acks one event. deliveries is the group's
// delivery count for the message; zero keeps the attempt that was published.
func (sc *StreamConsumer) processMessage(ctx context.Context, message redis.XMessage, deliveries int64) {
	event, err := parseBreachEvent(message)
	if err != nil {
		sc.logger.WithError(err).WithField("message_id", message.ID).Error("Failed to parse breach event")
		sc.metrics.BreachEventsProcessed.WithLabelValues("parse_error").Inc()
		// unparseable messages would never succeed, so drop them
		sc.acknowledgeMessage(ctx, message.ID)
		return
	}
	if deliveries > 0 {
		event.Attempt = int(deliveries)
	}

	if err := sc.notifier.Notify(ctx, *event); err != nil {
		sc.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": event.ConversationID,
			"type":            event.Type,
			"message_id":      message.ID,
		}).Error("Failed to send breach notification")
		sc.metrics.BreachEventsProcessed.WithLabelValues("notification_error").Inc()
		// left pending for reclaim
		return
	}

	if err := sc.acknowledgeMessage(ctx, message.ID); err != nil {
		sc.logger.WithError(err).WithField("message_id", message.ID).Error("Failed to acknowledge message")
		return
	}

	sc.metrics.BreachEventsProcessed.WithLabelValues("success").Inc()
}

func (sc *StreamConsumer) acknowledgeMessage(ctx context.Context, messageID string) error {
	return sc.rdb.XAck(ctx, constants.BreachEventsStream, sc.config.ConsumerGroupName, messageID).Err()
}

func (sc *StreamConsumer) pendingMessagesRecovery(ctx context.Context) {
	ticker := time.NewTicker(constants.DefaultPendingReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		case <-ticker.C:
			sc.processPendingMessages(ctx)
		}
	}
}

func (sc *StreamConsumer) processPendingMessages(ctx context.Context) {
	messages, _, err := sc.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   constants.BreachEventsStream,
		Group:    sc.config.ConsumerGroupName,
		Consumer: sc.consumerName,
		MinIdle:  sc.minIdle,
		Count:    10,
		Start:    "0-0",
	}).Result()

	if err != nil {
		sc.logger.WithError(err).Error("Failed to auto-claim pending messages")
		return
	}

	if len(messages) == 0 {
		return
	}
	sc.logger.WithField("claimed", len(messages)).Info("Reprocessing pending breach events")

	deliveries := sc.deliveryCounts(ctx, messages)
	for _, message := range messages {
		sc.processMessage(ctx, message, deliveries[message.ID])
	}
}

// deliveryCounts looks up how many times each claimed message has been delivered
func (sc *StreamConsumer) deliveryCounts(ctx context.Context, messages []redis.XMessage) map[string]int64 {
	counts := make(map[string]int64, len(messages))

	pending, err := sc.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   constants.BreachEventsStream,
		Group:    sc.config.ConsumerGroupName,
		Start:    messages[0].ID,
		End:      messages[len(messages)-1].ID,
		Count:    int64(len(messages)),
		Consumer: sc.consumerName,
	}).Result()
	if err != nil {
		sc.logger.WithError(err).Warn("Failed to read delivery counts for claimed messages")
		return counts
	}

	for _, entry := range pending {
		counts[entry.ID] = entry.RetryCount
	}
	return counts
}

// parseBreachEvent decodes the flat stream fields written by the publisher
func parseBreachEvent(message redis.XMessage) (*models.SLABreachEvent, error) {
	event := &models.SLABreachEvent{EventID: stringField(message, "event_id")}

	event.ConversationID = stringField(message, "conversation_id")
	if event.ConversationID == "" {
		return nil, fmt.Errorf("missing or invalid conversation_id")
	}

	switch slaType := models.SLAType(stringField(message, "type")); slaType {
	case models.SLATypeFirstResponse, models.SLATypeNextResponse, models.SLATypeResolution:
		event.Type = slaType
	default:
		return nil, fmt.Errorf("invalid SLA type %q", slaType)
	}

	dueAt, err := unixField(message, "due_at")
	if err != nil {
		return nil, err
	}
	event.DueAt = dueAt

	detectedAt, err := unixField(message, "detected_at")
	if err != nil {
		return nil, err
	}
	event.DetectedAt = detectedAt

	event.Threshold = stringField(message, "threshold")

	event.Attempt = 1
	if attemptStr := stringField(message, "attempt"); attemptStr != "" {
		attempt, err := strconv.Atoi(attemptStr)
		if err != nil {
			return nil, fmt.Errorf("invalid attempt format: %w", err)
		}
		event.Attempt = attempt
	}

	return event, nil
}

func stringField(message redis.XMessage, key string) string {
	value, _ := message.Values[key].(string)
	return value
}

func unixField(message redis.XMessage, key string) (time.Time, error) {
	raw := stringField(message, key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing or invalid %s", key)
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return time.Unix(seconds, 0), nil
}
