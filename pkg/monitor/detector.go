package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/metrics"
	"sla-status-tracking/pkg/models"
	"sla-status-tracking/pkg/sla"
)

// StateStore is the subset of the conversation store the detector needs
type StateStore interface {
	TrackedConversations(ctx context.Context) ([]string, error)
	Load(ctx context.Context, conversationID string) (*models.AppliedSLA, *models.ConversationSnapshot, error)
	IsBreachNotified(ctx context.Context, conversationID string, slaType models.SLAType) (bool, error)
	MarkBreached(ctx context.Context, conversationID string, slaType models.SLAType, detectedAt time.Time) error
}

// EventPublisher delivers breach events to downstream notifiers
type EventPublisher interface {
	Publish(ctx context.Context, event models.SLABreachEvent) error
}

// ScanResult summarizes one pass over the tracked conversations
type ScanResult struct {
	Scanned   int
	Missed    map[models.SLAType]int
	Published int
	Failed    int
}

// Detector re-evaluates tracked conversations and publishes newly missed SLAs
type Detector struct {
	store     StateStore
	publisher EventPublisher
	evaluator *sla.Evaluator
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

func NewDetector(store StateStore, publisher EventPublisher, evaluator *sla.Evaluator, logger *logrus.Logger, metrics *metrics.Metrics) *Detector {
	if evaluator == nil {
		evaluator = sla.NewEvaluator()
	}
	return &Detector{
		store:     store,
		publisher: publisher,
		evaluator: evaluator,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run scans on every tick while isLeader reports true
func (d *Detector) Run(ctx context.Context, interval time.Duration, isLeader func() bool, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !isLeader() {
				continue
			}
			if _, err := d.Scan(ctx); err != nil {
				d.logger.WithError(err).Error("Breach scan failed")
			}
		}
	}
}

// Scan evaluates every tracked conversation once
func (d *Detector) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	defer func() {
		d.metrics.BreachScanDuration.Observe(time.Since(start).Seconds())
	}()

	result := ScanResult{Missed: make(map[models.SLAType]int)}

	ids, err := d.store.TrackedConversations(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list tracked conversations: %w", err)
	}

	d.metrics.TrackedConversationsCount.Set(float64(len(ids)))

	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Scanned++

		published, status, err := d.processConversation(ctx, id)
		result.Published += published
		if err != nil {
			result.Failed++
			d.logger.WithError(err).WithField("conversation_id", id).Error("Failed to process conversation")
			continue
		}
		if status.IsMissed {
			result.Missed[status.Type]++
		}
	}

	for _, slaType := range []models.SLAType{models.SLATypeFirstResponse, models.SLATypeNextResponse, models.SLATypeResolution} {
		d.metrics.MissedConversationsCount.WithLabelValues(string(slaType)).Set(float64(result.Missed[slaType]))
	}

	d.logger.WithFields(logrus.Fields{
		"scanned":   result.Scanned,
		"published": result.Published,
		"failed":    result.Failed,
	}).Debug("Completed breach scan")

	return result, nil
}

// processConversation publishes an event for every missed deadline without a
// breach marker. The status it returns is the badge answer, which may name a
// different type than the ones published.
func (d *Detector) processConversation(ctx context.Context, conversationID string) (int, models.SLAStatus, error) {
	applied, snapshot, err := d.store.Load(ctx, conversationID)
	if err != nil {
		return 0, models.SLAStatus{}, err
	}

	now := d.evaluator.Now()
	status := sla.EvaluateAt(applied, snapshot, now)
	d.metrics.RecordEvaluation(string(status.Type), status.IsMissed)

	published := 0
	for _, missed := range sla.MissedDeadlines(applied, snapshot, now) {
		notified, err := d.store.IsBreachNotified(ctx, conversationID, missed.Type)
		if err != nil {
			return published, status, err
		}
		if notified {
			continue
		}

		if err := d.publishBreach(ctx, conversationID, missed, now); err != nil {
			return published, status, err
		}
		published++
	}

	return published, status, nil
}

func (d *Detector) publishBreach(ctx context.Context, conversationID string, missed sla.MissedDeadline, now time.Time) error {
	event := models.SLABreachEvent{
		EventID:        uuid.New().String(),
		ConversationID: conversationID,
		Type:           missed.Type,
		DueAt:          time.Unix(missed.DueAt, 0),
		Threshold:      sla.FormatDuration(missed.OverdueBy),
		DetectedAt:     now,
		Attempt:        1,
	}

	if err := d.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish breach event: %w", err)
	}

	// Marker is written after publishing; a crash in between re-publishes on the next scan
	if err := d.store.MarkBreached(ctx, conversationID, missed.Type, now); err != nil {
		return err
	}

	d.metrics.BreachEventsPublished.WithLabelValues(string(missed.Type)).Inc()

	d.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"type":            missed.Type,
		"overdue_by":      event.Threshold,
	}).Info("SLA breach detected")

	return nil
}
