package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sla-status-tracking/pkg/metrics"
	"sla-status-tracking/pkg/models"
	"sla-status-tracking/pkg/sla"
)

const testNow int64 = 1700000000

type conversationState struct {
	applied  *models.AppliedSLA
	snapshot *models.ConversationSnapshot
}

type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]conversationState
	order         []string
	breaches      map[string]bool
	loadErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]conversationState),
		breaches:      make(map[string]bool),
	}
}

func (f *fakeStore) put(id string, applied *models.AppliedSLA, snapshot *models.ConversationSnapshot) {
	f.conversations[id] = conversationState{applied: applied, snapshot: snapshot}
	f.order = append(f.order, id)
}

func (f *fakeStore) TrackedConversations(ctx context.Context) ([]string, error) {
	return f.order, nil
}

func (f *fakeStore) Load(ctx context.Context, id string) (*models.AppliedSLA, *models.ConversationSnapshot, error) {
	if f.loadErr != nil {
		return nil, nil, f.loadErr
	}
	state := f.conversations[id]
	return state.applied, state.snapshot, nil
}

func (f *fakeStore) IsBreachNotified(ctx context.Context, id string, slaType models.SLAType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.breaches[id+":"+string(slaType)], nil
}

func (f *fakeStore) MarkBreached(ctx context.Context, id string, slaType models.SLAType, detectedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breaches[id+":"+string(slaType)] = true
	return nil
}

type fakePublisher struct {
	events []models.SLABreachEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event models.SLABreachEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestDetector(st StateStore, pub EventPublisher) *Detector {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	evaluator := &sla.Evaluator{Clock: func() time.Time { return time.Unix(testNow, 0) }}
	return NewDetector(st, pub, evaluator, logger, metrics.NewMetricsWithRegisterer(prometheus.NewRegistry()))
}

func ts(offset int64) *int64 {
	return models.Int64Ptr(testNow + offset)
}

func TestDetector_PublishesNewBreachOnce(t *testing.T) {
	st := newFakeStore()
	st.put("conv_missed",
		&models.AppliedSLA{NextResponseDueAt: ts(-900), ResolutionDueAt: ts(3600)},
		&models.ConversationSnapshot{FirstReplyAt: ts(-7200), WaitingSince: ts(-2700), Status: models.StatusOpen})
	st.put("conv_upcoming",
		&models.AppliedSLA{FirstResponseDueAt: ts(3600)},
		&models.ConversationSnapshot{Status: models.StatusOpen})
	st.put("conv_unassigned", nil, &models.ConversationSnapshot{Status: models.StatusOpen})

	pub := &fakePublisher{}
	detector := newTestDetector(st, pub)

	result, err := detector.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.Missed[models.SLATypeNextResponse])

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, "conv_missed", event.ConversationID)
	assert.Equal(t, models.SLATypeNextResponse, event.Type)
	assert.Equal(t, "15m", event.Threshold)
	assert.Equal(t, time.Unix(testNow-900, 0), event.DueAt)
	assert.NotEmpty(t, event.EventID)

	// second pass sees the marker and stays quiet
	result, err = detector.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Published)
	assert.Equal(t, 1, result.Missed[models.SLATypeNextResponse])
	assert.Len(t, pub.events, 1)
}

func TestDetector_PublishesBreachMaskedByCloserDeadline(t *testing.T) {
	st := newFakeStore()
	st.put("conv_masked",
		&models.AppliedSLA{FirstResponseDueAt: ts(-1800), ResolutionDueAt: ts(900)},
		&models.ConversationSnapshot{Status: models.StatusOpen})

	pub := &fakePublisher{}
	detector := newTestDetector(st, pub)

	result, err := detector.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Empty(t, result.Missed, "the badge still shows the upcoming RT")

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.SLATypeFirstResponse, pub.events[0].Type)
	assert.Equal(t, "30m", pub.events[0].Threshold)
	assert.Equal(t, time.Unix(testNow-1800, 0), pub.events[0].DueAt)

	notified, err := st.IsBreachNotified(context.Background(), "conv_masked", models.SLATypeFirstResponse)
	require.NoError(t, err)
	assert.True(t, notified)
}

func TestDetector_PublishesEveryMissedType(t *testing.T) {
	st := newFakeStore()
	st.put("conv_both",
		&models.AppliedSLA{FirstResponseDueAt: ts(-1800), ResolutionDueAt: ts(-60)},
		&models.ConversationSnapshot{Status: models.StatusOpen})

	pub := &fakePublisher{}
	detector := newTestDetector(st, pub)

	result, err := detector.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published)
	assert.Equal(t, 1, result.Missed[models.SLATypeResolution])

	require.Len(t, pub.events, 2)
	assert.Equal(t, models.SLATypeFirstResponse, pub.events[0].Type)
	assert.Equal(t, models.SLATypeResolution, pub.events[1].Type)
	assert.Equal(t, "1m", pub.events[1].Threshold)

	result, err = detector.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Published)
	assert.Len(t, pub.events, 2)
}

func TestDetector_PublishFailureLeavesBreachUnmarked(t *testing.T) {
	st := newFakeStore()
	st.put("conv_1", &models.AppliedSLA{FirstResponseDueAt: ts(-60)}, &models.ConversationSnapshot{Status: models.StatusOpen})

	pub := &fakePublisher{err: errors.New("stream unavailable")}
	detector := newTestDetector(st, pub)

	result, err := detector.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	notified, _ := st.IsBreachNotified(context.Background(), "conv_1", models.SLATypeFirstResponse)
	assert.False(t, notified)

	pub.err = nil
	result, err = detector.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
}

func TestDetector_LoadErrorCountsAsFailure(t *testing.T) {
	st := newFakeStore()
	st.put("conv_1", &models.AppliedSLA{}, &models.ConversationSnapshot{})
	st.loadErr = errors.New("redis down")

	result, err := newTestDetector(st, &fakePublisher{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Published)
}

func TestDetector_RunOnlyScansAsLeader(t *testing.T) {
	st := newFakeStore()
	st.put("conv_1", &models.AppliedSLA{FirstResponseDueAt: ts(-60)}, &models.ConversationSnapshot{Status: models.StatusOpen})

	pub := &fakePublisher{}
	detector := newTestDetector(st, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	detector.Run(ctx, 10*time.Millisecond, func() bool { return false }, nil)
	assert.Empty(t, pub.events)
}
