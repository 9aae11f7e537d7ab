package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sla-status-tracking/pkg/metrics"
)

type memoryCache struct {
	entries map[string]CachedSummary
	getErr  error
}

func (c *memoryCache) Get(ctx context.Context, id string) (*CachedSummary, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	entry, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *memoryCache) Put(ctx context.Context, id string, summary CachedSummary) error {
	c.entries[id] = summary
	return nil
}

type stubGenerator struct {
	reply   string
	err     error
	calls   int
	model   string
	content string
}

func (g *stubGenerator) Generate(ctx context.Context, model, systemPrompt, content string) (string, error) {
	g.calls++
	g.model = model
	g.content = content
	return g.reply, g.err
}

var now = time.Date(2026, 1, 29, 18, 0, 0, 0, time.UTC)

func newTestService(cache Cache, gen Generator) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	s := NewService(cache, gen, Options{Model: "small", LargeModel: "large"}, logger, metrics.NewMetricsWithRegisterer(prometheus.NewRegistry()))
	s.now = func() time.Time { return now }
	return s
}

func TestUseCache(t *testing.T) {
	fresh := &CachedSummary{Summary: "summary", CachedAt: now}

	assert.True(t, UseCache(false, fresh, now.Add(-time.Minute)))
	assert.True(t, UseCache(false, fresh, now), "cached at the same instant as last activity")
	assert.False(t, UseCache(false, fresh, now.Add(time.Second)), "activity after caching")
	assert.False(t, UseCache(true, fresh, now.Add(-time.Minute)), "forced")
	assert.False(t, UseCache(false, nil, now))
	assert.False(t, UseCache(false, &CachedSummary{Summary: " ", CachedAt: now}, now.Add(-time.Minute)))
	assert.False(t, UseCache(false, &CachedSummary{Summary: "summary"}, time.Time{}))
}

func TestSelectModel(t *testing.T) {
	assert.Equal(t, "small", SelectModel(6, "small", "large"))
	assert.Equal(t, "large", SelectModel(7, "small", "large"))
}

func TestBuildContent(t *testing.T) {
	content := BuildContent(
		Conversation{Text: "Customer: hi", MessageCount: 3, Status: "open", Labels: "billing"},
		Account{Locale: "en"},
	)

	assert.Equal(t, "Customer: hi\n\nConversation Stats:\nMessage count: 3\nStatus: open\nLabels: billing\nAccount language: en", content)
}

func TestService_ReturnsFreshCache(t *testing.T) {
	cache := &memoryCache{entries: map[string]CachedSummary{"42": {Summary: "cached", CachedAt: now}}}
	gen := &stubGenerator{reply: "new"}

	result, err := newTestService(cache, gen).Summarize(context.Background(), Request{
		Conversation: Conversation{ID: "42", LastActivityAt: now.Add(-time.Hour)},
	})

	require.NoError(t, err)
	assert.Equal(t, Result{Message: "cached", Cached: true}, result)
	assert.Equal(t, 0, gen.calls)
}

func TestService_RegeneratesStaleCache(t *testing.T) {
	cache := &memoryCache{entries: map[string]CachedSummary{"42": {Summary: "cached", CachedAt: now.Add(-time.Hour)}}}
	gen := &stubGenerator{reply: "new"}

	result, err := newTestService(cache, gen).Summarize(context.Background(), Request{
		Conversation: Conversation{ID: "42", MessageCount: 10, LastActivityAt: now.Add(-time.Minute)},
	})

	require.NoError(t, err)
	assert.Equal(t, "new", result.Message)
	assert.False(t, result.Cached)
	assert.Equal(t, "large", gen.model)
	assert.Equal(t, CachedSummary{Summary: "new", CachedAt: now}, cache.entries["42"])
}

func TestService_ForceRegenerates(t *testing.T) {
	cache := &memoryCache{entries: map[string]CachedSummary{"42": {Summary: "cached", CachedAt: now}}}
	gen := &stubGenerator{reply: "new"}

	result, err := newTestService(cache, gen).Summarize(context.Background(), Request{
		Conversation: Conversation{ID: "42", LastActivityAt: now.Add(-time.Hour)},
		Force:        true,
	})

	require.NoError(t, err)
	assert.Equal(t, "new", result.Message)
	assert.Equal(t, "small", gen.model)
}

func TestService_DoesNotCacheEmptyOrFailed(t *testing.T) {
	cache := &memoryCache{entries: map[string]CachedSummary{}}

	_, err := newTestService(cache, &stubGenerator{reply: ""}).Summarize(context.Background(), Request{Conversation: Conversation{ID: "1"}})
	require.NoError(t, err)
	assert.Empty(t, cache.entries)

	_, err = newTestService(cache, &stubGenerator{err: errors.New("rate limited")}).Summarize(context.Background(), Request{Conversation: Conversation{ID: "1"}})
	assert.Error(t, err)
	assert.Empty(t, cache.entries)
}

func TestService_CacheReadErrorFallsBackToGeneration(t *testing.T) {
	cache := &memoryCache{entries: map[string]CachedSummary{}, getErr: errors.New("timeout")}
	gen := &stubGenerator{reply: "new"}

	result, err := newTestService(cache, gen).Summarize(context.Background(), Request{Conversation: Conversation{ID: "1"}})
	require.NoError(t, err)
	assert.Equal(t, "new", result.Message)
	assert.Equal(t, 1, gen.calls)
}
