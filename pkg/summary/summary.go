package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/metrics"
)

// Conversation carries what the summarizer needs to know about a conversation
type Conversation struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	MessageCount   int       `json:"message_count"`
	Status         string    `json:"status,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	Labels         string    `json:"labels,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Account carries account level context added to the prompt
type Account struct {
	Industry string `json:"industry,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

type Request struct {
	Conversation Conversation `json:"conversation"`
	Account      Account      `json:"account"`
	Force        bool         `json:"force"`
}

type Result struct {
	Message string `json:"message"`
	Cached  bool   `json:"cached"`
}

// CachedSummary is a previously generated summary and when it was stored
type CachedSummary struct {
	Summary  string    `json:"summary"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache persists generated summaries per conversation
type Cache interface {
	Get(ctx context.Context, conversationID string) (*CachedSummary, error)
	Put(ctx context.Context, conversationID string, summary CachedSummary) error
}

// Generator produces summary text from a prompt
type Generator interface {
	Generate(ctx context.Context, model, systemPrompt, content string) (string, error)
}

type Options struct {
	Model        string
	LargeModel   string
	SystemPrompt string
}

type Service struct {
	cache     Cache
	generator Generator
	options   Options
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(cache Cache, generator Generator, options Options, logger *logrus.Logger, metrics *metrics.Metrics) *Service {
	if options.Model == "" {
		options.Model = constants.DefaultSummaryModel
	}
	if options.LargeModel == "" {
		options.LargeModel = constants.DefaultSummaryLargeModel
	}

	return &Service{
		cache:     cache,
		generator: generator,
		options:   options,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Summarize returns the cached summary while it is still fresh, otherwise
// generates a new one and caches it
func (s *Service) Summarize(ctx context.Context, req Request) (Result, error) {
	conv := req.Conversation

	cached, err := s.cache.Get(ctx, conv.ID)
	if err != nil {
		// a broken cache should not block summaries
		s.logger.WithError(err).WithField("conversation_id", conv.ID).Warn("Failed to read cached summary")
		cached = nil
	}

	if UseCache(req.Force, cached, conv.LastActivityAt) {
		s.metrics.SummaryRequests.WithLabelValues("cache").Inc()
		return Result{Message: cached.Summary, Cached: true}, nil
	}

	model := SelectModel(conv.MessageCount, s.options.Model, s.options.LargeModel)
	message, err := s.generator.Generate(ctx, model, s.options.SystemPrompt, BuildContent(conv, req.Account))
	if err != nil {
		s.metrics.SummaryRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to generate summary: %w", err)
	}
	s.metrics.SummaryRequests.WithLabelValues("generated").Inc()

	if strings.TrimSpace(message) != "" {
		if err := s.cache.Put(ctx, conv.ID, CachedSummary{Summary: message, CachedAt: s.now()}); err != nil {
			s.logger.WithError(err).WithField("conversation_id", conv.ID).Warn("Failed to cache summary")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"model":           model,
		"message_count":   conv.MessageCount,
	}).Debug("Generated conversation summary")

	return Result{Message: message}, nil
}

// UseCache reports whether a cached summary still covers the latest activity
func UseCache(force bool, cached *CachedSummary, lastActivityAt time.Time) bool {
	if force || cached == nil {
		return false
	}
	if strings.TrimSpace(cached.Summary) == "" || cached.CachedAt.IsZero() {
		return false
	}
	return !cached.CachedAt.Before(lastActivityAt)
}

// SelectModel picks the larger model once a conversation gets long
func SelectModel(messageCount int, model, largeModel string) string {
	if messageCount < constants.SummaryLargeModelThreshold {
		return model
	}
	return largeModel
}

// BuildContent renders the conversation followed by a stats block
func BuildContent(conv Conversation, account Account) string {
	lines := []string{"Conversation Stats:", fmt.Sprintf("Message count: %d", conv.MessageCount)}

	if conv.Status != "" {
		lines = append(lines, "Status: "+conv.Status)
	}
	if conv.Priority != "" {
		lines = append(lines, "Priority: "+conv.Priority)
	}
	if conv.Labels != "" {
		lines = append(lines, "Labels: "+conv.Labels)
	}
	if account.Industry != "" {
		lines = append(lines, "Account industry: "+account.Industry)
	}
	if account.Locale != "" {
		lines = append(lines, "Account language: "+account.Locale)
	}

	return conv.Text + "\n\n" + strings.Join(lines, "\n")
}
