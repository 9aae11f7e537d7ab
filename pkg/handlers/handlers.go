package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"sla-status-tracking/pkg/metrics"
	"sla-status-tracking/pkg/models"
	"sla-status-tracking/pkg/reports"
	"sla-status-tracking/pkg/sla"
	"sla-status-tracking/pkg/store"
	"sla-status-tracking/pkg/summary"
)

// ConversationStore is the persistence the handlers rely on
type ConversationStore interface {
	SaveAssignment(ctx context.Context, conversationID string, applied models.AppliedSLA) error
	SaveSnapshot(ctx context.Context, conversationID string, snapshot models.ConversationSnapshot) error
	Load(ctx context.Context, conversationID string) (*models.AppliedSLA, *models.ConversationSnapshot, error)
	Untrack(ctx context.Context, conversationID string) error
	TrackedCount(ctx context.Context) (int64, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, req summary.Request) (summary.Result, error)
}

type Handler struct {
	store        ConversationStore
	evaluator    *sla.Evaluator
	filter       *reports.MetricFilter
	summarizer   Summarizer
	logger       *logrus.Logger
	metrics      *metrics.Metrics
	isLeaderFunc func() bool
}

func NewHandler(store ConversationStore, evaluator *sla.Evaluator, filter *reports.MetricFilter, summarizer Summarizer, logger *logrus.Logger, metrics *metrics.Metrics, isLeaderFunc func() bool) *Handler {
	return &Handler{
		store:        store,
		evaluator:    evaluator,
		filter:       filter,
		summarizer:   summarizer,
		logger:       logger,
		metrics:      metrics,
		isLeaderFunc: isLeaderFunc,
	}
}

func (h *Handler) PutAssignment(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]
	if conversationID == "" {
		http.Error(w, "Missing conversation ID", http.StatusBadRequest)
		return
	}

	var applied models.AppliedSLA
	if err := json.NewDecoder(r.Body).Decode(&applied); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SaveAssignment(r.Context(), conversationID, applied); err != nil {
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to save SLA assignment")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"conversation_id": conversationID,
		"applied_sla":     applied,
	})
}

func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]
	if conversationID == "" {
		http.Error(w, "Missing conversation ID", http.StatusBadRequest)
		return
	}

	var snapshot models.ConversationSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if snapshot.Status == "" {
		snapshot.Status = models.StatusOpen
	}

	if err := h.store.SaveSnapshot(r.Context(), conversationID, snapshot); err != nil {
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to save conversation snapshot")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"conversation_id": conversationID,
		"conversation":    snapshot,
	})
}

// GetSLAStatus evaluates the stored state; ?now= overrides the clock (epoch seconds)
func (h *Handler) GetSLAStatus(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	now, err := h.parseNow(r.URL.Query().Get("now"))
	if err != nil {
		http.Error(w, "Invalid now parameter", http.StatusBadRequest)
		return
	}

	applied, snapshot, err := h.store.Load(r.Context(), conversationID)
	if err != nil {
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to load SLA state")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := sla.EvaluateAt(applied, snapshot, now)
	h.metrics.RecordEvaluation(string(status.Type), status.IsMissed)

	writeJSON(w, http.StatusOK, status)
}

// Evaluate computes a status from the request body without touching storage
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AppliedSLA   *models.AppliedSLA           `json:"applied_sla"`
		Conversation *models.ConversationSnapshot `json:"conversation"`
		Now          *int64                       `json:"now,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	now := h.evaluator.Now()
	if request.Now != nil {
		now = time.Unix(*request.Now, 0)
	}

	status := sla.EvaluateAt(request.AppliedSLA, request.Conversation, now)
	h.metrics.RecordEvaluation(string(status.Type), status.IsMissed)

	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	if err := h.store.Untrack(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotTracked) {
			http.Error(w, "Conversation not tracked", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to untrack conversation")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FilterReportSummary strips hidden metrics from a report summary payload
func (h *Handler) FilterReportSummary(w http.ResponseWriter, r *http.Request) {
	var data map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, h.filter.FilterSummaryWithPrevious(data))
}

// FilterReportRows strips hidden metrics from every row of a per-agent or per-team report
func (h *Handler) FilterReportRows(w http.ResponseWriter, r *http.Request) {
	var rows []map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, h.filter.FilterRows(rows))
}

// FilterReportKeys drops report keys whose metric is hidden
func (h *Handler) FilterReportKeys(w http.ResponseWriter, r *http.Request) {
	var reportKeys map[string]string
	if err := json.NewDecoder(r.Body).Decode(&reportKeys); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, h.filter.FilterVisibleReportKeys(reportKeys))
}

func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var request summary.Request
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	request.Conversation.ID = conversationID
	if force, err := strconv.ParseBool(r.URL.Query().Get("force")); err == nil && force {
		request.Force = true
	}

	result, err := h.summarizer.Summarize(r.Context(), request)
	if err != nil {
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to summarize conversation")
		http.Error(w, "Summary generation failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.TrackedCount(r.Context())
	if err != nil {
		http.Error(w, "Health check failed", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "healthy",
		"is_leader":             h.isLeaderFunc(),
		"tracked_conversations": count,
		"timestamp":             time.Now(),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.TrackedCount(r.Context())
	if err != nil {
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_leader":             h.isLeaderFunc(),
		"tracked_conversations": count,
		"hidden_metrics":        h.filter.HiddenMetrics(),
		"timestamp":             time.Now(),
	})
}

func (h *Handler) parseNow(raw string) (time.Time, error) {
	if raw == "" {
		return h.evaluator.Now(), nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(seconds, 0), nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
