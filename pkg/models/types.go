package models

import "time"

// SLAType identifies which SLA clock a status refers to
type SLAType string

const (
	SLATypeNone          SLAType = ""
	SLATypeFirstResponse SLAType = "FRT"
	SLATypeNextResponse  SLAType = "NRT"
	SLATypeResolution    SLAType = "RT"
)

// ConversationStatus is the lifecycle state of a conversation
type ConversationStatus string

const (
	StatusOpen     ConversationStatus = "open"
	StatusResolved ConversationStatus = "resolved"
	StatusPending  ConversationStatus = "pending"
	StatusSnoozed  ConversationStatus = "snoozed"
)

// AppliedSLA holds the due timestamps (epoch seconds) assigned to a conversation.
// A nil field means that SLA type is not configured.
type AppliedSLA struct {
	FirstResponseDueAt *int64 `json:"sla_frt_due_at,omitempty"`
	NextResponseDueAt  *int64 `json:"sla_nrt_due_at,omitempty"`
	ResolutionDueAt    *int64 `json:"sla_rt_due_at,omitempty"`
}

// ConversationSnapshot is the response state of a conversation at evaluation time
type ConversationSnapshot struct {
	FirstReplyAt   *int64             `json:"first_reply_created_at,omitempty"`
	WaitingSince   *int64             `json:"waiting_since,omitempty"`
	Status         ConversationStatus `json:"status"`
	LastActivityAt *int64             `json:"last_activity_at,omitempty"`
}

// SLAStatus is the most urgent applicable SLA condition for a conversation
type SLAStatus struct {
	Type      SLAType `json:"type"`
	Threshold string  `json:"threshold"`
	Icon      string  `json:"icon"`
	IsMissed  bool    `json:"is_sla_missed"`
}

// IsEmpty reports whether no SLA applies
func (s SLAStatus) IsEmpty() bool {
	return s.Type == SLATypeNone
}

// SLABreachEvent is published to the breach stream the first time a
// conversation's SLA of a given type is seen missed
type SLABreachEvent struct {
	EventID        string    `json:"event_id"`
	ConversationID string    `json:"conversation_id"`
	Type           SLAType   `json:"type"`
	DueAt          time.Time `json:"due_at"`
	Threshold      string    `json:"threshold"`
	DetectedAt     time.Time `json:"detected_at"`
	Attempt        int       `json:"attempt"` // stream delivery count, 1 on first delivery
}

// Int64Ptr is a convenience for building optional timestamps
func Int64Ptr(v int64) *int64 {
	return &v
}
