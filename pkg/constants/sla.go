package constants

import "time"

// Duration units in seconds, largest first
const (
	SecondsPerMonth  = 2592000 // 30 days
	SecondsPerDay    = 86400
	SecondsPerHour   = 3600
	SecondsPerMinute = 60
)

// Status badge icons
const (
	IconUpcoming = "alarm"
	IconMissed   = "flame"
)

// Redis key names
const (
	SLAAssignmentsKey        = "sla_assignments"
	ConversationSnapshotsKey = "conversation_snapshots"
	TrackedConversationsKey  = "sla_tracked_conversations"
	BreachStatesKey          = "sla_breach_states"
	ConversationSummariesKey = "conversation_summaries"
	LeaderElectionKey        = "sla:leader"
	BreachEventsStream       = "sla_breach_events"
)

// Default configuration values
const (
	DefaultCheckIntervalMS          = 5000
	DefaultLeaderElectionTTLSeconds = 10
	DefaultLeaderElectionInterval   = 5 * time.Second
	DefaultCleanupInterval          = 1 * time.Hour
	DefaultStaleConversationHours   = 24 * 30
	DefaultPendingReclaimInterval   = 30 * time.Second
	DefaultPendingMinIdle           = 1 * time.Minute
)

// Summary generation
const (
	// SummaryLargeModelThreshold is the message count at which the large model is used
	SummaryLargeModelThreshold = 7
	DefaultSummaryModel        = "gpt-4o-mini"
	DefaultSummaryLargeModel   = "gpt-4.1"
)
