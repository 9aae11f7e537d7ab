package sla

import (
	"time"

	"sla-status-tracking/pkg/constants"
	"sla-status-tracking/pkg/models"
)

// candidate is an SLA type whose preconditions hold for the current snapshot
type candidate struct {
	slaType models.SLAType
	dueAt   int64
}

// Evaluator resolves the most urgent SLA status using an injectable clock
type Evaluator struct {
	Clock func() time.Time
}

func NewEvaluator() *Evaluator {
	return &Evaluator{Clock: time.Now}
}

// Evaluate returns the most urgent applicable SLA status as of the evaluator's clock
func (e *Evaluator) Evaluate(applied *models.AppliedSLA, snapshot *models.ConversationSnapshot) models.SLAStatus {
	return EvaluateAt(applied, snapshot, e.Now())
}

// Now reads the evaluator's clock, falling back to wall time
func (e *Evaluator) Now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

// EvaluateAt returns the status of the candidate whose due time is closest to now,
// in either direction. Exact ties go to the earlier type in FRT, NRT, RT order.
// A nil assignment or snapshot yields the empty status.
func EvaluateAt(applied *models.AppliedSLA, snapshot *models.ConversationSnapshot, now time.Time) models.SLAStatus {
	if applied == nil || snapshot == nil {
		return models.SLAStatus{}
	}

	nowUnix := now.Unix()

	var (
		best      *candidate
		bestDelta int64
	)
	for _, c := range candidates(applied, snapshot) {
		delta := c.dueAt - nowUnix
		if best == nil || abs(delta) < abs(bestDelta) {
			best = &c
			bestDelta = delta
		}
	}

	if best == nil {
		return models.SLAStatus{}
	}

	missed := bestDelta < 0
	icon := constants.IconUpcoming
	if missed {
		icon = constants.IconMissed
	}

	return models.SLAStatus{
		Type:      best.slaType,
		Threshold: FormatDuration(abs(bestDelta)),
		Icon:      icon,
		IsMissed:  missed,
	}
}

// MissedDeadline is an applicable SLA whose due time has passed
type MissedDeadline struct {
	Type      models.SLAType
	DueAt     int64
	OverdueBy int64
}

// MissedDeadlines lists every applicable SLA that is past due at now, in
// FRT, NRT, RT order. Unlike EvaluateAt it does not stop at the most urgent one.
func MissedDeadlines(applied *models.AppliedSLA, snapshot *models.ConversationSnapshot, now time.Time) []MissedDeadline {
	if applied == nil || snapshot == nil {
		return nil
	}

	nowUnix := now.Unix()

	var missed []MissedDeadline
	for _, c := range candidates(applied, snapshot) {
		if delta := c.dueAt - nowUnix; delta < 0 {
			missed = append(missed, MissedDeadline{Type: c.slaType, DueAt: c.dueAt, OverdueBy: -delta})
		}
	}
	return missed
}

// candidates lists applicable SLA types in tie-break priority order
func candidates(applied *models.AppliedSLA, snapshot *models.ConversationSnapshot) []candidate {
	result := make([]candidate, 0, 3)

	if applied.FirstResponseDueAt != nil && snapshot.FirstReplyAt == nil {
		result = append(result, candidate{models.SLATypeFirstResponse, *applied.FirstResponseDueAt})
	}

	if applied.NextResponseDueAt != nil && snapshot.FirstReplyAt != nil && snapshot.WaitingSince != nil {
		result = append(result, candidate{models.SLATypeNextResponse, *applied.NextResponseDueAt})
	}

	// TODO: confirm with product whether pending and snoozed should also stop the RT clock
	if applied.ResolutionDueAt != nil && snapshot.Status != models.StatusResolved {
		result = append(result, candidate{models.SLATypeResolution, *applied.ResolutionDueAt})
	}

	return result
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
