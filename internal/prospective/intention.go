package prospective

import (
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	escalationDeadlineHours = 2.0
	escalationReminderCount = 3
	snoozeDefaultMinutes = 30
)

// Snooze sets snoozed_until and moves the intention to Snoozed;
// snoozed intentions are invisible to trigger evaluation until
// ClearExpiredSnooze advances them back to Active.
func Snooze(i *types.Intention, minutes int, now time.Time) {
	if minutes <= 0 {
		minutes = snoozeDefaultMinutes
	}
	until := now.Add(time.Duration(minutes) * time.Minute)
	i.SnoozedUntil = &until
	i.Status = types.IntentionSnoozed
}

// ClearExpiredSnooze returns a Snoozed intention to Active once its
// snooze window has elapsed.
func ClearExpiredSnooze(i *types.Intention, now time.Time) {
	if i.Status != types.IntentionSnoozed || i.SnoozedUntil == nil {
		return
	}
	if now.Before(*i.SnoozedUntil) {
		return
	}
	i.SnoozedUntil = nil
	i.Status = types.IntentionActive
}

// ProcessExpired moves any Active intention whose deadline has passed
// to Expired.
func ProcessExpired(i *types.Intention, now time.Time) {
	if i.Status != types.IntentionActive || i.Deadline == nil {
		return
	}
	if i.Deadline.Before(now) {
		i.Status = types.IntentionExpired
	}
}

// Fire evaluates the intention's trigger against ctx; snoozed
// intentions never fire regardless of their trigger. On fire, Active moves to
// Triggered except for recurring triggers, which remain Active.
func Fire(i *types.Intention, ctx Context) bool {
	if i.Status != types.IntentionActive {
		return false
	}
	if !Evaluate(&i.Trigger, ctx) {
		return false
	}
	if i.Trigger.Kind != types.TriggerRecurring {
		i.Status = types.IntentionTriggered
	}
	i.ReminderCount++
	return true
}

// Fulfill marks a Triggered (or Active) intention fulfilled.
func Fulfill(i *types.Intention, now time.Time) {
	i.Status = types.IntentionFulfilled
	i.FulfilledAt = &now
}

// Cancel marks an intention cancelled from any non-terminal state.
func Cancel(i *types.Intention) {
	i.Status = types.IntentionCancelled
}

// Escalate promotes priority one step when the intention is not already
// critical and either the deadline is within 2 hours or it has been
// reminded 3+ times.
func Escalate(i *types.Intention, now time.Time) bool {
	if i.Priority == types.PriorityCritical {
		return false
	}
	deadlineSoon := i.Deadline != nil && i.Deadline.Sub(now).Hours() <= escalationDeadlineHours
	reminderedEnough := i.ReminderCount >= escalationReminderCount
	if !deadlineSoon && !reminderedEnough {
		return false
	}
	i.Priority = i.Priority.Escalate()
	return true
}

// priorityOrdinal maps a Priority to the 1..4 scale the tool-level
// encoding's retention_strength formula is defined over.
var priorityOrdinal = map[types.Priority]float64{
	types.PriorityLow: 1, types.PriorityNormal: 2, types.PriorityHigh: 3, types.PriorityCritical: 4,
}

// RetentionStrength is the tool-level encoding's retention_strength
// derived from priority.
func RetentionStrength(p types.Priority) float64 {
	return priorityOrdinal[p] / 4.0
}
