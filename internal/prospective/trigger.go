// Package prospective implements prospective memory (C11): trigger
// evaluation, the intention lifecycle state machine, escalation, and a
// small natural-language trigger parser. It operates on the canonical
// types.Intention / types.Trigger records; this package supplies the
// pure behavior those records don't carry themselves.
package prospective

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

// TriggerPattern selects how an event_based trigger matches against
// context events; defaults to Contains when unset. Encoded
// into types.Trigger.Pattern as its string value.
type TriggerPattern string

const (
	PatternExact TriggerPattern = "exact"
	PatternContains TriggerPattern = "contains"
	PatternRegex TriggerPattern = "regex"
	PatternAnyOf TriggerPattern = "any_of"
	PatternAllOf TriggerPattern = "all_of"
)

func recurringInterval(pattern types.RecurringPattern, customMinutes int) time.Duration {
	switch pattern {
	case types.RecurEveryHour:
		return time.Hour
	case types.RecurDaily:
		return 24 * time.Hour
	case types.RecurWeekly:
		return 7 * 24 * time.Hour
	case types.RecurMonthly:
		return 30 * 24 * time.Hour
	case types.RecurCustom:
		return time.Duration(customMinutes) * time.Minute
	default:
		return 24 * time.Hour
	}
}

// ContextPatternKind enumerates context_based sub-pattern variants.
type ContextPatternKind string

const (
	PatternInCodebase ContextPatternKind = "in_codebase"
	PatternFilePattern ContextPatternKind = "file_pattern"
	PatternTopicActive ContextPatternKind = "topic_active"
	PatternUserMode ContextPatternKind = "user_mode"
	PatternComposite ContextPatternKind = "composite"
)

// ContextPattern is one node of the context_based pattern tree. It is
// the parsed form of types.Trigger.ContextPattern, which stores it
// JSON-encoded as a plain string.
type ContextPattern struct {
	Kind ContextPatternKind `json:"kind"`
	Value string `json:"value,omitempty"`
	Subs []ContextPattern `json:"subs,omitempty"`
}

// EncodeContextPattern serializes p for storage in
// types.Trigger.ContextPattern.
func EncodeContextPattern(p ContextPattern) string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeContextPattern parses the serialized form back into a
// ContextPattern tree.
func DecodeContextPattern(s string) (ContextPattern, error) {
	var p ContextPattern
	if s == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(s), &p)
	return p, err
}

// Context is the evaluation environment a trigger is checked against.
type Context struct {
	Timestamp time.Time
	Project string
	Files []string
	Topics []string
	Mode string
	Events []string
	Entities []string
}

// Evaluate reports whether t fires against ctx. For
// recurring triggers, Evaluate also advances t.LastTriggered when it
// fires; the trigger remains active either way.
func Evaluate(t *types.Trigger, ctx Context) bool {
	switch t.Kind {
	case types.TriggerTimeBased:
		return !t.At.After(ctx.Timestamp)
	case types.TriggerDurationBased:
		from := ctx.Timestamp
		if t.From != nil {
			from = *t.From
		}
		deadline := from.Add(time.Duration(t.InMinutes) * time.Minute)
		return !deadline.After(ctx.Timestamp)
	case types.TriggerEventBased:
		return matchEvent(*t, ctx.Events)
	case types.TriggerContextBased:
		pattern, err := DecodeContextPattern(t.ContextPattern)
		if err != nil {
			return false
		}
		return matchContextPattern(pattern, ctx)
	case types.TriggerRecurring:
		interval := recurringInterval(t.RecurringPattern, t.CustomMinutes)
		last := ctx.Timestamp
		if t.LastTriggered != nil {
			last = *t.LastTriggered
		} else if t.From != nil {
			last = *t.From
		} else {
			t.LastTriggered = &last
			return true
		}
		if ctx.Timestamp.Sub(last) >= interval {
			stamp := ctx.Timestamp
			t.LastTriggered = &stamp
			return true
		}
		return false
	default:
		return false
	}
}

func matchEvent(t types.Trigger, events []string) bool {
	pattern := TriggerPattern(PatternContains)
	if t.Pattern != nil && *t.Pattern != "" {
		pattern = TriggerPattern(*t.Pattern)
	}
	switch pattern {
	case PatternExact:
		return containsAny(events, func(e string) bool { return e == t.Event })
	case PatternRegex:
		re, err := regexp.Compile(t.Event)
		if err != nil {
			return false
		}
		return containsAny(events, func(e string) bool { return re.MatchString(e) })
	case PatternAnyOf:
		for _, want := range strings.Split(t.Event, "|") {
			if containsAny(events, func(e string) bool { return strings.Contains(e, want) }) {
				return true
			}
		}
		return false
	case PatternAllOf:
		values := strings.Split(t.Event, "|")
		for _, want := range values {
			if !containsAny(events, func(e string) bool { return strings.Contains(e, want) }) {
				return false
			}
		}
		return len(values) > 0
	default: // Contains
		return containsAny(events, func(e string) bool { return strings.Contains(e, t.Event) })
	}
}

func containsAny(items []string, pred func(string) bool) bool {
	for _, it := range items {
		if pred(it) {
			return true
		}
	}
	return false
}

func matchContextPattern(p ContextPattern, ctx Context) bool {
	switch p.Kind {
	case PatternInCodebase:
		return strings.EqualFold(ctx.Project, p.Value)
	case PatternFilePattern:
		for _, f := range ctx.Files {
			if ok, _ := filepath.Match(p.Value, f); ok {
				return true
			}
			if ok, _ := filepath.Match(p.Value, filepath.Base(f)); ok {
				return true
			}
		}
		return false
	case PatternTopicActive:
		for _, topic := range ctx.Topics {
			if strings.Contains(strings.ToLower(topic), strings.ToLower(p.Value)) {
				return true
			}
		}
		return false
	case PatternUserMode:
		return strings.EqualFold(ctx.Mode, p.Value)
	case PatternComposite:
		if len(p.Subs) == 0 {
			return false
		}
		for _, sub := range p.Subs {
			if !matchContextPattern(sub, ctx) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
