package prospective

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

var priorityKeywords = []struct {
	phrase string
	priority types.Priority
}{
	{"urgent", types.PriorityCritical},
	{"important", types.PriorityCritical},
	{"critical", types.PriorityCritical},
	{"asap", types.PriorityCritical},
	{"high priority", types.PriorityHigh},
	{"low priority", types.PriorityLow},
	{"whenever", types.PriorityLow},
	{"eventually", types.PriorityLow},
}

// ParsePriority scans text for priority keywords, returning
// PriorityNormal when none match.
func ParsePriority(text string) types.Priority {
	lower := strings.ToLower(text)
	for _, kw := range priorityKeywords {
		if strings.Contains(lower, kw.phrase) {
			return kw.priority
		}
	}
	return types.PriorityNormal
}

var (
	reInMinutes = regexp.MustCompile(`(?i)\bin\s+(\d+)\s*minutes?\b`)
	reInHours = regexp.MustCompile(`(?i)\bin\s+(\d+)\s*hours?\b`)
	reWhen = regexp.MustCompile(`(?i)\bwhen\s+(.+)`)
	reAtTime = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// ParsedTrigger is the result of parsing free text into a trigger plus
// the residual content.
type ParsedTrigger struct {
	Trigger types.Trigger
	Content string
}

// ParseTrigger extracts a trigger from text, trying duration, then
// event, then absolute time, and falling back to a 30-minute duration
// trigger: "in N (minute|hour)s" -> duration; "when X" ->
// event; "at H[:MM][ am|pm]" -> time (rolled to the next day if already
// passed); else default duration_based{30}. Returns false if the
// residual content is empty after stripping the trigger phrase.
func ParseTrigger(text string, now time.Time) (ParsedTrigger, bool) {
	if m := reInMinutes.FindStringSubmatch(text); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		return finish(text, m[0], types.Trigger{Kind: types.TriggerDurationBased, From: &now, InMinutes: minutes}, now)
	}
	if m := reInHours.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.Atoi(m[1])
		return finish(text, m[0], types.Trigger{Kind: types.TriggerDurationBased, From: &now, InMinutes: hours * 60}, now)
	}
	if m := reWhen.FindStringSubmatch(text); m != nil {
		pattern := string(PatternContains)
		return finish(text, m[0], types.Trigger{Kind: types.TriggerEventBased, Event: strings.TrimSpace(m[1]), Pattern: &pattern}, now)
	}
	if m := reAtTime.FindStringSubmatch(text); m != nil {
		at, ok := parseClockTime(m, now)
		if ok {
			return finish(text, m[0], types.Trigger{Kind: types.TriggerTimeBased, At: at}, now)
		}
	}
	return finish(text, "", types.Trigger{Kind: types.TriggerDurationBased, From: &now, InMinutes: 30}, now)
}

func parseClockTime(m []string, now time.Time) (time.Time, bool) {
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, false
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	ampm := strings.ToLower(m[3])
	switch ampm {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, true
}

func finish(text, matched string, trig types.Trigger, now time.Time) (ParsedTrigger, bool) {
	content := text
	if matched != "" {
		content = strings.Replace(content, matched, "", 1)
	}
	content = stripActionPhrases(content)
	content = strings.TrimSpace(content)
	if content == "" {
		return ParsedTrigger{}, false
	}
	return ParsedTrigger{Trigger: trig, Content: content}, true
}

var actionPhraseStripper = regexp.MustCompile(`(?i)^(remind me to|remember to|don't forget to)\s+`)

func stripActionPhrases(s string) string {
	return actionPhraseStripper.ReplaceAllString(strings.TrimSpace(s), "")
}
