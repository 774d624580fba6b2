package abm

import (
	"fmt"
	"strings"
)

// Direction is the pole a neutral agent converted toward.
type Direction string

const (
	ToContrarian Direction = "to_contrarian"
	ToConsensus  Direction = "to_consensus"
)

// ConversionEvent records a neutral agent's first crossing of ±0.3 in one direction.
type ConversionEvent struct {
	Round         int       `json:"round"`
	AgentID       string    `json:"agent"`
	AgentName     string    `json:"name"`
	Direction     Direction `json:"direction"`
	PrevPosition  float64   `json:"from"`
	NewPosition   float64   `json:"to"`
	TriggerPost   string    `json:"trigger,omitempty"`
	TriggerAuthor string    `json:"trigger_author,omitempty"`
	AgentArousal  float64   `json:"agent_arousal"`
	AgentAnger    float64   `json:"agent_anger"`
}

// DetectConversion compares the last two history entries of a neutral agent and
// returns an event the first time each threshold is crossed. trigger may be nil.
func DetectConversion(a *Agent, round int, trigger *Post) *ConversionEvent {
	if a.Role != RoleNeutral {
		return nil
	}
	h := a.Opinion.History
	if len(h) < 2 {
		return nil
	}
	prev, curr := h[len(h)-2], h[len(h)-1]

	var dir Direction
	switch {
	case prev >= -ConversionThreshold && curr < -ConversionThreshold && !a.ConvertedToContrarian:
		a.ConvertedToContrarian = true
		dir = ToContrarian
	case prev <= ConversionThreshold && curr > ConversionThreshold && !a.ConvertedToConsensus:
		a.ConvertedToConsensus = true
		dir = ToConsensus
	default:
		return nil
	}

	ev := &ConversionEvent{
		Round:        round,
		AgentID:      a.ID,
		AgentName:    a.Name,
		Direction:    dir,
		PrevPosition: prev,
		NewPosition:  curr,
		AgentArousal: a.Emotions.Arousal,
		AgentAnger:   a.Emotions.Anger,
	}
	if trigger != nil {
		ev.TriggerPost = trigger.Content
		ev.TriggerAuthor = trigger.AuthorName
	}
	return ev
}

// LogEntry formats the event for the transcript.
func (e *ConversionEvent) LogEntry() string {
	rule := strings.Repeat("=", 60)
	target := "CONSENSUS"
	if e.Direction == ToContrarian {
		target = "CONTRARIAN"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "CONVERSION EVENT @ Round %d\n", e.Round)
	fmt.Fprintf(&b, "Agent %s (%s) shifted to %s\n", e.AgentID, e.AgentName, target)
	fmt.Fprintf(&b, "- Previous position: %+.2f\n", e.PrevPosition)
	fmt.Fprintf(&b, "- New position: %+.2f\n", e.NewPosition)
	if e.TriggerPost != "" {
		fmt.Fprintf(&b, "- Trigger post: [%s] \"%s...\"\n", e.TriggerAuthor, truncateRunes(e.TriggerPost, 80))
	}
	fmt.Fprintf(&b, "- Emotional state: arousal=%.2f, anger=%.2f\n", e.AgentArousal, e.AgentAnger)
	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
