package abm

import (
	"fmt"
)

// Role is an agent's fixed part in the debate.
type Role int

const (
	RoleNeutral Role = iota
	RoleContrarian
	RoleConsensus
)

func (r Role) String() string {
	switch r {
	case RoleContrarian:
		return "contrarian"
	case RoleConsensus:
		return "consensus"
	case RoleNeutral:
		return "neutral"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

const (
	defaultTrust = 0.5
	minTrust     = 0.1
	maxTrust     = 1.0
)

// BehaviorMetrics accumulates the style of the posts an agent has authored.
type BehaviorMetrics struct {
	ConfrontationScores        []float64 `json:"confrontation_scores,omitempty"`
	ConsensusOrientationScores []float64 `json:"consensus_orientation_scores,omitempty"`
	PostsCount                 int       `json:"posts_count"`
	RepliesCount               int       `json:"replies_count"`
}

// RecordPost appends one authored post's scores.
func (m *BehaviorMetrics) RecordPost(confrontation, consensusOrientation float64, isReply bool) {
	m.ConfrontationScores = append(m.ConfrontationScores, confrontation)
	m.ConsensusOrientationScores = append(m.ConsensusOrientationScores, consensusOrientation)
	m.PostsCount++
	if isReply {
		m.RepliesCount++
	}
}

// ConfrontationIndex is the mean provocativeness of authored posts, 0 when none.
func (m *BehaviorMetrics) ConfrontationIndex() float64 {
	return mean(m.ConfrontationScores, 0)
}

// ConsensusOrientation is the mean consensus orientation of authored posts, 0.5 when none.
func (m *BehaviorMetrics) ConsensusOrientation() float64 {
	return mean(m.ConsensusOrientationScores, 0.5)
}

// Agent is one participant in the simulated feed.
type Agent struct {
	ID       string
	Name     string
	Role     Role
	Opinion  Opinion
	Emotions EmotionalState
	Behavior BehaviorMetrics

	// Personality and Traits are only meaningful for neutral observers.
	Personality Personality
	Traits      PersonalityTraits

	Memory    []string
	PostsMade []string
	Trust     map[string]float64

	ConvertedToContrarian bool
	ConvertedToConsensus  bool
}

// RememberPost appends a post summary to the sliding memory window.
func (a *Agent) RememberPost(p *Post, window int) {
	a.Memory = append(a.Memory, fmt.Sprintf("[%s]: %s", p.AuthorName, p.Content))
	if window > 0 && len(a.Memory) > window {
		a.Memory = append([]string(nil), a.Memory[len(a.Memory)-window:]...)
	}
}

// TrustIn returns the agent's trust in another agent, 0.5 if unknown.
func (a *Agent) TrustIn(otherID string) float64 {
	if t, ok := a.Trust[otherID]; ok {
		return t
	}
	return defaultTrust
}

// UpdateTrust adjusts trust in another agent, clamped to [0.1, 1.0].
func (a *Agent) UpdateTrust(otherID string, delta float64) {
	if a.Trust == nil {
		a.Trust = make(map[string]float64)
	}
	a.Trust[otherID] = clamp(a.TrustIn(otherID)+delta, minTrust, maxTrust)
}

func mean(xs []float64, empty float64) float64 {
	if len(xs) == 0 {
		return empty
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// RecentMemory returns up to n of the newest memory entries, oldest first.
func (a *Agent) RecentMemory(n int) []string {
	if len(a.Memory) <= n {
		return append([]string(nil), a.Memory...)
	}
	return append([]string(nil), a.Memory[len(a.Memory)-n:]...)
}
