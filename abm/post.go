package abm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ContentScores are the four bounded content metrics a scorer assigns to post text.
type ContentScores struct {
	EmotionalIntensity   float64 `json:"emotional_intensity"`
	Provocativeness      float64 `json:"provocativeness"`
	LogicalCoherence     float64 `json:"logical_coherence"`
	ConsensusOrientation float64 `json:"consensus_orientation"`
}

// DefaultContentScores is used when a scorer fails.
func DefaultContentScores() ContentScores {
	return ContentScores{LogicalCoherence: 0.5, ConsensusOrientation: 0.5}
}

// Clamp forces every score into [0,1].
func (s ContentScores) Clamp() ContentScores {
	return ContentScores{
		EmotionalIntensity:   clamp(s.EmotionalIntensity, 0, 1),
		Provocativeness:      clamp(s.Provocativeness, 0, 1),
		LogicalCoherence:     clamp(s.LogicalCoherence, 0, 1),
		ConsensusOrientation: clamp(s.ConsensusOrientation, 0, 1),
	}
}

// Post is one entry in the append-only post log. Scores are fixed at creation.
type Post struct {
	ID         string `json:"id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Round      int    `json:"round"`
	Content    string `json:"content"`

	ContentScores

	// Visibility is the score from the most recent ranking pass.
	Visibility float64 `json:"visibility"`

	ReplyTo string `json:"reply_to,omitempty"`

	AuthorArousal float64 `json:"author_arousal"`
	AuthorOpinion float64 `json:"author_opinion"`

	Impressions int `json:"impressions"`
	Reach       int `json:"reach"`
}

// NewPostID returns a short random id.
func NewPostID() string {
	return uuid.New().String()[:8]
}

// EngagementPotential estimates how much interaction the post will attract.
func (p *Post) EngagementPotential() float64 {
	return 0.4*p.EmotionalIntensity + 0.4*p.Provocativeness + 0.2*(1-p.LogicalCoherence)
}

// TranscriptLine formats the post for the plain-text transcript.
func (p *Post) TranscriptLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s-%s] (arousal=%.2f, opinion=%+.2f):\n", p.AuthorID, p.AuthorName, p.AuthorArousal, p.AuthorOpinion)
	fmt.Fprintf(&b, "%q\n", p.Content)
	fmt.Fprintf(&b, ">> visibility=%.2f, confrontation=%.2f\n", p.Visibility, p.Provocativeness)
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
