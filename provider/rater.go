package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/theimaginaryfoundation/opinion-amplifier/abm"
	"github.com/theimaginaryfoundation/opinion-amplifier/fileutils"
)

type contentRating struct {
	EmotionalIntensity   *float64 `json:"emotional_intensity" jsonschema:"minimum=0,maximum=1" jsonschema_description:"0 calm and neutral, 1 extremely charged"`
	Provocativeness      *float64 `json:"provocativeness" jsonschema:"minimum=0,maximum=1" jsonschema_description:"0 not confrontational, 1 maximally confrontational or insulting"`
	LogicalCoherence     *float64 `json:"logical_coherence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"0 no reasoning, 1 well structured argument with evidence"`
	ConsensusOrientation *float64 `json:"consensus_orientation" jsonschema:"minimum=0,maximum=1" jsonschema_description:"0 absolutist and dismissive, 1 nuanced and bridge building"`
}

// Validate rejects ratings with a missing score or one outside [0,1].
func (c *contentRating) Validate() error {
	fields := []struct {
		name string
		v    *float64
	}{
		{"emotional_intensity", c.EmotionalIntensity},
		{"provocativeness", c.Provocativeness},
		{"logical_coherence", c.LogicalCoherence},
		{"consensus_orientation", c.ConsensusOrientation},
	}
	for _, f := range fields {
		if f.v == nil {
			return fmt.Errorf("rating: %s is missing", f.name)
		}
		if math.IsNaN(*f.v) || *f.v < 0 || *f.v > 1 {
			return fmt.Errorf("rating: %s=%v outside [0,1]", f.name, *f.v)
		}
	}
	return nil
}

var contentRatingSchema = GenerateSchema[contentRating]()

const raterInstructions = `You rate short social media posts from a policy debate.

Return four scores between 0 and 1:
- emotional_intensity: how emotionally charged the wording is (exclamations, capitals, loaded words).
- provocativeness: how confrontational it is toward other participants (insults, accusations, direct challenges).
- logical_coherence: how much it reasons (connectives, evidence, structure).
- consensus_orientation: how much it seeks common ground (hedging, acknowledging other views, trade-offs).

Rate the text only. Do not judge whether its claims are true.`

// ContentRater scores posts with the model. Scores are cached per text.
// When the model call fails and a fallback scorer is set, the fallback's
// scores are returned instead of the error.
type ContentRater struct {
	gen       *Generator
	fallback  abm.ContentScorer
	maxTokens int64
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]abm.ContentScores
}

func NewContentRater(gen *Generator, fallback abm.ContentScorer, logger *slog.Logger) (*ContentRater, error) {
	if gen == nil {
		return nil, errors.New("NewContentRater: generator is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentRater{
		gen:       gen,
		fallback:  fallback,
		maxTokens: 200,
		logger:    logger.With("component", "rater"),
		cache:     make(map[string]abm.ContentScores),
	}, nil
}

func (r *ContentRater) Score(ctx context.Context, text string) (abm.ContentScores, error) {
	r.mu.Lock()
	cached, ok := r.cache[text]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	scores, err := r.rate(ctx, text)
	if err != nil {
		if r.fallback == nil || ctx.Err() != nil {
			return abm.ContentScores{}, fmt.Errorf("ContentRater.Score: %w", err)
		}
		r.logger.Warn("model rating failed; using fallback scorer", "err", err)
		return r.fallback.Score(ctx, text)
	}

	r.mu.Lock()
	r.cache[text] = scores
	r.mu.Unlock()
	return scores, nil
}

func (r *ContentRater) rate(ctx context.Context, text string) (abm.ContentScores, error) {
	out, err := r.gen.GenerateJSON(ctx, Request{
		Instructions:    raterInstructions,
		Input:           text,
		MaxOutputTokens: r.maxTokens,
	}, JSONFormat{
		Name:        "ContentRating",
		Description: "Post content scores",
		Schema:      contentRatingSchema,
	})
	if err != nil {
		return abm.ContentScores{}, err
	}
	var rating contentRating
	if err := fileutils.DecodeModelJSON(out, &rating); err != nil {
		return abm.ContentScores{}, fmt.Errorf("unmarshal rating: %w", err)
	}
	return abm.ContentScores{
		EmotionalIntensity:   *rating.EmotionalIntensity,
		Provocativeness:      *rating.Provocativeness,
		LogicalCoherence:     *rating.LogicalCoherence,
		ConsensusOrientation: *rating.ConsensusOrientation,
	}, nil
}
