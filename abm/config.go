package abm

import (
	"errors"
	"fmt"
)

// DefaultTopic is the debate prompt used when none is configured.
const DefaultTopic = "Should the country prioritize rapid renewable energy expansion, even if it raises electricity prices in the short term?"

// Config holds the population shape and the tunable constants of a run.
type Config struct {
	Contrarians   int `json:"num_contrarians"`
	Consensus     int `json:"num_consensus"`
	Neutrals      int `json:"num_neutrals"`
	Rounds        int `json:"num_rounds"`
	PostsPerRound int `json:"posts_per_round"`

	Weights Weights `json:"weights"`

	MemoryWindow       int     `json:"memory_window"`
	EmotionalDecayRate float64 `json:"emotional_decay_rate"`
	FeedSize           int     `json:"feed_size"`
	BaseResponseRate   float64 `json:"base_response_rate"`

	Topic     string `json:"debate_topic"`
	MaxTokens int    `json:"max_tokens_per_response"`

	// ReplyToContrarianProbability enables tit-for-tat replies from consensus speakers.
	ReplyToContrarianProbability float64 `json:"reply_to_contrarian_probability"`
	SpiralOfSilence              bool    `json:"spiral_of_silence"`

	GenerationConcurrency int `json:"generation_concurrency"`

	Seed uint64 `json:"seed"`
}

// DefaultConfig is the 1/4/20 population over 50 rounds.
func DefaultConfig() Config {
	return Config{
		Contrarians:           1,
		Consensus:             4,
		Neutrals:              20,
		Rounds:                50,
		PostsPerRound:         5,
		Weights:               DefaultWeights(),
		MemoryWindow:          15,
		EmotionalDecayRate:    0.12,
		FeedSize:              10,
		BaseResponseRate:      0.2,
		Topic:                 DefaultTopic,
		MaxTokens:             120,
		GenerationConcurrency: 1,
		Seed:                  42,
	}
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	if c.Contrarians < 0 || c.Consensus < 0 || c.Neutrals < 0 {
		return errors.New("agent counts must be >= 0")
	}
	if c.Contrarians+c.Consensus+c.Neutrals == 0 {
		return errors.New("population must not be empty")
	}
	if c.Rounds < 0 {
		return errors.New("rounds must be >= 0")
	}
	if c.PostsPerRound <= 0 {
		return errors.New("posts per round must be > 0")
	}
	if c.FeedSize <= 0 {
		return errors.New("feed size must be > 0")
	}
	if c.MemoryWindow < 0 {
		return errors.New("memory window must be >= 0")
	}
	if c.EmotionalDecayRate < 0 || c.EmotionalDecayRate > 1 {
		return fmt.Errorf("emotional decay rate must be in [0,1], got %v", c.EmotionalDecayRate)
	}
	if c.BaseResponseRate < 0 {
		return errors.New("base response rate must be >= 0")
	}
	if c.Weights.Emotion < 0 || c.Weights.Provocative < 0 || c.Weights.Recency < 0 {
		return errors.New("algorithm weights must be >= 0")
	}
	if c.ReplyToContrarianProbability < 0 || c.ReplyToContrarianProbability > 1 {
		return fmt.Errorf("reply probability must be in [0,1], got %v", c.ReplyToContrarianProbability)
	}
	if c.GenerationConcurrency < 1 {
		return errors.New("generation concurrency must be >= 1")
	}
	return nil
}
