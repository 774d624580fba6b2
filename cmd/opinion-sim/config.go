package main

import (
	"errors"
	"path/filepath"

	"github.com/theimaginaryfoundation/opinion-amplifier/abm"
)

type Config struct {
	OutDir    string
	Model     string
	APIKey    string
	Topic     string
	Language  string
	Pretty    bool
	Overwrite bool
	Offline   bool
	Verbose   bool

	Rounds        int
	PostsPerRound int
	Seed          uint64
	Concurrency   int

	SpiralOfSilence bool
	ReplyProb       float64

	LLMScorer bool
	Flex      bool
	RPM       int
	Retries   int
}

func (c Config) Validate() error {
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	if !c.Offline && c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Topic == "" {
		return errors.New("missing -topic")
	}
	if c.Language != "en" && c.Language != "no" {
		return errors.New("lang must be en or no")
	}
	if c.Rounds < 0 {
		return errors.New("rounds must be >= 0")
	}
	if c.PostsPerRound <= 0 {
		return errors.New("posts-per-round must be > 0")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be >= 1")
	}
	if c.ReplyProb < 0 || c.ReplyProb > 1 {
		return errors.New("reply-prob must be in [0,1]")
	}
	if c.RPM < 0 {
		return errors.New("rpm must be >= 0")
	}
	if c.Retries < 1 {
		return errors.New("retries must be >= 1")
	}
	if c.Offline && c.LLMScorer {
		return errors.New("-llm-scorer needs the API; drop -offline")
	}
	return nil
}

func defaultConfig() Config {
	abmCfg := abm.DefaultConfig()
	return Config{
		OutDir:        filepath.FromSlash("results/abm"),
		Model:         "gpt-5-mini",
		Topic:         abm.DefaultTopic,
		Language:      "en",
		Rounds:        abmCfg.Rounds,
		PostsPerRound: abmCfg.PostsPerRound,
		Seed:          abmCfg.Seed,
		Concurrency:   abmCfg.GenerationConcurrency,
		RPM:           0,
		Retries:       3,
	}
}

// engineConfig maps the CLI settings onto the engine defaults.
func (c Config) engineConfig() abm.Config {
	cfg := abm.DefaultConfig()
	cfg.Rounds = c.Rounds
	cfg.PostsPerRound = c.PostsPerRound
	cfg.Seed = c.Seed
	cfg.GenerationConcurrency = c.Concurrency
	cfg.Topic = c.Topic
	cfg.SpiralOfSilence = c.SpiralOfSilence
	cfg.ReplyToContrarianProbability = c.ReplyProb
	return cfg
}
