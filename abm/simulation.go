package abm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
)

// PostRequest is everything a writer needs to produce one agent's post.
type PostRequest struct {
	Round              int
	AgentID            string
	AgentName          string
	Role               Role
	Topic              string
	EmotionDescription string
	OpinionDescription string
	Memory             []string
	ReplyToContent     string
	Confrontational    bool
	MaxTokens          int
}

// PostWriter produces post text for an agent.
type PostWriter interface {
	WritePost(ctx context.Context, req PostRequest) (string, error)
}

// ContentScorer turns post text into the four content scores.
type ContentScorer interface {
	Score(ctx context.Context, text string) (ContentScores, error)
}

const (
	promptMemoryEntries = 8
	replyTargetWindow   = 5
	influentialDelta    = 0.05
	errorMarkerChars    = 50
)

// Engine runs the discrete round loop over a population.
type Engine struct {
	cfg     Config
	writer  PostWriter
	scorer  ContentScorer
	rng     *rand.Rand
	logger  *slog.Logger
	tracker *Tracker
	amp     *Amplifier

	agents           []*Agent
	posts            []*Post
	recentContrarian []*Post
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for every stochastic step.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracker records rounds into t instead of a fresh tracker.
func WithTracker(t *Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// NewEngine validates cfg and wires the collaborators. Without WithRand the
// engine is seeded from cfg.Seed.
func NewEngine(cfg Config, writer PostWriter, scorer ContentScorer, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	if writer == nil {
		return nil, errors.New("NewEngine: nil writer")
	}
	if scorer == nil {
		return nil, errors.New("NewEngine: nil scorer")
	}
	e := &Engine{cfg: cfg, writer: writer, scorer: scorer}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "abm")
	if e.tracker == nil {
		e.tracker = NewTracker(cfg)
	}
	e.amp = NewAmplifier(cfg.Weights, e.rng)
	return e, nil
}

// Agents returns the current population.
func (e *Engine) Agents() []*Agent { return e.agents }

// Posts returns the append-only post log.
func (e *Engine) Posts() []*Post { return e.posts }

// Tracker returns the tracker rounds are recorded into.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// AmplificationBias analyzes the visibility given to every post so far.
func (e *Engine) AmplificationBias() BiasReport {
	return AnalyzeAmplificationBias(e.posts)
}

// Distribution counts the population by opinion class.
func (e *Engine) Distribution() Distribution {
	return countOpinions(e.agents)
}

// SelectSpeakers draws PostsPerRound agents with replacement, weighted by
// response probability, and returns them without duplicates in draw order.
// Every third round the first contrarian is guaranteed a slot.
func (e *Engine) SelectSpeakers(round int) []*Agent {
	if len(e.agents) == 0 {
		return nil
	}
	var dist Distribution
	if e.cfg.SpiralOfSilence {
		dist = countOpinions(e.agents)
	}

	weights := make([]float64, len(e.agents))
	total := 0.0
	for i, a := range e.agents {
		p := ResponseProbability(a, e.cfg.BaseResponseRate)
		if e.cfg.SpiralOfSilence && a.Role == RoleNeutral {
			p *= silenceFactor(a, dist, len(e.agents))
		}
		weights[i] = p
		total += p
	}

	speakers := make([]*Agent, e.cfg.PostsPerRound)
	for k := range speakers {
		if total <= 0 {
			speakers[k] = e.agents[e.rng.IntN(len(e.agents))]
			continue
		}
		r := e.rng.Float64() * total
		pick := len(e.agents) - 1
		cum := 0.0
		for i, w := range weights {
			cum += w
			if r < cum {
				pick = i
				break
			}
		}
		speakers[k] = e.agents[pick]
	}

	if round%3 == 0 {
		for _, a := range e.agents {
			if a.Role != RoleContrarian {
				continue
			}
			found := false
			for _, s := range speakers {
				if s == a {
					found = true
					break
				}
			}
			if !found {
				speakers[0] = a
			}
			break
		}
	}

	seen := make(map[string]bool, len(speakers))
	unique := speakers[:0]
	for _, s := range speakers {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		unique = append(unique, s)
	}
	return unique
}

// silenceFactor suppresses agents whose opinion class is a perceived minority.
func silenceFactor(a *Agent, dist Distribution, population int) float64 {
	if population == 0 {
		return 1
	}
	share := float64(dist.Count(a.Opinion.Classify())) / float64(population)
	return math.Max(0.1, 1-0.5*a.Traits.SocialProofSensitivity*(1-share))
}

type speakerTurn struct {
	agent   *Agent
	replyTo *Post
}

// planReplies decides which consensus speakers answer the latest contrarian post.
func (e *Engine) planReplies(speakers []*Agent) []speakerTurn {
	turns := make([]speakerTurn, len(speakers))
	var target *Post
	if n := len(e.recentContrarian); n > 0 {
		target = e.recentContrarian[n-1]
	}
	for i, s := range speakers {
		turns[i] = speakerTurn{agent: s}
		if s.Role == RoleConsensus && target != nil && e.cfg.ReplyToContrarianProbability > 0 &&
			e.rng.Float64() < e.cfg.ReplyToContrarianProbability {
			turns[i].replyTo = target
		}
	}
	return turns
}

func (e *Engine) buildRequest(round int, t speakerTurn) PostRequest {
	a := t.agent
	req := PostRequest{
		Round:              round,
		AgentID:            a.ID,
		AgentName:          a.Name,
		Role:               a.Role,
		Topic:              e.cfg.Topic,
		EmotionDescription: a.Emotions.Describe(),
		Memory:             a.RecentMemory(promptMemoryEntries),
		MaxTokens:          e.cfg.MaxTokens,
	}
	if a.Role == RoleNeutral {
		req.OpinionDescription = a.Opinion.Describe()
	}
	if t.replyTo != nil {
		req.ReplyToContent = t.replyTo.Content
		req.Confrontational = true
	}
	return req
}

// generate asks the writer for every turn. Results are stored by index so
// downstream processing order does not depend on completion order. Writer
// failures become error-marker posts; only cancellation fails the batch.
func (e *Engine) generate(ctx context.Context, reqs []PostRequest) ([]string, error) {
	texts := make([]string, len(reqs))
	err := forEachIndexConcurrent(ctx, e.cfg.GenerationConcurrency, len(reqs), func(ctx context.Context, i int) error {
		text, err := e.writer.WritePost(ctx, reqs[i])
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			text = CleanGeneratedText(text)
			if text == "" {
				err = errors.New("empty response")
			}
		}
		if err != nil {
			e.logger.Warn("post generation failed", "agent_id", reqs[i].AgentID, "round", reqs[i].Round, "err", err)
			text = errorMarker(err)
		}
		texts[i] = text
		return nil
	})
	if err != nil {
		return nil, err
	}
	return texts, nil
}

func errorMarker(err error) string {
	return "[API Error: " + truncateRunes(err.Error(), errorMarkerChars) + "]"
}

// CleanGeneratedText trims the text, strips surrounding quotes and drops a
// leading "[Name]:" prefix the model sometimes echoes.
func CleanGeneratedText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'“”‘’")
	if strings.HasPrefix(s, "[") {
		if i := strings.Index(s, "]:"); i >= 0 {
			s = s[i+2:]
		}
	}
	return strings.TrimSpace(s)
}

func (e *Engine) score(ctx context.Context, text string) ContentScores {
	s, err := e.scorer.Score(ctx, text)
	if err != nil {
		e.logger.Warn("content scoring failed", "err", err)
		return DefaultContentScores()
	}
	return s.Clamp()
}

// RunRound executes one full round and records it in the tracker.
func (e *Engine) RunRound(ctx context.Context, round int) (RoundSummary, error) {
	if len(e.agents) == 0 {
		e.InitializePopulation()
	}

	speakers := e.SelectSpeakers(round)
	turns := e.planReplies(speakers)

	reqs := make([]PostRequest, len(turns))
	for i, t := range turns {
		reqs[i] = e.buildRequest(round, t)
	}
	texts, err := e.generate(ctx, reqs)
	if err != nil {
		return RoundSummary{}, fmt.Errorf("Engine.RunRound: generate: %w", err)
	}

	roundPosts := make([]*Post, 0, len(turns))
	for i, t := range turns {
		a := t.agent
		p := &Post{
			ID:            NewPostID(),
			AuthorID:      a.ID,
			AuthorName:    a.Name,
			Round:         round,
			Content:       texts[i],
			ContentScores: e.score(ctx, texts[i]),
			AuthorArousal: a.Emotions.Arousal,
			AuthorOpinion: a.Opinion.Position,
		}
		if t.replyTo != nil {
			p.ReplyTo = t.replyTo.ID
		}
		a.PostsMade = append(a.PostsMade, p.ID)
		a.Behavior.RecordPost(p.Provocativeness, p.ConsensusOrientation, t.replyTo != nil)
		if a.Role == RoleContrarian {
			e.recentContrarian = append(e.recentContrarian, p)
			if len(e.recentContrarian) > replyTargetWindow {
				e.recentContrarian = e.recentContrarian[1:]
			}
		}
		roundPosts = append(roundPosts, p)
	}
	e.posts = append(e.posts, roundPosts...)

	feed := e.amp.SampleVisiblePosts(e.posts, round, e.cfg.FeedSize)
	conversions := e.distribute(round, feed)

	for _, a := range e.agents {
		a.Emotions.Decay(e.cfg.EmotionalDecayRate)
	}

	summary := e.tracker.RecordRound(round, roundPosts, e.agents, conversions)
	return summary, nil
}

// distribute shows the feed to every agent and applies emotional and opinion updates.
func (e *Engine) distribute(round int, feed []*Post) []*ConversionEvent {
	temperature := meanArousal(e.agents)
	var conversions []*ConversionEvent
	var lastInfluential *Post

	for _, a := range e.agents {
		for _, p := range feed {
			if p.AuthorID == a.ID {
				continue
			}
			a.RememberPost(p, e.cfg.MemoryWindow)
			e.tracker.RecordExposure(p, a.ID)

			alignment := OpinionAlignment(p.ContentScores, a.Opinion.Position)
			ApplyImpact(a, CalculateEmotionalImpact(p.ContentScores, alignment), p.AuthorID)

			if a.Role != RoleNeutral {
				continue
			}

			inf := ComputeOpinionInfluence(p, a.Opinion.Position)
			trust := a.TrustIn(p.AuthorID)
			delta := a.Opinion.Update(OpinionInput{
				Influence:         inf.Value(),
				SourceTrust:       trust,
				EmotionalImpact:   p.EmotionalIntensity,
				ContrarianSource:  inf.ContrarianSource,
				LogicalCoherence:  p.LogicalCoherence,
				Traits:            a.Traits,
				DebateTemperature: temperature,
				AgentArousal:      a.Emotions.Arousal,
			}, e.rng)
			if math.Abs(delta) > influentialDelta {
				lastInfluential = p
			}

			if ev := DetectConversion(a, round, lastInfluential); ev != nil {
				conversions = append(conversions, ev)
				e.logger.Info("conversion", "round", round, "agent_id", a.ID, "name", a.Name, "direction", ev.Direction)
			}
		}
	}
	return conversions
}

// Run initializes the population if needed and plays every configured round.
func (e *Engine) Run(ctx context.Context) (*Tracker, error) {
	if len(e.agents) == 0 {
		e.InitializePopulation()
	}
	e.logger.Info("simulation started", "rounds", e.cfg.Rounds, "posts_per_round", e.cfg.PostsPerRound, "initial", countOpinions(e.agents))

	for round := 1; round <= e.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return e.tracker, fmt.Errorf("Engine.Run: round %d: %w", round, err)
		}
		summary, err := e.RunRound(ctx, round)
		if err != nil {
			return e.tracker, fmt.Errorf("Engine.Run: %w", err)
		}
		e.logger.Debug("round complete",
			"round", round,
			"distribution", summary.Distribution,
			"avg_opinion", summary.AvgOpinion,
			"avg_arousal", summary.AvgArousal,
		)
	}

	e.logger.Info("simulation finished",
		"final", countOpinions(e.agents),
		"conversions", len(e.tracker.ConversionEvents()),
	)
	return e.tracker, nil
}
