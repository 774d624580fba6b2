package abm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scorerFunc func(string) ContentScores

func (f scorerFunc) Score(_ context.Context, text string) (ContentScores, error) {
	return f(text), nil
}

// stubScorer mirrors what a lexical scorer reports for the canned posts.
var stubScorer = scorerFunc(func(text string) ContentScores {
	switch {
	case strings.Contains(text, "!"):
		return ContentScores{EmotionalIntensity: 0.8, Provocativeness: 0.85, LogicalCoherence: 0.3, ConsensusOrientation: 0.1}
	case strings.Contains(text, "evidence"), strings.Contains(text, "data"),
		strings.Contains(text, "research"), strings.Contains(text, "Studies"):
		return ContentScores{EmotionalIntensity: 0.2, Provocativeness: 0.1, LogicalCoherence: 0.8, ConsensusOrientation: 0.8}
	default:
		return ContentScores{EmotionalIntensity: 0.3, Provocativeness: 0.1, LogicalCoherence: 0.5, ConsensusOrientation: 0.5}
	}
})

type recordingWriter struct {
	mu   sync.Mutex
	reqs []PostRequest
	next PostWriter
}

func (w *recordingWriter) WritePost(ctx context.Context, req PostRequest) (string, error) {
	w.mu.Lock()
	w.reqs = append(w.reqs, req)
	w.mu.Unlock()
	return w.next.WritePost(ctx, req)
}

type failingWriter struct{ err error }

func (w failingWriter) WritePost(context.Context, PostRequest) (string, error) {
	return "", w.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg Config, w PostWriter) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, w, stubScorer,
		WithRand(rand.New(rand.NewPCG(cfg.Seed, 77))),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	return e
}

func TestInitializePopulation(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Neutrals = 22
	e := newTestEngine(t, cfg, NewCannedWriter())
	agents := e.InitializePopulation()
	require.Len(t, agents, 27)

	c := agents[0]
	assert.Equal(t, "C0", c.ID)
	assert.Equal(t, RoleContrarian, c.Role)
	assert.Equal(t, -0.85, c.Opinion.Position)

	for _, s := range agents[1:5] {
		assert.Equal(t, RoleConsensus, s.Role)
		assert.True(t, strings.HasPrefix(s.ID, "S"))
		assert.InDelta(t, 0.7, s.Opinion.Position, 0.1+1e-9)
		assert.Equal(t, 0.35, s.TrustIn(c.ID))
		assert.Equal(t, 0.5, s.TrustIn("unknown"), "unknown ids fall back")
	}
	assert.Equal(t, 0.6, agents[1].TrustIn(agents[2].ID))

	counts := make(map[Personality]int)
	for _, n := range agents[5:] {
		assert.Equal(t, RoleNeutral, n.Role)
		assert.True(t, n.Opinion.Position >= -0.2 && n.Opinion.Position <= 0.2)
		assert.Len(t, n.Opinion.History, 1)
		assert.Equal(t, TraitsFor(n.Personality), n.Traits)
		assert.Equal(t, 0.5, n.TrustIn(c.ID))
		counts[n.Personality]++
	}
	assert.Equal(t, "Skeptic", agents[5].Name)
	assert.Equal(t, "Neutral_20", agents[25].Name)
	for _, p := range Personalities {
		assert.GreaterOrEqual(t, counts[p], 4)
	}
}

func TestSelectSpeakersUniqueAndContrarianEveryThirdRound(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.PostsPerRound = 8
	e := newTestEngine(t, cfg, NewCannedWriter())
	e.InitializePopulation()

	for round := 1; round <= 30; round++ {
		speakers := e.SelectSpeakers(round)
		require.NotEmpty(t, speakers)
		require.LessOrEqual(t, len(speakers), cfg.PostsPerRound)
		seen := make(map[string]bool)
		hasContrarian := false
		for _, s := range speakers {
			assert.False(t, seen[s.ID])
			seen[s.ID] = true
			if s.Role == RoleContrarian {
				hasContrarian = true
			}
		}
		if round%3 == 0 {
			assert.True(t, hasContrarian, "round %d", round)
		}
	}
}

func TestSpiralOfSilenceSuppressesMinorityNeutrals(t *testing.T) {
	t.Parallel()
	a := &Agent{Role: RoleNeutral, Opinion: NewOpinion(-0.5, 0.3, 0.2), Traits: TraitsFor(PersonalityConformist)}
	minority := silenceFactor(a, Distribution{Contrarian: 1, Neutral: 19}, 20)
	majority := silenceFactor(&Agent{Role: RoleNeutral, Opinion: NewOpinion(0, 0.3, 0.2), Traits: a.Traits}, Distribution{Contrarian: 1, Neutral: 19}, 20)
	assert.Less(t, minority, majority)
	assert.GreaterOrEqual(t, minority, 0.1)
}

func TestCleanGeneratedText(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		`  "Prices are up again."  `:     "Prices are up again.",
		"[Contrarian]: Wake up, people!": "Wake up, people!",
		"'single quoted'":                "single quoted",
		"[note] no colon prefix":         "[note] no colon prefix",
		"“curly quotes”":                 "curly quotes",
		"plain":                          "plain",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanGeneratedText(in), "in=%q", in)
	}
}

func TestRunRoundDegradesOnWriterFailure(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, failingWriter{err: errors.New("upstream 503: service unavailable, retry later please ok")})
	summary, err := e.RunRound(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Posts)
	for _, p := range summary.Posts {
		assert.True(t, strings.HasPrefix(p.Content, "[API Error: "), p.Content)
		assert.LessOrEqual(t, len([]rune(p.Content)), len("[API Error: ]")+errorMarkerChars)
	}
}

func TestRunRoundHonorsCancellation(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, DefaultConfig(), NewCannedWriter())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RunRound(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)

	_, err = e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// cancelingWriter cancels the run while answering its cancelAt-th request.
type cancelingWriter struct {
	cancel   context.CancelFunc
	cancelAt int
	calls    int
}

func (w *cancelingWriter) WritePost(ctx context.Context, _ PostRequest) (string, error) {
	w.calls++
	if w.calls < w.cancelAt {
		return "Fine by me.", nil
	}
	w.cancel()
	return "", ctx.Err()
}

func TestRunRoundCanceledMidGeneration(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultConfig()
	cfg.GenerationConcurrency = 1
	w := &cancelingWriter{cancel: cancel, cancelAt: 2}
	e := newTestEngine(t, cfg, w)

	_, err := e.RunRound(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, w.calls, "no requests after cancellation")
	assert.Empty(t, e.Tracker().RoundSummaries())
	assert.Empty(t, e.Posts())
}

func TestRunRoundPipeline(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	w := &recordingWriter{next: NewCannedWriter()}
	e := newTestEngine(t, cfg, w)

	summary, err := e.RunRound(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Round)
	assert.Equal(t, len(summary.Posts), summary.NumPosts)
	assert.Len(t, e.Posts(), summary.NumPosts)
	assert.Len(t, w.reqs, summary.NumPosts)

	total := summary.Distribution.Contrarian + summary.Distribution.Neutral + summary.Distribution.Consensus
	assert.Equal(t, 25, total)

	for _, req := range w.reqs {
		assert.Equal(t, cfg.Topic, req.Topic)
		assert.Equal(t, cfg.MaxTokens, req.MaxTokens)
		assert.Empty(t, req.Memory, "nothing seen before the first round")
		if req.Role == RoleNeutral {
			assert.NotEmpty(t, req.OpinionDescription)
		} else {
			assert.Empty(t, req.OpinionDescription)
		}
	}

	for _, a := range e.Agents() {
		assert.Len(t, a.Emotions.ArousalHistory, 1)
		if a.Role == RoleNeutral {
			assert.Greater(t, len(a.Opinion.History), 1)
		}
	}
	for _, p := range e.Posts() {
		assert.Positive(t, p.Impressions)
		assert.LessOrEqual(t, p.Reach, p.Impressions)
	}
}

func TestTitForTatReplies(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Rounds = 12
	cfg.ReplyToContrarianProbability = 1
	w := &recordingWriter{next: NewCannedWriter()}
	e := newTestEngine(t, cfg, w)

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	replies := 0
	for _, p := range e.Posts() {
		if p.ReplyTo == "" {
			continue
		}
		replies++
		var target *Post
		for _, q := range e.Posts() {
			if q.ID == p.ReplyTo {
				target = q
			}
		}
		require.NotNil(t, target)
		assert.Equal(t, "C0", target.AuthorID)
		assert.Less(t, target.Round, p.Round)
	}
	require.Positive(t, replies)

	confrontational := 0
	for _, req := range w.reqs {
		if req.Confrontational {
			confrontational++
			assert.Equal(t, RoleConsensus, req.Role)
			assert.NotEmpty(t, req.ReplyToContent)
		}
	}
	assert.Equal(t, replies, confrontational)

	counted := 0
	for _, a := range e.Agents() {
		counted += a.Behavior.RepliesCount
	}
	assert.Equal(t, replies, counted)
}

func runScenario(t *testing.T, seed uint64, concurrency int) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.GenerationConcurrency = concurrency
	e := newTestEngine(t, cfg, NewCannedWriter())
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	return e
}

func TestEndToEndScenarioReproducible(t *testing.T) {
	t.Parallel()
	a := runScenario(t, 42, 1)
	b := runScenario(t, 42, 1)
	c := runScenario(t, 42, 4)

	assert.Equal(t, a.Distribution(), b.Distribution())
	assert.Equal(t, a.Distribution(), c.Distribution(), "concurrent generation must not change results")
	require.Len(t, a.Tracker().RoundSummaries(), 50)

	for i, ag := range a.Agents() {
		assert.Equal(t, ag.Opinion.Position, b.Agents()[i].Opinion.Position, ag.ID)
		assert.Equal(t, ag.Opinion.Position, c.Agents()[i].Opinion.Position, ag.ID)
	}
}

func TestEndToEndConversionsRecordedOnce(t *testing.T) {
	t.Parallel()
	e := runScenario(t, 7, 1)
	events := e.Tracker().ConversionEvents()

	perAgent := make(map[string]map[Direction]int)
	for _, ev := range events {
		if perAgent[ev.AgentID] == nil {
			perAgent[ev.AgentID] = make(map[Direction]int)
		}
		perAgent[ev.AgentID][ev.Direction]++
	}
	for id, dirs := range perAgent {
		for dir, n := range dirs {
			assert.Equal(t, 1, n, "%s %s", id, dir)
		}
	}

	for _, a := range e.Agents() {
		if a.Role != RoleNeutral {
			assert.Empty(t, perAgent[a.ID])
			continue
		}
		crossedLow, crossedHigh := false, false
		for _, pos := range a.Opinion.History {
			crossedLow = crossedLow || pos < -ConversionThreshold
			crossedHigh = crossedHigh || pos > ConversionThreshold
		}
		assert.Equal(t, crossedLow, perAgent[a.ID][ToContrarian] == 1, a.ID)
		assert.Equal(t, crossedHigh, perAgent[a.ID][ToConsensus] == 1, a.ID)
		assert.Equal(t, crossedLow, a.ConvertedToContrarian, a.ID)
		assert.Equal(t, crossedHigh, a.ConvertedToConsensus, a.ID)
		for _, pos := range a.Opinion.History {
			require.True(t, pos >= -1 && pos <= 1)
		}
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.PostsPerRound = 0
	_, err := NewEngine(cfg, NewCannedWriter(), stubScorer)
	assert.Error(t, err)

	_, err = NewEngine(DefaultConfig(), nil, stubScorer)
	assert.Error(t, err)
}
