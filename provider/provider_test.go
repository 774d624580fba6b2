package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/opinion-amplifier/abm"
)

type fakeAPI struct {
	mu      sync.Mutex
	params  []responses.ResponseNewParams
	respond func(call int) (*responses.Response, error)
}

func (f *fakeAPI) New(_ context.Context, body responses.ResponseNewParams, _ ...option.RequestOption) (*responses.Response, error) {
	f.mu.Lock()
	f.params = append(f.params, body)
	call := len(f.params)
	f.mu.Unlock()
	return f.respond(call)
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.params)
}

func textResponse(t *testing.T, text string) *responses.Response {
	t.Helper()
	quoted, err := json.Marshal(text)
	require.NoError(t, err)
	raw := `{"id":"resp_1","object":"response","status":"completed","output":[{"id":"msg_1","type":"message","role":"assistant","status":"completed","content":[{"type":"output_text","text":` + string(quoted) + `,"annotations":[]}]}]}`
	var resp responses.Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return &resp
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(t *testing.T, api ResponsesAPI, mutate func(*GeneratorConfig)) *Generator {
	t.Helper()
	cfg := GeneratorConfig{
		Model:  "test-model",
		Retry:  NoRetry(),
		Logger: quietLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := NewGenerator(api, cfg)
	require.NoError(t, err)
	return g
}

var fastRetry = RetryPolicy{
	MaxAttempts:      3,
	RateLimitWaits:   []time.Duration{time.Millisecond},
	ServerErrorWaits: []time.Duration{time.Millisecond, 2 * time.Millisecond},
}

func TestRetryRecoversFromRateLimit(t *testing.T) {
	t.Parallel()
	calls := 0
	v, err := Retry(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New(`POST "https://api.openai.com/v1/responses": 429 Too Many Requests`)
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := Retry(context.Background(), fastRetry, func(context.Context) (string, error) {
		calls++
		return "", errors.New("500 Internal Server Error")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrySkipsNonRetryableErrors(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := Retry(context.Background(), fastRetry, func(context.Context) (string, error) {
		calls++
		return "", errors.New("400 Bad Request: invalid schema")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	_, err = Retry(context.Background(), NoRetry(), func(context.Context) (string, error) {
		calls++
		return "", errors.New("rate limit reached")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWaitHonorsContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	slow := RetryPolicy{MaxAttempts: 3, RateLimitWaits: []time.Duration{time.Hour}}

	start := time.Now()
	calls := 0
	_, err := Retry(ctx, slow, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("429")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestRetryWaitsReuseLastEntry(t *testing.T) {
	t.Parallel()
	p := DefaultRetryPolicy()
	wait, ok := p.waitFor(errors.New("429"), 7)
	require.True(t, ok)
	assert.Equal(t, 135*time.Second, wait)

	wait, ok = p.waitFor(errors.New("server_error"), 0)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, wait)

	_, ok = p.waitFor(context.Canceled, 0)
	assert.False(t, ok)
}

func TestGenerateSchemaIsStrict(t *testing.T) {
	t.Parallel()
	schema := GenerateSchema[contentRating]()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t,
		[]string{"emotional_intensity", "provocativeness", "logical_coherence", "consensus_orientation"},
		schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	prov, ok := props["provocativeness"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", prov["type"])
	assert.NotEmpty(t, prov["description"])
	for name, raw := range props {
		p, ok := raw.(map[string]any)
		require.True(t, ok, name)
		assert.Equal(t, 0.0, p["minimum"], name)
		assert.Equal(t, 1.0, p["maximum"], name)
	}
}

func TestGenerateBuildsRequest(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{respond: func(int) (*responses.Response, error) {
		return textResponse(t, "  Trust the data.  "), nil
	}}
	g := newTestGenerator(t, api, nil)

	out, err := g.Generate(context.Background(), Request{Instructions: "be brief", Input: "Write your post now.", MaxOutputTokens: 120})
	require.NoError(t, err)
	assert.Equal(t, "Trust the data.", out)

	require.Equal(t, 1, api.calls())
	p := api.params[0]
	assert.Equal(t, "test-model", string(p.Model))
	assert.Equal(t, openai.String("be brief"), p.Instructions)
	assert.Equal(t, openai.Int(120), p.MaxOutputTokens)
	require.Len(t, p.Input.OfInputItemList, 1)
	assert.Nil(t, p.Text.Format.OfJSONSchema)
}

func TestGenerateEmptyOutput(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{respond: func(int) (*responses.Response, error) {
		return textResponse(t, "   "), nil
	}}
	g := newTestGenerator(t, api, nil)
	_, err := g.Generate(context.Background(), Request{Input: "x"})
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{respond: func(int) (*responses.Response, error) {
		return nil, errors.New("400 Bad Request")
	}}
	g := newTestGenerator(t, api, func(c *GeneratorConfig) {
		c.BreakerFailures = 2
		c.BreakerCooldown = time.Hour
	})

	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), Request{Input: "x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	_, err := g.Generate(context.Background(), Request{Input: "x"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, api.calls(), "an open breaker does not reach the API")
}

func TestLimiterBlocksUntilContextDone(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{respond: func(int) (*responses.Response, error) {
		return textResponse(t, "ok"), nil
	}}
	g := newTestGenerator(t, api, func(c *GeneratorConfig) {
		c.RequestsPerMinute = 1
		c.Burst = 1
		c.LimiterPoll = 5 * time.Millisecond
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, _ = g.Generate(ctx, Request{Input: "first"})
	_, err := g.Generate(ctx, Request{Input: "second"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, api.calls(), 1)
}

type fixedScorer abm.ContentScores

func (s fixedScorer) Score(context.Context, string) (abm.ContentScores, error) {
	return abm.ContentScores(s), nil
}

func TestContentRaterCaches(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{respond: func(int) (*responses.Response, error) {
		return textResponse(t, `{"emotional_intensity":0.9,"provocativeness":1,"logical_coherence":0.2,"consensus_orientation":0}`), nil
	}}
	r, err := NewContentRater(newTestGenerator(t, api, nil), nil, quietLogger())
	require.NoError(t, err)

	want := abm.ContentScores{EmotionalIntensity: 0.9, Provocativeness: 1, LogicalCoherence: 0.2, ConsensusOrientation: 0}
	for i := 0; i < 3; i++ {
		got, err := r.Score(context.Background(), "WAKE UP!")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 1, api.calls())

	format := api.params[0].Text.Format.OfJSONSchema
	require.NotNil(t, format)
	assert.Equal(t, "ContentRating", format.Name)
	assert.Equal(t, openai.Bool(true), format.Strict)
}

func TestContentRaterRejectsInvalidRatings(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"outside [0,1]": `{"emotional_intensity":0.9,"provocativeness":1.4,"logical_coherence":0.2,"consensus_orientation":0.5}`,
		"negative":      `{"emotional_intensity":0.9,"provocativeness":0.4,"logical_coherence":0.2,"consensus_orientation":-0.1}`,
		"is missing":    `{"emotional_intensity":0.9,"provocativeness":0.4,"logical_coherence":0.2}`,
		"unknown field": `{"emotional_intensity":0.9,"provocativeness":0.4,"logical_coherence":0.2,"consensus_orientation":0.5,"toxicity":0.3}`,
	}
	for name, body := range cases {
		api := &fakeAPI{respond: func(int) (*responses.Response, error) {
			return textResponse(t, body), nil
		}}
		r, err := NewContentRater(newTestGenerator(t, api, nil), nil, quietLogger())
		require.NoError(t, err)
		_, err = r.Score(context.Background(), "text")
		assert.Error(t, err, name)

		fallback := fixedScorer{EmotionalIntensity: 0.3, LogicalCoherence: 0.6}
		withFallback, err := NewContentRater(newTestGenerator(t, api, nil), fallback, quietLogger())
		require.NoError(t, err)
		got, err := withFallback.Score(context.Background(), "text")
		require.NoError(t, err, name)
		assert.Equal(t, abm.ContentScores(fallback), got, name)
	}
}

func TestContentRaterFallback(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{respond: func(int) (*responses.Response, error) {
		return nil, errors.New("400 Bad Request")
	}}
	fallback := fixedScorer{EmotionalIntensity: 0.3, LogicalCoherence: 0.6}

	r, err := NewContentRater(newTestGenerator(t, api, nil), fallback, quietLogger())
	require.NoError(t, err)
	got, err := r.Score(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, abm.ContentScores(fallback), got)

	noFallback, err := NewContentRater(newTestGenerator(t, api, nil), nil, quietLogger())
	require.NoError(t, err)
	_, err = noFallback.Score(context.Background(), "text")
	assert.Error(t, err)

	_, err = NewContentRater(nil, fallback, nil)
	assert.Error(t, err)
}

func TestContentRaterRejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{respond: func(int) (*responses.Response, error) {
		return textResponse(t, "I would rate this a 7 out of 10."), nil
	}}
	r, err := NewContentRater(newTestGenerator(t, api, nil), nil, quietLogger())
	require.NoError(t, err)
	_, err = r.Score(context.Background(), "text")
	assert.Error(t, err)
}
