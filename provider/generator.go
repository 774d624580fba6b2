package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"github.com/sony/gobreaker"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

const limiterKey = "responses"

// ErrEmptyOutput is returned when the model answers with no text.
var ErrEmptyOutput = errors.New("provider: empty model output")

type GeneratorConfig struct {
	Model string
	// Flex requests the flex service tier.
	Flex  bool
	Retry RetryPolicy

	// RequestsPerMinute paces calls with a token bucket; 0 disables pacing.
	RequestsPerMinute int
	Burst             int
	// LimiterPoll is how often a paced call re-checks the bucket.
	LimiterPoll time.Duration

	// BreakerFailures consecutive failures open the breaker for
	// BreakerCooldown; 0 disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Logger *slog.Logger
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Model:           "gpt-5-mini",
		Retry:           DefaultRetryPolicy(),
		LimiterPoll:     250 * time.Millisecond,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Request is one text-generation call.
type Request struct {
	Instructions    string
	Input           string
	MaxOutputTokens int64
}

// JSONFormat asks for strict structured output matching Schema.
type JSONFormat struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Generator issues Responses API calls through a token bucket, a circuit
// breaker and the retry policy, in that order. It is safe for concurrent use.
type Generator struct {
	api     ResponsesAPI
	cfg     GeneratorConfig
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker
	limiter *limiter.TokenBucket
}

func NewGenerator(api ResponsesAPI, cfg GeneratorConfig) (*Generator, error) {
	if api == nil {
		return nil, errors.New("NewGenerator: api is nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("NewGenerator: model is empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		api:    api,
		cfg:    cfg,
		logger: logger.With("component", "provider", "model", cfg.Model),
	}

	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		tb, err := limiter.NewTokenBucket(
			limiter.Config{
				Rate:     int64(cfg.RequestsPerMinute),
				Duration: time.Minute,
				Burst:    int64(burst),
			},
			store.NewMemoryStore(time.Minute),
		)
		if err != nil {
			return nil, fmt.Errorf("NewGenerator: rate limiter: %w", err)
		}
		g.limiter = tb
		if g.cfg.LimiterPoll <= 0 {
			g.cfg.LimiterPoll = 250 * time.Millisecond
		}
	}

	if cfg.BreakerFailures > 0 {
		threshold := cfg.BreakerFailures
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "responses",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return g, nil
}

// Generate returns the trimmed output text for req.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	text, err := g.respond(ctx, g.params(req, nil))
	if err != nil {
		return "", fmt.Errorf("Generator.Generate: %w", err)
	}
	return text, nil
}

// GenerateJSON requests structured output and returns the raw JSON text.
func (g *Generator) GenerateJSON(ctx context.Context, req Request, format JSONFormat) (string, error) {
	text, err := g.respond(ctx, g.params(req, &format))
	if err != nil {
		return "", fmt.Errorf("Generator.GenerateJSON: %w", err)
	}
	return text, nil
}

func (g *Generator) params(req Request, format *JSONFormat) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: g.cfg.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Input, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(req.MaxOutputTokens)
	}
	if strings.TrimSpace(req.Instructions) != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if g.cfg.Flex {
		params.ServiceTier = responses.ResponseNewParamsServiceTierFlex
	}
	if format != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        format.Name,
					Schema:      format.Schema,
					Strict:      openai.Bool(true),
					Description: openai.String(format.Description),
					Type:        "json_schema",
				},
			},
		}
	}
	return params
}

func (g *Generator) respond(ctx context.Context, params responses.ResponseNewParams) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}

	call := func() (*responses.Response, error) {
		return CallWithRetry(ctx, g.api, g.cfg.Retry, params)
	}
	var resp *responses.Response
	if g.breaker == nil {
		r, err := call()
		if err != nil {
			return "", err
		}
		resp = r
	} else {
		out, err := g.breaker.Execute(func() (interface{}, error) {
			r, err := call()
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(r.OutputText()) == "" {
				return nil, ErrEmptyOutput
			}
			return r, nil
		})
		if err != nil {
			return "", err
		}
		resp = out.(*responses.Response)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// wait blocks until the token bucket admits a call or ctx is done.
func (g *Generator) wait(ctx context.Context) error {
	if g.limiter == nil {
		return ctx.Err()
	}
	for !g.limiter.Allow(limiterKey) {
		if err := sleepCtx(ctx, g.cfg.LimiterPoll); err != nil {
			return err
		}
	}
	return nil
}
