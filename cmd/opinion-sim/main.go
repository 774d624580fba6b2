package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/theimaginaryfoundation/opinion-amplifier/abm"
	"github.com/theimaginaryfoundation/opinion-amplifier/abm/lexical"
	"github.com/theimaginaryfoundation/opinion-amplifier/fileutils"
	"github.com/theimaginaryfoundation/opinion-amplifier/provider"
)

const (
	exportFile     = "export.json"
	postsFile      = "posts.jsonl"
	transcriptFile = "transcript.txt"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, err := lexical.New(lexical.Language(cfg.Language))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	var (
		writer abm.PostWriter    = abm.NewCannedWriter()
		scorer abm.ContentScorer = analyzer
	)
	if !cfg.Offline {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key, or -offline)")
			os.Exit(2)
		}
		client := openai.NewClient(option.WithAPIKey(apiKey))

		genCfg := provider.DefaultGeneratorConfig()
		genCfg.Model = cfg.Model
		genCfg.Flex = cfg.Flex
		genCfg.RequestsPerMinute = cfg.RPM
		genCfg.Burst = cfg.Concurrency
		genCfg.Retry.MaxAttempts = cfg.Retries
		genCfg.Logger = logger
		gen, err := provider.NewGenerator(&client.Responses, genCfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		writer = &modelWriter{gen: gen, lang: cfg.Language}

		if cfg.LLMScorer {
			rater, err := provider.NewContentRater(gen, analyzer, logger)
			if err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(2)
			}
			scorer = rater
		}
	}

	res, err := run(ctx, cfg, writer, scorer, logger, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	thresholdRound := "none"
	if res.Results.ThresholdRound > 0 {
		thresholdRound = fmt.Sprintf("%d", res.Results.ThresholdRound)
	}
	fmt.Fprintf(os.Stdout,
		"rounds=%d posts=%d conversions=%d to_contrarian=%d to_consensus=%d peak_arousal=%.3f threshold_round=%s final=%s out_dir=%s\n",
		res.Metadata.TotalRounds,
		res.Metadata.TotalPosts,
		res.Metadata.TotalConversions,
		res.Results.ToContrarian,
		res.Results.ToConsensus,
		res.Results.PeakArousal,
		thresholdRound,
		res.Final,
		cfg.OutDir,
	)
}

type runResult struct {
	abm.Export
	Final abm.Distribution
}

// run plays the simulation and writes the export files into cfg.OutDir.
// Progress lines go to progress when cfg.Verbose is set.
func run(ctx context.Context, cfg Config, writer abm.PostWriter, scorer abm.ContentScorer, logger *slog.Logger, progress io.Writer) (runResult, error) {
	exportPath := filepath.Join(cfg.OutDir, exportFile)
	if !cfg.Overwrite && fileutils.FileExists(exportPath) {
		return runResult{}, fmt.Errorf("%s exists (pass -overwrite to replace it)", exportPath)
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return runResult{}, fmt.Errorf("mkdir -out: %w", err)
	}

	engine, err := abm.NewEngine(cfg.engineConfig(), writer, scorer, abm.WithLogger(logger))
	if err != nil {
		return runResult{}, err
	}
	engine.InitializePopulation()
	if cfg.Verbose {
		fmt.Fprintf(progress, "initial %s\n", engine.Distribution())
	}

	var runErr error
	for round := 1; round <= cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("round %d: %w", round, err)
			break
		}
		summary, err := engine.RunRound(ctx, round)
		if err != nil {
			runErr = err
			break
		}
		if cfg.Verbose {
			fmt.Fprintf(progress, "round=%d/%d %s avg_opinion=%.3f avg_arousal=%.3f conversions=%d\n",
				round, cfg.Rounds, summary.Distribution, summary.AvgOpinion, summary.AvgArousal, summary.NumConversions)
		}
	}

	// Partial runs are exported too.
	tracker := engine.Tracker()
	ex := tracker.Export()
	if err := fileutils.WriteJSONFileAtomic(exportPath, ex, cfg.Pretty); err != nil {
		return runResult{}, err
	}
	if err := fileutils.WriteJSONLines(filepath.Join(cfg.OutDir, postsFile), ex.Posts); err != nil {
		return runResult{}, err
	}
	if err := fileutils.WriteFileAtomic(filepath.Join(cfg.OutDir, transcriptFile), []byte(tracker.Transcript()), 0o644); err != nil {
		return runResult{}, err
	}
	if runErr != nil {
		return runResult{}, fmt.Errorf("simulation stopped early (partial export written): %w", runErr)
	}
	return runResult{Export: ex, Final: engine.Distribution()}, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for export.json, posts.jsonl and transcript.txt")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model used to write posts (e.g. gpt-5-mini)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.StringVar(&cfg.Topic, "topic", cfg.Topic, "Debate topic given to every agent")
	fs.StringVar(&cfg.Language, "lang", cfg.Language, "Post language and lexical word lists: en or no")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print export.json")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite an existing export in -out")
	fs.BoolVar(&cfg.Offline, "offline", false, "Use canned posts instead of the API")
	fs.BoolVar(&cfg.Verbose, "v", false, "Print per-round progress to stderr")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "Number of rounds to simulate")
	fs.IntVar(&cfg.PostsPerRound, "posts-per-round", cfg.PostsPerRound, "Speakers drawn per round")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max concurrent post generations within a round")
	fs.BoolVar(&cfg.SpiralOfSilence, "spiral-of-silence", false, "Minority-view agents post less often")
	fs.Float64Var(&cfg.ReplyProb, "reply-prob", 0, "Probability a consensus speaker replies confrontationally to a recent contrarian post")
	fs.BoolVar(&cfg.LLMScorer, "llm-scorer", false, "Score posts with the model (lexical scorer is the fallback)")
	fs.BoolVar(&cfg.Flex, "flex", false, "Request the flex service tier")
	fs.IntVar(&cfg.RPM, "rpm", cfg.RPM, "Max API requests per minute (0 = unpaced)")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Attempts per API call (1 disables retry)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	return cfg, nil
}
