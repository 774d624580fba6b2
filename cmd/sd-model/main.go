package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/theimaginaryfoundation/opinion-amplifier/fileutils"
	"github.com/theimaginaryfoundation/opinion-amplifier/sd"
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

	params, abmResults, err := loadInputs(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	line, err := run(cfg, params, abmResults)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, line)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "One of: "+strings.Join(modes, ", "))
	fs.StringVar(&cfg.ParamsPath, "params", "", "Optional YAML or JSON parameter file (unset keys keep defaults)")
	fs.StringVar(&cfg.ABMPath, "abm", "", "Optional opinion-sim export.json to compare against (default: reference ABM figures)")
	fs.StringVar(&cfg.Policy, "policy", "", "Run a single policy in -mode policy ("+strings.Join(sd.PolicyNames, ", ")+"); empty compares all")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for the JSON summary")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print JSON output")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing output files")
	fs.BoolVar(&cfg.Trajectory, "trajectory", cfg.Trajectory, "Also write the state trajectory as JSONL (baseline and single-policy runs)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	if cfg.ParamsPath != "" {
		cfg.ParamsPath = filepath.Clean(cfg.ParamsPath)
	}
	if cfg.ABMPath != "" {
		cfg.ABMPath = filepath.Clean(cfg.ABMPath)
	}
	return cfg, nil
}

func loadInputs(cfg Config) (sd.Parameters, sd.ABMResults, error) {
	params := sd.DefaultParameters()
	if cfg.ParamsPath != "" {
		p, err := sd.LoadParameters(cfg.ParamsPath)
		if err != nil {
			return sd.Parameters{}, sd.ABMResults{}, err
		}
		params = p
	}
	abmResults := sd.DefaultABMResults()
	if cfg.ABMPath != "" {
		r, err := sd.LoadABMResults(cfg.ABMPath)
		if err != nil {
			return sd.Parameters{}, sd.ABMResults{}, err
		}
		abmResults = r
	}
	return params, abmResults, nil
}

type conservation struct {
	Error float64 `json:"error"`
	OK    bool    `json:"ok"`
}

type baselineReport struct {
	Summary       sd.Summary    `json:"summary"`
	Conservation  conservation  `json:"conservation"`
	ABMResults    sd.ABMResults `json:"abm_results"`
	ABMComparison sd.Comparison `json:"abm_comparison"`
}

type sensitivityReport struct {
	Results []sd.SensitivityResult `json:"results"`
}

type interventionReport struct {
	Target     float64            `json:"target_contrarian_converts"`
	Thresholds map[string]float64 `json:"thresholds"`
}

// run executes cfg.Mode, writes its outputs into cfg.OutDir and returns the
// stdout summary line.
func run(cfg Config, params sd.Parameters, abmResults sd.ABMResults) (string, error) {
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir -out: %w", err)
	}
	if cfg.ParamsPath != "" {
		dst := filepath.Join(cfg.OutDir, "params"+filepath.Ext(cfg.ParamsPath))
		if _, err := fileutils.CopyFileIfExists(cfg.ParamsPath, dst, cfg.Overwrite); err != nil {
			return "", fmt.Errorf("copy -params: %w", err)
		}
	}

	switch cfg.Mode {
	case "baseline":
		m, s, err := sd.Simulate(params)
		if err != nil {
			return "", err
		}
		cerr, err := m.ConservationError()
		if err != nil {
			return "", err
		}
		report := baselineReport{
			Summary:       s,
			Conservation:  conservation{Error: cerr, OK: cerr <= sd.ConservationTolerance},
			ABMResults:    abmResults,
			ABMComparison: sd.CompareWithABM(s, abmResults),
		}
		out := filepath.Join(cfg.OutDir, "baseline.json")
		if err := writeOutputs(cfg, out, report, m); err != nil {
			return "", err
		}
		return fmt.Sprintf("mode=baseline neutrals=%.2f contrarian=%.2f consensus=%.2f peak_arousal=%.3f threshold_time=%s conservation_ok=%v out=%s",
			s.Final.Neutrals, s.Final.ContrarianConverts, s.Final.ConsensusConverts,
			s.Dynamics.PeakArousal, formatOptional(s.Dynamics.ThresholdCrossingTime), report.Conservation.OK, out), nil

	case "policy":
		if cfg.Policy != "" {
			m, s, err := sd.RunPolicy(params, cfg.Policy)
			if err != nil {
				return "", err
			}
			out := filepath.Join(cfg.OutDir, "policy_"+cfg.Policy+".json")
			if err := writeOutputs(cfg, out, sd.PolicyResult{Name: cfg.Policy, Summary: s}, m); err != nil {
				return "", err
			}
			return fmt.Sprintf("mode=policy policy=%s contrarian=%.2f peak_arousal=%.3f out=%s",
				cfg.Policy, s.Final.ContrarianConverts, s.Dynamics.PeakArousal, out), nil
		}
		results, err := sd.CompareAllPolicies(params)
		if err != nil {
			return "", err
		}
		out := filepath.Join(cfg.OutDir, "policies.json")
		if err := writeOutputs(cfg, out, results, nil); err != nil {
			return "", err
		}
		parts := make([]string, 0, len(results))
		for _, r := range results {
			parts = append(parts, fmt.Sprintf("%s=%.2f", r.Name, r.Summary.Final.ContrarianConverts))
		}
		return fmt.Sprintf("mode=policy scenarios=%d contrarian[%s] out=%s", len(results), strings.Join(parts, " "), out), nil

	case "sensitivity":
		results, err := sd.FullSensitivity(params)
		if err != nil {
			return "", err
		}
		out := filepath.Join(cfg.OutDir, "sensitivity.json")
		if err := writeOutputs(cfg, out, sensitivityReport{Results: results}, nil); err != nil {
			return "", err
		}
		ranked := append([]sd.SensitivityResult(nil), results...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return math.Abs(ranked[i].Elasticity) > math.Abs(ranked[j].Elasticity)
		})
		most := "none"
		if len(ranked) > 0 {
			most = fmt.Sprintf("%s(%.2f)", ranked[0].Parameter, ranked[0].Elasticity)
		}
		return fmt.Sprintf("mode=sensitivity parameters=%d most_elastic=%s out=%s", len(results), most, out), nil

	case "validate":
		v, err := sd.ValidateAgainstABM(params, abmResults)
		if err != nil {
			return "", err
		}
		out := filepath.Join(cfg.OutDir, "validation.json")
		if err := writeOutputs(cfg, out, v, nil); err != nil {
			return "", err
		}
		return fmt.Sprintf("mode=validate match_score=%.2f contrarian_match=%v consensus_match=%v peak_arousal_match=%v out=%s",
			v.OverallMatchScore, v.ContrarianConverts.Match, v.ConsensusConverts.Match, v.PeakArousal.Match, out), nil

	case "equilibrium":
		eq, err := sd.Equilibrium(params)
		if err != nil {
			return "", err
		}
		out := filepath.Join(cfg.OutDir, "equilibrium.json")
		if err := writeOutputs(cfg, out, eq, nil); err != nil {
			return "", err
		}
		return fmt.Sprintf("mode=equilibrium at_equilibrium=%v final_contrarian=%.2f final_arousal=%.3f out=%s",
			eq.AtEquilibrium, eq.FinalContrarian, eq.FinalArousal, out), nil

	case "intervention":
		th, err := sd.InterventionThresholds(params)
		if err != nil {
			return "", err
		}
		out := filepath.Join(cfg.OutDir, "intervention.json")
		if err := writeOutputs(cfg, out, interventionReport{Target: sd.InterventionTarget, Thresholds: th}, nil); err != nil {
			return "", err
		}
		names := make([]string, 0, len(th))
		for name := range th {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%.4g", name, th[name]))
		}
		return fmt.Sprintf("mode=intervention levers=%d thresholds[%s] out=%s", len(th), strings.Join(parts, " "), out), nil
	}
	return "", fmt.Errorf("unknown mode %q", cfg.Mode)
}

// writeOutputs writes v as JSON to path and, when m is set and trajectories
// are enabled, the states next to it as <name>_states.jsonl.
func writeOutputs(cfg Config, path string, v any, m *sd.Model) error {
	if !cfg.Overwrite && fileutils.FileExists(path) {
		return fmt.Errorf("%s exists (pass -overwrite to replace it)", path)
	}
	if err := fileutils.WriteJSONFileAtomic(path, v, cfg.Pretty); err != nil {
		return err
	}
	if m == nil || !cfg.Trajectory {
		return nil
	}
	statesPath := strings.TrimSuffix(path, ".json") + "_states.jsonl"
	return fileutils.WriteJSONLines(statesPath, m.States())
}

func formatOptional(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *v)
}
