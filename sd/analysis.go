package sd

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/tidwall/gjson"
)

// SensitivityResult holds run outcomes for a sweep of one parameter.
type SensitivityResult struct {
	Parameter          string     `json:"parameter"`
	BaseValue          float64    `json:"base_value"`
	Values             []float64  `json:"values"`
	ContrarianConverts []float64  `json:"contrarian_converts"`
	ConsensusConverts  []float64  `json:"consensus_converts"`
	PeakArousal        []float64  `json:"peak_arousal"`
	ThresholdTimes     []*float64 `json:"threshold_times"`
	Elasticity         float64    `json:"elasticity"`
}

// ComputeElasticity is the percentage change in contrarian converts across
// the sweep over the percentage change in the parameter. The output change
// is taken relative to the middle sample, floored at 0.1. Sweeps with fewer
// than three values have no elasticity.
func (r SensitivityResult) ComputeElasticity() float64 {
	n := len(r.Values)
	if n < 3 || len(r.ContrarianConverts) != n || r.BaseValue == 0 {
		return 0
	}
	paramChange := (r.Values[n-1] - r.Values[0]) / r.BaseValue * 100
	if math.Abs(paramChange) < 0.01 {
		return 0
	}
	mid := math.Max(0.1, r.ContrarianConverts[n/2])
	outputChange := (r.ContrarianConverts[n-1] - r.ContrarianConverts[0]) / mid * 100
	return outputChange / paramChange
}

// Sensitivity runs base once per value with the named parameter replaced.
func Sensitivity(base Parameters, name string, values []float64) (SensitivityResult, error) {
	baseValue, err := base.Get(name)
	if err != nil {
		return SensitivityResult{}, fmt.Errorf("Sensitivity: %w", err)
	}
	r := SensitivityResult{
		Parameter: name,
		BaseValue: baseValue,
		Values:    append([]float64(nil), values...),
	}
	for _, v := range values {
		p := base
		if err := p.Set(name, v); err != nil {
			return SensitivityResult{}, fmt.Errorf("Sensitivity: %w", err)
		}
		_, s, err := Simulate(p)
		if err != nil {
			return SensitivityResult{}, fmt.Errorf("Sensitivity: %s=%g: %w", name, v, err)
		}
		r.ContrarianConverts = append(r.ContrarianConverts, s.Final.ContrarianConverts)
		r.ConsensusConverts = append(r.ConsensusConverts, s.Final.ConsensusConverts)
		r.PeakArousal = append(r.PeakArousal, s.Dynamics.PeakArousal)
		r.ThresholdTimes = append(r.ThresholdTimes, s.Dynamics.ThresholdCrossingTime)
	}
	r.Elasticity = r.ComputeElasticity()
	return r, nil
}

// SweepRange is an evenly spaced sweep of one parameter.
type SweepRange struct {
	Parameter string
	Low, High float64
	Steps     int
}

// SensitivitySweeps are the ranges used by FullSensitivity.
var SensitivitySweeps = []SweepRange{
	{"arousal_contagion_rate", 0.04, 0.24, 5},
	{"arousal_decay_rate", 0.005, 0.04, 5},
	{"threshold_arousal", 0.8, 0.99, 5},
	{"threshold_multiplier", 1.5, 6.0, 5},
	{"base_conversion_rate", 0.005, 0.04, 5},
	{"arousal_amplifier", 1.0, 4.0, 5},
	{"contrarian_emotion", 0.3, 0.8, 5},
	{"frame_adoption_rate", 0.02, 0.12, 5},
}

// FullSensitivity sweeps every entry of SensitivitySweeps, in order.
func FullSensitivity(base Parameters) ([]SensitivityResult, error) {
	out := make([]SensitivityResult, 0, len(SensitivitySweeps))
	for _, sw := range SensitivitySweeps {
		r, err := Sensitivity(base, sw.Parameter, Linspace(sw.Low, sw.High, sw.Steps))
		if err != nil {
			return nil, fmt.Errorf("FullSensitivity: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// PolicyResult is one named scenario's summary.
type PolicyResult struct {
	Name    string  `json:"name"`
	Summary Summary `json:"summary"`
}

// RunPolicy applies the named intervention to base and runs it.
func RunPolicy(base Parameters, name string) (*Model, Summary, error) {
	p, err := ApplyPolicy(base, name)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("RunPolicy: %w", err)
	}
	m, s, err := Simulate(p)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("RunPolicy: %s: %w", name, err)
	}
	return m, s, nil
}

// CompareAllPolicies runs the baseline followed by every entry of PolicyNames.
func CompareAllPolicies(base Parameters) ([]PolicyResult, error) {
	_, baseline, err := Simulate(base)
	if err != nil {
		return nil, fmt.Errorf("CompareAllPolicies: baseline: %w", err)
	}
	out := []PolicyResult{{Name: "baseline", Summary: baseline}}
	for _, name := range PolicyNames {
		_, s, err := RunPolicy(base, name)
		if err != nil {
			return nil, fmt.Errorf("CompareAllPolicies: %w", err)
		}
		out = append(out, PolicyResult{Name: name, Summary: s})
	}
	return out, nil
}

// InterventionTarget is the contrarian convert count an intervention must
// stay under: less than half of the default 20 neutrals.
const InterventionTarget = 10

// InterventionThresholds searches, one lever at a time, for the first value
// that keeps contrarian converts below InterventionTarget. Levers with no
// such value in their range are absent from the result.
func InterventionThresholds(base Parameters) (map[string]float64, error) {
	type lever struct {
		name   string
		values []float64
		apply  func(p *Parameters, v float64)
	}
	levers := []lever{
		{"arousal_decay_rate", Linspace(0.01, 0.1, 20), func(p *Parameters, v float64) { p.ArousalDecayRate = v }},
		{"emotion_weight", Linspace(0.4, 0.1, 20), func(p *Parameters, v float64) {
			p.EmotionWeight = v
			p.ProvocativeWeight = v
		}},
		{"arousal_contagion_rate", Linspace(0.12, 0.02, 20), func(p *Parameters, v float64) { p.ArousalContagionRate = v }},
	}

	out := make(map[string]float64)
	for _, l := range levers {
		for _, v := range l.values {
			p := base
			l.apply(&p, v)
			_, s, err := Simulate(p)
			if err != nil {
				return nil, fmt.Errorf("InterventionThresholds: %s=%g: %w", l.name, v, err)
			}
			if s.Final.ContrarianConverts < InterventionTarget {
				out[l.name] = v
				break
			}
		}
	}
	return out, nil
}

// EquilibriumTime is how long Equilibrium integrates.
const EquilibriumTime = 200

type EquilibriumResult struct {
	AtEquilibrium          bool    `json:"at_equilibrium"`
	FinalNeutrals          float64 `json:"final_neutrals"`
	FinalContrarian        float64 `json:"final_contrarian"`
	FinalArousal           float64 `json:"final_arousal"`
	NeutralsVariance       float64 `json:"neutrals_variance"`
	ContrarianVariance     float64 `json:"contrarian_variance"`
	ArousalVariance        float64 `json:"arousal_variance"`
	ExtendedSimulationTime float64 `json:"extended_simulation_time"`
}

// Equilibrium runs base for EquilibriumTime and checks whether the last 20%
// of the trajectory has settled.
func Equilibrium(base Parameters) (EquilibriumResult, error) {
	m, err := NewModel(base)
	if err != nil {
		return EquilibriumResult{}, fmt.Errorf("Equilibrium: %w", err)
	}
	history := m.RunFor(EquilibriumTime)
	late := history[int(float64(len(history))*0.8):]

	var n, c, a []float64
	for _, s := range late {
		n = append(n, s.Neutrals)
		c = append(c, s.ContrarianConverts)
		a = append(a, s.Arousal)
	}
	final := history[len(history)-1]
	r := EquilibriumResult{
		FinalNeutrals:          final.Neutrals,
		FinalContrarian:        final.ContrarianConverts,
		FinalArousal:           final.Arousal,
		NeutralsVariance:       variance(n),
		ContrarianVariance:     variance(c),
		ArousalVariance:        variance(a),
		ExtendedSimulationTime: EquilibriumTime,
	}
	r.AtEquilibrium = r.NeutralsVariance < 0.01 && r.ContrarianVariance < 0.01 && r.ArousalVariance < 0.0001
	return r, nil
}

// variance is the population variance.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return ss / float64(len(xs))
}

// Validation scores a baseline run against ABM statistics.
type Validation struct {
	ContrarianConverts MetricComparison `json:"contrarian_converts"`
	ConsensusConverts  MetricComparison `json:"consensus_converts"`
	PeakArousal        MetricComparison `json:"peak_arousal"`
	OverallMatchScore  float64          `json:"overall_match_score"`
}

// ValidateAgainstABM runs base and matches contrarian converts within 3,
// consensus converts within 1 and peak arousal within 0.1.
func ValidateAgainstABM(base Parameters, abm ABMResults) (Validation, error) {
	_, s, err := Simulate(base)
	if err != nil {
		return Validation{}, fmt.Errorf("ValidateAgainstABM: %w", err)
	}
	v := Validation{
		ContrarianConverts: compareMetric(s.Final.ContrarianConverts, abm.ToContrarian, 3),
		ConsensusConverts:  compareMetric(s.Final.ConsensusConverts, abm.ToConsensus, 1),
		PeakArousal:        compareMetric(s.Dynamics.PeakArousal, abm.PeakArousal, 0.1),
	}
	matches := 0
	for _, m := range []MetricComparison{v.ContrarianConverts, v.ConsensusConverts, v.PeakArousal} {
		if m.Match {
			matches++
		}
	}
	v.OverallMatchScore = float64(matches) / 3
	return v, nil
}

// LoadABMResults reads the ABM statistics from an opinion-sim export.
func LoadABMResults(path string) (ABMResults, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ABMResults{}, fmt.Errorf("LoadABMResults: read file: %w", err)
	}
	r, err := ParseABMResults(b)
	if err != nil {
		return ABMResults{}, fmt.Errorf("LoadABMResults: %s: %w", path, err)
	}
	return r, nil
}

// ParseABMResults accepts a full export (reading its "abm_results" block) or
// a bare results object. Exports without a results block are reduced from
// their conversion events and round summaries. Fields missing from a results
// object keep the reference values; a missing threshold_round means the
// threshold was never reached.
func ParseABMResults(data []byte) (ABMResults, error) {
	if !gjson.ValidBytes(data) {
		return ABMResults{}, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)

	block := root.Get("abm_results")
	if !block.Exists() && root.Get("to_contrarian").Exists() {
		block = root
	}
	if block.Exists() {
		r := DefaultABMResults()
		if v := block.Get("to_contrarian"); v.Exists() {
			r.ToContrarian = v.Float()
		}
		if v := block.Get("to_consensus"); v.Exists() {
			r.ToConsensus = v.Float()
		}
		if v := block.Get("peak_arousal"); v.Exists() {
			r.PeakArousal = v.Float()
		}
		r.ThresholdRound, r.ThresholdReached = 0, false
		if v := block.Get("threshold_round"); v.Exists() && v.Float() > 0 {
			r.ThresholdRound, r.ThresholdReached = v.Float(), true
		}
		return r, nil
	}

	events := root.Get("conversion_events")
	rounds := root.Get("round_summaries")
	if !events.Exists() && !rounds.Exists() {
		return ABMResults{}, errors.New("no abm_results, conversion_events or round_summaries")
	}
	var r ABMResults
	r.ToContrarian = float64(len(root.Get(`conversion_events.#(direction=="to_contrarian")#`).Array()))
	r.ToConsensus = float64(len(root.Get(`conversion_events.#(direction=="to_consensus")#`).Array()))
	rounds.ForEach(func(_, s gjson.Result) bool {
		arousal := s.Get("avg_arousal").Float()
		r.PeakArousal = math.Max(r.PeakArousal, arousal)
		if !r.ThresholdReached && arousal >= DefaultParameters().ThresholdArousal {
			r.ThresholdRound, r.ThresholdReached = s.Get("round").Float(), true
		}
		return true
	})
	return r, nil
}
