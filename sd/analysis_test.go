package sd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoliciesReduceContrarianConverts(t *testing.T) {
	t.Parallel()
	results, err := CompareAllPolicies(DefaultParameters())
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "baseline", results[0].Name)

	baseline := results[0].Summary
	for i, name := range PolicyNames {
		r := results[i+1]
		assert.Equal(t, name, r.Name)
		assert.Less(t, r.Summary.Final.ContrarianConverts, baseline.Final.ContrarianConverts, name)
	}

	_, cooling, err := RunPolicy(DefaultParameters(), "cooling_off")
	require.NoError(t, err)
	assert.InDelta(t, 8.78, cooling.Final.ContrarianConverts, 0.05)
	assert.Less(t, cooling.Dynamics.PeakArousal, baseline.Dynamics.PeakArousal)
}

func TestSensitivityDecayRate(t *testing.T) {
	t.Parallel()
	r, err := Sensitivity(DefaultParameters(), "arousal_decay_rate", []float64{0.005, 0.012, 0.04})
	require.NoError(t, err)
	assert.Equal(t, 0.012, r.BaseValue)
	require.Len(t, r.ContrarianConverts, 3)
	assert.Greater(t, r.ContrarianConverts[0], r.ContrarianConverts[1])
	assert.Greater(t, r.ContrarianConverts[1], r.ContrarianConverts[2])
	assert.Less(t, r.Elasticity, 0.0)

	// Slow decay pushes arousal over the threshold.
	require.NotNil(t, r.ThresholdTimes[0])
	assert.Nil(t, r.ThresholdTimes[2])

	_, err = Sensitivity(DefaultParameters(), "no_such_parameter", []float64{1})
	assert.ErrorIs(t, err, ErrUnknownParameter)
}

func TestSensitivityUsesBaseParameters(t *testing.T) {
	t.Parallel()
	base := DefaultParameters()
	base.BaseConversionRate = 0
	r, err := Sensitivity(base, "arousal_decay_rate", []float64{0.01, 0.02})
	require.NoError(t, err)
	for _, c := range r.ContrarianConverts {
		assert.Zero(t, c)
	}
}

func TestElasticity(t *testing.T) {
	t.Parallel()
	r := SensitivityResult{
		BaseValue:          2,
		Values:             []float64{1, 2, 3},
		ContrarianConverts: []float64{2, 4, 6},
	}
	assert.InDelta(t, 1.0, r.ComputeElasticity(), 1e-9)

	r.ContrarianConverts = []float64{6, 0, 2}
	// Output change is relative to max(0.1, middle sample).
	assert.InDelta(t, (-4/0.1*100)/100, r.ComputeElasticity(), 1e-9)

	short := SensitivityResult{BaseValue: 1, Values: []float64{1, 2}, ContrarianConverts: []float64{1, 2}}
	assert.Zero(t, short.ComputeElasticity())
}

func TestFullSensitivityCoversSweeps(t *testing.T) {
	t.Parallel()
	results, err := FullSensitivity(DefaultParameters())
	require.NoError(t, err)
	require.Len(t, results, len(SensitivitySweeps))
	for i, r := range results {
		assert.Equal(t, SensitivitySweeps[i].Parameter, r.Parameter)
		assert.Len(t, r.Values, 5)
		assert.Len(t, r.ContrarianConverts, 5)
	}
}

func TestLinspace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))
	desc := Linspace(0.4, 0.1, 4)
	assert.InDelta(t, 0.3, desc[1], 1e-12)
	assert.Equal(t, 0.1, desc[3])
}

func TestInterventionThresholds(t *testing.T) {
	t.Parallel()
	th, err := InterventionThresholds(DefaultParameters())
	require.NoError(t, err)

	decay, ok := th["arousal_decay_rate"]
	require.True(t, ok)
	assert.Greater(t, decay, DefaultParameters().ArousalDecayRate)
	assert.LessOrEqual(t, decay, 0.1)

	p := DefaultParameters()
	p.ArousalDecayRate = decay
	_, s, err := Simulate(p)
	require.NoError(t, err)
	assert.Less(t, s.Final.ContrarianConverts, float64(InterventionTarget))

	// Scaling both content weights leaves the visibility ratio unchanged.
	assert.NotContains(t, th, "emotion_weight")
}

func TestEquilibrium(t *testing.T) {
	t.Parallel()
	eq, err := Equilibrium(DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, 200.0, eq.ExtendedSimulationTime)
	assert.True(t, eq.AtEquilibrium)
	assert.Less(t, eq.FinalNeutrals, 1.0)
	assert.Greater(t, eq.FinalContrarian, 19.0)
	assert.Less(t, eq.ArousalVariance, 1e-4)
}

func TestValidateAgainstABM(t *testing.T) {
	t.Parallel()
	v, err := ValidateAgainstABM(DefaultParameters(), DefaultABMResults())
	require.NoError(t, err)
	assert.True(t, v.ContrarianConverts.Match)
	assert.True(t, v.ConsensusConverts.Match)
	assert.True(t, v.PeakArousal.Match)
	assert.Equal(t, 1.0, v.OverallMatchScore)

	v, err = ValidateAgainstABM(DefaultParameters(), ABMResults{ToContrarian: 2, ToConsensus: 0, PeakArousal: 0.5})
	require.NoError(t, err)
	assert.False(t, v.ContrarianConverts.Match)
	assert.False(t, v.PeakArousal.Match)
	assert.InDelta(t, 1.0/3, v.OverallMatchScore, 1e-12)
}

func TestParseABMResultsFromExportBlock(t *testing.T) {
	t.Parallel()
	r, err := ParseABMResults([]byte(`{"metadata":{"total_rounds":50},"abm_results":{"to_contrarian":11,"to_consensus":2,"peak_arousal":0.95,"threshold_round":41}}`))
	require.NoError(t, err)
	assert.Equal(t, ABMResults{ToContrarian: 11, ToConsensus: 2, PeakArousal: 0.95, ThresholdRound: 41, ThresholdReached: true}, r)

	r, err = ParseABMResults([]byte(`{"abm_results":{"to_contrarian":3,"to_consensus":0,"peak_arousal":0.7}}`))
	require.NoError(t, err)
	assert.False(t, r.ThresholdReached)
	assert.Equal(t, 3.0, r.ToContrarian)

	r, err = ParseABMResults([]byte(`{"to_contrarian":9}`))
	require.NoError(t, err)
	assert.Equal(t, 9.0, r.ToContrarian)
	assert.Equal(t, 0.93, r.PeakArousal)
}

func TestParseABMResultsFromEvents(t *testing.T) {
	t.Parallel()
	data := []byte(`{
		"round_summaries": [
			{"round": 1, "avg_arousal": 0.5},
			{"round": 2, "avg_arousal": 0.94},
			{"round": 3, "avg_arousal": 0.97},
			{"round": 4, "avg_arousal": 0.9}
		],
		"conversion_events": [
			{"round": 2, "agent": "N1", "direction": "to_contrarian"},
			{"round": 3, "agent": "N2", "direction": "to_contrarian"},
			{"round": 3, "agent": "N3", "direction": "to_consensus"}
		]
	}`)
	r, err := ParseABMResults(data)
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.ToContrarian)
	assert.Equal(t, 1.0, r.ToConsensus)
	assert.InDelta(t, 0.97, r.PeakArousal, 1e-12)
	assert.True(t, r.ThresholdReached)
	assert.Equal(t, 2.0, r.ThresholdRound)
}

func TestLoadABMResultsErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := LoadABMResults(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = LoadABMResults(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"metadata":{}}`), 0o644))
	_, err = LoadABMResults(empty)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"abm_results":{"to_contrarian":12,"to_consensus":0,"peak_arousal":0.93,"threshold_round":46}}`), 0o644))
	r, err := LoadABMResults(good)
	require.NoError(t, err)
	assert.Equal(t, DefaultABMResults(), r)
}
