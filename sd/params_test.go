package sd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyLookup(t *testing.T) {
	t.Parallel()
	base := DefaultParameters()

	p, err := Policy("reduced_bias")
	require.NoError(t, err)
	assert.Equal(t, 1.1, p.ContrarianEngagementBoost)
	assert.Equal(t, 0.2, p.ProvocativeWeight)
	assert.Less(t, p.VisibilityRatio(), base.VisibilityRatio())

	p, err = Policy("cooling_off")
	require.NoError(t, err)
	assert.Equal(t, 0.045, p.ArousalDecayRate)

	p, err = Policy("friction")
	require.NoError(t, err)
	assert.Equal(t, 0.04, p.ArousalContagionRate)
	assert.Equal(t, 0.02, p.FrameAdoptionRate)
	assert.Equal(t, base.ArousalDecayRate, p.ArousalDecayRate)

	_, err = Policy("censorship")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestApplyPolicyKeepsBase(t *testing.T) {
	t.Parallel()
	base := DefaultParameters()
	base.InitialNeutrals = 40
	p, err := ApplyPolicy(base, "cooling_off")
	require.NoError(t, err)
	assert.Equal(t, 40.0, p.InitialNeutrals)
	assert.Equal(t, 0.012, base.ArousalDecayRate, "base is not modified")
}

func TestGetSetByName(t *testing.T) {
	t.Parallel()
	p := DefaultParameters()
	v, err := p.Get("threshold_arousal")
	require.NoError(t, err)
	assert.Equal(t, 0.93, v)

	require.NoError(t, p.Set("threshold_arousal", 0.8))
	assert.Equal(t, 0.8, p.ThresholdArousal)

	assert.ErrorIs(t, p.Set("sub_steps", 3), ErrUnknownParameter)
	_, err = p.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownParameter)

	names := ParameterNames()
	assert.Len(t, names, 29)
	assert.Contains(t, names, "secondary_propagation")
	assert.IsNonDecreasing(t, names)
	for _, sw := range SensitivitySweeps {
		assert.Contains(t, names, sw.Parameter)
	}
}

func TestTotalPopulation(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 25.0, DefaultParameters().TotalPopulation())
}

func TestLoadParametersYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arousal_decay_rate: 0.045\nt_final: 20\nsub_steps: 4\n"), 0o644))

	p, err := LoadParameters(path)
	require.NoError(t, err)
	assert.Equal(t, 0.045, p.ArousalDecayRate)
	assert.Equal(t, 20.0, p.TFinal)
	assert.Equal(t, 4, p.SubSteps)
	assert.Equal(t, 0.93, p.ThresholdArousal, "unset keys keep defaults")
}

func TestParseParametersJSONAndErrors(t *testing.T) {
	t.Parallel()
	p, err := ParseParameters([]byte(`{"threshold_arousal": 0.9, "initial_neutrals": 30}`))
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.ThresholdArousal)
	assert.Equal(t, 30.0, p.InitialNeutrals)

	p, err = ParseParameters(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultParameters(), p)

	_, err = ParseParameters([]byte("arousal_decay: 0.1\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseParameters([]byte("dt: 0\n"))
	assert.Error(t, err)

	_, err = LoadParameters(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
