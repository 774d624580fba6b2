// Package sd is the aggregate (system dynamics) form of the opinion model:
// five coupled stocks integrated with a fixed-step Runge-Kutta solver.
//
// Stocks:
//
//	N  neutral population
//	C  neutrals converted to the contrarian side
//	S  neutrals converted to the consensus side
//	A  aggregate arousal, in [0, MaxArousal]
//	F  contrarian frame adoption fraction, in [0, 1]
package sd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownPolicy    = errors.New("sd: unknown policy")
	ErrUnknownParameter = errors.New("sd: unknown parameter")
)

// Parameters are the calibrated constants of the aggregate model. They are
// fit parameters against ABM runs, not ground truth, so every field can be
// overridden from a parameter file.
type Parameters struct {
	InitialNeutrals      float64 `json:"initial_neutrals" yaml:"initial_neutrals"`
	FixedContrarians     float64 `json:"fixed_contrarians" yaml:"fixed_contrarians"`
	FixedConsensus       float64 `json:"fixed_consensus" yaml:"fixed_consensus"`
	InitialArousal       float64 `json:"initial_arousal" yaml:"initial_arousal"`
	InitialFrameAdoption float64 `json:"initial_frame_adoption" yaml:"initial_frame_adoption"`

	ContrarianEmotion         float64 `json:"contrarian_emotion" yaml:"contrarian_emotion"`
	ContrarianProvocativeness float64 `json:"contrarian_provocativeness" yaml:"contrarian_provocativeness"`
	ContrarianEngagementBoost float64 `json:"contrarian_engagement_boost" yaml:"contrarian_engagement_boost"`
	ConsensusEmotion          float64 `json:"consensus_emotion" yaml:"consensus_emotion"`
	ConsensusProvocativeness  float64 `json:"consensus_provocativeness" yaml:"consensus_provocativeness"`
	ConsensusEngagementBoost  float64 `json:"consensus_engagement_boost" yaml:"consensus_engagement_boost"`

	EmotionWeight      float64 `json:"emotion_weight" yaml:"emotion_weight"`
	ProvocativeWeight  float64 `json:"provocative_weight" yaml:"provocative_weight"`
	RecencyWeight      float64 `json:"recency_weight" yaml:"recency_weight"`
	EngagementExponent float64 `json:"engagement_exponent" yaml:"engagement_exponent"`

	BaseConversionRate float64 `json:"base_conversion_rate" yaml:"base_conversion_rate"`
	ArousalAmplifier   float64 `json:"arousal_amplifier" yaml:"arousal_amplifier"`
	BaseSusceptibility float64 `json:"base_susceptibility" yaml:"base_susceptibility"`

	ThresholdArousal    float64 `json:"threshold_arousal" yaml:"threshold_arousal"`
	ThresholdMultiplier float64 `json:"threshold_multiplier" yaml:"threshold_multiplier"`
	ThresholdSmoothing  float64 `json:"threshold_smoothing" yaml:"threshold_smoothing"`

	ArousalContagionRate float64 `json:"arousal_contagion_rate" yaml:"arousal_contagion_rate"`
	ArousalDecayRate     float64 `json:"arousal_decay_rate" yaml:"arousal_decay_rate"`
	MaxArousal           float64 `json:"max_arousal" yaml:"max_arousal"`

	FrameAdoptionRate    float64 `json:"frame_adoption_rate" yaml:"frame_adoption_rate"`
	FrameDecayRate       float64 `json:"frame_decay_rate" yaml:"frame_decay_rate"`
	SecondaryPropagation float64 `json:"secondary_propagation" yaml:"secondary_propagation"`

	TFinal float64 `json:"t_final" yaml:"t_final"`
	DT     float64 `json:"dt" yaml:"dt"`
	// SubSteps is the number of RK4 steps taken per output step.
	SubSteps int `json:"sub_steps" yaml:"sub_steps"`
}

// DefaultParameters returns the values calibrated against the reference ABM
// run (12 of 20 neutrals converted to the contrarian side).
func DefaultParameters() Parameters {
	return Parameters{
		InitialNeutrals:  20,
		FixedContrarians: 1,
		FixedConsensus:   4,
		InitialArousal:   0.47,

		ContrarianEmotion:         0.58,
		ContrarianProvocativeness: 0.54,
		ContrarianEngagementBoost: 1.3,
		ConsensusEmotion:          0.04,
		ConsensusProvocativeness:  0.03,
		ConsensusEngagementBoost:  1.0,

		EmotionWeight:      0.4,
		ProvocativeWeight:  0.4,
		RecencyWeight:      0.2,
		EngagementExponent: 2.0,

		BaseConversionRate: 0.015,
		ArousalAmplifier:   2.5,
		BaseSusceptibility: 0.3,

		ThresholdArousal:    0.93,
		ThresholdMultiplier: 4.0,
		ThresholdSmoothing:  0.05,

		ArousalContagionRate: 0.18,
		ArousalDecayRate:     0.012,
		MaxArousal:           1.0,

		FrameAdoptionRate:    0.06,
		FrameDecayRate:       0.008,
		SecondaryPropagation: 0.4,

		TFinal:   50,
		DT:       0.1,
		SubSteps: 10,
	}
}

func (p Parameters) Validate() error {
	switch {
	case p.DT <= 0:
		return errors.New("dt must be > 0")
	case p.TFinal <= 0:
		return errors.New("t_final must be > 0")
	case p.SubSteps < 1:
		return errors.New("sub_steps must be >= 1")
	case p.InitialNeutrals < 0 || p.FixedContrarians < 0 || p.FixedConsensus < 0:
		return errors.New("population sizes must be >= 0")
	case p.MaxArousal <= 0:
		return errors.New("max_arousal must be > 0")
	case p.InitialArousal < 0 || p.InitialArousal > p.MaxArousal:
		return errors.New("initial_arousal must be in [0, max_arousal]")
	case p.InitialFrameAdoption < 0 || p.InitialFrameAdoption > 1:
		return errors.New("initial_frame_adoption must be in [0, 1]")
	case p.ThresholdSmoothing <= 0:
		return errors.New("threshold_smoothing must be > 0")
	}
	return nil
}

func (p Parameters) TotalPopulation() float64 {
	return p.InitialNeutrals + p.FixedContrarians + p.FixedConsensus
}

// VisibilityContrarian is the feed score of typical contrarian content:
// (we·emotion + wp·provocativeness) · boost^exponent. Recency is the same
// for both content types and cancels out of every ratio.
func (p Parameters) VisibilityContrarian() float64 {
	base := p.EmotionWeight*p.ContrarianEmotion + p.ProvocativeWeight*p.ContrarianProvocativeness
	return base * math.Pow(p.ContrarianEngagementBoost, p.EngagementExponent)
}

func (p Parameters) VisibilityConsensus() float64 {
	base := p.EmotionWeight*p.ConsensusEmotion + p.ProvocativeWeight*p.ConsensusProvocativeness
	return base * math.Pow(p.ConsensusEngagementBoost, p.EngagementExponent)
}

// VisibilityRatio is the contrarian visibility advantage; +Inf when consensus
// content has no visibility at all.
func (p Parameters) VisibilityRatio() float64 {
	vs := p.VisibilityConsensus()
	if vs <= 0 {
		return math.Inf(1)
	}
	return p.VisibilityContrarian() / vs
}

// fields maps parameter names to their storage. SubSteps is an integer and
// is not addressable by name.
func (p *Parameters) fields() map[string]*float64 {
	return map[string]*float64{
		"initial_neutrals":            &p.InitialNeutrals,
		"fixed_contrarians":           &p.FixedContrarians,
		"fixed_consensus":             &p.FixedConsensus,
		"initial_arousal":             &p.InitialArousal,
		"initial_frame_adoption":      &p.InitialFrameAdoption,
		"contrarian_emotion":          &p.ContrarianEmotion,
		"contrarian_provocativeness":  &p.ContrarianProvocativeness,
		"contrarian_engagement_boost": &p.ContrarianEngagementBoost,
		"consensus_emotion":           &p.ConsensusEmotion,
		"consensus_provocativeness":   &p.ConsensusProvocativeness,
		"consensus_engagement_boost":  &p.ConsensusEngagementBoost,
		"emotion_weight":              &p.EmotionWeight,
		"provocative_weight":          &p.ProvocativeWeight,
		"recency_weight":              &p.RecencyWeight,
		"engagement_exponent":         &p.EngagementExponent,
		"base_conversion_rate":        &p.BaseConversionRate,
		"arousal_amplifier":           &p.ArousalAmplifier,
		"base_susceptibility":         &p.BaseSusceptibility,
		"threshold_arousal":           &p.ThresholdArousal,
		"threshold_multiplier":        &p.ThresholdMultiplier,
		"threshold_smoothing":         &p.ThresholdSmoothing,
		"arousal_contagion_rate":      &p.ArousalContagionRate,
		"arousal_decay_rate":          &p.ArousalDecayRate,
		"max_arousal":                 &p.MaxArousal,
		"frame_adoption_rate":         &p.FrameAdoptionRate,
		"frame_decay_rate":            &p.FrameDecayRate,
		"secondary_propagation":       &p.SecondaryPropagation,
		"t_final":                     &p.TFinal,
		"dt":                          &p.DT,
	}
}

// Get returns the parameter with the given snake_case name.
func (p Parameters) Get(name string) (float64, error) {
	ptr, ok := p.fields()[name]
	if !ok {
		return 0, fmt.Errorf("Parameters.Get: %w: %q", ErrUnknownParameter, name)
	}
	return *ptr, nil
}

// Set assigns the parameter with the given snake_case name.
func (p *Parameters) Set(name string, v float64) error {
	ptr, ok := p.fields()[name]
	if !ok {
		return fmt.Errorf("Parameters.Set: %w: %q", ErrUnknownParameter, name)
	}
	*ptr = v
	return nil
}

// ParameterNames lists every name accepted by Get and Set, sorted.
func ParameterNames() []string {
	var p Parameters
	names := make([]string, 0, len(p.fields()))
	for name := range p.fields() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PolicyNames lists the built-in intervention scenarios in report order.
var PolicyNames = []string{"reduced_bias", "cooling_off", "friction"}

// ApplyPolicy returns base with the named intervention applied.
func ApplyPolicy(base Parameters, name string) (Parameters, error) {
	p := base
	switch name {
	case "reduced_bias":
		p.ContrarianEngagementBoost = 1.1
		p.ProvocativeWeight = 0.2
	case "cooling_off":
		p.ArousalDecayRate = 0.045
	case "friction":
		p.ArousalContagionRate = 0.04
		p.FrameAdoptionRate = 0.02
	default:
		return Parameters{}, fmt.Errorf("ApplyPolicy: %w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}

// Policy returns the default parameters with the named intervention applied.
func Policy(name string) (Parameters, error) {
	return ApplyPolicy(DefaultParameters(), name)
}

// LoadParameters reads a YAML or JSON parameter file over the defaults.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadParameters(path string) (Parameters, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("LoadParameters: read file: %w", err)
	}
	p, err := ParseParameters(b)
	if err != nil {
		return Parameters{}, fmt.Errorf("LoadParameters: %s: %w", path, err)
	}
	return p, nil
}

// ParseParameters decodes YAML (JSON is valid YAML) over the defaults.
func ParseParameters(data []byte) (Parameters, error) {
	p := DefaultParameters()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Parameters{}, fmt.Errorf("decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, fmt.Errorf("validate: %w", err)
	}
	return p, nil
}
