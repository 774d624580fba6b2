package abm

import (
	"math"
	"math/rand/v2"
)

// OpinionType is the discrete class used for distribution counts.
type OpinionType string

const (
	OpinionContrarian OpinionType = "contrarian"
	OpinionNeutral    OpinionType = "neutral"
	OpinionConsensus  OpinionType = "consensus"
)

// ConversionThreshold is the |position| beyond which an opinion stops counting as neutral.
const ConversionThreshold = 0.3

const (
	maxInvestment      = 2.0
	stabilityIncrement = 0.01
	stabilityCap       = 0.9
)

// Opinion is a stance on the debated topic. Negative positions lean contrarian.
type Opinion struct {
	Position   float64 `json:"position"`
	Confidence float64 `json:"confidence"`
	Stability  float64 `json:"stability"`

	CognitiveInvestment float64 `json:"cognitive_investment"` // [0,2]
	InvestmentDirection float64 `json:"investment_direction"` // [-1,1]

	History []float64 `json:"position_history"`
}

// NewOpinion returns an opinion whose history already holds the initial position.
func NewOpinion(position, confidence, stability float64) Opinion {
	position = clamp(position, -1, 1)
	return Opinion{
		Position:   position,
		Confidence: confidence,
		Stability:  stability,
		History:    []float64{position},
	}
}

// Classify buckets the position into contrarian, neutral or consensus.
func (o *Opinion) Classify() OpinionType {
	switch {
	case o.Position < -ConversionThreshold:
		return OpinionContrarian
	case o.Position > ConversionThreshold:
		return OpinionConsensus
	default:
		return OpinionNeutral
	}
}

// Describe renders the leaning as prompt text for undecided agents.
func (o *Opinion) Describe() string {
	switch {
	case o.Position < -0.6:
		return "You're strongly leaning toward the contrarian view - skeptical of renewables and the energy market."
	case o.Position < -0.3:
		return "You're somewhat skeptical of the mainstream energy narrative."
	case o.Position < -0.1:
		return "You're slightly leaning contrarian but still quite uncertain."
	case o.Position < 0.1:
		return "You're genuinely undecided, seeing valid points on both sides."
	case o.Position < 0.3:
		return "You're slightly leaning toward the consensus view on energy transition."
	case o.Position < 0.6:
		return "You're moderately supportive of the mainstream energy policy approach."
	default:
		return "You strongly support the consensus view on balanced energy transition."
	}
}

// OpinionInput carries everything one influence event contributes to an update.
type OpinionInput struct {
	Influence         float64
	SourceTrust       float64
	EmotionalImpact   float64
	ContrarianSource  bool
	LogicalCoherence  float64
	Traits            PersonalityTraits
	DebateTemperature float64
	AgentArousal      float64
}

// Update applies one dual-process, investment-ratcheted influence and returns
// the position change actually applied after clamping. Only the backlash step
// draws from rng.
func (o *Opinion) Update(in OpinionInput, rng *rand.Rand) float64 {
	t := in.Traits

	system2 := math.Max(0.1, t.AnalyticalWeight-0.4*in.DebateTemperature-0.3*in.AgentArousal)
	system1 := 1 - system2

	susceptibility := (1 - o.Confidence*0.4) * (1 - o.Stability*0.3)
	susceptibility *= 1 + system1*in.EmotionalImpact*0.4
	susceptibility *= t.ChangeRate

	effectiveness := system1*(in.EmotionalImpact*t.EmotionalSusceptibility) +
		system2*(in.LogicalCoherence*t.AnalyticalWeight)

	influence := in.Influence
	if in.EmotionalImpact > 0.8 && in.ContrarianSource && rng != nil {
		backlash := 0.3 * system2 * (2 - t.EmotionalSusceptibility)
		if rng.Float64() < backlash {
			influence = -influence * 0.5
		}
	}

	influence = o.ratchet(influence, in.SourceTrust, t.ReversalResistance)

	delta := influence * in.SourceTrust * susceptibility * effectiveness * 0.15
	old := o.Position
	o.Position = clamp(o.Position+delta, -1, 1)
	o.Stability = math.Max(o.Stability, math.Min(stabilityCap, o.Stability+stabilityIncrement))
	o.History = append(o.History, o.Position)
	return o.Position - old
}

// ratchet suppresses influence against the invested direction and grows
// investment for influence along it.
func (o *Opinion) ratchet(influence, trust, resistance float64) float64 {
	if influence == 0 {
		return 0
	}
	if resistance <= 0 {
		resistance = 1
	}
	sign := math.Copysign(1, influence)

	if o.InvestmentDirection != 0 && sign*o.InvestmentDirection < 0 {
		damp := math.Pow(math.Exp(-o.CognitiveInvestment*2.0), resistance)
		o.CognitiveInvestment = math.Max(0, o.CognitiveInvestment-math.Abs(influence)*(0.02/resistance))
		return influence * damp
	}

	o.CognitiveInvestment = math.Min(maxInvestment, o.CognitiveInvestment+math.Abs(influence)*trust*0.8*resistance)
	o.InvestmentDirection = clamp(0.8*o.InvestmentDirection+0.2*sign, -1, 1)
	return influence
}
