package abm

import (
	"fmt"
	"strings"
)

// Personality is the archetype a neutral observer is assigned at creation.
type Personality int

const (
	PersonalityBalanced Personality = iota
	PersonalityAnalytical
	PersonalityReactive
	PersonalityConformist
	PersonalityDisengaged
)

// Personalities lists every archetype in a stable order.
var Personalities = []Personality{
	PersonalityAnalytical,
	PersonalityReactive,
	PersonalityConformist,
	PersonalityDisengaged,
	PersonalityBalanced,
}

func (p Personality) String() string {
	switch p {
	case PersonalityAnalytical:
		return "analytical"
	case PersonalityReactive:
		return "reactive"
	case PersonalityConformist:
		return "conformist"
	case PersonalityDisengaged:
		return "disengaged"
	case PersonalityBalanced:
		return "balanced"
	default:
		return fmt.Sprintf("personality(%d)", int(p))
	}
}

// ParsePersonality is the inverse of String.
func ParsePersonality(s string) (Personality, error) {
	for _, p := range Personalities {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("ParsePersonality: unknown personality %q", s)
}

func (p Personality) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PersonalityTraits are multiplicative modifiers on the opinion update.
type PersonalityTraits struct {
	EmotionalSusceptibility float64 `json:"emotional_susceptibility"`
	AnalyticalWeight        float64 `json:"analytical_weight"`
	SocialProofSensitivity  float64 `json:"social_proof_sensitivity"`
	ChangeRate              float64 `json:"change_rate"`
	ReversalResistance      float64 `json:"reversal_resistance"`
}

// TraitsFor returns the fixed trait set for an archetype.
func TraitsFor(p Personality) PersonalityTraits {
	switch p {
	case PersonalityAnalytical:
		return PersonalityTraits{
			EmotionalSusceptibility: 0.6,
			AnalyticalWeight:        0.8,
			SocialProofSensitivity:  0.5,
			ChangeRate:              0.8,
			ReversalResistance:      1.2,
		}
	case PersonalityReactive:
		return PersonalityTraits{
			EmotionalSusceptibility: 1.4,
			AnalyticalWeight:        0.3,
			SocialProofSensitivity:  1.0,
			ChangeRate:              1.3,
			ReversalResistance:      0.8,
		}
	case PersonalityConformist:
		return PersonalityTraits{
			EmotionalSusceptibility: 1.0,
			AnalyticalWeight:        0.5,
			SocialProofSensitivity:  1.5,
			ChangeRate:              1.0,
			ReversalResistance:      0.9,
		}
	case PersonalityDisengaged:
		return PersonalityTraits{
			EmotionalSusceptibility: 0.7,
			AnalyticalWeight:        0.4,
			SocialProofSensitivity:  0.8,
			ChangeRate:              0.5,
			ReversalResistance:      1.0,
		}
	default:
		return PersonalityTraits{
			EmotionalSusceptibility: 1.0,
			AnalyticalWeight:        0.6,
			SocialProofSensitivity:  1.0,
			ChangeRate:              1.0,
			ReversalResistance:      1.0,
		}
	}
}
