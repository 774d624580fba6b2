package abm

import (
	"fmt"
)

var consensusNames = []string{"Expert", "Researcher", "Analyst", "Pragmatist"}

type neutralArchetype struct {
	name        string
	personality Personality
}

var neutralArchetypes = []neutralArchetype{
	{"Skeptic", PersonalityAnalytical},
	{"Engineer", PersonalityAnalytical},
	{"Analyst", PersonalityAnalytical},
	{"Researcher", PersonalityAnalytical},
	{"Worried", PersonalityReactive},
	{"Frustrated", PersonalityReactive},
	{"Anxious", PersonalityReactive},
	{"Outraged", PersonalityReactive},
	{"Follower", PersonalityConformist},
	{"Agreeable", PersonalityConformist},
	{"Moderate", PersonalityConformist},
	{"Mainstream", PersonalityConformist},
	{"Casual", PersonalityDisengaged},
	{"Busy", PersonalityDisengaged},
	{"Lurker", PersonalityDisengaged},
	{"Passive", PersonalityDisengaged},
	{"Curious", PersonalityBalanced},
	{"OpenMinded", PersonalityBalanced},
	{"Thoughtful", PersonalityBalanced},
	{"Undecided", PersonalityBalanced},
}

// InitializePopulation builds the agents in contrarian, consensus, neutral order
// and seeds pairwise trust. Any existing population is replaced.
func (e *Engine) InitializePopulation() []*Agent {
	agents := make([]*Agent, 0, e.cfg.Contrarians+e.cfg.Consensus+e.cfg.Neutrals)
	id := 0

	for i := 0; i < e.cfg.Contrarians; i++ {
		name := "Contrarian"
		if i > 0 {
			name = fmt.Sprintf("Contrarian_%d", i)
		}
		agents = append(agents, &Agent{
			ID:      fmt.Sprintf("C%d", id),
			Name:    name,
			Role:    RoleContrarian,
			Opinion: NewOpinion(-0.85, 0.9, 0.8),
			Emotions: EmotionalState{
				Arousal: 0.7, Valence: -0.2, Engagement: 0.85, Anger: 0.3, Anxiety: 0.1,
			},
			Traits: TraitsFor(PersonalityBalanced),
		})
		id++
	}

	for i := 0; i < e.cfg.Consensus; i++ {
		name := fmt.Sprintf("Consensus_%d", i)
		if i < len(consensusNames) {
			name = consensusNames[i]
		}
		pos := 0.7 + (e.rng.Float64()*0.2 - 0.1)
		agents = append(agents, &Agent{
			ID:      fmt.Sprintf("S%d", id),
			Name:    name,
			Role:    RoleConsensus,
			Opinion: NewOpinion(pos, 0.7, 0.6),
			Emotions: EmotionalState{
				Arousal: 0.5, Valence: 0.1, Engagement: 0.6, Anger: 0.1, Anxiety: 0.2,
			},
			Traits: TraitsFor(PersonalityBalanced),
		})
		id++
	}

	for i := 0; i < e.cfg.Neutrals; i++ {
		var name string
		var personality Personality
		if i < len(neutralArchetypes) {
			name, personality = neutralArchetypes[i].name, neutralArchetypes[i].personality
		} else {
			name = fmt.Sprintf("Neutral_%d", i)
			personality = Personalities[e.rng.IntN(len(Personalities))]
		}
		pos := e.rng.Float64()*0.4 - 0.2
		agents = append(agents, &Agent{
			ID:      fmt.Sprintf("N%d", id),
			Name:    name,
			Role:    RoleNeutral,
			Opinion: NewOpinion(pos, 0.3, 0.2),
			Emotions: EmotionalState{
				Arousal: 0.4, Engagement: 0.4, Anxiety: 0.4,
			},
			Personality: personality,
			Traits:      TraitsFor(personality),
		})
		id++
	}

	for _, a := range agents {
		a.Trust = make(map[string]float64, len(agents)-1)
		for _, other := range agents {
			if other.ID == a.ID {
				continue
			}
			a.Trust[other.ID] = initialTrust(a.Role, other.Role)
		}
	}

	e.agents = agents
	e.logger.Info("population initialized",
		"contrarians", e.cfg.Contrarians,
		"consensus", e.cfg.Consensus,
		"neutrals", e.cfg.Neutrals,
	)
	return agents
}

func initialTrust(reader, author Role) float64 {
	switch reader {
	case RoleNeutral:
		return defaultTrust
	case RoleConsensus:
		switch author {
		case RoleContrarian:
			return 0.35
		case RoleConsensus:
			return 0.6
		case RoleNeutral:
			return defaultTrust
		}
	case RoleContrarian:
		switch author {
		case RoleContrarian:
			return 0.6
		case RoleConsensus, RoleNeutral:
			return defaultTrust
		}
	}
	return defaultTrust
}
