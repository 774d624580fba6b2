package abm

import (
	"math"
)

// EmotionalState is an agent's bounded affect. It persists for the agent's lifetime.
type EmotionalState struct {
	Arousal    float64 `json:"arousal"`    // [0,1]
	Valence    float64 `json:"valence"`    // [-1,1]
	Engagement float64 `json:"engagement"` // [0,1]
	Anger      float64 `json:"anger"`      // [0,1]
	Anxiety    float64 `json:"anxiety"`    // [0,1]

	ArousalHistory []float64 `json:"arousal_history,omitempty"`
}

// DefaultEmotionalState returns the resting state used when none is specified.
func DefaultEmotionalState() EmotionalState {
	return EmotionalState{Arousal: 0.5, Engagement: 0.5, Anxiety: 0.3}
}

const arousalBaseline = 0.4

// Clamp forces every field into its declared range.
func (e *EmotionalState) Clamp() {
	e.Arousal = clamp(e.Arousal, 0, 1)
	e.Valence = clamp(e.Valence, -1, 1)
	e.Engagement = clamp(e.Engagement, 0, 1)
	e.Anger = clamp(e.Anger, 0, 1)
	e.Anxiety = clamp(e.Anxiety, 0, 1)
}

// UrgencyMultiplier scales how eager the agent is to post.
func (e *EmotionalState) UrgencyMultiplier() float64 {
	return 0.5 + 0.3*e.Arousal + 0.2*e.Anger + 0.2*e.Engagement
}

// Decay moves the state toward baseline and records arousal for volatility statistics.
func (e *EmotionalState) Decay(rate float64) {
	e.Arousal -= (e.Arousal - arousalBaseline) * rate
	e.Anger = math.Max(0, e.Anger-1.5*rate)
	e.Engagement = math.Max(0.3, e.Engagement-0.5*rate)
	e.Valence *= 1 - 0.5*rate
	e.Clamp()
	e.ArousalHistory = append(e.ArousalHistory, e.Arousal)
}

// Volatility is the sample standard deviation of the arousal history.
func (e *EmotionalState) Volatility() float64 {
	n := len(e.ArousalHistory)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range e.ArousalHistory {
		mean += v
	}
	mean /= float64(n)
	ss := 0.0
	for _, v := range e.ArousalHistory {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(n-1))
}

// Describe renders the state as second-person prompt text.
func (e *EmotionalState) Describe() string {
	var arousal string
	switch {
	case e.Arousal < 0.3:
		arousal = "calm and collected"
	case e.Arousal < 0.6:
		arousal = "somewhat alert"
	case e.Arousal < 0.8:
		arousal = "agitated and tense"
	default:
		arousal = "highly activated and restless"
	}

	var anger string
	switch {
	case e.Anger < 0.2:
	case e.Anger < 0.5:
		anger = ", mildly frustrated"
	case e.Anger < 0.8:
		anger = ", quite angry"
	default:
		anger = ", furious"
	}

	var engagement string
	switch {
	case e.Engagement < 0.4:
		engagement = "You don't care much about this debate."
	case e.Engagement < 0.7:
		engagement = "You're moderately interested in this discussion."
	default:
		engagement = "You're deeply invested in this debate and feel compelled to speak."
	}
	return "You feel " + arousal + anger + ". " + engagement
}

// EmotionalImpact holds the additive deltas produced by reading one post.
type EmotionalImpact struct {
	Arousal    float64
	Anger      float64
	Valence    float64
	Engagement float64
	Trust      float64
}

const (
	provocationThreshold = 0.5
	extremeProvocation   = 0.8
	consensusThreshold   = 0.6
	contagionRate        = 0.3
)

// InferPostStance maps content scores to an implied opinion position.
func InferPostStance(s ContentScores) float64 {
	switch {
	case s.Provocativeness > provocationThreshold:
		return -0.7
	case s.ConsensusOrientation > consensusThreshold:
		return 0.6
	default:
		return 0
	}
}

// OpinionAlignment is positive when the reader agrees with the post's inferred
// stance and negative once the two are more than 1 apart on the opinion axis.
func OpinionAlignment(s ContentScores, readerPosition float64) float64 {
	return clamp(1-math.Abs(InferPostStance(s)-readerPosition), -1, 1)
}

// CalculateEmotionalImpact applies the reader-side rule table. Effects are additive.
func CalculateEmotionalImpact(s ContentScores, alignment float64) EmotionalImpact {
	var impact EmotionalImpact
	impact.Arousal = s.EmotionalIntensity * contagionRate

	if s.Provocativeness > provocationThreshold {
		if alignment < 0 {
			impact.Anger = s.Provocativeness * math.Abs(alignment) * 0.5
			impact.Valence = -s.Provocativeness * 0.3
			if s.Provocativeness > extremeProvocation {
				impact.Trust = -0.15
			}
		} else {
			impact.Engagement = s.Provocativeness * 0.3
			impact.Valence = s.Provocativeness * 0.1
		}
	}

	if s.ConsensusOrientation > consensusThreshold {
		if alignment > 0 {
			impact.Arousal -= 0.1
			impact.Valence += 0.15
			impact.Trust += 0.05
		} else {
			impact.Arousal += 0.05
		}
	}

	impact.Engagement += 0.1 * s.EmotionalIntensity
	return impact
}

// ApplyImpact mutates the reader's state and their trust in the author, clamping everything.
func ApplyImpact(reader *Agent, impact EmotionalImpact, authorID string) {
	e := &reader.Emotions
	e.Arousal += impact.Arousal
	e.Anger += impact.Anger
	e.Valence += impact.Valence
	e.Engagement += impact.Engagement
	e.Clamp()
	if impact.Trust != 0 {
		reader.UpdateTrust(authorID, impact.Trust)
	}
}

// ResponseProbability is the chance an agent speaks this round, capped at 0.9.
func ResponseProbability(a *Agent, baseRate float64) float64 {
	roleBoost := 0.0
	if a.Role == RoleContrarian {
		roleBoost = 0.2
	}
	p := baseRate*a.Emotions.UrgencyMultiplier() + roleBoost + a.Emotions.Anger*0.3
	return math.Min(0.9, p)
}

// DescribeEmotionalClimate summarizes the population mood in one or more sentences.
func DescribeEmotionalClimate(agents []*Agent) string {
	if len(agents) == 0 {
		return ""
	}
	var arousal, anger, engagement float64
	for _, a := range agents {
		arousal += a.Emotions.Arousal
		anger += a.Emotions.Anger
		engagement += a.Emotions.Engagement
	}
	n := float64(len(agents))
	arousal /= n
	anger /= n
	engagement /= n

	var out string
	switch {
	case arousal > 0.7:
		out = "The debate has become heated and intense."
	case arousal > 0.5:
		out = "There's notable tension in the discussion."
	default:
		out = "The conversation remains relatively calm."
	}
	switch {
	case anger > 0.5:
		out += " Many participants are visibly frustrated."
	case anger > 0.3:
		out += " Some irritation is apparent."
	}
	switch {
	case engagement > 0.7:
		out += " People are deeply invested in the outcome."
	case engagement > 0.5:
		out += " Interest in the debate is moderate."
	default:
		out += " Engagement seems to be waning."
	}
	return out
}

func meanArousal(agents []*Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range agents {
		sum += a.Emotions.Arousal
	}
	return sum / float64(len(agents))
}
