package abm

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Weights are the feed algorithm's linear coefficients.
type Weights struct {
	Emotion     float64 `json:"emotion_weight"`
	Provocative float64 `json:"provocative_weight"`
	Recency     float64 `json:"recency_weight"`
}

// DefaultWeights are the engagement-maximizing defaults.
func DefaultWeights() Weights {
	return Weights{Emotion: 0.4, Provocative: 0.4, Recency: 0.2}
}

const samplingFloor = 0.1

// Amplifier scores posts for visibility and builds feeds by weighted sampling.
type Amplifier struct {
	Weights Weights
	rng     *rand.Rand
}

// NewAmplifier returns an amplifier drawing noise and samples from rng.
func NewAmplifier(w Weights, rng *rand.Rand) *Amplifier {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &Amplifier{Weights: w, rng: rng}
}

// RecencyScore is 1 for a post from the current round and decays with age.
func RecencyScore(postRound, currentRound int) float64 {
	age := max(0, currentRound-postRound)
	return 1 / (1 + float64(age)*0.25)
}

// BaseVisibility is the noise-free visibility of a post in the given round.
func (a *Amplifier) BaseVisibility(p *Post, currentRound int) float64 {
	base := a.Weights.Emotion*p.EmotionalIntensity +
		a.Weights.Provocative*p.Provocativeness +
		a.Weights.Recency*RecencyScore(p.Round, currentRound)
	engagement := p.EngagementPotential()
	boost := 1 + engagement*engagement*0.6
	return base * boost
}

// ComputeVisibility applies algorithmic jitter in [0.95, 1.05] to the base visibility.
func (a *Amplifier) ComputeVisibility(p *Post, currentRound int) float64 {
	noise := 0.95 + 0.1*a.rng.Float64()
	return math.Max(0, a.BaseVisibility(p, currentRound)*noise)
}

// RankFeed scores every post and returns them by descending visibility.
// Equal scores keep their input order.
func (a *Amplifier) RankFeed(posts []*Post, currentRound int) []*Post {
	ranked := make([]*Post, len(posts))
	copy(ranked, posts)
	for _, p := range ranked {
		p.Visibility = a.ComputeVisibility(p, currentRound)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Visibility > ranked[j].Visibility
	})
	return ranked
}

// SampleVisiblePosts builds a feed of at most sampleSize posts, sampled
// without replacement with weight visibility+0.1.
func (a *Amplifier) SampleVisiblePosts(posts []*Post, currentRound, sampleSize int) []*Post {
	if len(posts) == 0 || sampleSize <= 0 {
		return nil
	}
	ranked := a.RankFeed(posts, currentRound)
	if len(ranked) <= sampleSize {
		return ranked
	}

	remaining := ranked
	weights := make([]float64, len(ranked))
	for i, p := range ranked {
		weights[i] = p.Visibility + samplingFloor
	}

	selected := make([]*Post, 0, sampleSize)
	for len(selected) < sampleSize && len(remaining) > 0 {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if total <= 0 {
			break
		}
		r := a.rng.Float64() * total
		pick := len(remaining) - 1
		cum := 0.0
		for i, w := range weights {
			cum += w
			if r <= cum {
				pick = i
				break
			}
		}
		selected = append(selected, remaining[pick])
		remaining = append(remaining[:pick:pick], remaining[pick+1:]...)
		weights = append(weights[:pick:pick], weights[pick+1:]...)
	}
	return selected
}

// Influence is a post's pull on a reader's opinion.
type Influence struct {
	Direction        float64
	Strength         float64
	ContrarianSource bool
}

// Value is the signed influence passed to the opinion update.
func (i Influence) Value() float64 {
	return i.Direction * i.Strength
}

// ComputeOpinionInfluence infers the post's position and how hard it pulls the reader toward it.
func ComputeOpinionInfluence(p *Post, readerPosition float64) Influence {
	var position float64
	contrarian := false
	switch {
	case p.Provocativeness > 0.5 && p.Provocativeness > p.ConsensusOrientation:
		position = -0.7 - p.Provocativeness*0.3
		contrarian = true
	case p.ConsensusOrientation > 0.5:
		position = 0.5 + p.ConsensusOrientation*0.3
	}
	strength := p.EmotionalIntensity*0.4 + p.LogicalCoherence*0.3 + math.Min(p.Visibility, 1)*0.3
	return Influence{
		Direction:        position - readerPosition,
		Strength:         strength,
		ContrarianSource: contrarian,
	}
}

// BiasReport compares the visibility the algorithm gave each content class.
type BiasReport struct {
	ContrarianPosts         int     `json:"contrarian_posts_count"`
	ConsensusPosts          int     `json:"consensus_posts_count"`
	NeutralPosts            int     `json:"neutral_posts_count"`
	ContrarianAvgVisibility float64 `json:"contrarian_avg_visibility"`
	ConsensusAvgVisibility  float64 `json:"consensus_avg_visibility"`
	NeutralAvgVisibility    float64 `json:"neutral_avg_visibility"`
	BiasRatio               float64 `json:"bias_ratio"`
	Interpretation          string  `json:"interpretation"`
}

// FavorsContrarian reports whether contrarian content was amplified more than consensus content.
func (r BiasReport) FavorsContrarian() bool {
	return r.BiasRatio > 1
}

// AnalyzeAmplificationBias classifies posts by content and compares their last visibility.
func AnalyzeAmplificationBias(posts []*Post) BiasReport {
	var c, s, n []float64
	for _, p := range posts {
		if p.Provocativeness > 0.5 {
			c = append(c, p.Visibility)
		}
		if p.ConsensusOrientation > 0.5 {
			s = append(s, p.Visibility)
		}
		if p.Provocativeness <= 0.5 && p.ConsensusOrientation <= 0.5 {
			n = append(n, p.Visibility)
		}
	}
	r := BiasReport{
		ContrarianPosts:         len(c),
		ConsensusPosts:          len(s),
		NeutralPosts:            len(n),
		ContrarianAvgVisibility: mean(c, 0),
		ConsensusAvgVisibility:  mean(s, 0),
		NeutralAvgVisibility:    mean(n, 0),
	}
	switch {
	case r.ConsensusAvgVisibility > 0:
		r.BiasRatio = r.ContrarianAvgVisibility / r.ConsensusAvgVisibility
	case r.ContrarianAvgVisibility > 0:
		r.BiasRatio = math.Inf(1)
	default:
		r.BiasRatio = 1
	}
	r.Interpretation = interpretBias(r.BiasRatio)
	return r
}

func interpretBias(ratio float64) string {
	switch {
	case ratio > 1.5:
		return "Strong contrarian amplification"
	case ratio > 1.2:
		return "Moderate contrarian amplification"
	case ratio >= 0.8:
		return "Roughly balanced"
	default:
		return "Consensus content amplified more"
	}
}
