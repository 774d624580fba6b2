package abm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// ArousalThreshold is the population mean arousal treated as the tipping point
// when reporting the threshold round.
const ArousalThreshold = 0.93

// Distribution counts agents per opinion class.
type Distribution struct {
	Contrarian int `json:"contrarian"`
	Neutral    int `json:"neutral"`
	Consensus  int `json:"consensus"`
}

// Count returns the number of agents in class t.
func (d Distribution) Count(t OpinionType) int {
	switch t {
	case OpinionContrarian:
		return d.Contrarian
	case OpinionConsensus:
		return d.Consensus
	case OpinionNeutral:
		return d.Neutral
	default:
		return 0
	}
}

func (d Distribution) String() string {
	return fmt.Sprintf("contrarian=%d neutral=%d consensus=%d", d.Contrarian, d.Neutral, d.Consensus)
}

func countOpinions(agents []*Agent) Distribution {
	var d Distribution
	for _, a := range agents {
		switch a.Opinion.Classify() {
		case OpinionContrarian:
			d.Contrarian++
		case OpinionConsensus:
			d.Consensus++
		case OpinionNeutral:
			d.Neutral++
		}
	}
	return d
}

// RoundSummary is the aggregate state after one round.
type RoundSummary struct {
	Round          int          `json:"round"`
	Distribution   Distribution `json:"distribution"`
	AvgOpinion     float64      `json:"avg_opinion"`
	AvgArousal     float64      `json:"avg_arousal"`
	AvgAnger       float64      `json:"avg_anger"`
	NumPosts       int          `json:"num_posts"`
	NumConversions int          `json:"num_conversions"`

	Posts       []*Post            `json:"-"`
	Conversions []*ConversionEvent `json:"-"`
}

// AgentSnapshot is one agent's state at the end of a round.
type AgentSnapshot struct {
	Round                int         `json:"round"`
	Opinion              float64     `json:"opinion"`
	Type                 OpinionType `json:"type"`
	Arousal              float64     `json:"arousal"`
	Anger                float64     `json:"anger"`
	Engagement           float64     `json:"engagement"`
	Confrontation        float64     `json:"confrontation"`
	ConsensusOrientation float64     `json:"consensus_orientation"`
}

// ABMResults are the summary statistics the aggregate model is validated against.
type ABMResults struct {
	ToContrarian   int     `json:"to_contrarian"`
	ToConsensus    int     `json:"to_consensus"`
	PeakArousal    float64 `json:"peak_arousal"`
	ThresholdRound int     `json:"threshold_round,omitempty"`
}

// Tracker records rounds, trajectories, conversions and post reach.
type Tracker struct {
	mu sync.Mutex

	cfg         Config
	start       time.Time
	posts       []*Post
	summaries   []RoundSummary
	order       []string
	histories   map[string][]AgentSnapshot
	conversions []*ConversionEvent
	seen        *bloom.BloomFilter
}

// NewTracker sizes the reach filter from the configured run length.
func NewTracker(cfg Config) *Tracker {
	population := cfg.Contrarians + cfg.Consensus + cfg.Neutrals
	exposures := uint(max(1000, cfg.Rounds*cfg.FeedSize*population))
	return &Tracker{
		cfg:       cfg,
		start:     time.Now(),
		histories: make(map[string][]AgentSnapshot),
		seen:      bloom.NewWithEstimates(exposures, 0.001),
	}
}

// RecordExposure counts an impression and, for a reader not seen before, reach.
// Reach is approximate: bloom false positives can undercount it.
func (t *Tracker) RecordExposure(p *Post, readerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p.Impressions++
	if !t.seen.TestAndAdd([]byte(p.ID + "|" + readerID)) {
		p.Reach++
	}
}

// RecordRound stores the round's posts and conversions and snapshots every agent.
func (t *Tracker) RecordRound(round int, posts []*Post, agents []*Agent, conversions []*ConversionEvent) RoundSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.posts = append(t.posts, posts...)
	t.conversions = append(t.conversions, conversions...)

	var dist Distribution
	var opinion, arousal, anger float64
	for _, a := range agents {
		typ := a.Opinion.Classify()
		switch typ {
		case OpinionContrarian:
			dist.Contrarian++
		case OpinionConsensus:
			dist.Consensus++
		case OpinionNeutral:
			dist.Neutral++
		}
		opinion += a.Opinion.Position
		arousal += a.Emotions.Arousal
		anger += a.Emotions.Anger

		if _, ok := t.histories[a.ID]; !ok {
			t.order = append(t.order, a.ID)
		}
		t.histories[a.ID] = append(t.histories[a.ID], AgentSnapshot{
			Round:                round,
			Opinion:              a.Opinion.Position,
			Type:                 typ,
			Arousal:              a.Emotions.Arousal,
			Anger:                a.Emotions.Anger,
			Engagement:           a.Emotions.Engagement,
			Confrontation:        a.Behavior.ConfrontationIndex(),
			ConsensusOrientation: a.Behavior.ConsensusOrientation(),
		})
	}

	s := RoundSummary{
		Round:          round,
		Distribution:   dist,
		NumPosts:       len(posts),
		NumConversions: len(conversions),
		Posts:          posts,
		Conversions:    conversions,
	}
	if n := float64(len(agents)); n > 0 {
		s.AvgOpinion = opinion / n
		s.AvgArousal = arousal / n
		s.AvgAnger = anger / n
	}
	t.summaries = append(t.summaries, s)
	return s
}

// RoundSummaries returns every recorded round in order.
func (t *Tracker) RoundSummaries() []RoundSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RoundSummary(nil), t.summaries...)
}

// ConversionEvents returns every recorded conversion in order.
func (t *Tracker) ConversionEvents() []*ConversionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*ConversionEvent(nil), t.conversions...)
}

// Trajectory returns the snapshots of one agent.
func (t *Tracker) Trajectory(agentID string) []AgentSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]AgentSnapshot(nil), t.histories[agentID]...)
}

// Trajectories maps every agent id to its snapshots.
func (t *Tracker) Trajectories() map[string][]AgentSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]AgentSnapshot, len(t.histories))
	for id, h := range t.histories {
		out[id] = append([]AgentSnapshot(nil), h...)
	}
	return out
}

// ABMResults derives the validation statistics from the recorded run.
func (t *Tracker) ABMResults() ABMResults {
	t.mu.Lock()
	defer t.mu.Unlock()
	var r ABMResults
	for _, ev := range t.conversions {
		switch ev.Direction {
		case ToContrarian:
			r.ToContrarian++
		case ToConsensus:
			r.ToConsensus++
		}
	}
	for _, s := range t.summaries {
		if s.AvgArousal > r.PeakArousal {
			r.PeakArousal = s.AvgArousal
		}
		if r.ThresholdRound == 0 && s.AvgArousal >= ArousalThreshold {
			r.ThresholdRound = s.Round
		}
	}
	return r
}

// Metadata describes an exported run.
type Metadata struct {
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	TotalRounds      int       `json:"total_rounds"`
	TotalPosts       int       `json:"total_posts"`
	TotalConversions int       `json:"total_conversions"`
	Config           Config    `json:"config"`
}

// Export is the full JSON document written after a run.
type Export struct {
	Metadata          Metadata                   `json:"metadata"`
	RoundSummaries    []RoundSummary             `json:"round_summaries"`
	AgentTrajectories map[string][]AgentSnapshot `json:"agent_trajectories"`
	ConversionEvents  []*ConversionEvent         `json:"conversion_events"`
	Posts             []*Post                    `json:"posts"`
	Bias              BiasReport                 `json:"amplification_bias"`
	Polarization      *Polarization              `json:"polarization,omitempty"`
	Results           ABMResults                 `json:"abm_results"`
}

// Export assembles the export document. Polarization is omitted when the final
// positions cannot be clustered.
func (t *Tracker) Export() Export {
	results := t.ABMResults()
	trajectories := t.Trajectories()

	t.mu.Lock()
	defer t.mu.Unlock()

	final := make([]float64, 0, len(t.order))
	for _, id := range t.order {
		if h := t.histories[id]; len(h) > 0 {
			final = append(final, h[len(h)-1].Opinion)
		}
	}

	ex := Export{
		Metadata: Metadata{
			StartTime:        t.start,
			EndTime:          time.Now(),
			TotalRounds:      len(t.summaries),
			TotalPosts:       len(t.posts),
			TotalConversions: len(t.conversions),
			Config:           t.cfg,
		},
		RoundSummaries:    append([]RoundSummary(nil), t.summaries...),
		AgentTrajectories: trajectories,
		ConversionEvents:  append([]*ConversionEvent(nil), t.conversions...),
		Posts:             append([]*Post(nil), t.posts...),
		Bias:              AnalyzeAmplificationBias(t.posts),
		Results:           results,
	}
	if pol, err := ClusterOpinions(final, 3); err == nil {
		ex.Polarization = &pol
	}
	return ex
}

// Transcript renders the run as readable plain text.
func (t *Tracker) Transcript() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	wide := strings.Repeat("=", 70)
	var b strings.Builder
	fmt.Fprintln(&b, wide)
	fmt.Fprintln(&b, "OPINION DYNAMICS SIMULATION - FULL TRANSCRIPT")
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Topic: %s\n", t.cfg.Topic)
	fmt.Fprintf(&b, "Total Rounds: %d\n", len(t.summaries))
	fmt.Fprintf(&b, "Total Posts: %d\n", len(t.posts))
	fmt.Fprintf(&b, "Conversion Events: %d\n", len(t.conversions))
	fmt.Fprintln(&b, wide)

	byRound := make(map[int][]*ConversionEvent)
	for _, ev := range t.conversions {
		byRound[ev.Round] = append(byRound[ev.Round], ev)
	}

	for _, s := range t.summaries {
		bar := strings.Repeat("=", 30)
		fmt.Fprintf(&b, "\n%s ROUND %d %s\n", bar, s.Round, bar)
		fmt.Fprintf(&b, "Opinion Distribution: Contrarian=%d, Neutral=%d, Consensus=%d\n",
			s.Distribution.Contrarian, s.Distribution.Neutral, s.Distribution.Consensus)
		fmt.Fprintf(&b, "Avg Opinion: %+.2f | Avg Arousal: %.2f | Avg Anger: %.2f\n",
			s.AvgOpinion, s.AvgArousal, s.AvgAnger)
		for _, ev := range byRound[s.Round] {
			fmt.Fprintln(&b, ev.LogEntry())
		}
		fmt.Fprintln(&b, strings.Repeat("-", 70))
		for _, p := range s.Posts {
			fmt.Fprintln(&b, p.TranscriptLine())
		}
	}

	fmt.Fprintf(&b, "\n%s\nSIMULATION COMPLETE\n%s\n", wide, wide)
	if len(t.summaries) == 0 {
		return b.String()
	}

	initial := t.summaries[0].Distribution
	final := t.summaries[len(t.summaries)-1].Distribution
	writeDist := func(title string, d Distribution) {
		fmt.Fprintf(&b, "\n%s:\n  Contrarian: %d\n  Neutral: %d\n  Consensus: %d\n", title, d.Contrarian, d.Neutral, d.Consensus)
	}
	writeDist("INITIAL DISTRIBUTION", initial)
	writeDist("FINAL DISTRIBUTION", final)
	fmt.Fprintf(&b, "\nCHANGES:\n  Contrarian: %+d\n  Neutral: %+d\n  Consensus: %+d\n",
		final.Contrarian-initial.Contrarian, final.Neutral-initial.Neutral, final.Consensus-initial.Consensus)

	var toC, toS int
	for _, ev := range t.conversions {
		switch ev.Direction {
		case ToContrarian:
			toC++
		case ToConsensus:
			toS++
		}
	}
	fmt.Fprintf(&b, "\nTotal Conversions: %d\n  To Contrarian: %d\n  To Consensus: %d\n", len(t.conversions), toC, toS)
	return b.String()
}

// TopPosts returns the n posts with the highest final visibility.
func (t *Tracker) TopPosts(n int) []*Post {
	t.mu.Lock()
	posts := append([]*Post(nil), t.posts...)
	t.mu.Unlock()
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Visibility > posts[j].Visibility })
	if n >= 0 && n < len(posts) {
		posts = posts[:n]
	}
	return posts
}
