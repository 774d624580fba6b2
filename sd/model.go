package sd

import (
	"errors"
	"fmt"
	"math"
)

var ErrNotRun = errors.New("sd: model has not been run")

// ConservationTolerance is the largest allowed drift of N+C+S from the
// initial neutral count.
const ConservationTolerance = 0.01

// State is one sample of the integrated trajectory plus derived quantities.
type State struct {
	Time               float64 `json:"time"`
	Neutrals           float64 `json:"N"`
	ContrarianConverts float64 `json:"C"`
	ConsensusConverts  float64 `json:"S"`
	Arousal            float64 `json:"A"`
	FrameAdoption      float64 `json:"F"`

	ExposureC       float64 `json:"exposure_c"`
	ExposureS       float64 `json:"exposure_s"`
	Susceptibility  float64 `json:"susceptibility"`
	ConversionRateC float64 `json:"conversion_rate_c"`
	ConversionRateS float64 `json:"conversion_rate_s"`
}

// Model integrates the aggregate equations for one parameter set.
type Model struct {
	params Parameters
	states []State
}

func NewModel(p Parameters) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("NewModel: %w", err)
	}
	return &Model{params: p}, nil
}

func (m *Model) Params() Parameters { return m.params }

// InitialStocks is N = initial neutrals, no converts, initial arousal and
// frame adoption.
func (m *Model) InitialStocks() Stocks {
	return Stocks{
		N: m.params.InitialNeutrals,
		A: m.params.InitialArousal,
		F: m.params.InitialFrameAdoption,
	}
}

// Run integrates from the initial stocks to Params().TFinal.
func (m *Model) Run() []State {
	return m.RunFrom(m.InitialStocks(), m.params.TFinal)
}

// RunFor integrates from the initial stocks to tFinal.
func (m *Model) RunFor(tFinal float64) []State {
	return m.RunFrom(m.InitialStocks(), tFinal)
}

// RunFrom integrates from initial over t = 0, dt, 2dt, …, tFinal, taking
// SubSteps RK4 steps between samples. The history replaces any earlier run.
func (m *Model) RunFrom(initial Stocks, tFinal float64) []State {
	dt := m.params.DT
	steps := int(math.Round(tFinal / dt))
	if steps < 0 {
		steps = 0
	}
	h := dt / float64(m.params.SubSteps)

	states := make([]State, 0, steps+1)
	s := initial
	states = append(states, m.observe(0, s))
	for i := 1; i <= steps; i++ {
		for j := 0; j < m.params.SubSteps; j++ {
			s = m.params.rk4Step(s, h)
		}
		states = append(states, m.observe(float64(i)*dt, s))
	}
	m.states = states
	return states
}

func (m *Model) observe(t float64, s Stocks) State {
	p := m.params
	expC, expS := p.ExposureFractions(s.C, s.S, s.F)
	return State{
		Time:               t,
		Neutrals:           s.N,
		ContrarianConverts: s.C,
		ConsensusConverts:  s.S,
		Arousal:            s.A,
		FrameAdoption:      s.F,
		ExposureC:          expC,
		ExposureS:          expS,
		Susceptibility:     p.Susceptibility(s.A),
		ConversionRateC:    p.ConversionToContrarian(s.N, expC, s.A),
		ConversionRateS:    p.ConversionToConsensus(s.N, expS, s.A),
	}
}

// States returns the history of the last run.
func (m *Model) States() []State { return m.states }

func (m *Model) Final() (State, error) {
	if len(m.states) == 0 {
		return State{}, ErrNotRun
	}
	return m.states[len(m.states)-1], nil
}

// StateAt returns the sample nearest to t, clamped to the run's time span.
func (m *Model) StateAt(t float64) (State, error) {
	if len(m.states) == 0 {
		return State{}, ErrNotRun
	}
	idx := int(math.Round(t / m.params.DT))
	idx = max(0, min(idx, len(m.states)-1))
	return m.states[idx], nil
}

// ThresholdCrossing reports the first time arousal reached ThresholdArousal.
func (m *Model) ThresholdCrossing() (float64, bool) {
	for _, s := range m.states {
		if s.Arousal >= m.params.ThresholdArousal {
			return s.Time, true
		}
	}
	return 0, false
}

// ConservationError is the largest |N+C+S - initial neutrals| over the run.
func (m *Model) ConservationError() (float64, error) {
	if len(m.states) == 0 {
		return 0, ErrNotRun
	}
	var worst float64
	for _, s := range m.states {
		total := s.Neutrals + s.ContrarianConverts + s.ConsensusConverts
		worst = math.Max(worst, math.Abs(total-m.params.InitialNeutrals))
	}
	return worst, nil
}

func (m *Model) ValidateConservation() (bool, error) {
	worst, err := m.ConservationError()
	if err != nil {
		return false, err
	}
	return worst < ConservationTolerance, nil
}

type SummaryInitial struct {
	Neutrals float64 `json:"neutrals"`
	Arousal  float64 `json:"arousal"`
}

type SummaryFinal struct {
	Neutrals           float64 `json:"neutrals"`
	ContrarianConverts float64 `json:"contrarian_converts"`
	ConsensusConverts  float64 `json:"consensus_converts"`
	Arousal            float64 `json:"arousal"`
	FrameAdoption      float64 `json:"frame_adoption"`
}

type SummaryDynamics struct {
	// ThresholdCrossingTime is nil when arousal never reached the threshold.
	ThresholdCrossingTime *float64 `json:"threshold_crossing_time"`
	PeakArousal           float64  `json:"peak_arousal"`
	PeakArousalTime       float64  `json:"peak_arousal_time"`
	// VisibilityRatio is nil when consensus content has no visibility.
	VisibilityRatio       *float64 `json:"visibility_ratio"`
}

type ConversionRates struct {
	ToContrarianPct float64 `json:"to_contrarian_pct"`
	ToConsensusPct  float64 `json:"to_consensus_pct"`
}

// Summary is the serializable outcome of one run.
type Summary struct {
	Initial         SummaryInitial  `json:"initial"`
	Final           SummaryFinal    `json:"final"`
	Dynamics        SummaryDynamics `json:"dynamics"`
	ConversionRates ConversionRates `json:"conversion_rates"`
	Parameters      Parameters      `json:"parameters"`
}

func (m *Model) Summary() (Summary, error) {
	final, err := m.Final()
	if err != nil {
		return Summary{}, fmt.Errorf("Model.Summary: %w", err)
	}
	p := m.params

	peak := m.states[0]
	for _, s := range m.states[1:] {
		if s.Arousal > peak.Arousal {
			peak = s
		}
	}

	out := Summary{
		Initial: SummaryInitial{Neutrals: p.InitialNeutrals, Arousal: p.InitialArousal},
		Final: SummaryFinal{
			Neutrals:           final.Neutrals,
			ContrarianConverts: final.ContrarianConverts,
			ConsensusConverts:  final.ConsensusConverts,
			Arousal:            final.Arousal,
			FrameAdoption:      final.FrameAdoption,
		},
		Dynamics: SummaryDynamics{
			PeakArousal:     peak.Arousal,
			PeakArousalTime: peak.Time,
		},
		Parameters: p,
	}
	if t, ok := m.ThresholdCrossing(); ok {
		out.Dynamics.ThresholdCrossingTime = &t
	}
	if r := p.VisibilityRatio(); !math.IsInf(r, 0) {
		out.Dynamics.VisibilityRatio = &r
	}
	if p.InitialNeutrals > 0 {
		out.ConversionRates = ConversionRates{
			ToContrarianPct: final.ContrarianConverts / p.InitialNeutrals * 100,
			ToConsensusPct:  final.ConsensusConverts / p.InitialNeutrals * 100,
		}
	}
	return out, nil
}

// Simulate builds a model for p, runs it and summarizes it.
func Simulate(p Parameters) (*Model, Summary, error) {
	m, err := NewModel(p)
	if err != nil {
		return nil, Summary{}, err
	}
	m.Run()
	s, err := m.Summary()
	if err != nil {
		return nil, Summary{}, err
	}
	return m, s, nil
}

// ABMResults are the summary statistics of an agent-based run that the
// aggregate model is compared against.
type ABMResults struct {
	ToContrarian     float64 `json:"to_contrarian"`
	ToConsensus      float64 `json:"to_consensus"`
	PeakArousal      float64 `json:"peak_arousal"`
	ThresholdRound   float64 `json:"threshold_round"`
	ThresholdReached bool    `json:"threshold_reached"`
}

// DefaultABMResults are the figures of the reference ABM run.
func DefaultABMResults() ABMResults {
	return ABMResults{
		ToContrarian:     12,
		ToConsensus:      0,
		PeakArousal:      0.93,
		ThresholdRound:   46,
		ThresholdReached: true,
	}
}

// MetricComparison pairs one aggregate figure with its ABM counterpart.
type MetricComparison struct {
	SD    float64 `json:"sd"`
	ABM   float64 `json:"abm"`
	Error float64 `json:"error"`
	Match bool    `json:"match"`
}

func compareMetric(sd, abm, tolerance float64) MetricComparison {
	diff := math.Abs(sd - abm)
	return MetricComparison{SD: sd, ABM: abm, Error: diff, Match: diff < tolerance}
}

type ThresholdComparison struct {
	SD  *float64 `json:"sd"`
	ABM *float64 `json:"abm"`
}

type Comparison struct {
	ContrarianConverts MetricComparison    `json:"contrarian_converts"`
	ConsensusConverts  MetricComparison    `json:"consensus_converts"`
	ThresholdTime      ThresholdComparison `json:"threshold_time"`
}

// CompareWithABM matches converts within 2 (contrarian) and 1 (consensus).
// Threshold timing is reported but not scored: time units and rounds are
// only loosely comparable.
func CompareWithABM(s Summary, abm ABMResults) Comparison {
	c := Comparison{
		ContrarianConverts: compareMetric(s.Final.ContrarianConverts, abm.ToContrarian, 2),
		ConsensusConverts:  compareMetric(s.Final.ConsensusConverts, abm.ToConsensus, 1),
		ThresholdTime:      ThresholdComparison{SD: s.Dynamics.ThresholdCrossingTime},
	}
	if abm.ThresholdReached {
		r := abm.ThresholdRound
		c.ThresholdTime.ABM = &r
	}
	return c
}
