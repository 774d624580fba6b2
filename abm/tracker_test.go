package abm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExposureCountsDistinctReaders(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	p := &Post{ID: "abcd1234"}
	for _, reader := range []string{"N1", "N2", "N1", "N3", "N2", "N1"} {
		tr.RecordExposure(p, reader)
	}
	assert.Equal(t, 6, p.Impressions)
	assert.Equal(t, 3, p.Reach)

	other := &Post{ID: "ffff0000"}
	tr.RecordExposure(other, "N1")
	assert.Equal(t, 1, other.Reach, "reach is tracked per post")
}

func TestRecordRoundSummaryAndTrajectories(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	agents := []*Agent{
		{ID: "C0", Role: RoleContrarian, Opinion: NewOpinion(-0.85, 0.9, 0.8), Emotions: EmotionalState{Arousal: 0.8, Anger: 0.4}},
		{ID: "S1", Role: RoleConsensus, Opinion: NewOpinion(0.7, 0.7, 0.6), Emotions: EmotionalState{Arousal: 0.4}},
		{ID: "N2", Role: RoleNeutral, Opinion: NewOpinion(0.05, 0.3, 0.2), Emotions: EmotionalState{Arousal: 0.6, Anger: 0.2}},
	}
	posts := []*Post{{ID: "p1", Round: 1}, {ID: "p2", Round: 1}}
	ev := &ConversionEvent{Round: 1, AgentID: "N2", Direction: ToConsensus}

	s := tr.RecordRound(1, posts, agents, []*ConversionEvent{ev})
	assert.Equal(t, Distribution{Contrarian: 1, Neutral: 1, Consensus: 1}, s.Distribution)
	assert.InDelta(t, (-0.85+0.7+0.05)/3, s.AvgOpinion, 1e-9)
	assert.InDelta(t, 0.6, s.AvgArousal, 1e-9)
	assert.InDelta(t, 0.2, s.AvgAnger, 1e-9)
	assert.Equal(t, 2, s.NumPosts)
	assert.Equal(t, 1, s.NumConversions)

	agents[2].Opinion.Position = 0.4
	tr.RecordRound(2, nil, agents, nil)

	traj := tr.Trajectory("N2")
	require.Len(t, traj, 2)
	assert.Equal(t, OpinionNeutral, traj[0].Type)
	assert.Equal(t, OpinionConsensus, traj[1].Type)
	assert.Len(t, tr.Trajectories(), 3)
	assert.Len(t, tr.RoundSummaries(), 2)
	assert.Len(t, tr.ConversionEvents(), 1)
}

func TestABMResults(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	hot := []*Agent{{ID: "N1", Role: RoleNeutral, Opinion: NewOpinion(0, 0.3, 0.2)}}
	for round, arousal := range []float64{0.5, 0.95, 0.97, 0.8} {
		hot[0].Emotions.Arousal = arousal
		var evs []*ConversionEvent
		if round == 1 {
			evs = []*ConversionEvent{{Direction: ToContrarian}, {Direction: ToContrarian}, {Direction: ToConsensus}}
		}
		tr.RecordRound(round+1, nil, hot, evs)
	}
	r := tr.ABMResults()
	assert.Equal(t, 2, r.ToContrarian)
	assert.Equal(t, 1, r.ToConsensus)
	assert.InDelta(t, 0.97, r.PeakArousal, 1e-9)
	assert.Equal(t, 2, r.ThresholdRound)
}

func TestExportAndTranscript(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Rounds = 6
	e := newTestEngine(t, cfg, NewCannedWriter())
	tr, err := e.Run(context.Background())
	require.NoError(t, err)

	ex := tr.Export()
	assert.Equal(t, 6, ex.Metadata.TotalRounds)
	assert.Len(t, ex.RoundSummaries, 6)
	assert.Len(t, ex.AgentTrajectories, 25)
	assert.Equal(t, len(e.Posts()), ex.Metadata.TotalPosts)
	require.NotNil(t, ex.Polarization)
	assert.NotEmpty(t, ex.Polarization.Centroids)

	raw, err := json.Marshal(ex)
	require.NoError(t, err)
	for _, key := range []string{`"round_summaries"`, `"agent_trajectories"`, `"conversion_events"`, `"posts"`, `"abm_results"`, `"avg_arousal"`, `"emotional_intensity"`} {
		assert.Contains(t, string(raw), key)
	}

	text := tr.Transcript()
	assert.Contains(t, text, "ROUND 1")
	assert.Contains(t, text, "ROUND 6")
	assert.Contains(t, text, "INITIAL DISTRIBUTION:")
	assert.Contains(t, text, "FINAL DISTRIBUTION:")
	assert.Contains(t, text, ">> visibility=")
	assert.Equal(t, len(e.Posts()), strings.Count(text, ">> visibility="))
}

func TestTopPosts(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	posts := []*Post{{ID: "a", Visibility: 0.2}, {ID: "b", Visibility: 1.4}, {ID: "c", Visibility: 0.9}}
	tr.RecordRound(1, posts, nil, nil)
	top := tr.TopPosts(2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].ID)
	assert.Equal(t, "c", top[1].ID)
}
