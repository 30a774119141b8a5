package trainer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/room"
	"github.com/zeusync/finder/internal/core/systems/physics"
	"github.com/zeusync/finder/internal/persistence/episodes"
	"github.com/zeusync/finder/internal/persistence/trajectory"
	"github.com/zeusync/finder/internal/sim"
)

type memRecorder struct {
	mu   sync.Mutex
	sums []EpisodeSummary
	err  error
}

func (m *memRecorder) Record(s EpisodeSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sums = append(m.sums, s)
	return nil
}

func (m *memRecorder) sorted() []EpisodeSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]EpisodeSummary(nil), m.sums...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentID != out[j].AgentID {
			return out[i].AgentID < out[j].AgentID
		}
		return out[i].Episode < out[j].Episode
	})
	return out
}

type flushRecorder struct {
	memRecorder
	flushed  bool
	flushErr error
}

func (f *flushRecorder) Flush(context.Context) error {
	f.flushed = true
	return f.flushErr
}

type memSteps struct {
	mu    sync.Mutex
	run   string
	steps int
}

func (m *memSteps) Rotate(run string) error { m.run = run; return nil }

func (m *memSteps) WriteStep(trajectory.Step) error {
	m.mu.Lock()
	m.steps++
	m.mu.Unlock()
	return nil
}

func shortSim() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.MaxEpisodeTime = 2
	return cfg
}

func newRunner(t *testing.T, cfg Config, opts ...Option) *Runner {
	t.Helper()
	rm, err := room.New(room.DefaultBounds(), physics.Zero)
	require.NoError(t, err)
	r, err := NewRunner(cfg, rm, shortSim(), agent.DefaultConfig(), opts...)
	require.NoError(t, err)
	return r
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{Agents: 0, Episodes: 1},
		{Agents: 1, Episodes: 0},
		{Agents: 1, Episodes: 1, Parallelism: -1},
		{Agents: 1, Episodes: 1, Policy: "clever"},
	}
	for _, c := range bad {
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "%+v", c)
	}
}

func TestNewRunnerRequiresRoom(t *testing.T) {
	_, err := NewRunner(DefaultConfig(), nil, sim.DefaultConfig(), agent.DefaultConfig())
	assert.ErrorIs(t, err, ErrNilRoom)
}

func TestRunRecordsEveryEpisode(t *testing.T) {
	rec := &memRecorder{}
	steps := &memSteps{}
	r := newRunner(t, Config{Agents: 3, Episodes: 5, Seed: 42},
		WithRecorder(rec), WithStepRecorder(steps), WithRunID("run-x"))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15, stats.Episodes)
	assert.Equal(t, stats.Episodes, stats.Goals+stats.Deathzones+stats.Timeouts)
	assert.Equal(t, "run-x", steps.run)
	assert.Equal(t, int(stats.Steps), steps.steps)

	sums := rec.sorted()
	require.Len(t, sums, 15)
	for i, s := range sums {
		assert.Equal(t, r.AgentIDs()[i/5], s.AgentID)
		assert.Equal(t, uint64(i%5+1), s.Episode)
		assert.Equal(t, "run-x", s.RunID)
		assert.NotEmpty(t, s.ID)
		assert.Contains(t, []string{episodes.OutcomeGoal, episodes.OutcomeDeathzone, episodes.OutcomeTimeout}, s.Outcome)
		assert.Positive(t, s.Steps)
		assert.LessOrEqual(t, s.Duration, 2.0+1e-9)
		assert.GreaterOrEqual(t, s.GoalDistance, agent.MinGoalDistance)
	}
}

func TestRunIsReproducible(t *testing.T) {
	type key struct {
		agent   string
		episode uint64
		steps   uint64
		reward  float64
		outcome string
	}
	play := func() []key {
		rec := &memRecorder{}
		r := newRunner(t, Config{Agents: 2, Episodes: 4, Seed: 7, Parallelism: 2}, WithRecorder(rec))
		_, err := r.Run(context.Background())
		require.NoError(t, err)
		var out []key
		for _, s := range rec.sorted() {
			out = append(out, key{s.AgentID, s.Episode, s.Steps, s.Reward, s.Outcome})
		}
		return out
	}
	assert.Equal(t, play(), play())
}

func TestGreedyPolicyReachesGoals(t *testing.T) {
	rm, err := room.New(room.DefaultBounds(), physics.Zero)
	require.NoError(t, err)
	simCfg := sim.DefaultConfig()
	simCfg.MaxEpisodeTime = 30

	r, err := NewRunner(Config{Agents: 2, Episodes: 10, Seed: 3, Policy: PolicyGreedy}, rm, simCfg, agent.DefaultConfig())
	require.NoError(t, err)
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.SuccessRate(), 0.5)

	// every terminal episode ends on a delivered enter contact
	ev := r.Events()
	assert.GreaterOrEqual(t, ev.Enters, uint64(stats.Goals+stats.Deathzones))
	assert.Zero(t, ev.HandlerErrors)
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRunner(t, Config{Agents: 2, Episodes: 100, Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorderErrorFailsRun(t *testing.T) {
	boom := errors.New("disk full")
	r := newRunner(t, Config{Agents: 2, Episodes: 3, Seed: 1}, WithRecorder(&memRecorder{err: boom}))
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunFlushesRecorders(t *testing.T) {
	rec := &flushRecorder{}
	r := newRunner(t, Config{Agents: 2, Episodes: 2, Seed: 1}, WithRecorder(rec))
	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.flushed)
	assert.Len(t, rec.sorted(), 4)

	boom := errors.New("commit failed")
	r = newRunner(t, Config{Agents: 2, Episodes: 2, Seed: 1}, WithRecorder(&flushRecorder{flushErr: boom}))
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStats(t *testing.T) {
	var a, b Stats
	a.Add(EpisodeSummary{Outcome: episodes.OutcomeGoal, Reward: 9, Steps: 10})
	a.Add(EpisodeSummary{Outcome: episodes.OutcomeDeathzone, Reward: -11, Steps: 4})
	b.Add(EpisodeSummary{Outcome: episodes.OutcomeTimeout, Reward: -2, Steps: 100})

	m := a.Merge(b)
	assert.Equal(t, 3, m.Episodes)
	assert.Equal(t, 1, m.Goals)
	assert.Equal(t, 1, m.Deathzones)
	assert.Equal(t, 1, m.Timeouts)
	assert.Equal(t, uint64(114), m.Steps)
	assert.InDelta(t, 1.0/3, m.SuccessRate(), 1e-12)
	assert.InDelta(t, -4.0/3, m.MeanReward(), 1e-12)
	assert.Zero(t, Stats{}.MeanReward())
}

func TestGreedyPolicy(t *testing.T) {
	p := GreedyPolicy{Tolerance: 10}

	ahead := p.Act(sim.Observation{Goal: physics.Vec3{Z: 5}})
	assert.Equal(t, agent.Action{Forward: agent.ForwardMove, Turn: agent.TurnNone}, ahead)

	right := p.Act(sim.Observation{Goal: physics.Vec3{X: 5}})
	assert.Equal(t, agent.Action{Forward: agent.ForwardStop, Turn: agent.TurnRight}, right)

	left := p.Act(sim.Observation{Goal: physics.Vec3{X: -5, Z: 5}, AgentYaw: 10})
	assert.Equal(t, agent.Action{Forward: agent.ForwardStop, Turn: agent.TurnLeft}, left)
}

func TestRandomPolicy(t *testing.T) {
	p1 := NewRandomPolicy("a", 11)
	p2 := NewRandomPolicy("a", 11)
	for i := 0; i < 200; i++ {
		a := p1.Act(sim.Observation{})
		assert.Equal(t, a, p2.Act(sim.Observation{}))
		assert.Equal(t, a, agent.ActionFromVector(a.Vector()))
	}
}
