package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/events/bus"
	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/core/room"
	"github.com/zeusync/finder/internal/persistence/episodes"
	"github.com/zeusync/finder/internal/persistence/trajectory"
	"github.com/zeusync/finder/internal/sim"
	"github.com/zeusync/finder/pkg/concurrent"
)

// Recorder receives every finished episode. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(EpisodeSummary) error
}

// StepRecorder receives every step of a run.
type StepRecorder interface {
	Rotate(run string) error
	WriteStep(trajectory.Step) error
}

// Flusher is implemented by recorders that buffer writes. Run flushes them
// once every agent is done.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Runner plays episodes for several agents concurrently. All agents share one
// read-only room and one event bus, each on its own topic.
type Runner struct {
	cfg      Config
	simCfg   sim.Config
	agentCfg agent.Config
	room     *room.Room

	policy    PolicyFactory
	recorders []Recorder
	steps     StepRecorder
	logger    log.Log
	runID     string

	events EventStats
}

type Option func(*Runner)

func WithPolicy(f PolicyFactory) Option      { return func(r *Runner) { r.policy = f } }
func WithRecorder(rec Recorder) Option       { return func(r *Runner) { r.recorders = append(r.recorders, rec) } }
func WithStepRecorder(s StepRecorder) Option { return func(r *Runner) { r.steps = s } }
func WithLogger(l log.Log) Option            { return func(r *Runner) { r.logger = l } }
func WithRunID(id string) Option             { return func(r *Runner) { r.runID = id } }

func NewRunner(cfg Config, rm *room.Room, simCfg sim.Config, agentCfg agent.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrNilRoom
	}
	if err := simCfg.Validate(); err != nil {
		return nil, err
	}
	if err := agentCfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg,
		simCfg:   simCfg,
		agentCfg: agentCfg,
		room:     rm,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy == nil {
		r.policy, _ = PolicyByName(cfg.Policy)
	}
	if r.logger == nil {
		r.logger = log.NewNop()
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r, nil
}

func (r *Runner) RunID() string { return r.runID }

// Events reports the collision traffic of the last Run.
func (r *Runner) Events() EventStats { return r.events }

// AgentIDs lists the agents of a run in order.
func (r *Runner) AgentIDs() []string {
	ids := make([]string, r.cfg.Agents)
	for i := range ids {
		ids[i] = fmt.Sprintf("agent-%d", i)
	}
	return ids
}

// Run plays every agent's episodes and returns the merged stats. Cancelling
// ctx stops all agents at their next episode boundary.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	if r.steps != nil {
		if err := r.steps.Rotate(r.runID); err != nil {
			return Stats{}, fmt.Errorf("open trajectory: %w", err)
		}
	}

	start := time.Now()
	r.logger.Info("run started",
		log.String("run", r.runID),
		log.Int("agents", r.cfg.Agents),
		log.Int("episodes", r.cfg.Episodes),
		log.Uint64("seed", r.cfg.Seed))

	b := bus.New()
	counter := &contactCounter{}
	b.AddObserver(counter)
	defer b.RemoveObserver(counter)

	perAgent, err := concurrent.Map(ctx, r.AgentIDs(), r.cfg.Parallelism, func(ctx context.Context, id string) (Stats, error) {
		return r.runAgent(ctx, b, id)
	})
	if err == nil {
		err = r.flush(ctx)
	}
	r.events = counter.stats(b.GetMetrics())
	if n := len(b.GetTopics()); n > 0 {
		r.logger.Warn("agent topics left open", log.String("run", r.runID), log.Int("topics", n))
	}

	var total Stats
	for _, s := range perAgent {
		total = total.Merge(s)
	}
	if err != nil {
		r.logger.Error("run failed", log.String("run", r.runID), log.Error(err))
		return total, err
	}

	r.logger.Info("run finished",
		log.String("run", r.runID),
		log.Int("episodes", total.Episodes),
		log.Float64("success_rate", total.SuccessRate()),
		log.Float64("mean_reward", total.MeanReward()),
		log.Uint64("contact_enters", r.events.Enters),
		log.Uint64("contact_stays", r.events.Stays),
		log.Uint64("contacts_filtered", r.events.Filtered),
		log.Duration("took", time.Since(start)))
	return total, nil
}

// flush drains every buffering recorder concurrently.
func (r *Runner) flush(ctx context.Context) error {
	var flushers []Flusher
	for _, rec := range r.recorders {
		if f, ok := rec.(Flusher); ok {
			flushers = append(flushers, f)
		}
	}
	if f, ok := r.steps.(Flusher); ok {
		flushers = append(flushers, f)
	}
	return concurrent.Each(ctx, flushers, 0, func(ctx context.Context, f Flusher) error {
		return f.Flush(ctx)
	})
}

func (r *Runner) runAgent(ctx context.Context, b bus.EventBus, id string) (Stats, error) {
	var stats Stats

	env, err := sim.New(r.simCfg, r.room, r.agentCfg,
		sim.WithID(id),
		sim.WithBus(b),
		sim.WithRand(agent.NewRand(r.cfg.Seed, id)),
		sim.WithLogger(r.logger))
	if err != nil {
		return stats, fmt.Errorf("%s: %w", id, err)
	}
	defer env.Close()

	policy := r.policy(id, agent.DeriveSeed(r.cfg.Seed, id+"/policy"))
	for ep := 0; ep < r.cfg.Episodes; ep++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		sum, err := r.playEpisode(env, policy)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", id, err)
		}
		stats.Add(sum)
		for _, rec := range r.recorders {
			if err := rec.Record(sum); err != nil {
				return stats, fmt.Errorf("%s: record episode: %w", id, err)
			}
		}
	}
	return stats, nil
}

func (r *Runner) playEpisode(env *sim.Environment, policy Policy) (EpisodeSummary, error) {
	obs := env.Reset()
	placement := env.Placement()

	var res sim.StepResult
	for !res.Done && !res.Truncated {
		a := policy.Act(obs)
		var err error
		if res, err = env.Step(a); err != nil {
			return EpisodeSummary{}, err
		}
		if r.steps != nil {
			if err := r.steps.WriteStep(trajectory.Step{
				Run:         r.runID,
				Agent:       env.ID(),
				Episode:     res.Info.Episode,
				Tick:        res.Info.Step,
				Time:        env.Time(),
				Action:      [2]int{a.Forward, a.Turn},
				Reward:      res.Reward,
				Done:        res.Done,
				Truncated:   res.Truncated,
				Outcome:     res.Info.Outcome,
				Contacts:    res.Info.Contacts,
				Observation: res.Observation,
			}); err != nil {
				return EpisodeSummary{}, fmt.Errorf("write step: %w", err)
			}
		}
		obs = res.Observation
	}

	outcome := res.Info.Outcome.String()
	if res.Truncated {
		outcome = episodes.OutcomeTimeout
	}
	return EpisodeSummary{
		ID:           uuid.NewString(),
		RunID:        r.runID,
		AgentID:      env.ID(),
		Episode:      res.Info.Episode,
		Steps:        res.Info.Step,
		Duration:     res.Info.Elapsed,
		Reward:       res.Info.EpisodeReward,
		Outcome:      outcome,
		Branch:       placement.Branch.String(),
		GoalDistance: placement.Agent.Distance(placement.Goal),
		FinishedAt:   time.Now().UTC(),
	}, nil
}
