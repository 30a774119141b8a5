package trainer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/systems/physics"
	"github.com/zeusync/finder/internal/sim"
)

const (
	PolicyRandom = "random"
	PolicyGreedy = "greedy"
)

// Policy picks the next action from an observation. A policy instance is
// used by a single agent.
type Policy interface {
	Act(obs sim.Observation) agent.Action
}

// PolicyFactory builds the policy for one agent from its derived seed.
type PolicyFactory func(agentID string, seed uint64) Policy

// PolicyByName resolves a built-in policy.
func PolicyByName(name string) (PolicyFactory, error) {
	switch name {
	case PolicyRandom, "":
		return NewRandomPolicy, nil
	case PolicyGreedy:
		return func(string, uint64) Policy { return GreedyPolicy{Tolerance: 10} }, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, name)
	}
}

// RandomPolicy samples both action branches uniformly.
type RandomPolicy struct {
	rng *rand.Rand
}

func NewRandomPolicy(_ string, seed uint64) Policy {
	return &RandomPolicy{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (p *RandomPolicy) Act(sim.Observation) agent.Action {
	return agent.Action{Forward: p.rng.IntN(3), Turn: p.rng.IntN(3)}
}

// GreedyPolicy turns toward the goal and walks once roughly facing it. It
// ignores the obstacle.
type GreedyPolicy struct {
	// Tolerance is the heading error in degrees below which it stops turning.
	Tolerance float64
}

func (p GreedyPolicy) Act(obs sim.Observation) agent.Action {
	to := obs.Goal.Sub(obs.Agent)
	want := math.Atan2(to.X, to.Z) / physics.Deg2Rad
	diff := physics.NormalizeYaw(want - obs.AgentYaw)
	if diff > 180 {
		diff -= 360
	}

	a := agent.Action{Forward: agent.ForwardStop, Turn: agent.TurnNone}
	switch {
	case diff > p.Tolerance:
		a.Turn = agent.TurnRight
	case diff < -p.Tolerance:
		a.Turn = agent.TurnLeft
	}
	if math.Abs(diff) < 45 {
		a.Forward = agent.ForwardMove
	}
	return a
}
