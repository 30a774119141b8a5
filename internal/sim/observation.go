package sim

import (
	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/systems/physics"
)

// Observation is what a policy sees after each reset or step.
type Observation struct {
	Agent              physics.Vec3 `json:"agent"`
	AgentYaw           float64      `json:"agent_yaw"`
	Velocity           physics.Vec3 `json:"velocity"`
	Goal               physics.Vec3 `json:"goal"`
	Obstacle           physics.Vec3 `json:"obstacle"`
	Distance           float64      `json:"distance"`
	NormalizedDistance float64      `json:"normalized_distance"`
}

// Vector flattens the observation relative to the agent, the layout a
// learning policy consumes.
func (o Observation) Vector() []float64 {
	g := o.Goal.Sub(o.Agent)
	b := o.Obstacle.Sub(o.Agent)
	return []float64{
		g.X, g.Z,
		b.X, b.Z,
		o.AgentYaw / 360,
		o.Velocity.X, o.Velocity.Z,
		o.NormalizedDistance,
	}
}

// Info carries diagnostics that are not part of the observation. Contacts
// lists the collisions reported during the last tick.
type Info struct {
	Episode       uint64            `json:"episode"`
	Step          uint64            `json:"step"`
	Elapsed       float64           `json:"elapsed"`
	EpisodeReward float64           `json:"episode_reward"`
	Outcome       agent.Outcome     `json:"outcome"`
	Contacts      []physics.Contact `json:"contacts,omitempty"`
}

type StepResult struct {
	Observation Observation `json:"observation"`
	Reward      float64     `json:"reward"`
	Done        bool        `json:"done"`
	Truncated   bool        `json:"truncated"`
	Info        Info        `json:"info"`
}
