package agent

import (
	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/core/systems/physics"
)

// Branch identifies how the obstacle was placed.
type Branch uint8

const (
	// BranchScatter rejection-samples the obstacle away from agent or goal.
	BranchScatter Branch = iota
	// BranchPath drops the obstacle on the agent-goal segment.
	BranchPath
)

func (b Branch) String() string {
	if b == BranchPath {
		return "path"
	}
	return "scatter"
}

// Placement describes the scene produced by a Reset.
type Placement struct {
	Agent       physics.Vec3 `json:"agent"`
	AgentYaw    float64      `json:"agent_yaw"`
	Goal        physics.Vec3 `json:"goal"`
	Obstacle    physics.Vec3 `json:"obstacle"`
	ObstacleYaw float64      `json:"obstacle_yaw"`
	Branch      Branch       `json:"branch"`

	GoalAttempts     int  `json:"goal_attempts"`
	ObstacleAttempts int  `json:"obstacle_attempts"`
	GoalFallback     bool `json:"goal_fallback"`
	ObstacleFallback bool `json:"obstacle_fallback"`
}

func (c *Controller) place() Placement {
	var p Placement

	p.Agent = c.room.WorldPosition(c.rng, 0)
	p.AgentYaw = c.randomYaw()
	c.body.Place(p.Agent, p.AgentYaw)

	p.Goal, p.GoalAttempts, p.GoalFallback = c.sampleGoal(p.Agent)
	c.goal.Place(p.Goal, c.goal.Yaw())

	dist := p.Agent.Distance(p.Goal)
	if dist > PathBiasMinDistance && c.rng.Float64() < PathBiasProbability {
		from := physics.MoveTowards(p.Agent, p.Goal, PathBiasInset)
		to := physics.MoveTowards(p.Goal, p.Agent, PathBiasInset)
		p.Obstacle = physics.Lerp(from, to, c.rng.Float64())
		p.ObstacleYaw = c.randomYaw()
		p.Branch = BranchPath
		p.ObstacleAttempts = 1
	} else {
		p.Obstacle, p.ObstacleYaw, p.ObstacleAttempts, p.ObstacleFallback = c.sampleObstacle(p.Agent, p.Goal)
		p.Branch = BranchScatter
	}
	c.obst.Place(p.Obstacle, p.ObstacleYaw)

	return p
}

// sampleGoal draws goal positions until one is far enough from the agent. On
// exhaustion it uses the spawn corner farthest from the agent.
func (c *Controller) sampleGoal(agentPos physics.Vec3) (physics.Vec3, int, bool) {
	for i := 1; i <= c.cfg.MaxSampleAttempts; i++ {
		g := c.room.WorldPosition(c.rng, 0)
		if agentPos.Distance(g) >= MinGoalDistance {
			return g, i, false
		}
	}
	g := c.room.FarthestCorner(agentPos, c.room.Origin().Y)
	c.logger.Warn("goal sampling exhausted, using farthest corner",
		log.Int("attempts", c.cfg.MaxSampleAttempts),
		log.Float64("distance", agentPos.Distance(g)))
	return g, c.cfg.MaxSampleAttempts, true
}

// sampleObstacle draws obstacle poses until the obstacle is clear of the agent
// or of the goal. On exhaustion the last candidate is kept.
func (c *Controller) sampleObstacle(agentPos, goalPos physics.Vec3) (physics.Vec3, float64, int, bool) {
	var (
		pos physics.Vec3
		yaw float64
	)
	for i := 1; i <= c.cfg.MaxSampleAttempts; i++ {
		pos = c.room.WorldPosition(c.rng, 0)
		yaw = c.randomYaw()
		if !tooClose(agentPos, goalPos, pos) {
			return pos, yaw, i, false
		}
	}
	c.logger.Warn("obstacle sampling exhausted, keeping last candidate",
		log.Int("attempts", c.cfg.MaxSampleAttempts))
	return pos, yaw, c.cfg.MaxSampleAttempts, true
}

func tooClose(agentPos, goalPos, obstaclePos physics.Vec3) bool {
	return agentPos.Distance(obstaclePos) <= ObstacleClearance &&
		goalPos.Distance(obstaclePos) <= ObstacleClearance
}

func (c *Controller) randomYaw() float64 {
	return c.rng.Float64() * 360
}
