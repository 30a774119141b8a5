package agent

import (
	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/core/room"
	"github.com/zeusync/finder/internal/core/systems/physics"
)

// Controller drives one goal-seeking agent through episodes. It is not safe
// for concurrent use: Reset, Step and the collision callbacks are expected to
// run on the single simulation loop that owns the agent.
type Controller struct {
	id     string
	cfg    Config
	room   *room.Room
	body   physics.Body
	goal   physics.Placeable
	obst   physics.Placeable
	rng    Rand
	logger log.Log

	state episodeState

	prevStepTime        float64
	lastObstacleContact float64

	pending       float64
	episodeReward float64
	episode       uint64
	steps         uint64
}

type Option func(*Controller)

func WithRand(r Rand) Option { return func(c *Controller) { c.rng = r } }

func WithLogger(l log.Log) Option { return func(c *Controller) { c.logger = l } }

func WithID(id string) Option { return func(c *Controller) { c.id = id } }

// NewController wires a controller to its room and scene objects. Call Reset
// before the first Step.
func NewController(cfg Config, r *room.Room, body physics.Body, goal, obstacle physics.Placeable, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case r == nil:
		return nil, ErrNilRoom
	case body == nil:
		return nil, ErrNilBody
	case goal == nil || obstacle == nil:
		return nil, ErrNilTarget
	}

	c := &Controller{
		id:    "agent",
		cfg:   cfg,
		room:  r,
		body:  body,
		goal:  goal,
		obst:  obstacle,
		state: running{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = NewRand(0, c.id)
	}
	if c.logger == nil {
		c.logger = log.NewNop()
	}
	c.logger = c.logger.With(log.String("agent", c.id))
	return c, nil
}

// Reset re-randomizes the scene and starts a new episode. It may be called at
// any time, including mid-episode.
func (c *Controller) Reset() Placement {
	c.body.SetVelocity(physics.Zero)
	c.body.SetAngularVelocity(physics.Zero)

	p := c.place()

	c.state = running{}
	c.pending = 0
	c.episodeReward = 0
	c.steps = 0
	c.episode++

	c.logger.Debug("episode reset",
		log.Uint64("episode", c.episode),
		log.String("branch", p.Branch.String()),
		log.Float64("goal_distance", p.Agent.Distance(p.Goal)),
		log.Int("goal_attempts", p.GoalAttempts),
		log.Int("obstacle_attempts", p.ObstacleAttempts))
	return p
}

// Step applies a discrete action at time now (seconds) and returns the reward
// accrued since the previous report, collision rewards included. A terminated
// episode issues no commands and accrues nothing.
func (c *Controller) Step(a Action, now float64) float64 {
	c.state.act(c, a, now)
	return c.Flush()
}

// HandleCollision applies a contact reported by the physics host and returns
// the reward delta it caused.
func (c *Controller) HandleCollision(ev CollisionEvent) float64 {
	return c.state.collide(c, ev)
}

func (c *Controller) OnCollisionEnter(tag physics.Tag, now float64) float64 {
	return c.HandleCollision(CollisionEvent{Kind: physics.ContactEnter, Tag: tag, Time: now})
}

func (c *Controller) OnCollisionStay(tag physics.Tag, now float64) float64 {
	return c.HandleCollision(CollisionEvent{Kind: physics.ContactStay, Tag: tag, Time: now})
}

// Flush returns the reward accrued since the last report and clears it.
// Drivers use it to collect the terminal bonus once an episode is done.
func (c *Controller) Flush() float64 {
	r := c.pending
	c.pending = 0
	return r
}

func (c *Controller) IsDone() bool                { return c.state.status() == StatusTerminated }
func (c *Controller) Status() Status              { return c.state.status() }
func (c *Controller) Outcome() Outcome            { return c.state.outcome() }
func (c *Controller) ID() string                  { return c.id }
func (c *Controller) Config() Config              { return c.cfg }
func (c *Controller) Room() *room.Room            { return c.room }
func (c *Controller) Body() physics.Body          { return c.body }
func (c *Controller) Goal() physics.Placeable     { return c.goal }
func (c *Controller) Obstacle() physics.Placeable { return c.obst }

// EpisodeReward is the total reward of the current episode, reported or not.
func (c *Controller) EpisodeReward() float64 { return c.episodeReward }

// Episode counts resets since construction.
func (c *Controller) Episode() uint64 { return c.episode }

// Steps counts Step calls in the current episode while running.
func (c *Controller) Steps() uint64 { return c.steps }

// DistanceToGoal is the current agent-to-goal distance.
func (c *Controller) DistanceToGoal() float64 {
	return c.body.Position().Distance(c.goal.Position())
}

func (c *Controller) command(a Action) {
	switch a.Forward {
	case ForwardStop:
		c.body.SetVelocity(physics.Zero)
	case ForwardMove:
		c.body.SetVelocity(physics.Forward(c.body.Yaw()).Scale(c.cfg.MovementSpeed))
	case ForwardBack:
		c.body.SetVelocity(physics.Forward(c.body.Yaw()).Scale(-c.cfg.MovementSpeed))
	}

	switch a.Turn {
	case TurnNone:
		c.body.SetAngularVelocity(physics.Zero)
	case TurnLeft:
		c.body.SetAngularVelocity(physics.Vec3{Y: -c.cfg.RotationSpeed * physics.Deg2Rad})
	case TurnRight:
		c.body.SetAngularVelocity(physics.Vec3{Y: c.cfg.RotationSpeed * physics.Deg2Rad})
	}
}

// accrueStep adds the time penalty and the distance shaping bonus for the
// time elapsed since the previous step.
func (c *Controller) accrueStep(now float64) {
	delta := now - c.prevStepTime
	c.prevStepTime = now
	c.steps++

	c.add(-delta * TimePenaltyRate)

	maxDistance := c.room.MaxDistance()
	c.add((maxDistance - c.DistanceToGoal() + 1) / maxDistance * delta * ShapingRate)
}

func (c *Controller) add(r float64) float64 {
	c.pending += r
	c.episodeReward += r
	return r
}

func (c *Controller) terminate(why Outcome) {
	c.state = terminated{why: why}
	c.logger.Debug("episode terminated",
		log.Uint64("episode", c.episode),
		log.String("outcome", why.String()),
		log.Float64("reward", c.episodeReward))
}
