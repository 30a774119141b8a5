package sim

import (
	"fmt"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/events/bus"
	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/core/room"
	"github.com/zeusync/finder/internal/core/systems/physics"
)

// Collision event types published on the agent's topic.
const (
	EventCollisionEnter = "collision.enter"
	EventCollisionStay  = "collision.stay"
)

// EventType maps a contact kind to the bus event type carrying it.
func EventType(k physics.ContactKind) string {
	if k == physics.ContactEnter {
		return EventCollisionEnter
	}
	return EventCollisionStay
}

// Environment runs one agent in a kinematic world on a fixed tick. The clock
// is monotonic across episodes. Not safe for concurrent use.
type Environment struct {
	id     string
	cfg    Config
	room   *room.Room
	world  *physics.World
	ctrl   *agent.Controller
	bus    bus.EventBus
	subs   []bus.Subscription
	logger log.Log

	clock     float64
	ticks     uint64
	maxTicks  uint64
	placement agent.Placement
	truncated bool
}

type Option func(*options)

type options struct {
	id     string
	bus    bus.EventBus
	rng    agent.Rand
	logger log.Log
}

func WithID(id string) Option       { return func(o *options) { o.id = id } }
func WithBus(b bus.EventBus) Option { return func(o *options) { o.bus = b } }
func WithRand(r agent.Rand) Option  { return func(o *options) { o.rng = r } }
func WithLogger(l log.Log) Option   { return func(o *options) { o.logger = l } }

// New builds the world, the controller and the collision wiring. Several
// environments may share one bus as long as their ids differ.
func New(cfg Config, r *room.Room, agentCfg agent.Config, opts ...Option) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{id: "agent"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = bus.New()
	}
	if o.logger == nil {
		o.logger = log.NewNop()
	}

	body := physics.NewKinematicBody(r.Origin(), 0)
	goal := &physics.Marker{}
	obstacle := &physics.Marker{}

	ctrlOpts := []agent.Option{agent.WithID(o.id), agent.WithLogger(o.logger)}
	if o.rng != nil {
		ctrlOpts = append(ctrlOpts, agent.WithRand(o.rng))
	}
	ctrl, err := agent.NewController(agentCfg, r, body, goal, obstacle, ctrlOpts...)
	if err != nil {
		return nil, err
	}

	world := physics.NewWorld(body, cfg.AgentRadius, r.Rect(cfg.PlatformMargin))
	world.AddCollider(physics.Collider{Tag: physics.TagGoal, Radius: cfg.GoalRadius, Object: goal})
	world.AddCollider(physics.Collider{Tag: physics.TagObstacle, Radius: cfg.ObstacleRadius, Object: obstacle})

	e := &Environment{
		id:       o.id,
		cfg:      cfg,
		room:     r,
		world:    world,
		ctrl:     ctrl,
		bus:      o.bus,
		logger:   o.logger.With(log.String("env", o.id)),
		maxTicks: cfg.MaxTicks(),
	}

	if err = e.bus.CreateTopic(e.id); err != nil {
		return nil, fmt.Errorf("create topic %q: %w", e.id, err)
	}
	for _, typ := range []string{EventCollisionEnter, EventCollisionStay} {
		sub, err := e.bus.SubscribeTopic(e.id, typ, e.onContact)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("subscribe %s: %w", typ, err)
		}
		e.subs = append(e.subs, sub)
	}
	return e, nil
}

// Reset starts a new episode and returns its first observation.
func (e *Environment) Reset() Observation {
	e.placement = e.ctrl.Reset()
	e.world.ResetContacts()
	e.ticks = 0
	e.truncated = false
	return e.Observe()
}

// Step runs one tick: the controller acts at the current time, the world
// advances, and contacts are delivered to the controller through the bus.
// The reward covers everything accrued during the tick, including a terminal
// bonus or penalty.
func (e *Environment) Step(a agent.Action) (StepResult, error) {
	if e.ctrl.IsDone() || e.truncated {
		return StepResult{Observation: e.Observe(), Done: e.ctrl.IsDone(), Truncated: e.truncated, Info: e.info(nil)}, ErrEpisodeOver
	}

	reward := e.ctrl.Step(a, e.clock)

	e.clock += e.cfg.FixedDelta
	e.ticks++
	contacts := e.world.Advance(e.cfg.FixedDelta, e.clock)
	var perr error
	for _, c := range contacts {
		if err := e.bus.PublishToTopic(e.id, bus.NewEvent(EventType(c.Kind), e.id, c.Time, c), e.running); err != nil {
			perr = err
		}
	}
	reward += e.ctrl.Flush()

	res := StepResult{
		Observation: e.Observe(),
		Reward:      reward,
		Done:        e.ctrl.IsDone(),
		Info:        e.info(contacts),
	}
	if !res.Done && e.ticks >= e.maxTicks {
		e.truncated = true
		res.Truncated = true
	}
	if res.Done || res.Truncated {
		e.logger.Debug("episode ended",
			log.Uint64("episode", res.Info.Episode),
			log.String("outcome", res.Info.Outcome.String()),
			log.Bool("truncated", res.Truncated),
			log.Uint64("ticks", e.ticks),
			log.Float64("reward", res.Info.EpisodeReward))
	}
	if perr != nil {
		return res, fmt.Errorf("deliver contacts: %w", perr)
	}
	return res, nil
}

// Close detaches the environment from its bus.
func (e *Environment) Close() {
	for _, s := range e.subs {
		_ = e.bus.Unsubscribe(s)
	}
	e.subs = nil
	_ = e.bus.DeleteTopic(e.id)
}

func (e *Environment) ID() string                    { return e.id }
func (e *Environment) Config() Config                { return e.cfg }
func (e *Environment) Room() *room.Room              { return e.room }
func (e *Environment) Controller() *agent.Controller { return e.ctrl }
func (e *Environment) Placement() agent.Placement    { return e.placement }
func (e *Environment) Time() float64                 { return e.clock }
func (e *Environment) Ticks() uint64                 { return e.ticks }
func (e *Environment) Truncated() bool               { return e.truncated }

// Elapsed is the simulated time spent in the current episode.
func (e *Environment) Elapsed() float64 { return float64(e.ticks) * e.cfg.FixedDelta }

// running drops contacts that arrive in the same tick after the episode ended.
func (e *Environment) running(bus.Event) bool { return !e.ctrl.IsDone() }

func (e *Environment) onContact(ev bus.Event) error {
	c, ok := ev.Data.(agent.CollisionEvent)
	if !ok {
		return fmt.Errorf("%w: %T", ErrBadPayload, ev.Data)
	}
	e.ctrl.HandleCollision(c)
	return nil
}

// Observe reports the current scene without advancing time.
func (e *Environment) Observe() Observation {
	body := e.ctrl.Body()
	d := e.ctrl.DistanceToGoal()
	return Observation{
		Agent:              body.Position(),
		AgentYaw:           body.Yaw(),
		Velocity:           body.Velocity(),
		Goal:               e.ctrl.Goal().Position(),
		Obstacle:           e.ctrl.Obstacle().Position(),
		Distance:           d,
		NormalizedDistance: d / e.room.MaxDistance(),
	}
}

func (e *Environment) info(contacts []physics.Contact) Info {
	return Info{
		Episode:       e.ctrl.Episode(),
		Step:          e.ticks,
		Elapsed:       e.Elapsed(),
		EpisodeReward: e.ctrl.EpisodeReward(),
		Outcome:       e.ctrl.Outcome(),
		Contacts:      contacts,
	}
}
