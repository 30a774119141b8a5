package agent

import (
	"fmt"

	"github.com/zeusync/finder/internal/core/systems/physics"
)

// Status is the externally visible episode state.
type Status uint8

const (
	StatusRunning Status = iota
	StatusTerminated
)

func (s Status) String() string {
	if s == StatusTerminated {
		return "terminated"
	}
	return "running"
}

// Outcome records why an episode terminated.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeGoal
	OutcomeDeathzone
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGoal:
		return "goal"
	case OutcomeDeathzone:
		return "deathzone"
	default:
		return "none"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "goal":
		*o = OutcomeGoal
	case "deathzone":
		*o = OutcomeDeathzone
	case "none", "":
		*o = OutcomeNone
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// CollisionEvent is a contact reported by the physics host.
type CollisionEvent = physics.Contact

// episodeState is implemented by exactly two types. Only running mutates
// rewards, so a terminated episode cannot accrue anything from late events.
type episodeState interface {
	status() Status
	outcome() Outcome
	act(c *Controller, a Action, now float64)
	collide(c *Controller, ev CollisionEvent) float64
}

type running struct{}

func (running) status() Status   { return StatusRunning }
func (running) outcome() Outcome { return OutcomeNone }

func (running) act(c *Controller, a Action, now float64) {
	c.command(a)
	c.accrueStep(now)
}

func (running) collide(c *Controller, ev CollisionEvent) float64 {
	switch ev.Kind {
	case physics.ContactEnter:
		switch ev.Tag {
		case physics.TagObstacle:
			c.lastObstacleContact = ev.Time
			return c.add(ObstaclePenalty)
		case physics.TagDeathzone:
			r := c.add(DeathzonePenalty)
			c.terminate(OutcomeDeathzone)
			return r
		case physics.TagGoal:
			r := c.add(GoalReward)
			c.terminate(OutcomeGoal)
			return r
		}
	case physics.ContactStay:
		if ev.Tag == physics.TagObstacle && ev.Time-c.lastObstacleContact >= ObstaclePenaltyInterval {
			c.lastObstacleContact = ev.Time
			return c.add(ObstaclePenalty)
		}
	}
	return 0
}

type terminated struct{ why Outcome }

func (terminated) status() Status     { return StatusTerminated }
func (t terminated) outcome() Outcome { return t.why }

func (terminated) act(*Controller, Action, float64) {}

func (terminated) collide(*Controller, CollisionEvent) float64 { return 0 }
