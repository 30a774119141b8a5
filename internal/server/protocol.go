package server

import (
	"github.com/zeusync/finder/internal/core/systems/physics"
	"github.com/zeusync/finder/internal/sim"
	"github.com/zeusync/finder/pkg/protocol"
)

// Ops understood on the /env socket.
const (
	OpReset  = protocol.OpReset
	OpStep   = protocol.OpStep
	OpStatus = protocol.OpStatus
)

type (
	Request  = protocol.Request
	Response = protocol.Response
)

func wireVec(v physics.Vec3) protocol.Vec3 {
	return protocol.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func wireObservation(o sim.Observation) *protocol.Observation {
	return &protocol.Observation{
		Agent:              wireVec(o.Agent),
		AgentYaw:           o.AgentYaw,
		Velocity:           wireVec(o.Velocity),
		Goal:               wireVec(o.Goal),
		Obstacle:           wireVec(o.Obstacle),
		Distance:           o.Distance,
		NormalizedDistance: o.NormalizedDistance,
	}
}

func wireInfo(i sim.Info) *protocol.Info {
	return &protocol.Info{
		Episode:       i.Episode,
		Step:          i.Step,
		Elapsed:       i.Elapsed,
		EpisodeReward: i.EpisodeReward,
		Outcome:       i.Outcome.String(),
		Contacts:      len(i.Contacts),
	}
}
