package trainer

import (
	"sync/atomic"

	"github.com/zeusync/finder/internal/core/events/bus"
	"github.com/zeusync/finder/internal/persistence/episodes"
	"github.com/zeusync/finder/internal/sim"
)

// EpisodeSummary is the record produced for every finished episode.
type EpisodeSummary = episodes.Summary

// Stats aggregates finished episodes.
type Stats struct {
	Episodes    int     `json:"episodes"`
	Goals       int     `json:"goals"`
	Deathzones  int     `json:"deathzones"`
	Timeouts    int     `json:"timeouts"`
	Steps       uint64  `json:"steps"`
	TotalReward float64 `json:"total_reward"`
}

func (s *Stats) Add(sum EpisodeSummary) {
	s.Episodes++
	s.Steps += sum.Steps
	s.TotalReward += sum.Reward
	switch sum.Outcome {
	case episodes.OutcomeGoal:
		s.Goals++
	case episodes.OutcomeDeathzone:
		s.Deathzones++
	case episodes.OutcomeTimeout:
		s.Timeouts++
	}
}

func (s Stats) Merge(o Stats) Stats {
	return Stats{
		Episodes:    s.Episodes + o.Episodes,
		Goals:       s.Goals + o.Goals,
		Deathzones:  s.Deathzones + o.Deathzones,
		Timeouts:    s.Timeouts + o.Timeouts,
		Steps:       s.Steps + o.Steps,
		TotalReward: s.TotalReward + o.TotalReward,
	}
}

// SuccessRate is the share of episodes that reached the goal.
func (s Stats) SuccessRate() float64 {
	if s.Episodes == 0 {
		return 0
	}
	return float64(s.Goals) / float64(s.Episodes)
}

func (s Stats) MeanReward() float64 {
	if s.Episodes == 0 {
		return 0
	}
	return s.TotalReward / float64(s.Episodes)
}

// EventStats summarizes the collision traffic of a run. Filtered counts
// contacts dropped because their episode had already ended.
type EventStats struct {
	Enters        uint64 `json:"enters"`
	Stays         uint64 `json:"stays"`
	Filtered      uint64 `json:"filtered"`
	HandlerErrors uint64 `json:"handler_errors"`
}

// contactCounter observes the shared bus of a run. Agents publish
// concurrently, so counts are atomic.
type contactCounter struct {
	enters atomic.Uint64
	stays  atomic.Uint64
}

func (c *contactCounter) OnPublish(_ string, ev bus.Event) {
	switch ev.Type {
	case sim.EventCollisionEnter:
		c.enters.Add(1)
	case sim.EventCollisionStay:
		c.stays.Add(1)
	}
}

func (c *contactCounter) OnDelivered(string, bus.Event, int, error) {}

func (c *contactCounter) stats(m bus.EventBusMetrics) EventStats {
	return EventStats{
		Enters:        c.enters.Load(),
		Stays:         c.stays.Load(),
		Filtered:      m.DroppedByFilters,
		HandlerErrors: m.Errors,
	}
}
