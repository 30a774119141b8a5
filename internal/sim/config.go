package sim

import (
	"fmt"
	"math"
)

// Config describes the fixed-tick host around one agent. Distances are in
// world units, times in seconds.
type Config struct {
	FixedDelta     float64 `yaml:"fixed_delta" json:"fixed_delta"`
	MaxEpisodeTime float64 `yaml:"max_episode_time" json:"max_episode_time"`
	AgentRadius    float64 `yaml:"agent_radius" json:"agent_radius"`
	GoalRadius     float64 `yaml:"goal_radius" json:"goal_radius"`
	ObstacleRadius float64 `yaml:"obstacle_radius" json:"obstacle_radius"`
	// PlatformMargin grows the spawn area into the walkable platform. Leaving
	// the platform is a death zone contact.
	PlatformMargin float64 `yaml:"platform_margin" json:"platform_margin"`
}

func DefaultConfig() Config {
	return Config{
		FixedDelta:     0.02,
		MaxEpisodeTime: 60,
		AgentRadius:    0.5,
		GoalRadius:     0.5,
		ObstacleRadius: 0.75,
		PlatformMargin: 1,
	}
}

func (c Config) Validate() error {
	if !(c.FixedDelta > 0) || math.IsInf(c.FixedDelta, 0) {
		return fmt.Errorf("%w: fixed_delta must be positive, got %v", ErrInvalidConfig, c.FixedDelta)
	}
	if !(c.MaxEpisodeTime >= c.FixedDelta) || math.IsInf(c.MaxEpisodeTime, 0) {
		return fmt.Errorf("%w: max_episode_time %v shorter than one tick", ErrInvalidConfig, c.MaxEpisodeTime)
	}
	for name, v := range map[string]float64{
		"agent_radius":    c.AgentRadius,
		"goal_radius":     c.GoalRadius,
		"obstacle_radius": c.ObstacleRadius,
		"platform_margin": c.PlatformMargin,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %v", ErrInvalidConfig, name, v)
		}
	}
	return nil
}

// MaxTicks is the number of ticks after which an episode is truncated.
func (c Config) MaxTicks() uint64 {
	return uint64(math.Ceil(c.MaxEpisodeTime/c.FixedDelta - 1e-9))
}
