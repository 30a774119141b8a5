package agent

import (
	"fmt"
	"math"
)

// Reward and placement constants of the goal-seeking task.
const (
	TimePenaltyRate = 0.1
	ShapingRate     = 0.1

	ObstaclePenalty         = -0.1
	ObstaclePenaltyInterval = 1.0
	DeathzonePenalty        = -10.0
	GoalReward              = 10.0

	MinGoalDistance     = 1.1
	PathBiasMinDistance = 4.9
	PathBiasProbability = 0.5
	PathBiasInset       = 2.4
	ObstacleClearance   = 2.0
)

// Config holds the per-agent constants fixed at construction.
type Config struct {
	// MovementSpeed is the linear speed in units per second.
	MovementSpeed float64 `yaml:"movement_speed" json:"movement_speed"`
	// RotationSpeed is the turn rate in degrees per second.
	RotationSpeed float64 `yaml:"rotation_speed" json:"rotation_speed"`
	// MaxSampleAttempts caps every rejection-sampling loop in Reset.
	MaxSampleAttempts int `yaml:"max_sample_attempts" json:"max_sample_attempts"`
}

func DefaultConfig() Config {
	return Config{
		MovementSpeed:     2,
		RotationSpeed:     90,
		MaxSampleAttempts: 1000,
	}
}

func (c Config) Validate() error {
	if c.MovementSpeed < 0 || math.IsNaN(c.MovementSpeed) || math.IsInf(c.MovementSpeed, 0) {
		return fmt.Errorf("%w: movement_speed %v", ErrInvalidConfig, c.MovementSpeed)
	}
	if c.RotationSpeed < 0 || math.IsNaN(c.RotationSpeed) || math.IsInf(c.RotationSpeed, 0) {
		return fmt.Errorf("%w: rotation_speed %v", ErrInvalidConfig, c.RotationSpeed)
	}
	if c.MaxSampleAttempts < 1 {
		return fmt.Errorf("%w: max_sample_attempts must be positive, got %d", ErrInvalidConfig, c.MaxSampleAttempts)
	}
	return nil
}
