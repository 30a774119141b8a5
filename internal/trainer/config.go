package trainer

import "fmt"

type Config struct {
	// Agents is the number of independent environments run side by side.
	Agents int `yaml:"agents" json:"agents"`
	// Episodes is the number of episodes each agent plays.
	Episodes int `yaml:"episodes" json:"episodes"`
	// Seed is the base seed; agent streams are derived from it and the agent id.
	Seed uint64 `yaml:"seed" json:"seed"`
	// Parallelism caps concurrently running agents, 0 means all at once.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
	// Policy names the built-in policy: "random" or "greedy".
	Policy string `yaml:"policy" json:"policy"`
}

func DefaultConfig() Config {
	return Config{
		Agents:   4,
		Episodes: 100,
		Seed:     1,
		Policy:   PolicyRandom,
	}
}

func (c Config) Validate() error {
	if c.Agents < 1 {
		return fmt.Errorf("%w: agents must be positive, got %d", ErrInvalidConfig, c.Agents)
	}
	if c.Episodes < 1 {
		return fmt.Errorf("%w: episodes must be positive, got %d", ErrInvalidConfig, c.Episodes)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism %d", ErrInvalidConfig, c.Parallelism)
	}
	if _, err := PolicyByName(c.Policy); err != nil {
		return err
	}
	return nil
}
