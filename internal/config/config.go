package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/core/room"
	"github.com/zeusync/finder/internal/core/systems/physics"
	"github.com/zeusync/finder/internal/server"
	"github.com/zeusync/finder/internal/sim"
	"github.com/zeusync/finder/internal/trainer"
)

// Environment variables that override the file.
const (
	EnvLogLevel   = "FINDER_LOG_LEVEL"
	EnvListenAddr = "FINDER_LISTEN_ADDR"
	EnvSeed       = "FINDER_SEED"
	EnvDBPath     = "FINDER_DB_PATH"
	EnvTrajectory = "FINDER_TRAJECTORY_DIR"
	EnvToken      = "FINDER_TOKEN"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Room        RoomConfig        `yaml:"room"`
	Agent       agent.Config      `yaml:"agent"`
	Sim         sim.Config        `yaml:"sim"`
	Trainer     trainer.Config    `yaml:"trainer"`
	Server      server.Config     `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

type RoomConfig struct {
	Bounds room.Bounds  `yaml:"bounds"`
	Origin physics.Vec3 `yaml:"origin"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PersistenceConfig struct {
	// DBPath is the SQLite episode index, empty disables it.
	DBPath string `yaml:"db_path"`
	// TrajectoryDir receives zstd JSONL step logs, empty disables them.
	TrajectoryDir string `yaml:"trajectory_dir"`
}

func Default() Config {
	return Config{
		Room:    RoomConfig{Bounds: room.DefaultBounds()},
		Agent:   agent.DefaultConfig(),
		Sim:     sim.DefaultConfig(),
		Trainer: trainer.DefaultConfig(),
		Server:  server.DefaultConfig(),
		Log:     LogConfig{Level: "info"},
		Persistence: PersistenceConfig{
			DBPath: "data/episodes.db",
		},
	}
}

// Load reads path over the defaults, then applies .env files and FINDER_*
// variables. An empty path skips the file.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	loadEnvFiles(envFiles...)
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadEnvFiles loads the first readable file. Variables already set win.
func loadEnvFiles(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			return
		}
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvListenAddr); ok {
		c.Server.ListenAddr = v
	}
	if v, ok := lookup(EnvSeed); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, EnvSeed, err)
		}
		c.Trainer.Seed = seed
		c.Server.Seed = seed
	}
	if v, ok := lookup(EnvDBPath); ok {
		c.Persistence.DBPath = v
	}
	if v, ok := lookup(EnvTrajectory); ok {
		c.Persistence.TrajectoryDir = v
	}
	if v, ok := lookup(EnvToken); ok {
		c.Server.Token = v
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := room.New(c.Room.Bounds, c.Room.Origin); err != nil {
		errs = append(errs, fmt.Errorf("room: %w", err))
	}
	if err := c.Agent.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("agent: %w", err))
	}
	if err := c.Sim.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sim: %w", err))
	}
	if err := c.Trainer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("trainer: %w", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// NewRoom builds the room described by the config.
func (c Config) NewRoom() (*room.Room, error) {
	return room.New(c.Room.Bounds, c.Room.Origin)
}

// LogLevel returns the parsed level, info when unparsable.
func (c Config) LogLevel() log.Level {
	l, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.LevelInfo
	}
	return l
}
