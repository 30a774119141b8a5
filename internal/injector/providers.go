package injector

import (
	"fmt"
	"path/filepath"

	"github.com/google/wire"

	"github.com/zeusync/finder/internal/config"
	"github.com/zeusync/finder/internal/core/agent"
	"github.com/zeusync/finder/internal/core/observability/log"
	"github.com/zeusync/finder/internal/core/room"
	"github.com/zeusync/finder/internal/persistence/episodes"
	"github.com/zeusync/finder/internal/persistence/trajectory"
	"github.com/zeusync/finder/internal/server"
	"github.com/zeusync/finder/internal/sim"
	"github.com/zeusync/finder/internal/trainer"
)

var (
	CoreSet = wire.NewSet(
		ProvideLogger,
		wire.Bind(new(log.Log), new(*log.Logger)),
		ProvideRoom,
	)

	ServerSet = wire.NewSet(CoreSet, ProvideEnvFactory, ProvideServer)

	RunnerSet = wire.NewSet(CoreSet, ProvideRunnerOptions, ProvideRunner)
)

func ProvideLogger(cfg config.Config) (*log.Logger, func()) {
	l := log.New(cfg.LogLevel())
	return l, func() { _ = l.Sync() }
}

func ProvideRoom(cfg config.Config) (*room.Room, error) {
	return cfg.NewRoom()
}

// ProvideEnvFactory builds per-session environments whose random streams are
// derived from the server seed and the session id.
func ProvideEnvFactory(cfg config.Config, r *room.Room, logger log.Log) server.EnvFactory {
	return func(sessionID string) (*sim.Environment, error) {
		return sim.New(cfg.Sim, r, cfg.Agent,
			sim.WithID(sessionID),
			sim.WithRand(agent.NewRand(cfg.Server.Seed, sessionID)),
			sim.WithLogger(logger))
	}
}

// ProvideServer builds the server; its cleanup closes it, stopping it first
// if it is still running.
func ProvideServer(cfg config.Config, factory server.EnvFactory, logger log.Log) (*server.Server, func()) {
	srv := server.NewServer(cfg.Server, factory, logger)
	return srv, func() {
		if err := srv.Close(); err != nil {
			logger.Warn("close server failed", log.Error(err))
		}
	}
}

// ProvideRunnerOptions opens the configured episode index and trajectory log.
func ProvideRunnerOptions(cfg config.Config, logger log.Log) ([]trainer.Option, func(), error) {
	opts := []trainer.Option{trainer.WithLogger(logger)}
	var closers []func() error

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close failed", log.Error(err))
			}
		}
	}

	if p := cfg.Persistence.DBPath; p != "" {
		idx, err := episodes.OpenSQLite(p)
		if err != nil {
			return nil, nil, fmt.Errorf("open episode index %s: %w", p, err)
		}
		closers = append(closers, idx.Close)
		opts = append(opts, trainer.WithRecorder(idx))
	}
	if dir := cfg.Persistence.TrajectoryDir; dir != "" {
		w := trajectory.NewWriter(filepath.Clean(dir), "trajectory")
		closers = append(closers, w.Close)
		opts = append(opts, trainer.WithStepRecorder(w))
	}
	return opts, cleanup, nil
}

func ProvideRunner(cfg config.Config, r *room.Room, opts []trainer.Option) (*trainer.Runner, error) {
	return trainer.NewRunner(cfg.Trainer, r, cfg.Sim, cfg.Agent, opts...)
}
