//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/finder/internal/config"
	"github.com/zeusync/finder/internal/server"
	"github.com/zeusync/finder/internal/trainer"
)

func InitializeServer(cfg config.Config) (*server.Server, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}

func InitializeRunner(cfg config.Config) (*trainer.Runner, func(), error) {
	wire.Build(RunnerSet)
	return nil, nil, nil
}
