//go:build wireinject
// +build wireinject

package bootstrap

import (
	configs "go_request_guard/internal/infra/config"
	"go_request_guard/internal/infra/repo"

	"github.com/google/wire"
)

func InitializeMySQLGuard(c *configs.GuardConfig) (*Guard, func(), error) {
	wire.Build(repo.Reposet, EngineSet, ServiceSet, wire.Struct(new(Guard), "*"))
	return nil, nil, nil
}

func InitializeMemoryGuard(c *configs.GuardConfig) (*Guard, func(), error) {
	wire.Build(repo.NewMemoryRuleRepo, EngineSet, ServiceSet, wire.Struct(new(Guard), "*"))
	return nil, nil, nil
}
