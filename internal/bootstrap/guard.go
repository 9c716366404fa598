package bootstrap

import (
	"context"
	"fmt"

	"go_request_guard/internal/domain/engine"
	"go_request_guard/internal/domain/iface"
	"go_request_guard/internal/domain/services"
	configs "go_request_guard/internal/infra/config"
	"go_request_guard/internal/infra/repo"
	"go_request_guard/utils"

	"github.com/google/wire"
	"github.com/sirupsen/logrus"
)

// Guard 装配完成的引擎、规则仓储与服务
type Guard struct {
	Config  *configs.GuardConfig
	Cors    *engine.CorsEvaluator
	Headers *engine.HeaderValidator
	Repo    repo.RuleRepositoryIface
	Sync    *services.RuleSyncService
	Rules   *services.RuleManageService
}

func NewCorsEvaluator(c *configs.GuardConfig) (*engine.CorsEvaluator, error) {
	return engine.NewCorsEvaluator(&c.Cors, engine.WithLogger(utils.GetLogger()))
}

func NewHeaderValidator(c *configs.GuardConfig) (*engine.HeaderValidator, error) {
	return engine.NewHeaderValidator(&c.Headers, engine.WithLogger(utils.GetLogger()))
}

var EngineSet = wire.NewSet(
	NewCorsEvaluator,
	NewHeaderValidator,
	wire.Bind(new(iface.CorsRuleTarget), new(*engine.CorsEvaluator)),
	wire.Bind(new(iface.HeaderRuleTarget), new(*engine.HeaderValidator)),
)

var ServiceSet = wire.NewSet(
	services.NewRuleSyncService,
	services.NewRuleManageService,
	wire.Bind(new(iface.RuleSyncService), new(*services.RuleSyncService)),
)

// NewGuard picks the rule store named by ruleStore.driver and installs the stored rules.
func NewGuard(ctx context.Context, c *configs.GuardConfig) (*Guard, func(), error) {
	var (
		g       *Guard
		cleanup func()
		err     error
	)
	switch c.RuleStore.Driver {
	case configs.RuleStoreMySQL:
		g, cleanup, err = InitializeMySQLGuard(c)
	case configs.RuleStoreMemory, "":
		g, cleanup, err = InitializeMemoryGuard(c)
	default:
		return nil, nil, fmt.Errorf("unknown rule store %q", c.RuleStore.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	if _, err := g.Sync.LoadRules(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return g, cleanup, nil
}

// ReplaceConfig pushes a reloaded config into both engines.
// Both policies are validated before either engine is touched.
func (g *Guard) ReplaceConfig(c *configs.GuardConfig) error {
	if err := c.Cors.Clone().Validate(); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Headers.Clone().Validate(); err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if err := g.Cors.ReplaceConfig(&c.Cors); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := g.Headers.ReplaceConfig(&c.Headers); err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	if c.Log.Level != "" {
		if err := utils.SetLevel(c.Log.Level); err != nil {
			return err
		}
	}
	return nil
}
