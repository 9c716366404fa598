package repo

import (
	"context"

	model "go_request_guard/internal/domain/model/guard"
)

// RuleRepositoryIface 接口 - 定义规则定义的数据仓库操作
type RuleRepositoryIface interface {
	SaveRule(ctx context.Context, rule *model.RuleDefinition) error
	DeleteRule(ctx context.Context, ruleID string) error
	FindByID(ctx context.Context, ruleID string) (*model.RuleDefinition, error)
	ListRules(ctx context.Context, filter *model.RuleFilter) ([]*model.RuleDefinition, error)
	ListRulesWithPage(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error)

	// GetIndexRules returns the active rules of one engine, highest priority first.
	GetIndexRules(ctx context.Context, engine model.EngineType) ([]*model.RuleDefinition, error)
}
