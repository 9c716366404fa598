package iface

import (
	"context"

	"go_request_guard/internal/domain/engine"
	model "go_request_guard/internal/domain/model/guard"
)

// RuleService 规则管理服务接口
type RuleService interface {
	// CreateRule 校验、持久化并安装规则, 返回带 ID 的规则
	CreateRule(ctx context.Context, def *model.RuleDefinition) (*model.RuleDefinition, error)
	GetRule(ctx context.Context, id string) (*model.RuleDefinition, error)
	DeleteRule(ctx context.Context, id string) error
	ListRules(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error)
}

// RuleSyncService keeps the engines' persisted rules in step with the store.
type RuleSyncService interface {
	LoadRules(ctx context.Context) (int, error)
	Install(def *model.RuleDefinition) error
	Uninstall(def *model.RuleDefinition)
}

// CorsRuleTarget is the part of the CORS evaluator the services drive.
type CorsRuleTarget interface {
	AddRule(rule engine.CorsRule) error
	RemoveRule(name string) bool
}

// HeaderRuleTarget is the part of the header validator the services drive.
type HeaderRuleTarget interface {
	AddRule(rule engine.CustomValidationRule) error
	RemoveRule(name string) bool
}
