package storage

import (
	"context"
	"errors"

	model "go_request_guard/internal/domain/model/guard"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrRuleDuplicate = errors.New("rule already exists")
	ErrCacheMiss     = errors.New("rule not in cache")
)

type MySQLRuleStorageIface interface {
	SaveRuleToDB(ctx context.Context, rule *model.RuleDefinition) error
	GetRuleFromDB(ctx context.Context, ruleID string) (*model.RuleDefinition, error)
	DeleteRuleFromDB(ctx context.Context, ruleID string) error
	BatchGetRules(ctx context.Context, ruleIDs []string) ([]*model.RuleDefinition, error)

	// ListRules 按 Filter 查询, 结果按 priority 降序
	ListRules(ctx context.Context, filter *model.RuleFilter) ([]*model.RuleDefinition, error)
	ListRulesWithPage(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error)
}

// RedisRuleCacheIface 定义 Redis 缓存操作接口
type RedisRuleCacheIface interface {
	GetRuleFromCache(ctx context.Context, ruleID string) (*model.RuleDefinition, error)
	SetRuleToCache(ctx context.Context, rule *model.RuleDefinition) error
	DeleteRuleFromCache(ctx context.Context, ruleID string) error

	// index: one sorted set per engine, score = priority
	GetIndexCache(ctx context.Context, indexKey string) ([]string, error)
	UpdateIndexCache(ctx context.Context, rule *model.RuleDefinition) error
	RemoveFromIndex(ctx context.Context, rule *model.RuleDefinition) error
}
