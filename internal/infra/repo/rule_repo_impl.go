package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"
	"go_request_guard/internal/infra/storage"
	"go_request_guard/utils"

	"github.com/avast/retry-go/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ruleRepoImpl 实现了 RuleRepository 接口 (singleflight 并发控制, retry-go, ants pool)
type ruleRepoImpl struct {
	mysqlStorage storage.MySQLRuleStorageIface
	redisCache   storage.RedisRuleCacheIface
	config       *configs.RuleRepoConfig
	taskPool     *ants.Pool
	sfGroup      singleflight.Group
	log          logrus.FieldLogger
}

var _ RuleRepositoryIface = (*ruleRepoImpl)(nil)

// indexUpdateRequest 定义异步索引更新请求的结构体
type indexUpdateRequest struct {
	ctx           context.Context
	rule          *model.RuleDefinition
	operationType indexOperationType
}

type indexOperationType string

const (
	indexOperationTypeUpdate indexOperationType = "update"
	indexOperationTypeRemove indexOperationType = "remove"
)

func NewRuleRepoConfig(c *configs.GuardConfig) *configs.RuleRepoConfig {
	return &c.RuleRepoConfig
}

// NewRuleRepoImpl builds the MySQL + Redis repository. The returned cleanup releases the task pool.
func NewRuleRepoImpl(mysqlStorage storage.MySQLRuleStorageIface, redisCache storage.RedisRuleCacheIface, config *configs.RuleRepoConfig) (RuleRepositoryIface, func(), error) {
	size := config.IndexUpdatePoolSize
	if size <= 0 {
		size = 1
	}
	taskPool, err := ants.NewPool(size)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	repo := &ruleRepoImpl{
		mysqlStorage: mysqlStorage,
		redisCache:   redisCache,
		config:       config,
		taskPool:     taskPool,
		log:          utils.GetLogger().WithField("component", "rule_repo"),
	}
	return repo, taskPool.Release, nil
}

func (r *ruleRepoImpl) cacheRetry(fn retry.RetryableFunc) error {
	return retry.Do(fn,
		retry.Attempts(attempts(r.config.RedisCacheRetryCount)),
		retry.Delay(r.config.RedisCacheRetryDelay),
	)
}

func attempts(n int) uint {
	if n <= 0 {
		return 1
	}
	return uint(n)
}

// submit runs fn on the task pool, detached from the caller's cancellation.
func (r *ruleRepoImpl) submit(ctx context.Context, what string, fn func(ctx context.Context)) {
	bg := context.WithoutCancel(ctx)
	if err := r.taskPool.Submit(func() { fn(bg) }); err != nil {
		r.log.WithError(err).WithField("task", what).Warn("failed to submit async task")
	}
}

// ListRules 按条件列出规则
func (r *ruleRepoImpl) ListRules(ctx context.Context, filter *model.RuleFilter) ([]*model.RuleDefinition, error) {
	data, err, _ := r.sfGroup.Do("list_rules_"+filterKey(filter), func() (interface{}, error) {
		return r.mysqlStorage.ListRules(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rules from db: %w", err)
	}
	return data.([]*model.RuleDefinition), nil
}

type rulePage struct {
	rules []*model.RuleDefinition
	total int64
}

// ListRulesWithPage 列出规则并支持分页
func (r *ruleRepoImpl) ListRulesWithPage(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	key := fmt.Sprintf("list_rules_%s_page:%d_size:%d", filterKey(filter), page, pageSize)
	data, err, _ := r.sfGroup.Do(key, func() (interface{}, error) {
		rules, total, err := r.mysqlStorage.ListRulesWithPage(ctx, filter, page, pageSize)
		if err != nil {
			return nil, err
		}
		return rulePage{rules, total}, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rules from db: %w", err)
	}

	result := data.(rulePage)
	return result.rules, result.total, nil
}

// FindByID 根据ID查询规则, 缓存未命中时回源数据库
func (r *ruleRepoImpl) FindByID(ctx context.Context, id string) (*model.RuleDefinition, error) {
	rule, err := r.redisCache.GetRuleFromCache(ctx, id)
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, storage.ErrCacheMiss) {
		r.log.WithError(err).WithField("rule_id", id).Warn("rule cache read failed")
	}

	// 使用 singleflight 防止缓存击穿
	data, err, _ := r.sfGroup.Do("find_rule_by_id_"+id, func() (interface{}, error) {
		rule, err := r.mysqlStorage.GetRuleFromDB(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := r.cacheRetry(func() error { return r.redisCache.SetRuleToCache(ctx, rule) }); err != nil {
			// 缓存失败不影响读
			r.log.WithError(err).WithField("rule_id", id).Warn("failed to set rule cache")
		}
		return rule, nil
	})
	if err != nil {
		return nil, err
	}
	return data.(*model.RuleDefinition), nil
}

// GetIndexRules 优先从 Redis sorted set 获取规则 ID, 未命中时回源数据库并异步回填
func (r *ruleRepoImpl) GetIndexRules(ctx context.Context, engine model.EngineType) ([]*model.RuleDefinition, error) {
	indexKey := model.BuildIndexKey(engine)
	data, err, _ := r.sfGroup.Do("index_rules_"+indexKey, func() (interface{}, error) {
		ruleIDs, err := r.redisCache.GetIndexCache(ctx, indexKey)
		if err != nil || len(ruleIDs) == 0 {
			r.log.WithField("index", indexKey).Debug("index cache miss, loading from db")
			return r.loadIndexFromDB(ctx, engine)
		}
		return r.loadIndexFromCache(ctx, ruleIDs)
	})
	if err != nil {
		return nil, err
	}
	return data.([]*model.RuleDefinition), nil
}

func (r *ruleRepoImpl) loadIndexFromDB(ctx context.Context, engine model.EngineType) ([]*model.RuleDefinition, error) {
	status := model.RuleStatusActive
	rules, err := r.mysqlStorage.ListRules(ctx, &model.RuleFilter{Engine: &engine, Status: &status})
	if err != nil {
		return nil, fmt.Errorf("failed to get rules from db: %w", err)
	}
	if len(rules) == 0 {
		return rules, nil
	}

	r.submit(ctx, "refill_index", func(ctx context.Context) {
		err := r.cacheRetry(func() error {
			for _, rule := range rules {
				if err := r.redisCache.SetRuleToCache(ctx, rule); err != nil {
					return err
				}
				if err := r.redisCache.UpdateIndexCache(ctx, rule); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			r.log.WithError(err).Warn("failed to refill rule index")
		}
	})
	return rules, nil
}

func (r *ruleRepoImpl) loadIndexFromCache(ctx context.Context, ruleIDs []string) ([]*model.RuleDefinition, error) {
	rules := make([]*model.RuleDefinition, 0, len(ruleIDs))
	var missIDs []string
	for _, id := range ruleIDs {
		rule, err := r.redisCache.GetRuleFromCache(ctx, id)
		if err != nil {
			missIDs = append(missIDs, id)
			continue
		}
		rules = append(rules, rule)
	}

	if len(missIDs) > 0 {
		dbRules, err := r.mysqlStorage.BatchGetRules(ctx, missIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to batch get rules from db: %w", err)
		}
		rules = append(rules, dbRules...)

		r.submit(ctx, "refill_rule_cache", func(ctx context.Context) {
			err := r.cacheRetry(func() error {
				for _, rule := range dbRules {
					if err := r.redisCache.SetRuleToCache(ctx, rule); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				r.log.WithError(err).Warn("failed to refill rule cache")
			}
		})
	}

	// 索引可能滞后于规则状态
	active := rules[:0]
	for _, rule := range rules {
		if rule.IsActive() {
			active = append(active, rule)
		}
	}
	sortByPriority(active)
	return active, nil
}

// SaveRule 保存规则，同时异步更新缓存和索引
func (r *ruleRepoImpl) SaveRule(ctx context.Context, rule *model.RuleDefinition) error {
	_, err, _ := r.sfGroup.Do("save_rule_"+rule.ID, func() (interface{}, error) {
		err := retry.Do(
			func() error { return r.mysqlStorage.SaveRuleToDB(ctx, rule) },
			retry.Attempts(attempts(r.config.SaveRuleDBRetryCount)),
			retry.Delay(r.config.SaveRuleDBRetryDelay),
			// 重复键不重试
			retry.RetryIf(func(err error) bool { return !errors.Is(err, storage.ErrRuleDuplicate) }),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save rule to db: %w", err)
		}

		r.submit(ctx, "save_rule_cache", func(ctx context.Context) {
			if err := r.cacheRetry(func() error { return r.redisCache.SetRuleToCache(ctx, rule) }); err != nil {
				r.log.WithError(err).WithField("rule_id", rule.ID).Warn("async cache update failed")
			}
			r.handleIndexUpdate(&indexUpdateRequest{
				ctx:           ctx,
				rule:          rule,
				operationType: indexOperationTypeUpdate,
			})
		})
		return rule, nil
	})
	return err
}

// DeleteRule 删除规则，同时删除缓存和索引
func (r *ruleRepoImpl) DeleteRule(ctx context.Context, ruleID string) error {
	_, err, _ := r.sfGroup.Do("delete_rule_"+ruleID, func() (interface{}, error) {
		// 获取规则信息（用于更新索引）
		rule, err := r.mysqlStorage.GetRuleFromDB(ctx, ruleID)
		if err != nil {
			return nil, err
		}
		if err := r.mysqlStorage.DeleteRuleFromDB(ctx, ruleID); err != nil {
			return nil, fmt.Errorf("failed to delete rule from db: %w", err)
		}

		r.submit(ctx, "remove_rule_index", func(ctx context.Context) {
			r.handleIndexUpdate(&indexUpdateRequest{
				ctx:           ctx,
				rule:          rule,
				operationType: indexOperationTypeRemove,
			})
		})

		if err := r.cacheRetry(func() error { return r.redisCache.DeleteRuleFromCache(ctx, ruleID) }); err != nil {
			return nil, fmt.Errorf("failed to delete rule cache: %w", err)
		}
		return nil, nil
	})
	return err
}

// handleIndexUpdate 处理索引更新请求
func (r *ruleRepoImpl) handleIndexUpdate(req *indexUpdateRequest) {
	err := retry.Do(
		func() error {
			switch req.operationType {
			case indexOperationTypeUpdate:
				return r.redisCache.UpdateIndexCache(req.ctx, req.rule)
			case indexOperationTypeRemove:
				return r.redisCache.RemoveFromIndex(req.ctx, req.rule)
			default:
				return retry.Unrecoverable(fmt.Errorf("unknown index operation type: %s", req.operationType))
			}
		},
		retry.Attempts(attempts(r.config.IndexUpdateRetryCount)),
		retry.Delay(r.config.IndexUpdateRetryDelay),
	)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"rule_id":   req.rule.ID,
			"operation": req.operationType,
		}).Error("failed to update index")
	}
}

// filterKey generates a singleflight key for a filter
func filterKey(filter *model.RuleFilter) string {
	var parts []string
	if filter != nil {
		if filter.RuleID != nil {
			parts = append(parts, "rid:"+*filter.RuleID)
		}
		if filter.Engine != nil {
			parts = append(parts, "engine:"+filter.Engine.String())
		}
		if filter.Status != nil {
			parts = append(parts, "status:"+filter.Status.String())
		}
		if filter.PathIndex != nil {
			parts = append(parts, "path:"+*filter.PathIndex)
		}
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, "_")
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}

// sortByPriority orders rules the way the engines evaluate them.
func sortByPriority(rules []*model.RuleDefinition) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
}
