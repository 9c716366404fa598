package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"
	"go_request_guard/utils"

	"github.com/go-redis/redis/v8"
)

const ruleKeyPrefix = "guard_rule:" // Redis Key 前缀

type redisRuleStorageImpl struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisClient pings the server before returning; the returned func closes the client.
func NewRedisClient(c *configs.GuardConfig) (*redis.Client, func(), error) {
	rc := c.RedisConfig
	client := redis.NewClient(&redis.Options{
		Addr:         rc.Addr(),
		Password:     rc.Password,
		DB:           rc.Database,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		PoolTimeout:  rc.PoolTimeout,
		IdleTimeout:  rc.IdleTimeout,
	})

	// 测试连接是否成功
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis %s: %w", rc.Addr(), err)
	}

	utils.GetLogger().WithField("addr", rc.Addr()).Info("connected to redis")
	return client, func() {
		if err := client.Close(); err != nil {
			utils.GetLogger().WithError(err).Warn("close redis client failed")
		}
	}, nil
}

func NewRedisRuleCache(redisClient *redis.Client, c *configs.GuardConfig) RedisRuleCacheIface {
	return &redisRuleStorageImpl{
		redisClient: redisClient,
		ttl:         c.RedisConfig.RuleTTL,
	}
}

var _ RedisRuleCacheIface = (*redisRuleStorageImpl)(nil)

// GetIndexCache returns the rule IDs of an index, highest priority first.
func (r *redisRuleStorageImpl) GetIndexCache(ctx context.Context, indexKey string) ([]string, error) {
	members, err := r.redisClient.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get index members: %w", err)
	}
	return members, nil
}

// UpdateIndexCache keeps the engine index in step with the rule status:
// active rules are (re)scored by priority, anything else is removed.
func (r *redisRuleStorageImpl) UpdateIndexCache(ctx context.Context, rule *model.RuleDefinition) error {
	if !rule.IsActive() {
		return r.RemoveFromIndex(ctx, rule)
	}
	err := r.redisClient.ZAdd(ctx, rule.IndexKey(), &redis.Z{
		Score:  float64(rule.Priority),
		Member: rule.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add rule to index: %w", err)
	}
	return nil
}

// RemoveFromIndex removes a rule from the index
func (r *redisRuleStorageImpl) RemoveFromIndex(ctx context.Context, rule *model.RuleDefinition) error {
	if err := r.redisClient.ZRem(ctx, rule.IndexKey(), rule.ID).Err(); err != nil {
		return fmt.Errorf("failed to remove rule from index: %w", err)
	}
	return nil
}

func (r *redisRuleStorageImpl) SetRuleToCache(ctx context.Context, rule *model.RuleDefinition) error {
	if rule.ID == "" {
		return errors.New("cannot cache a rule without id")
	}
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule to JSON: %w", err)
	}
	if err := r.redisClient.Set(ctx, ruleKeyPrefix+rule.ID, ruleJSON, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set rule to redis: %w", err)
	}
	return nil
}

// DeleteRuleFromCache deletes a rule from Redis cache by its ID
func (r *redisRuleStorageImpl) DeleteRuleFromCache(ctx context.Context, ruleID string) error {
	if err := r.redisClient.Del(ctx, ruleKeyPrefix+ruleID).Err(); err != nil {
		return fmt.Errorf("failed to delete rule from redis: %w", err)
	}
	return nil
}

// GetRuleFromCache returns ErrCacheMiss when the key does not exist.
func (r *redisRuleStorageImpl) GetRuleFromCache(ctx context.Context, ruleID string) (*model.RuleDefinition, error) {
	ruleJSON, err := r.redisClient.Get(ctx, ruleKeyPrefix+ruleID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrCacheMiss)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get rule from redis: %w", err)
	}

	rule := &model.RuleDefinition{}
	if err := json.Unmarshal(ruleJSON, rule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule from JSON: %w", err)
	}
	return rule, nil
}
