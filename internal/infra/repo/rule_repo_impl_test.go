package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"
	"go_request_guard/internal/infra/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, db *fakeMySQL, cache *fakeRedis) RuleRepositoryIface {
	t.Helper()
	cfg := &configs.RuleRepoConfig{
		RedisCacheRetryCount:  2,
		RedisCacheRetryDelay:  time.Millisecond,
		SaveRuleDBRetryCount:  3,
		SaveRuleDBRetryDelay:  time.Millisecond,
		IndexUpdateRetryCount: 2,
		IndexUpdateRetryDelay: time.Millisecond,
		IndexUpdatePoolSize:   2,
	}
	r, cleanup, err := NewRuleRepoImpl(db, cache, cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return r
}

func TestRuleRepo_SaveRule(t *testing.T) {
	db, cache := newFakeMySQL(), newFakeRedis()
	r := newTestRepo(t, db, cache)
	ctx, cancel := context.WithCancel(context.Background())

	rr := rule("r1", model.EngineHeader, 5, model.RuleStatusActive)
	require.NoError(t, r.SaveRule(ctx, rr))
	// async work must survive the request context
	cancel()

	assert.Eventually(t, func() bool {
		return cache.cached("r1") && cache.indexed(model.EngineHeader, "r1")
	}, time.Second, 5*time.Millisecond)
}

func TestRuleRepo_SaveRule_Retry(t *testing.T) {
	db, cache := newFakeMySQL(), newFakeRedis()
	db.saveErrs = []error{errors.New("deadlock"), nil}
	r := newTestRepo(t, db, cache)

	require.NoError(t, r.SaveRule(context.Background(), rule("r1", model.EngineCors, 1, model.RuleStatusActive)))
	assert.Equal(t, 2, db.saves)

	// duplicates are not retried
	db.saveErrs = []error{storage.ErrRuleDuplicate}
	err := r.SaveRule(context.Background(), rule("r2", model.EngineCors, 1, model.RuleStatusActive))
	assert.ErrorIs(t, err, storage.ErrRuleDuplicate)
	assert.Equal(t, 3, db.saves)
}

func TestRuleRepo_FindByID(t *testing.T) {
	db, cache := newFakeMySQL(rule("r1", model.EngineHeader, 1, model.RuleStatusActive)), newFakeRedis()
	r := newTestRepo(t, db, cache)
	ctx := context.Background()

	got, err := r.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.True(t, cache.cached("r1"), "db hit is written back to the cache")

	// cache hit does not need the db
	delete(db.rules, "r1")
	got, err = r.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrRuleNotFound)
}

func TestRuleRepo_FindByID_CacheWriteFailure(t *testing.T) {
	db, cache := newFakeMySQL(rule("r1", model.EngineHeader, 1, model.RuleStatusActive)), newFakeRedis()
	cache.failSet = true
	r := newTestRepo(t, db, cache)

	got, err := r.FindByID(context.Background(), "r1")
	require.NoError(t, err, "cache failures do not fail reads")
	assert.Equal(t, "r1", got.ID)
}

func TestRuleRepo_GetIndexRules_FromDB(t *testing.T) {
	db := newFakeMySQL(
		rule("low", model.EngineCors, 1, model.RuleStatusActive),
		rule("high", model.EngineCors, 9, model.RuleStatusActive),
		rule("off", model.EngineCors, 5, model.RuleStatusInactive),
		rule("hdr", model.EngineHeader, 5, model.RuleStatusActive),
	)
	cache := newFakeRedis()
	r := newTestRepo(t, db, cache)

	rules, err := r.GetIndexRules(context.Background(), model.EngineCors)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].ID)
	assert.Equal(t, "low", rules[1].ID)

	assert.Eventually(t, func() bool {
		return cache.indexed(model.EngineCors, "high") && cache.indexed(model.EngineCors, "low") && cache.cached("high")
	}, time.Second, 5*time.Millisecond)
	assert.False(t, cache.indexed(model.EngineCors, "off"))
}

func TestRuleRepo_GetIndexRules_FromCache(t *testing.T) {
	high := rule("high", model.EngineHeader, 9, model.RuleStatusActive)
	low := rule("low", model.EngineHeader, 1, model.RuleStatusActive)
	db := newFakeMySQL(high, low)
	cache := newFakeRedis()
	ctx := context.Background()
	require.NoError(t, cache.UpdateIndexCache(ctx, high))
	require.NoError(t, cache.UpdateIndexCache(ctx, low))
	require.NoError(t, cache.SetRuleToCache(ctx, high))

	r := newTestRepo(t, db, cache)
	rules, err := r.GetIndexRules(ctx, model.EngineHeader)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].ID)
	assert.Equal(t, "low", rules[1].ID)
	assert.Zero(t, db.lists, "index hit does not list the db")
	assert.Equal(t, [][]string{{"low"}}, db.batches)

	assert.Eventually(t, func() bool { return cache.cached("low") }, time.Second, 5*time.Millisecond)
}

func TestRuleRepo_DeleteRule(t *testing.T) {
	rr := rule("r1", model.EngineHeader, 1, model.RuleStatusActive)
	db, cache := newFakeMySQL(rr), newFakeRedis()
	ctx := context.Background()
	require.NoError(t, cache.SetRuleToCache(ctx, rr))
	require.NoError(t, cache.UpdateIndexCache(ctx, rr))

	r := newTestRepo(t, db, cache)
	require.NoError(t, r.DeleteRule(ctx, "r1"))
	assert.False(t, cache.cached("r1"))
	assert.Eventually(t, func() bool { return !cache.indexed(model.EngineHeader, "r1") }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, r.DeleteRule(ctx, "r1"), storage.ErrRuleNotFound)
}

func TestRuleRepo_ListRulesWithPage(t *testing.T) {
	db := newFakeMySQL(
		rule("a", model.EngineCors, 3, model.RuleStatusActive),
		rule("b", model.EngineCors, 2, model.RuleStatusActive),
		rule("c", model.EngineHeader, 1, model.RuleStatusActive),
	)
	r := newTestRepo(t, db, newFakeRedis())

	rules, total, err := r.ListRulesWithPage(context.Background(), nil, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rules, 2)

	engine := model.EngineHeader
	rules, err = r.ListRules(context.Background(), &model.RuleFilter{Engine: &engine})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "c", rules[0].ID)
}

func TestFilterKey(t *testing.T) {
	engine := model.EngineCors
	status := model.RuleStatusActive
	assert.Equal(t, "all", filterKey(nil))
	assert.Equal(t, "engine:cors_status:active", filterKey(&model.RuleFilter{Engine: &engine, Status: &status}))
}
