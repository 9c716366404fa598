package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	model "go_request_guard/internal/domain/model/guard"
	"go_request_guard/internal/infra/storage"
)

type fakeMySQL struct {
	mu       sync.Mutex
	rules    map[string]*model.RuleDefinition
	saveErrs []error // consumed one per SaveRuleToDB call
	saves    int
	lists    int
	batches  [][]string
}

func newFakeMySQL(rules ...*model.RuleDefinition) *fakeMySQL {
	f := &fakeMySQL{rules: make(map[string]*model.RuleDefinition)}
	for _, r := range rules {
		f.rules[r.ID] = r
	}
	return f
}

func (f *fakeMySQL) SaveRuleToDB(_ context.Context, rule *model.RuleDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeMySQL) GetRuleFromDB(_ context.Context, ruleID string) (*model.RuleDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, storage.ErrRuleNotFound)
	}
	return r, nil
}

func (f *fakeMySQL) DeleteRuleFromDB(_ context.Context, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, ruleID)
	return nil
}

func (f *fakeMySQL) BatchGetRules(_ context.Context, ruleIDs []string) ([]*model.RuleDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, ruleIDs)
	var out []*model.RuleDefinition
	for _, id := range ruleIDs {
		if r, ok := f.rules[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMySQL) ListRules(_ context.Context, filter *model.RuleFilter) ([]*model.RuleDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []*model.RuleDefinition
	for _, r := range f.rules {
		if matchesFilter(r, filter) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeMySQL) ListRulesWithPage(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error) {
	all, _ := f.ListRules(ctx, filter)
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, int64(len(all)), nil
	}
	return all[start:min(start+pageSize, len(all))], int64(len(all)), nil
}

type fakeRedis struct {
	mu      sync.Mutex
	rules   map[string]*model.RuleDefinition
	indexes map[string]map[string]int
	failSet bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		rules:   make(map[string]*model.RuleDefinition),
		indexes: make(map[string]map[string]int),
	}
}

func (f *fakeRedis) GetRuleFromCache(_ context.Context, ruleID string) (*model.RuleDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return r, nil
}

func (f *fakeRedis) SetRuleToCache(_ context.Context, rule *model.RuleDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("redis down")
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeRedis) DeleteRuleFromCache(_ context.Context, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, ruleID)
	return nil
}

func (f *fakeRedis) GetIndexCache(_ context.Context, indexKey string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.indexes[indexKey]
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return idx[ids[i]] > idx[ids[j]] })
	return ids, nil
}

func (f *fakeRedis) UpdateIndexCache(_ context.Context, rule *model.RuleDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !rule.IsActive() {
		delete(f.indexes[rule.IndexKey()], rule.ID)
		return nil
	}
	if f.indexes[rule.IndexKey()] == nil {
		f.indexes[rule.IndexKey()] = make(map[string]int)
	}
	f.indexes[rule.IndexKey()][rule.ID] = rule.Priority
	return nil
}

func (f *fakeRedis) RemoveFromIndex(_ context.Context, rule *model.RuleDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexes[rule.IndexKey()], rule.ID)
	return nil
}

func (f *fakeRedis) cached(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rules[id]
	return ok
}

func (f *fakeRedis) indexed(engine model.EngineType, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexes[model.BuildIndexKey(engine)][id]
	return ok
}

func rule(id string, engine model.EngineType, priority int, status model.RuleStatus) *model.RuleDefinition {
	r := &model.RuleDefinition{
		ID:       id,
		Name:     "rule " + id,
		Engine:   engine,
		Priority: priority,
		Status:   status,
		Match: model.MatchConfig{Logical: model.LogicalAnd, Conditions: []model.MatchCondition{
			{Type: model.MatchPath, Operator: model.OpPrefix, Value: "/api/"},
		}},
	}
	if engine == model.EngineCors {
		maxAge := 60
		r.Effect = model.EffectWrapper{EType: model.EffectTypeCorsOverride, Config: &model.CorsOverrideEffect{}}
		r.Effect.Config.(*model.CorsOverrideEffect).Patch.MaxAge = &maxAge
	} else {
		r.Effect = model.EffectWrapper{EType: model.EffectTypeHeaderRequirement, Config: &model.HeaderRequirementEffect{RequiredHeaders: []string{"x-profile-id"}}}
	}
	return r
}
