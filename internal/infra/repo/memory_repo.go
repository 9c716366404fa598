package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	model "go_request_guard/internal/domain/model/guard"
	"go_request_guard/internal/infra/storage"
)

// memoryRuleRepo keeps rule definitions in process. Used by ruleStore.driver=memory.
type memoryRuleRepo struct {
	mu    sync.RWMutex
	rules map[string]*model.RuleDefinition
	order []string // insertion order, ties in priority keep it
	now   func() time.Time
}

var _ RuleRepositoryIface = (*memoryRuleRepo)(nil)

func NewMemoryRuleRepo() RuleRepositoryIface {
	return &memoryRuleRepo{
		rules: make(map[string]*model.RuleDefinition),
		now:   time.Now,
	}
}

func (m *memoryRuleRepo) SaveRule(_ context.Context, rule *model.RuleDefinition) error {
	if rule.ID == "" {
		return fmt.Errorf("cannot save a rule without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// 与 gorm 的 BeforeSave / autoCreateTime 行为保持一致
	_ = rule.BeforeSave(nil)
	now := m.now().Unix()
	if prev, ok := m.rules[rule.ID]; ok {
		rule.CreatedAt = prev.CreatedAt
	} else {
		rule.CreatedAt = now
		m.order = append(m.order, rule.ID)
	}
	rule.UpdatedAt = now

	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *memoryRuleRepo) DeleteRule(_ context.Context, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[ruleID]; !ok {
		return fmt.Errorf("rule %s: %w", ruleID, storage.ErrRuleNotFound)
	}
	delete(m.rules, ruleID)
	for i, id := range m.order {
		if id == ruleID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryRuleRepo) FindByID(_ context.Context, ruleID string) (*model.RuleDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, ok := m.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, storage.ErrRuleNotFound)
	}
	cp := *rule
	return &cp, nil
}

func (m *memoryRuleRepo) ListRules(_ context.Context, filter *model.RuleFilter) ([]*model.RuleDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.RuleDefinition, 0, len(m.order))
	for _, id := range m.order {
		rule := m.rules[id]
		if !matchesFilter(rule, filter) {
			continue
		}
		cp := *rule
		out = append(out, &cp)
	}
	sortByPriority(out)
	return out, nil
}

func (m *memoryRuleRepo) ListRulesWithPage(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	all, err := m.ListRules(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*model.RuleDefinition{}, total, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], total, nil
}

func (m *memoryRuleRepo) GetIndexRules(ctx context.Context, engine model.EngineType) ([]*model.RuleDefinition, error) {
	status := model.RuleStatusActive
	return m.ListRules(ctx, &model.RuleFilter{Engine: &engine, Status: &status})
}

func matchesFilter(rule *model.RuleDefinition, filter *model.RuleFilter) bool {
	if filter == nil {
		return true
	}
	if filter.RuleID != nil && rule.ID != *filter.RuleID {
		return false
	}
	if filter.Engine != nil && rule.Engine != *filter.Engine {
		return false
	}
	if filter.Status != nil && rule.Status != *filter.Status {
		return false
	}
	if filter.PathIndex != nil && rule.PathIndex != *filter.PathIndex {
		return false
	}
	return true
}
