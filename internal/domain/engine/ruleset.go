package engine

import (
	"sort"
	"sync"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"
)

// Rule is anything a RuleSet can order.
type Rule interface {
	RuleName() string
	RulePriority() int
}

// CorsRule replaces the base CORS policy for requests its matcher accepts.
type CorsRule struct {
	Name     string
	Priority int
	Matcher  func(req *model.RequestDescriptor) bool
	Override configs.CorsConfigPatch
}

func (r CorsRule) RuleName() string  { return r.Name }
func (r CorsRule) RulePriority() int { return r.Priority }

// CustomValidationRule contributes errors to every header evaluation its matcher accepts.
type CustomValidationRule struct {
	Name     string
	Priority int
	Matcher  func(req *model.RequestDescriptor) bool
	Validate func(req *model.RequestDescriptor) []model.ValidationError
}

func (r CustomValidationRule) RuleName() string  { return r.Name }
func (r CustomValidationRule) RulePriority() int { return r.Priority }

// RuleSet keeps rules ordered by descending priority, ties in insertion order.
// Names are not unique.
type RuleSet[R Rule] struct {
	mu    sync.RWMutex
	rules []R
}

func NewRuleSet[R Rule]() *RuleSet[R] {
	return &RuleSet[R]{}
}

func (s *RuleSet[R]) Add(rule R) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = append(s.rules, rule)
	sort.SliceStable(s.rules, func(i, j int) bool {
		return s.rules[i].RulePriority() > s.rules[j].RulePriority()
	})
}

// Remove drops the first rule, in evaluation order, with the given name.
func (s *RuleSet[R]) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.RuleName() == name {
			s.rules = append(s.rules[:i:i], s.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a snapshot in evaluation order.
func (s *RuleSet[R]) Rules() []R {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]R, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *RuleSet[R]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}
