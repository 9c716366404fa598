package services

import (
	"context"
	"fmt"
	"sync"

	"go_request_guard/internal/domain/engine"
	"go_request_guard/internal/domain/iface"
	model "go_request_guard/internal/domain/model/guard"
	"go_request_guard/internal/infra/repo"
	"go_request_guard/utils"

	"github.com/sirupsen/logrus"
)

// RuleSyncService installs persisted rule definitions into the engines.
// Engine rules are named by definition ID, so one definition maps to one engine rule.
type RuleSyncService struct {
	ruleRepo repo.RuleRepositoryIface
	cors     iface.CorsRuleTarget
	headers  iface.HeaderRuleTarget
	log      logrus.FieldLogger

	mu        sync.Mutex
	installed map[model.EngineType]map[string]struct{}
}

var _ iface.RuleSyncService = (*RuleSyncService)(nil)

func NewRuleSyncService(ruleRepo repo.RuleRepositoryIface, cors iface.CorsRuleTarget, headers iface.HeaderRuleTarget) *RuleSyncService {
	return &RuleSyncService{
		ruleRepo: ruleRepo,
		cors:     cors,
		headers:  headers,
		log:      utils.GetLogger().WithField("component", "rule_sync"),
		installed: map[model.EngineType]map[string]struct{}{
			model.EngineCors:   {},
			model.EngineHeader: {},
		},
	}
}

// ToCorsRule converts a cors definition into an engine rule.
func ToCorsRule(def *model.RuleDefinition) (engine.CorsRule, error) {
	eff, err := def.CorsOverride()
	if err != nil {
		return engine.CorsRule{}, fmt.Errorf("rule %s: %w", def.ID, err)
	}
	return engine.CorsRule{
		Name:     def.ID,
		Priority: def.Priority,
		Matcher:  def.IsMatch,
		Override: eff.Patch,
	}, nil
}

// ToHeaderRule converts a header definition into an engine rule.
func ToHeaderRule(def *model.RuleDefinition) (engine.CustomValidationRule, error) {
	eff, err := def.HeaderRequirement()
	if err != nil {
		return engine.CustomValidationRule{}, fmt.Errorf("rule %s: %w", def.ID, err)
	}
	return engine.CustomValidationRule{
		Name:     def.ID,
		Priority: def.Priority,
		Matcher:  def.IsMatch,
		Validate: eff.Check,
	}, nil
}

// LoadRules replaces every installed definition with the active ones in the store
// and returns how many were installed. Rules added to the engines directly are left alone.
func (s *RuleSyncService) LoadRules(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, eng := range []model.EngineType{model.EngineCors, model.EngineHeader} {
		defs, err := s.ruleRepo.GetIndexRules(ctx, eng)
		if err != nil {
			return total, fmt.Errorf("failed to load %s rules: %w", eng, err)
		}

		seen := make(map[string]struct{}, len(defs))
		for _, def := range defs {
			if err := s.installLocked(def); err != nil {
				// 单条坏规则不影响其余规则
				s.log.WithError(err).WithField("rule_id", def.ID).Warn("skipping invalid rule")
				continue
			}
			seen[def.ID] = struct{}{}
			total++
		}
		for id := range s.installed[eng] {
			if _, ok := seen[id]; !ok {
				s.removeLocked(eng, id)
			}
		}
	}

	s.log.WithField("rules", total).Info("rules loaded")
	return total, nil
}

// Install puts an active definition into its engine, replacing an earlier version.
// Non-active definitions are only removed.
func (s *RuleSyncService) Install(def *model.RuleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installLocked(def)
}

func (s *RuleSyncService) Uninstall(def *model.RuleDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(def.Engine, def.ID)
}

func (s *RuleSyncService) installLocked(def *model.RuleDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.removeLocked(def.Engine, def.ID)
	if !def.IsActive() {
		return nil
	}

	var err error
	switch def.Engine {
	case model.EngineCors:
		var rule engine.CorsRule
		if rule, err = ToCorsRule(def); err == nil {
			err = s.cors.AddRule(rule)
		}
	case model.EngineHeader:
		var rule engine.CustomValidationRule
		if rule, err = ToHeaderRule(def); err == nil {
			err = s.headers.AddRule(rule)
		}
	default:
		err = fmt.Errorf("unknown engine %q", def.Engine)
	}
	if err != nil {
		return err
	}
	s.installed[def.Engine][def.ID] = struct{}{}
	return nil
}

func (s *RuleSyncService) removeLocked(eng model.EngineType, id string) {
	switch eng {
	case model.EngineCors:
		s.cors.RemoveRule(id)
	case model.EngineHeader:
		s.headers.RemoveRule(id)
	default:
		return
	}
	delete(s.installed[eng], id)
}
