package services

import (
	"context"
	"errors"
	"fmt"

	"go_request_guard/internal/domain/iface"
	model "go_request_guard/internal/domain/model/guard"
	"go_request_guard/internal/infra/repo"

	"github.com/google/uuid"
)

// ErrInvalidRule wraps every validation failure of CreateRule.
var ErrInvalidRule = errors.New("invalid rule")

type RuleManageService struct {
	ruleRepo repo.RuleRepositoryIface
	sync     iface.RuleSyncService
}

var _ iface.RuleService = (*RuleManageService)(nil)

func NewRuleManageService(ruleRepo repo.RuleRepositoryIface, sync iface.RuleSyncService) *RuleManageService {
	return &RuleManageService{
		ruleRepo: ruleRepo,
		sync:     sync,
	}
}

// CreateRule 创建规则
func (s *RuleManageService) CreateRule(ctx context.Context, def *model.RuleDefinition) (*model.RuleDefinition, error) {
	if def.Status == "" {
		def.Status = model.RuleStatusActive
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	def.ID = uuid.NewString()
	def.Version = 1

	if err := s.ruleRepo.SaveRule(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to save rule to repository: %w", err)
	}
	if err := s.sync.Install(def); err != nil {
		return nil, fmt.Errorf("rule %s saved but not installed: %w", def.ID, err)
	}
	return def, nil
}

func (s *RuleManageService) GetRule(ctx context.Context, id string) (*model.RuleDefinition, error) {
	return s.ruleRepo.FindByID(ctx, id)
}

// DeleteRule 删除规则并从引擎中卸载
func (s *RuleManageService) DeleteRule(ctx context.Context, id string) error {
	def, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ruleRepo.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	s.sync.Uninstall(def)
	return nil
}

func (s *RuleManageService) ListRules(ctx context.Context, filter *model.RuleFilter, page, pageSize int) ([]*model.RuleDefinition, int64, error) {
	return s.ruleRepo.ListRulesWithPage(ctx, filter, page, pageSize)
}
