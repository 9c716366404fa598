package model

import (
	"errors"
	"fmt"

	configs "go_request_guard/internal/infra/config"

	"gorm.io/gorm"
)

// RuleDefinition 持久化的自定义规则（核心领域对象）
type RuleDefinition struct {
	ID        string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string        `gorm:"type:varchar(100);index" json:"name" validate:"required,max=100"`
	Engine    EngineType    `gorm:"type:varchar(20);index:idx_engine_status" json:"engine" validate:"required,oneof=cors header"`
	Priority  int           `gorm:"default:0" json:"priority" validate:"min=-10000,max=10000"`
	Status    RuleStatus    `gorm:"type:varchar(20);index:idx_engine_status" json:"status" validate:"required,oneof=active inactive draft archived"`
	Match     MatchConfig   `gorm:"type:json" json:"match"`
	Effect    EffectWrapper `gorm:"type:json" json:"effect"`
	PathIndex string        `gorm:"type:varchar(255);index" json:"pathIndex,omitempty"` // 标准化后的首个路径（如 /api/user/*）
	Version   int           `gorm:"default:1" json:"version"`
	CreatedAt int64         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt int64         `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (RuleDefinition) TableName() string {
	return "guard_rule_definitions"
}

// RuleFilter 定义规则查询的过滤器
type RuleFilter struct {
	RuleID    *string     // 规则 ID 精确匹配
	Engine    *EngineType // 所属引擎
	Status    *RuleStatus // 状态精确匹配
	PathIndex *string     // PathIndex 精确匹配
}

// Validate checks struct tags, the match config and the effect, and that the effect fits the engine.
func (r *RuleDefinition) Validate() error {
	if err := configs.Validator().Struct(r); err != nil {
		return err
	}
	if err := r.Match.Validate(); err != nil {
		return fmt.Errorf("invalid match: %w", err)
	}
	if err := r.Effect.Validate(); err != nil {
		return fmt.Errorf("invalid effect: %w", err)
	}
	if r.Effect.Config.Engine() != r.Engine {
		return fmt.Errorf("effect %s cannot be used by the %s engine", r.Effect.EType, r.Engine)
	}
	return nil
}

func (r *RuleDefinition) IsActive() bool {
	return r.Status == RuleStatusActive
}

// IsMatch reports whether an active rule applies to the request.
func (r *RuleDefinition) IsMatch(req *RequestDescriptor) bool {
	if !r.IsActive() {
		return false
	}
	return r.Match.Match(req)
}

func (r *RuleDefinition) IndexKey() string {
	return BuildIndexKey(r.Engine)
}

func (r *RuleDefinition) CorsOverride() (*CorsOverrideEffect, error) {
	eff, ok := r.Effect.Config.(*CorsOverrideEffect)
	if !ok {
		return nil, errors.New("rule effect is not a cors override")
	}
	return eff, nil
}

func (r *RuleDefinition) HeaderRequirement() (*HeaderRequirementEffect, error) {
	eff, ok := r.Effect.Config.(*HeaderRequirementEffect)
	if !ok {
		return nil, errors.New("rule effect is not a header requirement")
	}
	return eff, nil
}

func (r *RuleDefinition) BeforeSave(tx *gorm.DB) (err error) {
	if paths := r.Match.GetPaths(); len(paths) > 0 {
		r.PathIndex = NormalizePath(paths[0])
	}
	return nil
}
