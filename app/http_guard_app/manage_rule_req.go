package http_guard_app

import (
	"encoding/json"
	"fmt"
	"strconv"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"
)

type CreateRuleRequest struct {
	Name     string         `json:"name" validate:"required,min=1,max=100"`
	Engine   string         `json:"engine" validate:"required,oneof=cors header"`
	Priority int            `json:"priority" validate:"min=-10000,max=10000"`
	Status   string         `json:"status" validate:"omitempty,oneof=active inactive draft archived"`
	Match    MatchConfigDTO `json:"match" validate:"required"`
	Effect   EffectDTO      `json:"effect" validate:"required"`
}

type MatchConfigDTO struct {
	Logical    string              `json:"logical" validate:"required,oneof=AND OR"`
	Conditions []MatchConditionDTO `json:"conditions" validate:"required,min=1,dive"`
}

type MatchConditionDTO struct {
	Type     string `json:"type" validate:"required,oneof=method path header origin query body_json"`
	Operator string `json:"operator" validate:"required,oneof=eq regex exists prefix contains json_path"`
	Key      string `json:"key,omitempty"`
	Value    any    `json:"value,omitempty"`
}

type EffectDTO struct {
	Type   string          `json:"type" validate:"required,oneof=cors_override header_requirement"`
	Config json.RawMessage `json:"config" validate:"required"`
}

// Validate checks the DTO tags; the converted rule is validated again by the service.
func (req *CreateRuleRequest) Validate() error {
	if err := configs.Validator().Struct(req); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// ConvertToRuleDefinition converts CreateRuleRequest DTO to a RuleDefinition
func (req *CreateRuleRequest) ConvertToRuleDefinition() (*model.RuleDefinition, error) {
	match := model.MatchConfig{
		Logical:    req.Match.Logical,
		Conditions: make([]model.MatchCondition, len(req.Match.Conditions)),
	}
	for i, c := range req.Match.Conditions {
		match.Conditions[i] = model.MatchCondition{
			Type:     c.Type,
			Operator: c.Operator,
			Key:      c.Key,
			Value:    c.Value,
		}
	}

	raw, err := json.Marshal(req.Effect)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal effect: %w", err)
	}
	var effect model.EffectWrapper
	if err := json.Unmarshal(raw, &effect); err != nil {
		return nil, fmt.Errorf("invalid effect: %w", err)
	}

	return &model.RuleDefinition{
		Name:     req.Name,
		Engine:   model.EngineType(req.Engine),
		Priority: req.Priority,
		Status:   model.RuleStatus(req.Status),
		Match:    match,
		Effect:   effect,
	}, nil
}

// ListRulesQuery holds the raw query parameters of GET /guard/rules.
type ListRulesQuery struct {
	Engine   string `validate:"omitempty,oneof=cors header"`
	Status   string `validate:"omitempty,oneof=active inactive draft archived"`
	Page     string `validate:"omitempty,numeric"`
	PageSize string `validate:"omitempty,numeric"`
}

func (q *ListRulesQuery) ToFilter() (*model.RuleFilter, int, int, error) {
	if err := configs.Validator().Struct(q); err != nil {
		return nil, 0, 0, fmt.Errorf("invalid query: %w", err)
	}
	filter := &model.RuleFilter{}
	if q.Engine != "" {
		engine := model.EngineType(q.Engine)
		filter.Engine = &engine
	}
	if q.Status != "" {
		status := model.RuleStatus(q.Status)
		filter.Status = &status
	}
	page, _ := strconv.Atoi(q.Page)
	pageSize, _ := strconv.Atoi(q.PageSize)
	return filter, page, pageSize, nil
}
