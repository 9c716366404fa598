package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	configs "go_request_guard/internal/infra/config"
)

type EffectType string

const (
	EffectTypeCorsOverride      EffectType = "cors_override"      // 覆盖 CORS 配置
	EffectTypeHeaderRequirement EffectType = "header_requirement" // 追加请求头校验
)

// Effect 接口，定义所有规则效果需要实现的方法
type Effect interface {
	Validate() error
	Engine() EngineType
}

type EffectWrapper struct {
	EType  EffectType `json:"type"`
	Config Effect     `json:"config"`
}

// 实现 GORM 的 Scanner/Valuer 接口
func (w *EffectWrapper) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported effect column type %T", value)
	}
	return w.UnmarshalJSON(data)
}

func (w EffectWrapper) Value() (driver.Value, error) {
	return w.MarshalJSON()
}

func (w EffectWrapper) MarshalJSON() ([]byte, error) {
	type Alias struct {
		Type   EffectType `json:"type"`
		Config any        `json:"config"`
	}
	return json.Marshal(&Alias{
		Type:   w.EType,
		Config: w.Config,
	})
}

func (w *EffectWrapper) UnmarshalJSON(data []byte) error {
	type Alias struct {
		Type   EffectType      `json:"type"`
		Config json.RawMessage `json:"config"`
	}

	var temp Alias
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	effect, err := NewEffect(temp.Type)
	if err != nil {
		return err
	}
	if len(temp.Config) > 0 {
		if err := json.Unmarshal(temp.Config, effect); err != nil {
			return fmt.Errorf("failed to decode %s effect: %w", temp.Type, err)
		}
	}

	w.EType = temp.Type
	w.Config = effect
	return nil
}

func (w *EffectWrapper) Validate() error {
	if w.Config == nil {
		return errors.New("effect config is missing")
	}
	return w.Config.Validate()
}

// CorsOverrideEffect merges Patch over the evaluator's base config for matching requests.
type CorsOverrideEffect struct {
	Patch configs.CorsConfigPatch `json:"patch"`
}

func (e *CorsOverrideEffect) Engine() EngineType { return EngineCors }

func (e *CorsOverrideEffect) Validate() error {
	if e.Patch.IsEmpty() {
		return errors.New("cors override patch is empty")
	}
	if _, err := configs.DefaultCorsConfig().Apply(e.Patch); err != nil {
		return fmt.Errorf("cors override is invalid: %w", err)
	}
	return nil
}

// HeaderRequirementEffect 额外的请求头约束
type HeaderRequirementEffect struct {
	RequiredHeaders  []string          `json:"requiredHeaders,omitempty"`
	ForbiddenHeaders []string          `json:"forbiddenHeaders,omitempty"`
	HeaderPatterns   map[string]string `json:"headerPatterns,omitempty"` // header -> regex
	Severity         Severity          `json:"severity,omitempty"`
	Message          string            `json:"message,omitempty"`
}

func (e *HeaderRequirementEffect) Engine() EngineType { return EngineHeader }

func (e *HeaderRequirementEffect) Validate() error {
	if len(e.RequiredHeaders) == 0 && len(e.ForbiddenHeaders) == 0 && len(e.HeaderPatterns) == 0 {
		return errors.New("header requirement has no constraint")
	}
	if e.Severity != "" && !e.Severity.IsValid() {
		return fmt.Errorf("invalid severity %q", e.Severity)
	}
	v := configs.Validator()
	for _, name := range append(append([]string{}, e.RequiredHeaders...), e.ForbiddenHeaders...) {
		if err := v.Var(name, "required,header_name"); err != nil {
			return fmt.Errorf("invalid header name %q", name)
		}
	}
	for _, name := range e.patternNames() {
		pattern := e.HeaderPatterns[name]
		if err := v.Var(name, "required,header_name"); err != nil {
			return fmt.Errorf("invalid header name %q", name)
		}
		if _, err := compileCached(pattern); err != nil {
			return fmt.Errorf("invalid pattern for %s: %w", name, err)
		}
	}
	return nil
}

// patternNames 按字母序返回, 保证错误顺序稳定
func (e *HeaderRequirementEffect) patternNames() []string {
	names := make([]string, 0, len(e.HeaderPatterns))
	for name := range e.HeaderPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check returns one error per violated constraint.
func (e *HeaderRequirementEffect) Check(req *RequestDescriptor) []ValidationError {
	severity := e.Severity
	if severity == "" {
		severity = SeverityHigh
	}
	var errs []ValidationError
	for _, name := range e.RequiredHeaders {
		if !req.HasHeader(name) {
			errs = append(errs, ValidationError{
				Kind:        ErrorKindMissingHeader,
				Header:      strings.ToLower(name),
				Message:     e.message(fmt.Sprintf("Required header %s is missing", name)),
				Severity:    severity,
				Remediation: fmt.Sprintf("Send the %s header", name),
			})
		}
	}
	for _, name := range e.ForbiddenHeaders {
		if req.HasHeader(name) {
			errs = append(errs, ValidationError{
				Kind:        ErrorKindForbiddenHeader,
				Header:      strings.ToLower(name),
				Message:     e.message(fmt.Sprintf("Header %s is not permitted", name)),
				Severity:    severity,
				Remediation: fmt.Sprintf("Remove the %s header", name),
			})
		}
	}
	for _, name := range e.patternNames() {
		pattern := e.HeaderPatterns[name]
		value, ok := req.Header(name)
		if !ok {
			continue
		}
		if !regexMatch(pattern, value) {
			errs = append(errs, ValidationError{
				Kind:     ErrorKindInvalidFormat,
				Header:   strings.ToLower(name),
				Message:  e.message(fmt.Sprintf("Header %s does not match %s", name, pattern)),
				Severity: severity,
			})
		}
	}
	return errs
}

func (e *HeaderRequirementEffect) message(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	return fallback
}
