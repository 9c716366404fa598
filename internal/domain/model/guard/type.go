package model

// Severity of a validation error. critical and high block the request.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

func (s Severity) String() string {
	return string(s)
}

// Blocking reports whether an error of this severity rejects the request.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// ErrorKind 错误分类
type ErrorKind string

const (
	ErrorKindForbiddenHeader   ErrorKind = "forbidden_header"
	ErrorKindMissingHeader     ErrorKind = "missing_header"
	ErrorKindInvalidFormat     ErrorKind = "invalid_format"
	ErrorKindSizeLimit         ErrorKind = "size_limit"
	ErrorKindSecurityViolation ErrorKind = "security_violation"
)

// WarningKind 告警分类 (不阻断请求)
type WarningKind string

const (
	WarningKindDeprecatedHeader      WarningKind = "deprecated_header"
	WarningKindInsecureValue         WarningKind = "insecure_value"
	WarningKindMissingSecurityHeader WarningKind = "missing_security_header"
	WarningKindPerformanceIssue      WarningKind = "performance_issue"
)

// RuleStatus represents the current state of a rule definition
type RuleStatus string

const (
	RuleStatusActive   RuleStatus = "active"
	RuleStatusInactive RuleStatus = "inactive"
	RuleStatusDraft    RuleStatus = "draft"
	RuleStatusArchived RuleStatus = "archived"
)

func (s RuleStatus) IsValid() bool {
	switch s {
	case RuleStatusActive, RuleStatusInactive, RuleStatusDraft, RuleStatusArchived:
		return true
	default:
		return false
	}
}

func (s RuleStatus) String() string {
	return string(s)
}

// EngineType names the engine a rule definition is installed into.
type EngineType string

const (
	EngineCors   EngineType = "cors"
	EngineHeader EngineType = "header"
)

func (e EngineType) IsValid() bool {
	return e == EngineCors || e == EngineHeader
}

func (e EngineType) String() string {
	return string(e)
}

// 匹配类型枚举
const (
	MatchMethod   = "method"
	MatchPath     = "path"
	MatchHeader   = "header"
	MatchOrigin   = "origin"
	MatchQuery    = "query"
	MatchBodyJSON = "body_json"
)

// 操作符枚举
const (
	OpEqual    = "eq"
	OpRegex    = "regex"
	OpExists   = "exists"
	OpPrefix   = "prefix"
	OpContains = "contains"
	OpJsonPath = "json_path"
)

const (
	LogicalAnd = "AND"
	LogicalOr  = "OR"
)
