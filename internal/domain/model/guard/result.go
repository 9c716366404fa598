package model

import "fmt"

type ValidationError struct {
	Kind        ErrorKind `json:"type"`
	Header      string    `json:"header,omitempty"`
	Message     string    `json:"message"`
	Severity    Severity  `json:"severity"`
	Remediation string    `json:"remediation,omitempty"`
}

// Key identifies the error in the common-errors statistics.
func (e ValidationError) Key() string {
	if e.Header == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s:%s", e.Kind, e.Header)
}

type ValidationWarning struct {
	Kind           WarningKind `json:"type"`
	Header         string      `json:"header,omitempty"`
	Message        string      `json:"message"`
	Recommendation string      `json:"recommendation,omitempty"`
}

// ValidationResult is built fresh per evaluation and not touched after it is returned.
// The CORS engine decides Allowed; the header engine decides Valid and mirrors it into Allowed.
type ValidationResult struct {
	Allowed            bool                `json:"allowed"`
	Valid              bool                `json:"valid"`
	Headers            map[string]string   `json:"headers"`
	StatusCode         int                 `json:"statusCode"`
	Reason             string              `json:"reason,omitempty"`
	MatchedRule        string              `json:"matchedRule,omitempty"`
	Errors             []ValidationError   `json:"errors"`
	Warnings           []ValidationWarning `json:"warnings"`
	SecurityScore      *int                `json:"securityScore,omitempty"`
	SanitizedHeaders   map[string]string   `json:"sanitizedHeaders,omitempty"`
	RecommendedHeaders map[string]string   `json:"recommendedHeaders,omitempty"`
}

func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Headers:  map[string]string{},
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}
}

// BlockingErrors returns only the critical and high errors.
func (r *ValidationResult) BlockingErrors() []ValidationError {
	out := make([]ValidationError, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Severity.Blocking() {
			out = append(out, e)
		}
	}
	return out
}

func (r *ValidationResult) HasBlockingErrors() bool {
	for _, e := range r.Errors {
		if e.Severity.Blocking() {
			return true
		}
	}
	return false
}

// ErrorKeys lists Key() of every error, in order.
func (r *ValidationResult) ErrorKeys() []string {
	keys := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		keys = append(keys, e.Key())
	}
	return keys
}

func (r *ValidationResult) AddError(kind ErrorKind, header, message string, severity Severity, remediation string) {
	r.Errors = append(r.Errors, ValidationError{
		Kind:        kind,
		Header:      header,
		Message:     message,
		Severity:    severity,
		Remediation: remediation,
	})
}

func (r *ValidationResult) AddWarning(kind WarningKind, header, message, recommendation string) {
	r.Warnings = append(r.Warnings, ValidationWarning{
		Kind:           kind,
		Header:         header,
		Message:        message,
		Recommendation: recommendation,
	})
}
