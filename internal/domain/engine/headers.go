package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const (
	xssProtectionValue = "1; mode=block"
	maxSanitizedValue  = 1000
)

// securityHeaders earn the score bonus when present on the request.
var securityHeaders = []string{
	"x-content-type-options",
	"x-frame-options",
	"x-xss-protection",
	"strict-transport-security",
	"content-security-policy",
}

var severityPenalty = map[model.Severity]int{
	model.SeverityCritical: 25,
	model.SeverityHigh:     15,
	model.SeverityMedium:   10,
	model.SeverityLow:      5,
}

// HeaderValidator validates, scores and sanitizes request headers. Safe for concurrent use.
type HeaderValidator struct {
	cfg      atomic.Pointer[configs.HeaderValidationConfig]
	updateMu sync.Mutex

	rules *RuleSet[CustomValidationRule]
	stats *StatisticsCollector
	log   logrus.FieldLogger
}

func NewHeaderValidator(cfg *configs.HeaderValidationConfig, opts ...Option) (*HeaderValidator, error) {
	if cfg == nil {
		cfg = configs.DefaultHeaderValidationConfig()
	}
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	v := &HeaderValidator{
		rules: NewRuleSet[CustomValidationRule](),
		stats: NewStatisticsCollector(o.now),
		log:   o.logger.WithField("engine", "headers"),
	}
	v.cfg.Store(cfg)
	return v, nil
}

// Evaluate runs the full check pipeline. Internal failures become a 500 deny.
func (v *HeaderValidator) Evaluate(req *model.RequestDescriptor) *model.ValidationResult {
	return v.run(req, "header validation", func(cfg *configs.HeaderValidationConfig, res *model.ValidationResult) {
		v.checkSize(cfg, req, res)
		v.checkForbidden(cfg, req, res)
		v.checkRequired(cfg, req, res)
		v.checkContentType(cfg, req, res)
		v.checkUserAgent(cfg, req, res)
		v.checkAuthorization(cfg, req, res)
		v.checkXSSProtection(cfg, req, res)
		v.checkCSRF(cfg, req, res)
		v.checkHSTS(cfg, req, res)
		v.applyCustomRules(req, res)
		res.RecommendedHeaders = recommendedHeaders(cfg, req)
	})
}

func (v *HeaderValidator) run(req *model.RequestDescriptor, op string, pipeline func(*configs.HeaderValidationConfig, *model.ValidationResult)) (result *model.ValidationResult) {
	cfg := v.cfg.Load()

	defer func() {
		if r := recover(); r != nil {
			v.log.WithFields(logrus.Fields{
				"panic": r,
				"path":  safePath(req),
				"op":    op,
			}).Error("header validation failed")
			result = failClosed("Header validation failed")
		}
		v.record(cfg, req, result)
	}()

	if req == nil {
		v.log.WithField("op", op).Error("header validation called without a request")
		return failClosed("Missing request descriptor")
	}

	res := model.NewValidationResult()
	pipeline(cfg, res)
	finish(cfg, req, res)
	return res
}

func (v *HeaderValidator) checkSize(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.CheckSizeLimits {
		return
	}
	size := 0
	names := make(map[string]struct{}, len(req.Headers))
	for k, val := range req.Headers {
		size += len(k) + len(val)
		names[strings.ToLower(k)] = struct{}{}
	}
	if size > cfg.MaxHeaderSize {
		res.AddError(model.ErrorKindSizeLimit, "",
			fmt.Sprintf("Total header size %d bytes exceeds limit of %d bytes", size, cfg.MaxHeaderSize),
			model.SeverityHigh, "Reduce the size or number of request headers")
	}
	if len(names) > cfg.MaxHeaderCount {
		res.AddError(model.ErrorKindSizeLimit, "",
			fmt.Sprintf("Header count %d exceeds limit of %d", len(names), cfg.MaxHeaderCount),
			model.SeverityMedium, "Remove unnecessary request headers")
	}
}

func (v *HeaderValidator) checkForbidden(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.CheckForbiddenHeaders {
		return
	}
	for _, name := range cfg.ForbiddenHeaders {
		if req.HasHeader(name) {
			res.AddError(model.ErrorKindForbiddenHeader, name,
				fmt.Sprintf("Header %s is forbidden", name),
				model.SeverityHigh, fmt.Sprintf("Remove the %s header", name))
		}
	}
}

func (v *HeaderValidator) checkRequired(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.CheckRequiredHeaders {
		return
	}
	seen := map[string]struct{}{}
	for _, pattern := range cfg.RequiredHeaderPaths() {
		if !model.PathMatches(pattern, req.Path) {
			continue
		}
		for _, name := range cfg.RequiredHeaders[pattern] {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if !req.HasHeader(name) {
				res.AddError(model.ErrorKindMissingHeader, name,
					fmt.Sprintf("Required header %s is missing for %s", name, req.Path),
					model.SeverityHigh, fmt.Sprintf("Send the %s header", name))
			}
		}
	}
}

func (v *HeaderValidator) checkContentType(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.ValidateContentType || !req.IsMutating() {
		return
	}
	ct, ok := req.Header("content-type")
	if !ok || strings.TrimSpace(ct) == "" {
		res.AddError(model.ErrorKindMissingHeader, "content-type",
			fmt.Sprintf("Content-Type is required for %s requests", req.GetMethod()),
			model.SeverityMedium, "Send a Content-Type header")
		return
	}
	base := mediaType(ct)
	for _, allowed := range cfg.AllowedContentTypes {
		if base == allowed {
			return
		}
	}
	res.AddError(model.ErrorKindInvalidFormat, "content-type",
		fmt.Sprintf("Content-Type %s is not allowed", base),
		model.SeverityMedium, "Use one of: "+strings.Join(cfg.AllowedContentTypes, ", "))
}

func (v *HeaderValidator) checkUserAgent(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.ValidateUserAgent {
		return
	}
	ua := req.GetUserAgent()
	if strings.TrimSpace(ua) == "" {
		// strict 模式下同样只告警
		res.AddWarning(model.WarningKindMissingSecurityHeader, "user-agent",
			"User-Agent header is missing", "Send a User-Agent header")
		return
	}
	lower := strings.ToLower(ua)
	for _, blocked := range cfg.BlockedUserAgents {
		if strings.Contains(lower, blocked) {
			res.AddError(model.ErrorKindSecurityViolation, "user-agent",
				fmt.Sprintf("User-Agent matches blocked pattern %s", blocked),
				model.SeverityHigh, "")
			return
		}
	}
	for _, bot := range cfg.BotUserAgents {
		if strings.Contains(lower, bot) {
			res.AddWarning(model.WarningKindInsecureValue, "user-agent",
				fmt.Sprintf("User-Agent looks automated (%s)", bot), "")
			return
		}
	}
}

func (v *HeaderValidator) checkAuthorization(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.ValidateAuthorization {
		return
	}
	auth, hasAuth := req.Header("authorization")
	if !hasAuth && !req.HasHeader("api-key") {
		res.AddWarning(model.WarningKindMissingSecurityHeader, "authorization",
			"Neither Authorization nor api-key header is present", "Authenticate with a Bearer token or api-key")
		return
	}
	if !hasAuth {
		return
	}
	scheme, credential, _ := strings.Cut(strings.TrimSpace(auth), " ")
	switch strings.ToLower(scheme) {
	case "bearer":
		if token := strings.TrimSpace(credential); len(token) < cfg.MinBearerTokenLength {
			res.AddError(model.ErrorKindInvalidFormat, "authorization",
				fmt.Sprintf("Bearer token is shorter than %d characters", cfg.MinBearerTokenLength),
				model.SeverityMedium, "Use a full-length access token")
		}
	case "basic":
		res.AddWarning(model.WarningKindInsecureValue, "authorization",
			"Basic authentication is in use", "Use Bearer token authentication instead of Basic")
	}
}

func (v *HeaderValidator) checkXSSProtection(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.CheckXSSProtection {
		return
	}
	val, ok := req.Header("x-xss-protection")
	if !ok {
		res.AddWarning(model.WarningKindMissingSecurityHeader, "x-xss-protection",
			"X-XSS-Protection header is missing", "Set X-XSS-Protection: "+xssProtectionValue)
		return
	}
	if strings.TrimSpace(val) != xssProtectionValue {
		res.AddWarning(model.WarningKindInsecureValue, "x-xss-protection",
			fmt.Sprintf("X-XSS-Protection value %q is not %q", val, xssProtectionValue),
			"Set X-XSS-Protection: "+xssProtectionValue)
	}
}

func (v *HeaderValidator) checkCSRF(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.CheckCSRFProtection || !req.IsMutating() {
		return
	}
	for _, name := range cfg.CSRFHeaderNames {
		if req.HasHeader(name) {
			return
		}
	}
	if req.GetOrigin() != "" || req.GetReferer() != "" {
		return
	}
	res.AddWarning(model.WarningKindMissingSecurityHeader, "x-csrf-token",
		"State-changing request carries no CSRF token, Origin or Referer", "Send a CSRF token header")
}

func (v *HeaderValidator) checkHSTS(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if !cfg.CheckHSTS {
		return
	}
	if !req.HasHeader("strict-transport-security") {
		res.AddWarning(model.WarningKindMissingSecurityHeader, "strict-transport-security",
			"Strict-Transport-Security header is missing", "Enable HSTS")
	}
}

// applyCustomRules appends the errors of every matching rule, highest priority first.
func (v *HeaderValidator) applyCustomRules(req *model.RequestDescriptor, res *model.ValidationResult) {
	for _, rule := range v.rules.Rules() {
		if rule.Matcher == nil || !rule.Matcher(req) {
			continue
		}
		res.Errors = append(res.Errors, rule.Validate(req)...)
	}
}

// finish derives validity, score and sanitized headers from the collected errors.
func finish(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	res.Valid = !res.HasBlockingErrors()
	res.Allowed = res.Valid
	if res.Valid {
		res.StatusCode = http.StatusOK
	} else {
		res.StatusCode = http.StatusBadRequest
		res.Reason = "Header validation failed"
	}
	if cfg.EnableSecurityScoring {
		score := securityScore(req, res)
		res.SecurityScore = &score
	}
	if cfg.EnableSanitization {
		res.SanitizedHeaders = SanitizeHeaders(req.Headers)
	}
}

func securityScore(req *model.RequestDescriptor, res *model.ValidationResult) int {
	score := 100
	for _, e := range res.Errors {
		score -= severityPenalty[e.Severity]
	}
	score -= 2 * len(res.Warnings)
	for _, h := range securityHeaders {
		if req.HasHeader(h) {
			score += 5
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SanitizeHeaders keeps [A-Za-z0-9-] in names (lower-cased) and strips <>"' and line breaks
// from values, truncated to 1000 characters. Entries left empty are dropped.
func SanitizeHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, val := range in {
		name := sanitizeName(k)
		value := sanitizeValue(val)
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

func sanitizeValue(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '\r', '\n':
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxSanitizedValue {
		s = string(runes[:maxSanitizedValue])
	}
	return s
}

func recommendedHeaders(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor) map[string]string {
	rec := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       xssProtectionValue,
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	if proto, ok := req.Header("x-forwarded-proto"); ok && strings.EqualFold(strings.TrimSpace(proto), "https") {
		rec["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains"
	}
	if strings.HasPrefix(req.Path, cfg.APIPathPrefix) {
		rec["Content-Security-Policy"] = "default-src 'none'; frame-ancestors 'none'"
	}
	return rec
}

func mediaType(ct string) string {
	base, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// AddRule appends a custom rule. Every matching rule contributes its errors.
func (v *HeaderValidator) AddRule(rule CustomValidationRule) error {
	if rule.Name == "" {
		return errors.New("validation rule name is required")
	}
	if rule.Matcher == nil || rule.Validate == nil {
		return fmt.Errorf("validation rule %s needs a matcher and a validator", rule.Name)
	}
	v.rules.Add(rule)
	return nil
}

func (v *HeaderValidator) RemoveRule(name string) bool {
	return v.rules.Remove(name)
}

func (v *HeaderValidator) Rules() []CustomValidationRule {
	return v.rules.Rules()
}

func (v *HeaderValidator) UpdateConfig(patch configs.HeaderValidationPatch) error {
	v.updateMu.Lock()
	defer v.updateMu.Unlock()

	next, err := v.cfg.Load().Apply(patch)
	if err != nil {
		return err
	}
	v.cfg.Store(next)
	return nil
}

func (v *HeaderValidator) ReplaceConfig(cfg *configs.HeaderValidationConfig) error {
	if cfg == nil {
		return errors.New("nil header validation config")
	}
	return v.UpdateConfig(configs.DiffHeaders(cfg))
}

func (v *HeaderValidator) Config() *configs.HeaderValidationConfig {
	return v.cfg.Load().Clone()
}

func (v *HeaderValidator) GetStatistics() HeaderStatistics {
	return v.stats.Snapshot().Headers()
}

func (v *HeaderValidator) ResetStatistics() {
	v.stats.Reset()
}

func (v *HeaderValidator) record(cfg *configs.HeaderValidationConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if res == nil {
		return
	}
	obs := Observation{
		Allowed:   res.Valid,
		ErrorKeys: res.ErrorKeys(),
		Score:     res.SecurityScore,
	}
	if req != nil {
		obs.Origin = req.GetOrigin()
		obs.Method = req.GetMethod()
	}
	v.stats.Record(obs)

	if !cfg.EnableLogging {
		return
	}
	entry := v.log.WithFields(logrus.Fields{
		"method":   obs.Method,
		"path":     safePath(req),
		"errors":   len(res.Errors),
		"warnings": len(res.Warnings),
	})
	if res.SecurityScore != nil {
		entry = entry.WithField("score", *res.SecurityScore)
	}
	if res.Valid {
		entry.Debug("headers valid")
	} else {
		entry.WithField("blocking", res.ErrorKeys()).Warn("headers rejected")
	}
}
