package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const (
	HeaderAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderMaxAge           = "Access-Control-Max-Age"
	HeaderExposeHeaders    = "Access-Control-Expose-Headers"
	HeaderVary             = "Vary"

	requestHeadersHeader = "access-control-request-headers"

	varyValue = "Origin, Access-Control-Request-Method, Access-Control-Request-Headers"
)

// CorsEvaluator decides cross-origin requests. Safe for concurrent use.
type CorsEvaluator struct {
	cfg      atomic.Pointer[configs.CorsConfig]
	updateMu sync.Mutex

	rules *RuleSet[CorsRule]
	cache *OriginCache
	stats *StatisticsCollector
	log   logrus.FieldLogger
}

// NewCorsEvaluator validates cfg (nil means DefaultCorsConfig) and owns a private copy of it.
func NewCorsEvaluator(cfg *configs.CorsConfig, opts ...Option) (*CorsEvaluator, error) {
	if cfg == nil {
		cfg = configs.DefaultCorsConfig()
	}
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	e := &CorsEvaluator{
		rules: NewRuleSet[CorsRule](),
		cache: NewOriginCache(cfg.OriginCacheSize, o.now),
		stats: NewStatisticsCollector(o.now),
		log:   o.logger.WithField("engine", "cors"),
	}
	e.cfg.Store(cfg)
	return e, nil
}

// Evaluate never returns nil. Internal failures become a 500 deny.
func (e *CorsEvaluator) Evaluate(req *model.RequestDescriptor) (result *model.ValidationResult) {
	cfg := e.cfg.Load()

	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"panic": r,
				"path":  safePath(req),
			}).Error("cors evaluation failed")
			result = failClosed("CORS evaluation failed")
		}
		e.record(cfg, req, result)
	}()

	if req == nil {
		e.log.Error("cors evaluation called without a request")
		return failClosed("Missing request descriptor")
	}

	for _, rule := range e.rules.Rules() {
		if rule.Matcher == nil || !rule.Matcher(req) {
			continue
		}
		merged, err := cfg.Apply(rule.Override)
		if err != nil {
			e.log.WithError(err).WithField("rule", rule.Name).Error("cors rule override no longer applies")
			res := failClosed(fmt.Sprintf("CORS rule %s is invalid", rule.Name))
			res.MatchedRule = rule.Name
			return res
		}
		res := evaluateCors(merged, req, nil)
		res.MatchedRule = rule.Name
		return res
	}
	return evaluateCors(cfg, req, e.cache)
}

// IsOriginAllowed runs the origin decision chain (with cache) for the base config only.
func (e *CorsEvaluator) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	allowed, _ := decideOriginCached(e.cfg.Load(), origin, e.cache)
	return allowed
}

// AddRule rejects rules whose override does not validate against the current config.
func (e *CorsEvaluator) AddRule(rule CorsRule) error {
	if rule.Name == "" {
		return errors.New("cors rule name is required")
	}
	if rule.Matcher == nil {
		return fmt.Errorf("cors rule %s has no matcher", rule.Name)
	}
	if _, err := e.cfg.Load().Apply(rule.Override); err != nil {
		return fmt.Errorf("cors rule %s: %w", rule.Name, err)
	}
	e.rules.Add(rule)
	return nil
}

func (e *CorsEvaluator) RemoveRule(name string) bool {
	return e.rules.Remove(name)
}

func (e *CorsEvaluator) Rules() []CorsRule {
	return e.rules.Rules()
}

// UpdateConfig merges patch over the current config. The origin cache is cleared when
// the patch can change an origin verdict.
func (e *CorsEvaluator) UpdateConfig(patch configs.CorsConfigPatch) error {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	next, err := e.cfg.Load().Apply(patch)
	if err != nil {
		return err
	}
	e.cfg.Store(next)
	if patch.OriginCacheSize != nil {
		e.cache.Resize(next.OriginCacheSize)
	}
	if patch.TouchesOriginDecisions() {
		e.cache.Clear()
	}
	return nil
}

// ReplaceConfig swaps the whole config, e.g. after a file reload.
func (e *CorsEvaluator) ReplaceConfig(cfg *configs.CorsConfig) error {
	if cfg == nil {
		return errors.New("nil cors config")
	}
	return e.UpdateConfig(configs.DiffCors(cfg))
}

func (e *CorsEvaluator) Config() *configs.CorsConfig {
	return e.cfg.Load().Clone()
}

func (e *CorsEvaluator) ClearCache() {
	e.cache.Clear()
}

func (e *CorsEvaluator) CacheSize() int {
	return e.cache.Len()
}

func (e *CorsEvaluator) GetStatistics() CorsStatistics {
	return e.stats.Snapshot().Cors()
}

func (e *CorsEvaluator) ResetStatistics() {
	e.stats.Reset()
}

func (e *CorsEvaluator) record(cfg *configs.CorsConfig, req *model.RequestDescriptor, res *model.ValidationResult) {
	if res == nil {
		return
	}
	obs := Observation{Allowed: res.Allowed}
	if req != nil {
		obs.Origin = req.GetOrigin()
		obs.Method = req.GetMethod()
	}
	e.stats.Record(obs)

	if !cfg.EnableLogging {
		return
	}
	entry := e.log.WithFields(logrus.Fields{
		"origin": obs.Origin,
		"method": obs.Method,
		"path":   safePath(req),
		"status": res.StatusCode,
		"reason": res.Reason,
	})
	if res.MatchedRule != "" {
		entry = entry.WithField("rule", res.MatchedRule)
	}
	if res.Allowed {
		entry.Debug("cors request allowed")
	} else {
		entry.Warn("cors request blocked")
	}
}

// evaluateCors is the whole CORS algorithm over one config. cache may be nil.
func evaluateCors(cfg *configs.CorsConfig, req *model.RequestDescriptor, cache *OriginCache) *model.ValidationResult {
	res := model.NewValidationResult()
	preflight := req.IsPreflight()
	origin := req.GetOrigin()

	if origin == "" {
		res.Allowed, res.Valid = true, true
		res.Reason = ReasonNoOrigin
		res.StatusCode = successStatus(preflight)
		return res
	}

	allowed, reason := decideOriginCached(cfg, origin, cache)
	if !allowed {
		return deny(res, http.StatusForbidden, reason)
	}

	if !preflight && !containsOrWildcard(cfg.AllowedMethods, req.GetMethod(), false) {
		return deny(res, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", req.GetMethod()))
	}

	requested := requestedHeaders(req)
	if preflight {
		for _, h := range requested {
			if !containsOrWildcard(cfg.AllowedHeaders, h, true) {
				return deny(res, http.StatusBadRequest, fmt.Sprintf("Header %s not allowed", h))
			}
		}
	}

	res.Allowed, res.Valid = true, true
	res.Reason = reason
	res.StatusCode = successStatus(preflight)

	if cfg.IsWildcardOnly() {
		res.Headers[HeaderAllowOrigin] = "*"
	} else {
		res.Headers[HeaderAllowOrigin] = origin
		if cfg.AllowCredentials {
			res.Headers[HeaderAllowCredentials] = "true"
		}
	}
	if preflight {
		res.Headers[HeaderAllowMethods] = strings.Join(cfg.AllowedMethods, ", ")
		res.Headers[HeaderAllowHeaders] = allowHeadersValue(cfg.AllowedHeaders, requested)
		res.Headers[HeaderMaxAge] = strconv.Itoa(cfg.MaxAge)
	}
	if len(cfg.ExposedHeaders) > 0 {
		res.Headers[HeaderExposeHeaders] = strings.Join(cfg.ExposedHeaders, ", ")
	}
	res.Headers[HeaderVary] = varyValue
	return res
}

func decideOriginCached(cfg *configs.CorsConfig, origin string, cache *OriginCache) (bool, string) {
	if cache != nil {
		if entry, ok := cache.Get(origin); ok {
			return entry.Allowed, entry.Reason
		}
	}
	allowed, reason := decideOrigin(cfg, origin)
	if cache != nil {
		cache.Set(origin, allowed, reason, time.Duration(cfg.MaxAge)*time.Second)
	}
	return allowed, reason
}

func deny(res *model.ValidationResult, status int, reason string) *model.ValidationResult {
	res.Allowed, res.Valid = false, false
	res.StatusCode = status
	res.Reason = reason
	return res
}

func successStatus(preflight bool) int {
	if preflight {
		return http.StatusNoContent
	}
	return http.StatusOK
}

func requestedHeaders(req *model.RequestDescriptor) []string {
	raw, ok := req.Header(requestHeadersHeader)
	if !ok {
		return nil
	}
	var out []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func allowHeadersValue(allowed, requested []string) string {
	for _, h := range allowed {
		if h == "*" {
			if len(requested) == 0 {
				return "*"
			}
			return strings.Join(requested, ", ")
		}
	}
	return strings.Join(allowed, ", ")
}

func containsOrWildcard(list []string, v string, foldCase bool) bool {
	for _, item := range list {
		if item == "*" || item == v || (foldCase && strings.EqualFold(item, v)) {
			return true
		}
	}
	return false
}

// failClosed is the single result shape for internal failures of either engine.
func failClosed(message string) *model.ValidationResult {
	res := model.NewValidationResult()
	res.StatusCode = http.StatusInternalServerError
	res.Reason = "Internal policy error"
	res.AddError(model.ErrorKindSecurityViolation, "", message, model.SeverityCritical,
		"Inspect the guard logs; the request was rejected")
	return res
}

func safePath(req *model.RequestDescriptor) string {
	if req == nil {
		return ""
	}
	return req.Path
}
