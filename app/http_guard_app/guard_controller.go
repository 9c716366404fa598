package http_guard_app

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"go_request_guard/internal/domain/engine"
	"go_request_guard/internal/domain/iface"
	model "go_request_guard/internal/domain/model/guard"
	"go_request_guard/internal/domain/services"
	"go_request_guard/internal/infra/storage"
	"go_request_guard/utils"

	"github.com/go-chassis/go-chassis/v2/pkg/metrics"
	rf "github.com/go-chassis/go-chassis/v2/server/restful"
	"github.com/sirupsen/logrus"
)

const adminRequestCounter = "guard_admin_request_total"

// CorsAdmin and HeaderAdmin are the engine operations exposed on the admin API.
type CorsAdmin interface {
	CorsEngine
	GetStatistics() engine.CorsStatistics
	ResetStatistics()
	ClearCache()
	CacheSize() int
}

type HeaderAdmin interface {
	HeaderEngine
	GetStatistics() engine.HeaderStatistics
	ResetStatistics()
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type RuleListResponse struct {
	Rules []*model.RuleDefinition `json:"rules"`
	Total int64                   `json:"total"`
}

// EvaluateResponse carries both verdicts for one descriptor.
type EvaluateResponse struct {
	Cors    *model.ValidationResult `json:"cors"`
	Headers *model.ValidationResult `json:"headers"`
}

type GuardController struct {
	Cors        CorsAdmin
	Headers     HeaderAdmin
	RuleService iface.RuleService
	log         logrus.FieldLogger
}

func NewGuardController(cors CorsAdmin, headers HeaderAdmin, ruleService iface.RuleService) *GuardController {
	return &GuardController{
		Cors:        cors,
		Headers:     headers,
		RuleService: ruleService,
		log:         utils.GetLogger().WithField("component", "guard_admin"),
	}
}

// RegisterMetrics creates the admin request counter. Call it after chassis.Init.
func RegisterMetrics() error {
	return metrics.CreateCounter(metrics.CounterOpts{
		Name:   adminRequestCounter,
		Help:   "admin API requests by method and endpoint",
		Labels: []string{"method", "endpoint"},
	})
}

// handle wraps every admin route with request metrics and panic recovery.
func (c *GuardController) handle(fn func(b *rf.Context) (int, any)) func(b *rf.Context) {
	return func(b *rf.Context) {
		req := b.ReadRequest()
		if err := metrics.CounterAdd(adminRequestCounter, 1, map[string]string{
			"method":   req.Method,
			"endpoint": req.URL.Path,
		}); err != nil {
			c.log.WithError(err).Debug("admin metrics unavailable")
		}

		defer func() {
			if err := recover(); err != nil {
				c.log.WithFields(logrus.Fields{
					"panic": err,
					"stack": string(debug.Stack()),
				}).Error("handle request panic")
				b.WriteHeaderAndJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}, "application/json")
			}
		}()

		status, body := fn(b)
		if body == nil {
			b.WriteHeader(status)
			return
		}
		if err := b.WriteHeaderAndJSON(status, body, "application/json"); err != nil {
			c.log.WithError(err).Error("write response failed")
		}
	}
}

func (c *GuardController) GetCorsStats(*rf.Context) (int, any) {
	return http.StatusOK, c.Cors.GetStatistics()
}

func (c *GuardController) GetHeaderStats(*rf.Context) (int, any) {
	return http.StatusOK, c.Headers.GetStatistics()
}

func (c *GuardController) ResetStats(*rf.Context) (int, any) {
	c.Cors.ResetStatistics()
	c.Headers.ResetStatistics()
	c.log.Info("statistics reset")
	return http.StatusNoContent, nil
}

func (c *GuardController) ClearOriginCache(*rf.Context) (int, any) {
	n := c.Cors.CacheSize()
	c.Cors.ClearCache()
	c.log.WithField("entries", n).Info("origin cache cleared")
	return http.StatusNoContent, nil
}

func (c *GuardController) CreateRule(b *rf.Context) (int, any) {
	var req CreateRuleRequest
	if err := b.ReadEntity(&req); err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	return c.createRule(b.Ctx, &req)
}

func (c *GuardController) createRule(ctx context.Context, req *CreateRuleRequest) (int, any) {
	if err := req.Validate(); err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	def, err := req.ConvertToRuleDefinition()
	if err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	created, err := c.RuleService.CreateRule(ctx, def)
	if err != nil {
		return c.errorStatus(err)
	}
	c.log.WithFields(logrus.Fields{"rule_id": created.ID, "engine": created.Engine}).Info("rule created")
	return http.StatusCreated, created
}

func (c *GuardController) GetRule(b *rf.Context) (int, any) {
	def, err := c.RuleService.GetRule(b.Ctx, b.ReadPathParameter("id"))
	if err != nil {
		return c.errorStatus(err)
	}
	return http.StatusOK, def
}

func (c *GuardController) DeleteRule(b *rf.Context) (int, any) {
	return c.deleteRule(b.Ctx, b.ReadPathParameter("id"))
}

func (c *GuardController) deleteRule(ctx context.Context, id string) (int, any) {
	if err := c.RuleService.DeleteRule(ctx, id); err != nil {
		return c.errorStatus(err)
	}
	c.log.WithField("rule_id", id).Info("rule deleted")
	return http.StatusNoContent, nil
}

func (c *GuardController) ListRules(b *rf.Context) (int, any) {
	return c.listRules(b.Ctx, ListRulesQuery{
		Engine:   b.ReadQueryParameter("engine"),
		Status:   b.ReadQueryParameter("status"),
		Page:     b.ReadQueryParameter("page"),
		PageSize: b.ReadQueryParameter("pageSize"),
	})
}

func (c *GuardController) listRules(ctx context.Context, q ListRulesQuery) (int, any) {
	filter, page, pageSize, err := q.ToFilter()
	if err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	rules, total, err := c.RuleService.ListRules(ctx, filter, page, pageSize)
	if err != nil {
		return c.errorStatus(err)
	}
	return http.StatusOK, RuleListResponse{Rules: rules, Total: total}
}

// Evaluate runs both engines on a descriptor without forwarding anything.
func (c *GuardController) Evaluate(b *rf.Context) (int, any) {
	var desc model.RequestDescriptor
	if err := b.ReadEntity(&desc); err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	return http.StatusOK, c.evaluate(&desc)
}

func (c *GuardController) evaluate(desc *model.RequestDescriptor) EvaluateResponse {
	d := model.NewRequestDescriptor(desc.Method, desc.Path, desc.Headers)
	d.IP, d.Query, d.Body = desc.IP, desc.Query, desc.Body
	return EvaluateResponse{Cors: c.Cors.Evaluate(d), Headers: c.Headers.Evaluate(d)}
}

func (c *GuardController) errorStatus(err error) (int, any) {
	switch {
	case errors.Is(err, storage.ErrRuleNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.Is(err, services.ErrInvalidRule), errors.Is(err, storage.ErrRuleDuplicate):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	default:
		c.log.WithError(err).Error("rule operation failed")
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	}
}

func (c *GuardController) URLPatterns() []rf.Route {
	return []rf.Route{
		{Method: http.MethodGet, Path: "/guard/stats/cors", ResourceFunc: c.handle(c.GetCorsStats),
			Returns: []*rf.Returns{{Code: 200}}},
		{Method: http.MethodGet, Path: "/guard/stats/headers", ResourceFunc: c.handle(c.GetHeaderStats),
			Returns: []*rf.Returns{{Code: 200}}},
		{Method: http.MethodDelete, Path: "/guard/stats", ResourceFunc: c.handle(c.ResetStats),
			Returns: []*rf.Returns{{Code: 204}}},
		{Method: http.MethodDelete, Path: "/guard/cache/origins", ResourceFunc: c.handle(c.ClearOriginCache),
			Returns: []*rf.Returns{{Code: 204}}},
		{Method: http.MethodGet, Path: "/guard/rules", ResourceFunc: c.handle(c.ListRules),
			Returns: []*rf.Returns{{Code: 200}}},
		{Method: http.MethodPost, Path: "/guard/rules", ResourceFunc: c.handle(c.CreateRule),
			Returns: []*rf.Returns{{Code: 201}, {Code: 400}}},
		{Method: http.MethodGet, Path: "/guard/rules/{id}", ResourceFunc: c.handle(c.GetRule),
			Returns: []*rf.Returns{{Code: 200}, {Code: 404}}},
		{Method: http.MethodDelete, Path: "/guard/rules/{id}", ResourceFunc: c.handle(c.DeleteRule),
			Returns: []*rf.Returns{{Code: 204}, {Code: 404}}},
		{Method: http.MethodPost, Path: "/guard/evaluate", ResourceFunc: c.handle(c.Evaluate),
			Returns: []*rf.Returns{{Code: 200}}},
	}
}
