package engine

import (
	"fmt"
	"strings"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"

	"github.com/google/uuid"
)

const minAPIKeyLength = 16

// ValidateHyperswitchHeaders applies the payments API rule set: credentials are mandatory,
// merchant context and JSON content are recommended. Size, count, forbidden headers and
// custom rules still follow the config toggles.
func (v *HeaderValidator) ValidateHyperswitchHeaders(req *model.RequestDescriptor) *model.ValidationResult {
	return v.run(req, "hyperswitch validation", func(cfg *configs.HeaderValidationConfig, res *model.ValidationResult) {
		v.checkSize(cfg, req, res)
		v.checkForbidden(cfg, req, res)
		checkPaymentsCredentials(req, res)
		checkMerchantContext(req, res)
		checkPaymentsContentType(req, res)
		v.applyCustomRules(req, res)
		res.RecommendedHeaders = paymentsRecommendedHeaders(req)
	})
}

func checkPaymentsCredentials(req *model.RequestDescriptor, res *model.ValidationResult) {
	key, hasKey := req.Header("api-key")
	if !hasKey && !req.HasHeader("authorization") {
		res.AddError(model.ErrorKindMissingHeader, "api-key",
			"API key or Authorization header is required",
			model.SeverityCritical, "Send the merchant api-key header")
		return
	}
	if hasKey && len(strings.TrimSpace(key)) < minAPIKeyLength {
		res.AddError(model.ErrorKindInvalidFormat, "api-key",
			fmt.Sprintf("API key is shorter than %d characters", minAPIKeyLength),
			model.SeverityMedium, "Use the full api-key issued for the merchant")
	}
}

func checkMerchantContext(req *model.RequestDescriptor, res *model.ValidationResult) {
	if !req.HasHeader("x-merchant-id") {
		res.AddWarning(model.WarningKindMissingSecurityHeader, "x-merchant-id",
			"X-Merchant-Id header is missing", "Send X-Merchant-Id to scope the request")
	}
	if !req.HasHeader("x-profile-id") {
		res.AddWarning(model.WarningKindMissingSecurityHeader, "x-profile-id",
			"X-Profile-Id header is missing", "Send X-Profile-Id to scope the request")
	}
}

func checkPaymentsContentType(req *model.RequestDescriptor, res *model.ValidationResult) {
	if !req.IsMutating() {
		return
	}
	ct, ok := req.Header("content-type")
	if !ok || strings.TrimSpace(ct) == "" {
		res.AddWarning(model.WarningKindMissingSecurityHeader, "content-type",
			"Content-Type header is missing", "Send Content-Type: application/json")
		return
	}
	if mediaType(ct) != "application/json" {
		res.AddWarning(model.WarningKindInsecureValue, "content-type",
			fmt.Sprintf("Content-Type %s is not JSON", mediaType(ct)), "Send Content-Type: application/json")
	}
}

func paymentsRecommendedHeaders(req *model.RequestDescriptor) map[string]string {
	rec := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if !req.HasHeader("x-request-id") {
		rec["X-Request-Id"] = uuid.NewString()
	}
	return rec
}
