package engine

import (
	"strings"
	"testing"

	model "go_request_guard/internal/domain/model/guard"
	configs "go_request_guard/internal/infra/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeaders(t *testing.T, mutate func(*configs.HeaderValidationConfig)) (*HeaderValidator, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := configs.DefaultHeaderValidationConfig()
	if mutate != nil {
		mutate(cfg)
	}
	v, err := NewHeaderValidator(cfg, WithLogger(logger))
	require.NoError(t, err)
	return v, hook
}

// cleanHeaders produce no errors and no warnings on a GET under the default config.
func cleanHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                "Mozilla/5.0",
		"Authorization":             "Bearer " + strings.Repeat("t", 32),
		"X-XSS-Protection":          "1; mode=block",
		"Strict-Transport-Security": "max-age=31536000",
	}
}

func with(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func without(base map[string]string, names ...string) map[string]string {
	out := with(base)
	for _, n := range names {
		delete(out, n)
	}
	return out
}

func findError(res *model.ValidationResult, kind model.ErrorKind, header string) *model.ValidationError {
	for i := range res.Errors {
		if res.Errors[i].Kind == kind && res.Errors[i].Header == header {
			return &res.Errors[i]
		}
	}
	return nil
}

func findWarning(res *model.ValidationResult, kind model.WarningKind, header string) *model.ValidationWarning {
	for i := range res.Warnings {
		if res.Warnings[i].Kind == kind && res.Warnings[i].Header == header {
			return &res.Warnings[i]
		}
	}
	return nil
}

func TestHeaderValidator_CleanRequest(t *testing.T) {
	v, _ := newHeaders(t, nil)

	res := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", cleanHeaders()))
	assert.True(t, res.Valid)
	assert.True(t, res.Allowed)
	assert.Equal(t, 200, res.StatusCode)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.SecurityScore)
	assert.Equal(t, 100, *res.SecurityScore)
	assert.Equal(t, "nosniff", res.RecommendedHeaders["X-Content-Type-Options"])
	assert.Contains(t, res.RecommendedHeaders, "Content-Security-Policy")
	assert.NotContains(t, res.RecommendedHeaders, "Strict-Transport-Security")
}

func TestHeaderValidator_Checks(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*configs.HeaderValidationConfig)
		method    string
		headers   map[string]string
		wantValid bool
		wantErr   *model.ValidationError
		wantWarn  *model.ValidationWarning
	}{
		{
			name:      "forbidden header",
			method:    "GET",
			headers:   with(cleanHeaders(), "X-Powered-By", "PHP/8"),
			wantValid: false,
			wantErr:   &model.ValidationError{Kind: model.ErrorKindForbiddenHeader, Header: "x-powered-by", Severity: model.SeverityHigh},
		},
		{
			name: "forbidden check disabled",
			mutate: func(c *configs.HeaderValidationConfig) {
				c.CheckForbiddenHeaders = false
			},
			method:    "GET",
			headers:   with(cleanHeaders(), "X-Powered-By", "PHP/8"),
			wantValid: true,
		},
		{
			name:      "oversized headers",
			method:    "GET",
			headers:   with(cleanHeaders(), "X-Blob", strings.Repeat("a", 9000)),
			wantValid: false,
			wantErr:   &model.ValidationError{Kind: model.ErrorKindSizeLimit, Severity: model.SeverityHigh},
		},
		{
			name: "too many headers is not blocking",
			mutate: func(c *configs.HeaderValidationConfig) {
				c.MaxHeaderCount = 2
			},
			method:    "GET",
			headers:   cleanHeaders(),
			wantValid: true,
			wantErr:   &model.ValidationError{Kind: model.ErrorKindSizeLimit, Severity: model.SeverityMedium},
		},
		{
			name:      "missing content type on POST",
			method:    "POST",
			headers:   with(cleanHeaders(), "X-CSRF-Token", "tok"),
			wantValid: true,
			wantErr:   &model.ValidationError{Kind: model.ErrorKindMissingHeader, Header: "content-type", Severity: model.SeverityMedium},
		},
		{
			name:      "disallowed content type",
			method:    "PUT",
			headers:   with(cleanHeaders(), "Content-Type", "application/xml", "X-CSRF-Token", "tok"),
			wantValid: true,
			wantErr:   &model.ValidationError{Kind: model.ErrorKindInvalidFormat, Header: "content-type", Severity: model.SeverityMedium},
		},
		{
			name:      "content type parameters are ignored",
			method:    "PATCH",
			headers:   with(cleanHeaders(), "Content-Type", "Application/JSON; charset=utf-8", "X-CSRF-Token", "tok"),
			wantValid: true,
		},
		{
			name:      "missing user agent warns",
			method:    "GET",
			headers:   without(cleanHeaders(), "User-Agent"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindMissingSecurityHeader, Header: "user-agent"},
		},
		{
			name: "missing user agent in strict mode still warns",
			mutate: func(c *configs.HeaderValidationConfig) {
				c.StrictMode = true
			},
			method:    "GET",
			headers:   without(cleanHeaders(), "User-Agent"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindMissingSecurityHeader, Header: "user-agent"},
		},
		{
			name:      "blocked user agent",
			method:    "GET",
			headers:   with(cleanHeaders(), "User-Agent", "sqlmap/1.7"),
			wantValid: false,
			wantErr:   &model.ValidationError{Kind: model.ErrorKindSecurityViolation, Header: "user-agent", Severity: model.SeverityHigh},
		},
		{
			name:      "bot user agent warns",
			method:    "GET",
			headers:   with(cleanHeaders(), "User-Agent", "curl/8.4.0"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindInsecureValue, Header: "user-agent"},
		},
		{
			name:      "no credentials warns",
			method:    "GET",
			headers:   without(cleanHeaders(), "Authorization"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindMissingSecurityHeader, Header: "authorization"},
		},
		{
			name:      "api key counts as credentials",
			method:    "GET",
			headers:   with(without(cleanHeaders(), "Authorization"), "api-key", "snd_0123456789abcdef"),
			wantValid: true,
		},
		{
			name:      "short bearer token",
			method:    "GET",
			headers:   with(cleanHeaders(), "Authorization", "Bearer abc"),
			wantValid: true,
			wantErr:   &model.ValidationError{Kind: model.ErrorKindInvalidFormat, Header: "authorization", Severity: model.SeverityMedium},
		},
		{
			name:      "basic auth warns",
			method:    "GET",
			headers:   with(cleanHeaders(), "Authorization", "Basic dXNlcjpwYXNz"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindInsecureValue, Header: "authorization"},
		},
		{
			name:      "missing xss protection",
			method:    "GET",
			headers:   without(cleanHeaders(), "X-XSS-Protection"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindMissingSecurityHeader, Header: "x-xss-protection"},
		},
		{
			name:      "weak xss protection",
			method:    "GET",
			headers:   with(cleanHeaders(), "X-XSS-Protection", "0"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindInsecureValue, Header: "x-xss-protection"},
		},
		{
			name:      "delete skips content type and csrf checks",
			method:    "DELETE",
			headers:   cleanHeaders(),
			wantValid: true,
		},
		{
			name:      "post without csrf signal warns",
			method:    "POST",
			headers:   with(cleanHeaders(), "Content-Type", "application/json"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindMissingSecurityHeader, Header: "x-csrf-token"},
		},
		{
			name:      "referer satisfies csrf",
			method:    "POST",
			headers:   with(cleanHeaders(), "Content-Type", "application/json", "Referer", "https://app.example.com/"),
			wantValid: true,
		},
		{
			name:      "missing hsts",
			method:    "GET",
			headers:   without(cleanHeaders(), "Strict-Transport-Security"),
			wantValid: true,
			wantWarn:  &model.ValidationWarning{Kind: model.WarningKindMissingSecurityHeader, Header: "strict-transport-security"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newHeaders(t, tt.mutate)
			res := v.Evaluate(model.NewRequestDescriptor(tt.method, "/api/payments", tt.headers))

			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantValid, res.Allowed)
			if tt.wantValid {
				assert.Equal(t, 200, res.StatusCode)
			} else {
				assert.Equal(t, 400, res.StatusCode)
				assert.Equal(t, "Header validation failed", res.Reason)
			}
			if tt.wantErr != nil {
				got := findError(res, tt.wantErr.Kind, tt.wantErr.Header)
				require.NotNil(t, got, "errors: %+v", res.Errors)
				assert.Equal(t, tt.wantErr.Severity, got.Severity)
			} else if tt.wantValid {
				assert.Empty(t, res.Errors)
			}
			if tt.wantWarn != nil {
				assert.NotNil(t, findWarning(res, tt.wantWarn.Kind, tt.wantWarn.Header), "warnings: %+v", res.Warnings)
			}
		})
	}
}

func TestHeaderValidator_RequiredHeadersPerPath(t *testing.T) {
	v, _ := newHeaders(t, func(c *configs.HeaderValidationConfig) {
		c.RequiredHeaders = map[string][]string{
			"/api/payments/*": {"X-Merchant-Id"},
			"/api/*":          {"x-request-id", "x-merchant-id"},
		}
	})

	res := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments/pay_1", cleanHeaders()))
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
	assert.NotNil(t, findError(res, model.ErrorKindMissingHeader, "x-merchant-id"))
	assert.NotNil(t, findError(res, model.ErrorKindMissingHeader, "x-request-id"))

	res = v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments/pay_1",
		with(cleanHeaders(), "X-Merchant-Id", "m_1", "X-Request-Id", "r_1")))
	assert.True(t, res.Valid)

	res = v.Evaluate(model.NewRequestDescriptor("GET", "/health", cleanHeaders()))
	assert.True(t, res.Valid)
}

func TestHeaderValidator_SecurityScore(t *testing.T) {
	v, _ := newHeaders(t, nil)
	base := map[string]string{
		"User-Agent":    "Mozilla/5.0",
		"Authorization": "Bearer " + strings.Repeat("t", 32),
	}
	full := with(base,
		"X-Content-Type-Options", "nosniff",
		"X-Frame-Options", "DENY",
		"X-XSS-Protection", "1; mode=block",
		"Strict-Transport-Security", "max-age=31536000",
		"Content-Security-Policy", "default-src 'self'",
	)

	bare := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", base))
	hardened := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", full))
	require.NotNil(t, bare.SecurityScore)
	require.NotNil(t, hardened.SecurityScore)
	// two warnings: xss protection and hsts
	assert.Equal(t, 96, *bare.SecurityScore)
	assert.Equal(t, 100, *hardened.SecurityScore)
	assert.Less(t, *bare.SecurityScore, *hardened.SecurityScore)

	noScoring := func(cfg *configs.HeaderValidationConfig) { cfg.EnableSecurityScoring = false }
	v, _ = newHeaders(t, noScoring)
	assert.Nil(t, v.Evaluate(model.NewRequestDescriptor("GET", "/", base)).SecurityScore)
}

func TestHeaderValidator_ScoreFloor(t *testing.T) {
	v, _ := newHeaders(t, func(c *configs.HeaderValidationConfig) {
		c.ForbiddenHeaders = []string{"x-a", "x-b", "x-c", "x-d", "x-e", "x-f", "x-g", "x-h"}
	})
	res := v.Evaluate(model.NewRequestDescriptor("GET", "/", with(cleanHeaders(),
		"X-A", "1", "X-B", "1", "X-C", "1", "X-D", "1", "X-E", "1", "X-F", "1", "X-G", "1", "X-H", "1")))
	require.NotNil(t, res.SecurityScore)
	assert.Equal(t, 0, *res.SecurityScore)
}

func TestSanitizeHeaders(t *testing.T) {
	got := SanitizeHeaders(map[string]string{
		"X-Bad<Name>": "va<l>ue\r\n",
		"X-Quote":     ` "it's" `,
		"x-empty":     "<>",
		"!!!":         "value",
		"X-Long":      strings.Repeat("a", 1500),
	})
	assert.Equal(t, "value", got["x-badname"])
	assert.Equal(t, "its", got["x-quote"])
	assert.NotContains(t, got, "x-empty")
	assert.Len(t, got["x-long"], 1000)
	assert.Len(t, got, 3)
}

func TestHeaderValidator_SanitizedAndRecommended(t *testing.T) {
	v, _ := newHeaders(t, nil)

	res := v.Evaluate(model.NewRequestDescriptor("GET", "/health", with(cleanHeaders(), "X-Forwarded-Proto", "https")))
	assert.Equal(t, "https", res.SanitizedHeaders["x-forwarded-proto"])
	assert.Contains(t, res.RecommendedHeaders, "Strict-Transport-Security")
	assert.NotContains(t, res.RecommendedHeaders, "Content-Security-Policy")
	assert.Equal(t, "DENY", res.RecommendedHeaders["X-Frame-Options"])
	assert.Equal(t, "strict-origin-when-cross-origin", res.RecommendedHeaders["Referrer-Policy"])
}

func TestHeaderValidator_TestPreset(t *testing.T) {
	v, _ := newHeaders(t, func(c *configs.HeaderValidationConfig) {
		*c = *configs.HeaderPreset(configs.EnvTest)
	})

	res := v.Evaluate(model.NewRequestDescriptor("POST", "/api/payments", map[string]string{"X-Powered-By": "PHP"}))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Nil(t, res.SecurityScore)
	assert.Nil(t, res.SanitizedHeaders)
}

func TestHeaderValidator_ProductionMissingUserAgent(t *testing.T) {
	v, _ := newHeaders(t, func(c *configs.HeaderValidationConfig) {
		*c = *configs.HeaderPreset(configs.EnvProduction)
	})

	res := v.Evaluate(model.NewRequestDescriptor("GET", "/api/orders", map[string]string{
		"Authorization": "Bearer " + strings.Repeat("t", 32),
	}))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, findWarning(res, model.WarningKindMissingSecurityHeader, "user-agent"), "warnings: %+v", res.Warnings)
	require.NotNil(t, res.SecurityScore)
	assert.Equal(t, 100-2*len(res.Warnings), *res.SecurityScore)
}

func TestHeaderValidator_CustomRules(t *testing.T) {
	v, _ := newHeaders(t, nil)
	onPayments := func(req *model.RequestDescriptor) bool { return strings.HasPrefix(req.Path, "/api/payments") }

	require.NoError(t, v.AddRule(CustomValidationRule{
		Name:     "needs-idempotency",
		Priority: 5,
		Matcher:  onPayments,
		Validate: func(req *model.RequestDescriptor) []model.ValidationError {
			if req.HasHeader("idempotency-key") {
				return nil
			}
			return []model.ValidationError{{Kind: model.ErrorKindMissingHeader, Header: "idempotency-key", Severity: model.SeverityHigh}}
		},
	}))
	require.NoError(t, v.AddRule(CustomValidationRule{
		Name:     "prefers-version",
		Priority: 1,
		Matcher:  onPayments,
		Validate: func(req *model.RequestDescriptor) []model.ValidationError {
			return []model.ValidationError{{Kind: model.ErrorKindMissingHeader, Header: "x-api-version", Severity: model.SeverityLow}}
		},
	}))

	res := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", cleanHeaders()))
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "idempotency-key", res.Errors[0].Header)
	assert.Equal(t, "x-api-version", res.Errors[1].Header)

	assert.True(t, v.RemoveRule("needs-idempotency"))
	res = v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", cleanHeaders()))
	assert.True(t, res.Valid)
	assert.Len(t, res.Errors, 1)

	res = v.Evaluate(model.NewRequestDescriptor("GET", "/health", cleanHeaders()))
	assert.Empty(t, res.Errors)

	assert.Error(t, v.AddRule(CustomValidationRule{Name: "incomplete", Matcher: onPayments}))
	assert.Error(t, v.AddRule(CustomValidationRule{}))
	assert.Len(t, v.Rules(), 1)
}

func TestHeaderValidator_FailsClosed(t *testing.T) {
	v, hook := newHeaders(t, nil)
	require.NoError(t, v.AddRule(CustomValidationRule{
		Name:     "broken",
		Matcher:  func(*model.RequestDescriptor) bool { return true },
		Validate: func(*model.RequestDescriptor) []model.ValidationError { panic("boom") },
	}))

	res := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", cleanHeaders()))
	assert.False(t, res.Valid)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500, res.StatusCode)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.SeverityCritical, res.Errors[0].Severity)
	assert.Equal(t, model.ErrorKindSecurityViolation, res.Errors[0].Kind)

	var errorLogged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorLogged = true
		}
	}
	assert.True(t, errorLogged)

	res = v.ValidateHyperswitchHeaders(nil)
	assert.Equal(t, 500, res.StatusCode)
}

func TestHeaderValidator_UpdateConfig(t *testing.T) {
	v, _ := newHeaders(t, nil)
	req := model.NewRequestDescriptor("GET", "/api/payments", with(cleanHeaders(), "X-Powered-By", "PHP"))
	require.False(t, v.Evaluate(req).Valid)

	off := false
	require.NoError(t, v.UpdateConfig(configs.HeaderValidationPatch{CheckForbiddenHeaders: &off}))
	assert.True(t, v.Evaluate(req).Valid)

	tiny := 10
	assert.Error(t, v.UpdateConfig(configs.HeaderValidationPatch{MaxHeaderSize: &tiny}))
	assert.Equal(t, 8192, v.Config().MaxHeaderSize)

	require.NoError(t, v.ReplaceConfig(configs.DefaultHeaderValidationConfig()))
	assert.False(t, v.Evaluate(req).Valid)
	assert.Error(t, v.ReplaceConfig(nil))
}

func TestHeaderValidator_StatisticsAndLogging(t *testing.T) {
	v, hook := newHeaders(t, nil)

	good := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", cleanHeaders()))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)

	bad := v.Evaluate(model.NewRequestDescriptor("GET", "/api/payments", with(cleanHeaders(), "X-Powered-By", "PHP")))
	entry = hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "headers rejected", entry.Message)
	assert.Equal(t, "headers", entry.Data["engine"])

	stats := v.GetStatistics()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.ValidRequests)
	assert.Equal(t, int64(1), stats.InvalidRequests)
	require.NotEmpty(t, stats.CommonErrors)
	assert.Equal(t, "forbidden_header:x-powered-by", stats.CommonErrors[0].Key)
	assert.InDelta(t, float64(*good.SecurityScore+*bad.SecurityScore)/2, stats.AverageSecurityScore, 0.001)

	v.ResetStatistics()
	assert.Zero(t, v.GetStatistics().TotalRequests)
}

func TestValidateHyperswitchHeaders(t *testing.T) {
	v, _ := newHeaders(t, nil)
	key := "snd_" + strings.Repeat("k", 28)

	t.Run("missing credentials is critical", func(t *testing.T) {
		res := v.ValidateHyperswitchHeaders(model.NewRequestDescriptor("POST", "/payments", map[string]string{
			"Content-Type": "application/json",
		}))
		assert.False(t, res.Valid)
		assert.False(t, res.Allowed)
		assert.Equal(t, 400, res.StatusCode)
		got := findError(res, model.ErrorKindMissingHeader, "api-key")
		require.NotNil(t, got)
		assert.Equal(t, model.SeverityCritical, got.Severity)
		assert.NotNil(t, findWarning(res, model.WarningKindMissingSecurityHeader, "x-merchant-id"))
		assert.NotNil(t, findWarning(res, model.WarningKindMissingSecurityHeader, "x-profile-id"))
	})

	t.Run("authorization is accepted", func(t *testing.T) {
		res := v.ValidateHyperswitchHeaders(model.NewRequestDescriptor("GET", "/payments", map[string]string{
			"Authorization": "Bearer " + strings.Repeat("t", 32),
		}))
		assert.True(t, res.Valid)
	})

	t.Run("short api key is medium", func(t *testing.T) {
		res := v.ValidateHyperswitchHeaders(model.NewRequestDescriptor("GET", "/payments", map[string]string{
			"api-key": "short",
		}))
		assert.True(t, res.Valid)
		got := findError(res, model.ErrorKindInvalidFormat, "api-key")
		require.NotNil(t, got)
		assert.Equal(t, model.SeverityMedium, got.Severity)
	})

	t.Run("content type is only recommended", func(t *testing.T) {
		res := v.ValidateHyperswitchHeaders(model.NewRequestDescriptor("POST", "/payments", map[string]string{
			"api-key":       key,
			"X-Merchant-Id": "m_1",
			"X-Profile-Id":  "p_1",
			"Content-Type":  "text/plain",
		}))
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
		assert.NotNil(t, findWarning(res, model.WarningKindInsecureValue, "content-type"))
	})

	t.Run("recommended headers", func(t *testing.T) {
		res := v.ValidateHyperswitchHeaders(model.NewRequestDescriptor("GET", "/payments", map[string]string{
			"api-key": key,
		}))
		assert.Equal(t, "application/json", res.RecommendedHeaders["Content-Type"])
		assert.Equal(t, "application/json", res.RecommendedHeaders["Accept"])
		_, err := uuid.Parse(res.RecommendedHeaders["X-Request-Id"])
		assert.NoError(t, err)

		res = v.ValidateHyperswitchHeaders(model.NewRequestDescriptor("GET", "/payments", map[string]string{
			"api-key":      key,
			"X-Request-Id": "req_1",
		}))
		assert.NotContains(t, res.RecommendedHeaders, "X-Request-Id")
	})

	t.Run("forbidden headers still apply", func(t *testing.T) {
		res := v.ValidateHyperswitchHeaders(model.NewRequestDescriptor("GET", "/payments", map[string]string{
			"api-key":      key,
			"X-Powered-By": "Express",
		}))
		assert.False(t, res.Valid)
	})
}
