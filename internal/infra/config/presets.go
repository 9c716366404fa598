package configs

import "strings"

// CorsPreset returns the CORS baseline for an environment. Unknown names fall back to DefaultCorsConfig.
func CorsPreset(env string) *CorsConfig {
	cfg := DefaultCorsConfig()
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvDevelopment:
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:8080", "http://127.0.0.1:3000"}
		cfg.EnableDynamicOrigins = true
		cfg.StrictMode = false
		cfg.EnableLogging = true
		cfg.MaxAge = 600
		cfg.Environment = EnvDevelopment
	case EnvProduction:
		// 生产环境必须显式配置 allowedOrigins
		cfg.AllowedOrigins = []string{}
		cfg.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		cfg.AllowWildcardSubdomains = false
		cfg.EnableDynamicOrigins = false
		cfg.StrictMode = true
		cfg.EnableLogging = false
		cfg.Environment = EnvProduction
	case EnvTest:
		cfg.AllowedOrigins = []string{"*"}
		cfg.AllowedHeaders = []string{"*"}
		cfg.AllowCredentials = false
		cfg.EnableLogging = false
		cfg.StrictMode = false
		cfg.MaxAge = 0
		cfg.Environment = EnvTest
	}
	return cfg
}

// HeaderPreset returns the header validation baseline for an environment.
func HeaderPreset(env string) *HeaderValidationConfig {
	cfg := DefaultHeaderValidationConfig()
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvDevelopment:
		cfg.MaxHeaderSize = 16384
		cfg.MaxHeaderCount = 100
		cfg.CheckXSSProtection = false
		cfg.CheckHSTS = false
		cfg.EnableLogging = true
		cfg.Environment = EnvDevelopment
	case EnvProduction:
		cfg.MaxHeaderCount = 40
		cfg.StrictMode = true
		cfg.EnableLogging = false
		cfg.Environment = EnvProduction
	case EnvTest:
		cfg.CheckSizeLimits = false
		cfg.CheckForbiddenHeaders = false
		cfg.CheckRequiredHeaders = false
		cfg.ValidateContentType = false
		cfg.ValidateUserAgent = false
		cfg.ValidateAuthorization = false
		cfg.CheckXSSProtection = false
		cfg.CheckCSRFProtection = false
		cfg.CheckHSTS = false
		cfg.EnableSanitization = false
		cfg.EnableSecurityScoring = false
		cfg.EnableLogging = false
		cfg.Environment = EnvTest
	}
	return cfg
}
