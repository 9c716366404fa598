package configs

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// CorsConfig 跨域策略配置
type CorsConfig struct {
	AllowedOrigins          []string `yaml:"allowedOrigins" json:"allowedOrigins" validate:"dive,origin_pattern"`
	BlockedOrigins          []string `yaml:"blockedOrigins" json:"blockedOrigins" validate:"dive,required"`
	AllowedMethods          []string `yaml:"allowedMethods" json:"allowedMethods" validate:"min=1,dive,http_method"`
	AllowedHeaders          []string `yaml:"allowedHeaders" json:"allowedHeaders" validate:"dive,header_name"`
	ExposedHeaders          []string `yaml:"exposedHeaders" json:"exposedHeaders" validate:"dive,header_name"`
	TrustedDomains          []string `yaml:"trustedDomains" json:"trustedDomains" validate:"dive,hostname_rfc1123"`
	AllowCredentials        bool     `yaml:"allowCredentials" json:"allowCredentials"`
	MaxAge                  int      `yaml:"maxAge" json:"maxAge" validate:"min=0,max=86400"` // seconds
	AllowWildcardSubdomains bool     `yaml:"allowWildcardSubdomains" json:"allowWildcardSubdomains"`
	EnableDynamicOrigins    bool     `yaml:"enableDynamicOrigins" json:"enableDynamicOrigins"`
	StrictMode              bool     `yaml:"strictMode" json:"strictMode"`
	EnableLogging           bool     `yaml:"enableLogging" json:"enableLogging"`
	OriginCacheSize         int      `yaml:"originCacheSize" json:"originCacheSize" validate:"min=1,max=1000000"`
	Environment             string   `yaml:"environment" json:"environment" validate:"oneof=development production test"`
}

// HeaderValidationConfig 请求头安全校验配置
type HeaderValidationConfig struct {
	MaxHeaderSize        int                 `yaml:"maxHeaderSize" json:"maxHeaderSize" validate:"min=1024,max=1048576"` // bytes
	MaxHeaderCount       int                 `yaml:"maxHeaderCount" json:"maxHeaderCount" validate:"min=1,max=500"`
	ForbiddenHeaders     []string            `yaml:"forbiddenHeaders" json:"forbiddenHeaders" validate:"dive,header_name"`
	RequiredHeaders      map[string][]string `yaml:"requiredHeaders" json:"requiredHeaders" validate:"dive,keys,startswith=/,endkeys,dive,header_name"`
	AllowedContentTypes  []string            `yaml:"allowedContentTypes" json:"allowedContentTypes" validate:"dive,required,contains=/"`
	BlockedUserAgents    []string            `yaml:"blockedUserAgents" json:"blockedUserAgents" validate:"dive,required"`
	BotUserAgents        []string            `yaml:"botUserAgents" json:"botUserAgents" validate:"dive,required"`
	CSRFHeaderNames      []string            `yaml:"csrfHeaderNames" json:"csrfHeaderNames" validate:"dive,header_name"`
	MinBearerTokenLength int                 `yaml:"minBearerTokenLength" json:"minBearerTokenLength" validate:"min=1,max=512"`
	APIPathPrefix        string              `yaml:"apiPathPrefix" json:"apiPathPrefix" validate:"required,startswith=/"`

	CheckSizeLimits       bool `yaml:"checkSizeLimits" json:"checkSizeLimits"`
	CheckForbiddenHeaders bool `yaml:"checkForbiddenHeaders" json:"checkForbiddenHeaders"`
	CheckRequiredHeaders  bool `yaml:"checkRequiredHeaders" json:"checkRequiredHeaders"`
	ValidateContentType   bool `yaml:"validateContentType" json:"validateContentType"`
	ValidateUserAgent     bool `yaml:"validateUserAgent" json:"validateUserAgent"`
	ValidateAuthorization bool `yaml:"validateAuthorization" json:"validateAuthorization"`
	CheckXSSProtection    bool `yaml:"checkXssProtection" json:"checkXssProtection"`
	CheckCSRFProtection   bool `yaml:"checkCsrfProtection" json:"checkCsrfProtection"`
	CheckHSTS             bool `yaml:"checkHsts" json:"checkHsts"`

	EnableSanitization    bool   `yaml:"enableSanitization" json:"enableSanitization"`
	EnableSecurityScoring bool   `yaml:"enableSecurityScoring" json:"enableSecurityScoring"`
	EnableLogging         bool   `yaml:"enableLogging" json:"enableLogging"`
	StrictMode            bool   `yaml:"strictMode" json:"strictMode"`
	Environment           string `yaml:"environment" json:"environment" validate:"oneof=development production test"`
}

// DefaultCorsConfig returns the baseline every missing field resolves to.
func DefaultCorsConfig() *CorsConfig {
	return &CorsConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		BlockedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin",
			"api-key", "X-Merchant-Id", "X-Profile-Id", "X-CSRF-Token",
		},
		ExposedHeaders:          []string{"X-Request-Id"},
		TrustedDomains:          []string{},
		AllowCredentials:        true,
		MaxAge:                  86400,
		AllowWildcardSubdomains: true,
		EnableDynamicOrigins:    false,
		StrictMode:              true,
		EnableLogging:           true,
		OriginCacheSize:         10000,
		Environment:             EnvDevelopment,
	}
}

// DefaultHeaderValidationConfig returns the baseline every missing field resolves to.
func DefaultHeaderValidationConfig() *HeaderValidationConfig {
	return &HeaderValidationConfig{
		MaxHeaderSize:  8192,
		MaxHeaderCount: 50,
		ForbiddenHeaders: []string{
			"x-powered-by", "x-aspnet-version", "x-original-url", "x-rewrite-url",
		},
		RequiredHeaders: map[string][]string{},
		AllowedContentTypes: []string{
			"application/json", "application/x-www-form-urlencoded", "multipart/form-data", "text/plain",
		},
		BlockedUserAgents:    []string{"sqlmap", "nikto", "nmap", "masscan", "zgrab", "havij", "acunetix"},
		BotUserAgents:        []string{"bot", "crawler", "spider", "scraper", "curl", "wget", "python-requests"},
		CSRFHeaderNames:      []string{"x-csrf-token", "x-xsrf-token"},
		MinBearerTokenLength: 20,
		APIPathPrefix:        "/api/",

		CheckSizeLimits:       true,
		CheckForbiddenHeaders: true,
		CheckRequiredHeaders:  true,
		ValidateContentType:   true,
		ValidateUserAgent:     true,
		ValidateAuthorization: true,
		CheckXSSProtection:    true,
		CheckCSRFProtection:   true,
		CheckHSTS:             true,

		EnableSanitization:    true,
		EnableSecurityScoring: true,
		EnableLogging:         true,
		StrictMode:            false,
		Environment:           EnvDevelopment,
	}
}

// ParseCorsConfig overlays a YAML (or JSON) document on the preset of its environment.
func ParseCorsConfig(data []byte) (*CorsConfig, error) {
	env, err := peekEnvironment(data)
	if err != nil {
		return nil, err
	}
	cfg := CorsPreset(env)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse cors config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseHeaderValidationConfig overlays a YAML (or JSON) document on the preset of its environment.
func ParseHeaderValidationConfig(data []byte) (*HeaderValidationConfig, error) {
	env, err := peekEnvironment(data)
	if err != nil {
		return nil, err
	}
	cfg := HeaderPreset(env)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse header validation config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func peekEnvironment(data []byte) (string, error) {
	var head struct {
		Environment string `yaml:"environment"`
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return EnvDevelopment, nil
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("failed to parse config: %w", err)
	}
	return head.Environment, nil
}

// Validate normalizes the config in place and checks it against the schema.
func (c *CorsConfig) Validate() error {
	c.Normalize()
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid cors config: %w", err)
	}
	return nil
}

// Normalize trims and canonicalizes list entries and fills empty scalars with defaults.
func (c *CorsConfig) Normalize() {
	def := DefaultCorsConfig()

	c.AllowedOrigins = normalizeList(c.AllowedOrigins, normalizeOrigin)
	c.BlockedOrigins = normalizeList(c.BlockedOrigins, normalizeOrigin)
	c.AllowedMethods = normalizeList(c.AllowedMethods, strings.ToUpper)
	c.AllowedHeaders = normalizeList(c.AllowedHeaders, nil)
	c.ExposedHeaders = normalizeList(c.ExposedHeaders, nil)
	c.TrustedDomains = normalizeList(c.TrustedDomains, func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "*.")
		return strings.Trim(s, ".")
	})

	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = def.AllowedMethods
	}
	if c.OriginCacheSize == 0 {
		c.OriginCacheSize = def.OriginCacheSize
	}
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = def.Environment
	}
}

// Validate normalizes the config in place and checks it against the schema.
func (c *HeaderValidationConfig) Validate() error {
	c.Normalize()
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid header validation config: %w", err)
	}
	return nil
}

// Normalize lower-cases header names and user-agent fragments and fills empty scalars with defaults.
func (c *HeaderValidationConfig) Normalize() {
	def := DefaultHeaderValidationConfig()

	c.ForbiddenHeaders = normalizeList(c.ForbiddenHeaders, strings.ToLower)
	c.AllowedContentTypes = normalizeList(c.AllowedContentTypes, strings.ToLower)
	c.BlockedUserAgents = normalizeList(c.BlockedUserAgents, strings.ToLower)
	c.BotUserAgents = normalizeList(c.BotUserAgents, strings.ToLower)
	c.CSRFHeaderNames = normalizeList(c.CSRFHeaderNames, strings.ToLower)

	required := make(map[string][]string, len(c.RequiredHeaders))
	for path, names := range c.RequiredHeaders {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		required[path] = normalizeList(names, strings.ToLower)
	}
	c.RequiredHeaders = required

	if c.MaxHeaderSize == 0 {
		c.MaxHeaderSize = def.MaxHeaderSize
	}
	if c.MaxHeaderCount == 0 {
		c.MaxHeaderCount = def.MaxHeaderCount
	}
	if c.MinBearerTokenLength == 0 {
		c.MinBearerTokenLength = def.MinBearerTokenLength
	}
	if c.APIPathPrefix == "" {
		c.APIPathPrefix = def.APIPathPrefix
	}
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = def.Environment
	}
}

// Clone returns a deep copy.
func (c *CorsConfig) Clone() *CorsConfig {
	out := *c
	out.AllowedOrigins = cloneStrings(c.AllowedOrigins)
	out.BlockedOrigins = cloneStrings(c.BlockedOrigins)
	out.AllowedMethods = cloneStrings(c.AllowedMethods)
	out.AllowedHeaders = cloneStrings(c.AllowedHeaders)
	out.ExposedHeaders = cloneStrings(c.ExposedHeaders)
	out.TrustedDomains = cloneStrings(c.TrustedDomains)
	return &out
}

// Clone returns a deep copy.
func (c *HeaderValidationConfig) Clone() *HeaderValidationConfig {
	out := *c
	out.ForbiddenHeaders = cloneStrings(c.ForbiddenHeaders)
	out.AllowedContentTypes = cloneStrings(c.AllowedContentTypes)
	out.BlockedUserAgents = cloneStrings(c.BlockedUserAgents)
	out.BotUserAgents = cloneStrings(c.BotUserAgents)
	out.CSRFHeaderNames = cloneStrings(c.CSRFHeaderNames)
	out.RequiredHeaders = make(map[string][]string, len(c.RequiredHeaders))
	for k, v := range c.RequiredHeaders {
		out.RequiredHeaders[k] = cloneStrings(v)
	}
	return &out
}

// IsWildcardOnly reports whether the allow-list is exactly "*".
func (c *CorsConfig) IsWildcardOnly() bool {
	return len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*"
}

// RequiredHeaderPaths returns the configured path patterns, longest first.
func (c *HeaderValidationConfig) RequiredHeaderPaths() []string {
	paths := make([]string, 0, len(c.RequiredHeaders))
	for p := range c.RequiredHeaders {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) > len(paths[j])
		}
		return paths[i] < paths[j]
	})
	return paths
}

func normalizeOrigin(s string) string {
	return strings.TrimRight(strings.ToLower(s), "/")
}

// normalizeList trims, applies fn, drops empties and keeps the first occurrence of duplicates.
func normalizeList(in []string, fn func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if fn != nil {
			s = fn(s)
		}
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
