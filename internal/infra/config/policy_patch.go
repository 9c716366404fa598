package configs

// CorsConfigPatch is a partial CorsConfig. Nil fields keep the base value.
type CorsConfigPatch struct {
	AllowedOrigins          *[]string `yaml:"allowedOrigins,omitempty" json:"allowedOrigins,omitempty"`
	BlockedOrigins          *[]string `yaml:"blockedOrigins,omitempty" json:"blockedOrigins,omitempty"`
	AllowedMethods          *[]string `yaml:"allowedMethods,omitempty" json:"allowedMethods,omitempty"`
	AllowedHeaders          *[]string `yaml:"allowedHeaders,omitempty" json:"allowedHeaders,omitempty"`
	ExposedHeaders          *[]string `yaml:"exposedHeaders,omitempty" json:"exposedHeaders,omitempty"`
	TrustedDomains          *[]string `yaml:"trustedDomains,omitempty" json:"trustedDomains,omitempty"`
	AllowCredentials        *bool     `yaml:"allowCredentials,omitempty" json:"allowCredentials,omitempty"`
	MaxAge                  *int      `yaml:"maxAge,omitempty" json:"maxAge,omitempty"`
	AllowWildcardSubdomains *bool     `yaml:"allowWildcardSubdomains,omitempty" json:"allowWildcardSubdomains,omitempty"`
	EnableDynamicOrigins    *bool     `yaml:"enableDynamicOrigins,omitempty" json:"enableDynamicOrigins,omitempty"`
	StrictMode              *bool     `yaml:"strictMode,omitempty" json:"strictMode,omitempty"`
	EnableLogging           *bool     `yaml:"enableLogging,omitempty" json:"enableLogging,omitempty"`
	OriginCacheSize         *int      `yaml:"originCacheSize,omitempty" json:"originCacheSize,omitempty"`
	Environment             *string   `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// TouchesOriginDecisions reports whether applying the patch can change a cached origin verdict.
func (p CorsConfigPatch) TouchesOriginDecisions() bool {
	return p.AllowedOrigins != nil || p.BlockedOrigins != nil || p.TrustedDomains != nil ||
		p.AllowWildcardSubdomains != nil || p.EnableDynamicOrigins != nil ||
		p.StrictMode != nil || p.Environment != nil || p.MaxAge != nil
}

// IsEmpty reports whether no field is set.
func (p CorsConfigPatch) IsEmpty() bool {
	return p == CorsConfigPatch{}
}

// Apply merges the patch over a copy of c and re-validates the result. c is not modified.
func (c *CorsConfig) Apply(p CorsConfigPatch) (*CorsConfig, error) {
	next := c.Clone()
	setStrings(&next.AllowedOrigins, p.AllowedOrigins)
	setStrings(&next.BlockedOrigins, p.BlockedOrigins)
	setStrings(&next.AllowedMethods, p.AllowedMethods)
	setStrings(&next.AllowedHeaders, p.AllowedHeaders)
	setStrings(&next.ExposedHeaders, p.ExposedHeaders)
	setStrings(&next.TrustedDomains, p.TrustedDomains)
	set(&next.AllowCredentials, p.AllowCredentials)
	set(&next.MaxAge, p.MaxAge)
	set(&next.AllowWildcardSubdomains, p.AllowWildcardSubdomains)
	set(&next.EnableDynamicOrigins, p.EnableDynamicOrigins)
	set(&next.StrictMode, p.StrictMode)
	set(&next.EnableLogging, p.EnableLogging)
	set(&next.OriginCacheSize, p.OriginCacheSize)
	set(&next.Environment, p.Environment)

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// HeaderValidationPatch is a partial HeaderValidationConfig. Nil fields keep the base value.
type HeaderValidationPatch struct {
	MaxHeaderSize        *int                 `yaml:"maxHeaderSize,omitempty" json:"maxHeaderSize,omitempty"`
	MaxHeaderCount       *int                 `yaml:"maxHeaderCount,omitempty" json:"maxHeaderCount,omitempty"`
	ForbiddenHeaders     *[]string            `yaml:"forbiddenHeaders,omitempty" json:"forbiddenHeaders,omitempty"`
	RequiredHeaders      *map[string][]string `yaml:"requiredHeaders,omitempty" json:"requiredHeaders,omitempty"`
	AllowedContentTypes  *[]string            `yaml:"allowedContentTypes,omitempty" json:"allowedContentTypes,omitempty"`
	BlockedUserAgents    *[]string            `yaml:"blockedUserAgents,omitempty" json:"blockedUserAgents,omitempty"`
	BotUserAgents        *[]string            `yaml:"botUserAgents,omitempty" json:"botUserAgents,omitempty"`
	CSRFHeaderNames      *[]string            `yaml:"csrfHeaderNames,omitempty" json:"csrfHeaderNames,omitempty"`
	MinBearerTokenLength *int                 `yaml:"minBearerTokenLength,omitempty" json:"minBearerTokenLength,omitempty"`
	APIPathPrefix        *string              `yaml:"apiPathPrefix,omitempty" json:"apiPathPrefix,omitempty"`

	CheckSizeLimits       *bool `yaml:"checkSizeLimits,omitempty" json:"checkSizeLimits,omitempty"`
	CheckForbiddenHeaders *bool `yaml:"checkForbiddenHeaders,omitempty" json:"checkForbiddenHeaders,omitempty"`
	CheckRequiredHeaders  *bool `yaml:"checkRequiredHeaders,omitempty" json:"checkRequiredHeaders,omitempty"`
	ValidateContentType   *bool `yaml:"validateContentType,omitempty" json:"validateContentType,omitempty"`
	ValidateUserAgent     *bool `yaml:"validateUserAgent,omitempty" json:"validateUserAgent,omitempty"`
	ValidateAuthorization *bool `yaml:"validateAuthorization,omitempty" json:"validateAuthorization,omitempty"`
	CheckXSSProtection    *bool `yaml:"checkXssProtection,omitempty" json:"checkXssProtection,omitempty"`
	CheckCSRFProtection   *bool `yaml:"checkCsrfProtection,omitempty" json:"checkCsrfProtection,omitempty"`
	CheckHSTS             *bool `yaml:"checkHsts,omitempty" json:"checkHsts,omitempty"`

	EnableSanitization    *bool   `yaml:"enableSanitization,omitempty" json:"enableSanitization,omitempty"`
	EnableSecurityScoring *bool   `yaml:"enableSecurityScoring,omitempty" json:"enableSecurityScoring,omitempty"`
	EnableLogging         *bool   `yaml:"enableLogging,omitempty" json:"enableLogging,omitempty"`
	StrictMode            *bool   `yaml:"strictMode,omitempty" json:"strictMode,omitempty"`
	Environment           *string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// Apply merges the patch over a copy of c and re-validates the result. c is not modified.
func (c *HeaderValidationConfig) Apply(p HeaderValidationPatch) (*HeaderValidationConfig, error) {
	next := c.Clone()
	set(&next.MaxHeaderSize, p.MaxHeaderSize)
	set(&next.MaxHeaderCount, p.MaxHeaderCount)
	setStrings(&next.ForbiddenHeaders, p.ForbiddenHeaders)
	if p.RequiredHeaders != nil {
		next.RequiredHeaders = make(map[string][]string, len(*p.RequiredHeaders))
		for k, v := range *p.RequiredHeaders {
			next.RequiredHeaders[k] = cloneStrings(v)
		}
	}
	setStrings(&next.AllowedContentTypes, p.AllowedContentTypes)
	setStrings(&next.BlockedUserAgents, p.BlockedUserAgents)
	setStrings(&next.BotUserAgents, p.BotUserAgents)
	setStrings(&next.CSRFHeaderNames, p.CSRFHeaderNames)
	set(&next.MinBearerTokenLength, p.MinBearerTokenLength)
	set(&next.APIPathPrefix, p.APIPathPrefix)

	set(&next.CheckSizeLimits, p.CheckSizeLimits)
	set(&next.CheckForbiddenHeaders, p.CheckForbiddenHeaders)
	set(&next.CheckRequiredHeaders, p.CheckRequiredHeaders)
	set(&next.ValidateContentType, p.ValidateContentType)
	set(&next.ValidateUserAgent, p.ValidateUserAgent)
	set(&next.ValidateAuthorization, p.ValidateAuthorization)
	set(&next.CheckXSSProtection, p.CheckXSSProtection)
	set(&next.CheckCSRFProtection, p.CheckCSRFProtection)
	set(&next.CheckHSTS, p.CheckHSTS)

	set(&next.EnableSanitization, p.EnableSanitization)
	set(&next.EnableSecurityScoring, p.EnableSecurityScoring)
	set(&next.EnableLogging, p.EnableLogging)
	set(&next.StrictMode, p.StrictMode)
	set(&next.Environment, p.Environment)

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// DiffCors builds the patch that replaces every field with next's value. Used by the config watcher.
func DiffCors(next *CorsConfig) CorsConfigPatch {
	n := next.Clone()
	return CorsConfigPatch{
		AllowedOrigins:          &n.AllowedOrigins,
		BlockedOrigins:          &n.BlockedOrigins,
		AllowedMethods:          &n.AllowedMethods,
		AllowedHeaders:          &n.AllowedHeaders,
		ExposedHeaders:          &n.ExposedHeaders,
		TrustedDomains:          &n.TrustedDomains,
		AllowCredentials:        &n.AllowCredentials,
		MaxAge:                  &n.MaxAge,
		AllowWildcardSubdomains: &n.AllowWildcardSubdomains,
		EnableDynamicOrigins:    &n.EnableDynamicOrigins,
		StrictMode:              &n.StrictMode,
		EnableLogging:           &n.EnableLogging,
		OriginCacheSize:         &n.OriginCacheSize,
		Environment:             &n.Environment,
	}
}

// DiffHeaders builds the patch that replaces every field with next's value.
func DiffHeaders(next *HeaderValidationConfig) HeaderValidationPatch {
	n := next.Clone()
	return HeaderValidationPatch{
		MaxHeaderSize:         &n.MaxHeaderSize,
		MaxHeaderCount:        &n.MaxHeaderCount,
		ForbiddenHeaders:      &n.ForbiddenHeaders,
		RequiredHeaders:       &n.RequiredHeaders,
		AllowedContentTypes:   &n.AllowedContentTypes,
		BlockedUserAgents:     &n.BlockedUserAgents,
		BotUserAgents:         &n.BotUserAgents,
		CSRFHeaderNames:       &n.CSRFHeaderNames,
		MinBearerTokenLength:  &n.MinBearerTokenLength,
		APIPathPrefix:         &n.APIPathPrefix,
		CheckSizeLimits:       &n.CheckSizeLimits,
		CheckForbiddenHeaders: &n.CheckForbiddenHeaders,
		CheckRequiredHeaders:  &n.CheckRequiredHeaders,
		ValidateContentType:   &n.ValidateContentType,
		ValidateUserAgent:     &n.ValidateUserAgent,
		ValidateAuthorization: &n.ValidateAuthorization,
		CheckXSSProtection:    &n.CheckXSSProtection,
		CheckCSRFProtection:   &n.CheckCSRFProtection,
		CheckHSTS:             &n.CheckHSTS,
		EnableSanitization:    &n.EnableSanitization,
		EnableSecurityScoring: &n.EnableSecurityScoring,
		EnableLogging:         &n.EnableLogging,
		StrictMode:            &n.StrictMode,
		Environment:           &n.Environment,
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setStrings(dst *[]string, src *[]string) {
	if src != nil {
		*dst = cloneStrings(*src)
	}
}
