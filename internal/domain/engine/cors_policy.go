package engine

import (
	"net"
	"net/url"
	"strings"

	configs "go_request_guard/internal/infra/config"
)

const (
	ReasonNoOrigin        = "No origin header"
	ReasonAllowedOrigin   = "Origin in allowed list"
	ReasonWildcardOrigin  = "Origin matches wildcard subdomain"
	ReasonTrustedDomain   = "Origin belongs to trusted domain"
	ReasonDynamicOrigin   = "Origin accepted by dynamic policy"
	ReasonBlockedOrigin   = "Origin explicitly blocked"
	ReasonNotAllowed      = "Origin not in allowed list"
	ReasonValidationFails = "Origin validation failed"
)

type parsedOrigin struct {
	scheme string
	host   string
	port   string
}

// parseOrigin accepts a serialized origin or a bare host[:port].
func parseOrigin(origin string) (parsedOrigin, bool) {
	origin = strings.ToLower(strings.TrimSpace(origin))
	if origin == "" || origin == "null" {
		return parsedOrigin{}, false
	}
	if !strings.Contains(origin, "://") {
		host, port := splitHostPort(origin)
		return parsedOrigin{host: host, port: port}, host != ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return parsedOrigin{}, false
	}
	return parsedOrigin{scheme: u.Scheme, host: u.Hostname(), port: u.Port()}, true
}

func splitHostPort(s string) (string, string) {
	if h, p, err := net.SplitHostPort(s); err == nil {
		return strings.Trim(h, "[]"), p
	}
	return strings.Trim(s, "[]"), ""
}

// decideOrigin runs the decision chain after the cache lookup: block list, allow list,
// wildcard subdomains, trusted domains, dynamic policy, default deny.
func decideOrigin(cfg *configs.CorsConfig, origin string) (bool, string) {
	normalized := strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
	parsed, parsedOK := parseOrigin(normalized)

	for _, blocked := range cfg.BlockedOrigins {
		if blocked == normalized || (parsedOK && isWildcardPattern(blocked) && matchWildcardOrigin(blocked, parsed)) {
			return false, ReasonBlockedOrigin
		}
	}

	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" || allowed == normalized {
			return true, ReasonAllowedOrigin
		}
	}

	if parsedOK && cfg.AllowWildcardSubdomains {
		for _, allowed := range cfg.AllowedOrigins {
			if isWildcardPattern(allowed) && matchWildcardOrigin(allowed, parsed) {
				return true, ReasonWildcardOrigin
			}
		}
	}

	if parsedOK && len(cfg.TrustedDomains) > 0 && isTrustedHost(cfg.TrustedDomains, parsed.host) {
		return true, ReasonTrustedDomain
	}

	if parsedOK && cfg.EnableDynamicOrigins {
		if allowed, decided := dynamicOrigin(cfg.Environment, parsed); decided && allowed {
			return true, ReasonDynamicOrigin
		}
	}

	if cfg.StrictMode {
		return false, ReasonNotAllowed
	}
	return false, ReasonValidationFails
}

func isWildcardPattern(p string) bool {
	return strings.HasPrefix(p, "*.") || strings.Contains(p, "://*.")
}

// matchWildcardOrigin matches *.domain (any scheme and port) or scheme://*.domain[:port].
func matchWildcardOrigin(pattern string, o parsedOrigin) bool {
	scheme := ""
	rest := pattern
	if s, r, ok := strings.Cut(pattern, "://"); ok {
		scheme, rest = s, r
	}
	rest = strings.TrimPrefix(rest, "*.")
	domain, port := splitHostPort(rest)
	if domain == "" {
		return false
	}
	if scheme != "" && scheme != o.scheme {
		return false
	}
	if port != "" && port != o.port {
		return false
	}
	return o.host == domain || strings.HasSuffix(o.host, "."+domain)
}

// isTrustedHost compares the registrable domain (last two labels) or any parent domain.
func isTrustedHost(trusted []string, host string) bool {
	registrable := registrableDomain(host)
	for _, d := range trusted {
		if d == registrable || host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// dynamicOrigin: loopback only outside production, otherwise any https origin.
func dynamicOrigin(env string, o parsedOrigin) (allowed bool, decided bool) {
	if isLoopback(o.host) {
		return env != configs.EnvProduction, true
	}
	if o.scheme == "https" {
		return true, true
	}
	return false, false
}

func isLoopback(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
