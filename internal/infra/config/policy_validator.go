package configs

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	policyValidate     *validator.Validate
	policyValidateOnce sync.Once

	methodPattern     = regexp.MustCompile(`^[A-Z]+$`)
	headerNamePattern = regexp.MustCompile("^[A-Za-z0-9!#$%&'*+.^_`|~-]+$")
	dnsLabelPattern   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
)

// Validator returns the shared validator used for every policy config and rule DTO.
func Validator() *validator.Validate {
	policyValidateOnce.Do(func() {
		v := validator.New()
		mustRegister(v, "origin_pattern", func(fl validator.FieldLevel) bool {
			return IsValidOriginPattern(fl.Field().String())
		})
		mustRegister(v, "http_method", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "*" || methodPattern.MatchString(s)
		})
		mustRegister(v, "header_name", func(fl validator.FieldLevel) bool {
			return headerNamePattern.MatchString(fl.Field().String())
		})
		policyValidate = v
	})
	return policyValidate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Errorf("failed to register validation %s: %w", tag, err))
	}
}

// IsValidOriginPattern accepts "*", "*.<domain>", "<scheme>://*.<domain>[:port]"
// and serialized origins "<scheme>://<host>[:port]".
func IsValidOriginPattern(s string) bool {
	if s == "*" {
		return true
	}
	if strings.HasPrefix(s, "*.") {
		return isDomain(s[2:])
	}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" || rest == "" {
		return false
	}
	if strings.ContainsAny(rest, "/?#@") {
		return false
	}

	host := rest
	if h, port, err := net.SplitHostPort(rest); err == nil {
		if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
			return false
		}
		host = h
	}
	if strings.HasPrefix(host, "*.") {
		return isDomain(host[2:])
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return true
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return isDomain(strings.ToLower(u.Hostname()))
}

func isDomain(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(strings.ToLower(s), ".") {
		if !dnsLabelPattern.MatchString(label) {
			return false
		}
	}
	return true
}
