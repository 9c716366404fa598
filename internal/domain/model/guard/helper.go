package model

import (
	"regexp"
	"strings"
	"sync"
)

var (
	paramPattern      = regexp.MustCompile(`\{[^}]+\}|:\w+`)
	regexSegment      = regexp.MustCompile(`(/[^/]*[+*?[\]{}\\][^/]*)`)
	numericSegment    = regexp.MustCompile(`(/[\d]+)`)
	repeatedWildcards = regexp.MustCompile(`/\*(\*)+`)

	regexCache sync.Map // pattern -> *regexp.Regexp
)

// NormalizePath 将路径中的动态部分替换为 *
//
//	/api/user/spx123           => /api/user/spx123
//	/api/user/123              => /api/user/*
//	^/api/user/\d+$            => /api/user/*
//	/api/order/{order_id}      => /api/order/*
//	/api/product/[a-zA-Z0-9]+  => /api/product/*
func NormalizePath(path string) string {
	// 处理正则表达式开头的 ^ 和结尾的 $
	path = strings.TrimPrefix(path, "^")
	path = strings.TrimSuffix(path, "$")

	// 替换 {xxx} 或 :xxx 为 *
	path = paramPattern.ReplaceAllString(path, "*")

	// 替换路径中，正则表达式格式 为 *
	path = regexSegment.ReplaceAllString(path, "/*")

	// 替换纯数字路径段为 *
	path = numericSegment.ReplaceAllString(path, "/*")

	// 合并连续的 *
	path = repeatedWildcards.ReplaceAllString(path, "/*")

	return path
}

// PathMatches reports whether path falls under pattern.
//
//	/api/payments            exact
//	/api/payments/           prefix
//	/api/payments/*          prefix, also matches /api/payments itself
//	/api/payments/{id}       one dynamic segment ({id}, :id or *)
//	^/api/v\d+/payments$     anchored regex
func PathMatches(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	if pattern == path || pattern == "*" || pattern == "/*" {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		base := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(path, base) || path == strings.TrimSuffix(base, "/")
	}
	if strings.HasSuffix(pattern, "/") && len(pattern) > 1 {
		return strings.HasPrefix(path, pattern)
	}
	if strings.HasPrefix(pattern, "^") {
		return regexMatch(pattern, path)
	}
	if strings.ContainsAny(pattern, "{:*") {
		return regexMatch(segmentPattern(pattern), path)
	}
	return false
}

// segmentPattern turns /a/{id}/:name/* into an anchored regex, one segment per placeholder.
func segmentPattern(pattern string) string {
	parts := strings.Split(pattern, "/")
	for i, seg := range parts {
		switch {
		case seg == "**":
			parts[i] = ".*"
		case seg == "*", strings.HasPrefix(seg, ":"),
			strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			parts[i] = "[^/]+"
		default:
			parts[i] = regexp.QuoteMeta(seg)
		}
	}
	return "^" + strings.Join(parts, "/") + "$"
}

// BuildIndexKey is the redis sorted-set key holding the rule ids of one engine.
func BuildIndexKey(engine EngineType) string {
	return "guard_rule_index:" + strings.ToLower(string(engine))
}

// compileCached compiles a pattern once per process.
func compileCached(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func regexMatch(pattern, s string) bool {
	re, err := compileCached(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
