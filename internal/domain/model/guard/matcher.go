package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// 匹配条件配置（值对象）
type MatchConfig struct {
	Logical    string           `json:"logical"` // AND/OR逻辑
	Conditions []MatchCondition `json:"conditions"`
}

// MatchCondition 定义单个匹配条件
type MatchCondition struct {
	Type     string `json:"type"`            // method, path, header, origin, query, body_json
	Operator string `json:"operator"`        // eq, regex, exists, prefix, contains, json_path
	Key      string `json:"key,omitempty"`   // header / query 名称, 或 body_json 的 JSONPath
	Value    any    `json:"value,omitempty"` // exists 时可省略
}

// GORM Scanner/Valuer
func (mc *MatchConfig) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported match config column type %T", value)
	}
	return json.Unmarshal(data, mc)
}

func (mc MatchConfig) Value() (driver.Value, error) {
	return json.Marshal(mc)
}

// Validate checks the shape of every condition and compiles its regex.
func (mc *MatchConfig) Validate() error {
	switch strings.ToUpper(mc.Logical) {
	case "":
		return errors.New("logical must not be empty")
	case LogicalAnd, LogicalOr:
	default:
		return fmt.Errorf("logical must be AND or OR, got %q", mc.Logical)
	}
	if len(mc.Conditions) == 0 {
		return errors.New("conditions must not be empty")
	}
	for i, cond := range mc.Conditions {
		if err := cond.validate(); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
	}
	return nil
}

func (c MatchCondition) validate() error {
	typ := strings.ToLower(c.Type)
	op := strings.ToLower(c.Operator)

	switch typ {
	case MatchMethod, MatchPath, MatchOrigin:
		if c.Key != "" {
			return fmt.Errorf("%s condition takes no key", typ)
		}
	case MatchHeader, MatchQuery, MatchBodyJSON:
		if c.Key == "" {
			return fmt.Errorf("%s condition requires a key", typ)
		}
	case "":
		return errors.New("type must not be empty")
	default:
		return fmt.Errorf("unknown match type %q", c.Type)
	}

	switch op {
	case OpEqual, OpPrefix, OpContains:
	case OpRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return errors.New("regex value must be a string")
		}
		if _, err := compileCached(pattern); err != nil {
			return fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
	case OpExists:
		if typ == MatchMethod || typ == MatchPath {
			return fmt.Errorf("exists is not supported for %s", typ)
		}
		return nil
	case OpJsonPath:
		if typ != MatchBodyJSON {
			return fmt.Errorf("json_path is only supported for %s", MatchBodyJSON)
		}
	case "":
		return errors.New("operator must not be empty")
	default:
		return fmt.Errorf("unknown operator %q", c.Operator)
	}

	if c.Value == nil {
		return errors.New("value must not be empty")
	}
	if typ != MatchBodyJSON {
		if _, ok := c.Value.(string); !ok {
			return fmt.Errorf("%s value must be a string, got %T", typ, c.Value)
		}
	}
	return nil
}

// GetPaths returns the values of every path condition.
func (m *MatchConfig) GetPaths() []string {
	paths := make([]string, 0)
	for _, cond := range m.Conditions {
		if strings.ToLower(cond.Type) == MatchPath {
			if pathStr, ok := cond.Value.(string); ok {
				paths = append(paths, pathStr)
			}
		}
	}
	return paths
}

func (m *MatchConfig) GetMethods() []string {
	methods := make([]string, 0)
	for _, cond := range m.Conditions {
		if strings.ToLower(cond.Type) == MatchMethod {
			if methodStr, ok := cond.Value.(string); ok {
				methods = append(methods, strings.ToUpper(methodStr))
			}
		}
	}
	return methods
}

// Match evaluates the conditions with AND/OR short-circuit. An empty config never matches.
func (m *MatchConfig) Match(req *RequestDescriptor) bool {
	if len(m.Conditions) == 0 || req == nil {
		return false
	}

	isAnd := strings.ToUpper(m.Logical) != LogicalOr
	for _, cond := range m.Conditions {
		matched := cond.match(req)
		if isAnd && !matched {
			return false
		}
		if !isAnd && matched {
			return true
		}
	}
	return isAnd
}

func (c MatchCondition) match(req *RequestDescriptor) bool {
	switch strings.ToLower(c.Type) {
	case MatchMethod:
		return c.compare(req.GetMethod(), true, strings.EqualFold)
	case MatchPath:
		return c.matchPath(req.Path)
	case MatchHeader:
		v, ok := req.Header(c.Key)
		return c.compare(v, ok, func(a, b string) bool { return a == b })
	case MatchOrigin:
		origin := req.GetOrigin()
		return c.compare(origin, origin != "", strings.EqualFold)
	case MatchQuery:
		v, ok := req.Query[c.Key]
		return c.compare(v, ok, func(a, b string) bool { return a == b })
	case MatchBodyJSON:
		return c.matchBodyJSON(req)
	default:
		return false
	}
}

func (c MatchCondition) matchPath(path string) bool {
	rulePath, _ := c.Value.(string)
	switch strings.ToLower(c.Operator) {
	case OpRegex:
		return regexMatch(rulePath, path)
	case OpPrefix:
		return strings.HasPrefix(path, rulePath)
	case OpContains:
		return strings.Contains(path, rulePath)
	default: // eq 支持 {id} / :id / * 路径模板
		return PathMatches(rulePath, path)
	}
}

// compare applies the operator to a string subject. present=false only satisfies nothing.
func (c MatchCondition) compare(subject string, present bool, equal func(a, b string) bool) bool {
	if !present {
		return false
	}
	op := strings.ToLower(c.Operator)
	if op == OpExists {
		return true
	}
	want, ok := c.Value.(string)
	if !ok {
		return false
	}
	switch op {
	case OpRegex:
		return regexMatch(want, subject)
	case OpPrefix:
		return strings.HasPrefix(strings.ToLower(subject), strings.ToLower(want))
	case OpContains:
		return strings.Contains(strings.ToLower(subject), strings.ToLower(want))
	default:
		return equal(subject, want)
	}
}

func (c MatchCondition) matchBodyJSON(req *RequestDescriptor) bool {
	body, err := req.GetBodyJSON()
	if err != nil || body == nil {
		return false
	}

	res, err := JsonPathLookup(body, c.Key)
	if err != nil {
		return false
	}

	op := strings.ToLower(c.Operator)
	if op == OpExists {
		return true
	}
	got := fmt.Sprint(res)
	want := fmt.Sprint(c.Value)
	switch op {
	case OpRegex:
		return regexMatch(want, got)
	case OpPrefix:
		return strings.HasPrefix(got, want)
	case OpContains:
		return strings.Contains(got, want)
	default: // eq / json_path
		return got == want
	}
}

// JsonPathLookup executes a JSONPath query on JSON data
func JsonPathLookup(jsonData map[string]any, path string) (interface{}, error) {
	// Ensure path starts with $ root indicator
	if !strings.HasPrefix(path, "$") {
		if !strings.HasPrefix(path, ".") && !strings.HasPrefix(path, "[") {
			path = "." + path
		}
		path = "$" + path
	}

	result, err := jsonpath.Get(path, jsonData)
	if err != nil {
		return nil, fmt.Errorf("jsonpath lookup failed: %w", err)
	}

	return result, nil
}
