package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RequestDescriptor is the framework independent view of an inbound request.
// Engines only read it.
type RequestDescriptor struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers"`
	Origin    string            `json:"origin,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Referer   string            `json:"referer,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Query     map[string]string `json:"query,omitempty"`
	Body      []byte            `json:"-"`
}

// NewRequestDescriptor lower-cases header names and fills origin, user-agent and referer from them.
func NewRequestDescriptor(method, path string, headers map[string]string) *RequestDescriptor {
	d := &RequestDescriptor{
		Method:  strings.ToUpper(strings.TrimSpace(method)),
		Path:    path,
		Headers: make(map[string]string, len(headers)),
	}
	for k, v := range headers {
		d.Headers[strings.ToLower(strings.TrimSpace(k))] = v
	}
	d.Origin = d.Headers["origin"]
	d.UserAgent = d.Headers["user-agent"]
	d.Referer = d.Headers["referer"]
	return d
}

// Header looks a header up case-insensitively.
func (d *RequestDescriptor) Header(name string) (string, bool) {
	if d == nil || d.Headers == nil {
		return "", false
	}
	if v, ok := d.Headers[strings.ToLower(name)]; ok {
		return v, true
	}
	for k, v := range d.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func (d *RequestDescriptor) HasHeader(name string) bool {
	_, ok := d.Header(name)
	return ok
}

// GetOrigin prefers the explicit field and falls back to the Origin header.
func (d *RequestDescriptor) GetOrigin() string {
	if d.Origin != "" {
		return d.Origin
	}
	v, _ := d.Header("origin")
	return v
}

func (d *RequestDescriptor) GetUserAgent() string {
	if d.UserAgent != "" {
		return d.UserAgent
	}
	v, _ := d.Header("user-agent")
	return v
}

func (d *RequestDescriptor) GetReferer() string {
	if d.Referer != "" {
		return d.Referer
	}
	v, _ := d.Header("referer")
	return v
}

func (d *RequestDescriptor) GetMethod() string {
	return strings.ToUpper(d.Method)
}

// IsPreflight reports a CORS preflight (any OPTIONS request).
func (d *RequestDescriptor) IsPreflight() bool {
	return d.GetMethod() == http.MethodOptions
}

// IsMutating reports create/update/replace methods.
func (d *RequestDescriptor) IsMutating() bool {
	switch d.GetMethod() {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

func (d *RequestDescriptor) GetBodyJSON() (map[string]any, error) {
	if len(d.Body) == 0 {
		return nil, errors.New("empty body")
	}
	var result map[string]any
	if err := json.Unmarshal(d.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse body as json: %w", err)
	}
	return result, nil
}

func (d *RequestDescriptor) String() string {
	return fmt.Sprintf("%s %s origin=%q ip=%s", d.GetMethod(), d.Path, d.GetOrigin(), d.IP)
}
