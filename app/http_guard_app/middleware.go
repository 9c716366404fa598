package http_guard_app

import (
	"encoding/json"
	"net/http"
	"strings"

	model "go_request_guard/internal/domain/model/guard"
	"go_request_guard/utils"

	"github.com/sirupsen/logrus"
)

// CorsEngine and HeaderEngine are the parts of the engines the middleware calls.
type CorsEngine interface {
	Evaluate(req *model.RequestDescriptor) *model.ValidationResult
}

type HeaderEngine interface {
	Evaluate(req *model.RequestDescriptor) *model.ValidationResult
	ValidateHyperswitchHeaders(req *model.RequestDescriptor) *model.ValidationResult
}

// CorsErrorBody is written for a blocked CORS request.
type CorsErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HeaderErrorBody lists only the blocking errors.
type HeaderErrorBody struct {
	Error   string                  `json:"error"`
	Details []model.ValidationError `json:"details"`
}

// GuardMiddleware runs the CORS evaluator and then the header validator in front of next.
type GuardMiddleware struct {
	cors              CorsEngine
	headers           HeaderEngine
	hyperswitchPrefix string
	maxBody           int64
	log               logrus.FieldLogger
}

type MiddlewareOption func(*GuardMiddleware)

// WithHyperswitchPrefix routes requests under prefix through the payments header rules.
func WithHyperswitchPrefix(prefix string) MiddlewareOption {
	return func(m *GuardMiddleware) { m.hyperswitchPrefix = prefix }
}

func WithMaxBodyBytes(n int64) MiddlewareOption {
	return func(m *GuardMiddleware) { m.maxBody = n }
}

func WithMiddlewareLogger(l logrus.FieldLogger) MiddlewareOption {
	return func(m *GuardMiddleware) { m.log = l }
}

func NewGuardMiddleware(cors CorsEngine, headers HeaderEngine, opts ...MiddlewareOption) *GuardMiddleware {
	m := &GuardMiddleware{
		cors:    cors,
		headers: headers,
		maxBody: DefaultMaxBodyBytes,
		log:     utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "http_guard")
	return m
}

func (m *GuardMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		desc := NewDescriptorFromHTTP(r, m.maxBody)

		corsRes := m.cors.Evaluate(desc)
		copyHeaders(w.Header(), corsRes.Headers)

		// 预检请求直接结束, 不带 body
		if desc.IsPreflight() && desc.GetOrigin() != "" {
			w.WriteHeader(corsRes.StatusCode)
			return
		}
		if !corsRes.Allowed {
			writeJSON(w, corsRes.StatusCode, CorsErrorBody{Error: "CORS policy violation", Message: corsRes.Reason})
			return
		}

		hyperswitch := m.isHyperswitch(desc.Path)
		var hdrRes *model.ValidationResult
		if hyperswitch {
			hdrRes = m.headers.ValidateHyperswitchHeaders(desc)
		} else {
			hdrRes = m.headers.Evaluate(desc)
		}
		if !hdrRes.Valid {
			copyHeaders(w.Header(), hdrRes.RecommendedHeaders)
			writeJSON(w, hdrRes.StatusCode, HeaderErrorBody{Error: "Header validation failed", Details: hdrRes.BlockingErrors()})
			return
		}

		if hyperswitch {
			// payments 推荐头补到上游请求上
			for k, v := range hdrRes.RecommendedHeaders {
				if r.Header.Get(k) == "" {
					r.Header.Set(k, v)
				}
			}
			if id := r.Header.Get("X-Request-Id"); id != "" {
				w.Header().Set("X-Request-Id", id)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(&securityHeaderWriter{ResponseWriter: w, headers: hdrRes.RecommendedHeaders}, r)
	})
}

func (m *GuardMiddleware) isHyperswitch(path string) bool {
	if m.hyperswitchPrefix == "" {
		return false
	}
	return path == m.hyperswitchPrefix || strings.HasPrefix(path, strings.TrimSuffix(m.hyperswitchPrefix, "/")+"/")
}

// securityHeaderWriter adds recommended headers the handler did not set itself.
type securityHeaderWriter struct {
	http.ResponseWriter
	headers     map[string]string
	wroteHeader bool
}

func (w *securityHeaderWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		h := w.ResponseWriter.Header()
		for k, v := range w.headers {
			if h.Get(k) == "" {
				h.Set(k, v)
			}
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *securityHeaderWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *securityHeaderWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *securityHeaderWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func copyHeaders(dst http.Header, src map[string]string) {
	for k, v := range src {
		dst.Set(k, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
