package http_guard_app

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"

	model "go_request_guard/internal/domain/model/guard"
)

// DefaultMaxBodyBytes caps how much of the body is buffered for body_json rule conditions.
const DefaultMaxBodyBytes int64 = 1 << 20

// NewDescriptorFromHTTP builds the engine view of r. Up to maxBody bytes of the body are
// read and put back, so the next handler still sees the full body.
func NewDescriptorFromHTTP(r *http.Request, maxBody int64) *model.RequestDescriptor {
	headers := make(map[string]string, len(r.Header)+1)
	for key, values := range r.Header {
		headers[key] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["host"] = r.Host
	}

	desc := model.NewRequestDescriptor(r.Method, r.URL.Path, headers)
	desc.IP = ClientIP(r)

	if q := r.URL.Query(); len(q) > 0 {
		desc.Query = make(map[string]string, len(q))
		for key, values := range q {
			desc.Query[key] = values[0]
		}
	}

	if maxBody > 0 && r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		buf, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err == nil {
			desc.Body = buf
		}
		r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	}
	return desc
}

type readCloser struct {
	io.Reader
	io.Closer
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
