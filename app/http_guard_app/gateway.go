package http_guard_app

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	configs "go_request_guard/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// HealthPath is answered before the guard runs.
const HealthPath = "/healthz"

// NewUpstreamProxy forwards guarded requests to the payment API.
func NewUpstreamProxy(cfg configs.UpstreamConfig, log logrus.FieldLogger) (http.Handler, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q needs a scheme and a host", cfg.URL)
	}

	log = log.WithField("upstream", target.Host)
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}
	proxy.Transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).WithField("path", r.URL.Path).Error("upstream request failed")
		writeJSON(w, http.StatusBadGateway, CorsErrorBody{Error: "Bad gateway", Message: "upstream unavailable"})
	}
	return proxy, nil
}

// DecisionHandler answers 200 for every request the middleware lets through.
// Used when no upstream is configured, e.g. behind an nginx auth_request.
func DecisionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"allowed": true})
	})
}

// NewGateway mounts the guarded handler next to the health probe.
func NewGateway(mw *GuardMiddleware, next http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/", mw.Wrap(next))
	return mux
}
