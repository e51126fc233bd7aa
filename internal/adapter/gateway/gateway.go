// Package gateway is the single public entry point. It authenticates the
// caller and relays the request to an internal service with the verified
// identity attached.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 30 * time.Second
	auditTimeout   = 5 * time.Second
	source         = "gateway"
)

// forwardedHeaders are the only request headers copied downstream.
var forwardedHeaders = []string{"Content-Type", "Accept", "X-Request-Id"}

type Config struct {
	Destinations map[string]*url.URL
	Timeout      time.Duration
}

// ParseDestinations reads "name=url,name=url".
func ParseDestinations(raw string) (map[string]*url.URL, error) {
	destinations := make(map[string]*url.URL)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" || raw == "" {
			return nil, fmt.Errorf("destination %q is not name=url", pair)
		}

		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("destination %q has an invalid url", name)
		}

		destinations[strings.TrimSpace(name)] = u
	}

	return destinations, nil
}

type Gateway struct {
	destinations map[string]*url.URL
	verifier     ports.IdentityVerifier
	publisher    ports.EventPublisher
	client       *http.Client
	log          logrus.FieldLogger
}

func New(cfg Config, verifier ports.IdentityVerifier, publisher ports.EventPublisher, log logrus.FieldLogger) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Gateway{
		destinations: cfg.Destinations,
		verifier:     verifier,
		publisher:    publisher,
		client:       &http.Client{Timeout: timeout},
		log:          log,
	}
}

func (g *Gateway) Routes(r chi.Router) {
	r.Get("/health", g.Health)
	r.HandleFunc("/api/{destination}", g.Proxy)
	r.HandleFunc("/api/{destination}/*", g.Proxy)
}

// Health handles GET /health
func (g *Gateway) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"service":      source,
		"destinations": g.names(),
	})
}

func (g *Gateway) names() []string {
	names := make([]string, 0, len(g.destinations))
	for name := range g.destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Proxy handles ANY /api/{destination}/*
func (g *Gateway) Proxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "unauthorized",
			"message": "bearer credential required",
		})
		return
	}

	identity, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		g.log.WithError(err).Debug("credential rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "unauthorized",
			"message": "invalid credential",
		})
		return
	}

	name := chi.URLParam(r, "destination")
	base, ok := g.destinations[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":                  fmt.Sprintf("unknown destination %q", name),
			"available_destinations": g.names(),
		})
		return
	}

	out, err := g.outbound(r, base, identity)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "gateway error", "message": err.Error()})
		return
	}

	resp, err := g.client.Do(out)
	if err != nil {
		g.log.WithError(err).WithField("destination", name).Error("downstream request failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "gateway error", "message": err.Error()})
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		g.log.WithError(err).WithField("destination", name).Warn("relaying response body failed")
	}

	g.audit(r, name, identity, resp.StatusCode, time.Since(start))
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func (g *Gateway) outbound(r *http.Request, base *url.URL, identity domain.Identity) (*http.Request, error) {
	target := base.JoinPath(chi.URLParam(r, "*"))
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	out.ContentLength = r.ContentLength

	for _, h := range forwardedHeaders {
		if v := r.Header.Get(h); v != "" {
			out.Header.Set(h, v)
		}
	}

	if out.Header.Get("X-Request-Id") == "" {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			out.Header.Set("X-Request-Id", id)
		}
	}

	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		clientIP = prior + ", " + clientIP
	}
	out.Header.Set("X-Forwarded-For", clientIP)

	out.Header.Set(domain.HeaderUserID, identity.Subject)
	out.Header.Set(domain.HeaderUserRole, identity.Role)

	return out, nil
}

type auditPayload struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Destination string `json:"destination"`
	Status      int    `json:"status"`
	Subject     string `json:"subject"`
	DurationMS  int64  `json:"duration_ms"`
}

// audit publishes a gateway.request event off the request path.
func (g *Gateway) audit(r *http.Request, destination string, identity domain.Identity, status int, elapsed time.Duration) {
	if g.publisher == nil {
		return
	}

	evt, err := domain.NewEvent(domain.EventGatewayRequest, destination, source, auditPayload{
		Method:      r.Method,
		Path:        r.URL.Path,
		Destination: destination,
		Status:      status,
		Subject:     identity.Subject,
		DurationMS:  elapsed.Milliseconds(),
	})
	if err != nil {
		g.log.WithError(err).Warn("failed to build audit event")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	go func() {
		defer cancel()
		if err := g.publisher.Publish(ctx, evt); err != nil {
			g.log.WithError(err).Warn("failed to publish audit event")
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
