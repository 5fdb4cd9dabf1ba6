package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type upstreamSeen struct {
	path    string
	query   string
	subject string
	host    string
}

// newUpstream devolve um upstream que registra a última requisição recebida.
func newUpstream(t *testing.T) (*httptest.Server, *upstreamSeen) {
	t.Helper()
	seen := &upstreamSeen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.EscapedPath()
		seen.query = r.URL.RawQuery
		seen.subject = r.Header.Get(subjectHeader)
		seen.host = r.Host
		_, _ = io.WriteString(w, "upstream ok")
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func testConfig(t *testing.T, routes ...RouteConfig) Config {
	t.Helper()
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Routes = routes
	cfg.Auth.Tokens = []TokenConfig{
		{Token: "valid-token-123", Subject: "user-1", Roles: []string{"user"}},
		{Token: "admin-token-456", Subject: "admin-1", Roles: []string{"admin", "user"}},
	}
	cfg.Stats.TrackKeys = true
	return cfg
}

func newTestGateway(t *testing.T, cfg Config) *Gateway {
	t.Helper()
	gw, err := NewGateway(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close(context.Background()) })
	return gw
}

func TestGateway_ForwardsToUpstreamTarget(t *testing.T) {
	up, seen := newUpstream(t)
	gw := newTestGateway(t, testConfig(t,
		RouteConfig{PathPrefix: "/users", UpstreamURL: up.URL, ServiceName: "user-service"},
		RouteConfig{PathPrefix: "/orders", UpstreamURL: up.URL + "/v1", ServiceName: "order-service", RequiresAuth: true},
	))
	h := gw.Handler()

	r := httptest.NewRequest(http.MethodGet, "http://gw/users/123?expand=true", nil)
	r.Header.Set(subjectHeader, "spoofed")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "upstream ok", w.Body.String())
	assert.Equal(t, "/123", seen.path)
	assert.Equal(t, "expand=true", seen.query)
	assert.Empty(t, seen.subject, "client supplied subject must be dropped")
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))

	r = httptest.NewRequest(http.MethodPost, "http://gw/orders/9", nil)
	r.Header.Set("Authorization", "Bearer valid-token-123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/v1/9", seen.path)
	assert.Equal(t, "user-1", seen.subject)
}

func TestGateway_RejectsBeforeUpstream(t *testing.T) {
	up, seen := newUpstream(t)
	gw := newTestGateway(t, testConfig(t,
		RouteConfig{PathPrefix: "/orders", UpstreamURL: up.URL, ServiceName: "order-service", RequiresAuth: true},
	))

	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/orders", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body domain.GatewayError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.KindMissingToken, body.Kind)
	assert.Empty(t, seen.path)
	assert.Equal(t, int64(1), gw.Memory.Total().Unauthenticated)
}

func TestGateway_UpstreamDownIsBadGateway(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	addr := down.URL
	down.Close()

	gw := newTestGateway(t, testConfig(t,
		RouteConfig{PathPrefix: "/users", UpstreamURL: addr, ServiceName: "user-service"},
	))

	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/users/1", nil))

	require.Equal(t, http.StatusBadGateway, w.Code)
	var body domain.GatewayError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.KindBadGateway, body.Kind)
	assert.Contains(t, body.Message, "user-service")
}

func TestGateway_InvalidUpstreamIsBadGateway(t *testing.T) {
	gw := newTestGateway(t, testConfig(t,
		RouteConfig{PathPrefix: "/users", UpstreamURL: "not-a-url", ServiceName: "user-service"},
	))

	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/users/1", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGateway_RateLimitPerClient(t *testing.T) {
	up, _ := newUpstream(t)
	cfg := testConfig(t, RouteConfig{PathPrefix: "/users", UpstreamURL: up.URL, ServiceName: "user-service"})
	cfg.RateLimit.BurstSize = 2
	gw := newTestGateway(t, cfg)
	h := gw.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://gw/users", nil)
		r.RemoteAddr = "10.1.1.1:5000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	r := httptest.NewRequest(http.MethodGet, "http://gw/users", nil)
	r.RemoteAddr = "10.2.2.2:5000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code, "other clients keep their own bucket")

	assert.Equal(t, 2, gw.Pipeline.Limits.ClientCount())
	assert.Equal(t, 2, gw.Pipeline.Limits.EvictStale(0))
}

func TestGateway_ForwardsEscapedPathVerbatim(t *testing.T) {
	up, seen := newUpstream(t)
	gw := newTestGateway(t, testConfig(t,
		RouteConfig{PathPrefix: "/users", UpstreamURL: up.URL + "/v1", ServiceName: "user-service"},
	))

	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/users/a%41/b%2Fc?x=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/v1/a%41/b%2Fc", seen.path)
	assert.Equal(t, "x=1", seen.query)
}

func TestForwarder_UnparsableTargetIsBadGateway(t *testing.T) {
	adm := application.Admission{Route: domain.ResolvedRoute{
		UpstreamTarget: "http://localhost:1/a%zz",
		ServiceName:    "user-service",
	}}
	r := httptest.NewRequest(http.MethodGet, "http://gw/users/a", nil)
	r = r.WithContext(admission.WithAdmission(r.Context(), adm))

	w := httptest.NewRecorder()
	newForwarder(zap.NewNop()).ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestTargetRawPath(t *testing.T) {
	cases := map[string]string{
		"http://h:8001/a%2Fb?x=1": "/a%2Fb",
		"http://h:8001":           "",
		"http://h/v1/x#frag":      "/v1/x",
		"https://h/%41":           "/%41",
	}
	for in, want := range cases {
		assert.Equal(t, want, targetRawPath(in), in)
	}
}
