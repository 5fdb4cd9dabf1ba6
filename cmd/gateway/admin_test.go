package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func adminDo(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAdmin_HealthAndRoutes(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	admin := gw.AdminHandler()

	w := adminDo(t, admin, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = adminDo(t, admin, http.MethodGet, "/routes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var routes struct {
		Count  int `json:"count"`
		Routes []struct {
			PathPrefix   string `json:"path_prefix"`
			RequiresAuth bool   `json:"requires_auth"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routes))
	assert.Equal(t, 9, routes.Count)
	assert.Equal(t, "/orders", routes.Routes[2].PathPrefix)
	assert.True(t, routes.Routes[2].RequiresAuth)
}

func TestAdmin_StatsClientsAndMetrics(t *testing.T) {
	up, _ := newUpstream(t)
	gw := newTestGateway(t, testConfig(t, RouteConfig{PathPrefix: "/users", UpstreamURL: up.URL, ServiceName: "user-service"}))
	h := gw.Handler()
	admin := gw.AdminHandler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://gw/users", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://gw/nope", nil))

	w := adminDo(t, admin, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Total struct {
			Allowed  int64 `json:"allowed"`
			NotFound int64 `json:"not_found"`
		} `json:"total"`
		RejectionRate float64 `json:"rejection_rate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Total.Allowed)
	assert.Equal(t, int64(1), stats.Total.NotFound)
	assert.InDelta(t, 50.0, stats.RejectionRate, 0.001)

	w = adminDo(t, admin, http.MethodGet, "/events?outcome=not-found", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = adminDo(t, admin, http.MethodGet, "/clients", "")
	require.Equal(t, http.StatusOK, w.Code)
	var clients map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clients))
	assert.Equal(t, 1, clients["tracked_clients"])
	assert.Equal(t, 100, clients["capacity"])

	w = adminDo(t, admin, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `gateway_admission_decisions_total{outcome="allowed",service="user-service"} 1`))
	assert.True(t, strings.Contains(w.Body.String(), "gateway_ratelimit_tracked_clients 1"))
}

func TestAdmin_IssueToken(t *testing.T) {
	up, seen := newUpstream(t)
	cfg := testConfig(t, RouteConfig{PathPrefix: "/orders", UpstreamURL: up.URL, ServiceName: "order-service", RequiresAuth: true})
	cfg.Auth.JWTSecret = "s3cr3t"
	cfg.Auth.IssueTokens = true
	gw := newTestGateway(t, cfg)
	admin := gw.AdminHandler()

	w := adminDo(t, admin, http.MethodPost, "/tokens", `{"subject":"svc-1","roles":["user"],"ttl":"5m"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var issued struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	assert.Equal(t, 300, issued.ExpiresIn)

	r := httptest.NewRequest(http.MethodGet, "http://gw/orders", nil)
	r.Header.Set("Authorization", "Bearer "+issued.Token)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "svc-1", seen.subject)

	assert.Equal(t, http.StatusBadRequest, adminDo(t, admin, http.MethodPost, "/tokens", `{"roles":["user"]}`).Code)
	assert.Equal(t, http.StatusBadRequest, adminDo(t, admin, http.MethodPost, "/tokens", `{"subject":"a","roles":["user"],"ttl":"soon"}`).Code)
}

func TestAdmin_IssueTokenDisabled(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	w := adminDo(t, gw.AdminHandler(), http.MethodPost, "/tokens", `{"subject":"svc-1","roles":["user"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_IssueTokenNeedsExplicitFlag(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "s3cr3t"
	gw := newTestGateway(t, cfg)
	require.NotNil(t, gw.Signer)

	w := adminDo(t, gw.AdminHandler(), http.MethodPost, "/tokens", `{"subject":"root","roles":["admin"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "token")
}
