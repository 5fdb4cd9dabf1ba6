package infra

import (
	"testing"

	"admission-gateway/middleware/admission/domain"
)

func mustRouter(t *testing.T, routes []domain.RouteEntry) *Router {
	t.Helper()
	r, err := NewRouter(routes)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func TestRouter_ResolveDefaultRoutes(t *testing.T) {
	r := mustRouter(t, domain.DefaultRoutes())

	cases := []struct {
		path    string
		target  string
		service string
		auth    bool
	}{
		{"/users/123", "http://localhost:8001/123", "user-service", false},
		{"/users", "http://localhost:8001", "user-service", false},
		{"/orders/9/items", "http://localhost:8003/9/items", "order-service", true},
		{"/payments", "http://localhost:8004", "payment-service", true},
		// prefixo sem fronteira de segmento
		{"/usersettings", "http://localhost:8001settings", "user-service", false},
		// sem normalização
		{"/users//x?y=1", "http://localhost:8001//x?y=1", "user-service", false},
	}
	for _, tc := range cases {
		got, ok := r.Resolve(tc.path)
		if !ok {
			t.Fatalf("%s: expected route", tc.path)
		}
		if got.UpstreamTarget != tc.target || got.ServiceName != tc.service || got.RequiresAuth != tc.auth {
			t.Fatalf("%s: unexpected resolution %+v", tc.path, got)
		}
		if got.UpstreamPath != tc.path[len(got.PathPrefix):] {
			t.Fatalf("%s: unexpected upstream path %q", tc.path, got.UpstreamPath)
		}
	}
}

func TestRouter_NoMatch(t *testing.T) {
	r := mustRouter(t, domain.DefaultRoutes())
	for _, p := range []string{"", "/", "/unknown", "users"} {
		if _, ok := r.Resolve(p); ok {
			t.Fatalf("expected no route for %q", p)
		}
		if r.MethodAllowed(p, "GET") {
			t.Fatalf("expected MethodAllowed=false for unmatched %q", p)
		}
	}
}

func TestRouter_FirstMatchWins(t *testing.T) {
	r := mustRouter(t, []domain.RouteEntry{
		domain.NewRoute("/users", "http://a", "a"),
		domain.NewRoute("/users/admin", "http://b", "b"),
	})
	got, _ := r.Resolve("/users/admin/1")
	if got.ServiceName != "a" || got.Index != 0 {
		t.Fatalf("expected first declared route to win, got %+v", got)
	}
}

func TestRouter_InactiveRoutesAreSkipped(t *testing.T) {
	off := domain.NewRoute("/users", "http://a", "a")
	off.Active = false
	r := mustRouter(t, []domain.RouteEntry{off, domain.NewRoute("/users", "http://b", "b")})

	got, ok := r.Resolve("/users/1")
	if !ok || got.ServiceName != "b" || got.Index != 1 {
		t.Fatalf("expected active route, got %+v", got)
	}
	if n := len(r.ActiveRoutes()); n != 1 {
		t.Fatalf("expected 1 active route, got %d", n)
	}
	if n := len(r.Routes()); n != 2 {
		t.Fatalf("expected 2 routes, got %d", n)
	}

	// ServiceURL ignora Active
	if u, ok := r.ServiceURL("a"); !ok || u != "http://a" {
		t.Fatalf("expected inactive service url, got %q", u)
	}
	if _, ok := r.ServiceURL("missing"); ok {
		t.Fatalf("expected no url for unknown service")
	}
}

func TestRouter_MethodAllowedIsExact(t *testing.T) {
	r := mustRouter(t, domain.DefaultRoutes())
	if !r.MethodAllowed("/users/1", "DELETE") {
		t.Fatalf("expected DELETE allowed")
	}
	if r.MethodAllowed("/users/1", "get") {
		t.Fatalf("method comparison must be case sensitive")
	}
	if r.MethodAllowed("/users/1", "PATCH") {
		t.Fatalf("expected PATCH not allowed")
	}
}

func TestRouter_CopiesInput(t *testing.T) {
	routes := []domain.RouteEntry{domain.NewRoute("/users", "http://a", "a")}
	r := mustRouter(t, routes)

	routes[0].Methods[0] = "PATCH"
	routes[0].PathPrefix = "/other"

	if !r.MethodAllowed("/users", "GET") {
		t.Fatalf("router must not see caller mutations")
	}
	got, ok := r.RouteAt(0)
	if !ok || got.PathPrefix != "/users" {
		t.Fatalf("unexpected RouteAt: %+v", got)
	}
	if _, ok := r.RouteAt(5); ok {
		t.Fatalf("expected RouteAt out of range to fail")
	}
}

func TestNewRouter_RejectsEmptyPrefix(t *testing.T) {
	if _, err := NewRouter([]domain.RouteEntry{domain.NewRoute("", "http://a", "a")}); err == nil {
		t.Fatalf("expected error for empty prefix")
	}
}
