package infra

import (
	"fmt"
	"slices"
	"strings"

	"admission-gateway/middleware/admission/domain"
)

// Router resolve paths contra uma lista ordenada de rotas.
//
// A lista é copiada na construção e nunca mais alterada, então leituras
// concorrentes não precisam de lock. Não troque a lista por um map: a ordem de
// declaração é o que desempata prefixos sobrepostos ("/users" antes de "/users/admin").
type Router struct {
	routes []domain.RouteEntry
}

func NewRouter(routes []domain.RouteEntry) (*Router, error) {
	cp := make([]domain.RouteEntry, len(routes))
	for i, rt := range routes {
		if rt.PathPrefix == "" {
			return nil, fmt.Errorf("route %d (%s): path prefix is required", i, rt.ServiceName)
		}
		rt.Methods = slices.Clone(rt.Methods)
		if rt.RateLimit != nil {
			ov := *rt.RateLimit
			rt.RateLimit = &ov
		}
		cp[i] = rt
	}
	return &Router{routes: cp}, nil
}

func matches(rt domain.RouteEntry, path string) bool {
	return rt.Active && strings.HasPrefix(path, rt.PathPrefix)
}

func (r *Router) first(path string) (int, bool) {
	for i, rt := range r.routes {
		if matches(rt, path) {
			return i, true
		}
	}
	return -1, false
}

// Resolve implementa domain.RouteResolver.
func (r *Router) Resolve(path string) (domain.ResolvedRoute, bool) {
	i, ok := r.first(path)
	if !ok {
		return domain.ResolvedRoute{}, false
	}
	rt := r.routes[i]
	suffix := path[len(rt.PathPrefix):]
	return domain.ResolvedRoute{
		UpstreamTarget: rt.UpstreamURL + suffix,
		ServiceName:    rt.ServiceName,
		RequiresAuth:   rt.RequiresAuth,
		RequiredRole:   rt.RequiredRole,
		UpstreamPath:   suffix,
		PathPrefix:     rt.PathPrefix,
		Index:          i,
	}, true
}

// MethodAllowed implementa domain.RouteResolver. A comparação é exata ("get" != "GET").
func (r *Router) MethodAllowed(path, method string) bool {
	i, ok := r.first(path)
	if !ok {
		return false
	}
	return slices.Contains(r.routes[i].Methods, method)
}

// ServiceURL ignora ordem e o flag Active.
func (r *Router) ServiceURL(service string) (string, bool) {
	for _, rt := range r.routes {
		if rt.ServiceName == service {
			return rt.UpstreamURL, true
		}
	}
	return "", false
}

// Routes devolve uma cópia de todas as rotas, na ordem de declaração.
func (r *Router) Routes() []domain.RouteEntry {
	return slices.Clone(r.routes)
}

func (r *Router) ActiveRoutes() []domain.RouteEntry {
	out := make([]domain.RouteEntry, 0, len(r.routes))
	for _, rt := range r.routes {
		if rt.Active {
			out = append(out, rt)
		}
	}
	return out
}

// RouteAt devolve a rota declarada na posição i.
func (r *Router) RouteAt(i int) (domain.RouteEntry, bool) {
	if i < 0 || i >= len(r.routes) {
		return domain.RouteEntry{}, false
	}
	return r.routes[i], true
}
