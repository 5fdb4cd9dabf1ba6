package application

import (
	"time"

	"admission-gateway/middleware/admission/domain"
)

// StoreFactory cria um LimiterStore com os parâmetros dados.
// A camada application não sabe qual implementação está por trás.
type StoreFactory func(requestsPerMinute, burst int) domain.LimiterStore

// evictable é o que a camada de infra oferece além de LimiterStore.
type evictable interface {
	EvictStale(maxAge time.Duration) int
	ClientCount() int
}

// RateLimitService concentra a regra de aplicação do rate limit: qual conjunto
// de buckets vale para a rota casada.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type RateLimitService struct {
	Global domain.LimiterStore
	// PerRoute indexa pela posição da rota (domain.ResolvedRoute.Index).
	PerRoute map[int]domain.LimiterStore
	Disabled bool
}

// NewRateLimitService monta o limiter global e um limiter por rota com override.
func NewRateLimitService(routes []domain.RouteEntry, global domain.RateLimit, newStore StoreFactory) RateLimitService {
	svc := RateLimitService{
		Global:   newStore(global.RequestsPerMinute, global.BurstSize),
		PerRoute: make(map[int]domain.LimiterStore),
		Disabled: !global.Enabled,
	}
	for i, rt := range routes {
		if rt.RateLimit == nil {
			continue
		}
		burst := rt.RateLimit.BurstSize
		if burst <= 0 {
			burst = global.BurstSize
		}
		svc.PerRoute[i] = newStore(rt.RateLimit.RequestsPerMinute, burst)
	}
	return svc
}

func (s RateLimitService) storeFor(routeIndex int) domain.LimiterStore {
	if st, ok := s.PerRoute[routeIndex]; ok {
		return st
	}
	return s.Global
}

func (s RateLimitService) Decide(routeIndex int, key domain.Key) domain.Decision {
	if s.Disabled {
		return domain.Decision{Allowed: true}
	}
	store := s.storeFor(routeIndex)
	if store == nil {
		return domain.Decision{Allowed: true}
	}
	return store.Allow(key)
}

func (s RateLimitService) stores() []domain.LimiterStore {
	out := make([]domain.LimiterStore, 0, len(s.PerRoute)+1)
	if s.Global != nil {
		out = append(out, s.Global)
	}
	for _, st := range s.PerRoute {
		out = append(out, st)
	}
	return out
}

// EvictStale varre todos os limiters. Deve ser chamado por um timer do chamador.
func (s RateLimitService) EvictStale(maxAge time.Duration) int {
	removed := 0
	for _, st := range s.stores() {
		if ev, ok := st.(evictable); ok {
			removed += ev.EvictStale(maxAge)
		}
	}
	return removed
}

// ClientCount soma os buckets de todos os limiters.
func (s RateLimitService) ClientCount() int {
	n := 0
	for _, st := range s.stores() {
		if ev, ok := st.(evictable); ok {
			n += ev.ClientCount()
		}
	}
	return n
}
