package infra

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

type Counters struct {
	Allowed          int64 `json:"allowed"`
	Denied           int64 `json:"denied"`
	Unauthenticated  int64 `json:"unauthenticated"`
	Forbidden        int64 `json:"forbidden"`
	NotFound         int64 `json:"not_found"`
	MethodNotAllowed int64 `json:"method_not_allowed"`
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.OutcomeAllowed:
		c.Allowed++
	case domain.OutcomeDenied:
		c.Denied++
	case domain.OutcomeUnauthenticated:
		c.Unauthenticated++
	case domain.OutcomeForbidden:
		c.Forbidden++
	case domain.OutcomeNotFound:
		c.NotFound++
	case domain.OutcomeMethodNotAllowed:
		c.MethodNotAllowed++
	}
}

// Total soma todos os resultados.
func (c Counters) Total() int64 {
	return c.Allowed + c.Denied + c.Unauthenticated + c.Forbidden + c.NotFound + c.MethodNotAllowed
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes, desenvolvimento e para o endpoint /stats do plano de admin.
//
// Guarda os últimos maxEvents eventos; os contadores são cumulativos.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	totalDuration time.Duration
	events        []domain.StatsEvent

	trackKeys bool
	maxEvents int
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

// WithMaxEvents limita quantos eventos recentes ficam guardados (padrão 1000).
func WithMaxEvents(n int) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.maxEvents = n }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute:   make(map[string]Counters),
		byKey:     make(map[string]Counters),
		maxEvents: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)
	c := s.byRoute[route]
	c.add(ev.Outcome)
	s.byRoute[route] = c
	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Outcome)
		s.byKey[string(ev.Key)] = k
	}

	s.totalDuration += ev.Duration
	if s.maxEvents > 0 {
		s.events = append(s.events, ev)
		if over := len(s.events) - s.maxEvents; over > 0 {
			s.events = slices.Delete(s.events, 0, over)
		}
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}

// Events devolve os eventos recentes, do mais antigo para o mais novo.
func (s *MemoryStatsStore) Events() []domain.StatsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// EventsByPath filtra os eventos recentes cujo path começa com prefix.
func (s *MemoryStatsStore) EventsByPath(prefix string) []domain.StatsEvent {
	return s.filter(func(ev domain.StatsEvent) bool { return strings.HasPrefix(ev.Path, prefix) })
}

func (s *MemoryStatsStore) EventsByOutcome(o domain.Outcome) []domain.StatsEvent {
	return s.filter(func(ev domain.StatsEvent) bool { return ev.Outcome == o })
}

func (s *MemoryStatsStore) filter(keep func(domain.StatsEvent) bool) []domain.StatsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatsEvent
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// RejectionRate é o percentual (0-100) de requisições não admitidas.
func (s *MemoryStatsStore) RejectionRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.total.Total()
	if total == 0 {
		return 0
	}
	return float64(total-s.total.Allowed) / float64(total) * 100
}

// AverageDuration é o tempo médio de decisão.
func (s *MemoryStatsStore) AverageDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.total.Total()
	if total == 0 {
		return 0
	}
	return s.totalDuration / time.Duration(total)
}
