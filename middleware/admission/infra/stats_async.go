package infra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// MultiStatsStore repassa cada evento para todos os stores.
type MultiStatsStore []domain.StatsStore

func (m MultiStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncStatsStore tira a gravação de eventos do caminho da decisão.
//
// Record só enfileira num buffer limitado; quando o buffer está cheio o evento
// é descartado e contado em Dropped. Uma goroutine grava no store de destino.
type AsyncStatsStore struct {
	next    domain.StatsStore
	ch      chan domain.StatsEvent
	timeout time.Duration
	onError func(error)

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

type AsyncStatsOption func(*AsyncStatsStore)

// WithRecordTimeout limita cada gravação no destino (padrão 2s).
func WithRecordTimeout(d time.Duration) AsyncStatsOption {
	return func(s *AsyncStatsStore) { s.timeout = d }
}

// WithErrorHandler recebe os erros do destino; por padrão são ignorados.
func WithErrorHandler(fn func(error)) AsyncStatsOption {
	return func(s *AsyncStatsStore) { s.onError = fn }
}

func NewAsyncStatsStore(next domain.StatsStore, buffer int, opts ...AsyncStatsOption) *AsyncStatsStore {
	if buffer < 1 {
		buffer = 1
	}
	s := &AsyncStatsStore{
		next:    next,
		ch:      make(chan domain.StatsEvent, buffer),
		timeout: 2 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *AsyncStatsStore) run() {
	defer close(s.done)
	for ev := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.next.Record(ctx, ev)
		cancel()
		if err != nil && s.onError != nil {
			s.onError(err)
		}
	}
}

// Record nunca bloqueia e nunca retorna erro.
func (s *AsyncStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return nil
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *AsyncStatsStore) Dropped() int64 { return s.dropped.Load() }

// Close para de aceitar eventos e espera o buffer esvaziar ou o ctx encerrar.
func (s *AsyncStatsStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
