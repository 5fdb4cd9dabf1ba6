package application

import (
	"context"
	"fmt"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// ConcurrencyService limita quantas requisições admitidas ficam em andamento,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Sem vaga, retorna um erro que embrulha domain.ErrNoSlot e a causa do ctx.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		if cause := context.Cause(acqCtx); cause != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoSlot, cause)
		}
		return nil, domain.ErrNoSlot
	}
	return release, nil
}
