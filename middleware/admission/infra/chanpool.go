package infra

import (
	"context"
	"sync"
)

// ChanPool é um semáforo baseado em channel: cada vaga é um elemento no buffer.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool com capacidade `max` (implementa domain.SlotPool).
func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.sem }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InFlight é o número de vagas ocupadas agora.
func (p *ChanPool) InFlight() int { return len(p.sem) }

func (p *ChanPool) Capacity() int { return cap(p.sem) }
