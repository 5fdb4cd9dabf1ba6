package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

const defaultShards = 32

// Store é uma implementação de infra baseada em token-bucket (x/time/rate)
// com um bucket por chave.
//
// O map de buckets é dividido em shards pelo hash da chave; cada shard tem seu
// próprio mutex. Refill + consumo de um mesmo cliente acontecem sob o lock do
// shard, então não há perda de atualização nem consumo duplo. Clientes em shards
// diferentes não disputam lock.
//
// O Store não limpa nada sozinho: quem o criou deve chamar EvictStale periodicamente.
type Store struct {
	shards []*storeShard
	rpm    int
	rps    rate.Limit
	burst  int
	clock  Clock
}

type storeShard struct {
	mu      sync.Mutex
	entries map[string]*storeEntry
}

type storeEntry struct {
	lim *rate.Limiter
	// lastRefill é o instante do último refill (toda chamada de Allow faz refill).
	lastRefill time.Time
}

type StoreOption func(*Store)

// WithShards define o número de partições do map. Valores < 1 viram 1.
func WithShards(n int) StoreOption {
	return func(s *Store) {
		if n < 1 {
			n = 1
		}
		s.shards = make([]*storeShard, n)
	}
}

func WithClock(c Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// NewStore cria um Store com requestsPerMinute de refill e capacidade burst.
// Um cliente novo começa com o bucket cheio.
func NewStore(requestsPerMinute, burst int, opts ...StoreOption) *Store {
	s := &Store{
		shards: make([]*storeShard, defaultShards),
		rpm:    requestsPerMinute,
		rps:    rate.Limit(float64(requestsPerMinute) / 60),
		burst:  burst,
		clock:  SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &storeShard{entries: make(map[string]*storeEntry)}
	}
	return s
}

func (s *Store) RequestsPerMinute() int { return s.rpm }
func (s *Store) Burst() int             { return s.burst }

func (s *Store) shardFor(key string) *storeShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Allow implementa domain.LimiterStore.
func (s *Store) Allow(key domain.Key) domain.Decision {
	k := string(key)
	now := s.clock.Now()
	sh := s.shardFor(k)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	ent, ok := sh.entries[k]
	if !ok {
		ent = &storeEntry{lim: rate.NewLimiter(s.rps, s.burst)}
		sh.entries[k] = ent
	}
	// o limiter nunca pode ver um instante anterior ao último refill, senão
	// relógio voltando e avançando reabastece o mesmo intervalo duas vezes.
	if now.Before(ent.lastRefill) {
		now = ent.lastRefill
	}
	allowed := ent.lim.AllowN(now, 1)
	ent.lastRefill = now

	dec := domain.Decision{
		Allowed:   allowed,
		Remaining: int(ent.lim.TokensAt(now)),
		Limit:     s.rpm,
	}
	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
	if !allowed {
		dec.ResetSeconds = 60 / max(s.rpm, 1)
	}
	return dec
}

// EvictStale remove os buckets cujo último refill tem maxAge ou mais.
// Com maxAge zero todos os buckets são removidos. Retorna quantos foram removidos.
func (s *Store) EvictStale(maxAge time.Duration) int {
	now := s.clock.Now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, ent := range sh.entries {
			if now.Sub(ent.lastRefill) >= maxAge {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// ClientCount retorna quantos clientes têm bucket no momento.
func (s *Store) ClientCount() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
