package admission

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

type ConcurrencyOptions struct {
	// Pool permite compartilhar o semáforo (ex: para expor InFlight no admin).
	// Se nil, um infra.ChanPool com Max vagas deve ser passado pelo chamador.
	Pool           domain.SlotPool
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware responde 503 (ou RejectStatus) quando não há vaga
// dentro de AcquireTimeout. Sem Pool, não limita nada.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				WriteError(w, domain.Overloaded(opts.RejectStatus, err))
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
