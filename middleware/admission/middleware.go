package admission

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"

	"github.com/google/uuid"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Pipeline            *application.Pipeline
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RequestIDHeader     string
	AddRateLimitHeaders bool
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

type admissionCtxKey struct{}

// WithAdmission guarda a Admission no contexto para o handler de encaminhamento.
func WithAdmission(ctx context.Context, adm application.Admission) context.Context {
	return context.WithValue(ctx, admissionCtxKey{}, adm)
}

func AdmissionFrom(ctx context.Context) (application.Admission, bool) {
	adm, ok := ctx.Value(admissionCtxKey{}).(application.Admission)
	return adm, ok
}

// Middleware roda o Pipeline antes de next. Só requisições admitidas chegam a next,
// com a Admission disponível via AdmissionFrom.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Pipeline == nil {
		panic("admission: Options.Pipeline is required")
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.RequestIDHeader == "" {
		opts.RequestIDHeader = "X-Request-ID"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get(opts.RequestIDHeader))
			if rid == "" {
				rid = uuid.NewString()
				r.Header.Set(opts.RequestIDHeader, rid)
			}
			w.Header().Set(opts.RequestIDHeader, rid)

			adm, err := opts.Pipeline.Admit(r.Context(), application.Request{
				// path cru: sem decodificar %XX, o prefixo casa com o que veio na linha de requisição
				Path:      r.URL.EscapedPath(),
				Method:    r.Method,
				Token:     r.Header.Get("Authorization"),
				ClientKey: opts.KeyFn(r),
				RequestID: rid,
			})
			if err != nil {
				var gerr *domain.GatewayError
				if !errors.As(err, &gerr) {
					gerr = domain.Internal(err.Error())
				}
				WriteError(w, gerr)
				return
			}

			if opts.AddRateLimitHeaders {
				setRateLimitHeaders(w.Header(), adm.Decision)
			}
			next.ServeHTTP(w, r.WithContext(WithAdmission(r.Context(), adm)))
		})
	}
}
