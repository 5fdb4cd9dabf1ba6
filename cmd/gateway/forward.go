package main

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// subjectHeader leva o sujeito autenticado ao upstream. Valores enviados pelo
// cliente são sempre descartados.
const subjectHeader = "X-Subject-ID"

// forwarder encaminha a requisição admitida para Admission.Route.UpstreamTarget.
//
// O path do alvo vai ao upstream exatamente como foi concatenado (escapes como
// %2F e %41 são mantidos). O net/http já recusa com 400 paths com escape
// inválido antes da admissão; um alvo que ainda assim não faça parse vira 502,
// nunca uma versão normalizada.
type forwarder struct {
	transport http.RoundTripper
	log       *zap.Logger
}

func newForwarder(log *zap.Logger) http.Handler {
	return &forwarder{
		transport: http.DefaultTransport.(*http.Transport).Clone(),
		log:       log,
	}
}

func (f *forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	adm, ok := admission.AdmissionFrom(r.Context())
	if !ok {
		admission.WriteError(w, domain.Internal("request reached the forwarder without admission"))
		return
	}
	service := adm.Route.ServiceName

	target, err := url.Parse(adm.Route.UpstreamTarget)
	if err == nil && (target.Scheme == "" || target.Host == "") {
		err = errors.New("upstream target must be an absolute URL")
	}
	if err != nil {
		f.log.Error("invalid upstream target",
			zap.String("service", service),
			zap.String("target", adm.Route.UpstreamTarget),
			zap.Error(err))
		admission.WriteError(w, domain.BadGateway(service, err))
		return
	}

	rawPath := targetRawPath(adm.Route.UpstreamTarget)

	proxy := &httputil.ReverseProxy{
		Transport: f.transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.URL.Path = target.Path
			pr.Out.URL.RawPath = rawPath
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.Out.Host = target.Host
			pr.SetXForwarded()

			pr.Out.Header.Del(subjectHeader)
			if adm.Identity != nil {
				pr.Out.Header.Set(subjectHeader, adm.Identity.SubjectID)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			f.log.Warn("upstream request failed",
				zap.String("service", service),
				zap.String("request_id", r.Header.Get("X-Request-ID")),
				zap.Error(err))
			admission.WriteError(w, domain.BadGateway(service, err))
		},
	}
	proxy.ServeHTTP(w, r)
}

// targetRawPath extrai o path de um alvo absoluto sem decodificar nada.
func targetRawPath(target string) string {
	rest := target
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+len("://"):]
	}
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return ""
	}
	rest = rest[i:]
	if j := strings.IndexAny(rest, "?#"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
