package application

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// Request é o que a camada de transporte extrai de uma requisição.
type Request struct {
	Path   string
	Method string
	// Token é o valor do header Authorization, com ou sem "Bearer ". Vazio = ausente.
	Token string
	// ClientKey identifica o cliente quando não há identidade (normalmente o IP).
	ClientKey string
	RequestID string
}

// Admission é o resultado de uma requisição admitida, entregue ao encaminhamento.
type Admission struct {
	Route    domain.ResolvedRoute
	Identity *domain.Identity
	Decision domain.Decision
	// Key é a chave usada no rate limit.
	Key domain.Key
}

// Pipeline compõe resolução de rota, identidade e rate limit.
//
// A ordem é fixa: rota inexistente é rejeitada antes de gastar autenticação ou
// orçamento de rate limit, e falha de autenticação não consome token.
type Pipeline struct {
	Routes   domain.RouteResolver
	Identity domain.IdentityValidator
	Limits   RateLimitService
	// Stats recebe um evento por requisição. Pode ser nil.
	Stats domain.StatsStore
	// Now é usado só para medir a duração da decisão; padrão time.Now.
	Now func() time.Time
}

// Admit decide se a requisição segue para o upstream.
// Em caso de rejeição o erro é sempre um *domain.GatewayError.
func (p *Pipeline) Admit(ctx context.Context, req Request) (Admission, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	adm, gerr := p.decide(req)

	if p.Stats != nil {
		ev := domain.StatsEvent{
			Key:       adm.Key,
			Outcome:   domain.OutcomeOf(gerr),
			Method:    req.Method,
			Path:      req.Path,
			Service:   adm.Route.ServiceName,
			RequestID: req.RequestID,
			At:        start,
			Duration:  now().Sub(start),
		}
		if ev.Key == "" {
			ev.Key = clientKey(req)
		}
		if adm.Identity != nil {
			ev.Subject = adm.Identity.SubjectID
		}
		// best-effort: erro de estatística nunca muda a decisão
		_ = p.Stats.Record(ctx, ev)
	}

	if gerr != nil {
		return adm, gerr
	}
	return adm, nil
}

func (p *Pipeline) decide(req Request) (Admission, *domain.GatewayError) {
	var adm Admission

	route, ok := p.Routes.Resolve(req.Path)
	if !ok {
		return adm, domain.NotFound(req.Path)
	}
	adm.Route = route

	if !p.Routes.MethodAllowed(req.Path, req.Method) {
		return adm, domain.MethodNotAllowed(req.Method, req.Path)
	}

	// RequiredRole implica autenticação, mesmo sem RequiresAuth.
	if route.RequiresAuth || route.RequiredRole != "" {
		if p.Identity == nil {
			return adm, domain.Internal("route requires authentication but no identity validator is configured")
		}
		id, err := p.Identity.ValidateRequest(req.Path, req.Token)
		if err != nil {
			return adm, domain.AuthFailure(err)
		}
		adm.Identity = id
		if route.RequiredRole != "" {
			// path público não produz identidade; papel exigido sem sujeito é negado
			if id == nil {
				return adm, domain.AuthFailure(domain.ErrMissingToken)
			}
			if err := p.Identity.Authorize(*id, route.RequiredRole); err != nil {
				return adm, domain.AuthFailure(err)
			}
		}
	}

	adm.Key = rateKey(adm.Identity, req)
	adm.Decision = p.Limits.Decide(route.Index, adm.Key)
	if !adm.Decision.Allowed {
		return adm, domain.RateLimited(adm.Decision)
	}
	return adm, nil
}

// rateKey usa o sujeito autenticado quando existe e o cliente (IP) como fallback.
// Os prefixos evitam que um sujeito chamado "10.0.0.1" divida bucket com esse IP.
func rateKey(id *domain.Identity, req Request) domain.Key {
	if id != nil && id.SubjectID != "" {
		return domain.Key("sub:" + id.SubjectID)
	}
	return clientKey(req)
}

func clientKey(req Request) domain.Key {
	if req.ClientKey == "" {
		return "ip:unknown"
	}
	return domain.Key("ip:" + req.ClientKey)
}
