package domain

// DefaultMethods são os métodos aceitos por uma rota criada com NewRoute.
var DefaultMethods = []string{"GET", "POST", "PUT", "DELETE"}

// RateLimitOverride substitui o rate limit global para uma rota.
// BurstSize zero herda o burst global.
type RateLimitOverride struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `mapstructure:"burst_size" json:"burst_size"`
}

// RouteEntry mapeia um prefixo de path para um serviço upstream.
//
// A ordem das entradas é significativa: a primeira entrada ativa cujo prefixo
// casa vence, mesmo que exista outra com prefixo mais longo.
type RouteEntry struct {
	PathPrefix   string             `json:"path_prefix"`
	UpstreamURL  string             `json:"upstream_url"`
	ServiceName  string             `json:"service_name"`
	RequiresAuth bool               `json:"requires_auth"`
	RequiredRole string             `json:"required_role,omitempty"`
	Methods      []string           `json:"methods"`
	Active       bool               `json:"active"`
	RateLimit    *RateLimitOverride `json:"rate_limit,omitempty"`
}

// NewRoute cria uma rota ativa, sem autenticação, aceitando DefaultMethods.
func NewRoute(prefix, upstreamURL, service string) RouteEntry {
	methods := make([]string, len(DefaultMethods))
	copy(methods, DefaultMethods)
	return RouteEntry{
		PathPrefix:  prefix,
		UpstreamURL: upstreamURL,
		ServiceName: service,
		Methods:     methods,
		Active:      true,
	}
}

// WithAuth retorna uma cópia da rota exigindo autenticação.
func (r RouteEntry) WithAuth() RouteEntry {
	r.RequiresAuth = true
	return r
}

// DefaultRoutes é a tabela de rotas usada quando nenhuma configuração é informada.
func DefaultRoutes() []RouteEntry {
	return []RouteEntry{
		NewRoute("/users", "http://localhost:8001", "user-service"),
		NewRoute("/products", "http://localhost:8002", "product-service"),
		NewRoute("/orders", "http://localhost:8003", "order-service").WithAuth(),
		NewRoute("/payments", "http://localhost:8004", "payment-service").WithAuth(),
		NewRoute("/inventory", "http://localhost:8005", "inventory-service"),
		NewRoute("/notifications", "http://localhost:8006", "notification-service"),
		NewRoute("/shipping", "http://localhost:8007", "shipping-service"),
		NewRoute("/analytics", "http://localhost:8008", "analytics-service"),
		NewRoute("/reviews", "http://localhost:8009", "review-service"),
	}
}

// ResolvedRoute é o resultado da resolução de uma rota para uma requisição.
// Pertence à requisição que a produziu.
type ResolvedRoute struct {
	// UpstreamTarget é UpstreamURL concatenado com UpstreamPath, sem normalização.
	UpstreamTarget string
	ServiceName    string
	RequiresAuth   bool
	RequiredRole   string
	UpstreamPath   string

	PathPrefix string
	// Index é a posição da rota na ordem de declaração.
	Index int
}

// RouteResolver resolve paths para rotas configuradas.
type RouteResolver interface {
	Resolve(path string) (ResolvedRoute, bool)
	MethodAllowed(path, method string) bool
}
