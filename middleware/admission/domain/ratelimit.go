package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

type Key string

// RateLimit são os parâmetros de um limiter: requisições por minuto e rajada.
type RateLimit struct {
	RequestsPerMinute int  `mapstructure:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int  `mapstructure:"burst_size" json:"burst_size"`
	Enabled           bool `mapstructure:"enabled" json:"enabled"`
}

// DefaultRateLimit: 60 req/min com rajada de 10.
func DefaultRateLimit() RateLimit {
	return RateLimit{RequestsPerMinute: 60, BurstSize: 10, Enabled: true}
}

// LimiterStore mantém um token bucket por chave (ex: IP, sujeito autenticado).
// A implementação pode manter cache, shards, etc.
type LimiterStore interface {
	Allow(Key) Decision
}

type Decision struct {
	Allowed bool
	// Remaining é o número inteiro de tokens que sobraram após a decisão.
	Remaining int
	// Limit é o número configurado de requisições por minuto.
	Limit int
	// ResetSeconds é uma aproximação (60 / rpm) e não o tempo exato até o próximo token.
	// Zero quando a requisição foi permitida.
	ResetSeconds int
}
