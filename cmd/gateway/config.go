package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/spf13/viper"
)

// Config é a configuração completa do binário gateway.
//
// Fontes, em ordem de precedência: variáveis GATEWAY_* (ex:
// GATEWAY_RATE_LIMIT_REQUESTS_PER_MINUTE), arquivo (--config) e defaults.
// Rotas e tokens só podem vir do arquivo.
type Config struct {
	Listen      string `mapstructure:"listen"`
	AdminListen string `mapstructure:"admin_listen"`

	Routes    []RouteConfig    `mapstructure:"routes"`
	RateLimit domain.RateLimit `mapstructure:"rate_limit"`
	// LimiterShards é o número de partições de cada store de buckets.
	LimiterShards int `mapstructure:"limiter_shards"`

	Auth        AuthConfig        `mapstructure:"auth"`
	Client      ClientConfig      `mapstructure:"client"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Janitor     JanitorConfig     `mapstructure:"janitor"`
}

// RouteConfig é uma rota como escrita no arquivo. Active ausente = true;
// Methods ausente = domain.DefaultMethods.
type RouteConfig struct {
	PathPrefix   string                    `mapstructure:"path_prefix"`
	UpstreamURL  string                    `mapstructure:"upstream_url"`
	ServiceName  string                    `mapstructure:"service_name"`
	RequiresAuth bool                      `mapstructure:"requires_auth"`
	RequiredRole string                    `mapstructure:"required_role"`
	Methods      []string                  `mapstructure:"methods"`
	Active       *bool                     `mapstructure:"active"`
	RateLimit    *domain.RateLimitOverride `mapstructure:"rate_limit"`
}

func (rc RouteConfig) entry() domain.RouteEntry {
	rt := domain.NewRoute(rc.PathPrefix, rc.UpstreamURL, rc.ServiceName)
	rt.RequiresAuth = rc.RequiresAuth
	rt.RequiredRole = rc.RequiredRole
	if len(rc.Methods) > 0 {
		rt.Methods = slices.Clone(rc.Methods)
	}
	if rc.Active != nil {
		rt.Active = *rc.Active
	}
	rt.RateLimit = rc.RateLimit
	return rt
}

// TokenConfig fica em lista (e não em map) porque o viper normaliza chaves de
// map para minúsculas, o que mudaria o próprio token.
type TokenConfig struct {
	Token   string   `mapstructure:"token"`
	Subject string   `mapstructure:"subject"`
	Roles   []string `mapstructure:"roles"`
}

type AuthConfig struct {
	PublicPaths []string      `mapstructure:"public_paths"`
	Tokens      []TokenConfig `mapstructure:"tokens"`
	// JWTSecret habilita tokens assinados (HS256). Vazio = desabilitado.
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
	// IssueTokens expõe POST /tokens no plano de administração. Exige JWTSecret.
	IssueTokens bool `mapstructure:"issue_tokens"`
}

type ClientConfig struct {
	KeyHeader        string `mapstructure:"key_header"`
	TrustXFF         bool   `mapstructure:"trust_xff"`
	RateLimitHeaders bool   `mapstructure:"rate_limit_headers"`
}

type ConcurrencyConfig struct {
	// Max zero desabilita o limite.
	Max            int           `mapstructure:"max"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

type StatsConfig struct {
	Namespace string `mapstructure:"namespace"`
	// Buffer é o tamanho da fila do envio assíncrono para o Redis.
	Buffer    int         `mapstructure:"buffer"`
	TrackKeys bool        `mapstructure:"track_keys"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	Bucket    string        `mapstructure:"bucket"`
	TrackKeys bool          `mapstructure:"track_keys"`
}

type JanitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("admin_listen", "127.0.0.1:9090")
	v.SetDefault("limiter_shards", 32)

	def := domain.DefaultRateLimit()
	v.SetDefault("rate_limit.requests_per_minute", def.RequestsPerMinute)
	v.SetDefault("rate_limit.burst_size", def.BurstSize)
	v.SetDefault("rate_limit.enabled", def.Enabled)

	v.SetDefault("auth.public_paths", domain.DefaultPublicPaths)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "admission-gateway")
	v.SetDefault("auth.issue_tokens", false)

	v.SetDefault("client.key_header", "")
	v.SetDefault("client.trust_xff", false)
	v.SetDefault("client.rate_limit_headers", true)

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.acquire_timeout", time.Duration(0))

	v.SetDefault("stats.namespace", "gateway")
	v.SetDefault("stats.buffer", 1024)
	v.SetDefault("stats.track_keys", false)
	v.SetDefault("stats.redis.enabled", false)
	v.SetDefault("stats.redis.addr", "")
	v.SetDefault("stats.redis.password", "")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.redis.prefix", "admission:stats")
	v.SetDefault("stats.redis.ttl", 24*time.Hour)
	v.SetDefault("stats.redis.bucket", "minute")
	v.SetDefault("stats.redis.track_keys", false)

	v.SetDefault("janitor.interval", time.Minute)
	v.SetDefault("janitor.max_age", 10*time.Minute)
}

// LoadConfig lê defaults, o arquivo em path (opcional) e as variáveis GATEWAY_*.
// Sem auth.tokens nenhum token estático é aceito.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RouteEntries devolve as rotas configuradas, ou domain.DefaultRoutes se nenhuma foi informada.
func (c Config) RouteEntries() []domain.RouteEntry {
	if len(c.Routes) == 0 {
		return domain.DefaultRoutes()
	}
	out := make([]domain.RouteEntry, len(c.Routes))
	for i, rc := range c.Routes {
		out[i] = rc.entry()
	}
	return out
}

func (c Config) Identities() map[string]domain.Identity {
	out := make(map[string]domain.Identity, len(c.Auth.Tokens))
	for _, tc := range c.Auth.Tokens {
		out[tc.Token] = domain.Identity{SubjectID: tc.Subject, Roles: slices.Clone(tc.Roles)}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return errors.New("listen address is required")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("rate_limit.requests_per_minute must be > 0")
	}
	if c.RateLimit.BurstSize <= 0 {
		return errors.New("rate_limit.burst_size must be > 0")
	}
	for i, rt := range c.RouteEntries() {
		if rt.PathPrefix == "" || rt.UpstreamURL == "" {
			return fmt.Errorf("routes[%d]: path_prefix and upstream_url are required", i)
		}
		if rt.RequiredRole != "" && !rt.RequiresAuth {
			return fmt.Errorf("routes[%d]: required_role needs requires_auth=true", i)
		}
		if rt.RateLimit != nil && rt.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("routes[%d]: rate_limit.requests_per_minute must be > 0", i)
		}
	}
	seen := make(map[string]bool, len(c.Auth.Tokens))
	for i, tc := range c.Auth.Tokens {
		if tc.Token == "" || tc.Subject == "" || len(tc.Roles) == 0 {
			return fmt.Errorf("auth.tokens[%d]: token, subject and roles are required", i)
		}
		if seen[tc.Token] {
			return fmt.Errorf("auth.tokens[%d]: duplicated token", i)
		}
		seen[tc.Token] = true
	}
	if c.Auth.IssueTokens && c.Auth.JWTSecret == "" {
		return errors.New("auth.issue_tokens requires auth.jwt_secret")
	}
	if c.Stats.Redis.Enabled && strings.TrimSpace(c.Stats.Redis.Addr) == "" {
		return errors.New("stats.redis.addr is required when stats.redis.enabled=true")
	}
	if c.Concurrency.Max < 0 {
		return errors.New("concurrency.max must be >= 0")
	}
	return nil
}
