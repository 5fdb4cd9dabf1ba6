package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Gateway junta as peças do núcleo de admissão com as dependências de processo
// (Redis, Prometheus, logger). Nada aqui decide admissão.
type Gateway struct {
	cfg Config
	log *zap.Logger

	Router    *infra.Router
	Validator *infra.Validator
	// Signer é nil quando auth.jwt_secret não está configurado.
	Signer   *infra.SignedTokens
	Pipeline *application.Pipeline
	Memory   *infra.MemoryStatsStore
	// Pool é nil quando concurrency.max é zero.
	Pool     *infra.ChanPool
	Registry *prometheus.Registry

	rdb   *redis.Client
	async *infra.AsyncStatsStore
}

func NewGateway(ctx context.Context, cfg Config, log *zap.Logger) (*Gateway, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{cfg: cfg, log: log, Registry: prometheus.NewRegistry()}

	routes := cfg.RouteEntries()
	router, err := infra.NewRouter(routes)
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	g.Router = router

	var vopts []infra.ValidatorOption
	if len(cfg.Auth.PublicPaths) > 0 {
		vopts = append(vopts, infra.WithPublicPaths(cfg.Auth.PublicPaths...))
	}
	if cfg.Auth.JWTSecret != "" {
		signer, err := infra.NewSignedTokens(cfg.Auth.JWTSecret, infra.WithIssuer(cfg.Auth.JWTIssuer))
		if err != nil {
			return nil, err
		}
		g.Signer = signer
		vopts = append(vopts, infra.WithTokenVerifier(signer))
	}
	validator, err := infra.NewValidator(cfg.Identities(), vopts...)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	g.Validator = validator

	limits := application.NewRateLimitService(routes, cfg.RateLimit, func(rpm, burst int) domain.LimiterStore {
		return infra.NewStore(rpm, burst, infra.WithShards(cfg.LimiterShards))
	})

	if cfg.Concurrency.Max > 0 {
		g.Pool = infra.NewChanPool(cfg.Concurrency.Max)
	}

	stats, err := g.buildStats(ctx, limits)
	if err != nil {
		_ = g.Close(context.Background())
		return nil, err
	}

	g.Pipeline = &application.Pipeline{
		Routes:   router,
		Identity: validator,
		Limits:   limits,
		Stats:    stats,
	}
	return g, nil
}

func (g *Gateway) buildStats(ctx context.Context, limits application.RateLimitService) (domain.StatsStore, error) {
	ns := g.cfg.Stats.Namespace

	if err := g.Registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	prom, err := infra.NewPrometheusStatsStore(g.Registry, ns)
	if err != nil {
		return nil, fmt.Errorf("prometheus: %w", err)
	}
	if err := infra.RegisterClientsGauge(g.Registry, ns, limits.ClientCount); err != nil {
		return nil, fmt.Errorf("prometheus: %w", err)
	}

	g.Memory = infra.NewMemoryStatsStore(infra.WithTrackKeys(g.cfg.Stats.TrackKeys))
	sinks := infra.MultiStatsStore{g.Memory, infra.NewLogStatsStore(g.log), prom}

	rc := g.cfg.Stats.Redis
	if !rc.Enabled {
		return sinks, nil
	}

	g.rdb = redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := pingRedis(ctx, g.rdb, g.log); err != nil {
		return nil, fmt.Errorf("redis stats ping: %w", err)
	}
	redisStats := infra.NewRedisStatsStore(g.rdb,
		infra.WithStatsPrefix(rc.Prefix),
		infra.WithStatsTTL(rc.TTL),
		infra.WithStatsBucket(rc.Bucket),
		infra.WithStatsTrackKeys(rc.TrackKeys),
	)
	g.async = infra.NewAsyncStatsStore(redisStats, g.cfg.Stats.Buffer,
		infra.WithErrorHandler(func(err error) {
			g.log.Warn("stats write failed", zap.Error(err))
		}),
	)
	return append(sinks, g.async), nil
}

func pingRedis(ctx context.Context, rdb *redis.Client, log *zap.Logger) error {
	op := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	return backoff.RetryNotify(op, bo, func(err error, wait time.Duration) {
		log.Warn("redis not ready", zap.Error(err), zap.Duration("retry_in", wait))
	})
}

// Handler é a cadeia do plano de dados: admissão -> concorrência -> upstream.
func (g *Gateway) Handler() http.Handler {
	h := newForwarder(g.log)
	if g.Pool != nil {
		h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
			Pool:           g.Pool,
			AcquireTimeout: g.cfg.Concurrency.AcquireTimeout,
		})(h)
	}
	return admission.Middleware(admission.Options{
		Pipeline:            g.Pipeline,
		KeyHeader:           g.cfg.Client.KeyHeader,
		TrustXForwardedFor:  g.cfg.Client.TrustXFF,
		AddRateLimitHeaders: g.cfg.Client.RateLimitHeaders,
	})(h)
}

// RunJanitor remove buckets ociosos a cada janitor.interval até ctx encerrar.
func (g *Gateway) RunJanitor(ctx context.Context) {
	interval := g.cfg.Janitor.Interval
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := g.Pipeline.Limits.EvictStale(g.cfg.Janitor.MaxAge); n > 0 {
				g.log.Debug("evicted idle clients", zap.Int("removed", n))
			}
		}
	}
}

// DroppedEvents conta eventos que não chegaram ao Redis por fila cheia.
func (g *Gateway) DroppedEvents() int64 {
	if g.async == nil {
		return 0
	}
	return g.async.Dropped()
}

// Close esvazia a fila de estatísticas e fecha o Redis.
func (g *Gateway) Close(ctx context.Context) error {
	var errs []error
	if g.async != nil {
		errs = append(errs, g.async.Close(ctx))
	}
	if g.rdb != nil {
		errs = append(errs, g.rdb.Close())
	}
	return errors.Join(errs...)
}
