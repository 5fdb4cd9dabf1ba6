package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewDevelopment()
	defer func() { _ = log.Sync() }()

	// Exemplo: injetando o núcleo de admissão diretamente no seu webserver (sem proxy).
	// As rotas padrão só servem para classificar a requisição; quem responde é o mux.
	routes := domain.DefaultRoutes()
	router, err := infra.NewRouter(routes)
	if err != nil {
		log.Fatal("routes", zap.Error(err))
	}
	validator, err := infra.NewValidator(map[string]domain.Identity{
		"valid-token-123": {SubjectID: "user-1", Roles: []string{"user"}},
		"admin-token-456": {SubjectID: "admin-1", Roles: []string{"admin", "user"}},
	})
	if err != nil {
		log.Fatal("auth", zap.Error(err))
	}
	limits := application.NewRateLimitService(routes, domain.RateLimit{RequestsPerMinute: 5, BurstSize: 10, Enabled: true},
		func(rpm, burst int) domain.LimiterStore { return infra.NewStore(rpm, burst) })

	pipeline := &application.Pipeline{
		Routes:   router,
		Identity: validator,
		Limits:   limits,
		Stats:    infra.NewLogStatsStore(log),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// janitor: o store não limpa nada sozinho
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limits.EvictStale(5 * time.Minute)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		adm, _ := admission.AdmissionFrom(r.Context())
		resp := map[string]any{
			"service": adm.Route.ServiceName,
			"target":  adm.Route.UpstreamTarget,
			"key":     adm.Key,
		}
		if adm.Identity != nil {
			resp["subject"] = adm.Identity.SubjectID
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	h := http.Handler(mux)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{Pool: infra.NewChanPool(50)})(h)
	h = admission.Middleware(admission.Options{
		Pipeline:            pipeline,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
	})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
