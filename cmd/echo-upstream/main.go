// Comando echo-upstream sobe um upstream falso em várias portas para validar o
// gateway manualmente com as rotas padrão (8001-8009).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultAddrs = ":8001,:8002,:8003,:8004,:8005,:8006,:8007,:8008,:8009"

func newEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.NoRoute(func(c *gin.Context) {
		log.Info("request received",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("host", c.Request.Host))
		c.JSON(http.StatusOK, gin.H{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
			"host":       c.Request.Host,
			"subject":    c.GetHeader("X-Subject-ID"),
			"request_id": c.GetHeader("X-Request-ID"),
		})
	})
	return r
}

func main() {
	log, _ := zap.NewDevelopment()
	defer func() { _ = log.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	addrs := defaultAddrs
	if v := os.Getenv("ECHO_ADDRS"); v != "" {
		addrs = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := newEngine(log)
	var wg sync.WaitGroup
	for _, addr := range strings.Split(addrs, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
		wg.Add(2)
		go func() {
			defer wg.Done()
			log.Info("echo upstream listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", zap.String("addr", addr), zap.Error(err))
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	wg.Wait()
}
