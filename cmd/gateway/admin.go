package main

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminHandler é o plano de administração. Escuta em endereço separado, não
// passa pelo núcleo de admissão e não tem autenticação própria: o default de
// admin_listen é só loopback.
func (g *Gateway) AdminHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.Registry, promhttp.HandlerOpts{})))
	r.GET("/routes", g.listRoutes)
	r.GET("/clients", g.clients)
	r.GET("/stats", g.stats)
	r.GET("/events", g.events)
	if g.cfg.Auth.IssueTokens && g.Signer != nil {
		r.POST("/tokens", g.issueToken)
	}
	return r
}

func (g *Gateway) listRoutes(c *gin.Context) {
	routes := g.Router.Routes()
	if c.Query("active") == "true" {
		routes = g.Router.ActiveRoutes()
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes, "count": len(routes)})
}

func (g *Gateway) clients(c *gin.Context) {
	resp := gin.H{"tracked_clients": g.Pipeline.Limits.ClientCount()}
	if g.Pool != nil {
		resp["in_flight"] = g.Pool.InFlight()
		resp["capacity"] = g.Pool.Capacity()
	}
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total":               g.Memory.Total(),
		"by_route":            g.Memory.ByRoute(),
		"by_key":              g.Memory.ByKey(),
		"rejection_rate":      g.Memory.RejectionRate(),
		"average_decision_us": g.Memory.AverageDuration().Microseconds(),
		"dropped_events":      g.DroppedEvents(),
	})
}

// events lista os eventos recentes, filtrando por ?path= (prefixo) ou ?outcome=.
func (g *Gateway) events(c *gin.Context) {
	var events []domain.StatsEvent
	switch {
	case c.Query("path") != "":
		events = g.Memory.EventsByPath(c.Query("path"))
	case c.Query("outcome") != "":
		events = g.Memory.EventsByOutcome(domain.Outcome(c.Query("outcome")))
	default:
		events = g.Memory.Events()
	}
	if events == nil {
		events = []domain.StatsEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

type issueTokenRequest struct {
	Subject string   `json:"subject" binding:"required"`
	Roles   []string `json:"roles" binding:"required,min=1"`
	TTL     string   `json:"ttl"`
}

// issueToken emite um token assinado. Só é registrado com auth.issue_tokens
// e auth.jwt_secret configurados.
func (g *Gateway) issueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ttl := time.Hour
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl must be a positive duration"})
			return
		}
		ttl = d
	}

	token, err := g.Signer.Issue(req.Subject, req.Roles, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(ttl.Seconds()),
	})
}
