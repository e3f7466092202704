// Package api exposes the transcript service over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/ratelimit"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
	"github.com/gin-gonic/gin"
)

// Health reports on the durable cache backend.
type Health interface {
	DurableName() string
	DurableStatus(ctx context.Context) string
	FailClosed() bool
}

// Deps wires a Server.
type Deps struct {
	Transcripts       *transcript.Service
	Verifier          *auth.Verifier
	WritePolicy       *ratelimit.Policy
	Health            Health
	TrustProxyHeaders bool
	AllowedOrigins    []string
	Version           string
}

// Server routes HTTP requests to the service.
type Server struct {
	deps   Deps
	engine *gin.Engine
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), securityHeaders(), cors(deps.AllowedOrigins), accessLog())

	s := &Server{deps: deps, engine: r}
	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/metrics", s.metrics)
	r.POST("/transcript", s.transcript)
	r.GET("/user/me", s.userMe)
	r.POST("/transcript/invalidate", s.invalidate)
	return s
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "go_transcript",
		"version": s.deps.Version,
	})
}

func (s *Server) health(c *gin.Context) {
	out := gin.H{"status": "ok", "db_enabled": false, "db_ok": false}
	if h := s.deps.Health; h != nil {
		status := h.DurableStatus(c.Request.Context())
		out["db_enabled"] = status != "disabled"
		out["db_ok"] = status == "ok"
		out["db_backend"] = h.DurableName()
		out["fail_closed"] = h.FailClosed()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) metrics(c *gin.Context) {
	c.String(http.StatusOK, engine.FormatMetrics())
}
