package api

import (
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	maxClientIDLen  = 128
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxClientIDLen {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Cross-Origin-Resource-Policy", "same-site")
		h.Set("Cache-Control", "no-store")
		if c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// cors answers browsers calling from an allowed origin. A "*" entry allows
// any origin without credentials.
func cors(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !(allowAll || slices.Contains(origins, origin)) {
			c.Next()
			return
		}
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		if allowAll {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			slog.String("request_id", c.GetString("request_id")),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// clientID names the caller for rate limiting: the first X-Forwarded-For hop
// when proxy headers are trusted, otherwise the peer address.
func clientID(c *gin.Context, trustProxy bool) string {
	if trustProxy {
		if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return truncate(first)
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(c.Request.RemoteAddr)
	}
	if host == "" {
		return "unknown"
	}
	return truncate(host)
}

func truncate(s string) string {
	if len(s) > maxClientIDLen {
		return s[:maxClientIDLen]
	}
	return s
}

// writeError maps a classified error onto a JSON error response. Upstream
// detail is logged, never returned.
func writeError(c *gin.Context, err error) {
	kind := engine.KindOf(err)
	status := engine.HTTPStatus(kind)
	if wait := engine.RetryAfterOf(err); wait > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	} else if kind == engine.KindQueueFull {
		c.Header("Retry-After", "1")
	}

	attrs := []any{
		slog.String("request_id", c.GetString("request_id")),
		slog.String("kind", kind.String()),
		slog.Any("error", err),
	}
	var classified *engine.Error
	if status >= http.StatusInternalServerError || !errors.As(err, &classified) {
		slog.Error("request failed", attrs...)
	} else {
		slog.Debug("request rejected", attrs...)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": engine.MessageOf(err)})
}
