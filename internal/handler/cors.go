package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// OriginPolicy decides which browser origins may use the session cookie.
// Requests without an Origin header and same-host requests always pass.
type OriginPolicy struct {
	allowed map[string]bool
}

// NewOriginPolicy allows exactly the listed origins, e.g. "http://localhost:3000".
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		p.allowed[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return p
}

func (p *OriginPolicy) listed(origin string) bool {
	return p.allowed[strings.TrimRight(strings.ToLower(origin), "/")]
}

// Permits reports whether r may be served.
func (p *OriginPolicy) Permits(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.listed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// Middleware answers preflights and adds credentialed CORS headers for listed
// origins. Requests from any other cross-site origin are refused.
func (p *OriginPolicy) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Vary", "Origin")
		}
		if !p.Permits(c.Request) {
			respondError(c, http.StatusForbidden, "origin_not_allowed", "Origin not allowed")
			c.Abort()
			return
		}

		if origin != "" && p.listed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Upgrader returns a websocket upgrader applying the same origin rules.
func (p *OriginPolicy) Upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     p.Permits,
	}
}
