package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requestBaseURL rebuilds scheme://host of the incoming request for deployments without
// server.public_url, which production requires. A forwarded scheme other than http or https
// is ignored.
func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	forwarded, _, _ := strings.Cut(c.GetHeader("X-Forwarded-Proto"), ",")
	switch proto := strings.ToLower(strings.TrimSpace(forwarded)); proto {
	case "http", "https":
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
