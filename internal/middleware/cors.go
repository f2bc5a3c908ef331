package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var defaultCORSMethods = []string{"GET", "POST", "OPTIONS"}

// CORS builds the CORS middleware. An origin of "*" allows any origin and
// patterns like "https://*.example.com" are matched as wildcards. The API key
// and request ID headers are always allowed, and the request ID is exposed to
// browser clients.
func CORS(origins, methods, headers []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  methods,
		AllowHeaders:  withHeaders(headers, "Content-Type", "Authorization", apiKeyHeader, requestIDHeader),
		ExposeHeaders: []string{requestIDHeader},
		AllowWildcard: true,
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = defaultCORSMethods
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func withHeaders(headers []string, required ...string) []string {
	out := slices.Clone(headers)
	for _, h := range required {
		if !slices.ContainsFunc(out, func(have string) bool { return http.CanonicalHeaderKey(have) == http.CanonicalHeaderKey(h) }) {
			out = append(out, h)
		}
	}
	return out
}
