package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS lets status dashboards read the ops endpoints. The surface is
// read-only, so only GET and preflight are allowed and credentials are not.
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Request-Id", "traceparent"},
		MaxAge:       10 * time.Minute,
	})
}
