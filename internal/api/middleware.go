package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"exec-core/pkg/logger"
)

// RequestLogger logs one line per request with latency and status.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			logger.Pair("method", c.Request.Method),
			logger.Pair("path", c.Request.URL.Path),
			logger.Pair("status", c.Writer.Status()),
			logger.Pair("latency_ms", time.Since(start).Milliseconds()))
	}
}

// CORSMiddleware allows browser dashboards on other origins to read the API.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
