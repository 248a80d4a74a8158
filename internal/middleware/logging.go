package middleware

import (
	"time"

	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"X-Api-Key":     true,
}

// RequestLoggingMiddleware logs one line per completed request. In verbose
// mode the request headers are included, with credentials redacted. Request
// and response bodies are never logged since they carry recipient addresses.
func RequestLoggingMiddleware(verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log := logger.OrNop(nil)
		fields := []zap.Field{
			zap.String("correlation_id", GetCorrelationID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(startTime)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if verbose {
			fields = append(fields, zap.Any("headers", redactHeaders(c)))
		}

		log.Info("Request completed", fields...)

		for _, err := range c.Errors {
			log.Error("Request error",
				zap.String("correlation_id", GetCorrelationID(c)),
				zap.Error(err.Err),
				zap.Uint64("type", uint64(err.Type)),
			)
		}
	}
}

func redactHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if redactedHeaders[key] {
			headers[key] = "[REDACTED]"
			continue
		}
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
