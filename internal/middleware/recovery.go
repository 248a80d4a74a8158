package middleware

import (
	"net/http"

	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery converts a handler panic into a 500 with the standard error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.OrNop(nil).Error("Recovered from panic",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("correlation_id", GetCorrelationID(c)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": constants.MsgInternalError})
	})
}
