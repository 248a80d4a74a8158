package handlers

import (
	"net/http"

	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/cyphera/cyphera-notify/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// sendError is a helper function that combines logging and error response
// It logs the error with the given message and sends a JSON error response
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logError(c, statusCode, message, err)
	c.JSON(statusCode, ErrorResponse{Error: message})
}

func logError(c *gin.Context, statusCode int, message string, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", statusCode),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("correlation_id", middleware.GetCorrelationID(c)),
	}

	log := logger.OrNop(nil)
	if statusCode >= http.StatusInternalServerError {
		log.Error(message, fields...)
		return
	}
	log.Warn(message, fields...)
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}
