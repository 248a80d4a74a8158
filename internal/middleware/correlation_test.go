package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name                 string
		requestCorrelationID string
		expectNewID          bool
	}{
		{
			name:                 "New ID generated when header not present",
			requestCorrelationID: "",
			expectNewID:          true,
		},
		{
			name:                 "Existing ID preserved when header present",
			requestCorrelationID: "test-correlation-id-123",
			expectNewID:          false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CorrelationIDMiddleware())

			var fromGin, fromCtx string
			router.GET("/test", func(c *gin.Context) {
				fromGin = GetCorrelationID(c)
				fromCtx = CorrelationIDFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.requestCorrelationID != "" {
				req.Header.Set(CorrelationIDHeader, tt.requestCorrelationID)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			responseCorrelationID := w.Header().Get(CorrelationIDHeader)
			assert.NotEmpty(t, responseCorrelationID)
			assert.Equal(t, responseCorrelationID, fromGin)
			assert.Equal(t, responseCorrelationID, fromCtx)

			if tt.expectNewID {
				assert.Len(t, responseCorrelationID, 36)
			} else {
				assert.Equal(t, tt.requestCorrelationID, responseCorrelationID)
			}
		})
	}
}

func TestLogWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "abc")
	assert.NotNil(t, LogWithCorrelationID(ctx, zap.NewNop()))
	assert.NotNil(t, LogWithCorrelationID(ctx, nil))
	assert.Equal(t, "", CorrelationIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
