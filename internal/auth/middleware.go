package auth

import (
	"errors"
	"net/http"

	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/helpers"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerKey = "caller"

// RequireAuth is a middleware that authenticates the bearer token and stores
// the Caller in the gin context.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := helpers.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": constants.MsgMissingCredential})
			c.Abort()
			return
		}

		caller, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": constants.MsgInvalidCredential})
				c.Abort()
				return
			}
			a.logger.Error("Failed to authenticate request",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": constants.MsgInternalError})
			c.Abort()
			return
		}

		c.Set(callerKey, caller)
		c.Set(constants.IdentityKey, caller.Identity)
		c.Set(constants.IsAdminKey, caller.IsAdmin)
		c.Set("authType", constants.AuthTypeJWT)
		c.Next()
	}
}

// RequireAdminRole is a middleware that must run after RequireAuth and
// rejects non-admin callers with 403.
func (a *Authenticator) RequireAdminRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := CallerFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": constants.MsgMissingCredential})
			c.Abort()
			return
		}

		if err := RequireAdmin(caller); err != nil {
			a.logger.Debug("Admin role required", zap.String("identity", caller.Identity))
			c.JSON(http.StatusForbidden, gin.H{"error": constants.MsgForbidden})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CallerFromContext returns the Caller stored by RequireAuth.
func CallerFromContext(c *gin.Context) (Caller, error) {
	value, exists := c.Get(callerKey)
	if !exists {
		return Caller{}, ErrNoCaller
	}
	caller, ok := value.(Caller)
	if !ok {
		return Caller{}, ErrNoCaller
	}
	return caller, nil
}
