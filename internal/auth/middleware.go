package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/pkg/apperrors"
)

const identityKey = "auth.identity"

// bearerToken extracts the token from the Authorization header, falling back
// to the token query parameter used by websocket clients.
func bearerToken(c *gin.Context) string {
	if after, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return c.Query("token")
}

// RequireAuth rejects requests without a valid token and stores the caller's
// Identity on the context.
func (s *Service) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := s.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			s.logger.Warn("Unauthorized request", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated caller holds role.
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
			return
		}
		if err := CheckPermission(identity.Role, role).Err(); err != nil {
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller set by RequireAuth.
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok
}

// SetIdentity attaches an identity; used by tests and trusted internal callers.
func SetIdentity(c *gin.Context, identity *Identity) {
	c.Set(identityKey, identity)
}
