package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domauth "github.com/wick-sh/wick/internal/domain/auth"
	"github.com/wick-sh/wick/internal/infrastructure/auth"
	"github.com/wick-sh/wick/internal/shared/logger"
	"github.com/wick-sh/wick/internal/shared/utils"
)

// Context keys set by the auth middleware.
const (
	ContextKeyPrincipal = "principal"
	ContextKeySubject   = "subject"
	ContextKeyRole      = "role"
)

type AuthMiddleware struct {
	jwtService *auth.JWTService
	logger     logger.Interface
}

func NewAuthMiddleware(jwtService *auth.JWTService, logger logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     logger,
	}
}

// RequireAuth verifies the bearer token and attaches a domain principal to
// the request context. Admin-role users become system principals;
// owner-role users get full access to their organization; consumer tokens
// become consumer principals scoped to themselves.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing authorization token")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := m.jwtService.Verify(parts[1])
		if err != nil {
			m.logger.Warnw("failed to verify token", "error", err)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		if claims.TokenType != auth.TokenTypeAccess {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid token type")
			c.Abort()
			return
		}

		principal := principalFromClaims(claims)

		c.Set(ContextKeyPrincipal, principal)
		c.Set(ContextKeySubject, claims.Subject)
		c.Set(ContextKeyRole, claims.Role)

		c.Next()
	}
}

func principalFromClaims(claims *auth.Claims) *domauth.Principal {
	if claims.Kind == auth.PrincipalKindConsumer {
		return domauth.NewConsumerPrincipal(claims.Subject, claims.OwnerKey)
	}
	if claims.Role == domauth.RoleAdmin {
		return domauth.NewSystemPrincipal()
	}
	return domauth.NewUserPrincipal(claims.Subject, []domauth.Permission{
		domauth.NewOwnerPermission(claims.OwnerKey, domauth.AccessAll),
	})
}

// PrincipalFromContext returns the domain principal attached by RequireAuth.
func PrincipalFromContext(c *gin.Context) (*domauth.Principal, bool) {
	v, ok := c.Get(ContextKeyPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*domauth.Principal)
	return p, ok
}
