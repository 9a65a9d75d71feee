package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/pkg/auth"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/httputil"
)

const (
	ContextUser   = "user"
	ContextClaims = "claims"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *auth.Claims, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
	cookieName    string
}

func NewAuthMiddleware(authenticator Authenticator, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		cookieName:    cookieName,
	}
}

// Authenticate reads the session cookie (or a bearer token) and stores the
// user and claims in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.token(c)
		if token == "" {
			httputil.RespondWithError(c, errors.Unauthorized("Please log in to continue"))
			return
		}

		user, claims, err := m.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

func (m *AuthMiddleware) token(c *gin.Context) string {
	if cookie, err := c.Cookie(m.cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			httputil.RespondWithError(c, errors.Unauthorized("Please log in to continue"))
			return
		}
		if !user.HasRole(roles...) {
			httputil.RespondWithError(c, errors.Forbidden("You do not have access to this resource"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

func CurrentClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
