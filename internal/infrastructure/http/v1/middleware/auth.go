package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"parcelsort/internal/core/apperror"
	appctx "parcelsort/internal/core/context"
)

// HeaderSessionID carries the scanning session (shift) of the operator.
const HeaderSessionID = "X-Session-ID"

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth validates the bearer token and stores the actor, with its session,
// in the request context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		actor, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		actor.SessionID = strings.TrimSpace(c.GetHeader(HeaderSessionID))
		if actor.SessionID == "" {
			actor.SessionID = DefaultSessionID(time.Now())
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Set("actor_id", actor.ID)

		c.Next()
	}
}

// DefaultSessionID names the automatic per-day shift used when the
// scanner sends no session header.
func DefaultSessionID(now time.Time) string {
	return "SHIFT-" + now.UTC().Format("2006-01-02") + "-AUTO"
}

// RequireRole middleware checks if the actor has one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetActor(ctx) == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		for _, role := range roles {
			if appctx.HasRole(ctx, role) {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
