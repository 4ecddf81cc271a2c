package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/policy"
)

// Authorize applies the policy table to every request.
func Authorize(table *policy.Table, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var caller *models.Identity
		id, ok := IdentityFrom(c)
		if ok {
			caller = &id
		}

		decision, err := table.Evaluate(c.Request.Context(), c.Request.Method, c.Request.URL.Path, caller)
		switch decision {
		case policy.Allow:
			c.Next()
		case policy.Unauthenticated:
			AbortWithError(c, apperr.ErrUnauthenticated)
		default:
			event := log.Warn()
			if err != nil {
				event = log.Error().Err(err)
			}
			event.
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("principal_id", id.PrincipalID).
				Msg("access denied")
			AbortWithError(c, apperr.ErrForbidden)
		}
	}
}
