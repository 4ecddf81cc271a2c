package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/policy"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Identity, error)
}

// Authenticate resolves a bearer token to an identity. Requests without a
// usable token continue anonymously, except that a bad token on a route the
// policy table protects is refused at once.
func Authenticate(auth Authenticator, table *policy.Table, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if table.RequiresAuth(c.Request.Method, c.Request.URL.Path) {
				log.Debug().Str("path", c.Request.URL.Path).Msg("rejected invalid bearer token")
				AbortWithError(c, apperr.ErrInvalidToken)
				return
			}
			c.Next()
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
