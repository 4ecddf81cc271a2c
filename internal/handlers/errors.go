package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/middleware"
)

var (
	errUnauthenticated = apperr.ErrUnauthenticated
	errBadRequest      = apperr.New(apperr.KindValidation, "invalid_request", "invalid request")
)

// writeError logs failures the client cannot act on and renders the
// standard error body.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Status >= 500 {
		h.log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	middleware.AbortWithError(c, e)
}
