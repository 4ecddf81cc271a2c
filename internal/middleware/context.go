package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/models"
)

const identityKey = "identity"

// setIdentity attaches id to the request unless one is already present.
func setIdentity(c *gin.Context, id models.Identity) bool {
	if _, exists := c.Get(identityKey); exists {
		return false
	}
	c.Set(identityKey, id)
	return true
}

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

// AbortWithError renders err as the JSON error body and stops the chain.
// Unclassified errors are rendered as a generic internal error.
func AbortWithError(c *gin.Context, err error) {
	e := apperr.From(err)
	c.AbortWithStatusJSON(e.Status, gin.H{
		"error":   e.Code,
		"message": e.Message,
	})
}
