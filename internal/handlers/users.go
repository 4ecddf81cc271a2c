package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h HandlerSet) UpdateRole(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errBadRequest)
		return
	}

	p, err := h.auth.UpdateRole(c.Request.Context(), caller, c.Param("id"), req.Role)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}
