package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbathio/university-management/internal/middleware"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/service"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token        string      `json:"token"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	Type         string      `json:"type"`
	ExpiresIn    int64       `json:"expiresIn"`
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Role         models.Role `json:"role"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errBadRequest)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// Register is public. A bearer token belonging to an Admin lets the caller
// choose the new principal's role.
func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errBadRequest)
		return
	}

	var caller *models.Identity
	if id, ok := middleware.IdentityFrom(c); ok {
		caller = &id
	}

	p, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, caller)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       p.ID,
		"username": p.Username,
		"role":     p.Role,
		"message":  "User registered successfully",
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errBadRequest)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

func (h HandlerSet) Validate(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"username": id.Username,
		"role":     id.Role,
	})
}

// Logout is stateless: tokens stay valid until they expire and the client
// is expected to discard them.
func (h HandlerSet) Logout(c *gin.Context) {
	if id, ok := middleware.IdentityFrom(c); ok {
		h.log.Info().Str("principal_id", id.PrincipalID).Msg("logout")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func newLoginResponse(r service.AuthResult) loginResponse {
	return loginResponse{
		Token:        r.AccessToken,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Type:         "Bearer",
		ExpiresIn:    r.ExpiresIn,
		ID:           r.Principal.ID,
		Username:     r.Principal.Username,
		Email:        r.Principal.Email,
		Role:         r.Principal.Role,
	}
}
