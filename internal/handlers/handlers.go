package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/middleware"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/policy"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/service"
	"github.com/mbathio/university-management/internal/storage"
)

// AuthAPI is the part of service.AuthService the HTTP layer uses.
type AuthAPI interface {
	middleware.Authenticator
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	Register(ctx context.Context, input service.RegisterInput, caller *models.Identity) (models.Principal, error)
	Refresh(ctx context.Context, refreshToken string) (service.AuthResult, error)
	UpdateRole(ctx context.Context, caller models.Identity, principalID, role string) (models.Principal, error)
}

// DocumentAPI is the part of service.DocumentService the HTTP layer uses.
type DocumentAPI interface {
	Create(ctx context.Context, caller models.Identity, input service.CreateDocumentInput) (models.Document, error)
	Get(ctx context.Context, caller models.Identity, id string) (models.Document, error)
	List(ctx context.Context, caller models.Identity, filter repository.DocumentFilter) ([]models.Document, error)
	Types() []models.DocumentType
	Update(ctx context.Context, caller models.Identity, id string, input service.UpdateDocumentInput) (models.Document, error)
	Delete(ctx context.Context, caller models.Identity, id string) error
	Download(ctx context.Context, caller models.Identity, id string) (io.ReadSeekCloser, storage.StoredFile, models.Document, error)
	ServeFile(ctx context.Context, caller models.Identity, identifier string) (io.ReadSeekCloser, storage.StoredFile, error)
}

// HealthCheck pings one dependency for /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Log            zerolog.Logger
	Environment    string
	Auth           AuthAPI
	Documents      DocumentAPI
	Table          *policy.Table
	MaxUploadBytes int64
	Checks         []HealthCheck
}

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	auth        AuthAPI
	documents   DocumentAPI
	table       *policy.Table
	maxUpload   int64
	checks      []HealthCheck
}

func NewHandlerSet(d Deps) HandlerSet {
	return HandlerSet{
		log:         d.Log.With().Str("component", "http").Logger(),
		environment: d.Environment,
		auth:        d.Auth,
		documents:   d.Documents,
		table:       d.Table,
		maxUpload:   d.MaxUploadBytes,
		checks:      d.Checks,
	}
}

// Mount attaches the API to router. Every route passes through the
// authentication gate and the policy table before its handler runs.
func (h HandlerSet) Mount(router *gin.RouterGroup) {
	router.Use(
		middleware.Authenticate(h.auth, h.table, h.log),
		middleware.Authorize(h.table, h.log),
	)

	router.GET("/healthz", h.Health)

	auth := router.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/register", h.Register)
		auth.POST("/refresh", h.Refresh)
		auth.GET("/validate", h.Validate)
		auth.POST("/logout", h.Logout)
	}

	router.PUT("/users/:id/role", h.UpdateRole)

	docs := router.Group("/documents")
	{
		docs.GET("", h.ListDocuments)
		docs.POST("", h.CreateDocument)
		docs.GET("/types", h.DocumentTypes)
		docs.GET("/download/:id", h.DownloadDocument)
		docs.GET("/files/*filename", h.ServeFile)
		docs.GET("/:id", h.GetDocument)
		docs.PUT("/:id", h.UpdateDocument)
		docs.DELETE("/:id", h.DeleteDocument)
	}
}

// caller returns the identity the gate attached. The policy table has
// already refused anonymous requests on routes that reach it.
func (h HandlerSet) caller(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		h.writeError(c, errUnauthenticated)
	}
	return id, ok
}
