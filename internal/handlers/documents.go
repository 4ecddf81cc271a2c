package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/service"
	"github.com/mbathio/university-management/internal/storage"
)

// multipartSlack covers form fields and part headers on top of the file.
const multipartSlack = 1 << 20

const maxMetadataBytes = 64 << 10

type documentRequest struct {
	Title      string `json:"title" form:"title"`
	Content    string `json:"content" form:"content"`
	Type       string `json:"type" form:"type"`
	Visibility string `json:"visibilityLevel" form:"visibilityLevel"`
	Reference  string `json:"reference" form:"reference"`
}

type listQuery struct {
	Type       string `form:"type"`
	Visibility string `form:"visibilityLevel"`
	Creator    string `form:"creator"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
}

func (h HandlerSet) ListDocuments(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeError(c, errBadRequest)
		return
	}

	filter := repository.DocumentFilter{Creator: q.Creator, Limit: q.Limit, Offset: q.Offset}
	if q.Type != "" {
		filter.Type = models.ParseDocumentType(strings.ToUpper(q.Type))
	}
	if q.Visibility != "" {
		v := models.Visibility(strings.ToUpper(q.Visibility))
		if models.ParseVisibility(string(v)) != v {
			h.writeError(c, errBadRequest)
			return
		}
		filter.Visibility = v
	}

	docs, err := h.documents.List(c.Request.Context(), caller, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (h HandlerSet) DocumentTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.documents.Types())
}

func (h HandlerSet) GetDocument(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// CreateDocument accepts either a JSON body or a multipart form. In the
// multipart case metadata comes from a "document" JSON part or from plain
// form fields, and the optional attachment from the "file" part.
func (h HandlerSet) CreateDocument(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	input, cleanup, err := h.readCreateInput(c)
	defer cleanup()
	if err != nil {
		h.writeError(c, err)
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), caller, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h HandlerSet) readCreateInput(c *gin.Context) (service.CreateDocumentInput, func(), error) {
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req documentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return service.CreateDocumentInput{}, noop, errBadRequest
		}
		return req.input(), noop, nil
	}

	limit := h.maxUpload + multipartSlack
	if c.Request.ContentLength > limit {
		return service.CreateDocumentInput{}, noop, storage.ErrTooLarge
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.CreateDocumentInput{}, noop, storage.ErrTooLarge
		}
		return service.CreateDocumentInput{}, noop, errBadRequest
	}
	cleanup := func() { _ = form.RemoveAll() }

	req, err := metadataFromForm(form)
	if err != nil {
		return service.CreateDocumentInput{}, cleanup, err
	}
	input := req.input()

	if files := form.File["file"]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return service.CreateDocumentInput{}, cleanup, errBadRequest
		}
		input.File = f
		input.FileName = files[0].Filename
		cleanup = func() {
			_ = f.Close()
			_ = form.RemoveAll()
		}
	}
	return input, cleanup, nil
}

func metadataFromForm(form *multipart.Form) (documentRequest, error) {
	var req documentRequest

	raw := first(form.Value, "document")
	if raw == "" {
		if parts := form.File["document"]; len(parts) > 0 {
			f, err := parts[0].Open()
			if err != nil {
				return req, errBadRequest
			}
			defer f.Close()
			data, err := io.ReadAll(io.LimitReader(f, maxMetadataBytes))
			if err != nil {
				return req, errBadRequest
			}
			raw = string(data)
		}
	}

	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return req, errBadRequest
		}
		return req, nil
	}

	req.Title = first(form.Value, "title")
	req.Content = first(form.Value, "content")
	req.Type = first(form.Value, "type")
	req.Visibility = first(form.Value, "visibilityLevel")
	req.Reference = first(form.Value, "reference")
	return req, nil
}

func first(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (r documentRequest) input() service.CreateDocumentInput {
	return service.CreateDocumentInput{
		Title:      r.Title,
		Content:    r.Content,
		Type:       r.Type,
		Visibility: r.Visibility,
		Reference:  r.Reference,
	}
}

type updateDocumentRequest struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	Type       *string `json:"type"`
	Visibility *string `json:"visibilityLevel"`
	Reference  *string `json:"reference"`
}

func (h HandlerSet) UpdateDocument(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errBadRequest)
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), caller, c.Param("id"), service.UpdateDocumentInput{
		Title:      req.Title,
		Content:    req.Content,
		Type:       req.Type,
		Visibility: req.Visibility,
		Reference:  req.Reference,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h HandlerSet) DeleteDocument(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}

func (h HandlerSet) DownloadDocument(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	rc, info, doc, err := h.documents.Download(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	serveStored(c, rc, info, doc.UpdatedAt, "attachment")
}

// ServeFile serves a stored file by identifier. The wildcard keeps any
// separators the client sent; the identifier is checked before use.
func (h HandlerSet) ServeFile(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	identifier := strings.TrimPrefix(c.Param("filename"), "/")
	rc, info, err := h.documents.ServeFile(c.Request.Context(), caller, identifier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	serveStored(c, rc, info, time.Time{}, "inline")
}

func serveStored(c *gin.Context, rc io.ReadSeeker, info storage.StoredFile, modified time.Time, disposition string) {
	name := info.Name
	if name == "" {
		name = path.Base(info.ID)
	}
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": name}); v != "" {
		disposition = v
	}

	c.Header("Content-Type", info.ContentType)
	c.Header("Content-Disposition", disposition)
	http.ServeContent(c.Writer, c.Request, "", modified, rc)
}
