package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/events"
	"github.com/mbathio/university-management/internal/ids"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/storage"
)

var ErrTitleRequired = apperr.New(apperr.KindValidation, "title_required", "title is required")

type DocumentStore interface {
	Create(ctx context.Context, d models.Document) error
	GetByID(ctx context.Context, id string) (models.Document, error)
	GetByFilePath(ctx context.Context, filePath string) (models.Document, error)
	ListVisible(ctx context.Context, identity models.Identity, filter repository.DocumentFilter) ([]models.Document, error)
	IsCreator(ctx context.Context, id, principalID string) (bool, error)
	Update(ctx context.Context, d models.Document) (models.Document, error)
	Delete(ctx context.Context, id string) error
}

type FileStorage interface {
	Store(ctx context.Context, r io.Reader, declaredName string) (storage.StoredFile, error)
	Load(ctx context.Context, id string) (io.ReadSeekCloser, storage.StoredFile, error)
	Delete(ctx context.Context, id string) error
	CheckIdentifier(id string) error
}

type DocumentService struct {
	documents DocumentStore
	files     FileStorage
	publisher events.Publisher
	log       zerolog.Logger
}

func NewDocumentService(documents DocumentStore, files FileStorage, publisher events.Publisher, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		documents: documents,
		files:     files,
		publisher: publisher,
		log:       log.With().Str("component", "documents").Logger(),
	}
}

type CreateDocumentInput struct {
	Title      string
	Content    string
	Type       string
	Visibility string
	Reference  string
	File       io.Reader
	FileName   string
}

func (s *DocumentService) Create(ctx context.Context, caller models.Identity, input CreateDocumentInput) (models.Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return models.Document{}, ErrTitleRequired
	}

	doc := models.Document{
		ID:                ids.New(),
		Title:             title,
		Content:           input.Content,
		Type:              models.ParseDocumentType(strings.ToUpper(strings.TrimSpace(input.Type))),
		Visibility:        models.ParseVisibility(strings.ToUpper(strings.TrimSpace(input.Visibility))),
		Reference:         strings.TrimSpace(input.Reference),
		CreatedBy:         caller.PrincipalID,
		CreatedByUsername: caller.Username,
	}

	if input.File != nil {
		stored, err := s.files.Store(ctx, input.File, input.FileName)
		if err != nil {
			return models.Document{}, err
		}
		doc.FilePath = stored.ID
		doc.FileName = stored.Name
		doc.ContentType = stored.ContentType
		doc.SizeBytes = stored.Size
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		if doc.HasFile() {
			if derr := s.files.Delete(ctx, doc.FilePath); derr != nil {
				s.log.Warn().Err(derr).Str("file_id", doc.FilePath).Msg("remove orphaned file failed")
			}
		}
		return models.Document{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}

	s.publish(ctx, events.Event{
		Type:       events.DocumentCreated,
		DocumentID: doc.ID,
		Title:      doc.Title,
		Visibility: string(doc.Visibility),
		Actor:      caller.Username,
	})
	if doc.HasFile() {
		s.publish(ctx, events.Event{
			Type:        events.DocumentStored,
			DocumentID:  doc.ID,
			FilePath:    doc.FilePath,
			ContentType: doc.ContentType,
			Actor:       caller.Username,
		})
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("visibility", string(doc.Visibility)).
		Str("created_by", caller.PrincipalID).
		Bool("has_file", doc.HasFile()).
		Msg("document created")
	return doc, nil
}

// Get returns a document the caller may read. Documents the caller cannot
// see are reported as missing.
func (s *DocumentService) Get(ctx context.Context, caller models.Identity, id string) (models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return models.Document{}, apperr.ErrNotFound
		}
		return models.Document{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	if !doc.ReadableBy(caller) {
		return models.Document{}, apperr.ErrNotFound
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, caller models.Identity, filter repository.DocumentFilter) ([]models.Document, error) {
	docs, err := s.documents.ListVisible(ctx, caller, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	return docs, nil
}

func (s *DocumentService) Types() []models.DocumentType {
	return models.DocumentTypes
}

// Download opens the file attached to a readable document.
func (s *DocumentService) Download(ctx context.Context, caller models.Identity, id string) (io.ReadSeekCloser, storage.StoredFile, models.Document, error) {
	doc, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, storage.StoredFile{}, models.Document{}, err
	}
	if !doc.HasFile() {
		return nil, storage.StoredFile{}, models.Document{}, apperr.ErrFileNotFound
	}
	rc, info, err := s.files.Load(ctx, doc.FilePath)
	if err != nil {
		return nil, storage.StoredFile{}, models.Document{}, err
	}
	info.Name = doc.FileName
	return rc, info, doc, nil
}

// ServeFile opens a stored file by identifier. The identifier is checked
// before any lookup, and the owning document must be readable.
func (s *DocumentService) ServeFile(ctx context.Context, caller models.Identity, identifier string) (io.ReadSeekCloser, storage.StoredFile, error) {
	if err := s.files.CheckIdentifier(identifier); err != nil {
		return nil, storage.StoredFile{}, err
	}

	doc, err := s.documents.GetByFilePath(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, storage.StoredFile{}, apperr.ErrFileNotFound
		}
		return nil, storage.StoredFile{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	if !doc.ReadableBy(caller) {
		return nil, storage.StoredFile{}, apperr.ErrFileNotFound
	}

	rc, info, err := s.files.Load(ctx, identifier)
	if err != nil {
		return nil, storage.StoredFile{}, err
	}
	info.Name = doc.FileName
	return rc, info, nil
}

type UpdateDocumentInput struct {
	Title      *string
	Content    *string
	Type       *string
	Visibility *string
	Reference  *string
}

// Update changes document metadata. Only the creator or an Admin may do so;
// missing and foreign documents give the same error.
func (s *DocumentService) Update(ctx context.Context, caller models.Identity, id string, input UpdateDocumentInput) (models.Document, error) {
	doc, err := s.owned(ctx, caller, id)
	if err != nil {
		return models.Document{}, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return models.Document{}, ErrTitleRequired
		}
		doc.Title = title
	}
	if input.Content != nil {
		doc.Content = *input.Content
	}
	if input.Type != nil {
		doc.Type = models.ParseDocumentType(strings.ToUpper(strings.TrimSpace(*input.Type)))
	}
	if input.Visibility != nil {
		doc.Visibility = models.ParseVisibility(strings.ToUpper(strings.TrimSpace(*input.Visibility)))
	}
	if input.Reference != nil {
		doc.Reference = strings.TrimSpace(*input.Reference)
	}

	updated, err := s.documents.Update(ctx, doc)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return models.Document{}, apperr.ErrForbidden
		}
		return models.Document{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	s.log.Info().Str("document_id", id).Str("updated_by", caller.PrincipalID).Msg("document updated")
	return updated, nil
}

func (s *DocumentService) owned(ctx context.Context, caller models.Identity, id string) (models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return models.Document{}, apperr.ErrForbidden
		}
		return models.Document{}, apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}
	if !caller.IsAdmin() && !doc.AuthoredBy(caller) {
		return models.Document{}, apperr.ErrForbidden
	}
	return doc, nil
}

// Delete removes a document and its file. Callers other than the creator
// or an Admin get the same error for missing and foreign documents.
func (s *DocumentService) Delete(ctx context.Context, caller models.Identity, id string) error {
	doc, err := s.owned(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return apperr.ErrForbidden
		}
		return apperr.Wrap(apperr.KindInternal, "internal_error", "internal server error", err)
	}

	if doc.HasFile() {
		if err := s.files.Delete(ctx, doc.FilePath); err != nil {
			s.log.Warn().Err(err).Str("file_id", doc.FilePath).Msg("remove document file failed")
		}
	}

	s.publish(ctx, events.Event{
		Type:       events.DocumentDeleted,
		DocumentID: doc.ID,
		FilePath:   doc.FilePath,
		Actor:      caller.Username,
	})
	s.log.Info().Str("document_id", id).Str("deleted_by", caller.PrincipalID).Msg("document deleted")
	return nil
}

// IsCreator is the ownership predicate for document routes.
func (s *DocumentService) IsCreator(ctx context.Context, id string, caller models.Identity) (bool, error) {
	return s.documents.IsCreator(ctx, id, caller.PrincipalID)
}

func (s *DocumentService) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event", e.Type).Str("document_id", e.DocumentID).Msg("publish event failed")
	}
}
