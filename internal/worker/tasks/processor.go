package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/apperr"
	"github.com/mbathio/university-management/internal/events"
	"github.com/mbathio/university-management/internal/models"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/storage"
)

type NotificationWriter interface {
	Create(ctx context.Context, n models.Notification) error
}

type FileSource interface {
	Load(ctx context.Context, id string) (io.ReadSeekCloser, storage.StoredFile, error)
}

// Mirror is the object storage that keeps a copy of every stored file.
type Mirror interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
}

type Processor struct {
	notifications NotificationWriter
	files         FileSource
	mirror        Mirror
	logger        zerolog.Logger
}

// NewProcessor builds the document event handler. A nil mirror disables
// file replication.
func NewProcessor(notifications NotificationWriter, files FileSource, mirror Mirror, logger zerolog.Logger) *Processor {
	return &Processor{
		notifications: notifications,
		files:         files,
		mirror:        mirror,
		logger:        logger,
	}
}

// Handle dispatches one stream message. Malformed messages are dropped;
// returning an error leaves the message pending for a retry.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	e, err := events.Decode(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
		return nil
	}

	switch e.Type {
	case events.DocumentCreated:
		return p.handleCreated(ctx, e)
	case events.DocumentStored:
		return p.handleStored(ctx, e)
	case events.DocumentDeleted:
		return p.handleDeleted(ctx, e)
	default:
		p.logger.Warn().Str("type", e.Type).Msg("unknown event type")
		return nil
	}
}

func (p *Processor) handleCreated(ctx context.Context, e events.Event) error {
	audience := models.ParseVisibility(e.Visibility)
	if audience == models.VisibilityRestricted {
		return nil
	}

	n := models.Notification{
		ID:         "ntf_" + e.DocumentID,
		DocumentID: e.DocumentID,
		Audience:   audience,
		Title:      "New document: " + e.Title,
		Message:    fmt.Sprintf("%s published %q", e.Actor, e.Title),
	}
	if err := p.notifications.Create(ctx, n); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			p.logger.Debug().Str("document_id", e.DocumentID).Msg("document gone before notification")
			return nil
		}
		return fmt.Errorf("create notification: %w", err)
	}
	p.logger.Info().Str("document_id", e.DocumentID).Str("audience", string(audience)).Msg("notification created")
	return nil
}

func (p *Processor) handleStored(ctx context.Context, e events.Event) error {
	if p.mirror == nil || e.FilePath == "" {
		return nil
	}

	rc, info, err := p.files.Load(ctx, e.FilePath)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) || errors.Is(err, apperr.ErrInvalidIdentifier) {
			p.logger.Warn().Err(err).Str("file_id", e.FilePath).Msg("skipping mirror of unavailable file")
			return nil
		}
		return fmt.Errorf("load %s: %w", e.FilePath, err)
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = e.ContentType
	}
	if err := p.mirror.Put(ctx, e.FilePath, rc, info.Size, contentType); err != nil {
		return fmt.Errorf("mirror %s: %w", e.FilePath, err)
	}
	p.logger.Info().Str("file_id", e.FilePath).Int64("size", info.Size).Msg("file mirrored")
	return nil
}

func (p *Processor) handleDeleted(ctx context.Context, e events.Event) error {
	if p.mirror == nil || e.FilePath == "" {
		return nil
	}
	if err := p.mirror.Remove(ctx, e.FilePath); err != nil {
		return fmt.Errorf("remove mirror %s: %w", e.FilePath, err)
	}
	p.logger.Info().Str("file_id", e.FilePath).Msg("mirror removed")
	return nil
}
