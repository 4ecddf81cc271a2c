package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbathio/university-management/internal/models"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a notification. Replays of the same event are ignored;
// a document removed in the meantime yields ErrDocumentNotFound.
func (r *NotificationRepository) Create(ctx context.Context, n models.Notification) error {
	const query = `
		INSERT INTO notifications (id, document_id, audience, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, n.ID, n.DocumentID, n.Audience, n.Title, n.Message); err != nil {
		if isForeignKeyViolation(err) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}
