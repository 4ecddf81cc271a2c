package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbathio/university-management/internal/models"
)

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, title, content, type, visibility, reference, COALESCE(file_path, ''), file_name,
	content_type, size_bytes, created_by, created_by_username, created_at, updated_at`

// DocumentFilter narrows ListVisible. Zero values mean no filter. Creator
// is a principal id.
type DocumentFilter struct {
	Type       models.DocumentType
	Visibility models.Visibility
	Creator    string
	Limit      int
	Offset     int
}

func (r *DocumentRepository) Create(ctx context.Context, d models.Document) error {
	const query = `
		INSERT INTO documents (
			id, title, content, type, visibility, reference, file_path, file_name,
			content_type, size_bytes, created_by, created_by_username, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8,
			$9, $10, $11, $12, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Title,
		d.Content,
		d.Type,
		d.Visibility,
		d.Reference,
		d.FilePath,
		d.FileName,
		d.ContentType,
		d.SizeBytes,
		d.CreatedBy,
		d.CreatedByUsername,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.pool.QueryRow(ctx, query, id))
}

// GetByFilePath finds the document that owns a stored file identifier.
func (r *DocumentRepository) GetByFilePath(ctx context.Context, filePath string) (models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE file_path = $1`
	return scanDocument(r.pool.QueryRow(ctx, query, filePath))
}

// ListVisible returns the documents identity may read, newest first.
func (r *DocumentRepository) ListVisible(ctx context.Context, identity models.Identity, filter DocumentFilter) ([]models.Document, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var typeFilter, visibilityFilter, creatorFilter *string
	if filter.Type != "" {
		t := string(filter.Type)
		typeFilter = &t
	}
	if filter.Visibility != "" {
		v := string(filter.Visibility)
		visibilityFilter = &v
	}
	if filter.Creator != "" {
		creatorFilter = &filter.Creator
	}

	levels := make([]string, 0, 4)
	for _, l := range models.VisibleLevels(identity.Role) {
		levels = append(levels, string(l))
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE ($1::boolean OR visibility = ANY($2) OR created_by = $3)
		  AND ($4::text IS NULL OR type = $4)
		  AND ($5::text IS NULL OR visibility = $5)
		  AND ($6::text IS NULL OR created_by = $6)
		ORDER BY created_at DESC
		LIMIT $7 OFFSET $8
	`

	rows, err := r.pool.Query(ctx, query,
		identity.IsAdmin(), levels, identity.PrincipalID,
		typeFilter, visibilityFilter, creatorFilter,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// IsCreator reports whether the principal created the document. A missing
// document is reported as false.
func (r *DocumentRepository) IsCreator(ctx context.Context, id, principalID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1 AND created_by = $2)`,
		id, principalID,
	).Scan(&ok)
	return ok, err
}

// Update rewrites the editable metadata of a document.
func (r *DocumentRepository) Update(ctx context.Context, d models.Document) (models.Document, error) {
	query := `
		UPDATE documents
		SET title = $2, content = $3, type = $4, visibility = $5, reference = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + documentColumns
	return scanDocument(r.pool.QueryRow(ctx, query, d.ID, d.Title, d.Content, d.Type, d.Visibility, d.Reference))
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	if err := row.Scan(
		&d.ID,
		&d.Title,
		&d.Content,
		&d.Type,
		&d.Visibility,
		&d.Reference,
		&d.FilePath,
		&d.FileName,
		&d.ContentType,
		&d.SizeBytes,
		&d.CreatedBy,
		&d.CreatedByUsername,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}
	return d, nil
}
