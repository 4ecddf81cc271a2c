package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbathio/university-management/internal/models"
)

type PrincipalRepository struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepository(pool *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

const principalColumns = `id, username, email, password_hash, role, active, created_at, updated_at`

func (r *PrincipalRepository) Create(ctx context.Context, p models.Principal) error {
	const query = `
		INSERT INTO principals (
			id, username, email, password_hash, role, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Username,
		p.Email,
		p.PasswordHash,
		p.Role,
		p.Active,
	)
	if constraint, ok := uniqueConstraint(err); ok {
		if strings.Contains(constraint, "email") {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return err
}

func (r *PrincipalRepository) GetByUsername(ctx context.Context, username string) (models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE LOWER(username) = LOWER($1)`
	return scanPrincipal(r.pool.QueryRow(ctx, query, username))
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`
	return scanPrincipal(r.pool.QueryRow(ctx, query, id))
}

func (r *PrincipalRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM principals WHERE LOWER(username) = LOWER($1))`, username).Scan(&exists)
	return exists, err
}

func (r *PrincipalRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM principals WHERE LOWER(email) = LOWER($1))`, email).Scan(&exists)
	return exists, err
}

func (r *PrincipalRepository) UpdateRole(ctx context.Context, id string, role models.Role) (models.Principal, error) {
	query := `
		UPDATE principals SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + principalColumns
	return scanPrincipal(r.pool.QueryRow(ctx, query, id, role))
}

func (r *PrincipalRepository) UpdatePasswordHash(ctx context.Context, id string, hash []byte) error {
	const query = `UPDATE principals SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (models.Principal, error) {
	var p models.Principal
	if err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.PasswordHash,
		&p.Role,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Principal{}, ErrPrincipalNotFound
		}
		return models.Principal{}, err
	}
	return p, nil
}
