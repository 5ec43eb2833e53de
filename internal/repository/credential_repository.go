package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// CredentialRepository provides access to the credential store (users_auth). It runs
// against its own database and never joins academic tables.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new instance of CredentialRepository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// FindByUsername returns an account by username.
func (r *CredentialRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	const query = `SELECT id, username, password_hash, role, last_login, created_at FROM users_auth WHERE username = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by username: %w", err)
	}
	return &account, nil
}

// FindByID returns an account by identifier.
func (r *CredentialRepository) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	const query = `SELECT id, username, password_hash, role, last_login, created_at FROM users_auth WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// Create inserts a credential and returns its id. A taken username yields ErrDuplicate.
func (r *CredentialRepository) Create(ctx context.Context, username, passwordHash string, role models.UserRole) (int64, error) {
	const query = `INSERT INTO users_auth (username, password_hash, role) VALUES ($1, $2, $3) RETURNING id`
	var id int64
	if err := r.db.QueryRowxContext(ctx, query, username, passwordHash, role).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

// UpdatePasswordHash replaces the stored hash. A missing account yields sql.ErrNoRows.
func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users_auth SET password_hash = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return expectAffected(res)
}

// DeleteByID removes a credential. Used as the provisioning compensation step.
func (r *CredentialRepository) DeleteByID(ctx context.Context, id int64) error {
	const query = `DELETE FROM users_auth WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectAffected(res)
}

// UpdateLastLogin stamps the last successful login.
func (r *CredentialRepository) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	const query = `UPDATE users_auth SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
