package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// SettingsRepository persists administrative key/value settings.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// ListByKeys returns the settings whose key is in keys. Missing keys are simply absent.
func (r *SettingsRepository) ListByKeys(ctx context.Context, keys []string) ([]models.Setting, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	const query = `SELECT key, value, updated_at FROM settings WHERE key = ANY($1) ORDER BY key ASC`
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Get fetches a single setting by key.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	const query = `SELECT key, value, updated_at FROM settings WHERE key = $1`
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		return nil, err
	}
	return &setting, nil
}

// Upsert inserts or replaces a setting. Last write wins.
func (r *SettingsRepository) Upsert(ctx context.Context, key, value string) error {
	const query = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
