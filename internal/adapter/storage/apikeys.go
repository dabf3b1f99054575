package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type APIKeyRepository struct {
	db *pgxpool.Pool
}

func NewAPIKeyRepository(db *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// SaveAPIKey stores the hashed key, never the key itself
func (r *APIKeyRepository) SaveAPIKey(ctx context.Context, keyHash, keyPrefix, label string) error {
	query := `INSERT INTO api_keys (key_hash, key_prefix, label) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`

	_, err := r.db.Exec(ctx, query, keyHash, keyPrefix, label)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) VerifyKeyHash(ctx context.Context, keyHash string) (bool, error) {
	var prefix string
	err := r.db.QueryRow(ctx, `SELECT key_prefix FROM api_keys WHERE key_hash = $1`, keyHash).Scan(&prefix)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
