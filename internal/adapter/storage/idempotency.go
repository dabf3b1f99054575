package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CachedResponse is a stored reply to a request carrying an Idempotency-Key.
type CachedResponse struct {
	Fingerprint string
	Status      int
	Body        []byte
}

type IdempotencyRepository struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*CachedResponse, error) {
	var res CachedResponse
	err := r.db.QueryRow(ctx,
		"SELECT fingerprint, response_status, response_body FROM idempotency_keys WHERE key_id = $1",
		key).Scan(&res.Fingerprint, &res.Status, &res.Body)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, key string, res CachedResponse) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO idempotency_keys (key_id, fingerprint, response_status, response_body) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING",
		key, res.Fingerprint, res.Status, res.Body)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

// MemoryIdempotencyStore backs the middleware when no Postgres is configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]CachedResponse
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]CachedResponse)}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	res.Body = append([]byte(nil), res.Body...)
	return &res, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, res CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return nil
	}
	res.Body = append([]byte(nil), res.Body...)
	s.entries[key] = res
	return nil
}
