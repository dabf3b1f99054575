package storage

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

// JournalRepository keeps every write the service sent to the ledger.
type JournalRepository struct {
	db *pgxpool.Pool
}

func NewJournalRepository(db *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Record(ctx context.Context, e domain.JournalEntry) error {
	query := `
		INSERT INTO ledger_transactions (tx_hash, kind, session_id, account, chain_id, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_hash) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		e.Hash.Hex(), string(e.Kind), e.SessionID, e.Account.Hex(), int64(e.ChainID), string(e.Status), e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func (r *JournalRepository) UpdateStatus(ctx context.Context, hash common.Hash, status domain.TxStatus, detail string) error {
	query := `UPDATE ledger_transactions SET status = $2, detail = $3, updated_at = NOW() WHERE tx_hash = $1`
	if _, err := r.db.Exec(ctx, query, hash.Hex(), string(status), detail); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// ListPending returns the writes still waiting for inclusion, oldest first.
func (r *JournalRepository) ListPending(ctx context.Context) ([]domain.JournalEntry, error) {
	query := `
		SELECT tx_hash, kind, session_id, account, chain_id, status, detail, created_at
		FROM ledger_transactions
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var hash, kind, account, status string
		var chainID int64
		if err := rows.Scan(&hash, &kind, &e.SessionID, &account, &chainID, &status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Hash = common.HexToHash(hash)
		e.Kind = domain.TxKind(kind)
		e.Account = common.HexToAddress(account)
		e.ChainID = uint64(chainID)
		e.Status = domain.TxStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
