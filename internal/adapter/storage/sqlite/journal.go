package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

// LedgerTransaction is the local journal row.
type LedgerTransaction struct {
	TxHash    string `gorm:"primaryKey"`
	Kind      string `gorm:"not null"`
	SessionID string `gorm:"not null"`
	Account   string `gorm:"not null"`
	ChainID   uint64 `gorm:"not null"`
	Status    string `gorm:"index;not null"`
	Detail    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Journal is the SQLite journal used when no Postgres is configured.
type Journal struct {
	db *gorm.DB
}

func NewJournal(dbPath string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.AutoMigrate(&LedgerTransaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(ctx context.Context, e domain.JournalEntry) error {
	row := LedgerTransaction{
		TxHash:    e.Hash.Hex(),
		Kind:      string(e.Kind),
		SessionID: e.SessionID,
		Account:   e.Account.Hex(),
		ChainID:   e.ChainID,
		Status:    string(e.Status),
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func (j *Journal) UpdateStatus(ctx context.Context, hash common.Hash, status domain.TxStatus, detail string) error {
	err := j.db.WithContext(ctx).Model(&LedgerTransaction{}).
		Where("tx_hash = ?", hash.Hex()).
		Updates(map[string]interface{}{"status": string(status), "detail": detail}).Error
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (j *Journal) ListPending(ctx context.Context) ([]domain.JournalEntry, error) {
	var rows []LedgerTransaction
	err := j.db.WithContext(ctx).
		Where("status = ?", string(domain.TxPending)).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.JournalEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.JournalEntry{
			Hash:      common.HexToHash(r.TxHash),
			Kind:      domain.TxKind(r.Kind),
			SessionID: r.SessionID,
			Account:   common.HexToAddress(r.Account),
			ChainID:   r.ChainID,
			Status:    domain.TxStatus(r.Status),
			Detail:    r.Detail,
			CreatedAt: r.CreatedAt,
		})
	}
	return entries, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
