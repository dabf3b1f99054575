package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

// Syncer advances every session with a write still in flight.
type Syncer interface {
	SyncAll(ctx context.Context) int
}

// PendingJournal is the journal as the reconciler sees it.
type PendingJournal interface {
	ListPending(ctx context.Context) ([]domain.JournalEntry, error)
	UpdateStatus(ctx context.Context, hash common.Hash, status domain.TxStatus, detail string) error
}

// StatusChecker reports whether a transaction has been included.
type StatusChecker interface {
	TransactionStatus(ctx context.Context, hash common.Hash) (domain.TxStatus, error)
}

// Reconciler settles journal rows no live session follows any more, such as
// writes abandoned by a disconnect.
type Reconciler struct {
	Journal PendingJournal
	Checker StatusChecker
	// Every runs the reconciliation on every Nth tick; zero means every tick.
	Every int
}

// StartConfirmationWorker polls the ledger for in-flight writes until ctx is
// done. The returned channel closes when the worker has stopped.
func StartConfirmationWorker(ctx context.Context, syncer Syncer, interval time.Duration, reconciler *Reconciler) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		slog.Info("👷 Confirmation Worker started", "interval", interval.String())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for tick := 1; ; tick++ {
			select {
			case <-ctx.Done():
				slog.Info("👷 Confirmation Worker stopped")
				return
			case <-ticker.C:
			}

			// 1. Live sessions first, so they publish their own confirmations
			if n := syncer.SyncAll(ctx); n > 0 {
				slog.Info("Worker: Synced sessions", "count", n)
			}

			// 2. Then whatever is left pending in the journal
			if reconciler != nil && tick%max(reconciler.Every, 1) == 0 {
				if _, _, err := ReconcileJournal(ctx, reconciler.Journal, reconciler.Checker); err != nil {
					slog.Error("Worker: Journal reconciliation failed", "error", err)
				}
			}
		}
	}()
	return done
}

// ReconcileJournal settles journal rows no live session follows: rows left
// by a previous process or by a disconnect.
// Rows still pending on the ledger are left alone and counted.
func ReconcileJournal(ctx context.Context, journal PendingJournal, checker StatusChecker) (settled, pending int, err error) {
	entries, err := journal.ListPending(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, e := range entries {
		status, err := checker.TransactionStatus(ctx, e.Hash)
		if err != nil {
			slog.Warn("Worker: Could not check journaled transaction", "tx", e.Hash.Hex(), "error", err)
			pending++
			continue
		}
		if status == domain.TxPending {
			pending++
			continue
		}

		detail := ""
		if status == domain.TxFailed {
			detail = "Transaction reverted."
		}
		if err := journal.UpdateStatus(ctx, e.Hash, status, detail); err != nil {
			slog.Error("Worker: Failed to settle journal row", "tx", e.Hash.Hex(), "error", err)
			pending++
			continue
		}
		settled++
	}

	if settled > 0 {
		slog.Info("✅ Worker: Journal reconciled", "settled", settled, "pending", pending)
	}
	return settled, pending, nil
}
