package notifications

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

type Publisher interface {
	PublishReceiptCreated(ctx context.Context, event domain.ReceiptCreated) error
}

// Fanout hands each event to every publisher. One failing sink does not stop
// the others.
type Fanout []Publisher

func (f Fanout) PublishReceiptCreated(ctx context.Context, event domain.ReceiptCreated) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishReceiptCreated(ctx, event); err != nil {
			slog.Error("Receipt publisher failed", "error", err, "receipt_id", event.ReceiptID)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
