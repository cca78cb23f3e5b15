package audit

import (
	"context"
	"log/slog"

	"github.com/helporbit/helporbit/internal/db/models"
)

// Store persists audit entries.
type Store interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Recorder writes an entry to the store and then ships it. It satisfies the
// audit middleware's writer interface.
type Recorder struct {
	store   Store
	shipper Shipper
}

// NewRecorder wraps store. A nil shipper records to the store only.
func NewRecorder(store Store, shipper Shipper) *Recorder {
	return &Recorder{store: store, shipper: shipper}
}

// CreateAuditLog stores log and forwards the stored entry, so shipped copies
// carry the database id. Shipping failures are logged, not returned.
func (r *Recorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if err := r.store.CreateAuditLog(ctx, log); err != nil {
		return err
	}
	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, log); err != nil {
			slog.Warn("failed to ship audit entry", "action", log.Action, "error", err)
		}
	}
	return nil
}
