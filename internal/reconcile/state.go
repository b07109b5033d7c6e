package reconcile

import (
	"context"
	"fmt"

	"poolLedger/internal/storage"
)

// DefaultCursor is the cursor record name used when Config.Cursor is empty.
const DefaultCursor = "reconcile"

// loadCursor positions the reconciler after the last committed event. The
// cursor lives in the entity store, so it is never ahead of or behind the
// entities it describes.
func (r *Reconciler) loadCursor(ctx context.Context) error {
	pos, ok, err := storage.NewEntities(r.backend).Cursor(ctx, r.cfg.Cursor)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if ok {
		r.Resume(pos)
	}
	return nil
}

// Checkpoint stores the last consumed position on its own. Events that wrote
// entities already stored it in their commit; this moves the cursor past
// trailing events that changed nothing.
func (r *Reconciler) Checkpoint(ctx context.Context) error {
	if !r.hasLast {
		return nil
	}
	if err := storage.NewEntities(r.backend).SaveCursor(ctx, r.cfg.Cursor, r.last); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
