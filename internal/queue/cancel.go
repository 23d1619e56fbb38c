package queue

import (
	"context"
	stderrors "errors"
	"fmt"

	"empires-server/internal/catalog"
	"empires-server/internal/ledger"
	"empires-server/internal/notify"
	"empires-server/internal/shared/errors"
)

// Cancel removes a player's queue item. A queued item simply disappears:
// nothing was debited for it. A scheduled item is cancelled with a full
// refund of its recorded cost, and a pending-upgrade structure reverts to
// active at its prior level.
func (e *Engine) Cancel(ctx context.Context, empireID int, itemID string) error {
	logger := e.logger.With(
		"component", "queue_engine",
		"operation", "cancel",
		"empire_id", empireID,
		"item_id", itemID,
	)

	item, err := e.items.GetItem(ctx, itemID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return errors.NotFoundf("queue item %s not found", itemID)
		}
		return errors.WrapInternal("failed to load queue item", err)
	}

	if item.EmpireID != empireID {
		return errors.New(errors.ErrorTypeNotOwner, "queue item belongs to another empire")
	}

	if !item.Open() {
		return errors.Newf(errors.ErrorTypeInvalidRequest,
			"queue item is already %s", item.Status)
	}

	wasScheduled := item.Status == StatusScheduled

	if wasScheduled {
		// The store only cancels open items. If the completion sweep finalized
		// this one between our read and now, the item keeps its completed state
		// and no refund is paid.
		if err := e.items.MarkCancelled(ctx, item.ID); err != nil {
			if stderrors.Is(err, ErrNotOpen) {
				return errors.Conflictf("queue item %s was finalized concurrently", item.ID)
			}
			return errors.WrapInternal("failed to cancel queue item", err)
		}

		balance, err := e.empires.CreditCredits(ctx, item.EmpireID, item.Cost)
		if err != nil {
			logger.Error("Failed to refund cancelled item", "cost", item.Cost, "error", err)
		} else {
			e.ledger.Record(ctx, item.EmpireID, item.Cost, ledger.TypeConstructionRefund,
				fmt.Sprintf("cancelled %s level %d at %s", item.Key, item.TargetLevel, item.BaseCoord), balance)
		}
	} else {
		if err := e.items.DeleteItem(ctx, item.ID); err != nil {
			return errors.WrapInternal("failed to remove queue item", err)
		}
	}

	if item.Kind == catalog.KindStructure {
		if err := e.revertPendingUpgrade(ctx, item); err != nil {
			logger.Warn("Failed to revert pending upgrade", "error", err)
		}
	}

	logger.Info("Queue item cancelled",
		"key", item.Key,
		"was_scheduled", wasScheduled,
		"refund", wasScheduled,
	)

	e.publish(ctx, notify.EventItemCancelled, item)

	// The cancelled slot may unblock the next queued item.
	e.TrySchedule(ctx, item.BaseCoord, item.QueueType)

	return nil
}

// revertPendingUpgrade clears the pending-upgrade flag once no open step for
// the key remains, restoring the structure to active at its prior level.
func (e *Engine) revertPendingUpgrade(ctx context.Context, item *Item) error {
	s, err := e.bases.GetStructure(ctx, item.BaseCoord, item.Key)
	if err != nil || s == nil || !s.PendingUpgrade {
		return err
	}

	stillQueued, err := e.hasOtherOpenForKey(ctx, item)
	if err != nil {
		return err
	}
	if stillQueued {
		return nil
	}

	s.PendingUpgrade = false
	s.Active = true
	return e.bases.UpdateStructure(ctx, s)
}
