package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/ledger"
	"empires-server/internal/notify"
)

// Schedule promotes the earliest queued item on a base's queue line, debiting
// its recorded cost and computing its completion time. It is deliberately
// re-entrant: when an item is already in progress, or nothing is eligible, it
// is a side-effect-free no-op, so invoking it redundantly after every
// admission and completion is safe.
func (e *Engine) Schedule(ctx context.Context, coord string, queueType catalog.QueueType) error {
	logger := e.logger.With(
		"component", "queue_engine",
		"operation", "schedule",
		"base", coord,
		"queue_type", queueType,
	)

	now := time.Now().UTC()

	open, err := e.items.ListOpenByBaseAndType(ctx, coord, queueType)
	if err != nil {
		return fmt.Errorf("failed to load open items: %w", err)
	}

	// Single active item per base per queue line.
	var chainEnd *time.Time
	for i := range open {
		if open[i].InProgress(now) {
			logger.Debug("Item already in progress, nothing to schedule", "item_id", open[i].ID)
			return nil
		}
		if open[i].Status == StatusScheduled && open[i].CompletionAt != nil {
			if chainEnd == nil || open[i].CompletionAt.After(*chainEnd) {
				chainEnd = open[i].CompletionAt
			}
		}
	}

	next := earliestQueued(open)
	if next == nil {
		logger.Debug("No queued items to promote")
		return nil
	}

	// Re-check credits against the recorded cost. An insufficient balance
	// leaves the item pending for the next scheduling trigger.
	balance, err := e.empires.DebitCredits(ctx, next.EmpireID, next.Cost)
	if err != nil {
		if stderrors.Is(err, empire.ErrInsufficientCredits) {
			logger.Debug("Insufficient credits, leaving item pending",
				"item_id", next.ID, "cost", next.Cost)
			return nil
		}
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	b, err := e.bases.GetBase(ctx, coord)
	if err != nil {
		e.refund(ctx, next, "scheduling aborted")
		return fmt.Errorf("failed to load base: %w", err)
	}

	structures, err := e.bases.GetStructures(ctx, coord)
	if err != nil {
		e.refund(ctx, next, "scheduling aborted")
		return fmt.Errorf("failed to load structures: %w", err)
	}

	caps := base.ComputeCapacities(b, structures, e.catalog, e.logger)
	rate := caps.Rate(queueType)
	if rate <= 0 {
		// The cost/capacity division is undefined; abort rather than schedule
		// an infinite ETA.
		e.refund(ctx, next, "no capacity")
		logger.Warn("Zero capacity, scheduling aborted", "item_id", next.ID)
		return nil
	}

	minutes := int64(math.Ceil(float64(next.Cost) / rate * 60))
	if minutes < 1 {
		minutes = 1
	}

	start := now
	if chainEnd != nil && chainEnd.After(now) {
		start = *chainEnd
	}
	completion := start.Add(time.Duration(minutes) * time.Minute)

	if err := e.items.MarkScheduled(ctx, next.ID, start, completion); err != nil {
		// A concurrent scheduler won the promotion; undo our debit.
		e.refund(ctx, next, "concurrent scheduling")
		if stderrors.Is(err, ErrNotQueued) {
			logger.Debug("Item promoted by a concurrent scheduler", "item_id", next.ID)
			return nil
		}
		return fmt.Errorf("failed to mark item scheduled: %w", err)
	}

	e.ledger.Record(ctx, next.EmpireID, -next.Cost, ledgerTypeFor(next.Kind),
		fmt.Sprintf("%s level %d at %s", next.Key, next.TargetLevel, coord), balance)

	logger.Info("Queue item scheduled",
		"item_id", next.ID,
		"key", next.Key,
		"cost", next.Cost,
		"capacity", rate,
		"minutes", minutes,
		"completion", completion,
	)

	next.Status = StatusScheduled
	next.StartAt = &start
	next.CompletionAt = &completion
	e.publish(ctx, notify.EventItemScheduled, next)

	return nil
}

// earliestQueued picks the FIFO head: oldest enqueue time, item id as the
// tiebreaker for determinism.
func earliestQueued(items []Item) *Item {
	var next *Item
	for i := range items {
		if items[i].Status != StatusQueued {
			continue
		}
		if next == nil ||
			items[i].CreatedAt.Before(next.CreatedAt) ||
			(items[i].CreatedAt.Equal(next.CreatedAt) && items[i].ID < next.ID) {
			next = &items[i]
		}
	}
	return next
}

// refund returns a debit taken for an item that did not end up scheduled.
func (e *Engine) refund(ctx context.Context, item *Item, reason string) {
	balance, err := e.empires.CreditCredits(ctx, item.EmpireID, item.Cost)
	if err != nil {
		e.logger.Error("Failed to refund debit",
			"component", "queue_engine",
			"item_id", item.ID,
			"cost", item.Cost,
			"reason", reason,
			"error", err,
		)
		return
	}
	e.ledger.Record(ctx, item.EmpireID, item.Cost, ledger.TypeConstructionRefund,
		fmt.Sprintf("%s: %s", reason, item.Key), balance)
}

// ledgerTypeFor maps an item kind to its transaction type.
func ledgerTypeFor(kind catalog.Kind) ledger.Type {
	switch kind {
	case catalog.KindTech:
		return ledger.TypeResearch
	case catalog.KindUnit:
		return ledger.TypeUnitProduction
	default:
		return ledger.TypeConstruction
	}
}
