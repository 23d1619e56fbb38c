package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/fleet"
	"empires-server/internal/notify"
)

const sweepBatchSize = 200

// RunSweeper finalizes due items on a fixed interval until the context is
// cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	logger := e.logger.With("component", "completion_sweeper")
	logger.Info("Completion sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Completion sweeper stopped")
			return
		case <-ticker.C:
			e.Sweep(ctx, time.Now().UTC())
		}
	}
}

// Sweep activates every item whose scheduled completion time has passed.
// Items are independent: one failure is logged and skipped, never aborting
// the batch.
func (e *Engine) Sweep(ctx context.Context, now time.Time) {
	logger := e.logger.With("component", "completion_sweeper", "operation", "sweep")

	due, err := e.items.ListDue(ctx, now, sweepBatchSize)
	if err != nil {
		logger.Error("Failed to list due items", "error", err)
		return
	}

	if len(due) == 0 {
		return
	}
	logger.Debug("Processing due items", "count", len(due))

	for i := range due {
		if err := e.completeItem(ctx, &due[i]); err != nil {
			logger.Error("Failed to complete item",
				"item_id", due[i].ID,
				"key", due[i].Key,
				"base", due[i].BaseCoord,
				"error", err,
			)
		}
	}
}

// completeItem applies one due item's effect and finalizes it. A missing
// owning empire is terminal: the item is cancelled, not retried.
func (e *Engine) completeItem(ctx context.Context, item *Item) error {
	logger := e.logger.With(
		"component", "completion_sweeper",
		"operation", "complete_item",
		"item_id", item.ID,
		"key", item.Key,
		"base", item.BaseCoord,
	)

	emp, err := e.empires.GetEmpire(ctx, item.EmpireID)
	if err != nil {
		if stderrors.Is(err, empire.ErrNotFound) {
			logger.Warn("Owning empire is gone, cancelling item")
			if err := e.items.MarkCancelled(ctx, item.ID); err != nil {
				if stderrors.Is(err, ErrNotOpen) {
					return nil
				}
				return fmt.Errorf("failed to cancel orphaned item: %w", err)
			}
			e.publish(ctx, notify.EventItemCancelled, item)
			return nil
		}
		return fmt.Errorf("failed to load empire: %w", err)
	}

	// Units are finalized before the fleet append: a failure between the
	// append and the status update would add a second unit on the next sweep.
	// The other kinds apply idempotent effects first and finalize after.
	if item.Kind == catalog.KindUnit {
		done, err := e.finalize(ctx, item)
		if err != nil || !done {
			return err
		}
		if err := e.completeUnit(ctx, item, emp); err != nil {
			return err
		}
	} else {
		switch item.Kind {
		case catalog.KindStructure:
			if err := e.completeStructure(ctx, item); err != nil {
				return err
			}
		case catalog.KindTech:
			target := item.TargetLevel
			if current := emp.TechLevel(item.Key); current > target {
				target = current
			}
			// max(current, target) keeps re-application idempotent
			if err := e.empires.SetTechLevel(ctx, item.EmpireID, item.Key, target); err != nil {
				return fmt.Errorf("failed to raise tech level: %w", err)
			}
		case catalog.KindDefense:
			// Defenses are tallied live from completed records; nothing to mutate.
		}

		done, err := e.finalize(ctx, item)
		if err != nil || !done {
			return err
		}
	}

	logger.Info("Queue item completed", "kind", item.Kind, "target_level", item.TargetLevel)
	e.publish(ctx, notify.EventItemCompleted, item)

	// Promote the next queued item on the freed line.
	e.TrySchedule(ctx, item.BaseCoord, item.QueueType)

	return nil
}

// finalize marks the item completed. It reports false without error when a
// concurrent writer finalized the item first.
func (e *Engine) finalize(ctx context.Context, item *Item) (bool, error) {
	if err := e.items.MarkCompleted(ctx, item.ID); err != nil {
		if stderrors.Is(err, ErrNotOpen) {
			return false, nil
		}
		return false, fmt.Errorf("failed to mark item completed: %w", err)
	}
	item.Status = StatusCompleted
	return true, nil
}

// completeStructure raises the structure's level: first builds create the row
// at level 1, upgrades increment. The pending-upgrade flag is cleared only
// when no further step for the key remains in the queue.
func (e *Engine) completeStructure(ctx context.Context, item *Item) error {
	s, err := e.bases.GetStructure(ctx, item.BaseCoord, item.Key)
	if err != nil {
		return fmt.Errorf("failed to load structure: %w", err)
	}

	stillQueued, err := e.hasOtherOpenForKey(ctx, item)
	if err != nil {
		return err
	}

	if s == nil {
		s = &base.Structure{
			EmpireID:       item.EmpireID,
			BaseCoord:      item.BaseCoord,
			Key:            item.Key,
			Level:          1,
			Active:         true,
			PendingUpgrade: stillQueued,
		}
		if err := e.bases.CreateStructure(ctx, s); err != nil {
			return fmt.Errorf("failed to create structure: %w", err)
		}
		return nil
	}

	s.Level++
	s.Active = true
	s.PendingUpgrade = stillQueued
	if err := e.bases.UpdateStructure(ctx, s); err != nil {
		return fmt.Errorf("failed to update structure: %w", err)
	}
	return nil
}

// completeUnit appends one finished unit to the base's fleet, creating the
// fleet with the empire's next fleet number when none is stationed there.
func (e *Engine) completeUnit(ctx context.Context, item *Item, emp *empire.Empire) error {
	spec, ok := e.catalog.Get(item.Key)
	if !ok {
		return fmt.Errorf("unknown catalog key %q", item.Key)
	}

	f, err := e.fleets.GetFleetByBase(ctx, item.BaseCoord)
	if err != nil {
		return fmt.Errorf("failed to load fleet: %w", err)
	}

	if f == nil {
		number, err := e.empires.NextFleetNumber(ctx, emp.ID)
		if err != nil {
			return fmt.Errorf("failed to allocate fleet number: %w", err)
		}
		f = &fleet.Fleet{
			EmpireID:  emp.ID,
			BaseCoord: item.BaseCoord,
			Name:      fmt.Sprintf("Fleet %d", number),
			Units:     map[catalog.Key]int{},
		}
		if err := e.fleets.CreateFleet(ctx, f); err != nil {
			return fmt.Errorf("failed to create fleet: %w", err)
		}
	}

	if err := e.fleets.AddUnit(ctx, f.ID, item.Key, spec.UnitValue); err != nil {
		return fmt.Errorf("failed to add unit to fleet: %w", err)
	}

	e.sink.Publish(ctx, notify.Event{
		Type:      notify.EventFleetUpdated,
		EmpireID:  item.EmpireID,
		BaseCoord: item.BaseCoord,
		Payload:   map[string]any{"fleet_id": f.ID, "unit": item.Key},
		At:        time.Now().UTC(),
	})

	return nil
}

// hasOtherOpenForKey reports whether another open item for the same catalog
// key remains at the base.
func (e *Engine) hasOtherOpenForKey(ctx context.Context, item *Item) (bool, error) {
	open, err := e.items.ListOpenByBase(ctx, item.BaseCoord)
	if err != nil {
		return false, fmt.Errorf("failed to load open items: %w", err)
	}
	for i := range open {
		if open[i].ID != item.ID && open[i].Key == item.Key {
			return true, nil
		}
	}
	return false, nil
}
