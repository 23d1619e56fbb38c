package queue

import (
	"context"
	"log/slog"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/fleet"
	"empires-server/internal/ledger"
	"empires-server/internal/notify"
)

// Engine is the base resource and construction scheduling core: it admits
// requests against projected budgets, promotes queued items one at a time per
// base and queue line, and finalizes items whose completion time has passed.
type Engine struct {
	empires empire.Store
	bases   base.Store
	items   Store
	fleets  fleet.Store
	ledger  *ledger.Service
	catalog *catalog.Provider
	sink    notify.Sink
	logger  *slog.Logger
}

func NewEngine(
	empires empire.Store,
	bases base.Store,
	items Store,
	fleets fleet.Store,
	ledgerService *ledger.Service,
	cat *catalog.Provider,
	sink notify.Sink,
	logger *slog.Logger,
) *Engine {
	logger.Debug("Initializing queue engine")

	return &Engine{
		empires: empires,
		bases:   bases,
		items:   items,
		fleets:  fleets,
		ledger:  ledgerService,
		catalog: cat,
		sink:    sink,
		logger:  logger,
	}
}

// entriesFor converts open items to the budget evaluator's view.
func entriesFor(items []Item) []base.QueueEntry {
	entries := make([]base.QueueEntry, 0, len(items))
	for i := range items {
		entries = append(entries, items[i].Entry())
	}
	return entries
}

// OpenEntries returns the budget evaluator's view of a base's open items.
func (e *Engine) OpenEntries(ctx context.Context, coord string) ([]base.QueueEntry, error) {
	open, err := e.items.ListOpenByBase(ctx, coord)
	if err != nil {
		return nil, err
	}
	return entriesFor(open), nil
}

// OpenItems returns a base's open items, oldest first.
func (e *Engine) OpenItems(ctx context.Context, coord string) ([]Item, error) {
	return e.items.ListOpenByBase(ctx, coord)
}

// DefenseCounts tallies the base's finished defenses from completed records.
func (e *Engine) DefenseCounts(ctx context.Context, coord string) (map[catalog.Key]int, error) {
	return e.items.CompletedDefenseCounts(ctx, coord)
}

// publish emits a fire-and-forget event.
func (e *Engine) publish(ctx context.Context, eventType string, item *Item) {
	e.sink.Publish(ctx, notify.Event{
		Type:      eventType,
		EmpireID:  item.EmpireID,
		BaseCoord: item.BaseCoord,
		Payload: map[string]any{
			"item_id":      item.ID,
			"key":          item.Key,
			"kind":         item.Kind,
			"queue_type":   item.QueueType,
			"target_level": item.TargetLevel,
		},
		At: time.Now().UTC(),
	})
}

// TrySchedule kicks the scheduler for a base and queue line, swallowing
// failures: a scheduling error must never fail the operation that caused the
// kick.
func (e *Engine) TrySchedule(ctx context.Context, coord string, queueType catalog.QueueType) {
	if err := e.Schedule(ctx, coord, queueType); err != nil {
		e.logger.Warn("Scheduler kick failed",
			"component", "queue_engine",
			"base", coord,
			"queue_type", queueType,
			"error", err,
		)
	}
}
