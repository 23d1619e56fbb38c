package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/notify"
	"empires-server/internal/shared/errors"

	"github.com/google/uuid"
)

// stackableRetries bounds the sequence-bump retry loop for stackable builds:
// concurrent identical requests race for the same sequence number and the
// losers pick the next one.
const stackableRetries = 5

// Enqueue validates a play action and persists a queued item. Checks run in
// order and short-circuit on the first failure. Credits are not deducted
// here; the scheduler debits when it promotes the item.
func (e *Engine) Enqueue(ctx context.Context, empireID int, userID string, coord string, key catalog.Key) (*Item, error) {
	logger := e.logger.With(
		"component", "queue_engine",
		"operation", "enqueue",
		"empire_id", empireID,
		"base", coord,
		"key", key,
	)
	logger.Debug("Admitting queue request")

	// 1. Base exists and is owned by the caller.
	emp, err := e.empires.GetEmpire(ctx, empireID)
	if err != nil {
		if stderrors.Is(err, empire.ErrNotFound) {
			return nil, errors.NotFoundf("empire %d not found", empireID)
		}
		return nil, errors.WrapInternal("failed to load empire", err)
	}
	if userID == "" || emp.UserID != userID {
		return nil, errors.New(errors.ErrorTypeNotOwner, "empire does not belong to caller")
	}

	b, err := e.bases.GetBase(ctx, coord)
	if err != nil {
		if stderrors.Is(err, base.ErrNotFound) {
			return nil, errors.NotFoundf("base %s not found", coord)
		}
		return nil, errors.WrapInternal("failed to load base", err)
	}
	if b.EmpireID == nil || *b.EmpireID != empireID {
		return nil, errors.New(errors.ErrorTypeNotOwner, "base is not owned by this empire")
	}

	// 2. Catalog key is valid and prerequisites are met.
	spec, ok := e.catalog.Get(key)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInvalidRequest, "unknown catalog key %q", key)
	}

	structures, err := e.bases.GetStructures(ctx, coord)
	if err != nil {
		return nil, errors.WrapInternal("failed to load structures", err)
	}

	if unmet := e.unmetRequirements(spec, emp, structures); len(unmet) > 0 {
		return nil, errors.WithDetails(errors.ErrorTypeTechRequirements,
			fmt.Sprintf("%s requires %s", spec.Name, describeUnmet(unmet)),
			map[string]any{"unmet": unmet})
	}

	openItems, err := e.items.ListOpenByBase(ctx, coord)
	if err != nil {
		return nil, errors.WrapInternal("failed to load queue", err)
	}

	// 3. The target step has a defined cost.
	targetLevel := e.targetLevel(spec, emp, structures, openItems)
	cost, ok := spec.StepCost(targetLevel)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInvalidRequest,
			"%s has no defined cost for level %d", spec.Name, targetLevel)
	}

	// 4. Immediate credit affordability.
	if emp.Credits < cost {
		return nil, errors.WithDetails(errors.ErrorTypeInsufficientResources,
			fmt.Sprintf("%s costs %d credits, %d available", spec.Name, cost, emp.Credits),
			map[string]any{"required": cost, "available": emp.Credits})
	}

	// 5. Base capacity for the relevant queue type must be strictly positive.
	caps := base.ComputeCapacities(b, structures, e.catalog, e.logger)
	if caps.Rate(spec.Queue) <= 0 {
		return nil, errors.Newf(errors.ErrorTypeNoCapacity,
			"base %s has no %s capacity", coord, spec.Queue)
	}

	// 6. Energy feasibility. Producers are always admitted; consumers must
	// leave the projected balance non-negative.
	entries := entriesFor(openItems)
	budgets := base.ComputeBudgets(b, structures, entries, e.catalog, e.logger)
	if spec.EnergyDelta < 0 {
		projected := budgets.ProjectedEnergy() + spec.EnergyDelta
		if projected < 0 {
			return nil, errors.WithDetails(errors.ErrorTypeInsufficientEnergy,
				fmt.Sprintf("%s would leave energy balance at %d", spec.Name, projected),
				map[string]any{"projected": projected, "delta": spec.EnergyDelta})
		}
	}

	// 7. Population and area feasibility past the existing queue, in order.
	projection := base.ProjectQueue(budgets, entries, e.catalog, e.logger)
	if !projection.Safe {
		return nil, errors.New(errors.ErrorTypeInsufficientArea,
			"queued items already overcommit the base's budgets")
	}
	if projection.FreeArea-spec.Area < 0 {
		return nil, errors.WithDetails(errors.ErrorTypeInsufficientArea,
			fmt.Sprintf("%s needs %d area, %d free past the queue", spec.Name, spec.Area, projection.FreeArea),
			map[string]any{"required": spec.Area, "free": projection.FreeArea})
	}
	if projection.FreePopulation-spec.Population < 0 {
		return nil, errors.WithDetails(errors.ErrorTypeInsufficientPopulation,
			fmt.Sprintf("%s needs %d population, %d free past the queue", spec.Name, spec.Population, projection.FreePopulation),
			map[string]any{"required": spec.Population, "free": projection.FreePopulation})
	}

	item, err := e.insertItem(ctx, emp, b, spec, targetLevel, cost)
	if err != nil {
		return nil, err
	}

	// Flip an existing structure to pending-upgrade so its current level keeps
	// producing while the next one is built.
	if spec.Kind == catalog.KindStructure {
		if err := e.markPendingUpgrade(ctx, coord, spec.Key); err != nil {
			logger.Warn("Failed to flag pending upgrade", "error", err)
		}
	}

	logger.Info("Queue item admitted",
		"item_id", item.ID,
		"target_level", item.TargetLevel,
		"cost", item.Cost,
		"queue_type", item.QueueType,
	)

	e.publish(ctx, notify.EventItemQueued, item)
	e.TrySchedule(ctx, coord, spec.Queue)

	// Return the fresh row: the scheduler kick may already have promoted it.
	if updated, err := e.items.GetItem(ctx, item.ID); err == nil {
		return updated, nil
	}
	return item, nil
}

// unmetRequirements compares each prerequisite against the empire's tech
// levels or the base's structure levels.
func (e *Engine) unmetRequirements(spec *catalog.Spec, emp *empire.Empire, structures []base.Structure) []map[string]any {
	var unmet []map[string]any

	for _, req := range spec.Prerequisites {
		reqSpec, ok := e.catalog.Get(req.Key)
		if !ok {
			continue
		}

		current := 0
		if reqSpec.Kind == catalog.KindTech {
			current = emp.TechLevel(req.Key)
		} else {
			for i := range structures {
				if structures[i].Key == req.Key && structures[i].Active {
					current = structures[i].Level
					break
				}
			}
		}

		if current < req.Level {
			unmet = append(unmet, map[string]any{
				"key":      req.Key,
				"name":     reqSpec.Name,
				"required": req.Level,
				"current":  current,
			})
		}
	}

	return unmet
}

func describeUnmet(unmet []map[string]any) string {
	desc := ""
	for i, u := range unmet {
		if i > 0 {
			desc += ", "
		}
		desc += fmt.Sprintf("%v level %v", u["name"], u["required"])
	}
	return desc
}

// targetLevel computes the step this request builds: level 1 for units,
// defenses and first-time structures, otherwise one past the active level and
// any steps already in the queue.
func (e *Engine) targetLevel(spec *catalog.Spec, emp *empire.Empire, structures []base.Structure, openItems []Item) int {
	switch spec.Kind {
	case catalog.KindUnit, catalog.KindDefense:
		return 1
	case catalog.KindTech:
		return emp.TechLevel(spec.Key) + 1 + countOpenForKey(openItems, spec.Key)
	default:
		active := 0
		for i := range structures {
			if structures[i].Key == spec.Key {
				active = structures[i].Level
				break
			}
		}
		return active + 1 + countOpenForKey(openItems, spec.Key)
	}
}

func countOpenForKey(items []Item, key catalog.Key) int {
	count := 0
	for i := range items {
		if items[i].Key == key && items[i].Open() {
			count++
		}
	}
	return count
}

// insertItem persists the queued row. The uniqueness constraint on the
// idempotency key is the sole race-resolution mechanism: a losing concurrent
// duplicate surfaces as an already-in-progress conflict, never a double
// booking. Stackable builds retry with the next sequence number instead.
func (e *Engine) insertItem(ctx context.Context, emp *empire.Empire, b *base.Base, spec *catalog.Spec, targetLevel int, cost int64) (*Item, error) {
	now := time.Now().UTC()

	item := &Item{
		ID:          uuid.NewString(),
		EmpireID:    emp.ID,
		BaseCoord:   b.Coord,
		Key:         spec.Key,
		Kind:        spec.Kind,
		QueueType:   spec.Queue,
		TargetLevel: targetLevel,
		Status:      StatusQueued,
		Cost:        cost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch {
	case spec.Kind == catalog.KindUnit:
		// Units have no level to collide on; every enqueue is its own slot.
		item.IdempotencyKey = fmt.Sprintf("%s:%s", IdempotencyKeyFor(emp.ID, b.Coord, spec.Key, targetLevel), uuid.NewString())
		if err := e.items.InsertItem(ctx, item); err != nil {
			return nil, errors.WrapInternal("failed to persist queue item", err)
		}
		return item, nil

	case spec.Stackable:
		for attempt := 0; attempt < stackableRetries; attempt++ {
			seq, err := e.items.NextSequence(ctx, emp.ID, b.Coord, spec.Key)
			if err != nil {
				return nil, errors.WrapInternal("failed to allocate sequence", err)
			}
			item.Sequence = seq + attempt
			item.IdempotencyKey = SequencedIdempotencyKey(emp.ID, b.Coord, spec.Key, targetLevel, item.Sequence)

			err = e.items.InsertItem(ctx, item)
			if err == nil {
				return item, nil
			}
			if !stderrors.Is(err, ErrDuplicateKey) {
				return nil, errors.WrapInternal("failed to persist queue item", err)
			}
		}
		return nil, errors.Conflictf("could not allocate a queue slot for %s", spec.Name)

	default:
		item.IdempotencyKey = IdempotencyKeyFor(emp.ID, b.Coord, spec.Key, targetLevel)
		err := e.items.InsertItem(ctx, item)
		if err == nil {
			return item, nil
		}
		if stderrors.Is(err, ErrDuplicateKey) {
			return nil, errors.Newf(errors.ErrorTypeAlreadyInProgress,
				"%s level %d is already in progress at %s", spec.Name, targetLevel, b.Coord)
		}
		return nil, errors.WrapInternal("failed to persist queue item", err)
	}
}

// markPendingUpgrade flags an active structure whose next level just entered
// the queue.
func (e *Engine) markPendingUpgrade(ctx context.Context, coord string, key catalog.Key) error {
	s, err := e.bases.GetStructure(ctx, coord, key)
	if err != nil {
		return err
	}
	if s == nil || s.PendingUpgrade {
		return nil
	}
	s.PendingUpgrade = true
	return e.bases.UpdateStructure(ctx, s)
}
