package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/ledger"
)

// Ticker periodically credits empires with their economy payout and bases
// with citizen growth. Each entity is processed independently: one failure is
// logged and skipped, never aborting the batch.
type Ticker struct {
	empires empire.Store
	bases   base.Store
	ledger  *ledger.Service
	catalog *catalog.Provider
	period  time.Duration
	logger  *slog.Logger
}

func NewTicker(
	empires empire.Store,
	bases base.Store,
	ledgerService *ledger.Service,
	cat *catalog.Provider,
	period time.Duration,
	logger *slog.Logger,
) *Ticker {
	logger.Debug("Initializing accrual ticker", "period", period)

	return &Ticker{
		empires: empires,
		bases:   bases,
		ledger:  ledgerService,
		catalog: cat,
		period:  period,
		logger:  logger,
	}
}

// Run ticks on aligned period boundaries until the context is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	logger := t.logger.With("component", "accrual_ticker")
	logger.Info("Accrual ticker started", "period", t.period)

	for {
		now := time.Now().UTC()
		next := Boundary(now, t.period).Add(t.period)

		select {
		case <-ctx.Done():
			logger.Info("Accrual ticker stopped")
			return
		case <-time.After(next.Sub(now)):
			t.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick runs one accrual pass at the given time.
func (t *Ticker) Tick(ctx context.Context, now time.Time) {
	logger := t.logger.With("component", "accrual_ticker", "operation", "tick")
	logger.Debug("Running accrual pass")

	empires, err := t.empires.ListEmpires(ctx)
	if err != nil {
		logger.Error("Failed to list empires for accrual", "error", err)
		return
	}

	for i := range empires {
		if err := t.accrueEmpire(ctx, &empires[i], now); err != nil {
			logger.Error("Failed to accrue empire credits", "empire_id", empires[i].ID, "error", err)
		}
	}

	bases, err := t.bases.ListOwnedBases(ctx)
	if err != nil {
		logger.Error("Failed to list bases for accrual", "error", err)
		return
	}

	for i := range bases {
		if err := t.accrueBase(ctx, &bases[i], now); err != nil {
			logger.Error("Failed to accrue base citizens", "base", bases[i].Coord, "error", err)
		}
	}
}

// accrueEmpire credits the empire's hourly income for the elapsed periods.
// A zero-income empire still advances its boundary so no backlog builds up.
func (t *Ticker) accrueEmpire(ctx context.Context, e *empire.Empire, now time.Time) error {
	periods := Periods(e.LastAccrualAt, now, t.period)
	if periods == 0 {
		return nil
	}

	rate, err := t.empireIncomeRate(ctx, e.ID)
	if err != nil {
		return err
	}

	credits, remainder := Accrue(rate, periods, e.CreditRemainder, t.period)
	boundary := Boundary(now, t.period)

	balance, err := t.empires.ApplyCreditAccrual(ctx, e.ID, credits, remainder, boundary)
	if err != nil {
		return fmt.Errorf("failed to apply credit accrual: %w", err)
	}

	if credits > 0 {
		t.ledger.Record(ctx, e.ID, credits, ledger.TypePayout,
			fmt.Sprintf("economy payout for %d period(s)", periods), balance)
	}

	t.logger.Debug("Empire credits accrued",
		"component", "accrual_ticker",
		"empire_id", e.ID,
		"periods", periods,
		"credits", credits,
		"remainder", remainder,
	)
	return nil
}

// empireIncomeRate sums passive income over the empire's bases.
func (t *Ticker) empireIncomeRate(ctx context.Context, empireID int) (float64, error) {
	bases, err := t.bases.ListBasesByEmpire(ctx, empireID)
	if err != nil {
		return 0, fmt.Errorf("failed to list bases: %w", err)
	}

	var rate float64
	for i := range bases {
		structures, err := t.bases.GetStructures(ctx, bases[i].Coord)
		if err != nil {
			return 0, fmt.Errorf("failed to load structures for %s: %w", bases[i].Coord, err)
		}
		budgets := base.ComputeBudgets(&bases[i], structures, nil, t.catalog, t.logger)
		rate += float64(budgets.Income)
	}
	return rate, nil
}

// accrueBase grows the base's citizen count at its citizen capacity rate.
func (t *Ticker) accrueBase(ctx context.Context, b *base.Base, now time.Time) error {
	periods := Periods(b.LastAccrualAt, now, t.period)
	if periods == 0 {
		return nil
	}

	structures, err := t.bases.GetStructures(ctx, b.Coord)
	if err != nil {
		return fmt.Errorf("failed to load structures: %w", err)
	}

	caps := base.ComputeCapacities(b, structures, t.catalog, t.logger)
	citizens, remainder := Accrue(caps.Citizen.Rate, periods, b.CitizenRemainder, t.period)
	boundary := Boundary(now, t.period)

	if err := t.bases.ApplyCitizenAccrual(ctx, b.Coord, citizens, remainder, boundary); err != nil {
		return fmt.Errorf("failed to apply citizen accrual: %w", err)
	}

	t.logger.Debug("Base citizens accrued",
		"component", "accrual_ticker",
		"base", b.Coord,
		"periods", periods,
		"citizens", citizens,
		"remainder", remainder,
	)
	return nil
}
