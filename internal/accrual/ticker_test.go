package accrual_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"empires-server/internal/accrual"
	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/ledger"
	"empires-server/internal/store/memory"
)

func newTicker(t *testing.T, period time.Duration) (*accrual.Ticker, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.NewProvider(logger)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	store := memory.NewStore()
	ledgerService := ledger.NewService(store, logger)
	return accrual.NewTicker(store, store, ledgerService, cat, period, logger), store
}

func TestTickPaysEmpireIncome(t *testing.T) {
	ticker, store := newTicker(t, time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	e := &empire.Empire{
		UserID:        "u1",
		Name:          "Payout",
		Credits:       100,
		LastAccrualAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := store.CreateEmpire(ctx, e); err != nil {
		t.Fatalf("create empire: %v", err)
	}
	b := &base.Base{Coord: "01:01:01", EmpireID: &e.ID, Area: 100, Fertility: 50, LastAccrualAt: now}
	if err := store.CreateBase(ctx, b); err != nil {
		t.Fatalf("create base: %v", err)
	}

	// one base at 10 credits/hour over three whole hours
	ticker.Tick(ctx, now)

	got, err := store.GetEmpire(ctx, e.ID)
	if err != nil {
		t.Fatalf("get empire: %v", err)
	}
	if got.Credits != 130 {
		t.Errorf("credits = %d, want 130", got.Credits)
	}
	if want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC); !got.LastAccrualAt.Equal(want) {
		t.Errorf("boundary advanced to %v, want %v", got.LastAccrualAt, want)
	}

	txs, _ := store.ListByEmpire(ctx, e.ID, 10)
	if len(txs) != 1 || txs[0].Type != ledger.TypePayout || txs[0].Delta != 30 {
		t.Errorf("transactions = %+v, want one 30-credit payout", txs)
	}
}

func TestTickGrowsCitizens(t *testing.T) {
	ticker, store := newTicker(t, time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	e := &empire.Empire{UserID: "u1", Name: "Growers", LastAccrualAt: now}
	if err := store.CreateEmpire(ctx, e); err != nil {
		t.Fatalf("create empire: %v", err)
	}

	// fertility 50 grows 1.0 citizens/hour
	b := &base.Base{
		Coord:         "01:01:01",
		EmpireID:      &e.ID,
		Area:          100,
		Fertility:     50,
		Citizens:      10,
		LastAccrualAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := store.CreateBase(ctx, b); err != nil {
		t.Fatalf("create base: %v", err)
	}

	ticker.Tick(ctx, now)

	got, err := store.GetBase(ctx, "01:01:01")
	if err != nil {
		t.Fatalf("get base: %v", err)
	}
	if got.Citizens != 12 {
		t.Errorf("citizens = %d, want 12 after two hours", got.Citizens)
	}
}

func TestTickCarriesSubUnitRemainders(t *testing.T) {
	ticker, store := newTicker(t, time.Minute)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	e := &empire.Empire{UserID: "u1", Name: "Slow", LastAccrualAt: now}
	if err := store.CreateEmpire(ctx, e); err != nil {
		t.Fatalf("create empire: %v", err)
	}

	// fertility 25 is 0.5 citizens/hour: ~8 thousandths per minute period
	b := &base.Base{
		Coord:         "01:01:01",
		EmpireID:      &e.ID,
		Area:          100,
		Fertility:     25,
		LastAccrualAt: now.Add(-10 * time.Minute),
	}
	if err := store.CreateBase(ctx, b); err != nil {
		t.Fatalf("create base: %v", err)
	}

	ticker.Tick(ctx, now)

	got, _ := store.GetBase(ctx, "01:01:01")
	if got.Citizens != 0 {
		t.Errorf("citizens = %d, want 0 after 10 sub-unit minutes", got.Citizens)
	}
	if got.CitizenRemainder != 80 {
		t.Errorf("remainder = %d thousandths, want 80", got.CitizenRemainder)
	}

	// 115 more minutes tips the accumulated remainder over one whole citizen
	later := now.Add(115 * time.Minute)
	ticker.Tick(ctx, later)
	got, _ = store.GetBase(ctx, "01:01:01")
	if got.Citizens != 1 {
		t.Errorf("citizens = %d, want 1 once the carry crosses 1000", got.Citizens)
	}
}

func TestTickSkipsUpToDateEntities(t *testing.T) {
	ticker, store := newTicker(t, time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	e := &empire.Empire{UserID: "u1", Name: "Fresh", Credits: 100, LastAccrualAt: now}
	if err := store.CreateEmpire(ctx, e); err != nil {
		t.Fatalf("create empire: %v", err)
	}

	ticker.Tick(ctx, now)

	got, _ := store.GetEmpire(ctx, e.ID)
	if got.Credits != 100 {
		t.Errorf("credits = %d, want untouched 100", got.Credits)
	}
	txs, _ := store.ListByEmpire(ctx, e.ID, 10)
	if len(txs) != 0 {
		t.Errorf("transactions = %+v, want none within the same period", txs)
	}
}
