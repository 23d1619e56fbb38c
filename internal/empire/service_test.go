package empire_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"empires-server/internal/base"
	"empires-server/internal/empire"
	"empires-server/internal/ledger"
	"empires-server/internal/shared/errors"
	"empires-server/internal/store/memory"
)

func newService(t *testing.T, startingBases int) (*empire.Service, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	ledgerService := ledger.NewService(store, logger)
	return empire.NewService(store, store, ledgerService, 500, startingBases, logger), store
}

func seedUnclaimedBases(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		b := &base.Base{Coord: "00:00:0" + string(rune('0'+i)), Area: 100, Fertility: 60}
		if err := store.CreateBase(context.Background(), b); err != nil {
			t.Fatalf("create base: %v", err)
		}
	}
}

func TestRegisterGrantsStartAndClaimsBase(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()
	seedUnclaimedBases(t, store, 3)

	e, err := svc.Register(ctx, "user-1", "Terran Dominion")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if e.Credits != 500 {
		t.Errorf("credits = %d, want the 500 starting grant", e.Credits)
	}

	bases, err := store.ListBasesByEmpire(ctx, e.ID)
	if err != nil {
		t.Fatalf("list bases: %v", err)
	}
	if len(bases) != 1 {
		t.Fatalf("claimed bases = %d, want 1", len(bases))
	}
	if bases[0].Name != "Terran Dominion" {
		t.Errorf("base name = %q, want the empire name", bases[0].Name)
	}

	txs, err := store.ListByEmpire(ctx, e.ID, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Type != ledger.TypeRegistration {
		t.Fatalf("transactions = %+v, want one registration entry", txs)
	}
	if txs[0].Delta != 500 || txs[0].Balance != 500 {
		t.Errorf("registration entry delta=%d balance=%d, want 500/500", txs[0].Delta, txs[0].Balance)
	}
}

func TestRegisterNumbersMultipleStartingBases(t *testing.T) {
	svc, store := newService(t, 2)
	ctx := context.Background()
	seedUnclaimedBases(t, store, 3)

	e, err := svc.Register(ctx, "user-1", "Colonists")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	bases, _ := store.ListBasesByEmpire(ctx, e.ID)
	if len(bases) != 2 {
		t.Fatalf("claimed bases = %d, want 2", len(bases))
	}
	names := map[string]bool{}
	for _, b := range bases {
		names[b.Name] = true
	}
	if !names["Colonists 1"] || !names["Colonists 2"] {
		t.Errorf("base names = %v, want numbered Colonists 1/2", names)
	}
}

func TestRegisterValidatesName(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()
	seedUnclaimedBases(t, store, 1)

	if _, err := svc.Register(ctx, "user-1", "   "); !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("blank name error = %v, want validation", errors.GetType(err))
	}
	if _, err := svc.Register(ctx, "user-1", strings.Repeat("x", 65)); !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("long name error = %v, want validation", errors.GetType(err))
	}
}

func TestRegisterOneEmpirePerUser(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()
	seedUnclaimedBases(t, store, 3)

	if _, err := svc.Register(ctx, "user-1", "First"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, "user-1", "Second")
	if !errors.IsType(err, errors.ErrorTypeConflict) {
		t.Errorf("duplicate register error = %v, want conflict", errors.GetType(err))
	}
}

func TestRegisterFailsWhenUniverseIsFull(t *testing.T) {
	svc, _ := newService(t, 1)
	ctx := context.Background()

	_, err := svc.Register(ctx, "user-1", "Latecomers")
	if !errors.IsType(err, errors.ErrorTypeConflict) {
		t.Errorf("error = %v, want conflict when no base is free", errors.GetType(err))
	}
}

func TestGetOverview(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()
	seedUnclaimedBases(t, store, 2)

	e, err := svc.Register(ctx, "user-1", "Observers")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ov, err := svc.GetOverview(ctx, e.ID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Empire.ID != e.ID || len(ov.Bases) != 1 {
		t.Errorf("overview = %+v, want the empire with its single base", ov)
	}

	if _, err := svc.GetOverview(ctx, e.ID+99); !errors.IsType(err, errors.ErrorTypeNotFound) {
		t.Errorf("unknown empire error = %v, want not_found", errors.GetType(err))
	}
}

func TestGetByUserID(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()
	seedUnclaimedBases(t, store, 1)

	e, err := svc.Register(ctx, "user-1", "Finders")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.GetByUserID(ctx, "user-1")
	if err != nil || got.ID != e.ID {
		t.Errorf("GetByUserID = %+v, %v", got, err)
	}
	if _, err := svc.GetByUserID(ctx, "stranger"); !errors.IsType(err, errors.ErrorTypeNotFound) {
		t.Errorf("unknown user error = %v, want not_found", errors.GetType(err))
	}
}
