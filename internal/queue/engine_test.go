package queue_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/ledger"
	"empires-server/internal/notify"
	"empires-server/internal/queue"
	"empires-server/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	engine  *queue.Engine
	store   *memory.Store
	catalog *catalog.Provider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := testLogger()
	cat, err := catalog.NewProvider(logger)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	store := memory.NewStore()
	ledgerService := ledger.NewService(store, logger)
	engine := queue.NewEngine(store, store, store, store, ledgerService, cat, notify.NewLogSink(logger), logger)

	return &testEnv{engine: engine, store: store, catalog: cat}
}

func (env *testEnv) createEmpire(t *testing.T, userID string, credits int64) *empire.Empire {
	t.Helper()
	e := &empire.Empire{UserID: userID, Name: "Empire of " + userID, Credits: credits}
	if err := env.store.CreateEmpire(context.Background(), e); err != nil {
		t.Fatalf("create empire: %v", err)
	}
	return e
}

func (env *testEnv) createBase(t *testing.T, coord string, empireID int, b base.Base) *base.Base {
	t.Helper()
	b.Coord = coord
	if empireID > 0 {
		b.EmpireID = &empireID
	}
	if err := env.store.CreateBase(context.Background(), &b); err != nil {
		t.Fatalf("create base: %v", err)
	}
	return &b
}

func (env *testEnv) createStructure(t *testing.T, coord string, empireID int, key catalog.Key, level int) {
	t.Helper()
	st := &base.Structure{EmpireID: empireID, BaseCoord: coord, Key: key, Level: level, Active: true}
	if err := env.store.CreateStructure(context.Background(), st); err != nil {
		t.Fatalf("create structure: %v", err)
	}
}

func (env *testEnv) credits(t *testing.T, empireID int) int64 {
	t.Helper()
	e, err := env.store.GetEmpire(context.Background(), empireID)
	if err != nil {
		t.Fatalf("get empire: %v", err)
	}
	return e.Credits
}
