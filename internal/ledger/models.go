package ledger

import (
	"context"
	"time"
)

// Type classifies a credit transaction.
type Type string

const (
	TypePayout             Type = "payout"
	TypeConstruction       Type = "construction"
	TypeConstructionRefund Type = "construction_refund"
	TypeResearch           Type = "research"
	TypeUnitProduction     Type = "unit_production"
	TypeColonization       Type = "colonization"
	TypeRegistration       Type = "registration"
)

// Transaction is one immutable row of the credit audit trail. It records the
// signed delta and the balance that resulted; it never drives control flow.
type Transaction struct {
	ID        string    `json:"id"`
	EmpireID  int       `json:"empire_id"`
	Delta     int64     `json:"delta"`
	Type      Type      `json:"type"`
	Note      string    `json:"note"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence port for the append-only transaction log.
type Store interface {
	Append(ctx context.Context, tx *Transaction) error
	ListByEmpire(ctx context.Context, empireID int, limit int) ([]Transaction, error)
}
