package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service appends to and reads the credit audit trail. Appends are
// best-effort bookkeeping: a failed write is logged and swallowed so it can
// never roll back the mutation it documents.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	logger.Debug("Initializing ledger service")

	return &Service{
		store:  store,
		logger: logger,
	}
}

// Record appends a transaction with the resulting balance.
func (s *Service) Record(ctx context.Context, empireID int, delta int64, txType Type, note string, balance int64) {
	tx := &Transaction{
		ID:        uuid.NewString(),
		EmpireID:  empireID,
		Delta:     delta,
		Type:      txType,
		Note:      note,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Append(ctx, tx); err != nil {
		s.logger.Error("Failed to append credit transaction",
			"component", "ledger_service",
			"empire_id", empireID,
			"type", txType,
			"delta", delta,
			"error", err,
		)
	}
}

// ListByEmpire returns the most recent transactions for an empire.
func (s *Service) ListByEmpire(ctx context.Context, empireID int, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByEmpire(ctx, empireID, limit)
}
