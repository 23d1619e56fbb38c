package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"empires-server/internal/ledger"
	"empires-server/internal/shared/database"
)

// LedgerStore is the Postgres implementation of ledger.Store.
type LedgerStore struct {
	db     *database.DB
	logger *slog.Logger
}

func NewLedgerStore(db *database.DB, logger *slog.Logger) *LedgerStore {
	logger.Debug("Initializing ledger store")

	return &LedgerStore{
		db:     db,
		logger: logger,
	}
}

func (s *LedgerStore) Append(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO credit_transactions (id, empire_id, delta, type, note, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tx.ID, tx.EmpireID, tx.Delta, tx.Type, tx.Note, tx.Balance,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListByEmpire(ctx context.Context, empireID int, limit int) ([]ledger.Transaction, error) {
	logger := s.logger.With("component", "ledger_store", "operation", "list_by_empire", "empire_id", empireID)

	query := `
		SELECT id, empire_id, delta, type, note, balance, created_at
		FROM credit_transactions
		WHERE empire_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, empireID, limit)
	if err != nil {
		logger.Error("Failed to query transactions", "error", err)
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		err := rows.Scan(&tx.ID, &tx.EmpireID, &tx.Delta, &tx.Type, &tx.Note, &tx.Balance, &tx.CreatedAt)
		if err != nil {
			logger.Error("Failed to scan transaction row", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}
