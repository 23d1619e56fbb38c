package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"empires-server/internal/catalog"
	"empires-server/internal/queue"
	"empires-server/internal/shared/database"
)

// QueueStore is the Postgres implementation of queue.Store. The UNIQUE
// constraint on idempotency_key is the race-resolution mechanism for
// concurrent duplicate enqueues.
type QueueStore struct {
	db     *database.DB
	logger *slog.Logger
}

func NewQueueStore(db *database.DB, logger *slog.Logger) *QueueStore {
	logger.Debug("Initializing queue store")

	return &QueueStore{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `id, empire_id, base_coord, key, kind, queue_type, target_level,
	status, cost, idempotency_key, sequence, start_at, completion_at, created_at, updated_at`

// uniqueViolation is the Postgres class 23 code for unique constraint errors.
const uniqueViolation = "23505"

func (s *QueueStore) InsertItem(ctx context.Context, item *queue.Item) error {
	logger := s.logger.With(
		"component", "queue_store",
		"operation", "insert_item",
		"empire_id", item.EmpireID,
		"base", item.BaseCoord,
		"key", item.Key,
	)

	query := `
		INSERT INTO queue_items
			(id, empire_id, base_coord, key, kind, queue_type, target_level, status, cost, idempotency_key, sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		item.ID, item.EmpireID, item.BaseCoord, item.Key, item.Kind, item.QueueType,
		item.TargetLevel, item.Status, item.Cost, item.IdempotencyKey, item.Sequence,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			logger.Debug("Duplicate idempotency key", "idempotency_key", item.IdempotencyKey)
			return queue.ErrDuplicateKey
		}
		logger.Error("Failed to insert queue item", "error", err)
		return fmt.Errorf("failed to insert queue item: %w", err)
	}
	return nil
}

func (s *QueueStore) GetItem(ctx context.Context, id string) (*queue.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_items WHERE id = $1`, itemColumns)

	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}
	return item, nil
}

func (s *QueueStore) ListOpenByBase(ctx context.Context, coord string) ([]queue.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM queue_items
		WHERE base_coord = $1 AND status IN ('queued', 'scheduled')
		ORDER BY created_at, id`, itemColumns)
	return s.queryItems(ctx, query, coord)
}

func (s *QueueStore) ListOpenByBaseAndType(ctx context.Context, coord string, queueType catalog.QueueType) ([]queue.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM queue_items
		WHERE base_coord = $1 AND queue_type = $2 AND status IN ('queued', 'scheduled')
		ORDER BY created_at, id`, itemColumns)
	return s.queryItems(ctx, query, coord, queueType)
}

func (s *QueueStore) ListDue(ctx context.Context, now time.Time, limit int) ([]queue.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM queue_items
		WHERE status = 'scheduled' AND completion_at <= $1
		ORDER BY completion_at, id
		LIMIT $2`, itemColumns)
	return s.queryItems(ctx, query, now, limit)
}

func (s *QueueStore) queryItems(ctx context.Context, query string, args ...interface{}) ([]queue.Item, error) {
	logger := s.logger.With("component", "queue_store", "operation", "query_items")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query queue items", "error", err)
		return nil, fmt.Errorf("failed to query queue items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var items []queue.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			logger.Error("Failed to scan queue item row", "error", err)
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue items: %w", err)
	}
	return items, nil
}

func (s *QueueStore) NextSequence(ctx context.Context, empireID int, coord string, key catalog.Key) (int, error) {
	query := `
		SELECT COALESCE(MAX(sequence), 0) + 1
		FROM queue_items
		WHERE empire_id = $1 AND base_coord = $2 AND key = $3
	`

	var sequence int
	if err := s.db.QueryRowContext(ctx, query, empireID, coord, key).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to compute next sequence: %w", err)
	}
	return sequence, nil
}

func (s *QueueStore) MarkScheduled(ctx context.Context, id string, start, completion time.Time) error {
	// The status guard makes promotion conditional: a concurrently completed
	// or cancelled item stays untouched.
	query := `
		UPDATE queue_items
		SET status = 'scheduled', start_at = $2, completion_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
	`

	result, err := s.db.ExecContext(ctx, query, id, start, completion)
	if err != nil {
		return fmt.Errorf("failed to mark item scheduled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check scheduled update: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM queue_items WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check queue item: %w", err)
		}
		if !exists {
			return queue.ErrNotFound
		}
		return queue.ErrNotQueued
	}
	return nil
}

func (s *QueueStore) MarkCompleted(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, queue.StatusCompleted)
}

func (s *QueueStore) MarkCancelled(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, queue.StatusCancelled)
}

func (s *QueueStore) setStatus(ctx context.Context, id string, status queue.Status) error {
	// Only open items may be finalized: a cancel racing the completion sweep
	// must lose here instead of flipping an already-completed item.
	query := `
		UPDATE queue_items
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'scheduled')
	`

	result, err := s.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update queue item status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM queue_items WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check queue item: %w", err)
		}
		if !exists {
			return queue.ErrNotFound
		}
		return queue.ErrNotOpen
	}
	return nil
}

func (s *QueueStore) DeleteItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check queue item delete: %w", err)
	}
	if affected == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (s *QueueStore) CompletedDefenseCounts(ctx context.Context, coord string) (map[catalog.Key]int, error) {
	logger := s.logger.With("component", "queue_store", "operation", "completed_defense_counts", "base", coord)

	query := `
		SELECT key, COUNT(*)
		FROM queue_items
		WHERE base_coord = $1 AND kind = 'defense' AND status = 'completed'
		GROUP BY key
	`

	rows, err := s.db.QueryContext(ctx, query, coord)
	if err != nil {
		logger.Error("Failed to query defense counts", "error", err)
		return nil, fmt.Errorf("failed to query defense counts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	counts := make(map[catalog.Key]int)
	for rows.Next() {
		var key catalog.Key
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan defense count: %w", err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating defense counts: %w", err)
	}
	return counts, nil
}

func scanItem(row rowScanner) (*queue.Item, error) {
	var item queue.Item
	err := row.Scan(
		&item.ID,
		&item.EmpireID,
		&item.BaseCoord,
		&item.Key,
		&item.Kind,
		&item.QueueType,
		&item.TargetLevel,
		&item.Status,
		&item.Cost,
		&item.IdempotencyKey,
		&item.Sequence,
		&item.StartAt,
		&item.CompletionAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
