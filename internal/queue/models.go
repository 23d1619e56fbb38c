package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
)

var (
	ErrNotFound     = errors.New("queue item not found")
	ErrDuplicateKey = errors.New("idempotency key already exists")
	ErrNotQueued    = errors.New("queue item is not in queued status")
	ErrNotOpen      = errors.New("queue item is already finalized")
)

// Status is the explicit item state machine. "In progress" is derived: a
// scheduled item whose completion timestamp has not passed yet.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Item is one queued piece of work on a base's construction, production or
// research line. Cost is recorded at admission; credits are only debited when
// the scheduler promotes the item.
type Item struct {
	ID          string            `json:"id"`
	EmpireID    int               `json:"empire_id"`
	BaseCoord   string            `json:"base_coord"`
	Key         catalog.Key       `json:"key"`
	Kind        catalog.Kind      `json:"kind"`
	QueueType   catalog.QueueType `json:"queue_type"`
	TargetLevel int               `json:"target_level"`
	Status      Status            `json:"status"`
	Cost        int64             `json:"cost"`

	IdempotencyKey string `json:"idempotency_key"`
	Sequence       int    `json:"sequence"`

	StartAt      *time.Time `json:"start_at"`
	CompletionAt *time.Time `json:"completion_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Open reports whether the item still occupies a queue slot.
func (i *Item) Open() bool {
	return i.Status == StatusQueued || i.Status == StatusScheduled
}

// InProgress reports whether the item is scheduled with a completion still in
// the future.
func (i *Item) InProgress(now time.Time) bool {
	return i.Status == StatusScheduled && i.CompletionAt != nil && i.CompletionAt.After(now)
}

// Entry converts the item to the budget evaluator's view of it.
func (i *Item) Entry() base.QueueEntry {
	return base.QueueEntry{
		Key:          i.Key,
		TargetLevel:  i.TargetLevel,
		Scheduled:    i.Status == StatusScheduled,
		CompletionAt: i.CompletionAt,
		CreatedAt:    i.CreatedAt,
	}
}

// IdempotencyKeyFor builds the deterministic key for a single-instance
// request: same empire, base, catalog key and target level always collide.
func IdempotencyKeyFor(empireID int, coord string, key catalog.Key, targetLevel int) string {
	return fmt.Sprintf("%d:%s:%s:%d", empireID, coord, key, targetLevel)
}

// SequencedIdempotencyKey suffixes the deterministic key with a per-
// (empire, base, key) sequence number so stackable builds get distinct slots.
func SequencedIdempotencyKey(empireID int, coord string, key catalog.Key, targetLevel, sequence int) string {
	return fmt.Sprintf("%s#%d", IdempotencyKeyFor(empireID, coord, key, targetLevel), sequence)
}

// Store is the persistence port for queue items. InsertItem must enforce a
// uniqueness constraint on the idempotency key and report violations as
// ErrDuplicateKey; that constraint is the sole race-resolution mechanism for
// concurrent duplicate enqueues. MarkScheduled must only transition items
// still in queued status and report ErrNotQueued otherwise. MarkCompleted and
// MarkCancelled must only transition open items and report ErrNotOpen
// otherwise, so completion and cancellation can never finalize one item
// twice.
type Store interface {
	InsertItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)

	ListOpenByBase(ctx context.Context, coord string) ([]Item, error)
	ListOpenByBaseAndType(ctx context.Context, coord string, queueType catalog.QueueType) ([]Item, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Item, error)

	NextSequence(ctx context.Context, empireID int, coord string, key catalog.Key) (int, error)

	MarkScheduled(ctx context.Context, id string, start, completion time.Time) error
	MarkCompleted(ctx context.Context, id string) error
	MarkCancelled(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error

	CompletedDefenseCounts(ctx context.Context, coord string) (map[catalog.Key]int, error)
}
