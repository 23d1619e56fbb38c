// Package memory is the in-memory implementation of the persistence ports.
// It backs the engine tests and serves as the reference semantics for the
// Postgres adapter, including the idempotency-key uniqueness constraint and
// the conditional credit decrement.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/fleet"
	"empires-server/internal/ledger"
	"empires-server/internal/queue"
)

type Store struct {
	mu sync.Mutex

	nextEmpireID    int
	nextStructureID int
	nextFleetID     int

	empires      map[int]*empire.Empire
	bases        map[string]*base.Base
	structures   map[string]map[catalog.Key]*base.Structure
	items        map[string]*queue.Item
	idemKeys     map[string]string // idempotency key -> item id
	sequences    map[string]int    // empire:coord:key -> last sequence
	transactions []ledger.Transaction
	fleets       map[int]*fleet.Fleet
}

func NewStore() *Store {
	return &Store{
		empires:    make(map[int]*empire.Empire),
		bases:      make(map[string]*base.Base),
		structures: make(map[string]map[catalog.Key]*base.Structure),
		items:      make(map[string]*queue.Item),
		idemKeys:   make(map[string]string),
		sequences:  make(map[string]int),
		fleets:     make(map[int]*fleet.Fleet),
	}
}

// --- empire.Store ---

func (s *Store) CreateEmpire(_ context.Context, e *empire.Empire) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.empires {
		if existing.UserID == e.UserID {
			return empire.ErrAlreadyExists
		}
	}

	s.nextEmpireID++
	e.ID = s.nextEmpireID
	if e.TechLevels == nil {
		e.TechLevels = make(map[catalog.Key]int)
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	copied := copyEmpire(e)
	s.empires[e.ID] = &copied
	return nil
}

func (s *Store) GetEmpire(_ context.Context, id int) (*empire.Empire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.empires[id]
	if !ok {
		return nil, empire.ErrNotFound
	}
	copied := copyEmpire(e)
	return &copied, nil
}

func (s *Store) GetEmpireByUserID(_ context.Context, userID string) (*empire.Empire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.empires {
		if e.UserID == userID {
			copied := copyEmpire(e)
			return &copied, nil
		}
	}
	return nil, empire.ErrNotFound
}

func (s *Store) ListEmpires(_ context.Context) ([]empire.Empire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]empire.Empire, 0, len(s.empires))
	for _, e := range s.empires {
		out = append(out, copyEmpire(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DebitCredits(_ context.Context, id int, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.empires[id]
	if !ok {
		return 0, empire.ErrNotFound
	}
	if e.Credits < amount {
		return e.Credits, empire.ErrInsufficientCredits
	}
	e.Credits -= amount
	e.UpdatedAt = time.Now().UTC()
	return e.Credits, nil
}

func (s *Store) CreditCredits(_ context.Context, id int, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.empires[id]
	if !ok {
		return 0, empire.ErrNotFound
	}
	e.Credits += amount
	e.UpdatedAt = time.Now().UTC()
	return e.Credits, nil
}

func (s *Store) SetTechLevel(_ context.Context, id int, key catalog.Key, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.empires[id]
	if !ok {
		return empire.ErrNotFound
	}
	if e.TechLevels == nil {
		e.TechLevels = make(map[catalog.Key]int)
	}
	e.TechLevels[key] = level
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) NextFleetNumber(_ context.Context, id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.empires[id]
	if !ok {
		return 0, empire.ErrNotFound
	}
	e.NextFleetNumber++
	return e.NextFleetNumber, nil
}

func (s *Store) ApplyCreditAccrual(_ context.Context, id int, credits int64, remainder int, boundary time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.empires[id]
	if !ok {
		return 0, empire.ErrNotFound
	}
	e.Credits += credits
	e.CreditRemainder = remainder
	e.LastAccrualAt = boundary
	e.UpdatedAt = time.Now().UTC()
	return e.Credits, nil
}

// --- base.Store ---

func (s *Store) GetBase(_ context.Context, coord string) (*base.Base, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bases[coord]
	if !ok {
		return nil, base.ErrNotFound
	}
	copied := copyBase(b)
	return &copied, nil
}

func (s *Store) ListBasesByEmpire(_ context.Context, empireID int) ([]base.Base, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []base.Base
	for _, b := range s.bases {
		if b.EmpireID != nil && *b.EmpireID == empireID {
			out = append(out, copyBase(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coord < out[j].Coord })
	return out, nil
}

func (s *Store) ListOwnedBases(_ context.Context) ([]base.Base, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []base.Base
	for _, b := range s.bases {
		if b.EmpireID != nil {
			out = append(out, copyBase(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coord < out[j].Coord })
	return out, nil
}

func (s *Store) ClaimFreeBase(_ context.Context, empireID int, name string) (*base.Base, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coords := make([]string, 0, len(s.bases))
	for coord := range s.bases {
		coords = append(coords, coord)
	}
	sort.Strings(coords)

	for _, coord := range coords {
		b := s.bases[coord]
		if b.EmpireID == nil {
			id := empireID
			b.EmpireID = &id
			b.Name = name
			b.UpdatedAt = time.Now().UTC()
			copied := copyBase(b)
			return &copied, nil
		}
	}
	return nil, base.ErrNoFreeBase
}

func (s *Store) CreateBase(_ context.Context, b *base.Base) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	copied := copyBase(b)
	s.bases[b.Coord] = &copied
	return nil
}

func (s *Store) CountUnclaimedBases(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, b := range s.bases {
		if b.EmpireID == nil {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetStructures(_ context.Context, coord string) ([]base.Structure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []base.Structure
	for _, st := range s.structures[coord] {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) GetStructure(_ context.Context, coord string, key catalog.Key) (*base.Structure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.structures[coord][key]
	if !ok {
		return nil, nil
	}
	copied := *st
	return &copied, nil
}

func (s *Store) CreateStructure(_ context.Context, st *base.Structure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextStructureID++
	st.ID = s.nextStructureID
	st.UpdatedAt = time.Now().UTC()

	if s.structures[st.BaseCoord] == nil {
		s.structures[st.BaseCoord] = make(map[catalog.Key]*base.Structure)
	}
	copied := *st
	s.structures[st.BaseCoord][st.Key] = &copied
	return nil
}

func (s *Store) UpdateStructure(_ context.Context, st *base.Structure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.structures[st.BaseCoord][st.Key]; !ok {
		return base.ErrStructureNotFound
	}
	st.UpdatedAt = time.Now().UTC()
	copied := *st
	s.structures[st.BaseCoord][st.Key] = &copied
	return nil
}

func (s *Store) ApplyCitizenAccrual(_ context.Context, coord string, citizens int64, remainder int, boundary time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bases[coord]
	if !ok {
		return base.ErrNotFound
	}
	b.Citizens += citizens
	b.CitizenRemainder = remainder
	b.LastAccrualAt = boundary
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// --- queue.Store ---

func (s *Store) InsertItem(_ context.Context, item *queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.idemKeys[item.IdempotencyKey]; exists {
		return queue.ErrDuplicateKey
	}

	copied := *item
	s.items[item.ID] = &copied
	s.idemKeys[item.IdempotencyKey] = item.ID

	seqKey := sequenceKey(item.EmpireID, item.BaseCoord, item.Key)
	if item.Sequence > s.sequences[seqKey] {
		s.sequences[seqKey] = item.Sequence
	}
	return nil
}

func (s *Store) GetItem(_ context.Context, id string) (*queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *Store) ListOpenByBase(_ context.Context, coord string) ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []queue.Item
	for _, item := range s.items {
		if item.BaseCoord == coord && item.Open() {
			out = append(out, *item)
		}
	}
	sortItems(out)
	return out, nil
}

func (s *Store) ListOpenByBaseAndType(_ context.Context, coord string, queueType catalog.QueueType) ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []queue.Item
	for _, item := range s.items {
		if item.BaseCoord == coord && item.QueueType == queueType && item.Open() {
			out = append(out, *item)
		}
	}
	sortItems(out)
	return out, nil
}

func (s *Store) ListDue(_ context.Context, now time.Time, limit int) ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []queue.Item
	for _, item := range s.items {
		if item.Status == queue.StatusScheduled && item.CompletionAt != nil && !item.CompletionAt.After(now) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletionAt.Before(*out[j].CompletionAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) NextSequence(_ context.Context, empireID int, coord string, key catalog.Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sequences[sequenceKey(empireID, coord, key)] + 1, nil
}

func (s *Store) MarkScheduled(_ context.Context, id string, start, completion time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return queue.ErrNotFound
	}
	if item.Status != queue.StatusQueued {
		return queue.ErrNotQueued
	}
	item.Status = queue.StatusScheduled
	item.StartAt = &start
	item.CompletionAt = &completion
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkCompleted(_ context.Context, id string) error {
	return s.setStatus(id, queue.StatusCompleted)
}

func (s *Store) MarkCancelled(_ context.Context, id string) error {
	return s.setStatus(id, queue.StatusCancelled)
}

func (s *Store) setStatus(id string, status queue.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return queue.ErrNotFound
	}
	if !item.Open() {
		return queue.ErrNotOpen
	}
	item.Status = status
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return queue.ErrNotFound
	}
	delete(s.idemKeys, item.IdempotencyKey)
	delete(s.items, id)
	return nil
}

func (s *Store) CompletedDefenseCounts(_ context.Context, coord string) (map[catalog.Key]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[catalog.Key]int)
	for _, item := range s.items {
		if item.BaseCoord == coord && item.Kind == catalog.KindDefense && item.Status == queue.StatusCompleted {
			counts[item.Key]++
		}
	}
	return counts, nil
}

// --- ledger.Store ---

func (s *Store) Append(_ context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *Store) ListByEmpire(_ context.Context, empireID int, limit int) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ledger.Transaction
	for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.transactions[i].EmpireID == empireID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

// --- fleet.Store ---

func (s *Store) GetFleetByBase(_ context.Context, coord string) (*fleet.Fleet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.fleets {
		if f.BaseCoord == coord {
			copied := copyFleet(f)
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateFleet(_ context.Context, f *fleet.Fleet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFleetID++
	f.ID = s.nextFleetID
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Units == nil {
		f.Units = make(map[catalog.Key]int)
	}

	copied := copyFleet(f)
	s.fleets[f.ID] = &copied
	return nil
}

func (s *Store) AddUnit(_ context.Context, fleetID int, key catalog.Key, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fleets[fleetID]
	if !ok {
		return fleet.ErrNotFound
	}
	f.Units[key]++
	f.TotalValue += value
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// --- helpers ---

func sequenceKey(empireID int, coord string, key catalog.Key) string {
	return queue.IdempotencyKeyFor(empireID, coord, key, 0)
}

func sortItems(items []queue.Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func copyEmpire(e *empire.Empire) empire.Empire {
	copied := *e
	copied.TechLevels = make(map[catalog.Key]int, len(e.TechLevels))
	for k, v := range e.TechLevels {
		copied.TechLevels[k] = v
	}
	return copied
}

func copyBase(b *base.Base) base.Base {
	copied := *b
	if b.EmpireID != nil {
		id := *b.EmpireID
		copied.EmpireID = &id
	}
	return copied
}

func copyFleet(f *fleet.Fleet) fleet.Fleet {
	copied := *f
	copied.Units = make(map[catalog.Key]int, len(f.Units))
	for k, v := range f.Units {
		copied.Units[k] = v
	}
	return copied
}
