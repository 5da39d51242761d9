package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/area-reservation/internal/availability"
	"github.com/iliyamo/area-reservation/internal/lifecycle"
	"github.com/iliyamo/area-reservation/internal/model"
)

// MemoryStore keeps reservations in process memory.  Check-and-insert is
// serialized by a mutex per area, so creates for different areas proceed
// in parallel.  Lock order is area lock, then mu.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]model.Reservation
	index *availability.Index
	locks sync.Map // uint64 -> *sync.Mutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]model.Reservation),
		index: availability.NewIndex(),
	}
}

func (s *MemoryStore) areaLock(areaID uint64) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(areaID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (s *MemoryStore) Create(ctx context.Context, res model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.areaLock(res.AreaID)
	l.Lock()
	defer l.Unlock()

	if res.Status.IsActive() && !s.index.IsAvailable(res.AreaID, res.Range, "") {
		return model.ErrSlotUnavailable
	}
	s.mu.Lock()
	if _, dup := s.byID[res.ID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("reservation %s already exists", res.ID)
	}
	s.byID[res.ID] = res
	s.mu.Unlock()
	if res.Status.IsActive() {
		s.index.Add(res.AreaID, res.ID, res.Range)
	}
	return nil
}

func (s *MemoryStore) IsAvailable(ctx context.Context, areaID uint64, r model.TimeRange, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.index.IsAvailable(areaID, r, excludeID), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return model.Reservation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.byID[id]
	if !ok {
		return model.Reservation{}, model.ErrNotFound
	}
	return res, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id string, t lifecycle.Transition) (model.Reservation, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	l := s.areaLock(cur.AreaID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	res := s.byID[id]
	if res.Status != t.From {
		s.mu.Unlock()
		return model.Reservation{}, fmt.Errorf("status is %s, expected %s: %w", res.Status, t.From, model.ErrInvalidStatusTransition)
	}
	res.Status = t.To
	res.StatusChangedAt = t.At
	s.byID[id] = res
	s.mu.Unlock()

	if !t.To.IsActive() {
		s.index.Remove(res.AreaID, id)
	}
	return res, nil
}

func (s *MemoryStore) UpdateNotes(ctx context.Context, id, notes string) (model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return model.Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.byID[id]
	if !ok {
		return model.Reservation{}, model.ErrNotFound
	}
	if res.Status != model.StatusPending {
		return model.Reservation{}, fmt.Errorf("notes are read-only once %s: %w", res.Status, model.ErrInvalidStatusTransition)
	}
	res.Notes = notes
	s.byID[id] = res
	return res, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, q ListQuery) ([]model.Reservation, error) {
	return s.list(ctx, q, func(r model.Reservation) bool { return r.UserID == userID })
}

func (s *MemoryStore) ListByArea(ctx context.Context, areaID uint64, q ListQuery) ([]model.Reservation, error) {
	return s.list(ctx, q, func(r model.Reservation) bool { return r.AreaID == areaID })
}

func (s *MemoryStore) ListDuePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	q := ListQuery{Statuses: []model.Status{model.StatusPending}, Limit: limit}
	return s.list(ctx, q, func(r model.Reservation) bool { return !r.Range.Start.After(cutoff) })
}

func (s *MemoryStore) list(ctx context.Context, q ListQuery, keep func(model.Reservation) bool) ([]model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.Reservation, 0)
	for _, r := range s.byID {
		if keep(r) && q.Match(r) && q.After.After(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Range.Start.Equal(out[j].Range.Start) {
			return out[i].Range.Start.Before(out[j].Range.Start)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
