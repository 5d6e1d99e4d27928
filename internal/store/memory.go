package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/rag2504/box-host/internal/model"
)

// memoryStore keeps reservations in process memory. It backs grounds that
// have no durable storage and is used in tests. A session holds an exclusive
// lock per (ground, date) from its first read until Commit or Abort, which
// makes each session serializable for the keys it touches.
type memoryStore struct {
	mu    sync.Mutex
	rows  map[string]model.Reservation // id -> reservation
	locks map[string]chan struct{}     // ground|date -> semaphore
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{
		rows:  make(map[string]model.Reservation),
		locks: make(map[string]chan struct{}),
	}
}

func (m *memoryStore) Begin(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrUnavailable, err)
	}
	return &memorySession{
		store:  m,
		held:   make(map[string]bool),
		staged: make(map[string]model.Reservation),
	}, nil
}

func (m *memoryStore) Snapshot(ctx context.Context, groundKey, date string) ([]model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: read snapshot: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(groundKey, date, model.ActiveStatuses, nil), nil
}

func (m *memoryStore) ListReservations(ctx context.Context, userID string, status model.Status, offset, limit int) ([]model.Reservation, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: list reservations: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	var out []model.Reservation
	for _, r := range m.rows {
		if r.UserID == userID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[max(offset, 0):]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memoryStore) semaphore(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		m.locks[key] = sem
	}
	return sem
}

// selectLocked returns matching rows, with staged rows of the calling
// session layered over the committed ones.
func (m *memoryStore) selectLocked(groundKey, date string, statuses []model.Status, staged map[string]model.Reservation) []model.Reservation {
	var out []model.Reservation
	match := func(r model.Reservation) bool {
		return r.GroundKey == groundKey && r.Date == date && slices.Contains(statuses, r.Status)
	}
	for id, r := range m.rows {
		if s, ok := staged[id]; ok {
			r = s
		}
		if match(r) {
			out = append(out, r)
		}
	}
	for id, r := range staged {
		if _, committed := m.rows[id]; !committed && match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMinute == out[j].StartMinute {
			return out[i].ID < out[j].ID
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out
}

type memorySession struct {
	store  *memoryStore
	held   map[string]bool
	staged map[string]model.Reservation
	done   bool
}

func (s *memorySession) acquire(ctx context.Context, groundKey, date string) error {
	key := lockKey(groundKey, date)
	if s.held[key] {
		return nil
	}
	sem := s.store.semaphore(key)
	select {
	case sem <- struct{}{}:
		s.held[key] = true
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: lock %s: %v", ErrUnavailable, key, ctx.Err())
	}
}

func (s *memorySession) release() {
	for key := range s.held {
		<-s.store.semaphore(key)
	}
	s.held = map[string]bool{}
	s.done = true
}

func (s *memorySession) ReadReservations(ctx context.Context, groundKey, date string, statuses []model.Status) ([]model.Reservation, error) {
	if s.done {
		return nil, fmt.Errorf("%w: session finished", ErrUnavailable)
	}
	if err := s.acquire(ctx, groundKey, date); err != nil {
		return nil, err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.store.selectLocked(groundKey, date, statuses, s.staged), nil
}

func (s *memorySession) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if s.done {
		return fmt.Errorf("%w: session finished", ErrUnavailable)
	}
	if err := s.acquire(ctx, r.GroundKey, r.Date); err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, exists := s.store.rows[r.ID]; exists {
		return fmt.Errorf("%w: reservation %s already exists", ErrConflict, r.ID)
	}
	if _, exists := s.staged[r.ID]; exists {
		return fmt.Errorf("%w: reservation %s already exists", ErrConflict, r.ID)
	}
	// Same last-resort guard as the unique index on the durable store.
	for _, other := range s.store.selectLocked(r.GroundKey, r.Date, model.ActiveStatuses, s.staged) {
		if r.Status.Active() && other.StartMinute == r.StartMinute && other.EndMinute == r.EndMinute {
			return fmt.Errorf("%w: slot %s %d-%d already held by %s", ErrConflict, r.Date, r.StartMinute, r.EndMinute, other.ID)
		}
	}

	s.staged[r.ID] = *r
	return nil
}

func (s *memorySession) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	if s.done {
		return model.Reservation{}, fmt.Errorf("%w: session finished", ErrUnavailable)
	}
	if r, ok := s.staged[id]; ok {
		return r, nil
	}

	s.store.mu.Lock()
	r, ok := s.store.rows[id]
	s.store.mu.Unlock()
	if !ok {
		return model.Reservation{}, ErrNotFound
	}

	if err := s.acquire(ctx, r.GroundKey, r.Date); err != nil {
		return model.Reservation{}, err
	}

	// Re-read under the lock; another session may have committed meanwhile.
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	r, ok = s.store.rows[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	return r, nil
}

func (s *memorySession) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	if s.done {
		return fmt.Errorf("%w: session finished", ErrUnavailable)
	}
	if !s.held[lockKey(r.GroundKey, r.Date)] {
		return fmt.Errorf("%w: reservation %s was not loaded in this session", ErrConflict, r.ID)
	}
	s.staged[r.ID] = *r
	return nil
}

func (s *memorySession) Commit() error {
	if s.done {
		return fmt.Errorf("%w: session finished", ErrUnavailable)
	}
	s.store.mu.Lock()
	for id, r := range s.staged {
		s.store.rows[id] = r
	}
	s.store.mu.Unlock()
	s.release()
	return nil
}

func (s *memorySession) Abort() error {
	if s.done {
		return nil
	}
	s.staged = nil
	s.release()
	return nil
}
