// Package memstore is an in-process punch store, used when persistence is
// disabled and as a test double.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/pkg/models"
)

// Store holds punches in a map keyed by id
type Store struct {
	mu      sync.Mutex
	punches map[int64]models.Punch

	// Counters for tests and run reports
	Inserts int
	Deletes int
	Updates int
}

// New creates an empty store, optionally seeded with punches
func New(seed ...models.Punch) *Store {
	s := &Store{punches: make(map[int64]models.Punch)}
	for _, p := range seed {
		s.punches[p.ID] = p
	}
	return s
}

func (s *Store) FindByMonth(_ context.Context, employee string, w period.Window) ([]models.Punch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Punch
	for _, p := range s.punches {
		if p.EmployeeName == employee && w.Contains(p.ServiceDate) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ServiceDate.Equal(out[j].ServiceDate) {
			return out[i].ServiceDate.Before(out[j].ServiceDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertMany(_ context.Context, punches []models.Punch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, p := range punches {
		if _, ok := s.punches[p.ID]; ok {
			continue
		}
		s.punches[p.ID] = p
		inserted++
	}
	s.Inserts += inserted
	return inserted, nil
}

func (s *Store) DeleteMany(_ context.Context, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.punches[id]; ok {
			delete(s.punches, id)
			deleted++
		}
	}
	s.Deletes += deleted
	return deleted, nil
}

func (s *Store) SetCalendarEventID(_ context.Context, id int64, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.punches[id]
	if !ok {
		return nil
	}
	p.CalendarEventID = eventID
	s.punches[id] = p
	s.Updates++
	return nil
}

// Get returns a stored punch by id
func (s *Store) Get(id int64) (models.Punch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.punches[id]
	return p, ok
}

// Employees lists every employee with stored punches
func (s *Store) Employees(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var names []string
	for _, p := range s.punches {
		if !seen[p.EmployeeName] {
			seen[p.EmployeeName] = true
			names = append(names, p.EmployeeName)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Len returns the number of stored punches
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.punches)
}

func (s *Store) Close() error { return nil }
