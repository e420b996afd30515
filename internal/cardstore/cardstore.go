// Package cardstore implements per-item schedule CRUD over the persistence
// store. State transitions are delegated to the algorithm adapter; every
// rating appends an immutable review log entry.
package cardstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/recallkit/recall/internal/algorithm"
	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/storage"
)

// ErrNotFound reports a targeted mutation against a card, schedule or queue
// that does not exist. Callers are expected to no-op and notify, not crash.
var ErrNotFound = errors.New("cardstore: not found")

// Item pairs an item path with its schedule in one queue.
type Item struct {
	Path     string
	Schedule domain.Schedule
}

// Store is the card store.
type Store struct {
	store  *storage.Store
	algo   *algorithm.Adapter
	logger *slog.Logger
	now    func() time.Time
}

// New creates a card store over the given persistence store and adapter.
func New(st *storage.Store, algo *algorithm.Adapter, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{store: st, algo: algo, logger: logger, now: time.Now}
}

// CreateCard ensures a card exists for path with a schedule in queueID.
// Idempotent: an existing card gains only the missing schedule, and
// re-creating an existing schedule changes nothing.
func (s *Store) CreateCard(path, queueID string) {
	now := s.now()
	s.store.Update(func(d *storage.Document) {
		card := d.Cards[path]
		if card == nil {
			card = &domain.Card{
				ID:        uuid.NewString(),
				Path:      path,
				Schedules: map[string]domain.Schedule{},
				CreatedAt: now,
				UpdatedAt: now,
			}
			d.Cards[path] = card
		}
		if _, ok := card.Schedules[queueID]; !ok {
			card.Schedules[queueID] = s.algo.NewSchedule(now)
			card.UpdatedAt = now
		}
	})
}

// UpdateSchedule applies one rating to the card's schedule in queueID,
// appends a review log entry and returns it. Returns ErrNotFound when the
// card or that queue's schedule is absent.
func (s *Store) UpdateSchedule(path, queueID string, rating domain.Rating, sessionID string) (domain.ReviewLogEntry, error) {
	var entry domain.ReviewLogEntry
	var retErr error
	now := s.now()

	s.store.Update(func(d *storage.Document) {
		card := d.Cards[path]
		if card == nil {
			retErr = fmt.Errorf("card %s: %w", path, ErrNotFound)
			return
		}
		sched, ok := card.Schedules[queueID]
		if !ok {
			retErr = fmt.Errorf("schedule for %s in queue %s: %w", path, queueID, ErrNotFound)
			return
		}

		next, fields := s.algo.Rate(sched, rating, now)
		card.Schedules[queueID] = next
		card.UpdatedAt = now

		entry = domain.ReviewLogEntry{
			ID:        ulid.Make().String(),
			Path:      path,
			QueueID:   queueID,
			Rating:    rating,
			Before:    fields.Before,
			After:     fields.After,
			SessionID: sessionID,
			Timestamp: fields.ReviewedAt,
		}
		d.Reviews = append(d.Reviews, entry)
	})

	return entry, retErr
}

// RestoreSchedule writes a previously captured schedule snapshot back
// verbatim and flips the referenced log entry's undone flag. This is the
// authoritative undo path: exact restoration, not recomputation.
func (s *Store) RestoreSchedule(path, queueID string, snapshot domain.Schedule, logID string) error {
	var retErr error
	now := s.now()

	s.store.Update(func(d *storage.Document) {
		card := d.Cards[path]
		if card == nil {
			retErr = fmt.Errorf("card %s: %w", path, ErrNotFound)
			return
		}
		if _, ok := card.Schedules[queueID]; !ok {
			retErr = fmt.Errorf("schedule for %s in queue %s: %w", path, queueID, ErrNotFound)
			return
		}
		card.Schedules[queueID] = snapshot.Clone()
		card.UpdatedAt = now

		for i := len(d.Reviews) - 1; i >= 0; i-- {
			if d.Reviews[i].ID == logID {
				d.Reviews[i].Undone = true
				break
			}
		}
	})

	return retErr
}

// RemoveFromQueue deletes the card's schedule for queueID. The card itself
// is deleted once its last schedule goes.
func (s *Store) RemoveFromQueue(path, queueID string) error {
	var retErr error
	now := s.now()

	s.store.Update(func(d *storage.Document) {
		card := d.Cards[path]
		if card == nil {
			retErr = fmt.Errorf("card %s: %w", path, ErrNotFound)
			return
		}
		if _, ok := card.Schedules[queueID]; !ok {
			retErr = fmt.Errorf("schedule for %s in queue %s: %w", path, queueID, ErrNotFound)
			return
		}
		delete(card.Schedules, queueID)
		card.UpdatedAt = now
		if len(card.Schedules) == 0 {
			delete(d.Cards, path)
		}
	})

	return retErr
}

// Rename moves a card to a new path and re-points every review log entry
// referencing the old path, so history survives renames.
func (s *Store) Rename(oldPath, newPath string) error {
	var retErr error
	now := s.now()

	s.store.Update(func(d *storage.Document) {
		card := d.Cards[oldPath]
		if card == nil {
			retErr = fmt.Errorf("card %s: %w", oldPath, ErrNotFound)
			return
		}
		delete(d.Cards, oldPath)
		card.Path = newPath
		card.UpdatedAt = now
		d.Cards[newPath] = card

		for i := range d.Reviews {
			if d.Reviews[i].Path == oldPath {
				d.Reviews[i].Path = newPath
			}
		}
	})

	if retErr == nil {
		s.logger.Info("card renamed", "from", oldPath, "to", newPath)
	}
	return retErr
}

// HandleDelete records the card as an orphan and removes it, in response to
// a permanent-delete notification from the host. Unknown paths are ignored.
func (s *Store) HandleDelete(path string) {
	now := s.now()
	s.store.Update(func(d *storage.Document) {
		card := d.Cards[path]
		if card == nil {
			return
		}
		schedules := make(map[string]domain.Schedule, len(card.Schedules))
		for q, sched := range card.Schedules {
			schedules[q] = sched.Clone()
		}
		d.Orphans = append(d.Orphans, domain.Orphan{
			Path:       path,
			CardID:     card.ID,
			Schedules:  schedules,
			RecordedAt: now,
		})
		delete(d.Cards, path)
	})
	s.logger.Info("card orphaned", "path", path)
}

// Get returns a deep copy of the card at path.
func (s *Store) Get(path string) (domain.Card, bool) {
	var card domain.Card
	var ok bool
	s.store.View(func(d *storage.Document) {
		if c := d.Cards[path]; c != nil {
			card = c.Clone()
			ok = true
		}
	})
	return card, ok
}

// Schedule returns a copy of the card's schedule in queueID.
func (s *Store) Schedule(path, queueID string) (domain.Schedule, bool) {
	var sched domain.Schedule
	var ok bool
	s.store.View(func(d *storage.Document) {
		if c := d.Cards[path]; c != nil {
			if sc, exists := c.Schedules[queueID]; exists {
				sched = sc.Clone()
				ok = true
			}
		}
	})
	return sched, ok
}

// Items returns every (path, schedule) pair holding a schedule for queueID.
// Computed by a full scan on demand, not incrementally maintained.
func (s *Store) Items(queueID string) []Item {
	return s.filter(queueID, func(domain.Schedule) bool { return true })
}

// Due returns the queue's items with due <= end of today.
func (s *Store) Due(queueID string, now time.Time) []Item {
	return s.filter(queueID, func(sc domain.Schedule) bool { return sc.IsDue(now) })
}

// Overdue returns the queue's items with due < start of today.
func (s *Store) Overdue(queueID string, now time.Time) []Item {
	return s.filter(queueID, func(sc domain.Schedule) bool { return sc.IsOverdue(now) })
}

// NewItems returns the queue's never-reviewed items.
func (s *Store) NewItems(queueID string) []Item {
	return s.filter(queueID, func(sc domain.Schedule) bool { return sc.State == domain.New })
}

func (s *Store) filter(queueID string, keep func(domain.Schedule) bool) []Item {
	var items []Item
	s.store.View(func(d *storage.Document) {
		for path, card := range d.Cards {
			if sched, ok := card.Schedules[queueID]; ok && keep(sched) {
				items = append(items, Item{Path: path, Schedule: sched.Clone()})
			}
		}
	})
	return items
}

// ReviewedToday counts non-undone log entries for queueID since the start
// of now's day.
func (s *Store) ReviewedToday(queueID string, now time.Time) int {
	start := domain.StartOfDay(now)
	count := 0
	s.store.View(func(d *storage.Document) {
		for _, r := range d.Reviews {
			if r.QueueID == queueID && !r.Undone && !r.Timestamp.Before(start) {
				count++
			}
		}
	})
	return count
}
