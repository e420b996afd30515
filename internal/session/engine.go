// Package session orchestrates one review pass over a queue's due items:
// navigation, rating, undo and crash resume. At most one session is active
// at a time; a second start is rejected, not queued.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallkit/recall/internal/cardstore"
	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/queue"
	"github.com/recallkit/recall/internal/storage"
)

// Host is the collaborator that brings items into view. The engine polls
// ActiveItem to detect the user navigating away from the expected item.
// Notify carries user-facing notices; expected user-timing conditions (no
// active session, nothing to undo, empty queue) are reported here rather
// than as errors.
type Host interface {
	OpenItem(ctx context.Context, path string) error
	ActiveItem() string
	Notify(msg string)
}

// Engine is the review session engine.
type Engine struct {
	store  *storage.Store
	cards  *cardstore.Store
	queues *queue.Engine
	host   Host
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state *domain.SessionState
}

// New creates a session engine.
func New(st *storage.Store, cards *cardstore.Store, queues *queue.Engine, host Host, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		cards:  cards,
		queues: queues,
		host:   host,
		logger: logger,
		now:    time.Now,
	}
}

// Active reports whether a session is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil
}

// Current returns the path of the item under review.
func (e *Engine) Current() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil || e.state.CurrentIndex >= len(e.state.ReviewQueue) {
		return "", false
	}
	return e.state.ReviewQueue[e.state.CurrentIndex], true
}

// Snapshot returns the current session projection for display.
func (e *Engine) Snapshot() (domain.SessionSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return domain.SessionSnapshot{}, false
	}
	return e.state.Snapshot(), true
}

// Start begins a session over the queue's due items. Returns false with a
// user notice when a session is already active or nothing is due.
func (e *Engine) Start(ctx context.Context, queueID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != nil {
		e.host.Notify("A review session is already active.")
		return false, nil
	}

	if _, err := e.queues.Sync(ctx, queueID); err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return false, err
		}
		// Resolver failure: review whatever membership we already have.
		e.logger.Warn("queue sync failed, using current membership", "queue", queueID, "error", err)
	}

	due, err := e.queues.DueSet(queueID, e.now())
	if err != nil {
		return false, err
	}
	if len(due) == 0 {
		e.host.Notify("No cards are due for review.")
		return false, nil
	}

	paths := make([]string, len(due))
	for i, item := range due {
		paths[i] = item.Path
	}

	e.state = &domain.SessionState{
		SessionID:   uuid.NewString(),
		QueueID:     queueID,
		ReviewQueue: paths,
		Ratings:     map[domain.Rating]int{},
		StartedAt:   e.now(),
	}
	e.logger.Info("session started", "queue", queueID, "items", len(paths))

	e.openCurrentLocked(ctx)
	e.persistLocked(ctx)
	return true, nil
}

// Rate applies a rating to the expected item, records undo state and
// advances. A no-op with a notice when the host has navigated away from the
// expected item.
func (e *Engine) Rate(ctx context.Context, rating domain.Rating) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		e.host.Notify("No active review session.")
		return false, nil
	}
	if !rating.IsValid() {
		return false, fmt.Errorf("session: invalid rating %d", int(rating))
	}

	if e.state.CurrentIndex >= len(e.state.ReviewQueue) {
		e.endLocked(ctx)
		return false, nil
	}

	expected := e.state.ReviewQueue[e.state.CurrentIndex]
	if active := e.host.ActiveItem(); active != expected {
		e.host.Notify("The open item is not the one under review. Bring it back first.")
		return false, nil
	}

	entry, err := e.cards.UpdateSchedule(expected, e.state.QueueID, rating, e.state.SessionID)
	if errors.Is(err, cardstore.ErrNotFound) {
		e.logger.Warn("rated item has no schedule, skipping", "path", expected, "error", err)
		e.host.Notify("This item is no longer scheduled; skipping it.")
		e.advanceLocked(ctx)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	e.state.History = append(e.state.History, domain.UndoEntry{
		Path:     expected,
		QueueID:  e.state.QueueID,
		Rating:   rating,
		LogID:    entry.ID,
		Previous: entry.Before,
	})
	e.state.Reviewed++
	e.state.Ratings[rating]++
	e.queues.Invalidate(e.state.QueueID)

	e.advanceLocked(ctx)
	return true, nil
}

// Skip moves past the current item without rating it.
func (e *Engine) Skip(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		e.host.Notify("No active review session.")
		return false
	}
	e.advanceLocked(ctx)
	return true
}

// GoBack reopens the previous item without touching schedules. No-op at the
// first item.
func (e *Engine) GoBack(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil || e.state.CurrentIndex == 0 {
		return false
	}
	e.state.CurrentIndex--
	e.openCurrentLocked(ctx)
	e.persistLocked(ctx)
	return true
}

// BringBack reopens the expected item after the user navigated away inside
// the host. Counters are untouched.
func (e *Engine) BringBack(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil || e.state.CurrentIndex >= len(e.state.ReviewQueue) {
		return false
	}
	e.openCurrentLocked(ctx)
	return true
}

// Undo reverses the most recent rating: the saved schedule snapshot is
// written back verbatim, the log entry is flagged undone and the item
// reopens. Returns false with a notice when there is nothing to undo.
func (e *Engine) Undo(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		e.host.Notify("No active review session.")
		return false, nil
	}
	if len(e.state.History) == 0 {
		e.host.Notify("Nothing to undo.")
		return false, nil
	}

	last := e.state.History[len(e.state.History)-1]
	e.state.History = e.state.History[:len(e.state.History)-1]

	if err := e.cards.RestoreSchedule(last.Path, last.QueueID, last.Previous, last.LogID); err != nil {
		e.logger.Warn("undo failed", "path", last.Path, "error", err)
		e.host.Notify("Could not undo the last review.")
		return false, nil
	}

	e.state.Reviewed--
	e.state.Ratings[last.Rating]--
	if idx := slices.Index(e.state.ReviewQueue, last.Path); idx >= 0 {
		e.state.CurrentIndex = idx
	}
	e.queues.Invalidate(last.QueueID)

	e.openCurrentLocked(ctx)
	e.persistLocked(ctx)
	return true, nil
}

// End finishes the session, clears the persisted snapshot and reports a
// summary. Returns false when no session is active.
func (e *Engine) End(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false
	}
	e.endLocked(ctx)
	return true
}

// Resume rebuilds a session from the persisted snapshot after a restart.
// The queue must still exist and stale paths are dropped; the rebuilt
// session starts with an empty undo history.
func (e *Engine) Resume(ctx context.Context) (bool, error) {
	snap, err := e.store.LoadSession(ctx)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		return false, nil
	}

	if _, ok := e.queues.Get(snap.QueueID); !ok {
		e.logger.Warn("persisted session references a deleted queue, discarding", "queue", snap.QueueID)
		e.clearPersistedLocked(ctx)
		return false, nil
	}

	var paths []string
	index := 0
	for i, path := range snap.ReviewQueue {
		if _, ok := e.cards.Schedule(path, snap.QueueID); !ok {
			continue
		}
		if i < snap.CurrentIndex {
			index++
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		e.logger.Info("persisted session has no live items, discarding")
		e.clearPersistedLocked(ctx)
		return false, nil
	}
	// Every surviving item precedes the suspended position: the session was
	// effectively finished, so there is nothing to resume into.
	if index >= len(paths) {
		e.logger.Info("persisted session was already past its last live item, discarding")
		e.clearPersistedLocked(ctx)
		return false, nil
	}

	ratings := snap.Ratings
	if ratings == nil {
		ratings = map[domain.Rating]int{}
	}
	e.state = &domain.SessionState{
		SessionID:    snap.SessionID,
		QueueID:      snap.QueueID,
		ReviewQueue:  paths,
		CurrentIndex: index,
		Reviewed:     snap.Reviewed,
		Ratings:      ratings,
		StartedAt:    snap.StartedAt,
	}
	e.logger.Info("session resumed", "queue", snap.QueueID, "items", len(paths), "index", index)
	e.host.Notify(fmt.Sprintf("Resumed review session: %d of %d items remaining.", len(paths)-index, len(paths)))

	e.openCurrentLocked(ctx)
	e.persistLocked(ctx)
	return true, nil
}

// advanceLocked moves to the next item, ending the session past the last
// one.
func (e *Engine) advanceLocked(ctx context.Context) {
	e.state.CurrentIndex++
	if e.state.CurrentIndex >= len(e.state.ReviewQueue) {
		e.endLocked(ctx)
		return
	}
	e.openCurrentLocked(ctx)
	e.persistLocked(ctx)
}

func (e *Engine) endLocked(ctx context.Context) {
	summary := fmt.Sprintf("Review finished: %d of %d items reviewed.", e.state.Reviewed, len(e.state.ReviewQueue))
	e.logger.Info("session ended", "queue", e.state.QueueID, "reviewed", e.state.Reviewed, "total", len(e.state.ReviewQueue))
	e.state = nil
	e.clearPersistedLocked(ctx)
	e.host.Notify(summary)
}

func (e *Engine) openCurrentLocked(ctx context.Context) {
	path := e.state.ReviewQueue[e.state.CurrentIndex]
	if err := e.host.OpenItem(ctx, path); err != nil {
		e.logger.Warn("failed to open item", "path", path, "error", err)
	}
}

// persistLocked writes the session projection after every step so the
// session survives a crash. The undo history is deliberately not persisted.
func (e *Engine) persistLocked(ctx context.Context) {
	if err := e.store.SaveSession(ctx, e.state.Snapshot()); err != nil {
		e.logger.Warn("failed to persist session snapshot", "error", err)
	}
}

func (e *Engine) clearPersistedLocked(ctx context.Context) {
	if err := e.store.ClearSession(ctx); err != nil {
		e.logger.Warn("failed to clear session snapshot", "error", err)
	}
}
