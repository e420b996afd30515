// Package queue groups items into named queues, keeps membership in sync
// with the external content corpus and orders due items for review.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallkit/recall/internal/algorithm"
	"github.com/recallkit/recall/internal/cardstore"
	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/resolver"
	"github.com/recallkit/recall/internal/storage"
)

// ErrNotFound reports an operation against a queue id that does not exist.
var ErrNotFound = errors.New("queue: not found")

// statsTTL bounds staleness of cached queue stats.
const statsTTL = 30 * time.Second

// SyncReport summarizes one membership reconciliation.
type SyncReport struct {
	Added     []string
	Removed   []string
	Unchanged []string
}

// Engine is the queue engine.
type Engine struct {
	store    *storage.Store
	cards    *cardstore.Store
	algo     *algorithm.Adapter
	resolver resolver.Resolver
	logger   *slog.Logger
	now      func() time.Time
	rng      *rand.Rand

	mu    sync.Mutex
	stats map[string]domain.QueueStats
}

// New creates a queue engine.
func New(st *storage.Store, cards *cardstore.Store, algo *algorithm.Adapter, res resolver.Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		cards:    cards,
		algo:     algo,
		resolver: res,
		logger:   logger,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stats:    map[string]domain.QueueStats{},
	}
}

// Create adds a new queue and returns it.
func (e *Engine) Create(name string, criteria domain.Criteria, strategy domain.Strategy) domain.Queue {
	if strategy == "" {
		strategy = domain.StrategyMixed
	}
	q := domain.Queue{
		ID:        uuid.NewString(),
		Name:      name,
		Criteria:  criteria,
		Strategy:  strategy,
		CreatedAt: e.now(),
	}
	e.store.Update(func(d *storage.Document) {
		d.Queues = append(d.Queues, q)
	})
	e.logger.Info("queue created", "id", q.ID, "name", name, "strategy", strategy)
	return q
}

// Get returns a deep copy of the queue with the given id. Mutations to the
// copy do not reach the store; changes go through Update.
func (e *Engine) Get(queueID string) (domain.Queue, bool) {
	var q domain.Queue
	var ok bool
	e.store.View(func(d *storage.Document) {
		for _, candidate := range d.Queues {
			if candidate.ID == queueID {
				q = candidate.Clone()
				ok = true
				return
			}
		}
	})
	return q, ok
}

// List returns deep copies of all queues.
func (e *Engine) List() []domain.Queue {
	var out []domain.Queue
	e.store.View(func(d *storage.Document) {
		for _, q := range d.Queues {
			out = append(out, q.Clone())
		}
	})
	return out
}

// Delete removes the queue. With cascade, every schedule held for it is
// removed as well (deleting cards whose last schedule goes).
func (e *Engine) Delete(queueID string, cascade bool) error {
	if _, ok := e.Get(queueID); !ok {
		return fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
	}

	if cascade {
		for _, item := range e.cards.Items(queueID) {
			if err := e.cards.RemoveFromQueue(item.Path, queueID); err != nil {
				e.logger.Warn("cascade removal failed", "path", item.Path, "error", err)
			}
		}
	}

	e.store.Update(func(d *storage.Document) {
		kept := d.Queues[:0]
		for _, q := range d.Queues {
			if q.ID != queueID {
				kept = append(kept, q)
			}
		}
		d.Queues = kept
	})
	e.Invalidate(queueID)
	return nil
}

// Sync resolves the queue's criteria against the content resolver and diffs
// the result against current card membership. Newly matching paths get
// cards; paths that no longer match are only reported, never deleted —
// removal is a separate explicit operation.
func (e *Engine) Sync(ctx context.Context, queueID string) (SyncReport, error) {
	q, ok := e.Get(queueID)
	if !ok {
		return SyncReport{}, fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
	}

	resolved, err := e.resolver.Resolve(ctx, q.Criteria)
	if err != nil {
		return SyncReport{}, fmt.Errorf("resolving criteria for queue %s: %w", queueID, err)
	}

	current := map[string]bool{}
	for _, item := range e.cards.Items(queueID) {
		current[item.Path] = false
	}

	var report SyncReport
	for _, path := range resolved {
		if _, ok := current[path]; ok {
			current[path] = true
			report.Unchanged = append(report.Unchanged, path)
			continue
		}
		e.cards.CreateCard(path, queueID)
		report.Added = append(report.Added, path)
	}
	for path, matched := range current {
		if !matched {
			report.Removed = append(report.Removed, path)
		}
	}

	e.Invalidate(queueID)
	e.logger.Info("queue synced",
		"queue", q.Name,
		"added", len(report.Added),
		"removed", len(report.Removed),
		"unchanged", len(report.Unchanged),
	)
	return report, nil
}

// DueSet returns the queue's due items ordered by its strategy, with daily
// caps applied where the strategy calls for them.
func (e *Engine) DueSet(queueID string, now time.Time) ([]cardstore.Item, error) {
	q, ok := e.Get(queueID)
	if !ok {
		return nil, fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
	}
	due := e.cards.Due(queueID, now)
	return e.order(due, q, now), nil
}

// Stats returns the queue's cached stats, recomputing synchronously when the
// cache is older than the TTL or the criteria changed underneath it.
func (e *Engine) Stats(queueID string) (domain.QueueStats, error) {
	q, ok := e.Get(queueID)
	if !ok {
		return domain.QueueStats{}, fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
	}

	now := e.now()
	fp := Fingerprint(q.Criteria)

	e.mu.Lock()
	cached, ok := e.stats[queueID]
	e.mu.Unlock()
	if ok && cached.Fingerprint == fp && now.Sub(cached.LastUpdated) < statsTTL {
		return cached, nil
	}

	items := e.cards.Items(queueID)
	stats := domain.QueueStats{
		QueueID:       queueID,
		Total:         len(items),
		ReviewedToday: e.cards.ReviewedToday(queueID, now),
		Fingerprint:   fp,
		LastUpdated:   now,
	}
	for _, item := range items {
		if item.Schedule.State == domain.New {
			stats.New++
		}
		if item.Schedule.IsDue(now) {
			stats.Due++
		}
	}

	e.mu.Lock()
	e.stats[queueID] = stats
	e.mu.Unlock()
	return stats, nil
}

// Invalidate drops the cached stats for the queue so the next Stats call
// recomputes.
func (e *Engine) Invalidate(queueID string) {
	e.mu.Lock()
	delete(e.stats, queueID)
	e.mu.Unlock()
}

// newPerDay returns the queue's new-cards-per-day cap, falling back to the
// global setting.
func (e *Engine) newPerDay(q domain.Queue) int {
	if q.NewPerDay > 0 {
		return q.NewPerDay
	}
	return e.store.Settings().NewPerDay
}

// reviewsPerDay returns the queue's reviews-per-day cap, falling back to the
// global setting.
func (e *Engine) reviewsPerDay(q domain.Queue) int {
	if q.ReviewsPerDay > 0 {
		return q.ReviewsPerDay
	}
	return e.store.Settings().ReviewsPerDay
}
