package queue

import (
	"sort"
	"time"

	"github.com/recallkit/recall/internal/cardstore"
	"github.com/recallkit/recall/internal/domain"
)

// order applies the queue's strategy to its due set. Every comparator keeps
// due-ascending as the secondary key except where a strategy states
// otherwise; the pre-sort plus stable sorts below give that for free.
func (e *Engine) order(items []cardstore.Item, q domain.Queue, now time.Time) []cardstore.Item {
	out := make([]cardstore.Item, len(items))
	copy(out, items)

	sortByDue(out)

	switch q.Strategy {
	case domain.StrategyStatePriority:
		sort.SliceStable(out, func(i, j int) bool {
			return statePrecedence(out[i].Schedule.State) < statePrecedence(out[j].Schedule.State)
		})
		return out

	case domain.StrategyDueChronological, domain.StrategyOverdueFirst:
		return out

	case domain.StrategyRetrievability:
		sort.SliceStable(out, func(i, j int) bool {
			return e.recall(out[i].Schedule, now) < e.recall(out[j].Schedule, now)
		})
		return out

	case domain.StrategyLoadBalancing:
		if limit := e.reviewsPerDay(q); len(out) > limit {
			out = out[:limit]
		}
		return out

	case domain.StrategyDifficultyAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Schedule.Difficulty < out[j].Schedule.Difficulty
		})
		return out

	case domain.StrategyDifficultyDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Schedule.Difficulty > out[j].Schedule.Difficulty
		})
		return out

	case domain.StrategyRandom:
		// Fisher–Yates, non-deterministic by design.
		for i := len(out) - 1; i > 0; i-- {
			j := e.rng.Intn(i + 1)
			out[i], out[j] = out[j], out[i]
		}
		return out

	default: // mixed
		return e.mixed(out, q)
	}
}

// mixed partitions the due set into learning, new and review, caps new and
// review at the daily limits and concatenates learning, then new, then
// review. Each partition stays due-ascending.
func (e *Engine) mixed(items []cardstore.Item, q domain.Queue) []cardstore.Item {
	var learning, fresh, review []cardstore.Item
	for _, item := range items {
		switch item.Schedule.State {
		case domain.Learning, domain.Relearning:
			learning = append(learning, item)
		case domain.New:
			fresh = append(fresh, item)
		default:
			review = append(review, item)
		}
	}

	if limit := e.newPerDay(q); len(fresh) > limit {
		fresh = fresh[:limit]
	}
	if limit := e.reviewsPerDay(q); len(review) > limit {
		review = review[:limit]
	}

	out := make([]cardstore.Item, 0, len(learning)+len(fresh)+len(review))
	out = append(out, learning...)
	out = append(out, fresh...)
	out = append(out, review...)
	return out
}

// recall returns the recall-probability estimate for ordering. A schedule
// with no estimate sorts last (1.0).
func (e *Engine) recall(s domain.Schedule, now time.Time) float64 {
	r, ok := e.algo.Retrievability(s, now)
	if !ok {
		return 1.0
	}
	return r
}

// statePrecedence encodes Learning > Relearning > Review > New.
func statePrecedence(s domain.State) int {
	switch s {
	case domain.Learning:
		return 0
	case domain.Relearning:
		return 1
	case domain.Review:
		return 2
	default:
		return 3
	}
}

func sortByDue(items []cardstore.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Schedule.Due.Equal(items[j].Schedule.Due) {
			return items[i].Path < items[j].Path
		}
		return items[i].Schedule.Due.Before(items[j].Schedule.Due)
	})
}
