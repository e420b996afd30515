// Package algorithm adapts the external FSRS scheduler to the schedule model
// used by the rest of the system. It is the only package that touches the
// algorithm library; everything else sees domain.Schedule values.
package algorithm

import (
	"fmt"
	"time"

	"github.com/sky-flux/flux"

	"github.com/recallkit/recall/internal/domain"
)

// Config holds the adapter's tunables. Values are expected to be within
// bounds already; the config layer clamps them at ingestion (see
// internal/config), so the adapter does not re-validate on every call.
type Config struct {
	TargetRetention float64 // desired recall probability, [0.70, 0.97]
	MaxIntervalDays int     // hard cap on scheduled intervals, [1, 36500]
	Fuzz            bool    // randomize review intervals to avoid clustering
}

// LogFields captures the before/after scheduling snapshot of one rating,
// ready to be recorded in a review log entry.
type LogFields struct {
	Rating     domain.Rating
	Before     domain.Schedule
	After      domain.Schedule
	ReviewedAt time.Time
}

// Preview describes the consequence of one hypothetical rating.
type Preview struct {
	Due           time.Time
	IntervalDays  float64
	IntervalLabel string
}

// Adapter wraps a flux.Scheduler. Stateless given its configuration.
type Adapter struct {
	sched *flux.Scheduler
}

// New builds an adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	sched, err := flux.NewScheduler(flux.SchedulerConfig{
		DesiredRetention: cfg.TargetRetention,
		MaximumInterval:  cfg.MaxIntervalDays,
		DisableFuzzing:   !cfg.Fuzz,
	})
	if err != nil {
		return nil, fmt.Errorf("building scheduler: %w", err)
	}
	return &Adapter{sched: sched}, nil
}

// NewSchedule returns the canonical unseen state: a New schedule due
// immediately, joined at now.
func (a *Adapter) NewSchedule(now time.Time) domain.Schedule {
	return domain.Schedule{
		Due:      now,
		State:    domain.New,
		JoinedAt: now,
	}
}

// Rate applies one rating at the given time and returns the successor
// schedule plus the log fields of the transition. The input is not mutated.
func (a *Adapter) Rate(s domain.Schedule, rating domain.Rating, now time.Time) (domain.Schedule, LogFields) {
	before := s.Clone()

	card, _ := a.sched.ReviewCard(toCard(s), toFluxRating(rating), now)

	next := fromCard(card)
	next.JoinedAt = before.JoinedAt
	next.Reps = before.Reps + 1
	next.Lapses = before.Lapses
	if rating == domain.Again && (before.State == domain.Review || before.State == domain.Relearning) {
		next.Lapses++
	}
	if before.LastReview != nil {
		next.ElapsedDays = now.Sub(*before.LastReview).Hours() / 24.0
	}
	next.ScheduledDays = card.Due.Sub(now).Hours() / 24.0

	return next, LogFields{
		Rating:     rating,
		Before:     before,
		After:      next.Clone(),
		ReviewedAt: now,
	}
}

// Rollback returns the schedule as it was before the logged transition.
// It restores the recorded snapshot rather than inverting the math; the
// session engine's undo keeps its own snapshot and is the authoritative
// undo path, but the contract is kept here for algorithm-driven replay.
func (a *Adapter) Rollback(_ domain.Schedule, fields LogFields) domain.Schedule {
	return fields.Before.Clone()
}

// Preview returns, for each of the four ratings, the schedule outcome of
// rating the card at now, without committing anything.
func (a *Adapter) Preview(s domain.Schedule, now time.Time) map[domain.Rating]Preview {
	out := make(map[domain.Rating]Preview, len(domain.Ratings))
	for _, r := range domain.Ratings {
		next, _ := a.Rate(s, r, now)
		days := next.Due.Sub(now).Hours() / 24.0
		out[r] = Preview{
			Due:           next.Due,
			IntervalDays:  days,
			IntervalLabel: intervalLabel(next.Due.Sub(now)),
		}
	}
	return out
}

// Retrievability estimates the probability of recall at now. ok is false
// when the schedule has never been reviewed and no estimate exists.
func (a *Adapter) Retrievability(s domain.Schedule, now time.Time) (float64, bool) {
	if s.LastReview == nil || s.Stability <= 0 {
		return 0, false
	}
	return a.sched.Retrievability(toCard(s), now), true
}

// intervalLabel renders a duration the way review buttons show it.
func intervalLabel(d time.Duration) string {
	switch {
	case d < time.Hour:
		m := int(d.Minutes())
		if m < 1 {
			m = 1
		}
		return fmt.Sprintf("%dm", m)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%.1fmo", d.Hours()/24/30)
	default:
		return fmt.Sprintf("%.1fy", d.Hours()/24/365)
	}
}
