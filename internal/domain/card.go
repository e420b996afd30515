package domain

import "time"

// Card is the scheduling record for one content item. The host owns the
// item itself; the card only tracks review state, keyed by the item's path.
type Card struct {
	ID        string              `json:"id"`
	Path      string              `json:"path"`
	Schedules map[string]Schedule `json:"schedules"` // queue id -> schedule
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Clone returns a deep copy of the card, including its schedule map.
func (c Card) Clone() Card {
	out := c
	out.Schedules = make(map[string]Schedule, len(c.Schedules))
	for q, s := range c.Schedules {
		out.Schedules[q] = s.Clone()
	}
	return out
}

// Schedule is a card's state within one queue. Its numeric fields and state
// are only ever rewritten with the output of the algorithm adapter; callers
// must not adjust them piecemeal.
type Schedule struct {
	Due           time.Time  `json:"due"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	ElapsedDays   float64    `json:"elapsedDays"`
	ScheduledDays float64    `json:"scheduledDays"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	State         State      `json:"state"`
	Step          int        `json:"step"`
	LastReview    *time.Time `json:"lastReview"`
	JoinedAt      time.Time  `json:"joinedAt"`
}

// Clone returns a deep copy of the schedule. Pointer fields are copied by value.
func (s Schedule) Clone() Schedule {
	out := s
	if s.LastReview != nil {
		v := *s.LastReview
		out.LastReview = &v
	}
	return out
}

// IsDue reports whether the schedule is due at any point today:
// due <= end of today.
func (s Schedule) IsDue(now time.Time) bool {
	return !s.Due.After(EndOfDay(now))
}

// IsOverdue reports whether the schedule was due before today began:
// due < start of today.
func (s Schedule) IsOverdue(now time.Time) bool {
	return s.Due.Before(StartOfDay(now))
}

// StartOfDay returns midnight at the start of t's day, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day, in t's location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}
