package domain

import (
	"encoding/json"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestDuePredicates(t *testing.T) {
	cases := []struct {
		name    string
		due     time.Time
		isDue   bool
		overdue bool
	}{
		{"due three days ago", t0.AddDate(0, 0, -3), true, true},
		{"due yesterday evening", t0.Add(-12 * time.Hour), true, true},
		{"due earlier today", t0.Add(-time.Hour), true, false},
		{"due at end of today", EndOfDay(t0), true, false},
		{"due tomorrow", t0.Add(24 * time.Hour), false, false},
		{"due next week", t0.AddDate(0, 0, 7), false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Schedule{Due: tc.due}
			if got := s.IsDue(t0); got != tc.isDue {
				t.Errorf("IsDue = %v, want %v", got, tc.isDue)
			}
			if got := s.IsOverdue(t0); got != tc.overdue {
				t.Errorf("IsOverdue = %v, want %v", got, tc.overdue)
			}
		})
	}
}

func TestDayBounds(t *testing.T) {
	start := StartOfDay(t0)
	if start.Hour() != 0 || start.Minute() != 0 || start.YearDay() != t0.YearDay() {
		t.Errorf("StartOfDay = %v", start)
	}
	end := EndOfDay(t0)
	if !end.After(t0) || end.YearDay() != t0.YearDay() {
		t.Errorf("EndOfDay = %v", end)
	}
}

func TestScheduleCloneIndependence(t *testing.T) {
	lr := t0
	s := Schedule{Due: t0, Stability: 3.5, LastReview: &lr}
	c := s.Clone()

	*c.LastReview = t0.AddDate(0, 0, 5)
	if !s.LastReview.Equal(t0) {
		t.Error("mutating the clone's LastReview changed the original")
	}
}

func TestCardCloneIndependence(t *testing.T) {
	card := Card{
		ID:        "id",
		Path:      "a.md",
		Schedules: map[string]Schedule{"q1": {Due: t0, Reps: 2}},
	}
	clone := card.Clone()
	clone.Schedules["q1"] = Schedule{Due: t0, Reps: 99}

	if card.Schedules["q1"].Reps != 2 {
		t.Error("mutating the clone's schedule map changed the original")
	}
}

func TestQueueCloneIndependence(t *testing.T) {
	q := Queue{
		ID:       "q1",
		Criteria: Criteria{Kind: CriteriaTags, Tags: []string{"go"}},
	}
	clone := q.Clone()
	clone.Criteria.Tags[0] = "rust"

	if q.Criteria.Tags[0] != "go" {
		t.Error("mutating the clone's criteria changed the original")
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Relearning)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"Relearning"` {
		t.Errorf("Marshal = %s", data)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s != Relearning {
		t.Errorf("round trip = %v", s)
	}

	var bad State
	if err := json.Unmarshal([]byte(`"Forgotten"`), &bad); err == nil {
		t.Error("expected error for unknown state name")
	}
}

func TestRatingJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Again)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"Again"` {
		t.Errorf("Marshal = %s", data)
	}
	var r Rating
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r != Again {
		t.Errorf("round trip = %v", r)
	}

	if Rating(5).IsValid() {
		t.Error("Rating(5) should be invalid")
	}
}

func TestSessionSnapshotCopies(t *testing.T) {
	state := &SessionState{
		SessionID:   "s1",
		QueueID:     "q1",
		ReviewQueue: []string{"a.md", "b.md"},
		Ratings:     map[Rating]int{Good: 1},
		History:     []UndoEntry{{Path: "a.md"}},
	}
	snap := state.Snapshot()

	snap.ReviewQueue[0] = "x.md"
	snap.Ratings[Good] = 99
	if state.ReviewQueue[0] != "a.md" || state.Ratings[Good] != 1 {
		t.Error("snapshot shares memory with the session state")
	}
}
