package algorithm

import (
	"testing"
	"time"

	"github.com/recallkit/recall/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func mustAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(Config{TargetRetention: 0.9, MaxIntervalDays: 36500, Fuzz: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewSchedule(t *testing.T) {
	a := mustAdapter(t)
	s := a.NewSchedule(t0)

	if s.State != domain.New {
		t.Errorf("State = %v, want New", s.State)
	}
	if !s.Due.Equal(t0) {
		t.Errorf("Due = %v, want %v", s.Due, t0)
	}
	if !s.JoinedAt.Equal(t0) {
		t.Errorf("JoinedAt = %v, want %v", s.JoinedAt, t0)
	}
	if s.Reps != 0 || s.Lapses != 0 || s.LastReview != nil {
		t.Errorf("unseen schedule has review history: %+v", s)
	}
}

func TestRateDoesNotMutateInput(t *testing.T) {
	a := mustAdapter(t)
	s := a.NewSchedule(t0)
	orig := s.Clone()

	a.Rate(s, domain.Good, t0)

	if s.Reps != orig.Reps || s.State != orig.State || !s.Due.Equal(orig.Due) {
		t.Errorf("input schedule mutated: %+v", s)
	}
}

func TestRateFirstReview(t *testing.T) {
	a := mustAdapter(t)
	s := a.NewSchedule(t0)

	next, fields := a.Rate(s, domain.Good, t0)

	if next.State != domain.Learning {
		t.Errorf("State = %v, want Learning", next.State)
	}
	if next.Reps != 1 {
		t.Errorf("Reps = %d, want 1", next.Reps)
	}
	if next.Lapses != 0 {
		t.Errorf("Lapses = %d, want 0", next.Lapses)
	}
	if next.Stability <= 0 {
		t.Errorf("Stability = %f, want > 0", next.Stability)
	}
	if next.Difficulty < 1 || next.Difficulty > 10 {
		t.Errorf("Difficulty = %f, want within [1, 10]", next.Difficulty)
	}
	if next.LastReview == nil || !next.LastReview.Equal(t0) {
		t.Errorf("LastReview = %v, want %v", next.LastReview, t0)
	}
	if fields.Before.State != domain.New || fields.After.State != domain.Learning {
		t.Errorf("log fields do not bracket the transition: %+v", fields)
	}
	if fields.Rating != domain.Good {
		t.Errorf("fields.Rating = %v", fields.Rating)
	}
}

// graduate drives a fresh schedule into the Review state.
func graduate(t *testing.T, a *Adapter) (domain.Schedule, time.Time) {
	t.Helper()
	s := a.NewSchedule(t0)
	now := t0
	for i := 0; i < 5; i++ {
		if s.State == domain.Review {
			return s, now
		}
		s, _ = a.Rate(s, domain.Good, now)
		now = s.Due
	}
	if s.State != domain.Review {
		t.Fatalf("schedule did not graduate: state %v", s.State)
	}
	return s, now
}

func TestRateAgainAfterGraduation(t *testing.T) {
	a := mustAdapter(t)
	s, _ := graduate(t, a)
	preReps, preLapses := s.Reps, s.Lapses

	// Rated Again three days past due.
	late := s.Due.AddDate(0, 0, 3)
	next, _ := a.Rate(s, domain.Again, late)

	if next.State != domain.Learning && next.State != domain.Relearning {
		t.Errorf("State = %v, want Learning or Relearning", next.State)
	}
	if next.Reps != preReps+1 {
		t.Errorf("Reps = %d, want %d", next.Reps, preReps+1)
	}
	if next.Lapses != preLapses+1 {
		t.Errorf("Lapses = %d, want %d", next.Lapses, preLapses+1)
	}
	if next.ElapsedDays <= 0 {
		t.Errorf("ElapsedDays = %f, want > 0", next.ElapsedDays)
	}
}

func TestRollbackRestoresLoggedSnapshot(t *testing.T) {
	a := mustAdapter(t)
	s := a.NewSchedule(t0)
	s, _ = a.Rate(s, domain.Good, t0)

	next, fields := a.Rate(s, domain.Hard, s.Due)
	restored := a.Rollback(next, fields)

	if restored.Reps != s.Reps || restored.State != s.State || restored.Stability != s.Stability {
		t.Errorf("Rollback = %+v, want %+v", restored, s)
	}
	if !restored.Due.Equal(s.Due) {
		t.Errorf("Rollback Due = %v, want %v", restored.Due, s.Due)
	}
}

func TestPreviewCoversAllRatingsWithoutCommitting(t *testing.T) {
	a := mustAdapter(t)
	s, now := graduate(t, a)
	orig := s.Clone()

	previews := a.Preview(s, now)

	if len(previews) != 4 {
		t.Fatalf("previews = %d entries, want 4", len(previews))
	}
	for _, r := range domain.Ratings {
		p, ok := previews[r]
		if !ok {
			t.Fatalf("missing preview for %v", r)
		}
		if p.IntervalLabel == "" {
			t.Errorf("%v: empty interval label", r)
		}
	}
	// Easy must schedule further out than Again.
	if !previews[domain.Easy].Due.After(previews[domain.Again].Due) {
		t.Errorf("Easy due %v not after Again due %v",
			previews[domain.Easy].Due, previews[domain.Again].Due)
	}
	if s.Reps != orig.Reps || !s.Due.Equal(orig.Due) {
		t.Error("Preview mutated the schedule")
	}
}

func TestRetrievability(t *testing.T) {
	a := mustAdapter(t)

	t.Run("missing before first review", func(t *testing.T) {
		if _, ok := a.Retrievability(a.NewSchedule(t0), t0); ok {
			t.Error("expected no estimate for an unseen schedule")
		}
	})

	t.Run("decays over time", func(t *testing.T) {
		s, now := graduate(t, a)
		early, ok := a.Retrievability(s, now.Add(time.Hour))
		if !ok {
			t.Fatal("expected an estimate after review")
		}
		late, _ := a.Retrievability(s, now.AddDate(0, 0, 30))
		if early < 0 || early > 1 || late < 0 || late > 1 {
			t.Errorf("estimates out of [0,1]: %f, %f", early, late)
		}
		if late >= early {
			t.Errorf("retrievability did not decay: early %f, late %f", early, late)
		}
	})
}

func TestIntervalLabel(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "1m"},
		{10 * time.Minute, "10m"},
		{3 * time.Hour, "3h"},
		{72 * time.Hour, "3d"},
		{45 * 24 * time.Hour, "1.5mo"},
		{2 * 365 * 24 * time.Hour, "2.0y"},
	}
	for _, tc := range cases {
		if got := intervalLabel(tc.d); got != tc.want {
			t.Errorf("intervalLabel(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
