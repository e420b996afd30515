package cardstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recallkit/recall/internal/algorithm"
	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *Store {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	st := storage.New(backend, storage.Options{})
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { st.Close(context.Background()) })

	algo, err := algorithm.New(algorithm.Config{TargetRetention: 0.9, MaxIntervalDays: 36500})
	if err != nil {
		t.Fatalf("algorithm.New: %v", err)
	}

	cards := New(st, algo, nil)
	cards.now = func() time.Time { return t0 }
	return cards
}

func TestCreateCardIdempotent(t *testing.T) {
	cards := newFixture(t)

	cards.CreateCard("a.md", "q1")
	card, ok := cards.Get("a.md")
	if !ok {
		t.Fatal("card missing after CreateCard")
	}
	if card.Schedules["q1"].State != domain.New {
		t.Errorf("schedule state = %v, want New", card.Schedules["q1"].State)
	}
	id := card.ID

	// Same card, second queue.
	cards.CreateCard("a.md", "q2")
	card, _ = cards.Get("a.md")
	if card.ID != id {
		t.Error("adding a second queue replaced the card")
	}
	if len(card.Schedules) != 2 {
		t.Errorf("schedules = %d, want 2", len(card.Schedules))
	}

	// Re-creating an existing schedule changes nothing.
	before, _ := cards.Schedule("a.md", "q1")
	cards.CreateCard("a.md", "q1")
	after, _ := cards.Schedule("a.md", "q1")
	if !after.Due.Equal(before.Due) || after.State != before.State {
		t.Error("re-creating an existing schedule mutated it")
	}
}

func TestUpdateScheduleNotFound(t *testing.T) {
	cards := newFixture(t)

	if _, err := cards.UpdateSchedule("nope.md", "q1", domain.Good, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing card: err = %v, want ErrNotFound", err)
	}

	cards.CreateCard("a.md", "q1")
	if _, err := cards.UpdateSchedule("a.md", "q9", domain.Good, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing schedule: err = %v, want ErrNotFound", err)
	}
}

func TestUpdateScheduleAppendsLog(t *testing.T) {
	cards := newFixture(t)
	cards.CreateCard("a.md", "q1")

	entry, err := cards.UpdateSchedule("a.md", "q1", domain.Good, "s1")
	if err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	if entry.ID == "" {
		t.Error("log entry has no id")
	}
	if entry.Before.State != domain.New || entry.After.State != domain.Learning {
		t.Errorf("log entry does not bracket the transition: %+v", entry)
	}
	if entry.SessionID != "s1" || entry.QueueID != "q1" {
		t.Errorf("entry attribution = %+v", entry)
	}

	sched, _ := cards.Schedule("a.md", "q1")
	if sched.Reps != 1 || sched.State != domain.Learning {
		t.Errorf("schedule after rating = %+v", sched)
	}
	if got := cards.ReviewedToday("q1", t0); got != 1 {
		t.Errorf("ReviewedToday = %d, want 1", got)
	}
}

func TestGraduateThenLapse(t *testing.T) {
	cards := newFixture(t)
	cards.CreateCard("a.md", "q1")

	// Good until the schedule graduates, then Again.
	for i := 0; i < 5; i++ {
		sched, _ := cards.Schedule("a.md", "q1")
		if sched.State == domain.Review {
			break
		}
		cards.now = func() time.Time { return sched.Due }
		if _, err := cards.UpdateSchedule("a.md", "q1", domain.Good, "s1"); err != nil {
			t.Fatalf("UpdateSchedule: %v", err)
		}
	}

	sched, _ := cards.Schedule("a.md", "q1")
	if sched.State != domain.Review {
		t.Fatalf("schedule did not graduate: %v", sched.State)
	}

	cards.now = func() time.Time { return sched.Due }
	if _, err := cards.UpdateSchedule("a.md", "q1", domain.Again, "s1"); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	lapsed, _ := cards.Schedule("a.md", "q1")
	if lapsed.Lapses != sched.Lapses+1 {
		t.Errorf("Lapses = %d, want %d", lapsed.Lapses, sched.Lapses+1)
	}
	if lapsed.State == domain.Review {
		t.Errorf("State = %v, want a learning state", lapsed.State)
	}
}

func TestRestoreScheduleFlipsUndone(t *testing.T) {
	cards := newFixture(t)
	cards.CreateCard("a.md", "q1")

	before, _ := cards.Schedule("a.md", "q1")
	entry, err := cards.UpdateSchedule("a.md", "q1", domain.Good, "s1")
	if err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}

	if err := cards.RestoreSchedule("a.md", "q1", before, entry.ID); err != nil {
		t.Fatalf("RestoreSchedule: %v", err)
	}

	restored, _ := cards.Schedule("a.md", "q1")
	if restored.Reps != before.Reps || restored.State != before.State || !restored.Due.Equal(before.Due) {
		t.Errorf("restored = %+v, want %+v", restored, before)
	}
	if got := cards.ReviewedToday("q1", t0); got != 0 {
		t.Errorf("ReviewedToday after undo = %d, want 0", got)
	}
}

func TestRemoveFromQueueDeletesEmptyCard(t *testing.T) {
	cards := newFixture(t)
	cards.CreateCard("a.md", "q1")
	cards.CreateCard("a.md", "q2")

	if err := cards.RemoveFromQueue("a.md", "q1"); err != nil {
		t.Fatalf("RemoveFromQueue: %v", err)
	}
	if _, ok := cards.Get("a.md"); !ok {
		t.Fatal("card deleted while a schedule remains")
	}

	if err := cards.RemoveFromQueue("a.md", "q2"); err != nil {
		t.Fatalf("RemoveFromQueue: %v", err)
	}
	if _, ok := cards.Get("a.md"); ok {
		t.Error("card survived removal of its last schedule")
	}

	if err := cards.RemoveFromQueue("a.md", "q1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("removing from a deleted card: err = %v, want ErrNotFound", err)
	}
}

func TestRenameMovesHistory(t *testing.T) {
	cards := newFixture(t)
	cards.CreateCard("old.md", "q1")
	if _, err := cards.UpdateSchedule("old.md", "q1", domain.Good, "s1"); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}

	if err := cards.Rename("old.md", "new.md"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, ok := cards.Get("old.md"); ok {
		t.Error("old path still resolves")
	}
	card, ok := cards.Get("new.md")
	if !ok {
		t.Fatal("new path missing")
	}
	if card.Path != "new.md" {
		t.Errorf("card.Path = %q", card.Path)
	}

	cards.store.View(func(d *storage.Document) {
		for _, r := range d.Reviews {
			if r.Path != "new.md" {
				t.Errorf("log entry still points at %q", r.Path)
			}
		}
	})
}

func TestHandleDeleteOrphans(t *testing.T) {
	cards := newFixture(t)
	cards.CreateCard("a.md", "q1")

	cards.HandleDelete("a.md")

	if _, ok := cards.Get("a.md"); ok {
		t.Error("deleted card still resolves")
	}
	cards.store.View(func(d *storage.Document) {
		if len(d.Orphans) != 1 {
			t.Fatalf("orphans = %d, want 1", len(d.Orphans))
		}
		o := d.Orphans[0]
		if o.Path != "a.md" || len(o.Schedules) != 1 {
			t.Errorf("orphan = %+v", o)
		}
	})

	// Unknown paths are ignored.
	cards.HandleDelete("nope.md")
	cards.store.View(func(d *storage.Document) {
		if len(d.Orphans) != 1 {
			t.Errorf("orphans = %d after deleting unknown path", len(d.Orphans))
		}
	})
}

func TestQueueQueries(t *testing.T) {
	cards := newFixture(t)

	// Three cards in q1: one new, one due earlier today, one overdue by days.
	cards.CreateCard("new.md", "q1")
	cards.CreateCard("today.md", "q1")
	cards.CreateCard("late.md", "q1")
	cards.CreateCard("other.md", "q2")

	setDue := func(path string, due time.Time, state domain.State) {
		cards.store.Update(func(d *storage.Document) {
			sched := d.Cards[path].Schedules["q1"]
			sched.Due = due
			sched.State = state
			d.Cards[path].Schedules["q1"] = sched
		})
	}
	setDue("today.md", t0.Add(-time.Hour), domain.Review)
	setDue("late.md", t0.AddDate(0, 0, -3), domain.Review)

	if got := len(cards.Items("q1")); got != 3 {
		t.Errorf("Items = %d, want 3", got)
	}
	if got := len(cards.Due("q1", t0)); got != 3 {
		t.Errorf("Due = %d, want 3 (new cards are due immediately)", got)
	}
	if got := len(cards.Overdue("q1", t0)); got != 1 {
		t.Errorf("Overdue = %d, want 1", got)
	}
	if got := len(cards.NewItems("q1")); got != 1 {
		t.Errorf("NewItems = %d, want 1", got)
	}
	if got := len(cards.Items("q2")); got != 1 {
		t.Errorf("Items(q2) = %d, want 1", got)
	}
}
