package domain

import "time"

// UndoEntry captures everything needed to reverse one rating: the exact
// pre-rating schedule is restored verbatim, not recomputed.
type UndoEntry struct {
	Path     string
	QueueID  string
	Rating   Rating
	LogID    string
	Previous Schedule
}

// SessionState is the in-memory state of one review pass over a queue's due
// items. At most one exists process-wide. CurrentIndex ranges over
// [0, len(ReviewQueue)]; index == length signals completion.
type SessionState struct {
	SessionID    string
	QueueID      string
	ReviewQueue  []string
	CurrentIndex int
	Reviewed     int
	Ratings      map[Rating]int
	StartedAt    time.Time
	History      []UndoEntry
}

// Snapshot returns the persisted projection of the session: enough to resume
// after a crash, minus the undo history.
func (s *SessionState) Snapshot() SessionSnapshot {
	ratings := make(map[Rating]int, len(s.Ratings))
	for r, n := range s.Ratings {
		ratings[r] = n
	}
	queue := make([]string, len(s.ReviewQueue))
	copy(queue, s.ReviewQueue)
	return SessionSnapshot{
		SessionID:    s.SessionID,
		QueueID:      s.QueueID,
		ReviewQueue:  queue,
		CurrentIndex: s.CurrentIndex,
		Reviewed:     s.Reviewed,
		Ratings:      ratings,
		StartedAt:    s.StartedAt,
	}
}

// SessionSnapshot is the lightweight persisted form of a SessionState.
// It deliberately omits the undo history; a resumed session starts with
// undo unavailable.
type SessionSnapshot struct {
	SessionID    string         `json:"sessionId"`
	QueueID      string         `json:"queueId"`
	ReviewQueue  []string       `json:"reviewQueue"`
	CurrentIndex int            `json:"currentIndex"`
	Reviewed     int            `json:"reviewed"`
	Ratings      map[Rating]int `json:"ratings"`
	StartedAt    time.Time      `json:"startedAt"`
}
