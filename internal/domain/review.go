package domain

import "time"

// ReviewLogEntry records a single rating event. Entries are immutable except
// for the Undone flag, which may flip false -> true exactly once when the
// rating is undone.
type ReviewLogEntry struct {
	ID        string    `json:"id"` // ULID, sortable by creation time
	Path      string    `json:"path"`
	QueueID   string    `json:"queueId"`
	Rating    Rating    `json:"rating"`
	Before    Schedule  `json:"before"`
	After     Schedule  `json:"after"`
	SessionID string    `json:"sessionId"`
	Undone    bool      `json:"undone"`
	Timestamp time.Time `json:"timestamp"`
}

// Orphan records a schedule whose underlying content item can no longer be
// located. Created when the host reports a permanent delete, so review
// history is never silently discarded.
type Orphan struct {
	Path       string              `json:"path"`
	CardID     string              `json:"cardId"`
	Schedules  map[string]Schedule `json:"schedules"`
	RecordedAt time.Time           `json:"recordedAt"`
}
