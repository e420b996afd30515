package storage

import (
	"time"

	"github.com/recallkit/recall/internal/domain"
)

// CurrentVersion is the schema version written by this build. Older
// documents are migrated forward on load.
const CurrentVersion = 3

// Settings are the persisted tunables. Out-of-range values loaded from disk
// or config are clamped to the nearest bound, never rejected.
type Settings struct {
	TargetRetention float64 `json:"targetRetention" koanf:"target_retention" validate:"gte=0.7,lte=0.97"`
	MaxIntervalDays int     `json:"maxIntervalDays" koanf:"max_interval_days" validate:"gte=1,lte=36500"`
	Fuzz            bool    `json:"fuzz" koanf:"fuzz"`
	NewPerDay       int     `json:"newPerDay" koanf:"new_per_day" validate:"gte=0"`
	ReviewsPerDay   int     `json:"reviewsPerDay" koanf:"reviews_per_day" validate:"gte=0"`
}

// DefaultSettings returns the settings installed on first run.
func DefaultSettings() Settings {
	return Settings{
		TargetRetention: 0.9,
		MaxIntervalDays: 36500,
		Fuzz:            true,
		NewPerDay:       20,
		ReviewsPerDay:   200,
	}
}

// Document is the primary persisted snapshot. Backups and the session
// projection live in separate blobs.
type Document struct {
	Version  int                     `json:"version"`
	Settings Settings                `json:"settings"`
	Queues   []domain.Queue          `json:"queues"`
	Cards    map[string]*domain.Card `json:"cards"` // keyed by item path
	Reviews  []domain.ReviewLogEntry `json:"reviews"`
	Orphans  []domain.Orphan         `json:"orphans"`
}

// DefaultDocument returns an empty document at the current schema version.
func DefaultDocument() *Document {
	return &Document{
		Version:  CurrentVersion,
		Settings: DefaultSettings(),
		Queues:   []domain.Queue{},
		Cards:    map[string]*domain.Card{},
		Reviews:  []domain.ReviewLogEntry{},
		Orphans:  []domain.Orphan{},
	}
}

// Clone returns a deep copy of the document. Backup snapshots and history
// restores go through here so copy semantics stay in one place.
func (d *Document) Clone() *Document {
	out := &Document{
		Version:  d.Version,
		Settings: d.Settings,
		Queues:   make([]domain.Queue, len(d.Queues)),
		Cards:    make(map[string]*domain.Card, len(d.Cards)),
		Reviews:  make([]domain.ReviewLogEntry, len(d.Reviews)),
		Orphans:  make([]domain.Orphan, len(d.Orphans)),
	}
	for i, q := range d.Queues {
		out.Queues[i] = q.Clone()
	}
	for i, o := range d.Orphans {
		schedules := make(map[string]domain.Schedule, len(o.Schedules))
		for id, s := range o.Schedules {
			schedules[id] = s.Clone()
		}
		o.Schedules = schedules
		out.Orphans[i] = o
	}
	for i, r := range d.Reviews {
		r.Before = r.Before.Clone()
		r.After = r.After.Clone()
		out.Reviews[i] = r
	}
	for path, card := range d.Cards {
		c := card.Clone()
		out.Cards[path] = &c
	}
	return out
}

// BackupEntry is one slot in the recovery ring. Data holds the serialized
// primary document (minus backups) as it stood before a write, or a
// quarantined blob that failed validation.
type BackupEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}
