package domain

import "time"

// CriteriaKind selects how a queue's selection criteria are interpreted.
type CriteriaKind string

const (
	CriteriaFolders CriteriaKind = "folders" // items under any listed folder
	CriteriaTags    CriteriaKind = "tags"    // items carrying any listed tag
	CriteriaCustom  CriteriaKind = "custom"  // explicit item path list
)

// Criteria describes which content items belong to a queue. The resolver
// collaborator evaluates it against the host's live corpus.
type Criteria struct {
	Kind    CriteriaKind `json:"kind"`
	Folders []string     `json:"folders,omitempty"`
	Tags    []string     `json:"tags,omitempty"`
	Paths   []string     `json:"paths,omitempty"`
}

// Clone returns a deep copy of the criteria.
func (c Criteria) Clone() Criteria {
	out := c
	out.Folders = append([]string(nil), c.Folders...)
	out.Tags = append([]string(nil), c.Tags...)
	out.Paths = append([]string(nil), c.Paths...)
	return out
}

// Strategy names an ordering applied to a queue's due set before a session.
type Strategy string

const (
	StrategyMixed            Strategy = "mixed"
	StrategyStatePriority    Strategy = "state-priority"
	StrategyDueChronological Strategy = "due-chronological"
	StrategyOverdueFirst     Strategy = "due-overdue-first"
	StrategyRetrievability   Strategy = "retrievability-ascending"
	StrategyLoadBalancing    Strategy = "load-balancing"
	StrategyDifficultyAsc    Strategy = "difficulty-ascending"
	StrategyDifficultyDesc   Strategy = "difficulty-descending"
	StrategyRandom           Strategy = "random"
)

// Queue is a named grouping of items under review.
type Queue struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Criteria Criteria `json:"criteria"`
	Strategy Strategy `json:"strategy"`

	// Per-queue overrides of the global daily caps. Zero means "use the
	// global setting".
	NewPerDay     int `json:"newPerDay,omitempty"`
	ReviewsPerDay int `json:"reviewsPerDay,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the queue, including its criteria slices.
func (q Queue) Clone() Queue {
	out := q
	out.Criteria = q.Criteria.Clone()
	return out
}

// QueueStats is a cached snapshot of a queue's counts. Refreshed lazily once
// its age exceeds the engine's TTL or the criteria fingerprint changes.
type QueueStats struct {
	QueueID       string    `json:"queueId"`
	Total         int       `json:"total"`
	New           int       `json:"new"`
	Due           int       `json:"due"`
	ReviewedToday int       `json:"reviewedToday"`
	Fingerprint   string    `json:"fingerprint"`
	LastUpdated   time.Time `json:"lastUpdated"`
}
