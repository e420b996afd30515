package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/recallkit/recall/internal/domain"
)

var validate = validator.New()

// decodeDocument parses a raw primary blob into a Document. Malformed fields
// are replaced with defaults instead of failing the load; the returned slice
// names every field that was defaulted, so the caller can quarantine the
// original blob. A non-nil error means the blob is not JSON at all.
func decodeDocument(blob []byte) (*Document, []string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, nil, fmt.Errorf("parsing primary document: %w", err)
	}

	doc := DefaultDocument()
	var defaulted []string

	version := CurrentVersion
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			version = CurrentVersion
			defaulted = append(defaulted, "version")
		}
	} else {
		defaulted = append(defaulted, "version")
	}
	raw = migrate(raw, version)
	doc.Version = CurrentVersion

	if v, ok := raw["settings"]; ok {
		var s Settings
		if err := json.Unmarshal(v, &s); err != nil {
			defaulted = append(defaulted, "settings")
		} else {
			clamped := ClampSettings(&s)
			for _, f := range clamped {
				defaulted = append(defaulted, "settings."+f)
			}
			doc.Settings = s
		}
	} else {
		defaulted = append(defaulted, "settings")
	}

	if v, ok := raw["queues"]; ok {
		var qs []domain.Queue
		if err := json.Unmarshal(v, &qs); err != nil {
			defaulted = append(defaulted, "queues")
		} else {
			doc.Queues = qs
		}
	}

	if v, ok := raw["cards"]; ok {
		var cards map[string]*domain.Card
		if err := json.Unmarshal(v, &cards); err != nil {
			defaulted = append(defaulted, "cards")
		} else {
			for path, card := range cards {
				// A card with no schedules must not exist.
				if card == nil || len(card.Schedules) == 0 {
					delete(cards, path)
					defaulted = append(defaulted, "cards."+path)
					continue
				}
				card.Path = path
			}
			doc.Cards = cards
		}
	}

	if v, ok := raw["reviews"]; ok {
		var reviews []domain.ReviewLogEntry
		if err := json.Unmarshal(v, &reviews); err != nil {
			defaulted = append(defaulted, "reviews")
		} else {
			doc.Reviews = reviews
		}
	}

	if v, ok := raw["orphans"]; ok {
		var orphans []domain.Orphan
		if err := json.Unmarshal(v, &orphans); err != nil {
			defaulted = append(defaulted, "orphans")
		} else {
			doc.Orphans = orphans
		}
	}

	return doc, defaulted, nil
}

// Bounds enforced by ClampSettings, mirrored in the validate tags on
// Settings.
const (
	MinRetention    = 0.70
	MaxRetention    = 0.97
	MinIntervalDays = 1
	MaxIntervalDays = 36500
)

// ClampSettings pulls every out-of-range field to its nearest bound and
// returns the names of the fields it had to fix. It never rejects.
func ClampSettings(s *Settings) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	var fixed []string
	for _, fe := range verrs {
		switch fe.StructField() {
		case "TargetRetention":
			if fe.Tag() == "gte" {
				s.TargetRetention = MinRetention
			} else {
				s.TargetRetention = MaxRetention
			}
			fixed = append(fixed, "targetRetention")
		case "MaxIntervalDays":
			if fe.Tag() == "gte" {
				s.MaxIntervalDays = MinIntervalDays
			} else {
				s.MaxIntervalDays = MaxIntervalDays
			}
			fixed = append(fixed, "maxIntervalDays")
		case "NewPerDay":
			s.NewPerDay = 0
			fixed = append(fixed, "newPerDay")
		case "ReviewsPerDay":
			s.ReviewsPerDay = 0
			fixed = append(fixed, "reviewsPerDay")
		}
	}
	return fixed
}
