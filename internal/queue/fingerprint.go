package queue

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/recallkit/recall/internal/domain"
)

// normalize renders criteria as a canonical string: kind first, then each
// field's values trimmed, lowercased and sorted, joined with newlines so
// adjacent values cannot run together.
func normalize(c domain.Criteria) string {
	normalizeList := func(values []string) string {
		out := make([]string, 0, len(values))
		for _, v := range values {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				out = append(out, v)
			}
		}
		sort.Strings(out)
		return strings.Join(out, ",")
	}

	parts := []string{
		string(c.Kind),
		normalizeList(c.Folders),
		normalizeList(c.Tags),
		normalizeList(c.Paths),
	}
	return strings.Join(parts, "\n")
}

// Fingerprint returns a stable hash of the criteria, used to detect when a
// queue's definition changed underneath its cached stats.
func Fingerprint(c domain.Criteria) string {
	sum := sha256.Sum256([]byte(normalize(c)))
	return fmt.Sprintf("%x", sum)
}
