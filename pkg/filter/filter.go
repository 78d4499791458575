// Package filter narrows track collections by declarative criteria.
package filter

import (
	"strings"
	"time"

	"sunograb/pkg/logger"
	"sunograb/pkg/models"
)

// Criteria holds the optional filter predicates. Each present predicate is
// applied independently; the result is the conjunction of all of them.
type Criteria struct {
	// Title keeps tracks whose title contains this needle, case-insensitive.
	Title string
	// Status keeps tracks whose status equals this value, case-insensitive.
	Status string
	// HasVideo / HasAudio, when set, keep tracks whose corresponding URL
	// presence matches the boolean.
	HasVideo *bool
	HasAudio *bool
	// MinDate / MaxDate are inclusive ISO-8601 bounds on CreatedAt. Tracks
	// without a parseable CreatedAt are excluded from date-bounded passes.
	MinDate string
	MaxDate string
}

// IsEmpty reports whether no predicate is set.
func (c Criteria) IsEmpty() bool {
	return c.Title == "" && c.Status == "" && c.HasVideo == nil &&
		c.HasAudio == nil && c.MinDate == "" && c.MaxDate == ""
}

// Apply narrows tracks by the given criteria. It is a pure function: the
// input slice is never mutated and a new slice is always returned. Passes
// run in a fixed order so the per-pass counts in the debug log line up
// between runs; the result set is order-independent since every pass is
// conjunctive.
func Apply(tracks []models.Track, criteria Criteria, log logger.Logger) []models.Track {
	filtered := make([]models.Track, len(tracks))
	copy(filtered, tracks)

	if criteria.Title != "" {
		needle := strings.ToLower(criteria.Title)
		filtered = keep(filtered, func(t models.Track) bool {
			return strings.Contains(strings.ToLower(t.Title), needle)
		})
		logPass(log, "title", criteria.Title, len(filtered))
	}

	if criteria.MinDate != "" {
		if min, err := parseDate(criteria.MinDate); err != nil {
			logBadDate(log, "min_date", criteria.MinDate, err)
		} else {
			filtered = keep(filtered, func(t models.Track) bool {
				created, err := parseDate(t.CreatedAt)
				return err == nil && !created.Before(min)
			})
			logPass(log, "min_date", criteria.MinDate, len(filtered))
		}
	}

	if criteria.MaxDate != "" {
		if max, err := parseDate(criteria.MaxDate); err != nil {
			logBadDate(log, "max_date", criteria.MaxDate, err)
		} else {
			filtered = keep(filtered, func(t models.Track) bool {
				created, err := parseDate(t.CreatedAt)
				return err == nil && !created.After(max)
			})
			logPass(log, "max_date", criteria.MaxDate, len(filtered))
		}
	}

	if criteria.HasVideo != nil {
		want := *criteria.HasVideo
		filtered = keep(filtered, func(t models.Track) bool {
			return t.HasVideo() == want
		})
		logPass(log, "has_video", want, len(filtered))
	}

	if criteria.HasAudio != nil {
		want := *criteria.HasAudio
		filtered = keep(filtered, func(t models.Track) bool {
			return t.HasAudio() == want
		})
		logPass(log, "has_audio", want, len(filtered))
	}

	if criteria.Status != "" {
		filtered = keep(filtered, func(t models.Track) bool {
			return strings.EqualFold(t.Status, criteria.Status)
		})
		logPass(log, "status", criteria.Status, len(filtered))
	}

	return filtered
}

func keep(tracks []models.Track, pred func(models.Track) bool) []models.Track {
	out := tracks[:0:0]
	for _, t := range tracks {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// parseDate parses an ISO-8601 timestamp, normalizing a trailing Z to an
// explicit offset. Bare dates (YYYY-MM-DD) are accepted as midnight UTC.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: value, Message: "empty value"}
	}
	normalized := value
	if strings.HasSuffix(normalized, "Z") {
		normalized = strings.TrimSuffix(normalized, "Z") + "+00:00"
	}
	if t, err := time.Parse(time.RFC3339, normalized); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func logPass(log logger.Logger, pass string, value interface{}, remaining int) {
	if log == nil {
		return
	}
	log.DebugWithFields("filter pass applied", map[string]interface{}{
		"pass":      pass,
		"value":     value,
		"remaining": remaining,
	})
}

func logBadDate(log logger.Logger, pass, value string, err error) {
	if log == nil {
		return
	}
	log.WarnWithFields("skipping date filter with unparseable bound", map[string]interface{}{
		"pass":  pass,
		"value": value,
		"error": err.Error(),
	})
}
