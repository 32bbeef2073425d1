package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Absolute layouts accepted for machine-readable dates (datetime attributes,
// JSON-LD datePosted and friends).
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
}

var relativePart = regexp.MustCompile(`(?i)(\d+)\s*(minute|min|hour|hr|day|week|month|year)s?`)

// Relative-duration approximations: a month is taken as 30 days and a year as
// 365, so large offsets ("2 years ago") drift from the true calendar date.
var unitDurations = map[string]time.Duration{
	"minute": time.Minute,
	"min":    time.Minute,
	"hour":   time.Hour,
	"hr":     time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// AbsoluteDate parses a machine-readable date string and returns it in UTC.
func AbsoluteDate(txt string) (time.Time, bool) {
	s := strings.TrimSpace(txt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// RelativeDate parses phrases like "3 days ago" or "2 days, 3 hours ago"
// (components may be combined) by subtracting the approximated duration from
// now. Returns false when the text carries no "ago" phrase.
func RelativeDate(txt string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(txt))
	if !strings.Contains(lower, "ago") {
		return time.Time{}, false
	}

	var total time.Duration
	for _, m := range relativePart.FindAllStringSubmatch(lower, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if d, ok := unitDurations[strings.ToLower(m[2])]; ok {
			total += time.Duration(n) * d
		}
	}
	if total == 0 {
		return time.Time{}, false
	}
	return now.UTC().Add(-total), true
}

// PublishedDate tries the absolute layouts first, then relative phrasing.
// The raw text is the caller's to keep regardless of the outcome.
func PublishedDate(txt string, now time.Time) (time.Time, bool) {
	if t, ok := AbsoluteDate(txt); ok {
		return t, true
	}
	return RelativeDate(txt, now)
}
