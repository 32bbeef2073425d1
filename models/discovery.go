package models

import "time"

// DiscoveredURL is one line in a run's URL ledger.
type DiscoveredURL struct {
	URL          string    `json:"url"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Failure reason tags. Machine-readable so operators can grep the failure
// ledger for selector breakage vs plain fetch trouble.
const (
	FailureNoHTML     = "no-html"
	FailureParseError = "parse-error"
	FailureMissingURL = "missing-url"
)

// FailureRecord is one line in a run's failure ledger.
type FailureRecord struct {
	URL      string    `json:"url"`
	Reason   string    `json:"reason"`
	Detail   string    `json:"detail,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}
