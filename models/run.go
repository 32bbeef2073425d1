package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID             int64      `json:"id" db:"id"`
	PortalID       string     `json:"portal_id" db:"portal_id"`
	RunDir         string     `json:"run_dir" db:"run_dir"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	URLsDiscovered int        `json:"urls_discovered" db:"urls_discovered"`
	PagesWalked    int        `json:"pages_walked" db:"pages_walked"`
	ListingsOK     int        `json:"listings_ok" db:"listings_ok"`
	ListingsFailed int        `json:"listings_failed" db:"listings_failed"`
	RowsPersisted  int        `json:"rows_persisted" db:"rows_persisted"`
}

type PortalStats struct {
	PortalID          string     `json:"portal_id" db:"portal_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalURLs         int        `json:"total_urls" db:"total_urls"`
	TotalListings     int        `json:"total_listings" db:"total_listings"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
