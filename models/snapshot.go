package models

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is a dated observation of a listing's mutable attributes. At most
// one exists per (listing, scraped date); same-day re-observations upsert.
type Snapshot struct {
	ListingID    uuid.UUID `json:"listing_id" db:"listing_id"`
	ScrapedDate  time.Time `json:"scraped_date" db:"scraped_date"`
	SeenAt       time.Time `json:"seen_at" db:"seen_at"`
	PricePHP     *float64  `json:"price_php" db:"price_php"`
	AreaSqm      *float64  `json:"area_sqm" db:"area_sqm"`
	PricePerSqm  *float64  `json:"price_per_sqm" db:"price_per_sqm"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PropertyType string    `json:"property_type" db:"property_type"`
	Source       string    `json:"source" db:"source"`
}
