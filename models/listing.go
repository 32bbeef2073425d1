package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Price is the normalized form of a listing's price text. Value, Currency and
// Period may be nil/empty when the raw text could not be parsed; Raw is always
// kept so the evidence survives a failed parse.
type Price struct {
	Raw      string   `json:"raw"`
	Currency string   `json:"currency,omitempty"`
	Value    *float64 `json:"value"`
	Period   string   `json:"period,omitempty"` // month, year, week, day; empty = one-time
}

// Area unit flags. AreaUnitAssumed marks the low-confidence bare-number
// fallback where no unit token appeared anywhere on the page.
const (
	AreaUnitSqm     = "sqm"
	AreaUnitSqft    = "sqft"
	AreaUnitAssumed = "assumed"
)

type Area struct {
	Raw  string   `json:"raw"`
	Sqm  *float64 `json:"sqm"`
	Unit string   `json:"unit,omitempty"`
}

// ListingRecord is one extracted listing page. URL is the only field that is
// guaranteed non-empty; everything else degrades to its zero value when the
// page doesn't carry it.
type ListingRecord struct {
	URL             string     `json:"url"`
	Title           string     `json:"title,omitempty"`
	PropertyType    string     `json:"property_type,omitempty"`
	Address         string     `json:"address,omitempty"`
	Bedrooms        *int       `json:"bedrooms,omitempty"`
	Bathrooms       *int       `json:"bathrooms,omitempty"`
	Description     string     `json:"description,omitempty"`
	Price           *Price     `json:"price"`
	Area            *Area      `json:"area"`
	PublishedAt     *time.Time `json:"published_at"`
	PublishedAtText string     `json:"published_at_text,omitempty"`
	ScrapedAt       time.Time  `json:"scraped_at"`
}

// ListingRef pairs a stored listing's id with its URL, enough for liveness
// probes and snapshot linkage.
type ListingRef struct {
	ID  uuid.UUID `json:"id" db:"id"`
	URL string    `json:"url" db:"url"`
}

// StagedListing is the row shape the persistence writer sends to the listings
// table: normalized numerics plus the raw price/area payloads as JSON.
type StagedListing struct {
	URL             string          `json:"url" db:"url"`
	Title           string          `json:"listing_title" db:"listing_title"`
	PropertyType    string          `json:"property_type" db:"property_type"`
	Address         string          `json:"address" db:"address"`
	PricePHP        *float64        `json:"price_php" db:"price_php"`
	AreaSqm         *float64        `json:"area_sqm" db:"area_sqm"`
	PricePerSqm     *float64        `json:"price_per_sqm" db:"price_per_sqm"`
	PriceJSON       json.RawMessage `json:"price_json" db:"price_json"`
	AreaJSON        json.RawMessage `json:"area_json" db:"area_json"`
	PublishedAt     *time.Time      `json:"published_at" db:"published_at"`
	PublishedAtText string          `json:"published_at_text" db:"published_at_text"`
	ScrapedAt       time.Time       `json:"scraped_at" db:"scraped_at"`
	Source          string          `json:"source" db:"source"`
}
