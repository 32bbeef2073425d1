package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"prop_harvester/models"
)

// PostgresStore is the durable home of listings and their daily snapshots.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		url TEXT NOT NULL UNIQUE,
		listing_title TEXT,
		property_type TEXT,
		address TEXT,
		price_php DOUBLE PRECISION,
		area_sqm DOUBLE PRECISION,
		price_per_sqm DOUBLE PRECISION,
		price_json JSONB,
		area_json JSONB,
		published_at TIMESTAMPTZ,
		published_at_text TEXT,
		scraped_at TIMESTAMPTZ,
		source TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS listing_daily (
		listing_id UUID NOT NULL REFERENCES listings(id),
		scraped_date DATE NOT NULL,
		seen_at TIMESTAMPTZ,
		price_php DOUBLE PRECISION,
		area_sqm DOUBLE PRECISION,
		price_per_sqm DOUBLE PRECISION,
		is_active BOOLEAN DEFAULT TRUE,
		property_type TEXT,
		source TEXT,
		PRIMARY KEY (listing_id, scraped_date)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source);
	CREATE INDEX IF NOT EXISTS idx_listing_daily_date ON listing_daily(scraped_date);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertListing inserts or merges one staged row keyed by URL. On conflict
// each column only overwrites when the incoming value is non-null, so a
// partial re-scrape never erases data a previous run captured. Returns the
// row's id for snapshot linkage.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.StagedListing) (uuid.UUID, error) {
	query := `
		INSERT INTO listings (
			url, listing_title, property_type, address,
			price_php, area_sqm, price_per_sqm, price_json, area_json,
			published_at, published_at_text, scraped_at, source
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (url) DO UPDATE SET
			listing_title = COALESCE(NULLIF(EXCLUDED.listing_title, ''), listings.listing_title),
			property_type = COALESCE(NULLIF(EXCLUDED.property_type, ''), listings.property_type),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), listings.address),
			price_php = COALESCE(EXCLUDED.price_php, listings.price_php),
			area_sqm = COALESCE(EXCLUDED.area_sqm, listings.area_sqm),
			price_per_sqm = COALESCE(EXCLUDED.price_per_sqm, listings.price_per_sqm),
			price_json = COALESCE(EXCLUDED.price_json, listings.price_json),
			area_json = COALESCE(EXCLUDED.area_json, listings.area_json),
			published_at = COALESCE(EXCLUDED.published_at, listings.published_at),
			published_at_text = COALESCE(NULLIF(EXCLUDED.published_at_text, ''), listings.published_at_text),
			scraped_at = EXCLUDED.scraped_at,
			source = COALESCE(NULLIF(EXCLUDED.source, ''), listings.source),
			is_active = TRUE,
			updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query,
		l.URL, l.Title, l.PropertyType, l.Address,
		l.PricePHP, l.AreaSqm, l.PricePerSqm, l.PriceJSON, l.AreaJSON,
		l.PublishedAt, l.PublishedAtText, l.ScrapedAt, l.Source,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert listing %s: %w", l.URL, err)
	}
	return id, nil
}

// UpsertSnapshot records one (listing, day) observation. Re-running a scrape
// on the same day updates that day's row instead of duplicating it.
func (s *PostgresStore) UpsertSnapshot(ctx context.Context, snap *models.Snapshot) error {
	query := `
		INSERT INTO listing_daily (
			listing_id, scraped_date, seen_at, price_php, area_sqm,
			price_per_sqm, is_active, property_type, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (listing_id, scraped_date) DO UPDATE SET
			seen_at = EXCLUDED.seen_at,
			price_php = COALESCE(EXCLUDED.price_php, listing_daily.price_php),
			area_sqm = COALESCE(EXCLUDED.area_sqm, listing_daily.area_sqm),
			price_per_sqm = COALESCE(EXCLUDED.price_per_sqm, listing_daily.price_per_sqm),
			is_active = EXCLUDED.is_active,
			property_type = COALESCE(NULLIF(EXCLUDED.property_type, ''), listing_daily.property_type),
			source = COALESCE(NULLIF(EXCLUDED.source, ''), listing_daily.source)`

	_, err := s.pool.Exec(ctx, query,
		snap.ListingID, snap.ScrapedDate, snap.SeenAt, snap.PricePHP, snap.AreaSqm,
		snap.PricePerSqm, snap.IsActive, snap.PropertyType, snap.Source,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s/%s: %w", snap.ListingID, snap.ScrapedDate, err)
	}
	return nil
}

// StaleActiveListings returns active listings whose last scrape is older than
// the cutoff, for the healthcheck worker to probe.
func (s *PostgresStore) StaleActiveListings(ctx context.Context, olderThan time.Time, limit int) ([]models.ListingRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url FROM listings
		WHERE is_active = TRUE AND scraped_at < $1
		ORDER BY scraped_at ASC
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("stale listings: %w", err)
	}
	defer rows.Close()

	var refs []models.ListingRef
	for rows.Next() {
		var r models.ListingRef
		if err := rows.Scan(&r.ID, &r.URL); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *PostgresStore) MarkInactive(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) TouchActive(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}
