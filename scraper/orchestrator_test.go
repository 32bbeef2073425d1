package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"prop_harvester/config"
	"prop_harvester/ledger"
	"prop_harvester/models"
)

type captureSink struct {
	listings  []*models.StagedListing
	snapshots []*models.Snapshot
}

func (c *captureSink) UpsertListing(_ context.Context, l *models.StagedListing) (uuid.UUID, error) {
	c.listings = append(c.listings, l)
	return uuid.New(), nil
}

func (c *captureSink) UpsertSnapshot(_ context.Context, snap *models.Snapshot) error {
	c.snapshots = append(c.snapshots, snap)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func TestIngest_ReplaysStagedListings(t *testing.T) {
	pc := &config.PortalConfig{PortalName: "testportal"}
	cfg := &config.Config{
		OutputDir: t.TempDir(),
		Portals:   map[string]*config.PortalConfig{"testportal": pc},
	}

	run, err := ledger.NewRunDir(cfg.OutputDir)
	if err != nil {
		t.Fatalf("run dir: %v", err)
	}
	records := []models.ListingRecord{
		{
			URL:       "https://example.com/listing/1",
			Title:     "Condo",
			Price:     &models.Price{Raw: "₱ 45,000 / month", Currency: "PHP", Value: floatPtr(45000), Period: "month"},
			Area:      &models.Area{Raw: "30 sqm", Sqm: floatPtr(30), Unit: models.AreaUnitSqm},
			ScrapedAt: time.Now().UTC(),
		},
		{
			URL:       "https://example.com/listing/2",
			Title:     "House",
			ScrapedAt: time.Now().UTC(),
		},
	}
	for _, rec := range records {
		if err := ledger.AppendNDJSON(run.ListingsPath("testportal"), rec); err != nil {
			t.Fatalf("seed ledger: %v", err)
		}
	}

	sink := &captureSink{}
	o := NewOrchestrator(cfg, nil, sink)

	persisted, err := o.ingest(context.Background(), pc, run, PhaseAll)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if persisted != 2 {
		t.Fatalf("expected 2 persisted, got %d", persisted)
	}
	if len(sink.listings) != 2 || len(sink.snapshots) != 2 {
		t.Fatalf("expected 2 listings + 2 snapshots, got %d + %d", len(sink.listings), len(sink.snapshots))
	}
	first := sink.listings[0]
	if first.PricePHP == nil || *first.PricePHP != 45000 {
		t.Fatalf("expected staged price 45000, got %v", first.PricePHP)
	}
	if first.PricePerSqm == nil || *first.PricePerSqm != 1500 {
		t.Fatalf("expected price_per_sqm 1500, got %v", first.PricePerSqm)
	}
	if first.Source != "testportal" {
		t.Fatalf("unexpected source %q", first.Source)
	}
}

func TestIngestPhase_UsesNewestPriorRun(t *testing.T) {
	pc := &config.PortalConfig{PortalName: "testportal"}
	cfg := &config.Config{
		OutputDir: t.TempDir(),
		Portals:   map[string]*config.PortalConfig{"testportal": pc},
	}

	if _, err := ledger.NewRunDir(cfg.OutputDir); err != nil {
		t.Fatalf("run dir: %v", err)
	}

	sink := &captureSink{}
	o := NewOrchestrator(cfg, nil, sink)

	// No prior run wrote a listings ledger; standalone ingest must say so
	// instead of silently persisting nothing.
	run, err := ledger.NewRunDir(cfg.OutputDir)
	if err != nil {
		t.Fatalf("run dir: %v", err)
	}
	if _, err := o.ingest(context.Background(), pc, run, PhaseIngest); err == nil {
		t.Fatalf("expected error when no staged listings exist")
	}
}
