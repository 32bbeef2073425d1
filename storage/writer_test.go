package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"prop_harvester/models"
)

type fakeSink struct {
	listings  []*models.StagedListing
	snapshots []*models.Snapshot
	failUntil int // UpsertListing calls to fail before succeeding
	calls     int
}

func (f *fakeSink) UpsertListing(_ context.Context, l *models.StagedListing) (uuid.UUID, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return uuid.Nil, errors.New("connection refused")
	}
	f.listings = append(f.listings, l)
	return uuid.New(), nil
}

func (f *fakeSink) UpsertSnapshot(_ context.Context, snap *models.Snapshot) error {
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func TestStage_PHPMonthlyPrice(t *testing.T) {
	rec := &models.ListingRecord{
		URL:   "https://example.com/listing/1",
		Title: "Condo",
		Price: &models.Price{Raw: "₱ 45,000 / month", Currency: "PHP", Value: floatPtr(45000), Period: "month"},
		Area:  &models.Area{Raw: "30 sqm", Sqm: floatPtr(30), Unit: models.AreaUnitSqm},
	}
	staged := Stage(rec, "testportal")

	if staged.PricePHP == nil || *staged.PricePHP != 45000 {
		t.Fatalf("expected price_php 45000, got %v", staged.PricePHP)
	}
	if staged.AreaSqm == nil || *staged.AreaSqm != 30 {
		t.Fatalf("expected area_sqm 30, got %v", staged.AreaSqm)
	}
	if staged.PricePerSqm == nil || *staged.PricePerSqm != 1500 {
		t.Fatalf("expected price_per_sqm 1500, got %v", staged.PricePerSqm)
	}
	if staged.Source != "testportal" {
		t.Fatalf("unexpected source %q", staged.Source)
	}
	if len(staged.PriceJSON) == 0 || len(staged.AreaJSON) == 0 {
		t.Fatalf("expected raw payloads to be carried")
	}
}

func TestStage_ForeignCurrencyExcluded(t *testing.T) {
	rec := &models.ListingRecord{
		URL:   "https://example.com/listing/2",
		Price: &models.Price{Raw: "$1,200 monthly", Currency: "USD", Value: floatPtr(1200), Period: "month"},
	}
	staged := Stage(rec, "testportal")
	if staged.PricePHP != nil {
		t.Fatalf("USD price must not populate price_php, got %v", *staged.PricePHP)
	}
	if len(staged.PriceJSON) == 0 {
		t.Fatalf("full parse must still be carried in price_json")
	}
}

func TestStage_YearlyPeriodExcluded(t *testing.T) {
	rec := &models.ListingRecord{
		URL:   "https://example.com/listing/3",
		Price: &models.Price{Raw: "PHP 300,000 per year", Currency: "PHP", Value: floatPtr(300000), Period: "year"},
	}
	if staged := Stage(rec, "testportal"); staged.PricePHP != nil {
		t.Fatalf("yearly price must not populate price_php, got %v", *staged.PricePHP)
	}
}

func TestStage_ZeroAreaNoDivide(t *testing.T) {
	rec := &models.ListingRecord{
		URL:   "https://example.com/listing/4",
		Price: &models.Price{Currency: "PHP", Value: floatPtr(45000)},
		Area:  &models.Area{Sqm: floatPtr(0), Unit: models.AreaUnitSqm},
	}
	if staged := Stage(rec, "testportal"); staged.PricePerSqm != nil {
		t.Fatalf("zero area must not produce price_per_sqm, got %v", *staged.PricePerSqm)
	}
}

func TestWriter_FlushWritesSnapshots(t *testing.T) {
	sink := &fakeSink{}
	w := NewWriter(sink, "testportal")

	for i := 0; i < 3; i++ {
		rec := &models.ListingRecord{
			URL:       "https://example.com/listing/" + string(rune('a'+i)),
			Price:     &models.Price{Currency: "PHP", Value: floatPtr(1000)},
			ScrapedAt: time.Now().UTC(),
		}
		if err := w.Add(context.Background(), rec); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(sink.listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(sink.listings))
	}
	if len(sink.snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(sink.snapshots))
	}
	if w.Persisted != 3 {
		t.Fatalf("expected Persisted=3, got %d", w.Persisted)
	}
	snap := sink.snapshots[0]
	if snap.ListingID == uuid.Nil {
		t.Fatalf("snapshot must link to the returned listing id")
	}
	if !snap.ScrapedDate.Equal(snap.ScrapedDate.Truncate(24 * time.Hour)) {
		t.Fatalf("scraped_date must be day-truncated, got %v", snap.ScrapedDate)
	}
}

func TestWriter_RetriesTransientFailure(t *testing.T) {
	sink := &fakeSink{failUntil: 1}
	w := NewWriter(sink, "testportal")

	rec := &models.ListingRecord{URL: "https://example.com/listing/1", ScrapedAt: time.Now().UTC()}
	if err := w.Add(context.Background(), rec); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush should succeed after retry: %v", err)
	}
	if len(sink.listings) != 1 {
		t.Fatalf("expected 1 listing after retry, got %d", len(sink.listings))
	}
}

func TestWriter_FailedBatchRetained(t *testing.T) {
	sink := &fakeSink{failUntil: 1 << 30}
	w := NewWriter(sink, "testportal")

	rec := &models.ListingRecord{URL: "https://example.com/listing/1", ScrapedAt: time.Now().UTC()}
	if err := w.Add(context.Background(), rec); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := w.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush error")
	}
	if len(w.buf) != 1 {
		t.Fatalf("failed rows must stay buffered, got %d", len(w.buf))
	}
	if w.Persisted != 0 {
		t.Fatalf("nothing persisted, got %d", w.Persisted)
	}
}
