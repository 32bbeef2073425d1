package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"prop_harvester/models"
)

const (
	defaultBatchSize = 50
	subBatchSize     = 25
	flushRetries     = 3
	retryBaseDelay   = 2 * time.Second
)

// ListingSink is what the writer flushes into. PostgresStore satisfies it;
// tests substitute a fake.
type ListingSink interface {
	UpsertListing(ctx context.Context, l *models.StagedListing) (uuid.UUID, error)
	UpsertSnapshot(ctx context.Context, snap *models.Snapshot) error
}

// Writer buffers staged rows and flushes them in batches. A failed flush
// puts the batch back at the front of the buffer so nothing is lost; the
// caller decides whether to retry later or abort the run.
type Writer struct {
	sink      ListingSink
	source    string
	batchSize int
	buf       []*models.StagedListing
	Persisted int
}

func NewWriter(sink ListingSink, source string) *Writer {
	return &Writer{sink: sink, source: source, batchSize: defaultBatchSize}
}

// Add stages one extracted record and flushes when the buffer fills.
func (w *Writer) Add(ctx context.Context, rec *models.ListingRecord) error {
	w.buf = append(w.buf, Stage(rec, w.source))
	if len(w.buf) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered rows in sub-batches with bounded retries.
func (w *Writer) Flush(ctx context.Context) error {
	for len(w.buf) > 0 {
		n := subBatchSize
		if n > len(w.buf) {
			n = len(w.buf)
		}
		chunk := w.buf[:n]

		if err := w.writeChunk(ctx, chunk); err != nil {
			return fmt.Errorf("flush %d rows: %w", n, err)
		}
		w.buf = w.buf[n:]
		w.Persisted += n
	}
	w.buf = nil
	return nil
}

func (w *Writer) Close(ctx context.Context) error {
	return w.Flush(ctx)
}

func (w *Writer) writeChunk(ctx context.Context, chunk []*models.StagedListing) error {
	var lastErr error
	for attempt := 1; attempt <= flushRetries; attempt++ {
		lastErr = w.writeOnce(ctx, chunk)
		if lastErr == nil {
			return nil
		}
		log.Printf("batch write attempt %d/%d failed: %v", attempt, flushRetries, lastErr)
		if attempt < flushRetries {
			select {
			case <-time.After(retryBaseDelay * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (w *Writer) writeOnce(ctx context.Context, chunk []*models.StagedListing) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, l := range chunk {
		id, err := w.sink.UpsertListing(ctx, l)
		if err != nil {
			return err
		}
		snap := &models.Snapshot{
			ListingID:    id,
			ScrapedDate:  today,
			SeenAt:       l.ScrapedAt,
			PricePHP:     l.PricePHP,
			AreaSqm:      l.AreaSqm,
			PricePerSqm:  l.PricePerSqm,
			IsActive:     true,
			PropertyType: l.PropertyType,
			Source:       l.Source,
		}
		if err := w.sink.UpsertSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// Stage converts an extracted record into its row shape. price_php is only
// set for PHP-denominated one-time or monthly prices, so yearly or foreign
// currency figures never pollute the comparable column; the full parse is
// still carried in price_json.
func Stage(rec *models.ListingRecord, source string) *models.StagedListing {
	staged := &models.StagedListing{
		URL:             rec.URL,
		Title:           rec.Title,
		PropertyType:    rec.PropertyType,
		Address:         rec.Address,
		PublishedAt:     rec.PublishedAt,
		PublishedAtText: rec.PublishedAtText,
		ScrapedAt:       rec.ScrapedAt,
		Source:          source,
	}

	if rec.Price != nil {
		if b, err := json.Marshal(rec.Price); err == nil {
			staged.PriceJSON = b
		}
		if rec.Price.Value != nil && rec.Price.Currency == "PHP" &&
			(rec.Price.Period == "" || rec.Price.Period == "month") {
			v := *rec.Price.Value
			staged.PricePHP = &v
		}
	}
	if rec.Area != nil {
		if b, err := json.Marshal(rec.Area); err == nil {
			staged.AreaJSON = b
		}
		if rec.Area.Sqm != nil {
			v := *rec.Area.Sqm
			staged.AreaSqm = &v
		}
	}
	if staged.PricePHP != nil && staged.AreaSqm != nil && *staged.AreaSqm > 0 && *staged.PricePHP > 0 {
		pps := *staged.PricePHP / *staged.AreaSqm
		staged.PricePerSqm = &pps
	}
	return staged
}
