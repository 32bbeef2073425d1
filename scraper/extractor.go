package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"prop_harvester/config"
	"prop_harvester/fetch"
	"prop_harvester/ledger"
	"prop_harvester/models"
	"prop_harvester/normalize"
)

const extractAttempts = 3

// propertyTypeVocab maps keyword hits in page text to a coarse property
// type. Checked in order; more specific terms first.
var propertyTypeVocab = []struct {
	keyword string
	label   string
}{
	{"office", "office"},
	{"commercial", "commercial"},
	{"warehouse", "commercial"},
	{"condominium", "condo"},
	{"condo", "condo"},
	{"townhouse", "house"},
	{"house", "house"},
	{"apartment", "apartment"},
	{"lot", "land"},
	{"land", "land"},
}

// Extractor turns detail-page HTML into ListingRecords using the portal's
// selector map, falling back to JSON-LD and visible-text heuristics when a
// selector misses.
type Extractor struct {
	cfg     *config.PortalConfig
	fetcher fetch.Fetcher
	run     *ledger.RunDir
	cache   *ledger.HTMLCache
}

func NewExtractor(cfg *config.PortalConfig, fetcher fetch.Fetcher, run *ledger.RunDir) *Extractor {
	return &Extractor{
		cfg:     cfg,
		fetcher: fetcher,
		run:     run,
		cache:   ledger.NewHTMLCache(run.RawHTML()),
	}
}

// Parse extracts a listing from already-fetched HTML. It never touches the
// network, so it is the seam tests drive with fixture pages.
func (e *Extractor) Parse(html, pageURL string) (*models.ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	rec := &models.ListingRecord{
		URL:       Canonicalize(pageURL),
		ScrapedAt: time.Now().UTC(),
	}

	blocks := jsonldBlocks(doc)

	for field, selector := range e.cfg.FieldSelectors() {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		switch field {
		case "price":
			rec.Price = normalize.Price(text(sel))
		case "area":
			rec.Area = normalize.Area(text(sel))
		case "bedrooms":
			rec.Bedrooms = normalize.Integer(text(sel))
		case "bathrooms":
			rec.Bathrooms = normalize.Integer(text(sel))
		case "published_date", "published_at":
			e.applyPublished(rec, machineDate(sel))
		case "title":
			rec.Title = text(sel)
		case "property_type":
			rec.PropertyType = strings.ToLower(text(sel))
		case "address", "location":
			rec.Address = text(sel)
		case "description":
			rec.Description = text(sel)
		default:
			// Unknown field names are carried through as-is by the caller's
			// selector map; nothing to map them onto here.
		}
	}

	if rec.Title == "" {
		rec.Title = text(doc.Find("h1").First())
	}
	if rec.Price == nil || rec.Price.Value == nil {
		if p := jsonldPrice(blocks); p != nil {
			rec.Price = p
		}
	}
	if rec.Area == nil || rec.Area.Sqm == nil {
		if a := e.fallbackArea(doc, blocks); a != nil {
			rec.Area = a
		}
	}
	if rec.PublishedAt == nil {
		e.fallbackPublished(rec, doc, blocks)
	}
	if rec.PropertyType == "" {
		rec.PropertyType = fallbackPropertyType(doc, blocks)
	}
	if rec.Address == "" {
		rec.Address = jsonldString(blocks, "address", "streetAddress")
	}

	return rec, nil
}

// Extract fetches a detail page with bounded retries and parses it. Every
// attempt runs under its own watchdog so a hung render cannot stall the run.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*models.ListingRecord, error) {
	key := Canonicalize(pageURL)

	var lastErr error
	for attempt := 1; attempt <= extractAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		html, ok := e.cache.Get(e.cfg.PortalName, key)
		if !ok {
			fetchCtx, cancel := fetch.Watchdog(ctx, watchdogTimeout)
			html, lastErr = e.fetcher.Fetch(fetchCtx, pageURL, fetch.PageDetail)
			cancel()
			if lastErr != nil {
				if errors.Is(lastErr, fetch.ErrTerminalStatus) {
					// Gone pages stay gone; record and move on.
					log.Printf("[%s] terminal status for %s: %v", e.cfg.PortalName, pageURL, lastErr)
					break
				}
				log.Printf("[%s] fetch attempt %d/%d failed for %s: %v", e.cfg.PortalName, attempt, extractAttempts, pageURL, lastErr)
				politeSleep(ctx, float64(attempt))
				continue
			}
			if err := e.cache.Put(e.cfg.PortalName, key, html); err != nil {
				log.Printf("[%s] html cache write failed: %v", e.cfg.PortalName, err)
			}
		}

		rec, err := e.Parse(html, pageURL)
		if err != nil {
			lastErr = err
			// A cached page that fails to parse will fail the same way
			// every attempt; don't loop on it.
			break
		}
		return rec, nil
	}

	if lastErr == nil {
		lastErr = fetch.ErrNoContent
	}
	return nil, lastErr
}

// ProcessAll extracts every URL not yet in the processed set, appending
// successful records and failures to the run's ledgers as it goes. Returns
// (ok, failed) counts.
func (e *Extractor) ProcessAll(ctx context.Context, urls []string) (int, int, error) {
	processedPath := e.run.ProcessedPath(e.cfg.PortalName)
	listingsPath := e.run.ListingsPath(e.cfg.PortalName)
	failuresPath := e.run.FailuresPath(e.cfg.PortalName)

	processed, err := ledger.ReadLineSet(processedPath)
	if err != nil {
		return 0, 0, err
	}

	var okCount, failCount int
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return okCount, failCount, err
		}
		if processed[u] {
			continue
		}
		if u == "" {
			failCount++
			rec := models.FailureRecord{Reason: models.FailureMissingURL, LoggedAt: time.Now().UTC()}
			if werr := ledger.AppendNDJSON(failuresPath, rec); werr != nil {
				log.Printf("[%s] failure ledger write failed: %v", e.cfg.PortalName, werr)
			}
			continue
		}

		rec, err := e.Extract(ctx, u)
		if err != nil {
			failCount++
			e.recordFailure(failuresPath, u, err)
		} else {
			if err := ledger.AppendNDJSON(listingsPath, rec); err != nil {
				return okCount, failCount, err
			}
			okCount++
		}

		if err := ledger.AppendLine(processedPath, u); err != nil {
			log.Printf("[%s] processed ledger write failed: %v", e.cfg.PortalName, err)
		}
		if (i+1)%25 == 0 {
			log.Printf("[%s] details progress: %d/%d (%d ok, %d failed)", e.cfg.PortalName, i+1, len(urls), okCount, failCount)
		}

		politeSleep(ctx, e.cfg.RateLimitDelay)
	}

	log.Printf("[%s] details done: %d ok, %d failed, %d skipped", e.cfg.PortalName, okCount, failCount, len(urls)-okCount-failCount)
	return okCount, failCount, nil
}

func (e *Extractor) recordFailure(path, u string, err error) {
	reason := models.FailureParseError
	if errors.Is(err, fetch.ErrNoContent) || errors.Is(err, fetch.ErrTerminalStatus) {
		reason = models.FailureNoHTML
	}
	rec := models.FailureRecord{URL: u, Reason: reason, Detail: err.Error(), LoggedAt: time.Now().UTC()}
	if werr := ledger.AppendNDJSON(path, rec); werr != nil {
		log.Printf("[%s] failure ledger write failed: %v", e.cfg.PortalName, werr)
	}
}

func (e *Extractor) applyPublished(rec *models.ListingRecord, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	rec.PublishedAtText = raw
	if t, ok := normalize.PublishedDate(raw, time.Now().UTC()); ok {
		rec.PublishedAt = &t
	}
}

func (e *Extractor) fallbackArea(doc *goquery.Document, blocks []map[string]any) *models.Area {
	if a := jsonldArea(blocks); a != nil {
		return a
	}
	// Over full body text only a unit-bearing match is trustworthy; a bare
	// number could be anything.
	body := text(doc.Find("body"))
	if a := normalize.Area(body); a.Sqm != nil && a.Unit != models.AreaUnitAssumed {
		return a
	}
	return nil
}

func (e *Extractor) fallbackPublished(rec *models.ListingRecord, doc *goquery.Document, blocks []map[string]any) {
	if raw := jsonldString(blocks, "datePosted", "datePublished", "dateCreated"); raw != "" {
		e.applyPublished(rec, raw)
		if rec.PublishedAt != nil {
			return
		}
	}
	doc.Find("time, span, p, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		txt := text(s)
		if len(txt) > 80 || !strings.Contains(strings.ToLower(txt), "ago") {
			return true
		}
		if t, ok := normalize.RelativeDate(txt, time.Now().UTC()); ok {
			rec.PublishedAt = &t
			rec.PublishedAtText = txt
			return false
		}
		return true
	})
}

// jsonldPrice finds the first structured-data node carrying a numeric price
// alongside its currency.
func jsonldPrice(blocks []map[string]any) *models.Price {
	for _, node := range blocks {
		v, ok := jsonldNumber(node, "price")
		if !ok {
			continue
		}
		cur, _ := node["priceCurrency"].(string)
		if cur == "" {
			continue
		}
		val := v
		return &models.Price{
			Raw:      fmt.Sprintf("%v %s", v, cur),
			Currency: strings.ToUpper(cur),
			Value:    &val,
		}
	}
	return nil
}

// jsonldArea reads a floorSize QuantitativeValue, converting square feet
// when the unit says so.
func jsonldArea(blocks []map[string]any) *models.Area {
	for _, node := range blocks {
		fs, ok := node["floorSize"].(map[string]any)
		if !ok {
			continue
		}
		v, ok := jsonldNumber(fs, "value")
		if !ok {
			continue
		}
		unit, _ := fs["unitCode"].(string)
		if unit == "" {
			unit, _ = fs["unitText"].(string)
		}
		lower := strings.ToLower(unit)
		if strings.Contains(lower, "ft") || lower == "sqf" {
			return normalize.AreaFromSqft(fmt.Sprintf("%v %s", v, unit), v)
		}
		sqm := v
		return &models.Area{Raw: fmt.Sprintf("%v %s", v, unit), Sqm: &sqm, Unit: models.AreaUnitSqm}
	}
	return nil
}

func fallbackPropertyType(doc *goquery.Document, blocks []map[string]any) string {
	if node := findJSONLD(blocks, "Apartment", "House", "SingleFamilyResidence", "Offer", "Product", "RealEstateListing"); node != nil {
		if cat, _ := node["category"].(string); cat != "" {
			return strings.ToLower(cat)
		}
		if t, _ := node["@type"].(string); t != "" {
			switch t {
			case "Apartment":
				return "apartment"
			case "House", "SingleFamilyResidence":
				return "house"
			}
		}
	}
	hay := strings.ToLower(text(doc.Find("h1").First()) + " " + text(doc.Find("title").First()))
	for _, entry := range propertyTypeVocab {
		if strings.Contains(hay, entry.keyword) {
			return entry.label
		}
	}
	return ""
}

// machineDate prefers machine-readable date attributes over the element's
// visible text.
func machineDate(sel *goquery.Selection) string {
	if v, ok := sel.Attr("datetime"); ok && v != "" {
		return v
	}
	if v, ok := sel.Attr("content"); ok && v != "" {
		return v
	}
	return text(sel)
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
