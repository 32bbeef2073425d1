package scraper

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"prop_harvester/config"
	"prop_harvester/fetch"
	"prop_harvester/ledger"
	"prop_harvester/models"
)

// jitter added on top of the configured politeness delay so request timing
// isn't uniform.
const jitterMax = 0.8

// watchdogTimeout bounds any single page fetch, rendered ones included.
const watchdogTimeout = 70 * time.Second

// SeenStore is the cross-run ledger of canonical URLs already discovered for
// a portal. Nil is allowed; dedup then only spans the current run.
type SeenStore interface {
	SeenURLs(portal string) (map[string]bool, error)
	AddSeenURLs(portal string, urls []string) error
}

// Discoverer walks seed pages and their "next" links, collecting canonical
// listing URLs in first-discovered order. It owns the seen-set for one
// portal run.
type Discoverer struct {
	cfg     *config.PortalConfig
	fetcher fetch.Fetcher
	run     *ledger.RunDir
	cache   *ledger.HTMLCache
	store   SeenStore

	seen        map[string]bool
	PagesWalked int
}

func NewDiscoverer(cfg *config.PortalConfig, fetcher fetch.Fetcher, run *ledger.RunDir, store SeenStore) *Discoverer {
	return &Discoverer{
		cfg:     cfg,
		fetcher: fetcher,
		run:     run,
		cache:   ledger.NewHTMLCache(run.RawHTML()),
		store:   store,
		seen:    make(map[string]bool),
	}
}

// Discover runs the pagination walk over every seed URL. URLs are appended to
// the run's ledger as they are found, so partial progress survives a crash.
// Reaching the end of a site is a normal stop, not an error.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	if d.store != nil {
		persisted, err := d.store.SeenURLs(d.cfg.PortalName)
		if err != nil {
			return nil, err
		}
		for u := range persisted {
			d.seen[u] = true
		}
	}

	var all []string
	urlsPath := d.run.URLsPath(d.cfg.PortalName)

	for _, seed := range d.cfg.SeedURLs {
		current := seed
		pages := 0

		for current != "" && pages < d.cfg.MaxPages {
			if err := ctx.Err(); err != nil {
				return all, err
			}

			html, err := d.fetchPage(ctx, current)
			if err != nil || html == "" {
				// Sites legitimately end; treat missing pages as the walk's
				// terminal state.
				log.Printf("[%s] no HTML for %s, stopping pagination: %v", d.cfg.PortalName, current, err)
				break
			}

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
			if err != nil {
				log.Printf("[%s] unparseable page %s: %v", d.cfg.PortalName, current, err)
				break
			}

			found := 0
			capped := false
			doc.Find(d.cfg.ListingSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
				href, ok := a.Attr("href")
				if !ok || href == "" {
					return true
				}
				full := Canonicalize(ResolveRef(current, href))
				if full == "" || d.seen[full] {
					return true
				}
				if err := ledger.AppendNDJSON(urlsPath, models.DiscoveredURL{URL: full, DiscoveredAt: time.Now().UTC()}); err != nil {
					log.Printf("[%s] ledger write failed: %v", d.cfg.PortalName, err)
				}
				d.seen[full] = true
				all = append(all, full)
				found++
				if d.cfg.MaxListings > 0 && len(all) >= d.cfg.MaxListings {
					capped = true
					return false
				}
				return true
			})

			next := d.findNext(doc, current)
			pages++
			d.PagesWalked++
			log.Printf("[%s] page %d: %d listings | next=%t", d.cfg.PortalName, pages, found, next != "")

			if capped {
				log.Printf("[%s] max listings cap (%d) reached, stopping", d.cfg.PortalName, d.cfg.MaxListings)
				current = ""
				break
			}

			current = next
			if current != "" {
				politeSleep(ctx, d.cfg.RateLimitDelay)
			}
		}

		if d.cfg.MaxListings > 0 && len(all) >= d.cfg.MaxListings {
			break
		}
	}

	if d.store != nil {
		if err := d.store.AddSeenURLs(d.cfg.PortalName, all); err != nil {
			log.Printf("[%s] persisting seen set failed: %v", d.cfg.PortalName, err)
		}
	}

	log.Printf("[%s] discovery done: %d new URLs over %d pages", d.cfg.PortalName, len(all), d.PagesWalked)
	return all, nil
}

func (d *Discoverer) fetchPage(ctx context.Context, pageURL string) (string, error) {
	// Cache keyed on the full URL: pagination lives in the query string, so
	// canonicalizing here would collapse every page onto the first.
	key := strings.TrimSpace(pageURL)
	if html, ok := d.cache.Get(d.cfg.PortalName+"_list", key); ok {
		return html, nil
	}

	fetchCtx, cancel := fetch.Watchdog(ctx, watchdogTimeout)
	defer cancel()

	html, err := d.fetcher.Fetch(fetchCtx, pageURL, fetch.PageList)
	if err != nil {
		return "", err
	}
	if err := d.cache.Put(d.cfg.PortalName+"_list", key, html); err != nil {
		log.Printf("[%s] html cache write failed: %v", d.cfg.PortalName, err)
	}
	return html, nil
}

// findNext resolves the configured pagination link. The resolved URL keeps
// its query string; pagination commonly lives there.
func (d *Discoverer) findNext(doc *goquery.Document, current string) string {
	if d.cfg.PaginationSelector == "" {
		return ""
	}
	href, ok := doc.Find(d.cfg.PaginationSelector).First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	return ResolveRef(current, href)
}

func politeSleep(ctx context.Context, delaySeconds float64) {
	d := time.Duration((delaySeconds + rand.Float64()*jitterMax) * float64(time.Second))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
