package workers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"prop_harvester/models"
	"prop_harvester/storage"
)

const (
	checkBatchSize = 100
	checkDelay     = 2 * time.Second
	staleAfter     = 72 * time.Hour
)

// HealthcheckWorker probes active listings that haven't been re-scraped
// recently and flips is_active when the page is gone.
type HealthcheckWorker struct {
	store     *storage.PostgresStore
	client    *http.Client
	triggerCh chan struct{}
}

func NewHealthcheckWorker(store *storage.PostgresStore) *HealthcheckWorker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment

	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // redirect target is the signal, don't follow
		},
	}

	return &HealthcheckWorker{
		store:     store,
		client:    client,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run a sweep immediately.
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run sweeps on the given interval until the context ends.
func (w *HealthcheckWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.triggerCh:
		}
		if err := w.Sweep(ctx); err != nil {
			log.Printf("healthcheck sweep failed: %v", err)
		}
	}
}

// Sweep probes one batch of stale active listings.
func (w *HealthcheckWorker) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-staleAfter)
	refs, err := w.store.StaleActiveListings(ctx, cutoff, checkBatchSize)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	log.Printf("healthcheck: probing %d stale listings", len(refs))

	var deactivated int
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}

		live := w.probe(ctx, ref)
		if live {
			if err := w.store.TouchActive(ctx, ref.ID); err != nil {
				log.Printf("healthcheck: touch %s failed: %v", ref.URL, err)
			}
		} else {
			if err := w.store.MarkInactive(ctx, ref.ID); err != nil {
				log.Printf("healthcheck: deactivate %s failed: %v", ref.URL, err)
			} else {
				deactivated++
			}
		}

		select {
		case <-time.After(checkDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.Printf("healthcheck: %d probed, %d deactivated", len(refs), deactivated)
	return nil
}

// probe does a HEAD request and reads liveness off the status code. Network
// errors count as live; only a definitive gone-signal deactivates.
func (w *HealthcheckWorker) probe(ctx context.Context, ref models.ListingRef) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ref.URL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.client.Do(req)
	if err != nil {
		return true
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true
	case http.StatusNotFound, http.StatusGone:
		return false
	case http.StatusMovedPermanently, http.StatusFound:
		return !isDelistRedirect(resp.Header.Get("Location"))
	default:
		return true
	}
}

// isDelistRedirect recognizes redirects portals use for removed listings:
// back to a search/category index rather than another detail page.
func isDelistRedirect(location string) bool {
	if location == "" {
		return false
	}
	lower := strings.ToLower(location)
	for _, marker := range []string{"/search", "/buy", "/rent", "/results", "/404", "removed", "expired"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
