package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"prop_harvester/config"
	"prop_harvester/fetch"
	"prop_harvester/ledger"
)

const listPage1 = `<html><body>
<div class="results">
  <a class="listing" href="/listing/1/">One</a>
  <a class="listing" href="/listing/2?ref=list">Two</a>
</div>
<a class="next" href="/rent?page=2">Next</a>
</body></html>`

const listPage2 = `<html><body>
<div class="results">
  <a class="listing" href="/listing/2/">Two again</a>
  <a class="listing" href="/listing/3">Three</a>
</div>
</body></html>`

func testListServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rent", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, listPage2)
			return
		}
		fmt.Fprint(w, listPage1)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testDiscoverer(t *testing.T, srv *httptest.Server, store SeenStore) *Discoverer {
	t.Helper()
	cfg := &config.PortalConfig{
		PortalName:         "testportal",
		SeedURLs:           []string{srv.URL + "/rent"},
		ScrapingMode:       config.ModeRequests,
		ListingSelector:    "a.listing",
		PaginationSelector: "a.next",
		MaxPages:           10,
		MaxRetries:         1,
		Timeout:            5,
	}
	run, err := ledger.NewRunDir(t.TempDir())
	if err != nil {
		t.Fatalf("run dir: %v", err)
	}
	return NewDiscoverer(cfg, fetch.NewStatic(cfg, srv.Client()), run, store)
}

func TestDiscover_WalksPagination(t *testing.T) {
	srv := testListServer(t)
	d := testDiscoverer(t, srv, nil)

	urls, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	// Listing 2 appears on both pages with cosmetic URL variants; it must
	// dedupe to one entry and order must follow first discovery.
	want := []string{
		srv.URL + "/listing/1",
		srv.URL + "/listing/2",
		srv.URL + "/listing/3",
	}
	if len(urls) != len(want) {
		t.Fatalf("expected %d urls, got %d: %v", len(want), len(urls), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("url %d: expected %s, got %s", i, want[i], urls[i])
		}
	}
	if d.PagesWalked != 2 {
		t.Fatalf("expected 2 pages walked, got %d", d.PagesWalked)
	}
}

func TestDiscover_MaxListingsCap(t *testing.T) {
	srv := testListServer(t)
	d := testDiscoverer(t, srv, nil)
	d.cfg.MaxListings = 2

	urls, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected cap at 2, got %d", len(urls))
	}
	if d.PagesWalked != 1 {
		t.Fatalf("expected stop mid-walk after 1 page, got %d", d.PagesWalked)
	}
}

type memorySeenStore struct {
	urls map[string]bool
}

func (m *memorySeenStore) SeenURLs(string) (map[string]bool, error) {
	return m.urls, nil
}

func (m *memorySeenStore) AddSeenURLs(_ string, urls []string) error {
	for _, u := range urls {
		m.urls[u] = true
	}
	return nil
}

func TestDiscover_CrossRunDedup(t *testing.T) {
	srv := testListServer(t)
	store := &memorySeenStore{urls: make(map[string]bool)}

	first := testDiscoverer(t, srv, store)
	urls, err := first.Discover(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("expected 3 urls on first run, got %d", len(urls))
	}

	second := testDiscoverer(t, srv, store)
	urls, err = second.Discover(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("expected no new urls on second run, got %v", urls)
	}
}
