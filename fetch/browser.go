package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"prop_harvester/config"
)

const navRetries = 3

var consentSelectors = []string{
	"button:has-text('Accept')",
	"button:has-text('I agree')",
	"#onetrust-accept-btn-handler",
	"#didomi-notice-agree-button",
	"button[aria-label*='accept' i]",
	"button[class*='consent']",
}

// BrowserFetcher drives a headless Chromium via playwright. The browser
// context is shared across calls within one portal run; each Fetch gets its
// own page and always releases it.
type BrowserFetcher struct {
	cfg *config.PortalConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowser(cfg *config.PortalConfig) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(f.cfg.Headers["User-Agent"]),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("create browser context: %w", err)
	}

	f.pw = pw
	f.browser = browser
	f.context = bctx
	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string, kind PageKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := f.ensureBrowser(); err != nil {
		return "", err
	}

	page, err := f.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	// Playwright calls block without taking a context; the render runs in its
	// own goroutine so the caller's deadline stays authoritative. Closing the
	// page aborts whatever playwright call is in flight.
	return awaitRender(ctx, func() { page.Close() }, func() (string, error) {
		return f.render(page, url, kind)
	})
}

// awaitRender runs fn off-goroutine and races it against ctx. On ctx expiry
// abort is called to unblock fn, and its result is drained before returning.
func awaitRender(ctx context.Context, abort func(), fn func() (string, error)) (string, error) {
	type renderResult struct {
		html string
		err  error
	}
	done := make(chan renderResult, 1)
	go func() {
		html, err := fn()
		done <- renderResult{html, err}
	}()

	select {
	case r := <-done:
		return r.html, r.err
	case <-ctx.Done():
		abort()
		<-done
		return "", ctx.Err()
	}
}

func (f *BrowserFetcher) render(page playwright.Page, url string, kind PageKind) (string, error) {
	timeoutMs := float64(f.cfg.Timeout * 1000)
	page.SetDefaultNavigationTimeout(timeoutMs)

	if err := f.navigate(page, url); err != nil {
		return "", fmt.Errorf("%w: navigation failed: %v", ErrNoContent, err)
	}

	f.dismissConsent(page)
	f.waitForContent(page, kind, timeoutMs)

	// Let XHR / lazy-loaded blocks settle, then nudge anything below the fold.
	page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(4000),
	})
	page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
	page.WaitForTimeout(800)

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("%w: serialize DOM: %v", ErrNoContent, err)
	}
	return html, nil
}

// navigate retries transient navigation errors (network flaps) a bounded
// number of times before giving up.
func (f *BrowserFetcher) navigate(page playwright.Page, url string) error {
	var lastErr error
	for attempt := 1; attempt <= navRetries; attempt++ {
		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < navRetries && isTransientNavError(err) {
			log.Printf("goto retry %d/%d for %s: %v", attempt, navRetries, url, err)
			page.WaitForTimeout(float64(500 * attempt))
			continue
		}
		break
	}
	return lastErr
}

func isTransientNavError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "ERR_NETWORK_CHANGED") ||
		strings.Contains(msg, "ERR_CONNECTION_RESET") ||
		strings.Contains(msg, "Timeout")
}

// dismissConsent clicks through cookie/consent overlays when present.
// Absence is the normal case and not an error.
func (f *BrowserFetcher) dismissConsent(page playwright.Page) {
	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			if err := btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err == nil {
				page.WaitForTimeout(500)
				return
			}
		}
	}
}

// waitForContent waits for the first of several candidate selectors to attach.
// Candidates are tried in order: configured hints first, then generics.
func (f *BrowserFetcher) waitForContent(page playwright.Page, kind PageKind, timeoutMs float64) {
	var candidates []string
	switch kind {
	case PageDetail:
		candidates = []string{f.cfg.DetailWaitSelector(), "h1", "main"}
	default:
		candidates = []string{f.cfg.ListWaitSelector(), f.cfg.ListingSelector, "main"}
	}

	for _, sel := range candidates {
		if sel == "" {
			continue
		}
		_, err := page.WaitForSelector(sel, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(timeoutMs),
		})
		if err == nil {
			return
		}
	}
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.context != nil {
		f.context.Close()
		f.context = nil
	}
	if f.browser != nil {
		f.browser.Close()
		f.browser = nil
	}
	if f.pw != nil {
		f.pw.Stop()
		f.pw = nil
	}
	f.initialized = false
}

// Watchdog bounds a fetch attempt so a hung render can never stall the
// pipeline; expiry surfaces as an ordinary fetch failure.
func Watchdog(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
