// Package fetch turns a URL into final HTML. Two implementations exist: a
// plain HTTP fetcher for static portals and a headless-browser fetcher for
// portals that render listings client-side. Callers treat any error as "no
// content"; the sentinel kinds exist so logs can tell transient exhaustion,
// terminal statuses and config problems apart.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"prop_harvester/config"
)

var (
	// ErrNoContent marks transient failures that exhausted their retries.
	ErrNoContent = errors.New("no content")
	// ErrTerminalStatus marks non-retryable HTTP statuses (4xx other than 429).
	ErrTerminalStatus = errors.New("terminal http status")
	// ErrUnsupportedMode marks a scraping_mode with no fetcher behind it.
	ErrUnsupportedMode = errors.New("unsupported scraping mode")
)

// PageKind tells the rendered fetcher which "content is present" selectors to
// wait for. The static fetcher ignores it.
type PageKind int

const (
	PageList PageKind = iota
	PageDetail
)

type Fetcher interface {
	Fetch(ctx context.Context, url string, kind PageKind) (string, error)
	Close()
}

// New selects the fetcher for the portal's configured mode. "selenium" configs
// are served by the browser fetcher; the orchestrator never branches on mode
// anywhere else.
func New(cfg *config.PortalConfig, client *http.Client) (Fetcher, error) {
	switch cfg.ScrapingMode {
	case config.ModeRequests:
		return NewStatic(cfg, client), nil
	case config.ModeSelenium, config.ModePlaywright:
		return NewBrowser(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, cfg.ScrapingMode)
	}
}
