package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"prop_harvester/config"
)

const (
	maxBodyBytes  = 10 << 20
	baseBackoff   = 500 * time.Millisecond
	maxRetryAfter = 60 * time.Second
)

var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StaticFetcher issues plain HTTP GETs with the portal's headers, retrying
// transient statuses (429, 5xx) and network errors with exponential backoff.
type StaticFetcher struct {
	cfg    *config.PortalConfig
	client *http.Client
}

func NewStatic(cfg *config.PortalConfig, client *http.Client) *StaticFetcher {
	return &StaticFetcher{cfg: cfg, client: client}
}

func (f *StaticFetcher) Fetch(ctx context.Context, url string, _ PageKind) (string, error) {
	var lastErr error
	backoff := baseBackoff

	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		html, retryIn, err := f.fetchOnce(ctx, url)
		if err == nil {
			return html, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isTransient(err) {
			return "", err
		}
		lastErr = err

		if attempt < f.cfg.MaxRetries {
			wait := backoff
			if retryIn > wait {
				wait = retryIn
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrNoContent, f.cfg.MaxRetries, lastErr)
}

// fetchOnce performs a single attempt. The returned duration is a
// server-provided Retry-After hint, zero when absent.
func (f *StaticFetcher) fetchOnce(ctx context.Context, url string) (string, time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(f.cfg.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrTerminalStatus, err)
	}
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if transientStatuses[resp.StatusCode] {
		return "", retryAfter(resp), fmt.Errorf("transient status %d for %s", resp.StatusCode, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("%w: %d for %s", ErrTerminalStatus, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", 0, fmt.Errorf("read body %s: %w", url, err)
	}
	return string(body), 0, nil
}

func (f *StaticFetcher) Close() {}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

func isTransient(err error) bool {
	// Terminal statuses and bad requests are the only non-retryable kinds.
	return !errors.Is(err, ErrTerminalStatus)
}
