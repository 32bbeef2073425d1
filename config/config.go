package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Fetch modes supported by PortalConfig.ScrapingMode. "selenium" is accepted
// for config compatibility and served by the same rendered-browser fetcher as
// "playwright".
const (
	ModeRequests   = "requests"
	ModeSelenium   = "selenium"
	ModePlaywright = "playwright"
)

type Config struct {
	DatabaseURL string
	SQLitePath  string
	OutputDir   string
	LogLevel    string
	Scheduler   SchedulerConfig
	Overrides   Overrides
	Portals     map[string]*PortalConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// Overrides are environment-resolved values applied to every portal once at
// load time. Zero values mean "no override".
type Overrides struct {
	ScrapingMode   string
	RateLimitDelay float64
	MaxPages       int
	MaxListings    int
}

type PortalConfig struct {
	PortalName         string            `yaml:"portal_name"`
	SeedURLs           []string          `yaml:"seed_urls"`
	ScrapingMode       string            `yaml:"scraping_mode"`
	ListingSelector    string            `yaml:"listing_selector"`
	PaginationSelector string            `yaml:"pagination_selector"`
	DetailSelectors    map[string]string `yaml:"detail_selectors"`
	WaitForSelector    string            `yaml:"wait_for_selector"`
	Headers            map[string]string `yaml:"headers"`
	MaxPages           int               `yaml:"max_pages"`
	MaxListings        int               `yaml:"max_listings"`
	RateLimitDelay     float64           `yaml:"rate_limit_delay"`
	Timeout            int               `yaml:"timeout"`
	MaxRetries         int               `yaml:"max_retries"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0 Safari/537.36"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_DB", "scraper.db"),
		OutputDir:   getEnv("OUTPUT_DIR", "scraper_output"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Overrides: Overrides{
			ScrapingMode:   os.Getenv("SCRAPING_MODE"),
			RateLimitDelay: getEnvFloat("RATE_LIMIT_DELAY", 0),
			MaxPages:       getEnvInt("MAX_PAGES", 0),
			MaxListings:    getEnvInt("MAX_LISTINGS", 0),
		},
		Portals: make(map[string]*PortalConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadPortalConfigs(getEnv("PORTALS_DIR", "config/portals")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPortalConfigs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var portal PortalConfig
		if err := yaml.Unmarshal(data, &portal); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		portal.applyDefaults()
		c.Overrides.apply(&portal)
		if err := portal.Validate(); err != nil {
			return fmt.Errorf("portal config %s: %w", path, err)
		}

		c.Portals[portal.PortalName] = &portal
	}

	return nil
}

func (p *PortalConfig) applyDefaults() {
	if p.DetailSelectors == nil {
		p.DetailSelectors = make(map[string]string)
	}
	if p.Headers == nil {
		p.Headers = map[string]string{"User-Agent": defaultUserAgent}
	}
	if p.ScrapingMode == "" {
		p.ScrapingMode = ModeRequests
	}
	if p.MaxPages == 0 {
		p.MaxPages = 200
	}
	if p.RateLimitDelay == 0 {
		p.RateLimitDelay = 1.0
	}
	if p.Timeout == 0 {
		p.Timeout = 30
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
}

func (o *Overrides) apply(p *PortalConfig) {
	if o.ScrapingMode != "" {
		p.ScrapingMode = o.ScrapingMode
	}
	if o.RateLimitDelay > 0 {
		p.RateLimitDelay = o.RateLimitDelay
	}
	if o.MaxPages > 0 {
		p.MaxPages = o.MaxPages
	}
	if o.MaxListings > 0 {
		p.MaxListings = o.MaxListings
	}
}

// Validate rejects unusable portal configs before any fetching happens.
func (p *PortalConfig) Validate() error {
	if p.PortalName == "" {
		return fmt.Errorf("portal_name is required")
	}
	if len(p.SeedURLs) == 0 {
		return fmt.Errorf("at least one seed URL is required")
	}
	for _, seed := range p.SeedURLs {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("seed URL %q is not an absolute http(s) URL", seed)
		}
	}
	if p.ListingSelector == "" {
		return fmt.Errorf("listing_selector is required")
	}
	switch p.ScrapingMode {
	case ModeRequests, ModeSelenium, ModePlaywright:
	default:
		return fmt.Errorf("unknown scraping_mode %q", p.ScrapingMode)
	}
	return nil
}

// DetailWaitSelector returns the configured "content is present" hint for
// detail pages, if any. Keys prefixed with "_" in detail_selectors are control
// hints, not extracted fields.
func (p *PortalConfig) DetailWaitSelector() string {
	return p.DetailSelectors["_detail_wait_for_selector"]
}

func (p *PortalConfig) ListWaitSelector() string {
	if p.WaitForSelector != "" {
		return p.WaitForSelector
	}
	return p.DetailSelectors["_wait_for_selector"]
}

// FieldSelectors returns the extractable field -> selector mapping with
// control hints filtered out.
func (p *PortalConfig) FieldSelectors() map[string]string {
	out := make(map[string]string, len(p.DetailSelectors))
	for field, sel := range p.DetailSelectors {
		if len(field) > 0 && field[0] == '_' {
			continue
		}
		out[field] = sel
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
