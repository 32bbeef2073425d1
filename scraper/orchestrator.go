package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"prop_harvester/config"
	"prop_harvester/fetch"
	"prop_harvester/httputil"
	"prop_harvester/ledger"
	"prop_harvester/models"
	"prop_harvester/storage"
)

// Phase selects which stages of a run execute. Each stage reads the previous
// stage's ledger files, so phases can be re-run independently.
type Phase string

const (
	PhaseDiscover Phase = "discover"
	PhaseDetails  Phase = "details"
	PhaseIngest   Phase = "ingest"
	PhaseAll      Phase = "all"
)

func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseDiscover, PhaseDetails, PhaseIngest, PhaseAll:
		return Phase(s), nil
	default:
		return "", fmt.Errorf("unknown phase %q", s)
	}
}

// OpsStore is the operational bookkeeping the orchestrator records runs and
// seen URLs into. SQLiteStore satisfies it.
type OpsStore interface {
	SeenStore
	CreateRun(run *models.ScrapeRun) error
	FinishRun(run *models.ScrapeRun) error
	AddLog(entry *models.ScrapeLog) error
}

// Orchestrator sequences discovery, detail extraction and ingest for each
// configured portal.
type Orchestrator struct {
	cfg  *config.Config
	ops  OpsStore
	sink storage.ListingSink
}

func NewOrchestrator(cfg *config.Config, ops OpsStore, sink storage.ListingSink) *Orchestrator {
	return &Orchestrator{cfg: cfg, ops: ops, sink: sink}
}

// RunAll runs the given phase for every portal in portals (nil/empty means
// all configured). A failing portal is logged and skipped; one bad site must
// not sink the others.
func (o *Orchestrator) RunAll(ctx context.Context, phase Phase, portals []string) error {
	selected := o.selectPortals(portals)
	if len(selected) == 0 {
		return fmt.Errorf("no portals selected")
	}

	var failed int
	for _, pc := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.RunPortal(ctx, pc, phase); err != nil {
			failed++
			log.Printf("[%s] run failed: %v", pc.PortalName, err)
		}
	}
	if failed == len(selected) {
		return fmt.Errorf("all %d portal runs failed", failed)
	}
	return nil
}

func (o *Orchestrator) selectPortals(names []string) []*config.PortalConfig {
	if len(names) == 0 {
		out := make([]*config.PortalConfig, 0, len(o.cfg.Portals))
		for _, pc := range o.cfg.Portals {
			out = append(out, pc)
		}
		return out
	}
	var out []*config.PortalConfig
	for _, n := range names {
		if pc, ok := o.cfg.Portals[n]; ok {
			out = append(out, pc)
		} else {
			log.Printf("unknown portal %q, skipping", n)
		}
	}
	return out
}

// RunPortal executes one portal's run under a fresh run directory and records
// the outcome in the ops store.
func (o *Orchestrator) RunPortal(ctx context.Context, pc *config.PortalConfig, phase Phase) error {
	runDir, err := ledger.NewRunDir(o.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("run dir: %w", err)
	}

	run := &models.ScrapeRun{
		PortalID:  pc.PortalName,
		RunDir:    runDir.Base,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	if o.ops != nil {
		if err := o.ops.CreateRun(run); err != nil {
			return fmt.Errorf("create run record: %w", err)
		}
	}

	runErr := o.runPhases(ctx, pc, phase, runDir, run)

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if runErr != nil {
		run.Status = models.RunStatusFailed
	}
	if o.ops != nil {
		if err := o.ops.FinishRun(run); err != nil {
			log.Printf("[%s] finishing run record failed: %v", pc.PortalName, err)
		}
		o.logRun(run)
	}

	log.Printf("[%s] run %s: %d urls, %d pages, %d ok, %d failed, %d persisted",
		pc.PortalName, run.Status, run.URLsDiscovered, run.PagesWalked,
		run.ListingsOK, run.ListingsFailed, run.RowsPersisted)
	return runErr
}

func (o *Orchestrator) runPhases(ctx context.Context, pc *config.PortalConfig, phase Phase, runDir *ledger.RunDir, run *models.ScrapeRun) error {
	var fetcher fetch.Fetcher
	if phase != PhaseIngest {
		var err error
		fetcher, err = fetch.New(pc, httputil.NewClient(time.Duration(pc.Timeout)*time.Second))
		if err != nil {
			return err
		}
		defer fetcher.Close()
	}

	var urls []string

	if phase == PhaseAll || phase == PhaseDiscover {
		var seen SeenStore
		if o.ops != nil {
			seen = o.ops
		}
		disc := NewDiscoverer(pc, fetcher, runDir, seen)
		var err error
		urls, err = disc.Discover(ctx)
		run.URLsDiscovered = len(urls)
		run.PagesWalked = disc.PagesWalked
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
	}

	if phase == PhaseAll || phase == PhaseDetails {
		if len(urls) == 0 {
			var err error
			urls, err = o.loadStagedURLs(pc.PortalName)
			if err != nil {
				return err
			}
		}
		ext := NewExtractor(pc, fetcher, runDir)
		ok, failed, err := ext.ProcessAll(ctx, urls)
		run.ListingsOK = ok
		run.ListingsFailed = failed
		if err != nil {
			return fmt.Errorf("details: %w", err)
		}
	}

	if phase == PhaseAll || phase == PhaseIngest {
		persisted, err := o.ingest(ctx, pc, runDir, phase)
		run.RowsPersisted = persisted
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}

	return nil
}

// loadStagedURLs replays the most recent discovery ledger for a portal, for
// detail-only runs that resume earlier work.
func (o *Orchestrator) loadStagedURLs(portal string) ([]string, error) {
	path, ok := ledger.LatestStagedFile(o.cfg.OutputDir, portal+"_urls.jsonl")
	if !ok {
		return nil, fmt.Errorf("no staged URL ledger found for %s", portal)
	}
	var urls []string
	err := ledger.ReadNDJSON(path, func(line []byte) error {
		var d models.DiscoveredURL
		if err := json.Unmarshal(line, &d); err != nil {
			return err
		}
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] resuming %d URLs from %s", portal, len(urls), path)
	return urls, nil
}

// ingest streams the listing ledger into the persistence writer. For the
// standalone ingest phase the newest prior ledger is used; in a full run it
// is the one this run just wrote.
func (o *Orchestrator) ingest(ctx context.Context, pc *config.PortalConfig, runDir *ledger.RunDir, phase Phase) (int, error) {
	if o.sink == nil {
		log.Printf("[%s] no database configured, skipping ingest", pc.PortalName)
		return 0, nil
	}

	path := runDir.ListingsPath(pc.PortalName)
	if phase == PhaseIngest {
		prior, ok := ledger.LatestStagedFile(o.cfg.OutputDir, pc.PortalName+"_listings.jsonl")
		if !ok {
			return 0, fmt.Errorf("no staged listings ledger found for %s", pc.PortalName)
		}
		path = prior
	}

	w := storage.NewWriter(o.sink, pc.PortalName)
	err := ledger.ReadNDJSON(path, func(line []byte) error {
		var rec models.ListingRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Printf("[%s] skipping malformed staged row: %v", pc.PortalName, err)
			return nil
		}
		if rec.URL == "" {
			return nil
		}
		return w.Add(ctx, &rec)
	})
	if err != nil {
		return w.Persisted, err
	}
	if err := w.Close(ctx); err != nil {
		return w.Persisted, err
	}
	return w.Persisted, nil
}

func (o *Orchestrator) logRun(run *models.ScrapeRun) {
	level := models.LogLevelInfo
	if run.Status == models.RunStatusFailed {
		level = models.LogLevelError
	}
	entry := &models.ScrapeLog{
		RunID:    &run.ID,
		Level:    level,
		Message:  fmt.Sprintf("run %s: %d urls, %d ok, %d failed, %d persisted", run.Status, run.URLsDiscovered, run.ListingsOK, run.ListingsFailed, run.RowsPersisted),
		PortalID: run.PortalID,
	}
	if err := o.ops.AddLog(entry); err != nil {
		log.Printf("[%s] scrape log write failed: %v", run.PortalID, err)
	}
}
