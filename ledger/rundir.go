// Package ledger owns the run-scoped output directory: NDJSON ledgers for
// discovered URLs, staged listings and failures, a processed-URL set for
// resumability, and a raw-HTML cache.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RunDir is one run's output tree:
//
//	<root>/run_<YYYYMMDD_HHMMSS>/
//	  staged/    NDJSON ledgers + processed sets
//	  raw_html/  fetched page cache
//	  logs/      run log file
type RunDir struct {
	RunID string
	Base  string
}

func NewRunDir(root string) (*RunDir, error) {
	runID := time.Now().Format("20060102_150405")
	rd := &RunDir{
		RunID: runID,
		Base:  filepath.Join(root, "run_"+runID),
	}
	for _, d := range []string{rd.Staged(), rd.RawHTML(), rd.Logs()} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}
	return rd, nil
}

func (r *RunDir) Staged() string  { return filepath.Join(r.Base, "staged") }
func (r *RunDir) RawHTML() string { return filepath.Join(r.Base, "raw_html") }
func (r *RunDir) Logs() string    { return filepath.Join(r.Base, "logs") }

func (r *RunDir) URLsPath(portal string) string {
	return filepath.Join(r.Staged(), portal+"_urls.jsonl")
}

func (r *RunDir) ListingsPath(portal string) string {
	return filepath.Join(r.Staged(), portal+"_listings.jsonl")
}

func (r *RunDir) FailuresPath(portal string) string {
	return filepath.Join(r.Staged(), portal+"_failures.jsonl")
}

func (r *RunDir) ProcessedPath(portal string) string {
	return filepath.Join(r.Staged(), portal+"_processed.txt")
}

// LatestStagedFile finds the newest previous run that has the named staged
// file, for resuming details or ingesting without re-discovering.
func LatestStagedFile(root, name string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(root, "run_*", "staged", name))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[len(matches)-1], true
}
