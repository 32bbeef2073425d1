package ledger

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// HTMLCache stores fetched pages keyed by the SHA-1 of the canonical URL, so
// re-runs within the same run directory skip the network entirely.
type HTMLCache struct {
	dir string
}

func NewHTMLCache(dir string) *HTMLCache {
	return &HTMLCache{dir: dir}
}

func (c *HTMLCache) path(prefix, canonicalURL string) string {
	sum := sha1.Sum([]byte(canonicalURL))
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.html", prefix, hex.EncodeToString(sum[:])))
}

func (c *HTMLCache) Get(prefix, canonicalURL string) (string, bool) {
	data, err := os.ReadFile(c.path(prefix, canonicalURL))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *HTMLCache) Put(prefix, canonicalURL, html string) error {
	return os.WriteFile(c.path(prefix, canonicalURL), []byte(html), 0644)
}
