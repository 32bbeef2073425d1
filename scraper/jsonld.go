package scraper

import (
	"encoding/json"

	"github.com/PuerkitoBio/goquery"
)

// jsonldBlocks parses every <script type="application/ld+json"> on the page
// and returns all object nodes of the graph, flattened. Malformed blocks are
// skipped; publishers routinely ship broken JSON-LD.
func jsonldBlocks(doc *goquery.Document) []map[string]any {
	var blocks []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		walkJSONLD(data, &blocks)
	})
	return blocks
}

func walkJSONLD(node any, out *[]map[string]any) {
	switch v := node.(type) {
	case map[string]any:
		*out = append(*out, v)
		for _, child := range v {
			walkJSONLD(child, out)
		}
	case []any:
		for _, child := range v {
			walkJSONLD(child, out)
		}
	}
}

// findJSONLD returns the first node whose @type matches any of types.
func findJSONLD(blocks []map[string]any, types ...string) map[string]any {
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	for _, node := range blocks {
		switch t := node["@type"].(type) {
		case string:
			if want[t] {
				return node
			}
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok && want[s] {
					return node
				}
			}
		}
	}
	return nil
}

// jsonldString returns the first non-empty string value among keys, searched
// across all blocks in document order.
func jsonldString(blocks []map[string]any, keys ...string) string {
	for _, node := range blocks {
		for _, key := range keys {
			if s, ok := node[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// jsonldNumber pulls a numeric property from a node, tolerating the
// string-encoded numbers JSON-LD publishers emit.
func jsonldNumber(node map[string]any, key string) (float64, bool) {
	switch v := node[key].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(v), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
