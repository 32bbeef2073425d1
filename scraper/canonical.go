package scraper

import (
	"net/url"
	"strings"
)

// Canonicalize reduces a URL to its stable identity: scheme://host/path with
// query and fragment dropped and any trailing slash trimmed. Idempotent, so
// cosmetic variants of the same listing URL dedupe to one key.
func Canonicalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	path := strings.TrimRight(u.Path, "/")
	return u.Scheme + "://" + u.Host + path
}

// ResolveRef resolves href against the page it appeared on. Returns the empty
// string when either side is unparseable.
func ResolveRef(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
