package scraper

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://example.com/listing/123/", "https://example.com/listing/123"},
		{"https://example.com/listing/123?utm_source=x", "https://example.com/listing/123"},
		{"https://example.com/listing/123#photos", "https://example.com/listing/123"},
		{"https://example.com/", "https://example.com"},
		{"  https://example.com/a ", "https://example.com/a"},
	}
	for _, c := range cases {
		if got := Canonicalize(c.in); got != c.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	once := Canonicalize("https://example.com/listing/123/?page=2#top")
	twice := Canonicalize(once)
	if once != twice {
		t.Fatalf("not idempotent: %q != %q", once, twice)
	}
}

func TestResolveRef(t *testing.T) {
	got := ResolveRef("https://example.com/rent/page-2", "/listing/99")
	if got != "https://example.com/listing/99" {
		t.Fatalf("unexpected %q", got)
	}
	got = ResolveRef("https://example.com/rent/", "?page=3")
	if got != "https://example.com/rent/?page=3" {
		t.Fatalf("unexpected %q", got)
	}
	got = ResolveRef("https://example.com/rent/", "https://other.com/x")
	if got != "https://other.com/x" {
		t.Fatalf("unexpected %q", got)
	}
}
