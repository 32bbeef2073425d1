package normalize

import (
	"testing"
	"time"
)

func TestAbsoluteDate_ISO(t *testing.T) {
	got, ok := AbsoluteDate("2026-03-15")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAbsoluteDate_LongForm(t *testing.T) {
	got, ok := AbsoluteDate("January 2, 2026")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if got.Year() != 2026 || got.Month() != time.January || got.Day() != 2 {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestRelativeDate_Simple(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	got, ok := RelativeDate("3 days ago", now)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	want := now.Add(-3 * 24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRelativeDate_CombinedComponents(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	got, ok := RelativeDate("2 days, 3 hours ago", now)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	want := now.Add(-(2*24 + 3) * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRelativeDate_RequiresAgo(t *testing.T) {
	now := time.Now().UTC()
	if _, ok := RelativeDate("3 days", now); ok {
		t.Fatalf("expected no parse without 'ago'")
	}
	if _, ok := RelativeDate("a while ago", now); ok {
		t.Fatalf("expected no parse without numeric component")
	}
}

func TestPublishedDate_PrefersAbsolute(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	got, ok := PublishedDate("2026-01-10T08:30:00Z", now)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if got.Day() != 10 || got.Hour() != 8 {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestInteger(t *testing.T) {
	if n := Integer("3 Bedrooms"); n == nil || *n != 3 {
		t.Fatalf("expected 3, got %v", n)
	}
	if n := Integer("studio"); n != nil {
		t.Fatalf("expected nil, got %v", *n)
	}
}
