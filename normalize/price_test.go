package normalize

import "testing"

func TestPrice_PHPSymbol(t *testing.T) {
	p := Price("₱ 4,500,000")
	if p.Currency != "PHP" {
		t.Fatalf("expected PHP, got %q", p.Currency)
	}
	if p.Value == nil || *p.Value != 4500000 {
		t.Fatalf("expected 4500000, got %v", p.Value)
	}
	if p.Period != "" {
		t.Fatalf("expected no period, got %q", p.Period)
	}
	if p.Raw != "₱ 4,500,000" {
		t.Fatalf("raw not retained: %q", p.Raw)
	}
}

func TestPrice_MonthlyRent(t *testing.T) {
	p := Price("PHP 25,000 / month")
	if p.Currency != "PHP" {
		t.Fatalf("expected PHP, got %q", p.Currency)
	}
	if p.Value == nil || *p.Value != 25000 {
		t.Fatalf("expected 25000, got %v", p.Value)
	}
	if p.Period != "month" {
		t.Fatalf("expected month, got %q", p.Period)
	}
}

func TestPrice_USDMonthly(t *testing.T) {
	p := Price("$1,200 monthly")
	if p.Currency != "USD" {
		t.Fatalf("expected USD, got %q", p.Currency)
	}
	if p.Value == nil || *p.Value != 1200 {
		t.Fatalf("expected 1200, got %v", p.Value)
	}
	if p.Period != "month" {
		t.Fatalf("expected month, got %q", p.Period)
	}
}

func TestPrice_Yearly(t *testing.T) {
	p := Price("€ 9,600 per year")
	if p.Currency != "EUR" {
		t.Fatalf("expected EUR, got %q", p.Currency)
	}
	if p.Period != "year" {
		t.Fatalf("expected year, got %q", p.Period)
	}
}

func TestPrice_Unparseable(t *testing.T) {
	p := Price("Price on request")
	if p.Value != nil {
		t.Fatalf("expected nil value, got %v", *p.Value)
	}
	if p.Currency != "" {
		t.Fatalf("expected no currency, got %q", p.Currency)
	}
	if p.Raw != "Price on request" {
		t.Fatalf("raw not retained: %q", p.Raw)
	}
}
