package normalize

import (
	"testing"

	"prop_harvester/models"
)

func TestArea_Sqm(t *testing.T) {
	a := Area("184 sqm")
	if a.Sqm == nil || *a.Sqm != 184 {
		t.Fatalf("expected 184, got %v", a.Sqm)
	}
	if a.Unit != models.AreaUnitSqm {
		t.Fatalf("expected sqm unit, got %q", a.Unit)
	}
}

func TestArea_SquareMetersSpelledOut(t *testing.T) {
	a := Area("Floor area: 72.5 square meters")
	if a.Sqm == nil || *a.Sqm != 72.5 {
		t.Fatalf("expected 72.5, got %v", a.Sqm)
	}
	if a.Unit != models.AreaUnitSqm {
		t.Fatalf("expected sqm unit, got %q", a.Unit)
	}
}

func TestArea_SqftConverted(t *testing.T) {
	a := Area("1,000 sq ft")
	if a.Sqm == nil || *a.Sqm != 92.9 {
		t.Fatalf("expected 92.9, got %v", a.Sqm)
	}
	if a.Unit != models.AreaUnitSqft {
		t.Fatalf("expected sqft unit, got %q", a.Unit)
	}
}

func TestArea_SqmNotConverted(t *testing.T) {
	// Values already in square meters pass through untouched.
	a := Area("50 m²")
	if a.Sqm == nil || *a.Sqm != 50 {
		t.Fatalf("expected 50, got %v", a.Sqm)
	}
}

func TestArea_BareNumberFlaggedAssumed(t *testing.T) {
	a := Area("120")
	if a.Sqm == nil || *a.Sqm != 120 {
		t.Fatalf("expected 120, got %v", a.Sqm)
	}
	if a.Unit != models.AreaUnitAssumed {
		t.Fatalf("expected assumed unit, got %q", a.Unit)
	}
}

func TestArea_NoNumber(t *testing.T) {
	a := Area("spacious")
	if a.Sqm != nil {
		t.Fatalf("expected nil, got %v", *a.Sqm)
	}
	if a.Raw != "spacious" {
		t.Fatalf("raw not retained: %q", a.Raw)
	}
}
