package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"prop_harvester/models"
)

// Standard square-feet to square-meter factor.
const SqftToSqm = 0.092903

var (
	sqmPattern  = regexp.MustCompile(`(?i)(\d+(?:[\.,]\d+)?)\s*(m²|m2|sqm|sq\.?\s*m(?:eters?)?)`)
	sqftPattern = regexp.MustCompile(`(?i)(\d+(?:[\.,]\d+)?)\s*(sq\.?\s*ft|ft²|ft2|square\s*feet)`)
	barePattern = regexp.MustCompile(`\d+(?:[\.,]\d+)?`)
)

// Area normalizes area text to square meters. Handles "184 sqm", "184 m²",
// "184 square meters" and "1,000 sq ft" (converted, rounded to 2 decimals).
// When only a bare number is present the value is assumed to be sqm and
// flagged AreaUnitAssumed so downstream consumers can tell a guess from a
// unit-confirmed reading.
func Area(txt string) *models.Area {
	raw := strings.TrimSpace(txt)
	a := &models.Area{Raw: raw}
	if raw == "" {
		return a
	}

	if m := sqmPattern.FindStringSubmatch(raw); m != nil {
		if v, ok := parseAreaNumber(m[1]); ok {
			a.Sqm = &v
			a.Unit = models.AreaUnitSqm
			return a
		}
	}

	if m := sqftPattern.FindStringSubmatch(raw); m != nil {
		if v, ok := parseAreaNumber(m[1]); ok {
			sqm := math.Round(v*SqftToSqm*100) / 100
			a.Sqm = &sqm
			a.Unit = models.AreaUnitSqft
			return a
		}
	}

	if m := barePattern.FindString(raw); m != "" {
		if v, ok := parseAreaNumber(m); ok {
			a.Sqm = &v
			a.Unit = models.AreaUnitAssumed
		}
	}

	return a
}

// AreaFromSqft converts an explicit square-feet value.
func AreaFromSqft(raw string, sqft float64) *models.Area {
	sqm := math.Round(sqft*SqftToSqm*100) / 100
	return &models.Area{Raw: raw, Sqm: &sqm, Unit: models.AreaUnitSqft}
}

func parseAreaNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
