// Package normalize converts raw scraped text into typed values. Everything
// here is a pure function; parse failures degrade to nil fields with the raw
// text retained.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"prop_harvester/models"
)

var nonNumeric = regexp.MustCompile(`[^\d.]`)

var periodKeywords = []struct {
	period   string
	keywords []string
}{
	{"month", []string{"per month", "/ month", "/month", "monthly", "/ mo", "/mo"}},
	{"year", []string{"per year", "/ year", "/year", "yearly", "annum", "p.a"}},
	{"week", []string{"per week", "/ week", "/week", "weekly"}},
	{"day", []string{"per day", "/ day", "/day", "daily"}},
}

// Price parses price text like "₱ 4,500,000", "PHP 25,000 / month" or
// "$1,200 monthly" into currency, numeric amount and billing period. The raw
// text is always kept, even when the numeric parse fails.
func Price(txt string) *models.Price {
	raw := strings.TrimSpace(txt)
	lower := strings.ToLower(raw)

	p := &models.Price{Raw: raw}

	switch {
	case strings.Contains(raw, "₱") || strings.Contains(lower, "php"):
		p.Currency = "PHP"
	case strings.Contains(lower, "usd") || strings.Contains(raw, "$"):
		p.Currency = "USD"
	case strings.Contains(lower, "eur") || strings.Contains(raw, "€"):
		p.Currency = "EUR"
	}

	digits := nonNumeric.ReplaceAllString(strings.ReplaceAll(raw, ",", ""), "")
	if digits != "" {
		if v, err := strconv.ParseFloat(digits, 64); err == nil {
			p.Value = &v
		}
	}

	for _, pk := range periodKeywords {
		for _, kw := range pk.keywords {
			if strings.Contains(lower, kw) {
				p.Period = pk.period
				return p
			}
		}
	}

	return p
}
