package normalize

import (
	"regexp"
	"strconv"
)

var firstInt = regexp.MustCompile(`\d+`)

// Integer extracts the first integer in the text, for count-like fields
// ("3 Bedrooms" -> 3). Returns nil when no digits are present.
func Integer(txt string) *int {
	m := firstInt.FindString(txt)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
