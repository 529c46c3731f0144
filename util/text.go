package util

import (
	"strconv"
	"strings"
)

const maxTitleLength = 100

// Characters that break filenames (and Markdown captions) on the platforms we
// deliver to.
const hostileChars = `<>:"/\|?*`

// SanitizeTitle removes filesystem-hostile characters from a display title and
// caps its length.
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if strings.ContainsRune(hostileChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.TrimSpace(b.String())
	runes := []rune(cleaned)
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength])
	}
	return cleaned
}

// ParseApproxSize converts the human-readable size strings the resolver
// endpoints report ("5.2 MB", "1.1 GB") into bytes. Returns 0 for anything it
// cannot parse; the value is advisory either way.
func ParseApproxSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "Unknown") {
		return 0
	}
	multiplier := float64(1)
	upper := strings.ToUpper(s)
	for _, unit := range []struct {
		suffix string
		factor float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(upper, unit.suffix) {
			multiplier = unit.factor
			upper = strings.TrimSuffix(upper, unit.suffix)
			break
		}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(upper), 64)
	if err != nil || value < 0 {
		return 0
	}
	return int64(value * multiplier)
}
