package extract

import (
	"regexp"
	"strconv"
	"strings"

	"snipetrader/internal/page"
)

// Valuation acceptance ranges in USD. Market-cap patterns admit wider
// values than generic dollar figures, which are prone to matching fees
// and volumes.
const (
	minMarketCapUSD = 1_000.0
	maxMarketCapUSD = 1e12
	minDollarUSD    = 100.0
	maxDollarUSD    = 1e11
)

// falsePositiveWindow is how many characters around a dollar match are
// checked for transaction-count and fee markers.
const falsePositiveWindow = 12

var (
	marketCapRe  = regexp.MustCompile(`MC\$\s*([0-9][0-9,]*\.?[0-9]*)\s*([KMBkmb])?`)
	marketCapAlt = regexp.MustCompile(`Market\s+Cap:?\s*\$\s*([0-9][0-9,]*\.?[0-9]*)\s*([KMBkmb])?`)
	dollarRe     = regexp.MustCompile(`\$\s*([0-9][0-9,]*\.?[0-9]*)\s*([KMBkmb])?`)
	bareSuffixRe = regexp.MustCompile(`\b([0-9][0-9,]*\.?[0-9]*)\s*([KMBkmb])\b`)
)

// suffixScale maps magnitude suffixes to multipliers.
var suffixScale = map[string]float64{
	"K": 1e3, "M": 1e6, "B": 1e9,
}

// resolvePrice runs the price pass cascade over the fragment text:
// explicit market-cap patterns, generic dollar figures, bare
// suffixed numbers. ok is false when nothing validated, in which case
// callers fall back to the extraction sentinel.
func resolvePrice(root *page.Node) (float64, bool) {
	text := root.Text()
	if v, ok := priceFromMarketCap(text); ok {
		return v, true
	}
	if v, ok := priceFromDollarFigure(text); ok {
		return v, true
	}
	if v, ok := priceFromBareSuffix(text); ok {
		return v, true
	}
	return 0, false
}

// priceFromMarketCap matches MC$<n><K|M|B> and "Market Cap: $<n>" forms,
// scaled by suffix and range-checked.
func priceFromMarketCap(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{marketCapRe, marketCapAlt} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := parseSuffixed(m[1], m[2])
			if err != nil {
				continue
			}
			if v >= minMarketCapUSD && v < maxMarketCapUSD {
				return v, true
			}
		}
	}
	return 0, false
}

// priceFromDollarFigure matches generic $<n> figures, rejecting matches
// adjacent to transaction-count (TX) and fee (F /F=) markers.
func priceFromDollarFigure(text string) (float64, bool) {
	for _, idx := range dollarRe.FindAllStringSubmatchIndex(text, -1) {
		m := dollarRe.FindStringSubmatch(text[idx[0]:idx[1]])
		if m == nil {
			continue
		}
		if nearFalsePositiveMarker(text, idx[0], idx[1]) {
			continue
		}
		v, err := parseSuffixed(m[1], m[2])
		if err != nil {
			continue
		}
		if v >= minDollarUSD && v < maxDollarUSD {
			return v, true
		}
	}
	return 0, false
}

// priceFromBareSuffix matches suffixed numbers with no dollar sign,
// e.g. "21.1K" standing alone in a market-cap column.
func priceFromBareSuffix(text string) (float64, bool) {
	for _, idx := range bareSuffixRe.FindAllStringSubmatchIndex(text, -1) {
		m := bareSuffixRe.FindStringSubmatch(text[idx[0]:idx[1]])
		if m == nil {
			continue
		}
		if nearFalsePositiveMarker(text, idx[0], idx[1]) {
			continue
		}
		v, err := parseSuffixed(m[1], m[2])
		if err != nil {
			continue
		}
		if v >= minDollarUSD && v < maxDollarUSD {
			return v, true
		}
	}
	return 0, false
}

// nearFalsePositiveMarker checks the neighborhood of a match for
// markers that flag transaction counts and fees rather than valuations.
func nearFalsePositiveMarker(text string, start, end int) bool {
	lo := start - falsePositiveWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + falsePositiveWindow
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]
	return strings.Contains(window, "TX") ||
		strings.Contains(window, "F ") ||
		strings.Contains(window, "F=")
}

// parseSuffixed parses a comma-grouped number and applies its magnitude
// suffix.
func parseSuffixed(number, suffix string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if scale, ok := suffixScale[strings.ToUpper(suffix)]; ok {
		v *= scale
	}
	return v, nil
}
