package extract

import (
	"regexp"
	"strings"

	"snipetrader/internal/domain"
	"snipetrader/internal/page"
)

// Symbol length bounds. Uppercase-run scanning requires 3+ chars to cut
// false positives; selector-scoped text may be as short as 2.
const (
	minSymbolLen    = 2
	minRunSymbolLen = 3
	maxSymbolLen    = 10
)

var (
	// descriptiveNameRe matches multi-word memecoin names followed by a
	// type word, e.g. "BNB Inconvenience Coin" or "Frogling PumpFun".
	descriptiveNameRe = regexp.MustCompile(`\b((?:[A-Z][A-Za-z]*\s+){1,4})(?:PumpFun|Coin|Token)\b`)

	// mcNameRe matches a name directly ahead of a market-cap figure,
	// e.g. "DOGWIF MC$21.1K".
	mcNameRe = regexp.MustCompile(`\b([A-Z][A-Za-z]{1,9})\s*MC\$`)

	// upperRunRe matches contiguous uppercase runs that look like
	// tickers.
	upperRunRe = regexp.MustCompile(`\b[A-Z]{3,10}\b`)

	alphaOnlyRe = regexp.MustCompile(`^[A-Za-z]+$`)
)

// symbolClassMarkers are the [class*="..."] probes for ticker-bearing
// elements, tried after text patterns.
var symbolClassMarkers = []string{"symbol", "token", "name", "pair", "title"}

// symbolPass is one strategy for resolving a ticker from a fragment.
// Passes run in priority order; the first non-empty result wins.
type symbolPass func(root *page.Node) string

// symbolPasses is the fixed resolution order: descriptive name
// reduction, uppercase runs, then selector probing.
var symbolPasses = []symbolPass{
	symbolFromDescriptiveName,
	symbolFromUppercaseRun,
	symbolFromSelectors,
}

// resolveSymbol runs the pass cascade. Returns domain.SymbolUnknown when
// nothing validates.
func resolveSymbol(root *page.Node) string {
	for _, pass := range symbolPasses {
		if sym := pass(root); sym != "" {
			return sym
		}
	}
	return domain.SymbolUnknown
}

// symbolFromDescriptiveName reduces "<Words> Coin|Token|PumpFun" and
// "<Word> MC$" names to a short ticker: an all-caps word from the name
// if present, otherwise the leading word uppercased, otherwise an
// acronym of the initials.
func symbolFromDescriptiveName(root *page.Node) string {
	text := root.Text()

	if m := descriptiveNameRe.FindStringSubmatch(text); m != nil {
		if sym := reduceName(strings.Fields(m[1])); sym != "" {
			return sym
		}
	}
	if m := mcNameRe.FindStringSubmatch(text); m != nil {
		if sym := reduceName([]string{m[1]}); sym != "" {
			return sym
		}
	}
	return ""
}

// reduceName turns descriptive name words into a ticker candidate.
func reduceName(words []string) string {
	// An embedded all-caps word is the ticker itself.
	for _, w := range words {
		if w == strings.ToUpper(w) && validSymbol(w, minSymbolLen) {
			return w
		}
	}
	if len(words) == 1 {
		sym := strings.ToUpper(words[0])
		if validSymbol(sym, minSymbolLen) {
			return sym
		}
		return ""
	}
	// Acronym of initials for multi-word names.
	var b strings.Builder
	for _, w := range words {
		b.WriteByte(w[0])
	}
	sym := strings.ToUpper(b.String())
	if validSymbol(sym, minSymbolLen) {
		return sym
	}
	return ""
}

// symbolFromUppercaseRun returns the first contiguous uppercase run of
// 3-10 letters that is not UI chrome.
func symbolFromUppercaseRun(root *page.Node) string {
	for _, run := range upperRunRe.FindAllString(root.Text(), -1) {
		if validSymbol(run, minRunSymbolLen) {
			return run
		}
	}
	return ""
}

// symbolFromSelectors probes ticker-bearing elements by class marker and
// heading tags, accepting purely alphabetic text of 2-10 chars.
func symbolFromSelectors(root *page.Node) string {
	var found string
	root.Walk(func(el *page.Node) bool {
		if !symbolElement(el) {
			return true
		}
		text := strings.TrimSpace(el.OwnText())
		if alphaOnlyRe.MatchString(text) && validSymbol(strings.ToUpper(text), minSymbolLen) {
			found = strings.ToUpper(text)
			return false
		}
		return true
	})
	return found
}

func symbolElement(el *page.Node) bool {
	switch el.Tag() {
	case "h1", "h2", "h3", "h4", "h5", "h6", "strong", "b":
		return true
	}
	for _, marker := range symbolClassMarkers {
		if el.ClassContains(marker) {
			return true
		}
	}
	return false
}

func validSymbol(s string, minLen int) bool {
	if len(s) < minLen || len(s) > maxSymbolLen {
		return false
	}
	return !isStopword(s)
}
