package reconcile

import (
	"log"
	"strings"

	"snipetrader/internal/domain"
	"snipetrader/internal/page"
)

// Result is a reconciled address and the evidence that confirmed it.
type Result struct {
	// Address is the full contract address.
	Address string

	// Source is domain.SourceClipboard when the session clipboard
	// confirmed the address, domain.SourceDOMExtract when a page scan
	// did.
	Source string
}

// Reconciler resolves truncated display addresses against the session
// clipboard and the full page.
type Reconciler struct {
	clipboard *Clipboard
	logger    *log.Logger
}

// NewReconciler builds a Reconciler. clipboard may be nil when no page
// session is attached; resolution then relies on page scans alone.
func NewReconciler(clipboard *Clipboard, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{clipboard: clipboard, logger: logger}
}

// Resolve upgrades a truncated or missing address to a full one. The
// clipboard is authoritative: a clipboard value that validates as a
// full address is accepted outright, whether or not it resembles the
// truncation; copying is a deliberate act and the copied address is
// what the user meant. A clipboard value that is only address-shaped
// still counts when its head and tail match the truncation. Failing
// both, the whole page is scanned for address-shaped candidates and
// the first truncation match in document order wins. The page scan is
// deliberately loose about character sets; aggregator pages render
// addresses the strict per-chain formats would reject, and a head/tail
// match against the truncation is the real confirmation.
//
// An input that is already a full address passes through unchanged. An
// empty input resolves through the clipboard alone; with no fragment
// to match there is nothing for the page scan to confirm.
func (r *Reconciler) Resolve(truncated string, snap *page.Snapshot) (Result, bool) {
	if domain.IsFullAddress(truncated) {
		return Result{Address: truncated, Source: domain.SourceDOMExtract}, true
	}
	isTruncated := domain.IsTruncatedAddress(truncated)
	if truncated != "" && !isTruncated {
		return Result{}, false
	}

	if r.clipboard != nil {
		if v, ok := r.clipboard.Current(); ok {
			v = strings.TrimSpace(v)
			switch {
			case domain.IsFullAddress(v):
				return Result{Address: v, Source: domain.SourceClipboard}, true
			case isTruncated && plausibleAddress(v) && domain.MatchesTruncation(v, truncated):
				return Result{Address: v, Source: domain.SourceClipboard}, true
			}
		}
	}

	if !isTruncated || snap == nil {
		return Result{}, false
	}
	if full, ok := scanPage(snap, truncated); ok {
		r.logger.Printf("reconcile: upgraded %s via page scan", truncated)
		return Result{Address: full, Source: domain.SourceDOMExtract}, true
	}
	return Result{}, false
}

// scanPage walks the page in document order, harvesting address-shaped
// candidates from attributes and text, and returns the first one whose
// head and tail match the truncation.
func scanPage(snap *page.Snapshot, truncated string) (string, bool) {
	var found string
	snap.Root().Walk(func(el *page.Node) bool {
		el.EachAttr(func(_, val string) {
			if found != "" {
				return
			}
			for _, c := range domain.HarvestAddresses(val) {
				if domain.MatchesTruncation(c, truncated) {
					found = c
					return
				}
			}
		})
		if found != "" {
			return false
		}
		for _, c := range domain.HarvestAddresses(el.OwnText()) {
			if domain.MatchesTruncation(c, truncated) {
				found = c
				return false
			}
		}
		return true
	})
	return found, found != ""
}

// plausibleAddress bounds clipboard values to address-shaped strings
// without applying the strict per-chain alphabets.
func plausibleAddress(v string) bool {
	if len(v) < 32 || len(v) > 64 {
		return false
	}
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
