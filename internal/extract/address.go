package extract

import (
	"context"
	"regexp"

	"snipetrader/internal/domain"
	"snipetrader/internal/page"
)

// CopyProber simulates a click on a copy affordance in the live page and
// reports any value the page wrote to the clipboard within a short wait
// window. It is the only way to obtain a full address when the page
// renders just the truncated form.
type CopyProber interface {
	// ProbeCopy clicks the node identified by nodeID and returns the
	// captured clipboard value. ok is false when nothing landed within
	// the window.
	ProbeCopy(ctx context.Context, nodeID string) (value string, ok bool)
}

var (
	truncatedInTextRe = regexp.MustCompile(`\b([A-Za-z0-9]{4})\.\.\.([A-Za-z0-9]{4})\b`)

	// hrefAddressRes extract addresses from explorer-style link targets.
	hrefAddressRes = []*regexp.Regexp{
		regexp.MustCompile(`address/([A-Za-z0-9]{32,44})`),
		regexp.MustCompile(`token/([A-Za-z0-9]{32,44})`),
		regexp.MustCompile(`contract/([A-Za-z0-9]{32,44})`),
		regexp.MustCompile(`/([A-Za-z0-9]{32,44})$`),
	}
)

// addressAttrs are element attributes checked for address values, in
// order.
var addressAttrs = []string{"data-address", "data-contract", "data-value"}

// addressResult carries the resolved address and whether it is a full,
// validated one.
type addressResult struct {
	address string
	full    bool
}

// resolveAddress runs the address pass cascade: clipboard probe via
// simulated copy click, attribute scan, full-address text scan, then
// truncated-form text scan. The prober may be nil (no live session).
func resolveAddress(ctx context.Context, root *page.Node, prober CopyProber) addressResult {
	if r, ok := addressFromCopyProbe(ctx, root, prober); ok {
		return r
	}
	if r, ok := addressFromAttributes(root); ok {
		return r
	}
	if r, ok := addressFromText(root); ok {
		return r
	}
	if r, ok := truncatedFromText(root); ok {
		return r
	}
	return addressResult{}
}

// addressFromCopyProbe clicks each icon-only/copy button in the subtree
// and accepts the first captured clipboard value that validates as a
// full address.
func addressFromCopyProbe(ctx context.Context, root *page.Node, prober CopyProber) (addressResult, bool) {
	if prober == nil {
		return addressResult{}, false
	}
	for _, btn := range page.FindCopyButtons(root) {
		id := btn.ID()
		if id == "" {
			continue
		}
		value, ok := prober.ProbeCopy(ctx, id)
		if ok && domain.IsFullAddress(value) {
			return addressResult{address: value, full: true}, true
		}
	}
	return addressResult{}, false
}

// addressFromAttributes scans data-* attributes and link targets for a
// full address.
func addressFromAttributes(root *page.Node) (addressResult, bool) {
	var out addressResult
	root.Walk(func(el *page.Node) bool {
		for _, attr := range addressAttrs {
			if v := el.Attr(attr); domain.IsFullAddress(v) {
				out = addressResult{address: v, full: true}
				return false
			}
		}
		if href := el.Attr("href"); href != "" {
			for _, re := range hrefAddressRes {
				if m := re.FindStringSubmatch(href); m != nil && domain.IsFullAddress(m[1]) {
					out = addressResult{address: m[1], full: true}
					return false
				}
			}
		}
		return true
	})
	return out, out.address != ""
}

// addressFromText scans visible text for a strictly valid full address.
func addressFromText(root *page.Node) (addressResult, bool) {
	for _, candidate := range domain.HarvestAddresses(root.Text()) {
		if domain.IsFullAddress(candidate) {
			return addressResult{address: candidate, full: true}, true
		}
	}
	return addressResult{}, false
}

// truncatedFromText returns a first4...last4 display form as-is; the
// reconciler upgrades it later.
func truncatedFromText(root *page.Node) (addressResult, bool) {
	if m := truncatedInTextRe.FindString(root.Text()); m != "" {
		return addressResult{address: m, full: false}, true
	}
	return addressResult{}, false
}
