package domain

import (
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
)

// AddressKind classifies a contract address by chain.
type AddressKind string

const (
	// AddressKindEthereum is a 0x-prefixed 20-byte hex address.
	AddressKindEthereum AddressKind = "ethereum"
	// AddressKindSolana is a base58-encoded account key, 32-44 chars.
	AddressKindSolana AddressKind = "solana"
	// AddressKindUnknown means the value matched neither format.
	AddressKindUnknown AddressKind = "unknown"
)

// TruncationMarker joins the head and tail of a shortened address as
// rendered by aggregator UIs ("Ck5D...BAGS").
const TruncationMarker = "..."

var (
	ethAddressRe   = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	solAddressRe   = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	truncAddressRe = regexp.MustCompile(`^([A-Za-z0-9]{4})\.\.\.([A-Za-z0-9]{4})$`)

	// harvestAddressRe is deliberately looser than the per-chain formats:
	// aggregator pages render candidate strings that only resolve once
	// matched against a truncated fragment, so the page-wide scan must not
	// pre-filter on the strict base58 alphabet.
	harvestAddressRe = regexp.MustCompile(`\b[A-Za-z0-9]{32,44}\b`)
)

// ClassifyAddress returns the chain an address belongs to.
// Truncated and malformed values classify as unknown.
func ClassifyAddress(address string) AddressKind {
	switch {
	case ethAddressRe.MatchString(address):
		return AddressKindEthereum
	case solAddressRe.MatchString(address) && decodableBase58(address):
		return AddressKindSolana
	default:
		return AddressKindUnknown
	}
}

// IsFullAddress reports whether the value is a complete, resolvable
// contract address on a supported chain.
func IsFullAddress(address string) bool {
	return ClassifyAddress(address) != AddressKindUnknown
}

// IsTruncatedAddress reports whether the value is a shortened
// first4...last4 display form.
func IsTruncatedAddress(address string) bool {
	return strings.Contains(address, TruncationMarker)
}

// SplitTruncated returns the head and tail fragments of a truncated
// address. ok is false when the value is not in first4...last4 form.
func SplitTruncated(address string) (head, tail string, ok bool) {
	m := truncAddressRe.FindStringSubmatch(address)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// MatchesTruncation reports whether a full address could be the origin
// of the given truncated display form. The head must be a prefix. The
// tail is matched anywhere after the head rather than strictly at the
// end: harvested candidates often carry trailing page text fused onto
// the address, so a terminal-only tail check misses real matches.
func MatchesTruncation(full, truncated string) bool {
	head, tail, ok := SplitTruncated(truncated)
	if !ok {
		return false
	}
	if !strings.HasPrefix(full, head) {
		return false
	}
	return strings.Contains(full[len(head):], tail)
}

// HarvestAddresses returns every address-shaped substring in text, in
// order of appearance. Candidates are length-bounded only; callers decide
// how strictly to validate them.
func HarvestAddresses(text string) []string {
	return harvestAddressRe.FindAllString(text, -1)
}

// decodableBase58 verifies the value is well-formed base58. The alphabet
// regex already excludes 0/O/I/l; decoding guards against future drift
// between the regex and the encoding.
func decodableBase58(address string) bool {
	_, err := base58.Decode(address)
	return err == nil
}
