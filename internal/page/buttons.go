package page

import "strings"

// Row container markers, matching the selector list the injection logic
// probes for ([class*="row"], [class*="item"], ... , tr).
var rowClassMarkers = []string{"row", "item", "card", "pair", "token"}

// IsBuyControl reports whether a button looks like an instant-buy
// control: a lightning/buy/trade class, or short SOL/Buy/Trade text.
func IsBuyControl(n *Node) bool {
	if n.Tag() != "button" {
		return false
	}
	for _, marker := range []string{"instant", "buy", "trade", "lightning"} {
		if n.ClassContains(marker) {
			return true
		}
	}
	for _, el := range n.Elements("svg") {
		if el.ClassContains("lightning") || el.ClassContains("bolt") {
			return true
		}
	}
	text := n.Text()
	switch {
	case strings.Contains(text, "SOL") && len(text) < 10:
		return true
	case strings.Contains(text, "Buy") && len(text) < 20:
		return true
	case strings.Contains(text, "Trade") && len(text) < 20:
		return true
	}
	return false
}

// TokenRow returns the closest row-like ancestor of a buy control, or
// the control's parent when no row container is recognizable.
func TokenRow(n *Node) *Node {
	row := n.Closest(func(el *Node) bool {
		if el.Tag() == "tr" {
			return true
		}
		for _, marker := range rowClassMarkers {
			if el.ClassContains(marker) {
				return true
			}
		}
		return false
	})
	if row != nil {
		return row
	}
	if p := n.Parent(); p != nil {
		return p
	}
	return n
}

// FindBuyControls returns one buy control per token row, in document
// order. When a row holds several candidates, buttons with SOL text win
// over Buy/Trade text, mirroring the injection ranking.
func FindBuyControls(s *Snapshot) []*Node {
	var rows []*Node
	best := make(map[*Node]*Node) // keyed by row handle in rows

	findRow := func(row *Node) *Node {
		for _, r := range rows {
			if r.Same(row) {
				return r
			}
		}
		return nil
	}

	for _, btn := range s.Root().Elements("button") {
		if !IsBuyControl(btn) {
			continue
		}
		row := TokenRow(btn)
		key := findRow(row)
		if key == nil {
			rows = append(rows, row)
			best[row] = btn
			continue
		}
		if buyControlRank(btn) < buyControlRank(best[key]) {
			best[key] = btn
		}
	}

	out := make([]*Node, 0, len(rows))
	for _, row := range rows {
		out = append(out, best[row])
	}
	return out
}

func buyControlRank(n *Node) int {
	text := n.Text()
	switch {
	case strings.Contains(text, "SOL"):
		return 0
	case strings.Contains(text, "Buy"), strings.Contains(text, "Trade"):
		return 1
	default:
		return 2
	}
}

// IsCopyButton reports whether a button looks like a copy-to-clipboard
// affordance: icon-only (no text but an element child), or copy/icon
// class or aria-label.
func IsCopyButton(n *Node) bool {
	if n.Tag() != "button" {
		return false
	}
	if n.ClassContains("copy") || n.ClassContains("icon") {
		return true
	}
	if strings.Contains(strings.ToLower(n.Attr("aria-label")), "copy") {
		return true
	}
	return n.Text() == "" && n.HasElementChild()
}

// FindCopyButtons returns candidate copy buttons in the subtree, in
// document order.
func FindCopyButtons(root *Node) []*Node {
	var out []*Node
	for _, btn := range root.Elements("button") {
		if IsCopyButton(btn) {
			out = append(out, btn)
		}
	}
	return out
}
