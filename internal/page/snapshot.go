// Package page models serialized DOM fragments received from an in-page
// session. Aggregator markup is uncontrolled and changes frequently, so
// the model exposes only what the extraction heuristics need: text
// content, attributes, and structural probes.
package page

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeIDAttr is the attribute the in-page script stamps on interactive
// elements before serializing a fragment, so the service can address
// them in click commands.
const NodeIDAttr = "data-node-id"

// Snapshot is a parsed DOM fragment.
type Snapshot struct {
	root *html.Node
}

// Parse parses serialized markup into a Snapshot. Malformed markup does
// not fail; the html package repairs what it can, which is the right
// behavior for scraped third-party pages.
func Parse(markup string) (*Snapshot, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return &Snapshot{root: root}, nil
}

// Root returns the snapshot's root node.
func (s *Snapshot) Root() *Node {
	return &Node{n: s.root}
}

// Text returns the concatenated text of the whole snapshot.
func (s *Snapshot) Text() string {
	return s.Root().Text()
}

// Node wraps an html.Node with the accessors the extractor uses.
type Node struct {
	n *html.Node
}

// Tag returns the lowercase element name, or "" for non-elements.
func (n *Node) Tag() string {
	if n.n.Type != html.ElementNode {
		return ""
	}
	return n.n.Data
}

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// ID returns the stamped node identity used in click commands, or "".
func (n *Node) ID() string {
	return n.Attr(NodeIDAttr)
}

// Text returns the concatenated text content of the subtree, with
// adjacent text runs separated by single spaces and trimmed.
func (n *Node) Text() string {
	var parts []string
	var visit func(*html.Node)
	visit = func(h *html.Node) {
		if h.Type == html.TextNode {
			if t := strings.TrimSpace(h.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n.n)
	return strings.Join(parts, " ")
}

// OwnText returns only the node's direct text children, trimmed.
func (n *Node) OwnText() string {
	var parts []string
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

// Walk visits the node and every descendant element in document order.
// Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) {
	var visit func(*html.Node) bool
	visit = func(h *html.Node) bool {
		if h.Type == html.ElementNode {
			if !fn(&Node{n: h}) {
				return false
			}
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(n.n)
}

// Elements returns every descendant element (including the node itself
// when it is an element) whose tag is in tags, in document order. With
// no tags given, every element is returned.
func (n *Node) Elements(tags ...string) []*Node {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []*Node
	n.Walk(func(el *Node) bool {
		if len(want) == 0 || want[el.Tag()] {
			out = append(out, el)
		}
		return true
	})
	return out
}

// ClassContains reports whether the element's class attribute contains
// the given substring, matching the [class*="..."] selector form the
// original heuristics rely on.
func (n *Node) ClassContains(sub string) bool {
	return strings.Contains(strings.ToLower(n.Attr("class")), strings.ToLower(sub))
}

// HasElementChild reports whether the node has at least one element
// child (an icon-only button wraps an svg or span).
func (n *Node) HasElementChild() bool {
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// Parent returns the parent element, or nil at the top of the fragment.
func (n *Node) Parent() *Node {
	p := n.n.Parent
	for p != nil && p.Type != html.ElementNode {
		p = p.Parent
	}
	if p == nil {
		return nil
	}
	return &Node{n: p}
}

// Closest walks up the ancestor chain (starting at the node itself) and
// returns the first element satisfying pred, or nil.
func (n *Node) Closest(pred func(*Node) bool) *Node {
	for el := n; el != nil; el = el.Parent() {
		if el.Tag() != "" && pred(el) {
			return el
		}
	}
	return nil
}

// Same reports whether two handles refer to the same underlying node.
func (n *Node) Same(other *Node) bool {
	return other != nil && n.n == other.n
}

// EachAttr visits every attribute of the node.
func (n *Node) EachAttr(fn func(key, val string)) {
	for _, a := range n.n.Attr {
		fn(a.Key, a.Val)
	}
}
