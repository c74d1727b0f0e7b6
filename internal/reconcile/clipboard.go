// Package reconcile upgrades truncated first4...last4 contract
// addresses to full ones, using the session clipboard as the
// authoritative source and falling back to a page-wide candidate scan.
package reconcile

import (
	"sync"
	"time"
)

// Clipboard records clipboard writes observed in a page session. The
// page script reports every write it sees; the latest value is kept for
// the lifetime of the session and consulted whenever a truncated
// address needs resolving.
type Clipboard struct {
	mu    sync.RWMutex
	value string
	at    time.Time
}

// NewClipboard returns an empty observer.
func NewClipboard() *Clipboard {
	return &Clipboard{}
}

// Observe records a clipboard write.
func (c *Clipboard) Observe(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.at = time.Now()
}

// Current returns the most recent observed value. ok is false when
// nothing has been observed yet.
func (c *Clipboard) Current() (value string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.value != ""
}

// ObservedAt returns when the current value was captured.
func (c *Clipboard) ObservedAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.at, c.value != ""
}

// Clear drops the stored value, for session teardown.
func (c *Clipboard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = ""
	c.at = time.Time{}
}
