// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scroll decides whether the transcript viewport follows new content.
//
// The Coordinator is a pure function of viewport geometry. It never counts
// messages: on every transcript mutation the caller passes the geometry as it
// was immediately before the mutation rendered, and the Coordinator answers
// whether to jump to the new bottom or to raise the "new messages" indicator.
package scroll

// DefaultThreshold is the proximity to the bottom, in rows, that still
// counts as "at the bottom".
const DefaultThreshold = 4

// =============================================================================
// GEOMETRY
// =============================================================================

// Geometry describes the scrollable region in rows.
type Geometry struct {
	Offset         int // first visible row
	ViewportHeight int // visible rows
	ContentHeight  int // total rendered rows
}

// MaxOffset returns the offset that shows the last row at the bottom edge.
func (g Geometry) MaxOffset() int {
	if g.ContentHeight <= g.ViewportHeight {
		return 0
	}
	return g.ContentHeight - g.ViewportHeight
}

// DistanceFromBottom returns how many rows lie below the visible region.
func (g Geometry) DistanceFromBottom() int {
	d := g.ContentHeight - g.Offset - g.ViewportHeight
	if d < 0 {
		return 0
	}
	return d
}

// NearBottom reports whether the region is within threshold rows of the bottom.
func (g Geometry) NearBottom(threshold int) bool {
	return g.DistanceFromBottom() < threshold
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Decision is the outcome of a transcript mutation.
type Decision int

const (
	// Hold keeps the current offset and marks new content pending.
	Hold Decision = iota
	// Follow scrolls to the new bottom.
	Follow
)

func (d Decision) String() string {
	if d == Follow {
		return "follow"
	}
	return "hold"
}

// Coordinator tracks the "at bottom" and "new content pending" flags.
// It is driven from the UI event loop and is not safe for concurrent use.
type Coordinator struct {
	threshold int
	atBottom  bool
	pending   bool
}

// New creates a Coordinator. A non-positive threshold uses DefaultThreshold.
func New(threshold int) *Coordinator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Coordinator{threshold: threshold, atBottom: true}
}

// Threshold returns the proximity threshold in rows.
func (c *Coordinator) Threshold() int {
	return c.threshold
}

// OnMutation evaluates a transcript change against the geometry from just
// before the change rendered.
func (c *Coordinator) OnMutation(before Geometry) Decision {
	if before.NearBottom(c.threshold) {
		c.atBottom = true
		c.pending = false
		return Follow
	}
	c.atBottom = false
	c.pending = true
	return Hold
}

// OnScroll updates the "at bottom" flag after the viewer moved.
// Reaching the bottom clears the pending indicator.
func (c *Coordinator) OnScroll(now Geometry) {
	if now.NearBottom(c.threshold) {
		c.atBottom = true
		c.pending = false
		return
	}
	c.atBottom = false
}

// ScrollToBottom records a jump to the bottom, by the user or programmatically.
func (c *Coordinator) ScrollToBottom() {
	c.atBottom = true
	c.pending = false
}

// AtBottom reports whether the viewer is near the bottom.
func (c *Coordinator) AtBottom() bool {
	return c.atBottom
}

// Pending reports whether new content arrived while the viewer was away.
func (c *Coordinator) Pending() bool {
	return c.pending
}

// ShowIndicator reports whether the "new messages" affordance is visible.
func (c *Coordinator) ShowIndicator() bool {
	return c.pending && !c.atBottom
}
