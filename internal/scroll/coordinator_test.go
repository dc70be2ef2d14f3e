// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package scroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeometry(t *testing.T) {
	g := Geometry{Offset: 10, ViewportHeight: 20, ContentHeight: 50}
	assert.Equal(t, 30, g.MaxOffset())
	assert.Equal(t, 20, g.DistanceFromBottom())
	assert.False(t, g.NearBottom(4))

	short := Geometry{Offset: 0, ViewportHeight: 20, ContentHeight: 5}
	assert.Equal(t, 0, short.MaxOffset())
	assert.Equal(t, 0, short.DistanceFromBottom())
	assert.True(t, short.NearBottom(1))
}

func TestNew_DefaultThreshold(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultThreshold, c.Threshold())
	assert.True(t, c.AtBottom())
	assert.False(t, c.Pending())
}

func TestOnMutation_NearBottomFollows(t *testing.T) {
	c := New(4)
	// 3 rows below the fold is still near the bottom.
	d := c.OnMutation(Geometry{Offset: 27, ViewportHeight: 20, ContentHeight: 50})
	assert.Equal(t, Follow, d)
	assert.False(t, c.Pending())
	assert.False(t, c.ShowIndicator())
}

func TestOnMutation_AwayFromBottomHolds(t *testing.T) {
	c := New(4)
	d := c.OnMutation(Geometry{Offset: 0, ViewportHeight: 20, ContentHeight: 50})
	assert.Equal(t, Hold, d)
	assert.True(t, c.Pending())
	assert.True(t, c.ShowIndicator())

	c.ScrollToBottom()
	assert.False(t, c.Pending())
	assert.True(t, c.AtBottom())
	assert.False(t, c.ShowIndicator())
}

func TestOnMutation_ExactThresholdHolds(t *testing.T) {
	c := New(4)
	d := c.OnMutation(Geometry{Offset: 26, ViewportHeight: 20, ContentHeight: 50})
	assert.Equal(t, Hold, d)
}

func TestOnScroll(t *testing.T) {
	c := New(4)
	c.OnMutation(Geometry{Offset: 0, ViewportHeight: 20, ContentHeight: 50})
	assert.True(t, c.ShowIndicator())

	// Scrolling but staying away keeps the indicator.
	c.OnScroll(Geometry{Offset: 10, ViewportHeight: 20, ContentHeight: 50})
	assert.False(t, c.AtBottom())
	assert.True(t, c.ShowIndicator())

	// Scrolling back down clears it.
	c.OnScroll(Geometry{Offset: 30, ViewportHeight: 20, ContentHeight: 50})
	assert.True(t, c.AtBottom())
	assert.False(t, c.Pending())
}

func TestOnScroll_IndependentOfMutations(t *testing.T) {
	c := New(4)
	c.OnScroll(Geometry{Offset: 0, ViewportHeight: 20, ContentHeight: 50})
	assert.False(t, c.AtBottom())
	assert.False(t, c.Pending())
	assert.False(t, c.ShowIndicator())
}
