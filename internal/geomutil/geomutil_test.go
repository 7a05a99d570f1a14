package geomutil

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestEndpoints(t *testing.T) {
	ls := orb.LineString{{0, 0}, {5, 0}, {10, 3}}

	assert.Equal(t, orb.Point{0, 0}, Begin(ls))
	assert.Equal(t, orb.Point{10, 3}, End(ls))
}

func TestSamePoint(t *testing.T) {
	assert.True(t, SamePoint(orb.Point{1, 1}, orb.Point{1, 1}, 0.001))
	assert.True(t, SamePoint(orb.Point{1, 1}, orb.Point{1.0005, 1}, 0.001))
	assert.False(t, SamePoint(orb.Point{1, 1}, orb.Point{1.1, 1}, 0.001))
}

func TestTouches(t *testing.T) {
	a := orb.LineString{{0, 0}, {10, 0}}

	t.Run("shared endpoint", func(t *testing.T) {
		b := orb.LineString{{10, 0}, {20, 0}}
		assert.True(t, Touches(a, b, 0.001))
	})

	t.Run("endpoint on interior", func(t *testing.T) {
		b := orb.LineString{{5, 0}, {5, 10}}
		assert.True(t, Touches(a, b, 0.001))
	})

	t.Run("disjoint", func(t *testing.T) {
		b := orb.LineString{{20, 20}, {30, 20}}
		assert.False(t, Touches(a, b, 0.001))
	})

	t.Run("interior crossing without endpoint contact", func(t *testing.T) {
		b := orb.LineString{{5, -10}, {5, 10}}
		assert.False(t, Touches(a, b, 0.001))
	})
}

func TestBufferOverlapArea(t *testing.T) {
	straight := orb.LineString{{0, 0}, {10, 0}}

	t.Run("collinear continuation has zero overlap", func(t *testing.T) {
		next := orb.LineString{{10, 0}, {20, 0}}
		assert.Zero(t, BufferOverlapArea(straight, next, 1))
	})

	t.Run("perpendicular mid-extent crossing is a full square", func(t *testing.T) {
		crossing := orb.LineString{{5, -10}, {5, 10}}
		// Two buffers of width 2 crossing at right angles.
		assert.InDelta(t, 4.0, BufferOverlapArea(straight, crossing, 1), 1e-9)
	})

	t.Run("diverging branch sits between continuation and crossing", func(t *testing.T) {
		branch := orb.LineString{{10, 0}, {18, 6}}
		area := BufferOverlapArea(straight, branch, 1)
		assert.Greater(t, area, 0.0)
		assert.Less(t, area, 4.0)
	})

	t.Run("straighter continuation overlaps less than sharper branch", func(t *testing.T) {
		shallow := orb.LineString{{10, 0}, {20, 1}}
		sharp := orb.LineString{{10, 0}, {15, 8}}
		assert.Less(t,
			BufferOverlapArea(straight, shallow, 1),
			BufferOverlapArea(straight, sharp, 1))
	})

	t.Run("symmetric in its arguments", func(t *testing.T) {
		branch := orb.LineString{{10, 0}, {18, 6}}
		assert.InDelta(t,
			BufferOverlapArea(straight, branch, 1),
			BufferOverlapArea(branch, straight, 1), 1e-9)
	})
}
