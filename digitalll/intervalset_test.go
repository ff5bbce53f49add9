package digitalll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalSetMergesAdjacentAndOverlapping(t *testing.T) {
	s := NewIntervalSet()
	s.Add(0, 10)
	s.Add(10, 20) // adjacent, merges
	s.Add(15, 25) // overlaps, merges

	ivs := s.Intervals()
	assert.Len(t, ivs, 1)
	assert.Equal(t, interval{0, 25}, ivs[0])
}

func TestIntervalSetKeepsDisjointSeparate(t *testing.T) {
	s := NewIntervalSet()
	s.Add(0, 5)
	s.Add(10, 15)

	ivs := s.Intervals()
	assert.Len(t, ivs, 2)
	assert.Equal(t, interval{0, 5}, ivs[0])
	assert.Equal(t, interval{10, 15}, ivs[1])
}

func TestIntervalSetBoundsAndContains(t *testing.T) {
	s := NewIntervalSet()
	lo, hi, ok := s.Bounds()
	assert.False(t, ok)
	assert.Zero(t, lo)
	assert.Zero(t, hi)

	s.Add(5, 10)
	s.Add(20, 30)
	lo, hi, ok = s.Bounds()
	assert.True(t, ok)
	assert.Equal(t, 5.0, lo)
	assert.Equal(t, 30.0, hi)

	assert.True(t, s.Contains(7))
	assert.False(t, s.Contains(15))
	assert.False(t, s.Contains(30)) // half-open
}

func TestSeparateIntervalSetKeepsAdjacentDistinct(t *testing.T) {
	s := NewSeparateIntervalSet()
	s.Add(0, 10)
	s.Add(10, 20) // touches but doesn't merge

	ivs := s.Intervals()
	assert.Len(t, ivs, 2)
	assert.Equal(t, interval{0, 10}, ivs[0])
	assert.Equal(t, interval{10, 20}, ivs[1])
}

func TestSeparateIntervalSetMergesOverlap(t *testing.T) {
	s := NewSeparateIntervalSet()
	s.Add(0, 10)
	s.Add(5, 15) // genuinely overlaps, still merges

	ivs := s.Intervals()
	assert.Len(t, ivs, 1)
	assert.Equal(t, interval{0, 15}, ivs[0])
}

func TestSeparateIntervalSetFind(t *testing.T) {
	s := NewSeparateIntervalSet()
	s.Add(0, 10)
	s.Add(10, 20)

	iv, ok := s.Find(12)
	assert.True(t, ok)
	assert.Equal(t, interval{10, 20}, iv)

	_, ok = s.Find(25)
	assert.False(t, ok)
}

func TestIntersectSeparatePreservesSlotBoundaries(t *testing.T) {
	current := NewIntervalSet()
	current.Add(0, 100)

	slots := NewSeparateIntervalSet()
	slots.Add(0, 20)
	slots.Add(20, 40)
	slots.Add(60, 80)

	result := IntersectSeparate(current, slots)
	ivs := result.Intervals()

	require := assert.New(t)
	require.Len(ivs, 3)
	require.Equal(interval{0, 20}, ivs[0])
	require.Equal(interval{20, 40}, ivs[1])
	require.Equal(interval{60, 80}, ivs[2])
}

func TestIntersectSeparateTruncatesAtCurrentBoundary(t *testing.T) {
	current := NewIntervalSet()
	current.Add(10, 30)

	slots := NewSeparateIntervalSet()
	slots.Add(0, 20)
	slots.Add(20, 50)

	result := IntersectSeparate(current, slots)
	ivs := result.Intervals()

	require := assert.New(t)
	require.Len(ivs, 2)
	require.Equal(interval{10, 20}, ivs[0])
	require.Equal(interval{20, 30}, ivs[1])
}
