package digitalll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextTagManagerIgnoresUnwhitelistedKeys(t *testing.T) {
	m := NewContextTagManager([]string{"dig_chan"})
	assert.True(t, m.IsContextKey("dig_chan"))
	assert.False(t, m.IsContextKey("rx_time"))

	m.Add(StreamTag{Offset: 0, Key: "rx_time", Value: 1})
	assert.Empty(t, m.LatestAt(100))
}

func TestContextTagManagerLatestAt(t *testing.T) {
	m := NewContextTagManager([]string{"dig_chan"})
	m.Add(StreamTag{Offset: 0, Key: "dig_chan", Value: 0})
	m.Add(StreamTag{Offset: 100, Key: "dig_chan", Value: 1})
	m.Add(StreamTag{Offset: 200, Key: "dig_chan", Value: 2})

	got := m.LatestAt(150)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Value)

	// Exact match on the offset.
	got = m.LatestAt(200)
	assert.Equal(t, 2, got[0].Value)

	// The tags before offset 200 were pruned by the queries above.
	got = m.LatestAt(0)
	assert.Empty(t, got)
}

func TestContextTagManagerLatestAtBeforeFirstTag(t *testing.T) {
	m := NewContextTagManager([]string{"dig_chan"})
	m.Add(StreamTag{Offset: 50, Key: "dig_chan", Value: 0})

	assert.Empty(t, m.LatestAt(10))
}

func TestContextTagManagerOutOfOrderAddIgnored(t *testing.T) {
	m := NewContextTagManager([]string{"dig_chan"})
	m.Add(StreamTag{Offset: 100, Key: "dig_chan", Value: 1})
	m.Add(StreamTag{Offset: 50, Key: "dig_chan", Value: 2}) // ignored, out of order

	got := m.LatestAt(100)
	assert.Equal(t, 1, got[0].Value)
}

func TestContextTagManagerLatestInRangeCoincidentAndInterior(t *testing.T) {
	m := NewContextTagManager([]string{"dig_chan"})
	m.Add(StreamTag{Offset: 0, Key: "dig_chan", Value: 0})
	m.Add(StreamTag{Offset: 50, Key: "dig_chan", Value: 1})
	m.Add(StreamTag{Offset: 150, Key: "dig_chan", Value: 2})

	got := m.LatestInRange(40, 160)

	require := assert.New(t)
	require.Len(got, 3)
	require.Equal(uint64(40), got[0].Offset)
	require.Equal(0, got[0].Value) // coincident tag rewritten to start
	require.Equal(uint64(50), got[1].Offset)
	require.Equal(1, got[1].Value)
	require.Equal(uint64(150), got[2].Offset)
	require.Equal(2, got[2].Value)
}

func TestContextTagManagerLatestInRangePrunesOlderTags(t *testing.T) {
	m := NewContextTagManager([]string{"dig_chan"})
	m.Add(StreamTag{Offset: 0, Key: "dig_chan", Value: 0})
	m.Add(StreamTag{Offset: 50, Key: "dig_chan", Value: 1})

	_ = m.LatestInRange(60, 70)
	// Nothing past offset 50 yet, so LatestAt(50) should still find it
	// (the tag coincident with the range start is retained, not pruned).
	got := m.LatestAt(50)
	assert.Equal(t, 1, got[0].Value)
}
