package digitalll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findTag(tags []StreamTag, key string) (StreamTag, bool) {
	for _, t := range tags {
		if t.Key == key {
			return t, true
		}
	}
	return StreamTag{}, false
}

func TestTimeTagShifterPassThroughWithoutShift(t *testing.T) {
	shifter := NewTimeTagShifter[float64](true)
	in := []float64{1, 2, 3, 4}
	out := make([]float64, 4)

	result, _ := shifter.Work(in, out, nil)
	assert.Equal(t, WorkResult{Produced: 4, Consumed: 4}, result)
	assert.Equal(t, in, out)
}

// TestTimeTagShifterShiftsReferenceTime mirrors spec.md's S4 scenario:
// rx_time=(100, 0.25) shifted by +5 seconds emits (105, 0.25) at offset 0.
func TestTimeTagShifterShiftsReferenceTime(t *testing.T) {
	shifter := NewTimeTagShifter[float64](true)
	shifter.HandleTimeShift(5)

	in := make([]float64, 10)
	out := make([]float64, 10)
	tags := []StreamTag{
		{Offset: 0, Key: TagRxTime, Value: NewTimestamp(100, 0.25)},
		{Offset: 0, Key: TagRxRate, Value: 1000.0},
	}

	result, emitted := shifter.Work(in, out, tags)
	require.Equal(t, WorkResult{Produced: 10, Consumed: 10}, result)

	tag, ok := findTag(emitted, TagRxTime)
	require.True(t, ok)
	ts, ok := tag.RxTimeValue()
	require.True(t, ok)
	assert.Equal(t, int64(105), ts.Int())
	assert.InDelta(t, 0.25, ts.Frac(), 1e-12)
}

func TestTimeTagShifterNoRateNeverDrops(t *testing.T) {
	shifter := NewTimeTagShifter[float64](true)
	shifter.HandleTimeShift(-1) // no rx_rate ever seen: refRate stays 0

	in := make([]float64, 20)
	out := make([]float64, 20)
	result, _ := shifter.Work(in, out, nil)

	// Falls back to normal copy behavior per spec.md §4.C failure semantics.
	assert.Equal(t, WorkResult{Produced: 20, Consumed: 20}, result)
	assert.False(t, shifter.dropping)
}

func TestTimeTagShifterDropsWholeSecondThenResumes(t *testing.T) {
	shifter := NewTimeTagShifter[float64](true)

	// Establish a known rate first.
	primeIn := make([]float64, 1)
	primeOut := make([]float64, 1)
	shifter.Work(primeIn, primeOut, []StreamTag{{Offset: 0, Key: TagRxRate, Value: 10.0}})

	shifter.HandleTimeShift(-1)
	assert.True(t, shifter.dropping)

	in := make([]float64, 15)
	out := make([]float64, 15)
	result, _ := shifter.Work(in, out, nil)

	// rate=10 samples dropped, 5 samples pass through.
	assert.Equal(t, WorkResult{Produced: 5, Consumed: 15}, result)
	assert.False(t, shifter.dropping)
	assert.Equal(t, uint64(10), shifter.offsetShift)
}

func TestTimeTagShifterDropSpansMultipleCalls(t *testing.T) {
	shifter := NewTimeTagShifter[float64](true)
	primeIn := make([]float64, 1)
	primeOut := make([]float64, 1)
	shifter.Work(primeIn, primeOut, []StreamTag{{Offset: 0, Key: TagRxRate, Value: 10.0}})

	shifter.HandleTimeShift(-1)

	in1 := make([]float64, 4)
	out1 := make([]float64, 4)
	result1, _ := shifter.Work(in1, out1, nil)
	assert.Equal(t, WorkResult{Produced: 0, Consumed: 4}, result1)
	assert.True(t, shifter.dropping)

	in2 := make([]float64, 10)
	out2 := make([]float64, 10)
	result2, _ := shifter.Work(in2, out2, nil)
	assert.Equal(t, WorkResult{Produced: 4, Consumed: 10}, result2)
	assert.False(t, shifter.dropping)
}
