package digitalll

import "math"

// Timestamp is a normalised (integer seconds, fractional seconds) GPS/wall
// clock time, following the convention used throughout the stream-tag time
// model: 0 <= frac_s < 1 for non-negative composite values, and the
// "ceiling" convention for negative ones (see Int() doc).
type Timestamp struct {
	intS  int64
	fracS float64
}

// NewTimestamp builds a normalised Timestamp from an integer-second count
// and a fractional remainder. The fractional part may be outside [0, 1)
// or negative; it is folded into intS during normalisation.
func NewTimestamp(intS int64, fracS float64) Timestamp {
	t := Timestamp{intS: intS, fracS: fracS}
	t.normalize()
	return t
}

// TimestampFromSeconds builds a Timestamp from a plain floating point
// second count, intended only for small interval arithmetic: precision is
// lost for values far from zero.
func TimestampFromSeconds(seconds float64) Timestamp {
	return NewTimestamp(0, seconds)
}

func (t *Timestamp) normalize() {
	if t.fracS < 0 {
		borrow := math.Ceil(t.fracS) - 1
		t.intS += int64(borrow)
		t.fracS -= borrow
	}
	if t.fracS >= 1 {
		carry := math.Floor(t.fracS)
		t.intS += int64(carry)
		t.fracS -= carry
	}
}

// Int returns the accessor form of the integer-second part. For
// non-negative composite values this is the true whole-second count. For
// negative composite values it returns the ceiling of the true value, so
// that Int()+Frac() reproduces the true value while Frac() stays
// non-positive — see the "negative fractional accessor" design note.
func (t Timestamp) Int() int64 {
	if t.intS <= -1 && t.fracS > 0 {
		return t.intS + 1
	}
	return t.intS
}

// Frac returns the fractional-second part paired with Int(): in [0, 1)
// for non-negative composites, and in (-1, 0] for negative ones.
func (t Timestamp) Frac() float64 {
	if t.intS <= -1 && t.fracS > 0 {
		return t.fracS - 1.0
	}
	return t.fracS
}

// Split returns (Int(), Frac()) together, the pair most wire formats
// (and the original UHD time_spec_t builder) want.
func (t Timestamp) Split() (int64, float64) {
	return t.Int(), t.Frac()
}

// Seconds converts the Timestamp to a plain float64. This is lossy for
// large integer-second counts; use only for bounded-range interval math.
func (t Timestamp) Seconds() float64 {
	return float64(t.intS) + t.fracS
}

// Add returns t + other.
func (t Timestamp) Add(other Timestamp) Timestamp {
	return NewTimestamp(t.intS+other.intS, t.fracS+other.fracS)
}

// Sub returns t - other.
func (t Timestamp) Sub(other Timestamp) Timestamp {
	return NewTimestamp(t.intS-other.intS, t.fracS-other.fracS)
}

// AddSeconds returns t + delta for a plain seconds delta.
func (t Timestamp) AddSeconds(delta float64) Timestamp {
	return NewTimestamp(t.intS, t.fracS+delta)
}

// SubSeconds returns t - delta for a plain seconds delta.
func (t Timestamp) SubSeconds(delta float64) Timestamp {
	return NewTimestamp(t.intS, t.fracS-delta)
}

// Equal reports whether two Timestamps carry the same normalised value.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.intS == other.intS && t.fracS == other.fracS
}

// Less implements the Timestamp total order.
func (t Timestamp) Less(other Timestamp) bool {
	if t.intS != other.intS {
		return t.intS < other.intS
	}
	return t.fracS < other.fracS
}

// LessEqual reports t <= other.
func (t Timestamp) LessEqual(other Timestamp) bool {
	return t.Equal(other) || t.Less(other)
}

// Greater reports t > other.
func (t Timestamp) Greater(other Timestamp) bool {
	return !t.LessEqual(other)
}

// GreaterEqual reports t >= other.
func (t Timestamp) GreaterEqual(other Timestamp) bool {
	return !t.Less(other)
}
