package digitalll

import "github.com/charmbracelet/log"

// TimeTagShifter corrects a per-receiver integer-second offset in the
// wall-clock time reported by the hardware, re-emitting rx_time, rx_rate
// and rx_freq tags aligned to the outgoing sample offsets. It is the Go
// counterpart of digital_ll_time_tag_shifter. T is the sample item type.
type TimeTagShifter[T any] struct {
	isReceiveSide bool

	integerTimeOffset int64
	emitTag           bool

	dropping    bool
	dropCount   uint64
	offsetShift uint64

	streamPos uint64 // absolute input offset consumed before this call

	haveRef   bool
	refOffset uint64
	refTime   Timestamp
	refRate   float64
	refFreq   float64
	refSrcID  string

	logger *log.Logger
}

// NewTimeTagShifter builds a TimeTagShifter. isReceiveSide selects the
// receive-side behavior (drop-one-second on negative offset, tag
// generation); the transmit side neither drops samples nor generates
// tags. On both sides, forwarded rx_time and tx_time tag values are
// shifted (see shiftedTags).
func NewTimeTagShifter[T any](isReceiveSide bool) *TimeTagShifter[T] {
	return &TimeTagShifter[T]{
		isReceiveSide: isReceiveSide,
		logger:        componentLogger("TimeTagShifter"),
	}
}

// HandleTimeShift is the time_tag_shift message port: receiving a signed
// integer number of seconds sets the offset and raises the emit-tag
// flag; on the receive side, a negative new offset enters the
// drop-one-second state.
func (s *TimeTagShifter[T]) HandleTimeShift(seconds int64) {
	s.integerTimeOffset = seconds
	s.emitTag = true

	if s.isReceiveSide && seconds < 0 {
		s.logger.Warn("negative time offset requested, dropping one second of samples")
		s.dropping = true
		s.dropCount = 0
	}
}

// Work implements StreamOperator.
func (s *TimeTagShifter[T]) Work(in []T, out []T, inTags []StreamTag) (WorkResult, []StreamTag) {
	streamStart := s.streamPos
	s.ingestReference(inTags)

	var samplesMade, samplesConsumed int
	samplesToSkip := 0

	switch {
	case s.dropping && int(s.refRate) <= 0:
		// No known rate: the drop can never complete (spec.md §4.C
		// failure semantics) — fall back to normal copy behavior.
		s.dropping = false
		fallthrough
	case !s.dropping:
		samplesConsumed = min(len(in), len(out))
		samplesMade = samplesConsumed
		copy(out[:samplesMade], in[:samplesConsumed])
	default:
		rate := uint64(s.refRate)
		switch {
		case s.dropCount+uint64(len(in)) < rate:
			samplesConsumed = len(in)
			s.dropCount += uint64(samplesConsumed)
		case s.dropCount+uint64(len(in)) == rate:
			samplesConsumed = len(in)
			s.dropCount += uint64(samplesConsumed)
			s.dropping = false
			s.offsetShift = rate
		default:
			samplesToSkip = int(rate - s.dropCount)
			samplesMade = min(len(in)-samplesToSkip, len(out))
			samplesConsumed = samplesToSkip + samplesMade
			copy(out[:samplesMade], in[samplesToSkip:samplesToSkip+samplesMade])
			s.dropCount += uint64(samplesToSkip)
			s.dropping = false
			s.offsetShift = rate
		}
	}

	var emitted []StreamTag
	if s.isReceiveSide && s.emitTag && s.haveRef {
		var elapsed float64
		if s.refRate > 0 {
			elapsed = float64(int64(streamStart)-int64(s.refOffset)) / s.refRate
		}
		ts := s.refTime.AddSeconds(elapsed).AddSeconds(float64(s.integerTimeOffset))
		if !s.dropping {
			outOffset := streamStart - s.offsetShift
			emitted = append(emitted,
				StreamTag{Offset: outOffset, Key: TagRxTime, Value: ts, SrcID: s.refSrcID},
				StreamTag{Offset: outOffset, Key: TagRxRate, Value: s.refRate, SrcID: s.refSrcID},
				StreamTag{Offset: outOffset, Key: TagRxFreq, Value: s.refFreq, SrcID: s.refSrcID},
			)
			s.emitTag = false
		}
	}

	emitted = append(emitted, s.shiftedTags(inTags)...)
	SortTagsByOffset(emitted)

	s.streamPos += uint64(samplesConsumed)

	return WorkResult{Produced: samplesMade, Consumed: samplesConsumed}, emitted
}

// ingestReference records the latest rx_time/rx_rate/rx_freq reference
// seen on the input, used to compute the current GPS time when the
// emit-tag flag is raised.
func (s *TimeTagShifter[T]) ingestReference(tags []StreamTag) {
	for _, tag := range tags {
		switch tag.Key {
		case TagRxTime:
			if ts, ok := tag.RxTimeValue(); ok {
				s.refTime = ts
				s.refOffset = tag.Offset
				s.refSrcID = tag.SrcID
				s.haveRef = true
			}
		case TagRxRate:
			if rate, ok := tag.RxRateValue(); ok {
				s.refRate = rate
			}
		case TagRxFreq:
			if freq, ok := tag.Value.(float64); ok {
				s.refFreq = freq
			}
		}
	}
}

// shiftedTags forwards every input tag with its offset reduced by
// offsetShift; rx_time/tx_time values are themselves shifted by
// ±integerTimeOffset depending on direction.
func (s *TimeTagShifter[T]) shiftedTags(tags []StreamTag) []StreamTag {
	out := make([]StreamTag, 0, len(tags))
	for _, tag := range tags {
		shifted := tag
		shifted.Offset = tag.Offset - s.offsetShift
		switch tag.Key {
		case TagRxTime:
			if ts, ok := tag.RxTimeValue(); ok {
				shifted.Value = ts.AddSeconds(float64(s.integerTimeOffset))
			}
		case TagTxTime:
			if ts, ok := tag.RxTimeValue(); ok {
				shifted.Value = ts.SubSeconds(float64(s.integerTimeOffset))
			}
		}
		out = append(out, shifted)
	}
	return out
}
