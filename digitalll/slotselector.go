package digitalll

import (
	"math"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// tagTuple is the (offset, Timestamp, rate) reference used to convert
// between sample offsets and wall-clock times within one region of the
// stream, matching digital_ll_slot_selector's boost::tuple<uint64_t,
// digital_ll_timestamp, double>.
type tagTuple struct {
	offset uint64
	ts     Timestamp
	rate   float64
}

// SlotSelectorConfig is SlotSelector's construction-time configuration,
// matching spec.md §6's option list for the block.
type SlotSelectorConfig struct {
	FrameLen    float64
	SlotLens    []float64
	SlotOffsets []float64
	FrameT0     Timestamp
	StreamT0    Timestamp
	SampleRate  float64
	ContextKeys []string
}

// SlotSelector cuts scheduled time intervals out of a continuous,
// timestamped sample stream: it is the Go counterpart of
// digital_ll_slot_selector. T is the sample item type (e.g. complex64).
type SlotSelector[T any] struct {
	mu      sync.Mutex
	pending scheduleQueue

	schedule    Schedule
	haveActive  bool
	tagManager  *ContextTagManager
	refGPS      Timestamp
	refSample   uint64
	refRate     float64
	lastTagTime Timestamp
	haveLastTag bool

	streamOffset uint64 // R: absolute input offset consumed so far

	logger *log.Logger
}

// NewSlotSelector builds a SlotSelector. An initial schedule is taken
// from cfg directly (as if submitted and already active), since the
// original constructor accepts frame_len/slot_lens/slot_offsets/frame_t0
// up front rather than requiring a first SetSchedule call.
func NewSlotSelector[T any](cfg SlotSelectorConfig) (*SlotSelector[T], error) {
	if cfg.SampleRate <= 0 {
		return nil, newConfigError("SlotSelector", "sample_rate", "must be > 0")
	}
	sched, err := NewSchedule(cfg.FrameLen, cfg.SlotLens, cfg.SlotOffsets, cfg.FrameT0)
	if err != nil {
		return nil, err
	}
	return &SlotSelector[T]{
		schedule:    sched,
		haveActive:  true,
		tagManager:  NewContextTagManager(cfg.ContextKeys),
		refGPS:      cfg.StreamT0,
		refSample:   0,
		refRate:     cfg.SampleRate,
		lastTagTime: cfg.StreamT0,
		logger:      componentLogger("SlotSelector"),
	}, nil
}

// SetSchedule thread-safely queues a new schedule to take effect the
// first work call whose current-blocks window crosses frameT0.
func (s *SlotSelector[T]) SetSchedule(frameLen float64, slotLens, slotOffsets []float64, frameT0 Timestamp) error {
	sched, err := NewSchedule(frameLen, slotLens, slotOffsets, frameT0)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pending.push(sched)
	s.mu.Unlock()
	return nil
}

func relativeTime(tup tagTuple, sample uint64, ref Timestamp) float64 {
	return tup.ts.Sub(ref).Seconds() + float64(int64(sample)-int64(tup.offset))/tup.rate
}

// buildTagTuples merges the (deduplicated) rx_time/rx_rate tags observed
// this call into a sorted []tagTuple, prepending a synthetic entry
// carrying the saved reference when no tag coincides with windowStart.
func (s *SlotSelector[T]) buildTagTuples(rxTime, rxRate []StreamTag, windowStart uint64) []tagTuple {
	var tuples []tagTuple
	currentRate := s.refRate
	rateIdx := 0
	for _, tt := range rxTime {
		for rateIdx < len(rxRate) && rxRate[rateIdx].Offset <= tt.Offset {
			if rate, ok := rxRate[rateIdx].RxRateValue(); ok {
				currentRate = rate
			}
			rateIdx++
		}
		ts, ok := tt.RxTimeValue()
		if !ok {
			continue
		}
		tuples = append(tuples, tagTuple{offset: tt.Offset, ts: ts, rate: currentRate})
	}
	if len(tuples) == 0 || tuples[0].offset > windowStart {
		synthetic := tagTuple{offset: s.refSample, ts: s.refGPS, rate: s.refRate}
		tuples = append([]tagTuple{synthetic}, tuples...)
	}
	return tuples
}

// Work implements StreamOperator.
func (s *SlotSelector[T]) Work(in []T, out []T, inTags []StreamTag) (WorkResult, []StreamTag) {
	R := s.streamOffset
	N := uint64(len(in))

	var rxTime, rxRate, other []StreamTag
	for _, tg := range inTags {
		switch tg.Key {
		case TagRxTime:
			rxTime = append(rxTime, tg)
		case TagRxRate:
			rxRate = append(rxRate, tg)
		default:
			if s.tagManager.IsContextKey(tg.Key) {
				s.tagManager.Add(tg)
			} else {
				other = append(other, tg)
			}
		}
	}
	rxTime = DedupTagsByOffset(rxTime)
	rxRate = DedupTagsByOffset(rxRate)

	tuples := s.buildTagTuples(rxTime, rxRate, R)
	tupleTimes := make([]float64, len(tuples))
	for i, t := range tuples {
		tupleTimes[i] = t.ts.Sub(s.refGPS).Seconds()
	}

	// current_blocks: the set of timestamps this call is authoritative over.
	currentBlocks := NewIntervalSet()
	windowEnd := R + N
	for i, tup := range tuples {
		regionStart := tup.offset
		if regionStart < R {
			regionStart = R
		}
		regionEnd := windowEnd
		if i+1 < len(tuples) && tuples[i+1].offset < regionEnd {
			regionEnd = tuples[i+1].offset
		}
		if regionEnd <= regionStart {
			continue
		}
		lo := relativeTime(tup, regionStart, s.refGPS)
		hi := relativeTime(tup, regionEnd, s.refGPS)
		currentBlocks.Add(lo, hi)
	}

	lowerRel, upperRel, haveBlocks := currentBlocks.Bounds()

	// Schedule activation: latest pending schedule whose frame_t0 lies
	// before the upper bound of current_blocks becomes active.
	if haveBlocks {
		upperAbs := s.refGPS.AddSeconds(upperRel)
		s.mu.Lock()
		if sched, ok := s.pending.activate(upperAbs); ok {
			s.schedule = sched
			s.haveActive = true
		}
		s.mu.Unlock()
	}

	emitted, samplesConsumed, produced := s.produce(in, out, tuples, tupleTimes, currentBlocks, haveBlocks, lowerRel, upperRel, R, other)

	if len(tuples) > 0 {
		last := tuples[len(tuples)-1]
		s.refGPS = last.ts
		s.refSample = last.offset
		s.refRate = last.rate
	}
	s.streamOffset += samplesConsumed

	return WorkResult{Produced: produced, Consumed: int(samplesConsumed)}, emitted
}

func (s *SlotSelector[T]) produce(
	in []T, out []T,
	tuples []tagTuple, tupleTimes []float64,
	currentBlocks *IntervalSet, haveBlocks bool, lowerRel, upperRel float64,
	R uint64, other []StreamTag,
) ([]StreamTag, uint64, int) {
	N := uint64(len(in))

	if !s.haveActive || !haveBlocks {
		// No active schedule or nothing in the window: progress-preservation,
		// consume everything and emit nothing.
		return nil, N, 0
	}

	frameLen := s.schedule.FrameLen
	frameT0Abs := s.schedule.FrameT0.Seconds()
	lowerAbs := s.refGPS.Seconds() + lowerRel
	upperAbs := s.refGPS.Seconds() + upperRel

	first := int64(math.Floor((lowerAbs-frameT0Abs)/frameLen)) - 1
	last := int64(math.Floor((upperAbs-frameT0Abs)/frameLen)) + 1

	slotsOfInterest := NewSeparateIntervalSet()
	for k := first; k <= last; k++ {
		frameStartAbs := frameT0Abs + float64(k)*frameLen
		for i := range s.schedule.SlotLens {
			slotStartAbs := frameStartAbs + s.schedule.SlotOffsets[i]
			slotEndAbs := slotStartAbs + s.schedule.SlotLens[i]
			slotsOfInterest.Add(slotStartAbs-s.refGPS.Seconds(), slotEndAbs-s.refGPS.Seconds())
		}
	}

	outputSlots := IntersectSeparate(currentBlocks, slotsOfInterest)
	intervals := outputSlots.Intervals()

	tupleAt := func(relTs float64) int {
		idx := sort.Search(len(tupleTimes), func(i int) bool { return tupleTimes[i] > relTs })
		idx--
		if idx < 0 {
			idx = 0
		}
		return idx
	}

	// Sample-budget limiting: truncate intervals so their total sample
	// count at each region's rate never exceeds len(out). limit_output_samples
	// in the reference implementation only shrinks ninput_items when the
	// slots actually overflow noutput_items; truncated tracks whether that
	// happened, since it (not "did we emit anything") decides below whether
	// this call consumes less than the full input window.
	nOut := len(out)
	limited := intervals[:0:0]
	budget := nOut
	truncated := false
	for _, iv := range intervals {
		idx := tupleAt(iv.lo)
		rate := tuples[idx].rate
		count := int(math.Round((iv.hi - iv.lo) * rate))
		if count <= 0 {
			continue
		}
		if count <= budget {
			limited = append(limited, iv)
			budget -= count
			continue
		}
		truncated = true
		if budget <= 0 {
			break
		}
		trunc := iv
		trunc.hi = iv.lo + float64(budget)/rate
		limited = append(limited, trunc)
		budget = 0
		break
	}

	if len(limited) == 0 {
		return nil, N, 0
	}

	var emitted []StreamTag
	outputOffset := 0
	var lastConsumedInput uint64

	for _, iv := range limited {
		idx := tupleAt(iv.lo)
		tup := tuples[idx]
		rate := tup.rate

		inputOff := int64(math.Round((iv.lo-tupleTimes[idx])*rate)) + int64(tup.offset) - int64(R)
		count := int(math.Round((iv.hi - iv.lo) * rate))

		if inputOff < 0 || inputOff+int64(count) > int64(len(in)) {
			s.logger.Warn("computed input offset out of range, skipping slot",
				"input_offset", inputOff, "count", count, "n_in", len(in))
			continue
		}
		if outputOffset+count > len(out) {
			count = len(out) - outputOffset
			if count <= 0 {
				break
			}
		}

		copy(out[outputOffset:outputOffset+count], in[inputOff:inputOff+int64(count)])

		slotStartAbs := s.refGPS.Seconds() + iv.lo
		slotStartTs := NewTimestamp(0, slotStartAbs)
		if _, found := slotsOfInterest.Find(iv.lo); found {
			if !s.haveLastTag || slotStartTs.GreaterEqual(s.lastTagTime) {
				emitted = append(emitted,
					StreamTag{Offset: uint64(outputOffset), Key: TagRxTime, Value: slotStartTs, SrcID: "slot_selector"},
					StreamTag{Offset: uint64(outputOffset), Key: TagRxRate, Value: rate, SrcID: "slot_selector"},
				)
				s.lastTagTime = NewTimestamp(0, slotStartAbs+(iv.hi-iv.lo))
				s.haveLastTag = true
			}
		}

		inputOffAbs := R + uint64(inputOff)
		ctxTags := s.tagManager.LatestInRange(inputOffAbs, inputOffAbs+uint64(count))
		for _, tag := range ctxTags {
			shift := int64(tag.Offset) - int64(inputOffAbs)
			if shift < 0 {
				shift = 0
			}
			emitted = append(emitted, StreamTag{
				Offset: uint64(outputOffset) + uint64(shift),
				Key:    tag.Key,
				Value:  tag.Value,
				SrcID:  tag.SrcID,
			})
		}

		for _, tag := range other {
			otherIdx := latestTupleForOffset(tuples, tag.Offset)
			if otherIdx < 0 {
				continue
			}
			ref := tuples[otherIdx]
			tagTs := relativeTime(ref, tag.Offset, s.refGPS)
			if tagTs >= iv.lo && tagTs < iv.hi {
				emitted = append(emitted, StreamTag{
					Offset: uint64(outputOffset) + uint64(int64(tag.Offset)-int64(inputOffAbs)),
					Key:    tag.Key,
					Value:  tag.Value,
					SrcID:  tag.SrcID,
				})
			}
		}

		outputOffset += count
		lastConsumedInput = uint64(inputOff + int64(count))
	}

	// Per limit_output_samples: the selected slots consume the entire
	// input window unless they genuinely overflowed n_out and had to be
	// truncated, in which case consumption stops where the truncation did.
	consumed := N
	if truncated {
		consumed = lastConsumedInput
		if consumed == 0 {
			consumed = N
		}
	}
	SortTagsByOffset(emitted)
	return emitted, consumed, outputOffset
}

// latestTupleForOffset returns the index of the tuple with the largest
// offset <= sampleOffset, or -1 if none.
func latestTupleForOffset(tuples []tagTuple, sampleOffset uint64) int {
	idx := sort.Search(len(tuples), func(i int) bool { return tuples[i].offset > sampleOffset })
	idx--
	return idx
}
