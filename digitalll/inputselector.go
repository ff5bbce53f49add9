package digitalll

import "github.com/charmbracelet/log"

// InputFrameSchedule is one submitted TDMA frame plan for InputSelector:
// starting at FrameStart, each (SlotTimes[i], SlotChannels[i]) pair
// names the channel active from FrameStart+SlotTimes[i] until the next
// entry, or until FrameStart+FrameLen ends the frame.
type InputFrameSchedule struct {
	FrameStart   Timestamp
	FrameLen     float64
	SlotTimes    []float64
	SlotChannels []int
}

type inputSelectorTuple struct {
	offset uint64
	time   Timestamp
	rate   float64
}

type inputSelectorSlot struct {
	time    Timestamp
	channel int
}

// InputSelector is a synchronous N-to-1 multiplexer whose active input
// hops between channels on a GPS-time schedule, falling back to a
// beacon channel whenever no schedule applies. Go counterpart of
// digital_ll_selector. T is the sample item type.
type InputSelector[T any] struct {
	numChans      int
	inputIndex    int
	outputIndex   int
	beaconChannel int

	haveRef   bool
	refOffset uint64
	refTime   Timestamp
	refRate   float64

	// schedules is kept sorted with the latest FrameStart first, per
	// spec.md's "later time sorts earlier" convention.
	schedules []InputFrameSchedule
	frame     []inputSelectorSlot

	emittedInitialTag bool
	streamPos         uint64

	logger *log.Logger
}

// NewInputSelector builds an InputSelector reading from numChans input
// ports, initially forwarding inputIndex to outputIndex.
func NewInputSelector[T any](numChans, inputIndex, outputIndex int) *InputSelector[T] {
	return &InputSelector[T]{
		numChans:    numChans,
		inputIndex:  inputIndex,
		outputIndex: outputIndex,
		logger:      componentLogger("InputSelector"),
	}
}

// SetInputIndex overrides the active input channel directly.
func (s *InputSelector[T]) SetInputIndex(i int) { s.inputIndex = i }

// SetBeaconChannel sets the channel to fall back to absent a schedule.
func (s *InputSelector[T]) SetBeaconChannel(ch int) { s.beaconChannel = ch }

// ReturnToBeaconChannel clears every pending schedule and switches to
// the beacon channel immediately.
func (s *InputSelector[T]) ReturnToBeaconChannel() {
	s.schedules = nil
	s.frame = nil
	s.inputIndex = s.beaconChannel
}

// SetSchedule inserts sched into the schedule list, keeping it sorted
// with the latest FrameStart first.
func (s *InputSelector[T]) SetSchedule(sched InputFrameSchedule) {
	pos := 0
	for pos < len(s.schedules) && !sched.FrameStart.Greater(s.schedules[pos].FrameStart) {
		pos++
	}
	s.schedules = append(s.schedules, InputFrameSchedule{})
	copy(s.schedules[pos+1:], s.schedules[pos:])
	s.schedules[pos] = sched
}

// getNextSchedule picks the schedule with the latest FrameStart that
// has already begun (FrameStart <= current), discards the older ones
// it supersedes (schedules not yet begun stay queued), advances its FrameStart
// by whole frames until one frame past current, and materializes the
// per-frame slot deque — with a trailing sentinel (channel 0) marking
// the end of the frame.
func (s *InputSelector[T]) getNextSchedule(current Timestamp) bool {
	idx := -1
	for i, sched := range s.schedules {
		if !sched.FrameStart.Greater(current) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.schedules = s.schedules[:idx+1]

	active := s.schedules[idx]
	frameStart := active.FrameStart
	candidate := frameStart.AddSeconds(active.FrameLen)
	for candidate.Less(current) {
		frameStart = frameStart.AddSeconds(active.FrameLen)
		candidate = candidate.AddSeconds(active.FrameLen)
	}

	frame := make([]inputSelectorSlot, 0, len(active.SlotTimes)+1)
	for i, st := range active.SlotTimes {
		frame = append(frame, inputSelectorSlot{
			time:    frameStart.AddSeconds(st),
			channel: active.SlotChannels[i],
		})
	}
	frame = append(frame, inputSelectorSlot{time: frameStart.AddSeconds(active.FrameLen), channel: 0})
	s.frame = frame
	return true
}

func incrementTime(t Timestamp, delta int64, rate float64) Timestamp {
	if rate <= 0 {
		rate = 1
	}
	return t.AddSeconds(float64(delta) / rate)
}

func findMostRecentTag(tuples []inputSelectorTuple, offset uint64) int {
	idx := -1
	for i, t := range tuples {
		if t.offset < offset {
			idx = i
		}
	}
	return idx
}

// buildTuples collects this call's rx_time/rx_rate tags into a sorted
// list of reference tuples, prefixed by the carried-over reference
// from the previous call when it is still the most recent one known.
func (s *InputSelector[T]) buildTuples(tags []StreamTag) []inputSelectorTuple {
	var timeTags, rateTags []StreamTag
	for _, t := range tags {
		switch t.Key {
		case TagRxTime:
			timeTags = append(timeTags, t)
		case TagRxRate:
			rateTags = append(rateTags, t)
		}
	}
	timeTags = DedupTagsByOffset(timeTags)
	rateTags = DedupTagsByOffset(rateTags)

	var tuples []inputSelectorTuple
	if s.haveRef && (len(timeTags) == 0 || timeTags[0].Offset >= s.refOffset) {
		tuples = append(tuples, inputSelectorTuple{offset: s.refOffset, time: s.refTime, rate: s.refRate})
	}
	for i, tt := range timeTags {
		ts, _ := tt.RxTimeValue()
		rate := s.refRate
		if i < len(rateTags) {
			if r, ok := rateTags[i].RxRateValue(); ok {
				rate = r
			}
		}
		tuples = append(tuples, inputSelectorTuple{offset: tt.Offset, time: ts, rate: rate})
	}
	return tuples
}

// Work follows the StreamOperator.Work shape but takes one input slice
// per channel, so InputSelector does not itself satisfy StreamOperator.
// All input slices are the same length; out receives a copy of whichever
// channel is currently selected, switching mid-call as the schedule dictates.
func (s *InputSelector[T]) Work(in [][]T, out []T, inTags []StreamTag) (WorkResult, []StreamTag) {
	absN := s.streamPos
	n := len(out)

	tuples := s.buildTuples(inTags)
	tagIdx := findMostRecentTag(tuples, absN)

	var gpsTime Timestamp
	if tagIdx >= 0 {
		gpsTime = incrementTime(tuples[tagIdx].time, int64(absN-tuples[tagIdx].offset), tuples[tagIdx].rate)
	}

	var emitted []StreamTag
	if !s.emittedInitialTag {
		emitted = append(emitted, StreamTag{Offset: absN, Key: TagDigChan, Value: s.inputIndex, SrcID: "InputSelector"})
		s.emittedInitialTag = true
	}

	activeIn := in[s.inputIndex]
	offset := absN
	for i := 0; i < n; i++ {
		out[i] = activeIn[i]

		if tagIdx < 0 {
			continue
		}
		offset++
		if tagIdx != len(tuples)-1 && offset >= tuples[tagIdx+1].offset {
			tagIdx++
			gpsTime = incrementTime(tuples[tagIdx].time, int64(offset-tuples[tagIdx].offset), tuples[tagIdx].rate)
		} else {
			gpsTime = incrementTime(gpsTime, 1, tuples[tagIdx].rate)
		}

		if len(s.frame) == 0 {
			s.getNextSchedule(gpsTime)
		}

		if len(s.frame) > 0 {
			if gpsTime.Greater(s.frame[0].time) {
				if len(s.frame) != 1 && s.inputIndex != s.frame[0].channel {
					s.inputIndex = s.frame[0].channel
					if s.inputIndex >= s.numChans {
						s.logger.Error("schedule requested out-of-range channel", "channel", s.inputIndex, "num_chans", s.numChans)
					} else {
						emitted = append(emitted, StreamTag{Offset: offset, Key: TagDigChan, Value: s.inputIndex, SrcID: "InputSelector"})
						activeIn = in[s.inputIndex]
					}
				}
				s.frame = s.frame[1:]
			}
		} else if s.inputIndex != s.beaconChannel {
			s.inputIndex = s.beaconChannel
			activeIn = in[s.inputIndex]
			emitted = append(emitted, StreamTag{Offset: offset, Key: TagDigChan, Value: s.beaconChannel, SrcID: "InputSelector"})
		}
	}

	if len(tuples) > 0 {
		last := tuples[len(tuples)-1]
		s.refOffset, s.refTime, s.refRate = last.offset, last.time, last.rate
		s.haveRef = true
	}

	s.streamPos += uint64(n)
	SortTagsByOffset(emitted)

	return WorkResult{Produced: n, Consumed: n}, emitted
}
