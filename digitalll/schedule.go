package digitalll

// Schedule describes a repeating TDMA frame: frame k spans
// [FrameT0 + k*FrameLen, FrameT0 + (k+1)*FrameLen), and within each frame
// slot i spans [SlotOffsets[i], SlotOffsets[i]+SlotLens[i]) measured from
// the frame start. Slots are assumed non-overlapping but this is not
// enforced.
type Schedule struct {
	FrameLen    float64
	SlotLens    []float64
	SlotOffsets []float64
	FrameT0     Timestamp
}

func validateSchedule(frameLen float64, slotLens, slotOffsets []float64) error {
	if frameLen <= 0 {
		return newConfigError("Schedule", "frame_len", "must be > 0")
	}
	if len(slotLens) != len(slotOffsets) {
		return newConfigError("Schedule", "slot_lens/slot_offsets", "must have the same length")
	}
	for _, l := range slotLens {
		if l <= 0 {
			return newConfigError("Schedule", "slot_lens", "every slot length must be > 0")
		}
	}
	return nil
}

// NewSchedule validates and builds a Schedule.
func NewSchedule(frameLen float64, slotLens, slotOffsets []float64, frameT0 Timestamp) (Schedule, error) {
	if err := validateSchedule(frameLen, slotLens, slotOffsets); err != nil {
		return Schedule{}, err
	}
	return Schedule{
		FrameLen:    frameLen,
		SlotLens:    append([]float64(nil), slotLens...),
		SlotOffsets: append([]float64(nil), slotOffsets...),
		FrameT0:     frameT0,
	}, nil
}

// scheduleQueue is SlotSelector's FIFO of pending schedules. It has no
// lock of its own: SlotSelector guards it with its mutex. Writers are
// out-of-band setters; the work thread is the sole reader. The mutex is
// only ever held while mutating the FIFO, never across a sample copy.
type scheduleQueue struct {
	pending []Schedule
}

func (q *scheduleQueue) push(s Schedule) {
	q.pending = append(q.pending, s)
}

// activate walks the FIFO, discarding every schedule whose FrameT0 is
// before upperBound except the latest one, which becomes active (and is
// returned). Returns false if no pending schedule has activated yet.
func (q *scheduleQueue) activate(upperBound Timestamp) (Schedule, bool) {
	var latest Schedule
	found := false
	kept := q.pending[:0]
	for _, s := range q.pending {
		if s.FrameT0.Less(upperBound) {
			latest = s
			found = true
			continue
		}
		kept = append(kept, s)
	}
	q.pending = kept
	return latest, found
}
