package digitalll

import "sort"

// Well-known stream tag keys, mirroring the UHD/GNU Radio convention the
// original gr-digital_ll blocks were built against.
const (
	TagRxTime = "rx_time"
	TagRxRate = "rx_rate"
	TagRxFreq = "rx_freq"
	TagTxTime = "tx_time"
	TagDigChan = "dig_chan"
)

// StreamTag is a single (offset, key, value, srcid) annotation attached to
// an absolute sample offset on a producing port.
type StreamTag struct {
	Offset uint64
	Key    string
	Value  any
	SrcID  string
}

// RxTimeValue unpacks a Value known to hold an rx_time/tx_time Timestamp.
// The second return is false if Value is not a Timestamp.
func (t StreamTag) RxTimeValue() (Timestamp, bool) {
	ts, ok := t.Value.(Timestamp)
	return ts, ok
}

// RxRateValue unpacks a Value known to hold an rx_rate float64.
func (t StreamTag) RxRateValue() (float64, bool) {
	rate, ok := t.Value.(float64)
	return rate, ok
}

// SortTagsByOffset sorts a tag slice in place by ascending offset. Ties
// are broken stably, which is what lets "last duplicate wins" dedup
// (below) work by simply keeping the final element of each run.
func SortTagsByOffset(tags []StreamTag) {
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Offset < tags[j].Offset
	})
}

// DedupTagsByOffset sorts tags by offset and, for duplicate offsets,
// keeps only the last arrival — the rule spec'd for rx_time/rx_rate
// ingestion and reused anywhere a tag stream needs the same treatment.
func DedupTagsByOffset(tags []StreamTag) []StreamTag {
	SortTagsByOffset(tags)
	out := tags[:0:0]
	for _, tag := range tags {
		if n := len(out); n > 0 && out[n-1].Offset == tag.Offset {
			out[n-1] = tag
			continue
		}
		out = append(out, tag)
	}
	return out
}
