package digitalll

import "github.com/charmbracelet/log"

const (
	framerMaxPacketLen = 4096
	framerHeaderBits   = 32
)

type framerState int

const (
	framerStateSyncSearch framerState = iota
	framerStateHaveSync
	framerStateHaveHeader
)

// Packet is what a completed frame produces: payload bytes, the
// wall-clock time of its sync marker, and the channel it arrived on.
// digital_ll_framer_sink_1 pushes these as three separate lock-step
// message queues; here they travel together so they can never
// desynchronize.
type Packet struct {
	Payload   []byte
	Timestamp Timestamp
	Channel   int
}

// FramerSink assembles packets from a bit-per-byte stream (LSB = data
// bit, bit 1 = first-bit-after-sync flag), the Go counterpart of
// digital_ll_framer_sink_1.
type FramerSink struct {
	tagManager *ContextTagManager

	state          framerState
	header         uint32
	headerBitCount int

	packet         []byte
	packetByte     byte
	byteBitCount   int
	packetLen      int
	whitenerOffset int

	syncIndex   int64
	syncTime    Timestamp
	syncChannel int

	refTime      Timestamp
	refSampleOff uint64
	sampRate     float64

	streamPos uint64

	Packets chan Packet

	logger *log.Logger
}

// NewFramerSink builds a FramerSink ready to search for sync.
func NewFramerSink() *FramerSink {
	s := &FramerSink{
		tagManager: NewContextTagManager([]string{TagDigChan}),
		packet:     make([]byte, 0, framerMaxPacketLen),
		sampRate:   1,
		Packets:    make(chan Packet, 256),
		logger:     componentLogger("FramerSink"),
	}
	s.enterSearch()
	return s
}

func (s *FramerSink) enterSearch() {
	s.state = framerStateSyncSearch
	s.syncIndex = -1
}

func (s *FramerSink) enterHaveHeader(payloadLen, whitenerOffset int) {
	s.state = framerStateHaveHeader
	s.packetLen = payloadLen
	s.whitenerOffset = whitenerOffset
	s.packet = s.packet[:0]
	s.byteBitCount = 0
}

func framerHeaderOK(h uint32) bool {
	return (h>>16)^(h&0xffff) == 0
}

// framerHeaderPayload splits a validated 32-bit header: the low 12
// bits of the (duplicated) 16-bit short are payload length, the upper
// 4 bits are the whitener offset.
func framerHeaderPayload(h uint32) (payloadLen, whitenerOffset int) {
	payloadLen = int((h >> 16) & 0x0fff)
	whitenerOffset = int((h >> 28) & 0xf)
	return
}

// Work implements StreamOperator for the bit-per-byte input alphabet;
// FramerSink is a pure sink, so out is always left untouched.
func (s *FramerSink) Work(in []byte, out []byte, inTags []StreamTag) (WorkResult, []StreamTag) {
	absN := s.streamPos
	n := len(in)

	tags := append([]StreamTag(nil), inTags...)
	SortTagsByOffset(tags)

	var timeTags, rateTags []StreamTag
	for _, t := range tags {
		switch t.Key {
		case TagRxTime:
			timeTags = append(timeTags, t)
		case TagRxRate:
			rateTags = append(rateTags, t)
		case TagDigChan:
			s.tagManager.Add(t)
		}
	}

	timeIdx, rateIdx := 0, 0
	advanceRefs := func(upTo int64) {
		for timeIdx < len(timeTags) && upTo >= int64(timeTags[timeIdx].Offset) {
			if ts, ok := timeTags[timeIdx].RxTimeValue(); ok {
				s.refTime = ts
				s.refSampleOff = timeTags[timeIdx].Offset
			}
			timeIdx++
		}
		for rateIdx < len(rateTags) && upTo >= int64(rateTags[rateIdx].Offset) {
			if rate, ok := rateTags[rateIdx].RxRateValue(); ok {
				s.sampRate = rate
			}
			rateIdx++
		}
	}

	count := 0
	for count < n {
		switch s.state {
		case framerStateSyncSearch:
			for count < n {
				if in[count]&0x2 != 0 {
					s.syncIndex = int64(count) + int64(absN)
					advanceRefs(s.syncIndex)

					rate := s.sampRate
					if rate <= 0 {
						rate = 1
					}
					s.syncTime = s.refTime.AddSeconds(float64(s.syncIndex-int64(s.refSampleOff)) / rate)

					s.syncChannel = 0
					if ctx := s.tagManager.LatestAt(uint64(s.syncIndex)); len(ctx) > 0 {
						if ch, ok := ctx[0].Value.(int); ok {
							s.syncChannel = ch
						}
					}

					s.state = framerStateHaveSync
					s.header = 0
					s.headerBitCount = 0
					count++
					break
				}
				count++
			}

		case framerStateHaveSync:
			for count < n {
				s.header = s.header<<1 | uint32(in[count]&0x1)
				count++
				s.headerBitCount++
				if s.headerBitCount == framerHeaderBits {
					if framerHeaderOK(s.header) {
						payloadLen, whitenerOffset := framerHeaderPayload(s.header)
						s.enterHaveHeader(payloadLen, whitenerOffset)
						if s.packetLen == 0 {
							s.emitPacket()
							s.enterSearch()
						}
					} else {
						s.logger.Warn("bad frame header, resuming sync search", "header", s.header)
						s.enterSearch()
					}
					break
				}
			}

		case framerStateHaveHeader:
			for count < n {
				s.packetByte = s.packetByte<<1 | (in[count] & 0x1)
				count++
				s.byteBitCount++
				if s.byteBitCount == 8 {
					s.packet = append(s.packet, s.packetByte)
					s.packetByte = 0
					s.byteBitCount = 0
					if len(s.packet) == s.packetLen {
						s.emitPacket()
						s.enterSearch()
					}
					break
				}
			}
		}
	}

	// Whether or not a sync event consumed them this call, any
	// reference tag whose offset has now been passed updates state
	// for the next call.
	advanceRefs(int64(absN) + int64(n) - 1)

	s.streamPos += uint64(n)

	return WorkResult{Produced: 0, Consumed: n}, nil
}

func (s *FramerSink) emitPacket() {
	payload := make([]byte, len(s.packet))
	copy(payload, s.packet)
	s.Packets <- Packet{Payload: payload, Timestamp: s.syncTime, Channel: s.syncChannel}
}
