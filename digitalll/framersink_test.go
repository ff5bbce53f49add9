package digitalll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitsForHeader returns the 32 header bits (MSB first) for a header
// encoding payloadLen/whitenerOffset, with the duplicated-short layout
// framerHeaderOK/framerHeaderPayload expect.
func bitsForHeader(payloadLen, whitenerOffset int) []byte {
	short := uint32(whitenerOffset)<<12 | uint32(payloadLen)
	h := short<<16 | short
	bits := make([]byte, 32)
	for i := 0; i < 32; i++ {
		bits[i] = byte((h >> (31 - i)) & 1)
	}
	return bits
}

func bitsForByte(b byte) []byte {
	bits := make([]byte, 8)
	for i := 0; i < 8; i++ {
		bits[i] = (b >> (7 - i)) & 1
	}
	return bits
}

// buildFrame assembles a bit-per-byte input stream: one sync-flagged
// byte (0x2, its own data bit discarded by the sync-search state, as
// the reference implementation does), then the 32 header bits, then
// the payload bits, all carrying their data in bit 0x1.
func buildFrame(payload []byte, whitenerOffset int) []byte {
	header := bitsForHeader(len(payload), whitenerOffset)
	stream := []byte{0x2}
	stream = append(stream, header...)
	for _, b := range payload {
		stream = append(stream, bitsForByte(b)...)
	}
	return stream
}

func TestFramerHeaderOKAndPayload(t *testing.T) {
	short := uint32(3)<<12 | uint32(42)
	h := short<<16 | short
	assert.True(t, framerHeaderOK(h))

	payloadLen, whitenerOffset := framerHeaderPayload(h)
	assert.Equal(t, 42, payloadLen)
	assert.Equal(t, 3, whitenerOffset)

	assert.False(t, framerHeaderOK(h^1))
}

func TestFramerSinkAssemblesPacket(t *testing.T) {
	framer := NewFramerSink()
	stream := buildFrame([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 0)

	result, _ := framer.Work(stream, nil, nil)
	assert.Equal(t, len(stream), result.Consumed)
	assert.Equal(t, 0, result.Produced)

	select {
	case pkt := <-framer.Packets:
		assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, pkt.Payload)
	default:
		t.Fatal("expected a packet on framer.Packets")
	}
}

func TestFramerSinkZeroLengthPayloadEmitsImmediately(t *testing.T) {
	framer := NewFramerSink()
	stream := buildFrame(nil, 0)

	framer.Work(stream, nil, nil)

	select {
	case pkt := <-framer.Packets:
		assert.Empty(t, pkt.Payload)
	default:
		t.Fatal("expected an empty packet on framer.Packets")
	}
}

func TestFramerSinkBadHeaderResumesSearch(t *testing.T) {
	framer := NewFramerSink()

	header := bitsForHeader(4, 0)
	header[31] ^= 1 // corrupt the low bit so upper/lower halves disagree

	stream := []byte{0x2}
	stream = append(stream, header...)
	// Re-sync with a fresh, valid frame right after the corrupted one.
	stream = append(stream, buildFrame([]byte{0x01, 0x02}, 0)...)

	framer.Work(stream, nil, nil)

	select {
	case pkt := <-framer.Packets:
		assert.Equal(t, []byte{0x01, 0x02}, pkt.Payload)
	default:
		t.Fatal("expected the re-synced packet on framer.Packets")
	}
}

func TestFramerSinkSyncTimeFromRxTimeTag(t *testing.T) {
	framer := NewFramerSink()
	stream := buildFrame([]byte{0x7F}, 0)

	tags := []StreamTag{
		{Offset: 0, Key: TagRxTime, Value: NewTimestamp(1000, 0)},
		{Offset: 0, Key: TagRxRate, Value: 10000.0},
	}
	framer.Work(stream, nil, tags)

	require.NotNil(t, framer.Packets)
	select {
	case pkt := <-framer.Packets:
		assert.Equal(t, int64(1000), pkt.Timestamp.Int())
	default:
		t.Fatal("expected a packet")
	}
}
