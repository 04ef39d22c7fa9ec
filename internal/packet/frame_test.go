package packet_test

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/quote-stream/internal/packet"
	"github.com/YaganovValera/quote-stream/internal/packet/packettest"
)

func reliancePayload() []byte {
	return packettest.New(packet.Quote).
		String(65, "RELIANCE", 20).
		Uint8(66, 2).
		Float64(67, 1234.5).
		Payload()
}

func TestDecodeFrame_TooShort(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, {1}, {1, 2}} {
		res := utcDecoder().DecodeFrame(raw)
		assert.True(t, res.Dropped)
		assert.Equal(t, packet.DropTooShort, res.Reason)
		assert.Nil(t, res.Record)
	}
}

func TestDecodeFrame_ZlibMatchesUncompressed(t *testing.T) {
	payload := reliancePayload()

	plain := utcDecoder().DecodeFrame(packettest.Frame(payload, 0))
	zipped := utcDecoder().DecodeFrame(packettest.Frame(payload, packet.CompressionZlib))

	require.False(t, plain.Dropped)
	require.False(t, zipped.Dropped)
	assert.True(t, zipped.Inflated)
	assert.False(t, plain.Inflated)
	assert.Equal(t, plain.Record.String(), zipped.Record.String())
	assert.Equal(t, `{"symbol":"RELIANCE","ltp":"1,234.50"}`, zipped.Record.String())
	assert.Equal(t, packet.Quote, zipped.Type)
	assert.Equal(t, int8(10), zipped.Compression)
	assert.Empty(t, zipped.Warnings)
}

func TestDecodeFrame_CorruptZlibFallsBackToRaw(t *testing.T) {
	payload := reliancePayload()
	raw := packettest.Frame(payload, 0)
	raw[4] = byte(packet.CompressionZlib)

	res := utcDecoder().DecodeFrame(raw)

	require.False(t, res.Dropped)
	assert.False(t, res.Inflated)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "decompression failed")
	assert.Equal(t, `{"symbol":"RELIANCE","ltp":"1,234.50"}`, res.Record.String())
}

func TestDecodeFrame_UnknownTypeFallsBackToQuote(t *testing.T) {
	payload := packettest.New(77).Float64(67, 10).Payload()

	res := utcDecoder().DecodeFrame(packettest.Frame(payload, 0))

	require.False(t, res.Dropped)
	assert.True(t, res.Fallback)
	assert.Equal(t, packet.PacketType(77), res.Type)
	assert.Equal(t, []string{"ltp"}, res.Record.Names())
	assert.Contains(t, res.Warnings[0], "unknown packet type: 77")
}

func TestDecodeFrame_UnknownTypeWithNoFieldsDropped(t *testing.T) {
	payload := packettest.New(77).Raw(0xEE, 0xEE, 0xEE).Payload()

	res := utcDecoder().DecodeFrame(packettest.Frame(payload, 0))

	assert.True(t, res.Dropped)
	assert.Equal(t, packet.DropUnknownType, res.Reason)
	last := res.Warnings[len(res.Warnings)-1]
	assert.Contains(t, last, "06 00 4d ee ee ee")
}

func TestDecodeFrame_KnownTypeEmptyRecordDropped(t *testing.T) {
	payload := packettest.New(packet.Quote3).Raw(0x01).Payload()

	res := utcDecoder().DecodeFrame(packettest.Frame(payload, 0))

	assert.True(t, res.Dropped)
	assert.Equal(t, packet.DropEmpty, res.Reason)
}

func TestDecodeFrame_DeclaredLengthBoundsFields(t *testing.T) {
	b := packettest.New(packet.Quote).
		String(65, "HDFC", 20).
		Float64(67, 1600)
	full := b.Payload()
	// declared covers only the symbol field
	short := b.PayloadWithLength(int16(packet.HeaderSize + 21))
	zero := b.PayloadWithLength(0)
	negative := b.PayloadWithLength(-5)
	huge := b.PayloadWithLength(int16(len(full) + 400))

	res := utcDecoder().DecodeFrame(packettest.Frame(short, 0))
	assert.Equal(t, []string{"symbol"}, res.Record.Names())
	assert.Equal(t, 24, res.Declared)

	for _, p := range [][]byte{full, zero, negative, huge} {
		res := utcDecoder().DecodeFrame(packettest.Frame(p, 0))
		assert.Equal(t, []string{"symbol", "ltp"}, res.Record.Names())
	}
}

func TestDecodeFrame_ThreeAndFourByteMessagesHaveNoEnvelope(t *testing.T) {
	res := utcDecoder().DecodeFrame([]byte{0x03, 0x00, 49})
	assert.False(t, res.Enveloped)
	assert.Equal(t, packet.DropEmpty, res.Reason)

	res = utcDecoder().DecodeFrame([]byte{0x04, 0x00, 49, 0xFF})
	assert.False(t, res.Enveloped)
	assert.True(t, res.Dropped)
}

func TestDecodeFrame_EnvelopeWithShortPayload(t *testing.T) {
	res := utcDecoder().DecodeFrame([]byte{0, 0, 0, 0, 0, 1})
	assert.True(t, res.Enveloped)
	assert.Equal(t, packet.DropTooShort, res.Reason)
}

func TestDecodeFrame_GarbageNeverPanics(t *testing.T) {
	inputs := [][]byte{
		bytes.Repeat([]byte{0xFF}, 64),
		bytes.Repeat([]byte{65}, 40),
		{0, 0, 0, 0, 10, 0x78, 0x9c, 0x00},
		append(make([]byte, 5), 0xFF, 0x7F, 49, 67),
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { utcDecoder().DecodeFrame(in) })
	}
}

func TestDecodeText(t *testing.T) {
	frame := packettest.Frame(reliancePayload(), packet.CompressionZlib)

	res := utcDecoder().DecodeText(base64.StdEncoding.EncodeToString(frame) + "\n")
	require.False(t, res.Dropped)
	assert.Equal(t, `{"symbol":"RELIANCE","ltp":"1,234.50"}`, res.Record.String())

	res = utcDecoder().DecodeText(`{"status":"subscribed"}`)
	assert.True(t, res.Dropped)
	assert.Equal(t, packet.DropNonBinary, res.Reason)
	assert.Contains(t, res.Warnings[0], `{"status":"subscribed"}`)
}

func TestInflate_Limit(t *testing.T) {
	big := packettest.Deflate(bytes.Repeat([]byte{'a'}, 4096))

	out, err := packet.Inflate(big, 4096)
	require.NoError(t, err)
	assert.Len(t, out, 4096)

	_, err = packet.Inflate(big, 1024)
	assert.ErrorIs(t, err, packet.ErrPayloadTooLarge)

	_, err = packet.Inflate([]byte("not zlib"), 1024)
	assert.Error(t, err)
}

func TestDecodeFrame_MaxPayloadOption(t *testing.T) {
	payload := reliancePayload()
	dec := packet.NewDecoder(packet.WithMaxPayload(8))

	res := dec.DecodeFrame(packettest.Frame(payload, packet.CompressionZlib))

	assert.False(t, res.Inflated)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "too large")
}
