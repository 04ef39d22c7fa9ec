// Package packettest builds wire frames for tests.
package packettest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/zlib"

	"github.com/YaganovValera/quote-stream/internal/packet"
)

// Builder appends tagged fields after a 3 byte header placeholder.
type Builder struct {
	typ    packet.PacketType
	fields bytes.Buffer
}

func New(t packet.PacketType) *Builder {
	return &Builder{typ: t}
}

func (b *Builder) String(id uint8, s string, width int) *Builder {
	b.fields.WriteByte(id)
	buf := make([]byte, width)
	copy(buf, s)
	b.fields.Write(buf)
	return b
}

func (b *Builder) Uint8(id, v uint8) *Builder {
	b.fields.WriteByte(id)
	b.fields.WriteByte(v)
	return b
}

func (b *Builder) Int32(id uint8, v int32) *Builder {
	b.fields.WriteByte(id)
	_ = binary.Write(&b.fields, binary.LittleEndian, v)
	return b
}

func (b *Builder) Int64(id uint8, v int64) *Builder {
	b.fields.WriteByte(id)
	_ = binary.Write(&b.fields, binary.LittleEndian, v)
	return b
}

func (b *Builder) Float64(id uint8, v float64) *Builder {
	b.fields.WriteByte(id)
	_ = binary.Write(&b.fields, binary.LittleEndian, math.Float64bits(v))
	return b
}

// Raw appends bytes verbatim.
func (b *Builder) Raw(p ...byte) *Builder {
	b.fields.Write(p)
	return b
}

// Payload returns header + fields with the declared length set to the real size.
func (b *Builder) Payload() []byte {
	return b.PayloadWithLength(int16(packet.HeaderSize + b.fields.Len()))
}

// PayloadWithLength returns header + fields with an arbitrary declared length.
func (b *Builder) PayloadWithLength(declared int16) []byte {
	out := make([]byte, packet.HeaderSize, packet.HeaderSize+b.fields.Len())
	binary.LittleEndian.PutUint16(out[0:2], uint16(declared))
	out[2] = byte(int8(b.typ))
	return append(out, b.fields.Bytes()...)
}

// Frame wraps payload in an envelope with the given compression id.
// Id 10 zlib-compresses the payload.
func Frame(payload []byte, compression int8) []byte {
	body := payload
	if compression == packet.CompressionZlib {
		body = Deflate(payload)
	}
	out := make([]byte, packet.EnvelopeSize, packet.EnvelopeSize+len(body))
	out[4] = byte(compression)
	return append(out, body...)
}

// Deflate zlib-compresses p.
func Deflate(p []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(p)
	_ = zw.Close()
	return buf.Bytes()
}
