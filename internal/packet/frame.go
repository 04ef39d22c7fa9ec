// internal/packet/frame.go
package packet

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
)

const (
	// CompressionZlib marks an envelope whose payload is zlib/deflate compressed.
	CompressionZlib int8 = 10

	// EnvelopeSize is the outer framing: 4 reserved bytes and the compression id.
	EnvelopeSize = 5

	// DefaultMaxPayload bounds inflated payloads; declared lengths are int16.
	DefaultMaxPayload = 1 << 16

	headerDumpLen = 20
	textPreview   = 100
)

// ErrPayloadTooLarge is returned by Inflate when the output exceeds the limit.
var ErrPayloadTooLarge = errors.New("packet: inflated payload too large")

// DropReason explains why a frame produced no record.
type DropReason string

const (
	DropTooShort    DropReason = "too_short"
	DropEmpty       DropReason = "empty_record"
	DropUnknownType DropReason = "unknown_type"
	DropNonBinary   DropReason = "non_binary"
)

// Result is the outcome of decoding one inbound message.
type Result struct {
	Record      *Record
	Type        PacketType
	Declared    int  // packet length from the header, untrusted
	Compression int8 // envelope compression id, 0 without envelope
	Enveloped   bool
	Inflated    bool
	Fallback    bool // decoded with the Quote schema after an unknown type
	Dropped     bool
	Reason      DropReason
	Warnings    []string
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r Result) drop(reason DropReason, format string, args ...any) Result {
	r.Dropped = true
	r.Reason = reason
	r.Record = nil
	r.warnf(format, args...)
	return r
}

// DecodeFrame decodes one binary message with the default decoder.
func DecodeFrame(raw []byte) Result {
	return defaultDecoder.DecodeFrame(raw)
}

// DecodeFrame strips the envelope, inflates when flagged and decodes the
// packet. Problems are reported through Result; it never panics on input.
func (d *Decoder) DecodeFrame(raw []byte) Result {
	var res Result
	if len(raw) < HeaderSize {
		return res.drop(DropTooShort, "packet too short: %d bytes", len(raw))
	}

	payload := raw
	if len(raw) >= EnvelopeSize {
		res.Enveloped = true
		res.Compression = int8(raw[4])
		payload = raw[EnvelopeSize:]
		if res.Compression == CompressionZlib {
			inflated, err := Inflate(payload, d.maxPayload)
			if err != nil {
				res.warnf("decompression failed, decoding as uncompressed: %v", err)
			} else {
				payload = inflated
				res.Inflated = true
			}
		}
	}
	return d.decodePacket(payload, res)
}

// DecodeText handles text frames: the feed may send the binary frame base64 encoded.
func (d *Decoder) DecodeText(text string) Result {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil || len(raw) == 0 {
		var res Result
		return res.drop(DropNonBinary, "server response (non-binary): %s", preview(text))
	}
	return d.DecodeFrame(raw)
}

func (d *Decoder) decodePacket(payload []byte, res Result) Result {
	if len(payload) < HeaderSize {
		return res.drop(DropTooShort, "packet too short: %d payload bytes", len(payload))
	}
	res.Declared = int(int16(binary.LittleEndian.Uint16(payload[0:2])))
	res.Type = PacketType(int8(payload[2]))

	end := len(payload)
	if res.Declared > 0 && res.Declared < end {
		end = res.Declared
	}

	if schema, ok := d.registry.Schema(res.Type); ok {
		res.Record = d.DecodeFields(schema, payload, HeaderSize, end)
		if res.Record.Len() == 0 {
			return res.drop(DropEmpty, "decoded data is empty for packet type %d", int8(res.Type))
		}
		return res
	}

	res.warnf("unknown packet type: %d, trying %s schema", int8(res.Type), Quote)
	if schema, ok := d.registry.Schema(Quote); ok {
		rec := d.DecodeFields(schema, payload, HeaderSize, end)
		if rec.Len() > 0 {
			res.Record = rec
			res.Fallback = true
			return res
		}
	}
	return res.drop(DropUnknownType, "fallback decoding produced no fields, header: % x",
		payload[:min(headerDumpLen, len(payload))])
}

// Inflate decompresses a zlib stream, refusing output larger than limit bytes.
func Inflate(b []byte, limit int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if len(out) > limit {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}

func preview(s string) string {
	if len(s) <= textPreview {
		return s
	}
	return s[:textPreview] + "..."
}
