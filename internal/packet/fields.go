package packet

import (
	"encoding/binary"
	"math"
	"strings"
	"time"
)

// HeaderSize is the length+type prefix of every payload.
const HeaderSize = 3

// Decoder turns payload bytes into records. It holds only read-only state
// and is safe for concurrent use.
type Decoder struct {
	registry   *Registry
	loc        *time.Location
	maxPayload int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithRegistry replaces the built-in schema table.
func WithRegistry(r *Registry) Option {
	return func(d *Decoder) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithLocation sets the zone used to render timestamp fields.
func WithLocation(loc *time.Location) Option {
	return func(d *Decoder) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithMaxPayload caps the size of an inflated payload.
func WithMaxPayload(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxPayload = n
		}
	}
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		registry:   DefaultRegistry(),
		loc:        time.Local,
		maxPayload: DefaultMaxPayload,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Registry returns the schema table used by the decoder.
func (d *Decoder) Registry() *Registry { return d.registry }

var defaultDecoder = NewDecoder()

// DecodeFields walks tagged fields of buf in [start, end) with the default decoder.
func DecodeFields(schema *PacketSchema, buf []byte, start, end int) *Record {
	return defaultDecoder.DecodeFields(schema, buf, start, end)
}

// DecodeFields walks tagged fields of buf in [start, end) using schema.
// It never fails: an unknown field id or a value running past the buffer
// ends the walk and the fields decoded so far are returned.
func (d *Decoder) DecodeFields(schema *PacketSchema, buf []byte, start, end int) *Record {
	rec := NewRecord()
	if schema == nil {
		return rec
	}
	if start < 0 {
		start = 0
	}
	if end > len(buf) {
		end = len(buf)
	}

	precision := DefaultPrecision
	cursor := start
	for cursor < end {
		spec, ok := schema.Field(buf[cursor])
		if !ok {
			break
		}
		cursor++
		if len(buf)-cursor < spec.Length {
			break
		}
		raw := readValue(spec, buf[cursor:cursor+spec.Length])
		cursor += spec.Length

		if spec.Type == TypeUint8 && spec.Name == PrecisionField {
			precision = int(raw.(uint8))
			continue
		}
		rec.set(Field{
			ID:    spec.ID,
			Name:  spec.Name,
			Raw:   raw,
			Value: d.display(spec, raw, precision),
		})
	}
	return rec
}

func (d *Decoder) display(spec FieldSpec, raw any, precision int) any {
	if spec.Type == TypeString || spec.Format == FormatRaw {
		return raw
	}
	return spec.Format.apply(raw, precision, d.loc)
}

// readValue decodes b (exactly spec.Length bytes) as little-endian.
func readValue(spec FieldSpec, b []byte) any {
	switch spec.Type {
	case TypeString:
		s := strings.TrimRight(string(b), "\x00")
		return strings.ToValidUTF8(s, "\uFFFD")
	case TypeUint8:
		return b[0]
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(b))
	case TypeInt64:
		return int64(binary.LittleEndian.Uint64(b))
	case TypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return nil
	}
}
