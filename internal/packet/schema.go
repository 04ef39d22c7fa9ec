// internal/packet/schema.go
package packet

import (
	"fmt"
	"sort"
	"strings"
)

// PacketType identifies the layout of a payload (byte 2 of the packet header).
type PacketType int8

const (
	Quote  PacketType = 49
	Quote2 PacketType = 50
	Quote3 PacketType = 52
)

func (t PacketType) String() string {
	switch t {
	case Quote:
		return "quote"
	case Quote2:
		return "quote2"
	case Quote3:
		return "quote3"
	default:
		return fmt.Sprintf("unknown(%d)", int8(t))
	}
}

// ValueType is the wire encoding of a single tagged field.
type ValueType uint8

const (
	TypeString ValueType = iota + 1
	TypeUint8
	TypeInt32
	TypeInt64
	TypeFloat64
)

var valueTypeNames = map[ValueType]string{
	TypeString:  "string",
	TypeUint8:   "uint8",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
}

func (v ValueType) String() string {
	if name, ok := valueTypeNames[v]; ok {
		return name
	}
	return fmt.Sprintf("valuetype(%d)", uint8(v))
}

// Width returns the fixed byte width of numeric types and 0 for strings.
func (v ValueType) Width() int {
	switch v {
	case TypeUint8:
		return 1
	case TypeInt32:
		return 4
	case TypeInt64, TypeFloat64:
		return 8
	default:
		return 0
	}
}

func (v ValueType) MarshalText() ([]byte, error) {
	name, ok := valueTypeNames[v]
	if !ok {
		return nil, fmt.Errorf("packet: unknown value type %d", uint8(v))
	}
	return []byte(name), nil
}

func (v *ValueType) UnmarshalText(text []byte) error {
	parsed, err := ParseValueType(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValueType accepts the canonical names plus "float" as used by the vendor tables.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return TypeString, nil
	case "uint8":
		return TypeUint8, nil
	case "int32":
		return TypeInt32, nil
	case "int64":
		return TypeInt64, nil
	case "float64", "float", "double":
		return TypeFloat64, nil
	default:
		return 0, fmt.Errorf("packet: unknown value type %q", s)
	}
}

// PrecisionField is the name of the uint8 field that sets the decimal
// precision for money fields decoded after it in the same packet.
const PrecisionField = "precision"

// FieldSpec describes one tagged field of a packet schema.
type FieldSpec struct {
	ID     uint8      `yaml:"id" json:"id"`
	Name   string     `yaml:"name" json:"name"`
	Type   ValueType  `yaml:"type" json:"type"`
	Length int        `yaml:"len" json:"len"`
	Format FormatKind `yaml:"format,omitempty" json:"format,omitempty"`
}

func (f FieldSpec) validate() error {
	if f.Name == "" {
		return fmt.Errorf("field %d: name is required", f.ID)
	}
	if _, ok := valueTypeNames[f.Type]; !ok {
		return fmt.Errorf("field %d (%s): unknown type %d", f.ID, f.Name, uint8(f.Type))
	}
	if f.Length <= 0 {
		return fmt.Errorf("field %d (%s): len must be > 0", f.ID, f.Name)
	}
	if w := f.Type.Width(); w > 0 && w != f.Length {
		return fmt.Errorf("field %d (%s): %s needs len %d, got %d", f.ID, f.Name, f.Type, w, f.Length)
	}
	if f.Type == TypeString && f.Format != FormatRaw {
		return fmt.Errorf("field %d (%s): strings cannot have a formatter", f.ID, f.Name)
	}
	if f.Name == PrecisionField && f.Type != TypeUint8 {
		return fmt.Errorf("field %d: %q must be uint8", f.ID, PrecisionField)
	}
	return nil
}

// PacketSchema is the ordered set of fields expected for one packet type.
type PacketSchema struct {
	Type   PacketType  `yaml:"type" json:"type"`
	Name   string      `yaml:"name" json:"name"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`

	index map[uint8]int
}

// Field looks up the spec for a field id.
func (s *PacketSchema) Field(id uint8) (FieldSpec, bool) {
	i, ok := s.index[id]
	if !ok {
		return FieldSpec{}, false
	}
	return s.Fields[i], true
}

// Len returns the number of fields in the schema.
func (s *PacketSchema) Len() int { return len(s.Fields) }

// compile validates the schema and returns a private copy with its id index built.
func (s PacketSchema) compile() (*PacketSchema, error) {
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("packet type %d: no fields", int8(s.Type))
	}
	out := &PacketSchema{
		Type:   s.Type,
		Name:   s.Name,
		Fields: append([]FieldSpec(nil), s.Fields...),
		index:  make(map[uint8]int, len(s.Fields)),
	}
	if out.Name == "" {
		out.Name = s.Type.String()
	}
	for i, f := range out.Fields {
		if err := f.validate(); err != nil {
			return nil, fmt.Errorf("packet type %d: %w", int8(s.Type), err)
		}
		if _, dup := out.index[f.ID]; dup {
			return nil, fmt.Errorf("packet type %d: duplicate field id %d", int8(s.Type), f.ID)
		}
		out.index[f.ID] = i
	}
	return out, nil
}

// Registry maps packet types to schemas. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	schemas map[PacketType]*PacketSchema
}

// NewRegistry validates a declarative schema table.
func NewRegistry(schemas ...PacketSchema) (*Registry, error) {
	r := &Registry{schemas: make(map[PacketType]*PacketSchema, len(schemas))}
	for _, s := range schemas {
		if _, dup := r.schemas[s.Type]; dup {
			return nil, fmt.Errorf("packet: duplicate schema for type %d", int8(s.Type))
		}
		compiled, err := s.compile()
		if err != nil {
			return nil, fmt.Errorf("packet: %w", err)
		}
		r.schemas[s.Type] = compiled
	}
	return r, nil
}

// Schema returns the schema registered for t.
func (r *Registry) Schema(t PacketType) (*PacketSchema, bool) {
	s, ok := r.schemas[t]
	return s, ok
}

// Types lists registered packet types in ascending order.
func (r *Registry) Types() []PacketType {
	out := make([]PacketType, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge returns a new registry where the given schemas replace or extend
// the receiver's. The receiver is left untouched.
func (r *Registry) Merge(schemas ...PacketSchema) (*Registry, error) {
	out := &Registry{schemas: make(map[PacketType]*PacketSchema, len(r.schemas)+len(schemas))}
	for t, s := range r.schemas {
		out.schemas[t] = s
	}
	seen := make(map[PacketType]bool, len(schemas))
	for _, s := range schemas {
		if seen[s.Type] {
			return nil, fmt.Errorf("packet: duplicate schema for type %d", int8(s.Type))
		}
		seen[s.Type] = true
		compiled, err := s.compile()
		if err != nil {
			return nil, fmt.Errorf("packet: %w", err)
		}
		out.schemas[s.Type] = compiled
	}
	return out, nil
}

var defaultRegistry = mustRegistry(defaultTable...)

// DefaultRegistry returns the built-in vendor schema table.
func DefaultRegistry() *Registry { return defaultRegistry }

func mustRegistry(schemas ...PacketSchema) *Registry {
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}
