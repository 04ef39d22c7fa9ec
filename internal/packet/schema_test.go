package packet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []PacketType{Quote, Quote2, Quote3}, reg.Types())

	q, ok := reg.Schema(Quote)
	require.True(t, ok)
	ltp, ok := q.Field(67)
	require.True(t, ok)
	assert.Equal(t, "ltp", ltp.Name)
	assert.Equal(t, FormatMoney, ltp.Format)

	_, ok = reg.Schema(51)
	assert.False(t, ok)
}

func TestNewRegistry_Validation(t *testing.T) {
	cases := map[string]PacketSchema{
		"no fields":       {Type: 1},
		"bad width":       {Type: 1, Fields: []FieldSpec{{ID: 1, Name: "x", Type: TypeInt32, Length: 8}}},
		"missing name":    {Type: 1, Fields: []FieldSpec{{ID: 1, Type: TypeUint8, Length: 1}}},
		"zero len":        {Type: 1, Fields: []FieldSpec{{ID: 1, Name: "s", Type: TypeString}}},
		"string format":   {Type: 1, Fields: []FieldSpec{{ID: 1, Name: "s", Type: TypeString, Length: 4, Format: FormatMoney}}},
		"dup id":          {Type: 1, Fields: []FieldSpec{{ID: 1, Name: "a", Type: TypeUint8, Length: 1}, {ID: 1, Name: "b", Type: TypeUint8, Length: 1}}},
		"precision type":  {Type: 1, Fields: []FieldSpec{{ID: 1, Name: PrecisionField, Type: TypeInt32, Length: 4}}},
		"unknown vt":      {Type: 1, Fields: []FieldSpec{{ID: 1, Name: "a", Type: 42, Length: 1}}},
	}
	for name, s := range cases {
		_, err := NewRegistry(s)
		assert.Error(t, err, name)
	}

	ok := PacketSchema{Type: 1, Fields: []FieldSpec{{ID: 1, Name: "a", Type: TypeUint8, Length: 1}}}
	_, err := NewRegistry(ok, ok)
	assert.Error(t, err, "duplicate type")
}

func TestRegistry_MergeLeavesBaseUntouched(t *testing.T) {
	base := DefaultRegistry()
	extra := PacketSchema{Type: 53, Fields: []FieldSpec{{ID: 65, Name: "symbol", Type: TypeString, Length: 20}}}
	override := PacketSchema{Type: Quote3, Fields: []FieldSpec{{ID: 99, Name: "iv", Type: TypeFloat64, Length: 8, Format: FormatPercent}}}

	merged, err := base.Merge(extra, override)
	require.NoError(t, err)

	assert.Len(t, merged.Types(), 4)
	assert.Len(t, base.Types(), 3)

	s, _ := merged.Schema(Quote3)
	assert.Equal(t, 1, s.Len())
	orig, _ := base.Schema(Quote3)
	assert.Equal(t, 7, orig.Len())
	added, _ := merged.Schema(53)
	assert.Equal(t, "unknown(53)", added.Name)
}

func TestParseSchemas(t *testing.T) {
	data := []byte(`
packets:
  - type: 53
    name: greeks
    fields:
      - {id: 65, name: symbol, type: string, len: 20}
      - {id: 66, name: precision, type: uint8, len: 1}
      - {id: 67, name: rho, type: float, len: 8, format: money}
      - {id: 68, name: ts, type: int32, len: 4, format: timestamp}
`)
	schemas, err := ParseSchemas(data)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	s := schemas[0]
	assert.Equal(t, PacketType(53), s.Type)
	assert.Equal(t, "greeks", s.Name)
	require.Len(t, s.Fields, 4)
	assert.Equal(t, TypeFloat64, s.Fields[2].Type)
	assert.Equal(t, FormatMoney, s.Fields[2].Format)
	assert.Equal(t, FormatTimestamp, s.Fields[3].Format)
	assert.Equal(t, FormatRaw, s.Fields[0].Format)

	_, err = ParseSchemas([]byte("packets: []"))
	assert.Error(t, err)
	_, err = ParseSchemas([]byte("packets:\n  - type: 1\n    fields:\n      - {id: 1, name: a, type: quad, len: 16}\n"))
	assert.Error(t, err)
}

func TestLoadSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
packets:
  - type: 53
    fields:
      - {id: 65, name: symbol, type: string, len: 20}
`), 0o600))

	reg, err := LoadSchemaFile(DefaultRegistry(), path)
	require.NoError(t, err)
	_, ok := reg.Schema(53)
	assert.True(t, ok)

	_, err = LoadSchemaFile(DefaultRegistry(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
