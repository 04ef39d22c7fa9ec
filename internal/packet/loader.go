package packet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk layout of an extra schema table:
//
//	packets:
//	  - type: 53
//	    name: quote4
//	    fields:
//	      - {id: 65, name: symbol, type: string, len: 20}
//	      - {id: 67, name: ltp, type: float64, len: 8, format: money}
type schemaFile struct {
	Packets []PacketSchema `yaml:"packets"`
}

// ParseSchemas decodes a YAML schema table.
func ParseSchemas(data []byte) ([]PacketSchema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("packet: parse schema: %w", err)
	}
	if len(f.Packets) == 0 {
		return nil, fmt.Errorf("packet: schema file defines no packets")
	}
	return f.Packets, nil
}

// LoadSchemaFile reads path and merges its packets over base.
func LoadSchemaFile(base *Registry, path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("packet: read schema %q: %w", path, err)
	}
	schemas, err := ParseSchemas(data)
	if err != nil {
		return nil, err
	}
	return base.Merge(schemas...)
}
