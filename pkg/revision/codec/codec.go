// Package codec provides the serialization boundary used to snapshot an
// entity's tracked field values.
package codec

import (
	"encoding/json"
	"fmt"
)

// Codec turns an entity into an opaque serialized payload restricted to the
// adapter's declared field set. Implementations must be safe for concurrent
// use.
type Codec interface {
	// Format names the serialization format (stored alongside payloads so
	// they can be decoded later).
	Format() string

	// Encode serializes entity. A nil fields list means all fields; exclude
	// is applied afterwards. Field names refer to the serialized names
	// (for the JSON codec, the json tag name or the exported field name).
	Encode(entity any, fields, exclude []string) ([]byte, error)
}

// JSON is the reference codec. It round-trips the entity through
// encoding/json and filters top-level keys by the adapter's field lists,
// which keeps field selection independent of struct layout.
type JSON struct{}

// Format implements Codec.
func (JSON) Format() string { return "json" }

// Encode implements Codec.
func (JSON) Encode(entity any, fields, exclude []string) ([]byte, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("serialize entity: %w", err)
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("entity did not serialize to an object: %w", err)
	}

	keep := all
	if fields != nil {
		keep = make(map[string]json.RawMessage, len(fields))
		for _, name := range fields {
			if v, ok := all[name]; ok {
				keep[name] = v
			}
		}
	}
	for _, name := range exclude {
		delete(keep, name)
	}

	out, err := json.Marshal(keep)
	if err != nil {
		return nil, fmt.Errorf("serialize filtered entity: %w", err)
	}
	return out, nil
}
