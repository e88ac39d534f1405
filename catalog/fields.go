package catalog

import (
	"encoding/json"
	"fmt"
	"maps"
)

// rawFields keeps the JSON members a type does not model so they survive a read-modify-write cycle.
type rawFields map[string]json.RawMessage

// take decodes the member into dst and removes it from the fields. Members that fail to decode are kept as they
// are, and take reports false.
func take[T any](fields rawFields, key string, dst *T) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	delete(fields, key)
	return true
}

// encode merges the modeled members over the preserved ones.
func encode(extra rawFields, known map[string]any) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(extra)+len(known))
	maps.Copy(out, extra)
	for k, v := range known {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		out[k] = raw
	}
	return json.Marshal(out)
}

func decodeObject(data []byte) (rawFields, error) {
	var fields rawFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(rawFields)
	}
	return fields, nil
}
