package convo

import (
	"encoding/json"
	"sort"
)

// Signature returns the canonical dedup key for a tool call: the tool
// name concatenated with a stable JSON encoding of its parameters.
// Two parameter maps that differ only in key insertion order produce
// the same signature, since Go's map iteration is already randomized
// and we additionally sort keys explicitly before encoding.
func Signature(toolName string, parameters map[string]any) string {
	return toolName + "|" + Canonical(parameters)
}

// Canonical renders parameters as JSON with keys in sorted order,
// recursively, so the result is stable regardless of how the map was
// built.
func Canonical(v any) string {
	b, err := json.Marshal(canonicalize(v))
	if err != nil {
		return ""
	}
	return string(b)
}

// canonicalize walks a decoded JSON-like value (maps/slices/scalars)
// and converts maps into sorted key/value pairs so json.Marshal emits
// them in a deterministic order. encoding/json already sorts map keys
// when marshaling map[string]any, but nested maps loaded via
// map[string]interface{} from different sources (e.g. parsed JSON vs.
// hand-built Go maps) are handled identically here for clarity and to
// guard against future encoders that don't sort.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedPairs, 0, len(keys))
		for _, k := range keys {
			out = append(out, pair{k, canonicalize(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return val
	}
}

type pair struct {
	Key   string
	Value any
}

// orderedPairs marshals as a JSON object with keys in the order given,
// rather than letting encoding/json re-sort (or not sort) a map.
type orderedPairs []pair

func (o orderedPairs) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, p := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
