package constant

import (
	"encoding/json"
	"fmt"
)

// enumNames json string form of a small integer enum.
type enumNames[T ~int8 | ~byte] struct {
	kind   string
	names  map[T]string
	values map[string]T
}

func newEnumNames[T ~int8 | ~byte](kind string, names map[T]string) *enumNames[T] {
	values := make(map[string]T, len(names))
	for v, s := range names {
		values[s] = v
	}
	return &enumNames[T]{kind: kind, names: names, values: values}
}

func (e *enumNames[T]) marshal(v T) ([]byte, error) {
	if s, ok := e.names[v]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown %s %d", e.kind, v)
}

func (e *enumNames[T]) unmarshal(bytes []byte, v *T) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	parsed, ok := e.values[s]
	if !ok {
		return fmt.Errorf("unknown %s %s", e.kind, s)
	}
	*v = parsed
	return nil
}
