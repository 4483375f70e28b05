package entities

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Optional tags a value that may legitimately be missing from a sample.
// A value that is not present must not be interpreted.
type Optional[T any] struct {
	value   T
	present bool
}

// Some returns a present Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// None returns an absent Optional
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// Present reports whether the value exists
func (o Optional[T]) Present() bool {
	return o.present
}

// OrElse returns the value when present, fallback otherwise
func (o Optional[T]) OrElse(fallback T) T {
	if !o.present {
		return fallback
	}
	return o.value
}

// MarshalJSON renders absent values as null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON treats null as absent
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// MarshalYAML renders absent values as null
func (o Optional[T]) MarshalYAML() (interface{}, error) {
	if !o.present {
		return nil, nil
	}
	return o.value, nil
}

// UnmarshalYAML treats a null node as absent
func (o *Optional[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
