package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tags a parsed JSON value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindScalar
	KindObject
	KindArray
)

// Value is a parsed JSON value that preserves object field order. The
// standard map decoding loses it, and column ordering must be stable
// first-seen order across runs.
type Value struct {
	Kind   ValueKind
	keys   []string
	fields map[string]*Value
	items  []*Value
	scalar string
}

// Keys returns the object's field names in source order
func (v *Value) Keys() []string {
	return v.keys
}

// Field returns the named object field, or nil
func (v *Value) Field(name string) *Value {
	return v.fields[name]
}

// Items returns the array elements
func (v *Value) Items() []*Value {
	return v.items
}

// Scalar returns the rendered scalar text. Numbers keep their source
// representation, so large values never degrade to scientific notation in
// the CSV.
func (v *Value) Scalar() string {
	return v.scalar
}

// ParseValue parses a single JSON document into a Value
func ParseValue(raw []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := parseNext(dec)
	if err != nil {
		return nil, err
	}

	// Reject trailing garbage after the document
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}

	return v, nil
}

// parseNext consumes one complete value from the decoder
func parseNext(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return &Value{Kind: KindScalar, scalar: t}, nil
	case json.Number:
		return &Value{Kind: KindScalar, scalar: t.String()}, nil
	case bool:
		if t {
			return &Value{Kind: KindScalar, scalar: "true"}, nil
		}
		return &Value{Kind: KindScalar, scalar: "false"}, nil
	case nil:
		return &Value{Kind: KindNull}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// parseObject consumes object members up to and including the closing brace
func parseObject(dec *json.Decoder) (*Value, error) {
	obj := &Value{
		Kind:   KindObject,
		fields: make(map[string]*Value),
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", keyTok)
		}

		val, err := parseNext(dec)
		if err != nil {
			return nil, err
		}

		if _, dup := obj.fields[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.fields[key] = val
	}

	// Closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return obj, nil
}

// parseArray consumes array elements up to and including the closing bracket
func parseArray(dec *json.Decoder) (*Value, error) {
	arr := &Value{Kind: KindArray}

	for dec.More() {
		val, err := parseNext(dec)
		if err != nil {
			return nil, err
		}
		arr.items = append(arr.items, val)
	}

	// Closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return arr, nil
}
