// Package codec encodes field-name -> value mappings as a versioned,
// type-tagged JSON document so they decode back to the same Go types.
//
//	{"v":1,"fields":{"status":{"t":"string","v":"sent"},"total":{"t":"int64","v":1200}}}
package codec

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// Version is the document version written by Encode.
const Version = 1

var ErrUnsupportedVersion = errors.New("codec: unsupported document version")

// Value is a single type-tagged value.
type Value struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

type document struct {
	V      int              `json:"v"`
	Fields map[string]Value `json:"fields"`
}

// Encode renders fields as a versioned document.
func Encode(fields map[string]any) ([]byte, error) {
	doc := document{V: Version, Fields: make(map[string]Value, len(fields))}
	for k, v := range fields {
		tv, err := EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("codec: field %q: %w", k, err)
		}
		doc.Fields[k] = tv
	}
	return json.Marshal(doc)
}

// Decode parses a document produced by Encode. Empty input yields an empty map.
func Decode(b []byte) (map[string]any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return map[string]any{}, nil
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	if doc.V != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.V)
	}
	out := make(map[string]any, len(doc.Fields))
	for k, tv := range doc.Fields {
		v, err := DecodeValue(tv)
		if err != nil {
			return nil, fmt.Errorf("codec: field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Marshal encodes a single value as a tagged JSON object.
func Marshal(v any) ([]byte, error) {
	tv, err := EncodeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tv)
}

// Unmarshal reverses Marshal.
func Unmarshal(b []byte) (any, error) {
	var tv Value
	if err := json.Unmarshal(b, &tv); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return DecodeValue(tv)
}

// EncodeValue tags v with its Go type. Slices of values (composite keys) are tagged "list".
func EncodeValue(v any) (Value, error) {
	// nil pointers may still satisfy driver.Valuer through a value-receiver method
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Value{T: "null"}, nil
	}
	var tag string
	switch x := v.(type) {
	case nil:
		return Value{T: "null"}, nil
	case bool:
		tag = "bool"
	case string:
		tag = "string"
	case int:
		tag = "int"
	case int8:
		tag = "int8"
	case int16:
		tag = "int16"
	case int32:
		tag = "int32"
	case int64:
		tag = "int64"
	case uint:
		tag = "uint"
	case uint8:
		tag = "uint8"
	case uint16:
		tag = "uint16"
	case uint32:
		tag = "uint32"
	case uint64:
		tag = "uint64"
	case float32:
		tag = "float32"
	case float64:
		tag = "float64"
	case time.Time:
		tag = "time"
	case []byte:
		tag = "bytes"
	case []any:
		list := make([]Value, len(x))
		for i, e := range x {
			tv, err := EncodeValue(e)
			if err != nil {
				return Value{}, err
			}
			list[i] = tv
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return Value{}, err
		}
		return Value{T: "list", V: raw}, nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return Value{}, err
		}
		return EncodeValue(dv)
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
			return EncodeValue(rv.Elem().Interface())
		}
		tag = "json"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Value{T: tag, V: raw}, nil
}

// DecodeValue restores the Go value described by tv.
func DecodeValue(tv Value) (any, error) {
	switch tv.T {
	case "null":
		return nil, nil
	case "bool":
		return decodeAs[bool](tv.V)
	case "string":
		return decodeAs[string](tv.V)
	case "int":
		return decodeAs[int](tv.V)
	case "int8":
		return decodeAs[int8](tv.V)
	case "int16":
		return decodeAs[int16](tv.V)
	case "int32":
		return decodeAs[int32](tv.V)
	case "int64":
		return decodeAs[int64](tv.V)
	case "uint":
		return decodeAs[uint](tv.V)
	case "uint8":
		return decodeAs[uint8](tv.V)
	case "uint16":
		return decodeAs[uint16](tv.V)
	case "uint32":
		return decodeAs[uint32](tv.V)
	case "uint64":
		return decodeAs[uint64](tv.V)
	case "float32":
		return decodeAs[float32](tv.V)
	case "float64":
		return decodeAs[float64](tv.V)
	case "time":
		return decodeAs[time.Time](tv.V)
	case "bytes":
		return decodeAs[[]byte](tv.V)
	case "list":
		var list []Value
		if err := json.Unmarshal(tv.V, &list); err != nil {
			return nil, err
		}
		out := make([]any, len(list))
		for i, e := range list {
			v, err := DecodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case "json":
		return decodeAs[any](tv.V)
	default:
		return nil, fmt.Errorf("unknown value tag %q", tv.T)
	}
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
