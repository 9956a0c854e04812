// Package jsonvalue decodes free-form JSON without losing integer
// precision. Integral numbers that fit in 64 bits decode to int64, every
// other number to float64.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Decode parses data into maps, slices and scalars.
func Decode(data []byte) (any, error) {
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Unmarshal is json.Unmarshal with numbers held as json.Number and then
// normalized. Only free-form (any) fields are affected.
func Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("jsonvalue: unexpected data after top-level value")
	}
	if p, ok := v.(*any); ok {
		*p = Normalize(*p)
	}
	return nil
}

// Canonical returns v as it reads back after a JSON round trip.
func Canonical(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Normalize replaces every json.Number inside v.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = Normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = Normalize(e)
		}
		return t
	}
	return v
}

// NormalizeMap is Normalize for the common metadata shape.
func NormalizeMap(m map[string]any) map[string]any {
	for k, e := range m {
		m[k] = Normalize(e)
	}
	return m
}
