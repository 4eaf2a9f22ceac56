// Package lookupjson decodes JSON filter objects such as
// {"products__categories__name__in": ["foo", "bar"]} into lookup conditions,
// keeping key order and converting values to what the target column stores.
package lookupjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lookupsql/internal/introspection"
	"lookupsql/internal/lookup"
	"lookupsql/internal/query"
	"lookupsql/internal/uuidutil"
)

// ErrNotAnObject is returned when the filter document is not a JSON object.
var ErrNotAnObject = errors.New("filter must be a JSON object")

// ColumnFunc reports the schema column a lookup path ends on.
type ColumnFunc func(path []string) (introspection.Column, bool)

// storageCompared operators compare the stored value directly, so their values
// are converted to the column's storage form.
var storageCompared = map[string]bool{
	lookup.Exact: true,
	"isnt":       true,
	"gt":         true,
	"gte":        true,
	"lt":         true,
	"lte":        true,
	"in":         true,
	"range":      true,
}

// Decoder turns JSON objects into ordered lookup leaves.
type Decoder struct {
	registry *lookup.Registry
	columns  ColumnFunc
}

// New returns a Decoder. columns may be nil, in which case only JSON
// numbers are converted.
func New(registry *lookup.Registry, columns ColumnFunc) *Decoder {
	if registry == nil {
		registry = lookup.NewRegistry()
	}
	return &Decoder{registry: registry, columns: columns}
}

// Decode reads one JSON object. Pairs keep document order so the rendered
// predicates do too. An empty or whitespace-only document yields nil.
func (d *Decoder) Decode(data []byte) (query.Leaf, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read filter: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotAnObject
	}

	var leaf query.Leaf
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read filter key: %w", err)
		}
		key := tok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to read value for %q: %w", key, err)
		}
		raw, err = normalizeNumbers(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", key, err)
		}
		value, err := d.convert(key, raw)
		if err != nil {
			return nil, err
		}
		leaf = append(leaf, query.Lookup{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read filter: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after filter object")
	}
	return leaf, nil
}

func (d *Decoder) convert(key string, value any) (any, error) {
	parsed, err := d.registry.Parse(key, value)
	if err != nil {
		return nil, err
	}
	if d.columns == nil || !storageCompared[parsed.Operator] {
		return value, nil
	}
	col, ok := d.columns(parsed.Path)
	if !ok {
		return value, nil
	}

	storage := uuidutil.StorageOf(col.DataType)
	if storage == uuidutil.NotUUID {
		return value, nil
	}
	if items, ok := value.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			v, err := toUUID(key, item, storage)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return toUUID(key, value, storage)
}

func toUUID(key string, value any, storage uuidutil.Storage) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	u, err := uuidutil.Parse(s)
	if err != nil {
		if storage == uuidutil.Binary {
			// Binary columns hold more than UUIDs; leave other strings alone.
			return value, nil
		}
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if storage == uuidutil.Binary {
		return uuidutil.ToBytes(u), nil
	}
	return u, nil
}

// ErrNumberOutOfRange is returned for JSON numbers that have no exact int64,
// uint64 or finite float64 form.
var ErrNumberOutOfRange = errors.New("number out of range")

// normalizeNumbers turns json.Number into int64, uint64 or float64,
// recursively. Integer literals never fall back to float.
func normalizeNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		return parseNumber(val)
	case []any:
		for i := range val {
			n, err := normalizeNumbers(val[i])
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	case map[string]any:
		for k := range val {
			n, err := normalizeNumbers(val[k])
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	}
	return v, nil
}

func parseNumber(n json.Number) (any, error) {
	s := n.String()
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	if !strings.ContainsAny(s, ".eE") {
		return nil, fmt.Errorf("%w: %s", ErrNumberOutOfRange, s)
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNumberOutOfRange, s)
	}
	return f, nil
}

// DecodeValues reads a JSON object of column values for UPDATE and INSERT.
func DecodeValues(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	if values == nil {
		return nil, ErrNotAnObject
	}
	normalized, err := normalizeNumbers(values)
	if err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	return normalized.(map[string]any), nil
}
