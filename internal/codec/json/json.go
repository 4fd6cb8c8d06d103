// Package json decodes JSON documents and newline-delimited JSON into
// tables and encodes tables as newline-delimited JSON.
//
// Decoding preserves object key order, so columns and struct fields appear
// in the order they were first seen in the input. Numbers stay exact until a
// column type is chosen.
package json

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"etlcore/internal/table"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLineBytes bounds a single NDJSON record.
const maxLineBytes = 64 << 20

// Decode parses one JSON document. Objects become *table.Object, arrays
// []any, numbers json.Number.
func Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("json: empty document")
	}
	// A trailing newline terminates a bare top-level number, so hitting EOF
	// while reading the value always means truncated input.
	buf := make([]byte, len(data)+1)
	copy(buf, data)
	buf[len(data)] = '\n'

	iter := jsoniter.ParseBytes(api, buf)
	v := readValue(iter)
	if iter.Error != nil {
		if errors.Is(iter.Error, io.EOF) {
			return nil, errors.New("json: unexpected end of input")
		}
		return nil, fmt.Errorf("json: %w", iter.Error)
	}
	if iter.WhatIsNext() != jsoniter.InvalidValue || !errors.Is(iter.Error, io.EOF) {
		return nil, errors.New("json: trailing data after document")
	}
	return v, nil
}

// DecodeLines parses newline-delimited JSON, one value per non-blank line.
func DecodeLines(r io.Reader) ([]any, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	var out []any
	for line := 1; sc.Scan(); line++ {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		v, err := Decode(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return out, nil
}

func readValue(iter *jsoniter.Iterator) any {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		obj := table.NewObject()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			obj.Set(key, readValue(it))
			return it.Error == nil
		})
		return obj
	case jsoniter.ArrayValue:
		arr := []any{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			arr = append(arr, readValue(it))
			return it.Error == nil
		})
		return arr
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.NumberValue:
		return iter.ReadNumber()
	case jsoniter.BoolValue:
		return iter.ReadBool()
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil
	default:
		iter.ReportError("decode", "unexpected token")
		return nil
	}
}

// Select walks a dot-separated path through objects (by key) and arrays
// (by index). An empty path returns doc unchanged.
func Select(doc any, path string) (any, error) {
	if path == "" {
		return doc, nil
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch x := cur.(type) {
		case *table.Object:
			v, ok := x.Values[seg]
			if !ok {
				return nil, fmt.Errorf("json: path %q: key %q not found", path, seg)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(x) {
				return nil, fmt.Errorf("json: path %q: bad index %q", path, seg)
			}
			cur = x[i]
		default:
			return nil, fmt.Errorf("json: path %q: cannot descend into %T at %q", path, cur, seg)
		}
	}
	return cur, nil
}

// Rows turns a decoded document into row values: an array yields its
// elements, null yields nothing, anything else is a single row.
func Rows(doc any) []any {
	switch x := doc.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

// ReadDocument decodes a single JSON document from r, selects dataPath and
// builds a table from the resulting rows.
func ReadDocument(r io.Reader, dataPath string) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("json: read: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	doc, err = Select(doc, dataPath)
	if err != nil {
		return nil, err
	}
	return table.FromObjects(Rows(doc))
}

// ReadLines decodes newline-delimited JSON from r into a table.
func ReadLines(r io.Reader) (*table.Table, error) {
	rows, err := DecodeLines(r)
	if err != nil {
		return nil, err
	}
	return table.FromObjects(rows)
}

// WriteLines writes one JSON object per row with keys in column order.
// Nulls are written as null.
func WriteLines(w io.Writer, t *table.Table) error {
	bw := bufio.NewWriter(w)
	enc := api.NewEncoder(bw)
	cols := t.Columns()
	for i := 0; i < t.NumRows(); i++ {
		obj := &table.Object{Keys: make([]string, len(cols)), Values: make(map[string]any, len(cols))}
		for j, c := range cols {
			obj.Keys[j] = c.Name
			obj.Values[c.Name] = c.Values[i]
		}
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("json: row %d: %w", i, err)
		}
	}
	return bw.Flush()
}
