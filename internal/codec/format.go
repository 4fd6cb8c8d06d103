// Package codec names the file encodings shared by file sources and sinks.
// The encoders live in the csv, json and parquet subpackages.
package codec

import (
	"fmt"
	"strings"
)

// Format names a file encoding.
type Format string

const (
	Parquet Format = "parquet"
	CSV     Format = "csv"
	JSON    Format = "json"
	NDJSON  Format = "ndjson"
)

// ParseFormat accepts a format name case-insensitively, including the
// aliases "jsonl" and "jsonlines" for NDJSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parquet":
		return Parquet, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "ndjson", "jsonl", "jsonlines":
		return NDJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}
