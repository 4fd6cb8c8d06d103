// Package config defines the job file model read by the CLI: named
// connections, defaults and an ordered list of jobs, each with a source,
// a transform chain and a sink.
//
// Example (YAML, trimmed):
//
//	connections:
//	  warehouse: { kind: postgres, dsn: "${WAREHOUSE_DSN}" }
//	jobs:
//	  - name: users
//	    source: { kind: http, url: https://api.example.com/users, data_path: data.items }
//	    transform:
//	      - { kind: sanitize_names }
//	      - { kind: dedup, options: { keys: [id], policy: keep-last } }
//	    sink: { kind: postgres, connection: warehouse, table: users, upsert: true, primary_key: [id] }
//
// The same structure is accepted as JSON.
package config

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// File is the top-level object of a job file.
type File struct {
	// Schedule is an optional cron expression; when set the CLI keeps
	// running and fires every job on each tick.
	Schedule string `json:"schedule" yaml:"schedule"`

	Defaults Defaults `json:"defaults" yaml:"defaults"`

	// Connections are shared handles referenced by name from query sources
	// and postgres sinks.
	Connections map[string]Connection `json:"connections" yaml:"connections"`

	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Defaults apply to every job unless overridden.
type Defaults struct {
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`
	ChunkSize   int `json:"chunk_size" yaml:"chunk_size"`
}

// Connection names a database. Kind is one of the registered storage kinds
// (postgres, sqlite, mysql, sqlserver).
type Connection struct {
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

// Job is one source -> transforms -> sink pipeline.
type Job struct {
	Name      string      `json:"name" yaml:"name"`
	Source    Source      `json:"source" yaml:"source"`
	Transform []Transform `json:"transform" yaml:"transform"`
	Sink      Sink        `json:"sink" yaml:"sink"`
}

// Source selects where a job reads from. Kind is file, query or http; the
// other fields apply per kind.
type Source struct {
	Kind string `json:"kind" yaml:"kind"`

	// file
	Format    string `json:"format" yaml:"format"`
	Path      string `json:"path" yaml:"path"`
	Comma     string `json:"comma" yaml:"comma"`
	TrimSpace bool   `json:"trim_space" yaml:"trim_space"`

	// file (json) and http
	DataPath string `json:"data_path" yaml:"data_path"`

	// query
	Connection string `json:"connection" yaml:"connection"`
	Query      string `json:"query" yaml:"query"`

	// http
	URL            string            `json:"url" yaml:"url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	QueryParams    map[string]string `json:"query_params" yaml:"query_params"`
	Auth           Auth              `json:"auth" yaml:"auth"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxIterations  int               `json:"max_flatten_iterations" yaml:"max_flatten_iterations"`
}

// Auth configures HTTP authentication. Kind is "", "bearer" or "basic".
type Auth struct {
	Kind     string `json:"kind" yaml:"kind"`
	Token    string `json:"token" yaml:"token"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Transform is a single step of the chain. The options shape is defined by
// the operation.
type Transform struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Sink selects where a job writes. Kind is file or postgres.
type Sink struct {
	Kind string `json:"kind" yaml:"kind"`

	// file
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
	Comma  string `json:"comma" yaml:"comma"`

	// postgres
	Connection string   `json:"connection" yaml:"connection"`
	Schema     string   `json:"schema" yaml:"schema"`
	Table      string   `json:"table" yaml:"table"`
	AutoCreate bool     `json:"auto_create" yaml:"auto_create"`
	Upsert     bool     `json:"upsert" yaml:"upsert"`
	PrimaryKey []string `json:"primary_key" yaml:"primary_key"`
	ChunkSize  int      `json:"chunk_size" yaml:"chunk_size"`
}

// Options fetches typed values from a free-form map. Missing keys and
// unexpected types yield the default.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64
// and YAML numbers as int; both are accepted.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && len(s) > 0 {
		return []rune(s)[0]
	}
	return def
}

// StringMap returns the string-valued entries of an object value. It never
// returns nil.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if m, ok := o[key].(map[string]any); ok {
		for k, vv := range m {
			if s, ok := vv.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns the string elements of an array value, or nil.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any { return o[key] }

// UnmarshalJSON decodes a missing or null object to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML documents.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	var tmp map[string]any
	if err := n.Decode(&tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
