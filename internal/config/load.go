package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"etlcore/internal/etlerr"
)

// Load reads a job file. Files ending in .yaml or .yml are decoded as YAML,
// everything else as JSON. Unknown fields are rejected. ${VAR} references in
// DSNs, paths, URLs, headers and credentials are expanded from the
// environment.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, etlerr.IO("config read", err)
	}
	var f *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err = DecodeYAML(bytes.NewReader(b))
	default:
		f, err = DecodeJSON(bytes.NewReader(b))
	}
	if err != nil {
		return nil, etlerr.Configf("config", "%s: %v", path, err)
	}
	return f, nil
}

// DecodeJSON decodes a job file from JSON and expands environment
// references.
func DecodeJSON(r io.Reader) (*File, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	f.expandEnv(os.Getenv)
	return &f, nil
}

// DecodeYAML decodes a job file from YAML and expands environment
// references. An empty document is an error.
func DecodeYAML(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode yaml: empty document")
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	f.expandEnv(os.Getenv)
	return &f, nil
}

func (f *File) expandEnv(getenv func(string) string) {
	x := func(s string) string { return os.Expand(s, getenv) }
	for name, c := range f.Connections {
		c.DSN = x(c.DSN)
		f.Connections[name] = c
	}
	for i := range f.Jobs {
		src := &f.Jobs[i].Source
		src.Path = x(src.Path)
		src.URL = x(src.URL)
		src.Auth.Token = x(src.Auth.Token)
		src.Auth.Username = x(src.Auth.Username)
		src.Auth.Password = x(src.Auth.Password)
		for k, v := range src.Headers {
			src.Headers[k] = x(v)
		}
		for k, v := range src.QueryParams {
			src.QueryParams[k] = x(v)
		}
		f.Jobs[i].Sink.Path = x(f.Jobs[i].Sink.Path)
	}
}
