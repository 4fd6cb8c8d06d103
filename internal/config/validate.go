package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"etlcore/internal/codec"
	"etlcore/internal/etlerr"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the file,
// e.g. "jobs[1].sink.primary_key".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate lints a decoded File. It checks structure only: operation
// options are checked when the chain is built and connections when they are
// opened.
func Validate(f *File) []Issue {
	var v validator
	if f == nil {
		v.errorf("", "file is empty")
		return v.issues
	}

	if f.Schedule != "" {
		if _, err := cron.ParseStandard(f.Schedule); err != nil {
			v.errorf("schedule", "invalid cron expression %q: %v", f.Schedule, err)
		}
	}
	if f.Defaults.MaxParallel < 0 {
		v.errorf("defaults.max_parallel", "must not be negative")
	}
	if f.Defaults.ChunkSize < 0 {
		v.errorf("defaults.chunk_size", "must not be negative")
	}
	for name, c := range f.Connections {
		path := "connections." + name
		if strings.TrimSpace(c.Kind) == "" {
			v.errorf(path+".kind", "connection kind must not be empty")
		}
		if strings.TrimSpace(c.DSN) == "" {
			v.errorf(path+".dsn", "connection dsn must not be empty")
		}
	}

	if len(f.Jobs) == 0 {
		v.errorf("jobs", "no jobs configured")
	}
	seen := make(map[string]int, len(f.Jobs))
	for i, j := range f.Jobs {
		path := fmt.Sprintf("jobs[%d]", i)
		if strings.TrimSpace(j.Name) == "" {
			v.errorf(path+".name", "job name must not be empty; it identifies runs in logs and metrics")
		} else if prev, dup := seen[j.Name]; dup {
			v.errorf(path+".name", "duplicate job name %q (also jobs[%d])", j.Name, prev)
		} else {
			seen[j.Name] = i
		}
		v.source(path+".source", j.Source, f.Connections)
		v.transforms(path+".transform", j.Transform)
		v.sink(path+".sink", j.Sink, f.Connections)
	}
	return v.issues
}

// Err folds the error-severity issues into one config error, or returns
// nil when there are none.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return etlerr.New(etlerr.KindConfig, "config validate", errors.Join(errs...))
}

type validator struct{ issues []Issue }

func (v *validator) errorf(path, format string, args ...any) {
	v.issues = append(v.issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(path, format string, args ...any) {
	v.issues = append(v.issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) source(path string, s Source, conns map[string]Connection) {
	switch strings.ToLower(s.Kind) {
	case "":
		v.errorf(path+".kind", "source kind must not be empty")
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			v.errorf(path+".path", "file source requires a non-empty path")
		}
		if _, err := codec.ParseFormat(s.Format); err != nil {
			v.errorf(path+".format", "%v", err)
		}
		if len([]rune(s.Comma)) > 1 {
			v.errorf(path+".comma", "delimiter must be a single character")
		}
	case "query":
		if strings.TrimSpace(s.Query) == "" {
			v.errorf(path+".query", "query source requires a query")
		}
		v.connection(path+".connection", s.Connection, conns, "")
	case "http":
		if strings.TrimSpace(s.URL) == "" {
			v.errorf(path+".url", "http source requires a url")
		} else if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
			v.errorf(path+".url", "url %q must use http or https", s.URL)
		}
		switch strings.ToLower(s.Auth.Kind) {
		case "":
		case "bearer":
			if s.Auth.Token == "" {
				v.errorf(path+".auth.token", "bearer auth requires a token")
			}
		case "basic":
			if s.Auth.Username == "" {
				v.errorf(path+".auth.username", "basic auth requires a username")
			}
		default:
			v.errorf(path+".auth.kind", "unknown auth kind %q", s.Auth.Kind)
		}
		if s.TimeoutSeconds < 0 {
			v.errorf(path+".timeout_seconds", "must not be negative")
		}
	default:
		v.errorf(path+".kind", "unknown source kind %q (want file, query or http)", s.Kind)
	}
}

func (v *validator) transforms(path string, ts []Transform) {
	if len(ts) == 0 {
		return
	}
	for i, t := range ts {
		if strings.TrimSpace(t.Kind) == "" {
			v.errorf(fmt.Sprintf("%s[%d].kind", path, i), "transform kind must not be empty")
		}
	}
}

func (v *validator) sink(path string, s Sink, conns map[string]Connection) {
	switch strings.ToLower(s.Kind) {
	case "":
		v.errorf(path+".kind", "sink kind must not be empty")
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			v.errorf(path+".path", "file sink requires a non-empty path")
		}
		switch f, err := codec.ParseFormat(s.Format); {
		case err != nil:
			v.errorf(path+".format", "%v", err)
		case f == codec.JSON:
			v.errorf(path+".format", "json documents cannot be written; use ndjson")
		}
	case "postgres":
		v.connection(path+".connection", s.Connection, conns, "postgres")
		if strings.TrimSpace(s.Table) == "" {
			v.errorf(path+".table", "postgres sink requires a table")
		}
		if s.Upsert && len(s.PrimaryKey) == 0 {
			v.errorf(path+".primary_key", "upsert requires a primary key")
		}
		if !s.Upsert && !s.AutoCreate && len(s.PrimaryKey) > 0 {
			v.warnf(path+".primary_key", "primary key is only used by upsert or auto_create")
		}
		if s.ChunkSize < 0 {
			v.errorf(path+".chunk_size", "must not be negative")
		}
	default:
		v.errorf(path+".kind", "unknown sink kind %q (want file or postgres)", s.Kind)
	}
}

func (v *validator) connection(path, name string, conns map[string]Connection, wantKind string) {
	if strings.TrimSpace(name) == "" {
		v.errorf(path, "connection name must not be empty")
		return
	}
	c, ok := conns[name]
	if !ok {
		v.errorf(path, "unknown connection %q", name)
		return
	}
	if wantKind != "" && !strings.EqualFold(c.Kind, wantKind) && !strings.EqualFold(c.Kind, "postgresql") {
		v.errorf(path, "connection %q is %s, want %s", name, c.Kind, wantKind)
	}
}
