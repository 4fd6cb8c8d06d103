// Package etlerr defines the error taxonomy shared by sources, sinks, the
// flattener and the pipeline.
//
// Every component-level failure is an *Error carrying a Kind and the operation
// that failed. Callers match on the kind with errors.Is against the exported
// sentinels:
//
//	if errors.Is(err, etlerr.ErrConfig) { ... }
//
// and recover the operation with errors.As when they need it for logging.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindIO     Kind = iota + 1 // file open/read/write
	KindQuery                  // SQL execution, connection, COPY
	KindHTTP                   // non-2xx status, network, decode of a response
	KindConfig                 // invalid or missing configuration
	KindSchema                 // structure that cannot be represented downstream
)

// String returns the short, lowercase name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindQuery:
		return "query"
	case KindHTTP:
		return "http"
	case KindConfig:
		return "config"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They carry no operation and no cause.
var (
	ErrIO     = &Error{Kind: KindIO}
	ErrQuery  = &Error{Kind: KindQuery}
	ErrHTTP   = &Error{Kind: KindHTTP}
	ErrConfig = &Error{Kind: KindConfig}
	ErrSchema = &Error{Kind: KindSchema}
)

// Error is a typed ETL failure.
type Error struct {
	Kind Kind
	Op   string // e.g. "parquet read", "postgres copy"
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String() + " error"
	case e.Err == nil:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
	}
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. Sentinels have an
// empty Op, so errors.Is(err, ErrQuery) matches any query failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// New returns an *Error of the given kind. A nil err is allowed for failures
// that have no underlying cause.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IO wraps err as an I/O failure.
func IO(op string, err error) error { return New(KindIO, op, err) }

// Query wraps err as a query failure.
func Query(op string, err error) error { return New(KindQuery, op, err) }

// HTTP wraps err as an HTTP failure.
func HTTP(op string, err error) error { return New(KindHTTP, op, err) }

// Configf builds a configuration failure from a format string.
func Configf(op, format string, args ...any) error {
	return New(KindConfig, op, fmt.Errorf(format, args...))
}

// Schemaf builds a schema failure from a format string.
func Schemaf(op, format string, args ...any) error {
	return New(KindSchema, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
