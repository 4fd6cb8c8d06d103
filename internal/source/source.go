// Package source defines the closed set of table sources and the Load
// function that dispatches on them.
//
// A Source is a value: constructing one does no I/O, and Load may be called
// any number of times with the same Source, re-reading each time.
package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"etlcore/internal/codec"
	"etlcore/internal/codec/csv"
	"etlcore/internal/codec/json"
	"etlcore/internal/codec/parquet"
	"etlcore/internal/datasource/file"
	"etlcore/internal/datasource/httpds"
	"etlcore/internal/etlerr"
	"etlcore/internal/flatten"
	"etlcore/internal/storage"
	"etlcore/internal/table"
)

// Source is one of FileSource, QuerySource or HTTPSource.
type Source interface {
	fmt.Stringer
	isSource()
}

// FileSource reads a local file.
type FileSource struct {
	Format codec.Format
	Path   string

	// CSV tunes the CSV reader; ignored for other formats.
	CSV csv.Options

	// DataPath selects the rows inside a JSON document (dot path, e.g.
	// "data.items"). Ignored for other formats.
	DataPath string
}

// QuerySource runs SQL on a shared connection.
type QuerySource struct {
	Conn  storage.Conn
	Query string
}

// HTTPSource fetches JSON or NDJSON over HTTP GET. The decoded rows are
// always flattened.
type HTTPSource struct {
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Auth        httpds.Auth

	// DataPath selects the rows inside an envelope document.
	DataPath string

	// Client is optional; nil uses a client with default settings.
	Client *httpds.Client

	// Flattener bounds the flatten passes; the zero value uses defaults.
	Flattener flatten.Flattener
}

func (FileSource) isSource()  {}
func (QuerySource) isSource() {}
func (HTTPSource) isSource()  {}

func (s FileSource) String() string { return fmt.Sprintf("file:%s:%s", s.Format, s.Path) }

func (s QuerySource) String() string {
	if s.Conn == nil {
		return "query"
	}
	return "query:" + s.Conn.Kind()
}

// String omits the query string, which may carry credentials.
func (s HTTPSource) String() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "http"
	}
	return "http:" + u.Scheme + "://" + u.Host + u.Path
}

// Load reads src into a table. It blocks until the data is fully decoded.
func Load(ctx context.Context, src Source) (*table.Table, error) {
	switch s := src.(type) {
	case FileSource:
		return loadFile(ctx, s)
	case QuerySource:
		return loadQuery(ctx, s)
	case HTTPSource:
		return loadHTTP(ctx, s)
	case nil:
		return nil, etlerr.Configf("source", "no source configured")
	default:
		return nil, etlerr.Configf("source", "unsupported source %T", src)
	}
}

func loadFile(ctx context.Context, s FileSource) (*table.Table, error) {
	if s.Path == "" {
		return nil, etlerr.Configf("file source", "path is required")
	}
	f, err := file.NewLocal(s.Path).Open(ctx)
	if err != nil {
		return nil, etlerr.IO("file source", err)
	}
	defer f.Close()

	var t *table.Table
	switch s.Format {
	case codec.Parquet:
		return parquet.Read(ctx, f)
	case codec.CSV:
		return csv.Read(f, s.CSV)
	case codec.JSON:
		t, err = json.ReadDocument(f, s.DataPath)
	case codec.NDJSON:
		t, err = json.ReadLines(f)
	default:
		return nil, etlerr.Configf("file source", "unsupported format %q", s.Format)
	}
	if err != nil {
		return nil, etlerr.IO("file source "+string(s.Format), fmt.Errorf("%s: %w", s.Path, err))
	}
	return t, nil
}

func loadQuery(ctx context.Context, s QuerySource) (*table.Table, error) {
	if s.Conn == nil {
		return nil, etlerr.Configf("query source", "connection is required")
	}
	if strings.TrimSpace(s.Query) == "" {
		return nil, etlerr.Configf("query source", "query is required")
	}
	t, err := s.Conn.QueryTable(ctx, s.Query)
	if err != nil {
		if etlerr.KindOf(err) != 0 {
			return nil, err
		}
		return nil, etlerr.Query("query source", err)
	}
	return t, nil
}

var defaultClient = httpds.NewClient(httpds.Config{})

func loadHTTP(ctx context.Context, s HTTPSource) (*table.Table, error) {
	if s.URL == "" {
		return nil, etlerr.Configf("http source", "url is required")
	}
	client := s.Client
	if client == nil {
		client = defaultClient
	}

	req := httpds.Request{URL: s.URL, Auth: s.Auth}
	if len(s.Headers) > 0 {
		req.Headers = http.Header{}
		for k, v := range s.Headers {
			req.Headers.Set(k, v)
		}
	}
	if len(s.QueryParams) > 0 {
		req.Query = url.Values{}
		for k, v := range s.QueryParams {
			req.Query.Set(k, v)
		}
	}

	resp, err := client.Get(ctx, req)
	if err != nil {
		return nil, etlerr.HTTP("http get", err)
	}

	var t *table.Table
	if httpds.IsLineDelimited(resp.ContentType) {
		t, err = json.ReadLines(bytes.NewReader(resp.Body))
	} else {
		t, err = json.ReadDocument(bytes.NewReader(resp.Body), s.DataPath)
	}
	if err != nil {
		return nil, etlerr.HTTP("http decode", err)
	}

	flat, _, err := s.Flattener.Flatten(t)
	if err != nil {
		return nil, etlerr.Schemaf("http flatten", "%v", err)
	}
	return flat, nil
}
