// Package webui exposes the source probe over HTTP so a job file can be
// drafted from a browser or curl.
//
// Routes:
//
//	GET /healthz   → "ok"
//	GET /api/probe → column summary and DDL as text/plain, or a job file
//	                 skeleton as application/yaml when mode=yaml
package webui

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"etlcore/internal/etlerr"
	"etlcore/internal/probe"
)

// ProbeFunc describes target, a file path or http(s) URL. format may be
// empty to pick it from the extension.
type ProbeFunc func(ctx context.Context, target, format string, opt probe.Options) (probe.Result, error)

// Config controls server startup.
type Config struct {
	Addr string

	// Timeout bounds one probe. Zero means one minute.
	Timeout time.Duration

	Probe ProbeFunc
}

// Server wraps http.Server for convenience.
type Server struct {
	cfg Config
	mux *http.ServeMux
}

// NewServer constructs a Server with its routes.
func NewServer(cfg Config) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/probe", s.handleAPIProbe)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleAPIProbe returns text/plain so scripts can curl it easily.
func (s *Server) handleAPIProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	target := strings.TrimSpace(q.Get("target"))
	if target == "" {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}
	var pk []string
	for _, k := range strings.Split(q.Get("pk"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			pk = append(pk, k)
		}
	}
	opt := probe.Options{
		Name:       strings.TrimSpace(q.Get("name")),
		Schema:     strings.TrimSpace(q.Get("schema")),
		PrimaryKey: pk,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()
	res, err := s.cfg.Probe(ctx, target, q.Get("format"), opt)
	if err != nil {
		log.Printf("webui: probe failed target=%s err=%v", target, err)
		http.Error(w, "probe failed: "+err.Error(), statusFor(err))
		return
	}

	if q.Get("mode") == "yaml" {
		body, err := res.JobFile()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(body)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(res.Text())
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch etlerr.KindOf(err) {
	case etlerr.KindConfig, etlerr.KindSchema:
		return http.StatusBadRequest
	case etlerr.KindIO, etlerr.KindHTTP, etlerr.KindQuery:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
