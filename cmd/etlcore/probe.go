package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"etlcore/internal/config"
	"etlcore/internal/probe"
	"etlcore/internal/webui"
)

// probeOptions are the -probe* flags.
type probeOptions struct {
	target string
	format string
	name   string
	schema string
	pk     string
	asYAML bool
}

// probeSource builds the source config for a path or http(s) URL.
func probeSource(po probeOptions) config.Source {
	if strings.HasPrefix(po.target, "http://") || strings.HasPrefix(po.target, "https://") {
		return config.Source{Kind: "http", URL: po.target}
	}
	format := po.format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(po.target), ".")
		if format == "" {
			format = "csv"
		}
	}
	return config.Source{Kind: "file", Format: format, Path: po.target}
}

// describe probes a file path or http(s) URL. It backs both -probe and
// the -probe-addr web API.
func describe(ctx context.Context, target, format string, opt probe.Options) (probe.Result, error) {
	cfg := probeSource(probeOptions{target: target, format: format})
	src, err := (&container{}).buildSource(cfg)
	if err != nil {
		return probe.Result{}, err
	}
	return probe.Probe(ctx, src, cfg, opt)
}

// serveProbe runs the probe web API until ctx is done.
func serveProbe(ctx context.Context, addr string) error {
	log.Printf("webui: listening addr=%s", addr)
	return webui.NewServer(webui.Config{Addr: addr, Probe: describe}).ListenAndServe(ctx)
}

// runProbe describes a source and prints either the column summary with
// DDL or a job file skeleton.
func runProbe(ctx context.Context, po probeOptions, stdout, stderr io.Writer) int {
	var pk []string
	for _, k := range strings.Split(po.pk, ",") {
		if k = strings.TrimSpace(k); k != "" {
			pk = append(pk, k)
		}
	}
	res, err := describe(ctx, po.target, po.format, probe.Options{Name: po.name, Schema: po.schema, PrimaryKey: pk})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if !po.asYAML {
		_, _ = stdout.Write(res.Text())
		return 0
	}
	body, err := res.JobFile()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	_, _ = stdout.Write(body)
	return 0
}
