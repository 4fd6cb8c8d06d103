package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/robfig/cron/v3"

	"etlcore/internal/config"
	"etlcore/internal/metrics"
	"etlcore/internal/metrics/datadog"
	"etlcore/internal/metrics/prompush"

	// register all backends with the storage registry.
	// the job file names the connection kinds, so every backend is built in.
	_ "etlcore/internal/storage/all"
)

// options are the resolved command-line settings.
type options struct {
	cfgPath        string
	verbose        bool
	validate       bool
	once           bool
	maxParallel    int
	chunkSize      int
	schedule       string
	metricsBackend string
	pushGatewayURL string
	ddAddr         string
	probe          probeOptions
	probeAddr      string
}

// main loads the job file, sets up metrics, and runs every job once or on
// the configured cron schedule.
func main() {
	opt := parseFlags(flag.CommandLine, os.Args[1:])
	os.Exit(run(opt, os.Stdout, os.Stderr))
}

func parseFlags(fs *flag.FlagSet, args []string) options {
	var o options
	fs.StringVar(&o.cfgPath, "config", "configs/jobs.yaml", "job file path (.yaml, .yml or .json)")
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")
	fs.BoolVar(&o.validate, "validate", false, "validate the job file and exit")
	fs.BoolVar(&o.once, "once", false, "run every job once even when a schedule is configured")
	fs.IntVar(&o.maxParallel, "max-parallel", 0, "max concurrent jobs (overrides env ETL_MAX_PARALLEL and the file)")
	fs.IntVar(&o.chunkSize, "chunk-size", 0, "rows per COPY chunk (overrides env ETL_CHUNK_SIZE and the file)")
	fs.StringVar(&o.schedule, "schedule", "", "cron schedule (overrides the file)")
	fs.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	fs.StringVar(&o.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.StringVar(&o.ddAddr, "dd-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	fs.StringVar(&o.probe.target, "probe", "", "describe a file path or http(s) URL instead of running jobs")
	fs.StringVar(&o.probe.format, "probe-format", "", "format of the probed file (default: from the extension)")
	fs.StringVar(&o.probe.name, "probe-name", "", "job and table name for the probe output")
	fs.StringVar(&o.probe.schema, "probe-schema", "", "table schema for the probe output")
	fs.StringVar(&o.probe.pk, "probe-pk", "", "comma-separated primary key columns for the probe output")
	fs.BoolVar(&o.probe.asYAML, "probe-yaml", false, "print a job file skeleton instead of the column summary")
	fs.StringVar(&o.probeAddr, "probe-addr", "", "serve the probe web API on this address instead of running jobs")
	_ = fs.Parse(args)
	return o
}

// run executes the CLI and returns the process exit code.
func run(opt options, stdout, stderr io.Writer) int {
	if opt.verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	if opt.probe.target != "" {
		return runProbe(context.Background(), opt.probe, stdout, stderr)
	}
	if opt.probeAddr != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serveProbe(ctx, opt.probeAddr); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	f, err := config.Load(opt.cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	applyOverrides(f, opt)

	issues := config.Validate(f)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if err := config.Err(issues); err != nil {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", opt.cfgPath)
		return 2
	}
	if opt.validate {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", opt.cfgPath)
		return 0
	}

	closeMetrics := setupMetrics(opt)
	defer closeMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newContainer(ctx, f)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer c.Close()

	if opt.verbose {
		for _, j := range f.Jobs {
			log.Printf("job plan: name=%s source=%s transforms=%d sink=%s",
				j.Name, j.Source.Kind, len(j.Transform), j.Sink.Kind)
		}
	}

	if f.Schedule == "" || opt.once {
		if c.runOnce(ctx, f.Defaults.MaxParallel, stdout) > 0 {
			return 1
		}
		return 0
	}
	if err := runScheduled(ctx, c, f.Schedule, f.Defaults.MaxParallel, stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	return 0
}

// runScheduled fires every job on each tick of schedule until ctx is done.
// Ticks that arrive while a run is still going are skipped.
func runScheduled(ctx context.Context, c *container, schedule string, parallel int, w io.Writer) error {
	cr := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := cr.AddFunc(schedule, func() { c.runOnce(ctx, parallel, w) }); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	log.Printf("scheduler: started schedule=%q jobs=%d", schedule, len(c.jobs))
	cr.Start()
	<-ctx.Done()
	<-cr.Stop().Done()
	log.Printf("scheduler: stopped")
	return nil
}

// applyOverrides resolves flag → env → file for the runtime knobs.
func applyOverrides(f *config.File, opt options) {
	f.Defaults.MaxParallel = pickInt(opt.maxParallel, getenvInt("ETL_MAX_PARALLEL", f.Defaults.MaxParallel))
	f.Defaults.ChunkSize = pickInt(opt.chunkSize, getenvInt("ETL_CHUNK_SIZE", f.Defaults.ChunkSize))
	if opt.schedule != "" {
		f.Schedule = opt.schedule
	}
}

// setupMetrics installs the selected backend and returns its cleanup.
// Failures fall back to the no-op backend.
func setupMetrics(opt options) func() {
	name := pick(opt.metricsBackend, os.Getenv("METRICS_BACKEND"))
	switch name {
	case "pushgateway":
		gwURL := pick(opt.pushGatewayURL, pick(os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"))
		b, err := prompush.NewBackend("etlcore", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: backend=%s url=%s", name, gwURL)
		metrics.SetBackend(b)
		return func() { metrics.SetBackend(nil) }

	case "datadog":
		addr := pick(opt.ddAddr, pick(os.Getenv("DD_AGENT_ADDR"), "127.0.0.1:8125"))
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "etlcore."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: backend=%s addr=%s", name, addr)
		metrics.SetBackend(b)
		return func() {
			metrics.SetBackend(nil)
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close: %v", err)
			}
		}

	case "", "none":
		log.Printf("metrics: disabled")
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
	return func() {}
}

func getenvInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func pickInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func pick(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
