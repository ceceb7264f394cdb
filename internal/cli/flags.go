package cli

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tobert/traceview/internal/timeline"
)

// Flags shared by several subcommands.

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: .traceview.json in the project, then ~/.config/traceview/config.json)",
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging",
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "trace", Aliases: []string{"t"}, Usage: "Trace index to show"},
		&cli.StringFlag{Name: "service", Usage: "Only spans whose service contains this text"},
		&cli.StringFlag{Name: "operation", Usage: "Only spans whose operation contains this text"},
		&cli.StringFlag{Name: "min-duration", Usage: "Minimum span duration (e.g. 250us, 3ms, or nanoseconds)"},
		&cli.StringFlag{Name: "max-duration", Usage: "Maximum span duration"},
		&cli.StringFlag{Name: "window", Usage: "Time window to show, START:END relative to the trace start (e.g. 0:15ms)"},
		&cli.StringFlag{Name: "unit", Usage: "Time unit for labels: ns, us, ms, s, min, h (default: auto)"},
	}
}

// loadConfig resolves the layered config file and applies the flags the
// command was given on top.
func loadConfig(cmd *cli.Command) (*Config, error) {
	cfg, err := LoadEffectiveConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	overlay := &Config{}
	if cmd.IsSet("verbose") {
		overlay.Verbose = cmd.Bool("verbose")
	}
	for _, name := range []string{
		"file", "jsonl-dir", "otel-config", "active-only", "watch", "trace-buffer-size",
		"otlp-host", "otlp-port", "http-host", "http-port",
	} {
		if !cmd.IsSet(name) {
			continue
		}
		switch name {
		case "file":
			overlay.TraceFile = cmd.String(name)
		case "jsonl-dir":
			overlay.JSONLDirs = cmd.StringSlice(name)
		case "otel-config":
			overlay.OtelConfig = cmd.String(name)
		case "active-only":
			overlay.ActiveOnly = cmd.Bool(name)
		case "watch":
			w := cmd.Bool(name)
			overlay.Watch = &w
		case "trace-buffer-size":
			overlay.TraceBufferSize = cmd.Int(name)
		case "otlp-host":
			overlay.OTLPHost = cmd.String(name)
		case "otlp-port":
			overlay.OTLPPort = cmd.Int(name)
		case "http-host":
			overlay.HTTPHost = cmd.String(name)
		case "http-port":
			overlay.HTTPPort = cmd.Int(name)
		}
	}
	if arg := cmd.Args().First(); arg != "" {
		overlay.TraceFile = arg
	}

	return MergeConfigs(cfg, overlay), nil
}

// filters is the parsed form of filterFlags.
type filters struct {
	trace       int
	service     string
	operation   string
	minDuration float64
	maxDuration float64 // 0 = unbounded
	window      timeline.Viewport
	unit        timeline.TimeUnit
	autoUnit    bool
}

func parseFilters(cmd *cli.Command) (filters, error) {
	f := filters{
		trace:     cmd.Int("trace"),
		service:   cmd.String("service"),
		operation: cmd.String("operation"),
		autoUnit:  true,
	}
	var err error
	if s := cmd.String("min-duration"); s != "" {
		if f.minDuration, err = parseNanos(s); err != nil {
			return f, fmt.Errorf("--min-duration: %w", err)
		}
	}
	if s := cmd.String("max-duration"); s != "" {
		if f.maxDuration, err = parseNanos(s); err != nil {
			return f, fmt.Errorf("--max-duration: %w", err)
		}
	}
	if s := cmd.String("window"); s != "" {
		start, end, ok := strings.Cut(s, ":")
		if !ok {
			return f, fmt.Errorf("--window must be START:END, got %q", s)
		}
		if f.window.Start, err = parseNanos(start); err != nil {
			return f, fmt.Errorf("--window start: %w", err)
		}
		if f.window.End, err = parseNanos(end); err != nil {
			return f, fmt.Errorf("--window end: %w", err)
		}
		if !f.window.Valid() {
			return f, fmt.Errorf("--window start must be before end")
		}
	}
	if s := cmd.String("unit"); s != "" && !strings.EqualFold(s, "auto") {
		u, ok := timeline.ParseTimeUnit(s)
		if !ok {
			return f, fmt.Errorf("unknown time unit %q", s)
		}
		f.unit, f.autoUnit = u, false
	}
	return f, nil
}

// apply pushes the filters into a viewer that already holds its traces.
func (f filters) apply(v *timeline.Viewer) error {
	if f.trace != 0 && !v.SelectTrace(f.trace) {
		return fmt.Errorf("trace %d out of range (%d traces loaded)", f.trace, len(v.Traces()))
	}
	v.SetServiceFilter(f.service)
	v.SetOperationFilter(f.operation)
	if f.minDuration > 0 {
		v.SetMinDurationFilter(f.minDuration)
	}
	if f.maxDuration > 0 {
		v.SetMaxDurationFilter(f.maxDuration)
	}
	if f.window.Valid() && !v.SetView(f.window) {
		return fmt.Errorf("window %s:%s is outside the trace",
			timeline.FormatTime(f.window.Start, v.TimeUnit()), timeline.FormatTime(f.window.End, v.TimeUnit()))
	}
	if !f.autoUnit {
		v.SetTimeUnit(f.unit)
	}
	return nil
}

// config is the filter state for callers without a viewer.
func (f filters) config() timeline.ViewerConfig {
	cfg := timeline.DefaultViewerConfig()
	cfg.ServiceFilter = f.service
	cfg.OperationFilter = f.operation
	cfg.MinDurationFilter = f.minDuration
	cfg.MaxDurationFilter = math.Inf(1)
	if f.maxDuration > 0 {
		cfg.MaxDurationFilter = f.maxDuration
	}
	cfg.MinTimeFilter = 0
	cfg.MaxTimeFilter = math.Inf(1)
	return cfg
}

// parseNanos reads a duration with an optional unit suffix; a bare
// number is nanoseconds.
func parseNanos(s string) (float64, error) {
	s = strings.TrimSpace(s)
	i := len(s)
	for i > 0 && !isNumeric(s[i-1]) {
		i--
	}
	num, suffix := s[:i], strings.TrimSpace(s[i:])
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if suffix == "" {
		return v, nil
	}
	u, ok := timeline.ParseTimeUnit(suffix)
	if !ok {
		return 0, fmt.Errorf("invalid duration unit %q", suffix)
	}
	return v * u.Info().Factor, nil
}

func isNumeric(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.'
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context, verbose bool) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			if verbose {
				log.Printf("📡 Received signal %v, initiating graceful shutdown...\n", sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
