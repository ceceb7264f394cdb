package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/tobert/traceview/internal/filereader"
	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/otlpreceiver"
	"github.com/tobert/traceview/internal/storage"
)

// traceSource is the trace provider behind serve and mcp: either a
// native trace file, or a live span store fed by an OTLP receiver and
// collector JSONL directories.
type traceSource struct {
	file     *storage.TraceFile
	store    *storage.SpanStore
	receiver *otlpreceiver.Server
	dirs     []*filereader.FileSource

	errCh chan error
}

// Version implements webui.Source and mcpserver.Source.
func (t *traceSource) Version() uint64 {
	if t.file != nil {
		return t.file.Version()
	}
	return t.store.Version()
}

// Traces implements webui.Source and mcpserver.Source.
func (t *traceSource) Traces() []model.Trace {
	if t.file != nil {
		return t.file.Traces()
	}
	return t.store.Traces()
}

// Load re-reads the trace file. Live sources have nothing to reload.
func (t *traceSource) Load() error {
	if t.file == nil {
		return nil
	}
	return t.file.Load()
}

// Endpoint is the OTLP receiver address, or "" when serving a file.
func (t *traceSource) Endpoint() string {
	if t.receiver == nil {
		return ""
	}
	return t.receiver.Endpoint()
}

// Err delivers a fatal receiver error.
func (t *traceSource) Err() <-chan error { return t.errCh }

// Close stops every background component.
func (t *traceSource) Close() {
	for _, fs := range t.dirs {
		fs.Stop()
	}
	if t.receiver != nil {
		t.receiver.Stop()
	}
}

// openSource builds the source described by cfg. A trace file wins; with
// no file, spans are collected live from OTLP and any JSONL directories.
// Background work stops when ctx is cancelled or Close is called.
func openSource(ctx context.Context, cfg *Config) (*traceSource, error) {
	src := &traceSource{errCh: make(chan error, 1)}

	if cfg.TraceFile != "" {
		src.file = storage.NewTraceFile(cfg.TraceFile)
		if err := src.file.Load(); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", cfg.TraceFile, err)
		}
		if cfg.Verbose {
			log.Printf("✅ Loaded %d traces from %s\n", len(src.file.Traces()), cfg.TraceFile)
		}
		if cfg.WatchEnabled() {
			err := filereader.Watch(ctx, cfg.TraceFile, filereader.DefaultDebounce, func() {
				if err := src.file.Load(); err != nil {
					log.Printf("⚠️  Reload of %s failed, keeping previous traces: %v\n", cfg.TraceFile, err)
					return
				}
				if cfg.Verbose {
					log.Printf("🔄 Reloaded %s\n", cfg.TraceFile)
				}
			})
			if err != nil {
				return nil, fmt.Errorf("failed to watch %s: %w", cfg.TraceFile, err)
			}
		}
		return src, nil
	}

	src.store = storage.NewSpanStore(cfg.TraceBufferSize)
	if cfg.Verbose {
		log.Printf("✅ Created span store (capacity: %d spans)\n", cfg.TraceBufferSize)
	}

	otlpCfg := otlpreceiver.Config{
		Host: cfg.OTLPHost,
		Port: cfg.OTLPPort,
	}
	if cfg.Verbose {
		otlpCfg.OnExport = func(spans int) {
			log.Printf("📥 Received %d spans\n", spans)
		}
	}
	receiver, err := otlpreceiver.NewServer(otlpCfg, src.store)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP server: %w", err)
	}
	src.receiver = receiver
	go func() {
		if err := receiver.Start(ctx); err != nil {
			src.errCh <- fmt.Errorf("OTLP server error: %w", err)
		}
	}()
	log.Printf("🌐 OTLP gRPC server listening on %s\n", receiver.Endpoint())
	if cfg.Verbose {
		log.Printf("   Programs can send traces with: OTEL_EXPORTER_OTLP_ENDPOINT=%s\n", receiver.Endpoint())
	}

	dirs, err := jsonlDirs(cfg)
	if err != nil {
		src.Close()
		return nil, err
	}
	for _, dir := range dirs {
		fs, err := filereader.New(filereader.Config{
			Directory:  dir,
			Verbose:    cfg.Verbose,
			ActiveOnly: cfg.ActiveOnly,
		}, src.store)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v\n", dir, err)
			continue
		}
		if err := fs.Start(ctx); err != nil {
			log.Printf("⚠️  Skipping %s: %v\n", dir, err)
			continue
		}
		src.dirs = append(src.dirs, fs)
		log.Printf("📁 Reading OTLP JSONL from %s\n", dir)
	}

	return src, nil
}

// jsonlDirs combines the configured directories with those discovered
// from the collector config.
func jsonlDirs(cfg *Config) ([]string, error) {
	dirs := append([]string(nil), cfg.JSONLDirs...)
	if cfg.OtelConfig != "" {
		found, err := ParseOtelConfig(cfg.OtelConfig)
		if err != nil {
			return nil, err
		}
		if cfg.Verbose {
			log.Printf("🔍 Found %d file exporter directories in %s\n", len(found), cfg.OtelConfig)
		}
		dirs = append(dirs, found...)
	}

	seen := make(map[string]bool)
	out := dirs[:0]
	for _, d := range dirs {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}
