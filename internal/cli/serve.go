package cli

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"

	"github.com/tobert/traceview/internal/mcpserver"
	"github.com/tobert/traceview/internal/webui"
)

// ServeCommand returns the CLI command definition for the 'serve' subcommand.
// This command serves the browser viewer, with the MCP tools mounted on
// the same HTTP server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve the timeline viewer to browsers",
		ArgsUsage: "[trace.json]",
		Description: `Serves the viewer at http://<http-host>:<http-port>/ui/ and the MCP tools over
streamable HTTP at /mcp. Prometheus metrics are at /metrics.

With a trace file, every browser session reloads when the file changes.
Without one, an OTLP gRPC receiver collects spans live, together with any
OTLP JSONL directories given directly or found in a collector config.`,
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Trace JSON file"},
			&cli.BoolFlag{Name: "watch", Usage: "Reload the trace file when it changes", Value: true},
			&cli.StringSliceFlag{Name: "jsonl-dir", Usage: "OTLP JSONL directory to import (live mode)"},
			&cli.StringFlag{Name: "otel-config", Usage: "Collector config whose file exporters to import (live mode)"},
			&cli.BoolFlag{Name: "active-only", Usage: "Only read active JSONL files, skipping rotated archives"},
			&cli.IntFlag{Name: "trace-buffer-size", Usage: "Number of spans to buffer (live mode)"},
			&cli.StringFlag{Name: "otlp-host", Usage: "OTLP server bind address (live mode)"},
			&cli.IntFlag{Name: "otlp-port", Usage: "OTLP server port (live mode, 0 for ephemeral)"},
			&cli.StringFlag{Name: "http-host", Usage: "HTTP bind address"},
			&cli.IntFlag{Name: "http-port", Usage: "HTTP port"},
			&cli.DurationFlag{Name: "poll", Usage: "How often browser sessions check for new traces", Value: 500 * time.Millisecond},
		},
		Action: runServe,
	}
}

// runServe is the action handler for the serve command.
// It wires together the trace source, the web UI and the MCP server.
func runServe(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	vcfg, err := cfg.ViewerConfig()
	if err != nil {
		return err
	}

	if cfg.Verbose {
		log.Println("🔧 Configuration:")
		if cfg.TraceFile != "" {
			log.Printf("  Trace file: %s (watch: %v)\n", cfg.TraceFile, cfg.WatchEnabled())
		} else {
			log.Printf("  Span buffer: %d spans\n", cfg.TraceBufferSize)
			log.Printf("  OTLP bind: %s:%d\n", cfg.OTLPHost, cfg.OTLPPort)
		}
		log.Printf("  HTTP bind: %s:%d\n", cfg.HTTPHost, cfg.HTTPPort)
		log.Println()
	}

	ctx, cancel := signalContext(cliCtx, cfg.Verbose)
	defer cancel()

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	mcpSrv, err := mcpserver.NewServer(src, mcpserver.ServerOptions{
		Verbose:  cfg.Verbose,
		Store:    src.store,
		Endpoint: src.Endpoint(),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpSrv.MCPServer()
	}, nil)

	ui := webui.New(src, webui.Config{
		Viewer:  vcfg,
		Poll:    cmd.Duration("poll"),
		Verbose: cfg.Verbose,
	})

	addr := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
	errCh := make(chan error, 1)
	go func() {
		errCh <- ui.ListenAndServe(ctx, addr, func(mux *http.ServeMux) {
			mux.Handle("/mcp", mcpHandler)
		})
	}()
	if cfg.Verbose {
		log.Printf("🎯 MCP server on http://%s/mcp\n", addr)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case err := <-src.Err():
		cancel()
		<-errCh
		return err
	}
}
