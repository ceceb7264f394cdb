package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/urfave/cli/v3"

	"github.com/tobert/traceview/internal/mcpserver"
)

// MCPCommand returns the CLI command definition for the 'mcp' subcommand,
// which runs the MCP server on stdio for agents.
func MCPCommand() *cli.Command {
	return &cli.Command{
		Name:      "mcp",
		Usage:     "Run the MCP server on stdio",
		ArgsUsage: "[trace.json]",
		Description: `Exposes the loaded traces to an agent over MCP on stdio. Tools: list_traces,
query_spans, get_span, waterfall, reload.

Without a trace file an OTLP gRPC receiver starts on an ephemeral port and
collects spans live; its address is logged to stderr.`,
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
		},
		Action: runMCP,
	}
}

func runMCP(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
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

	if cfg.Verbose {
		log.Println("✅ MCP server created with 5 tools:")
		log.Println("   - list_traces")
		log.Println("   - query_spans")
		log.Println("   - get_span")
		log.Println("   - waterfall")
		log.Println("   - reload")
	}

	if err := mcpSrv.Run(ctx); err != nil {
		select {
		case srcErr := <-src.Err():
			return srcErr
		default:
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
