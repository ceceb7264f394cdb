package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tobert/traceview/internal/tui"
)

// ViewCommand returns the CLI command definition for the 'view' subcommand.
// It opens a trace file, or a live OTLP buffer, in the terminal viewer.
func ViewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Browse traces in the terminal",
		ArgsUsage: "[trace.json]",
		Description: `Opens the timeline viewer full-screen in the terminal. With a trace file
the view reloads whenever the file changes. Without one, an OTLP receiver
collects spans live and the view follows them.

Keys: arrows scroll/select, ctrl+arrows step through spans, esc deselects,
t next trace, r reset zoom, m minimap, x centre selection, c clear, q quit.
Mouse: wheel zooms, click selects, drag zooms to a range.`,
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Trace JSON file"},
			&cli.BoolFlag{Name: "watch", Usage: "Reload the trace file when it changes", Value: true},
			&cli.StringSliceFlag{Name: "jsonl-dir", Usage: "OTLP JSONL directory to import (live mode)"},
			&cli.StringFlag{Name: "otel-config", Usage: "Collector config whose file exporters to import (live mode)"},
			&cli.StringFlag{Name: "otlp-host", Usage: "OTLP server bind address (live mode)"},
			&cli.IntFlag{Name: "otlp-port", Usage: "OTLP server port (live mode, 0 for ephemeral)"},
		},
		Action: runView,
	}
}

func runView(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cliCtx, cfg.Verbose)
	defer cancel()

	if cfg.TraceFile != "" {
		return tui.Run(ctx, tui.Options{Path: cfg.TraceFile, Watch: cfg.WatchEnabled()})
	}

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := tui.Run(ctx, tui.Options{Source: src}); err != nil {
		return fmt.Errorf("terminal viewer: %w", err)
	}
	return nil
}
