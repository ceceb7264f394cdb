package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
	"github.com/tobert/traceview/internal/viz"
)

// InspectCommand returns the CLI command definition for the 'inspect'
// subcommand: ASCII waterfalls and summaries on stdout.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print a trace as an ASCII waterfall",
		ArgsUsage: "<trace.json>",
		Description: `Prints the selected trace as a span tree with duration bars, using the same
filters as the viewer. --list prints the loaded traces and --services a
per-service span count instead.`,
		Flags: append([]cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Trace JSON file"},
			&cli.BoolFlag{Name: "list", Aliases: []string{"l"}, Usage: "List the loaded traces"},
			&cli.BoolFlag{Name: "services", Usage: "Summarize spans per service"},
			&cli.IntFlag{Name: "width", Aliases: []string{"w"}, Usage: "Line width", Value: 100},
			&cli.IntFlag{Name: "max-spans", Usage: "Maximum rows", Value: 50},
		}, filterFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runInspect(cmd, os.Stdout)
		},
	}
}

func runInspect(cmd *cli.Command, w io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.TraceFile == "" {
		return fmt.Errorf("a trace file is required")
	}
	f, err := parseFilters(cmd)
	if err != nil {
		return err
	}

	traces, err := model.LoadFile(cfg.TraceFile)
	if err != nil {
		return err
	}
	return inspect(w, traces, f, inspectOptions{
		list:     cmd.Bool("list"),
		services: cmd.Bool("services"),
		width:    cmd.Int("width"),
		maxSpans: cmd.Int("max-spans"),
	})
}

type inspectOptions struct {
	list     bool
	services bool
	width    int
	maxSpans int
}

func inspect(w io.Writer, traces []model.Trace, f filters, opts inspectOptions) error {
	unit := f.unit
	if f.autoUnit {
		longest := 0.0
		for i := range traces {
			longest = max(longest, traces[i].TotalDuration)
		}
		unit = timeline.DetectTimeUnit(0, longest)
	}

	switch {
	case opts.list:
		_, err := io.WriteString(w, viz.TraceList(traces, unit))
		return err
	case opts.services:
		_, err := io.WriteString(w, viz.ServiceSummary(viz.CollectServiceStats(traces), opts.width))
		return err
	}

	if f.trace < 0 || f.trace >= len(traces) {
		return fmt.Errorf("trace %d out of range (%d traces loaded)", f.trace, len(traces))
	}
	cfg := f.config()
	_, err := io.WriteString(w, viz.Waterfall(&traces[f.trace], viz.Options{
		Width:    opts.width,
		Filter:   func(s *model.Span) bool { return timeline.Passes(s, &cfg) },
		View:     f.window,
		Unit:     unit,
		MaxSpans: opts.maxSpans,
	}))
	return err
}
