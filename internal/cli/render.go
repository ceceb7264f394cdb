package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/urfave/cli/v3"

	"github.com/tobert/traceview/internal/imagesurface"
	"github.com/tobert/traceview/internal/timeline"
)

// RenderCommand returns the CLI command definition for the 'render'
// subcommand, which writes one viewer frame to a PNG.
func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a trace timeline to a PNG image",
		ArgsUsage: "<trace.json>",
		Flags: append([]cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Trace JSON file"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output PNG path", Value: "trace.png"},
			&cli.IntFlag{Name: "width", Usage: "Image width in pixels", Value: 1600},
			&cli.IntFlag{Name: "height", Usage: "Image height in pixels (0 = fit the spans)"},
			&cli.IntFlag{Name: "select", Usage: "Span index to select and show in the details panel", Value: -1},
			&cli.BoolFlag{Name: "no-minimap", Usage: "Hide the minimap"},
		}, filterFlags()...),
		Action: runRender,
	}
}

func runRender(ctx context.Context, cmd *cli.Command) error {
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
	vcfg, err := cfg.ViewerConfig()
	if err != nil {
		return err
	}

	v := timeline.NewViewer(vcfg)
	if msg := v.LoadFromFile(cfg.TraceFile); msg != "" {
		return fmt.Errorf("%s", msg)
	}
	if err := f.apply(v); err != nil {
		return err
	}
	if i := cmd.Int("select"); i >= 0 && !v.SelectSpan(i) {
		return fmt.Errorf("span %d out of range", i)
	}
	if cmd.Bool("no-minimap") && v.ShowMinimap() {
		v.ToggleMinimap()
	}

	width, height := cmd.Int("width"), cmd.Int("height")
	if height <= 0 {
		// The timeline takes 4/5 of the image when the minimap is docked.
		height = max(int(v.PreferredTimelineHeight()*5/4), 240)
	}

	out := cmd.String("out")
	if err := imagesurface.Snapshot(v, width, height).SavePNG(out); err != nil {
		return err
	}
	if cfg.Verbose {
		log.Printf("🖼️  Wrote %dx%d frame to %s\n", width, height, out)
	}
	fmt.Println(out)
	return nil
}
