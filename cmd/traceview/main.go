package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tobert/traceview/internal/cli"
	cliframework "github.com/urfave/cli/v3"
)

const version = "0.1.0-dev"

func main() {
	app := &cliframework.Command{
		Name:    "traceview",
		Usage:   "Interactive timeline viewer for distributed traces",
		Version: version,
		Commands: []*cliframework.Command{
			cli.ViewCommand(),
			cli.RenderCommand(),
			cli.InspectCommand(),
			cli.ServeCommand(),
			cli.MCPCommand(),
			cli.SendDemoCommand(),
			cli.DoctorCommand(version),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ error: %v\n", err)
		os.Exit(1)
	}
}
