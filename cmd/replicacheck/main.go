package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/replicacheck/internal/cli/command"
	"github.com/yndnr/replicacheck/internal/infra/shutdown"
	"github.com/yndnr/replicacheck/internal/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	err := command.App().RunContext(ctx, os.Args)
	if shutdown.Interrupted(ctx) {
		fmt.Fprintf(os.Stderr, "%v\n", context.Cause(ctx))
	}

	var exit cli.ExitCoder
	switch {
	case err == nil:
		return report.ExitPass
	case errors.As(err, &exit):
		if msg := exit.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		return exit.ExitCode()
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return report.ExitUsage
	}
}
