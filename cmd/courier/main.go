// Package main provides the courier CLI entrypoint.
//
// Usage:
//
//	courier <command> [options]
//
// Exit codes for `publish`:
//   - 0: OK
//   - 1: FAILED
//   - 2: CANCELED
//   - 3: invalid input or setup failure
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/cmd"
	"github.com/pithecene-io/courier/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for handled errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "courier",
		Usage:          "Publish messages over WebSocket connections",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.PublishCommand(),
			cmd.KindsCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler exits with the code carried by cli.Exit errors.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(os.Stderr, err))
}

// reportExit prints err's message to w, unless it only restates the exit
// status, and returns the exit code.
func reportExit(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N) renders as "" or "exit status N"
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
