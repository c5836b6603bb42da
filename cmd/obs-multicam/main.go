package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	exitSuccess     = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

var version = "dev"

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// reportedError marks a failure whose message was already printed.
type reportedError struct{ error }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()
	os.Exit(exitCode(err, interrupted))
}

func exitCode(err error, interrupted bool) int {
	if interrupted {
		fmt.Fprintln(os.Stderr, "Interrupted")
		return exitInterrupted
	}
	if err == nil {
		return exitSuccess
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(os.Stderr, ue.msg)
		return exitUsage
	}
	var re reportedError
	if !errors.As(err, &re) {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
	}
	return exitFailure
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "obs-multicam",
		Short:         "Remote camera selector control for OBS Studio",
		Long:          "obs-multicam swaps the camera shown in CAMSELECT scenes, switches program scenes and toggles overlay sources over obs-websocket.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.debug {
				enableDebugLogging(os.Stderr)
			}
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{msg: err.Error() + "\nRun '" + cmd.CommandPath() + " --help' for usage."}
	})
	g.register(root.PersistentFlags())

	root.AddCommand(
		serveCmd(g),
		scenesCmd(g),
		swapCmd(g),
		applyCmd(g),
		switchCmd(g),
		overlayCmd(g),
		watchCmd(g),
		versionCmd(),
	)
	return root
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError{msg: "usage: " + cmd.CommandPath() + " " + usage}
		}
		return nil
	}
}
