// Command gitcore is a small CLI over this module's repository package:
// clone a remote, serve upload-pack/receive-pack over stdin/stdout for an
// SSH ForceCommand, or refresh a repository's dumb-HTTP server-info files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes mirror the teacher's: 0 success, 1 usage/argument error, 128
// an application error raised once argument parsing already succeeded.
const (
	usageErrorExitCode       = 1
	fatalApplicationExitCode = 128
)

var showStackTrace bool

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gitcore:", errorDetail(err))
		os.Exit(exitCodeFor(root, err))
	}
}

// errorDetail prints a %+v stack trace when --show-stack-trace was set and
// err carries one (only transport/ssh auth failures are wrapped with
// pkg/errors.Wrap, so most errors fall back to their plain message).
func errorDetail(err error) string {
	if showStackTrace {
		return fmt.Sprintf("%+v", err)
	}
	return err.Error()
}

func exitCodeFor(cmd *cobra.Command, err error) int {
	if _, ok := err.(usageError); ok {
		return usageErrorExitCode
	}
	return fatalApplicationExitCode
}

// usageError marks an error that should exit 1 instead of 128: bad
// arguments caught before any repository operation was attempted.
type usageError struct{ error }

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gitcore",
		Short:         "minimal git plumbing server and client",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
	}

	cmd.PersistentFlags().BoolVar(&showStackTrace, "show-stack-trace", false, "print a full error stack trace instead of just its message")

	cmd.AddCommand(newCloneCmd())
	cmd.AddCommand(newUploadPackCmd())
	cmd.AddCommand(newReceivePackCmd())
	cmd.AddCommand(newUpdateServerInfoCmd())
	cmd.AddCommand(newServeSSHCmd())
	cmd.AddCommand(newCommitGraphWriteCmd())

	return cmd
}

// ctx is shared by every subcommand; none of them currently need
// cancellation wired from a signal handler, so background is enough.
func ctx() context.Context { return context.Background() }
