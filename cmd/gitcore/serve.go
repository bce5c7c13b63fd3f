package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hearthwood/gitcore/internal/server"
	"github.com/hearthwood/gitcore/protocol/transport"
)

func newUploadPackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload-pack <git-dir>",
		Short: "serve a fetch/clone request over stdin/stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveOne(transport.UploadPackService, args[0])
		},
	}
}

func newReceivePackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receive-pack <git-dir>",
		Short: "serve a push request over stdin/stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveOne(transport.ReceivePackService, args[0])
		},
	}
}

// serveOne drives one upload-pack/receive-pack session against gitDir over
// the process's own stdin/stdout, the shape an SSH ForceCommand or a
// git-shell invocation expects.
func serveOne(service transport.Service, gitDir string) error {
	abs, err := filepath.Abs(gitDir)
	if err != nil {
		return usageError{err}
	}
	return server.Serve(ctx(), service, abs, os.Stdin, os.Stdout)
}
