package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hearthwood/gitcore/repository"
	"github.com/hearthwood/gitcore/serverinfo"
	"github.com/hearthwood/gitcore/storage/filesystem"
)

func newUpdateServerInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-server-info <git-dir>",
		Short: "regenerate info/refs and objects/info/packs for the dumb HTTP transport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gitDir, err := filepath.Abs(args[0])
			if err != nil {
				return usageError{err}
			}

			r, err := repository.PlainOpen(gitDir)
			if err != nil {
				return err
			}

			fs, ok := r.Storer().(*filesystem.Storage)
			if !ok {
				return fmt.Errorf("gitcore: %s is not a disk-backed repository", gitDir)
			}

			return serverinfo.UpdateServerInfo(fs, fs.Filesystem())
		},
	}
}
