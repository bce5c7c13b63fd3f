package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hearthwood/gitcore/format/commitgraph"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/repository"
	"github.com/hearthwood/gitcore/storage/filesystem"
)

func newCommitGraphWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit-graph-write <git-dir>",
		Short: "write objects/info/commit-graph covering every commit reachable from HEAD",
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

			head, err := r.Head()
			if err != nil {
				return err
			}

			graph, err := r.CommitGraph(head.Hash())
			if err != nil {
				return err
			}

			if err := fs.Filesystem().MkdirAll("objects/info", 0o755); err != nil {
				return err
			}
			out, err := fs.Filesystem().Create("objects/info/commit-graph")
			if err != nil {
				return err
			}
			defer out.Close()

			return commitgraph.Encode(out, graph, objectid.SHA1)
		},
	}
}
