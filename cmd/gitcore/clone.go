package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/hearthwood/gitcore/protocol/transport/ssh"
	"github.com/hearthwood/gitcore/repository"
)

func newCloneCmd() *cobra.Command {
	var (
		bare       bool
		depth      int
		sshKeyPath string
		sshUser    string
	)

	cmd := &cobra.Command{
		Use:   "clone <repo-url> [output-dir]",
		Short: "clone a remote repository into a new, empty object store",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			output := path.Base(url)
			if len(args) > 1 {
				output = args[1]
			}

			var auth *ssh.PublicKeys
			if sshKeyPath != "" {
				k, err := ssh.NewPublicKeysFromFile(sshUser, sshKeyPath, "")
				if err != nil {
					return usageError{fmt.Errorf("gitcore: reading ssh key: %w", err)}
				}
				auth = k
			}

			opts := &repository.CloneOptions{URL: url, Depth: depth}
			if auth != nil {
				opts.Auth = auth
			}

			_, err := repository.PlainClone(ctx(), output, bare, opts)
			if err != nil {
				return fmt.Errorf("clone %q into %q: %w", url, output, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&bare, "bare", false, "create a bare repository")
	cmd.Flags().IntVar(&depth, "depth", 0, "create a shallow clone with history truncated to this many commits (0 for full history)")
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key", "", "path to a PEM-encoded private key for SSH authentication")
	cmd.Flags().StringVar(&sshUser, "ssh-user", ssh.DefaultUsername, "SSH username, when --ssh-key is set")

	return cmd
}
