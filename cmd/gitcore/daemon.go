package main

import (
	"fmt"
	"os"

	gliderssh "github.com/gliderlabs/ssh"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/hearthwood/gitcore/internal/server"
	sshtransport "github.com/hearthwood/gitcore/protocol/transport/ssh"
)

func newServeSSHCmd() *cobra.Command {
	var (
		addr           string
		hostKeyPath    string
		authorizedKeys string
		insecureNoAuth bool
	)

	cmd := &cobra.Command{
		Use:   "serve-ssh",
		Short: "run a minimal SSH daemon exposing upload-pack/receive-pack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := loadHostKey(hostKeyPath)
			if err != nil {
				return fmt.Errorf("gitcore: loading host key: %w", err)
			}

			var authorize func(ctx gliderssh.Context, key gliderssh.PublicKey) bool
			if !insecureNoAuth {
				allowed, err := loadAuthorizedKeys(authorizedKeys)
				if err != nil {
					return fmt.Errorf("gitcore: loading authorized keys: %w", err)
				}
				authorize = func(_ gliderssh.Context, key gliderssh.PublicKey) bool {
					for _, a := range allowed {
						if gliderssh.KeysEqual(key, a) {
							return true
						}
					}
					return false
				}
			}

			srv := &sshtransport.Server{
				Addr:       addr,
				HostSigner: signer,
				Authorize:  authorize,
				Handle:     server.Serve,
			}
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":2222", "address to listen on")
	cmd.Flags().StringVar(&hostKeyPath, "host-key", "", "path to a PEM-encoded host private key")
	cmd.Flags().StringVar(&authorizedKeys, "authorized-keys", "", "path to an authorized_keys file")
	cmd.Flags().BoolVar(&insecureNoAuth, "insecure-no-auth", false, "accept any client public key (testing only)")

	return cmd
}

func loadHostKey(path string) (ssh.Signer, error) {
	if path == "" {
		return nil, fmt.Errorf("gitcore: --host-key is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(b)
}

func loadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	if path == "" {
		return nil, fmt.Errorf("gitcore: --authorized-keys is required unless --insecure-no-auth is set")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keys []ssh.PublicKey
	for len(b) > 0 {
		key, _, _, rest, err := ssh.ParseAuthorizedKey(b)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		b = rest
	}
	return keys, nil
}
