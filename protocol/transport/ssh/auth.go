// Package ssh implements the SSH binding of protocol/transport: a client
// Commander that shells out to the remote's git-upload-pack/git-receive-pack
// over an SSH session, and a minimal server exposing the same two services
// for testing and for embedding git-over-ssh in another program.
package ssh

import (
	"fmt"
	"os"
	"path/filepath"

	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"

	"github.com/hearthwood/gitcore/protocol/transport"
)

// DefaultUsername is used when an endpoint carries no explicit user.
const DefaultUsername = "git"

// AuthMethod is the SSH-specific refinement of transport.AuthMethod: it can
// also produce the *ssh.ClientConfig the client dials with.
type AuthMethod interface {
	transport.AuthMethod
	ClientConfig() (*ssh.ClientConfig, error)
}

const (
	PasswordName           = "ssh-password"
	PublicKeysName         = "ssh-public-keys"
	PublicKeysCallbackName = "ssh-public-key-callback"
)

// HostKeyCallbackHelper is embedded by every AuthMethod below to share the
// known_hosts-backed HostKeyCallback unless the caller overrides it.
type HostKeyCallbackHelper struct {
	HostKeyCallback ssh.HostKeyCallback
}

func (h *HostKeyCallbackHelper) resolve(hostWithPort string) (ssh.HostKeyCallback, []string, error) {
	if h.HostKeyCallback != nil {
		return h.HostKeyCallback, nil, nil
	}
	db, err := newKnownHostsDB()
	if err != nil {
		return nil, nil, err
	}
	return db.HostKeyCallback(), db.HostKeyAlgorithms(hostWithPort), nil
}

// Password authenticates with a plaintext password.
type Password struct {
	User     string
	Password string
	HostKeyCallbackHelper
}

func (a *Password) Name() string   { return PasswordName }
func (a *Password) String() string { return fmt.Sprintf("user: %s, name: %s", a.User, a.Name()) }

func (a *Password) ClientConfig() (*ssh.ClientConfig, error) {
	cb, algos, err := a.resolve("")
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:              a.User,
		Auth:              []ssh.AuthMethod{ssh.Password(a.Password)},
		HostKeyCallback:   cb,
		HostKeyAlgorithms: algos,
	}, nil
}

// PublicKeys authenticates with an in-memory signer, typically parsed from
// a PEM-encoded private key via NewPublicKeys.
type PublicKeys struct {
	User   string
	Signer ssh.Signer
	HostKeyCallbackHelper
}

// NewPublicKeys parses a PEM-encoded private key, retrying with password as
// a decryption passphrase if the key is encrypted.
func NewPublicKeys(user string, pemBytes []byte, password string) (*PublicKeys, error) {
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if _, ok := err.(*ssh.PassphraseMissingError); ok {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(password))
	}
	if err != nil {
		return nil, err
	}
	return &PublicKeys{User: user, Signer: signer}, nil
}

// NewPublicKeysFromFile reads a PEM-encoded private key from disk.
func NewPublicKeysFromFile(user, path, password string) (*PublicKeys, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewPublicKeys(user, b, password)
}

func (a *PublicKeys) Name() string   { return PublicKeysName }
func (a *PublicKeys) String() string { return fmt.Sprintf("user: %s, name: %s", a.User, a.Name()) }

func (a *PublicKeys) ClientConfig() (*ssh.ClientConfig, error) {
	cb, algos, err := a.resolve("")
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:              a.User,
		Auth:              []ssh.AuthMethod{ssh.PublicKeys(a.Signer)},
		HostKeyCallback:   cb,
		HostKeyAlgorithms: algos,
	}, nil
}

// PublicKeysCallback authenticates against a running ssh-agent, found via
// the SSH_AUTH_SOCK environment variable.
type PublicKeysCallback struct {
	User     string
	Callback func() ([]ssh.Signer, error)
	HostKeyCallbackHelper
	closer func() error
}

// NewSSHAgentAuth opens a pipe to the local ssh-agent and uses it as the
// signer source for PublicKeysCallback. If user is empty the current OS
// user is used.
func NewSSHAgentAuth(user string) (*PublicKeysCallback, error) {
	if user == "" {
		u, err := currentUsername()
		if err != nil {
			return nil, err
		}
		user = u
	}

	agentClient, closer, err := sshagent.New()
	if err != nil {
		return nil, fmt.Errorf("ssh: connecting to ssh-agent: %w", err)
	}

	return &PublicKeysCallback{
		User:     user,
		Callback: agentClient.Signers,
		closer:   closer.Close,
	}, nil
}

func (a *PublicKeysCallback) Name() string { return PublicKeysCallbackName }
func (a *PublicKeysCallback) String() string {
	return fmt.Sprintf("user: %s, name: %s", a.User, a.Name())
}

func (a *PublicKeysCallback) ClientConfig() (*ssh.ClientConfig, error) {
	cb, algos, err := a.resolve("")
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:              a.User,
		Auth:              []ssh.AuthMethod{ssh.PublicKeysCallback(a.Callback)},
		HostKeyCallback:   cb,
		HostKeyAlgorithms: algos,
	}, nil
}

// Close releases the ssh-agent connection, if one was opened.
func (a *PublicKeysCallback) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

func currentUsername() (string, error) {
	if u := os.Getenv("USER"); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("ssh: unable to determine current username, set USER or use an explicit AuthMethod")
}

func defaultKnownHostsFiles() ([]string, error) {
	if env := os.Getenv("SSH_KNOWN_HOSTS"); env != "" {
		return filepath.SplitList(env), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(home, ".ssh", "known_hosts"),
		"/etc/ssh/ssh_known_hosts",
	}, nil
}

func existingFiles(files ...string) []string {
	var out []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			out = append(out, f)
		}
	}
	return out
}
