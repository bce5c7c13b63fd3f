package ssh

import (
	"context"
	"fmt"
	"io"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/hearthwood/gitcore/protocol/transport"
)

// ServiceHandler runs one of the two git wire services (upload-pack or
// receive-pack) against the repository named by path, reading the client's
// request from stdin and writing the response (advertisement, negotiation
// replies, packfile) to stdout.
type ServiceHandler func(ctx context.Context, service transport.Service, path string, stdin io.Reader, stdout io.Writer) error

// Server is a minimal SSH endpoint exposing git-upload-pack/git-receive-pack,
// enough to exercise this package's client over a real network socket in
// tests and small deployments. It is not a general-purpose SSH server: auth
// is a single PublicKeyHandler callback, and the only commands understood
// are the two git services.
type Server struct {
	Addr       string
	HostSigner ssh.Signer

	// Authorize decides whether the given public key may connect. A nil
	// Authorize accepts every key (suitable only for trusted test fixtures).
	Authorize func(ctx gliderssh.Context, key gliderssh.PublicKey) bool

	Handle ServiceHandler

	srv *gliderssh.Server
}

var commandPattern = strings.NewReplacer("'", "")

// ListenAndServe starts accepting connections on s.Addr, dispatching each
// git-upload-pack/git-receive-pack command to s.Handle.
func (s *Server) ListenAndServe() error {
	s.srv = &gliderssh.Server{
		Addr:    s.Addr,
		Handler: s.handleSession,
	}
	if s.HostSigner != nil {
		s.srv.AddHostKey(s.HostSigner)
	}
	if s.Authorize != nil {
		s.srv.PublicKeyHandler = s.Authorize
	}

	if err := s.srv.ListenAndServe(); err != nil {
		return pkgerrors.Wrap(err, "ssh: serving")
	}
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	service, path, err := parseServiceCommand(sess.Command())
	if err != nil {
		fmt.Fprintln(sess.Stderr(), err)
		_ = sess.Exit(128)
		return
	}

	if err := s.Handle(sess.Context(), service, path, sess, sess); err != nil {
		fmt.Fprintln(sess.Stderr(), err)
		_ = sess.Exit(1)
		return
	}
	_ = sess.Exit(0)
}

// parseServiceCommand recognizes the two command lines an SSH git client
// sends: `git-upload-pack '<path>'` and `git-receive-pack '<path>'`.
func parseServiceCommand(argv []string) (transport.Service, string, error) {
	if len(argv) == 0 {
		return "", "", fmt.Errorf("ssh: empty command")
	}

	cmd := strings.Join(argv, " ")
	fields := strings.SplitN(cmd, " ", 2)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("ssh: malformed command %q", cmd)
	}

	service := transport.Service(fields[0])
	switch service {
	case transport.UploadPackService, transport.ReceivePackService:
	default:
		return "", "", fmt.Errorf("ssh: unsupported command %q", fields[0])
	}

	path := commandPattern.Replace(strings.TrimSpace(fields[1]))
	return service, path, nil
}
