package transport

import (
	"context"
	"fmt"
	"io"

	ctxio "github.com/jbenet/go-context/io"

	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/protocol/packp"
)

// packSession is the shared Session/Connection implementation a
// pkt-line transport (here only ssh) gets by wrapping a Commander in
// NewPackTransport: it runs the requested service as a Command and speaks
// the advertisement/negotiation/report-status protocol over its pipes.
type packSession struct {
	cmdr Commander
	ep   *Endpoint
	auth AuthMethod

	cmd     Command
	service Service
	adv     *packp.AdvRefs

	stdin  io.WriteCloser
	stdout io.Reader
}

func (s *packSession) Handshake(ctx context.Context, service Service) (Connection, error) {
	cmd, err := s.cmdr.Command(ctx, service, s.ep, s.auth)
	if err != nil {
		return nil, err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	adv := packp.NewAdvRefs()
	if err := adv.Decode(stdout); err != nil {
		_ = cmd.Close()
		return nil, fmt.Errorf("transport: decoding advertised-refs: %w", err)
	}

	s.cmd, s.service, s.adv, s.stdin, s.stdout = cmd, service, adv, stdin, stdout
	return s, nil
}

func (s *packSession) Close() error {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd == nil {
		return nil
	}
	return s.cmd.Close()
}

func (s *packSession) Capabilities() *capability.List { return s.adv.Capabilities }

// StatelessRPC is true for request/response transports (http) that cannot
// keep a single long-lived pipe open across a multi-round negotiation. The
// only transport built on packSession (ssh) is stateful, so this is always
// false here; there is no http, git:// or file:// transport.
func (s *packSession) StatelessRPC() bool { return false }

func (s *packSession) GetRemoteRefs(ctx context.Context) (*packp.AdvRefs, error) {
	return s.adv, nil
}

// Fetch and Push both read the remote's reply off s.stdout, which can block
// indefinitely on a stalled or oversized transfer; wrapping it in a
// ctxio.Reader makes that read return early (with ctx.Err()) once ctx is
// done, instead of threading context.Context through negotiatePack/
// negotiatePush and io.Copy by hand.
func (s *packSession) Fetch(ctx context.Context, req *FetchRequest, dst io.Writer) (*packp.ShallowUpdate, error) {
	if s.service != UploadPackService {
		return nil, fmt.Errorf("transport: Fetch called on a %s session", s.service)
	}

	r := ctxio.NewReader(ctx, s.stdout)
	shupd, err := negotiatePack(s.adv.Capabilities, s.stdin, r, req)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, r); err != nil {
		return nil, fmt.Errorf("transport: reading packfile: %w", err)
	}
	return shupd, nil
}

func (s *packSession) Push(ctx context.Context, req *PushRequest) (*packp.ReportStatus, error) {
	if s.service != ReceivePackService {
		return nil, fmt.Errorf("transport: Push called on a %s session", s.service)
	}
	r := ctxio.NewReader(ctx, s.stdout)
	return negotiatePush(s.adv.Capabilities, s.stdin, r, req)
}
