// Package transport defines the protocol-agnostic client/server surface
// for moving packfiles between repositories: an Endpoint (parsed repository
// URL), the Session/Connection/Commander interfaces a concrete transport
// implements (the ssh subpackage is the only one), and the Fetch/Push request shapes that
// drive the upload-pack/receive-pack exchange built on top of
// protocol/packp.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/protocol/packp"
)

var (
	ErrRepositoryNotFound     = errors.New("transport: repository not found")
	ErrEmptyRemoteRepository  = errors.New("transport: remote repository is empty")
	ErrAuthenticationRequired = errors.New("transport: authentication required")
	ErrAuthorizationFailed    = errors.New("transport: authorization failed")
	ErrInvalidAuthMethod      = errors.New("transport: invalid auth method")
	ErrAlreadyConnected       = errors.New("transport: session already established")
	ErrNoChange               = errors.New("transport: no change")
)

// AuthMethod is implemented by a concrete transport's credential types
// (ssh.PublicKeys, ssh.Password, a future http.BasicAuth, ...).
type AuthMethod interface {
	fmt.Stringer
	Name() string
}

// Endpoint is a parsed repository address in any supported protocol.
type Endpoint struct {
	Protocol string
	User     string
	Password string
	Host     string
	Port     int
	Path     string

	Proxy ProxyOptions
}

// ProxyOptions carries a SOCKS5/HTTP proxy URL and optional credentials,
// used by the ssh transport to dial through a proxy.
type ProxyOptions struct {
	URL      string
	Username string
	Password string
}

// FullURL returns the proxy URL with Username/Password embedded as userinfo.
func (o *ProxyOptions) FullURL() (*url.URL, error) {
	if o.URL == "" {
		return nil, nil
	}
	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, err
	}
	if o.Username != "" {
		if o.Password != "" {
			u.User = url.UserPassword(o.Username, o.Password)
		} else {
			u.User = url.User(o.Username)
		}
	}
	return u, nil
}

var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
	"git":   9418,
	"ssh":   22,
}

// String renders the endpoint back into a single URL-shaped string.
func (e *Endpoint) String() string {
	var buf bytes.Buffer
	if e.Protocol != "" {
		buf.WriteString(e.Protocol)
		buf.WriteByte(':')
	}
	if e.Protocol != "" || e.Host != "" || e.User != "" {
		buf.WriteString("//")
		if e.User != "" {
			buf.WriteString(url.PathEscape(e.User))
			if e.Password != "" {
				buf.WriteByte(':')
				buf.WriteString(url.PathEscape(e.Password))
			}
			buf.WriteByte('@')
		}
		if e.Host != "" {
			buf.WriteString(e.Host)
			if port, ok := defaultPorts[strings.ToLower(e.Protocol)]; e.Port != 0 && (!ok || port != e.Port) {
				fmt.Fprintf(&buf, ":%d", e.Port)
			}
		}
	}
	if e.Path != "" && e.Host != "" && e.Path[0] != '/' {
		buf.WriteByte('/')
	}
	buf.WriteString(e.Path)
	return buf.String()
}

var scpLikeURL = regexp.MustCompile(`^(?:([^@]+)@)?([^:/]+):(.+)$`)

// NewEndpoint parses a repository address: an scp-like shorthand
// (git@host:path.git), a bare local path, or a fully qualified URL
// (ssh://, git://, https://, file://).
func NewEndpoint(endpoint string) (*Endpoint, error) {
	if !strings.Contains(endpoint, "://") {
		if m := scpLikeURL.FindStringSubmatch(endpoint); m != nil {
			return &Endpoint{Protocol: "ssh", User: m[1], Host: m[2], Port: 22, Path: m[3]}, nil
		}
		return &Endpoint{Protocol: "file", Path: endpoint}, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid endpoint %q: %w", endpoint, err)
	}

	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}

	e := &Endpoint{
		Protocol: u.Scheme,
		User:     user,
		Password: pass,
		Host:     u.Hostname(),
		Path:     u.Path,
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			e.Port = n
		}
	}
	return e, nil
}

// FetchRequest parameterizes an upload-pack negotiation: the objects the
// client wants, the objects it already has, and an optional shallow depth.
type FetchRequest struct {
	Wants       []objectid.ObjectID
	Haves       []objectid.ObjectID
	Shallows    []objectid.ObjectID
	Depth       int
	IncludeTags bool
	Progress    io.Writer
}

// PushRequest parameterizes a receive-pack command list plus the packfile
// built to satisfy it.
type PushRequest struct {
	Commands []*packp.Command
	Packfile io.ReadCloser
	Options  map[string]string
	Atomic   bool
	Progress io.Writer
}

// Connection is an established session with a remote: its advertised
// capabilities plus the Fetch/Push operations built on top of them.
type Connection interface {
	io.Closer

	Capabilities() *capability.List
	StatelessRPC() bool

	// GetRemoteRefs returns the references advertised during the handshake.
	GetRemoteRefs(ctx context.Context) (*packp.AdvRefs, error)

	// Fetch negotiates and reads a packfile satisfying req, writing it to
	// dst as it is streamed off the wire.
	Fetch(ctx context.Context, req *FetchRequest, dst io.Writer) (*packp.ShallowUpdate, error)

	// Push sends req's command list and packfile, returning the server's
	// report-status.
	Push(ctx context.Context, req *PushRequest) (*packp.ReportStatus, error)
}

// Service names the two git wire services a session can speak.
type Service string

const (
	UploadPackService  Service = "git-upload-pack"
	ReceivePackService Service = "git-receive-pack"
)

// Session performs the handshake that yields a Connection.
type Session interface {
	Handshake(ctx context.Context, service Service) (Connection, error)
}

// Command is a single running remote process (an SSH session, a spawned
// local git-upload-pack, ...), modeled after exec.Cmd.
type Command interface {
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	Start() error
	Close() error
}

// Commander creates Commands for a given service against an endpoint. A
// concrete transport (the ssh subpackage) implements Commander and gets a
// Session/Connection pair for free from NewPackTransport.
type Commander interface {
	Command(ctx context.Context, service Service, ep *Endpoint, auth AuthMethod) (Command, error)
}

// Transport mints Sessions for an endpoint.
type Transport interface {
	NewSession(ep *Endpoint, auth AuthMethod) (Session, error)
}

type commanderTransport struct {
	cmdr Commander
}

// NewPackTransport adapts a Commander into a Transport by wiring each
// session to packSession, the shared pkt-line protocol implementation.
func NewPackTransport(cmdr Commander) Transport {
	return &commanderTransport{cmdr}
}

func (t *commanderTransport) NewSession(ep *Endpoint, auth AuthMethod) (Session, error) {
	return &packSession{cmdr: t.cmdr, ep: ep, auth: auth}, nil
}
