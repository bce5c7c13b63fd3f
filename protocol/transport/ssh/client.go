package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/kevinburke/ssh_config"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/net/proxy"

	"github.com/hearthwood/gitcore/protocol/transport"
)

// DefaultPort is the standard SSH port, used when an endpoint doesn't name
// one and ssh_config has no override either.
const DefaultPort = 22

// sshConfig is the subset of kevinburke/ssh_config's *UserSettings this
// package depends on, so tests can substitute a fake.
type sshConfig interface {
	Get(alias, key string) string
}

// DefaultSSHConfig is consulted for Hostname/Port overrides per host alias,
// the same way the openssh client reads ~/.ssh/config. Set to nil to
// disable it entirely.
var DefaultSSHConfig sshConfig = ssh_config.DefaultUserSettings

// DefaultAuthBuilder builds an AuthMethod when the caller supplies none,
// defaulting to the local ssh-agent.
var DefaultAuthBuilder = func(user string) (AuthMethod, error) {
	return NewSSHAgentAuth(user)
}

// NewTransport returns a transport.Transport that runs git-upload-pack and
// git-receive-pack over SSH. config, if non-nil, overrides fields of the
// per-connection *ssh.ClientConfig an AuthMethod builds (notably Timeout
// and Ciphers/KeyExchanges).
func NewTransport(config *ssh.ClientConfig) transport.Transport {
	return transport.NewPackTransport(&runner{override: config})
}

// DefaultTransport is the package-level SSH transport with no config
// overrides, analogous to http.DefaultTransport.
var DefaultTransport = NewTransport(nil)

type runner struct {
	override *ssh.ClientConfig
}

func (r *runner) Command(ctx context.Context, service transport.Service, ep *transport.Endpoint, auth transport.AuthMethod) (transport.Command, error) {
	c := &command{service: service, endpoint: ep, override: r.override}
	if auth != nil {
		a, ok := auth.(AuthMethod)
		if !ok {
			return nil, transport.ErrInvalidAuthMethod
		}
		c.auth = a
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

type command struct {
	session *ssh.Session
	client  *ssh.Client

	connected bool
	service   transport.Service
	endpoint  *transport.Endpoint
	auth      AuthMethod
	override  *ssh.ClientConfig
}

func (c *command) connect(ctx context.Context) error {
	if c.connected {
		return transport.ErrAlreadyConnected
	}

	if c.auth == nil {
		var err error
		if c.auth, err = DefaultAuthBuilder(c.endpoint.User); err != nil {
			return pkgerrors.Wrap(err, "ssh: building default auth method")
		}
	}

	config, err := c.auth.ClientConfig()
	if err != nil {
		return pkgerrors.Wrap(err, "ssh: building client config")
	}
	applyOverrides(c.override, config)

	hostWithPort := c.hostWithPort()
	client, err := dial(ctx, hostWithPort, c.endpoint.Proxy, config)
	if err != nil {
		return pkgerrors.Wrapf(err, "ssh: dialing %s", hostWithPort)
	}

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return pkgerrors.Wrap(err, "ssh: opening session")
	}

	c.client, c.session, c.connected = client, session, true
	return nil
}

func (c *command) hostWithPort() string {
	host, port := c.endpoint.Host, c.endpoint.Port
	if port == 0 {
		port = DefaultPort
	}

	if DefaultSSHConfig != nil {
		if h := DefaultSSHConfig.Get(c.endpoint.Host, "Hostname"); h != "" {
			host = h
		}
		if p := DefaultSSHConfig.Get(c.endpoint.Host, "Port"); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

func dial(ctx context.Context, addr string, proxyOpts transport.ProxyOptions, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialCtx := ctx
	var cancel context.CancelFunc
	if config.Timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	conn, err := dialConn(dialCtx, addr, proxyOpts)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func dialConn(ctx context.Context, addr string, proxyOpts transport.ProxyOptions) (net.Conn, error) {
	if proxyOpts.URL == "" {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}

	proxyURL, err := proxyOpts.FullURL()
	if err != nil {
		return nil, err
	}

	dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
	if err != nil {
		return nil, err
	}

	ctxDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("ssh: proxy dialer %T does not support context dialing", dialer)
	}
	return ctxDialer.DialContext(ctx, "tcp", addr)
}

func applyOverrides(override, config *ssh.ClientConfig) {
	if override == nil {
		return
	}
	if override.Timeout != 0 {
		config.Timeout = override.Timeout
	}
	if len(override.Ciphers) != 0 {
		config.Ciphers = override.Ciphers
	}
	if len(override.KeyExchanges) != 0 {
		config.KeyExchanges = override.KeyExchanges
	}
	if override.HostKeyCallback != nil {
		config.HostKeyCallback = override.HostKeyCallback
	}
}

func (c *command) StdinPipe() (io.WriteCloser, error) { return c.session.StdinPipe() }
func (c *command) StdoutPipe() (io.Reader, error)     { return c.session.StdoutPipe() }
func (c *command) StderrPipe() (io.Reader, error)     { return c.session.StderrPipe() }

func (c *command) Start() error {
	return c.session.Start(endpointToCommand(c.service, c.endpoint))
}

func (c *command) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false

	_ = c.session.Close()
	err := c.client.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func endpointToCommand(service transport.Service, ep *transport.Endpoint) string {
	return fmt.Sprintf("%s '%s'", service, ep.Path)
}
