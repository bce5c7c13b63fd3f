package ssh

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/armon/go-socks5"
	"github.com/elazarl/goproxy"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/protocol/transport"
)

// echoListener accepts one connection and writes back whatever it reads,
// so dialConn's proxied round trip can be confirmed without a real SSH
// server on the other end.
func echoListener(t *testing.T) (addr string) {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		n, _ := conn.Read(buf)
		_, _ = conn.Write(buf[:n])
	}()

	return l.Addr().String()
}

func TestDialConnThroughSOCKS5Proxy(t *testing.T) {
	target := echoListener(t)

	var proxied int32
	socksServer, err := socks5.New(&socks5.Config{
		Rules: countingRule{&proxied},
	})
	require.NoError(t, err)

	socksListener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = socksListener.Close() })
	go func() { _ = socksServer.Serve(socksListener) }()

	proxyOpts := transport.ProxyOptions{
		URL: fmt.Sprintf("socks5://%s", socksListener.Addr().String()),
	}

	conn, err := dialConn(context.Background(), target, proxyOpts)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	require.Greater(t, atomic.LoadInt32(&proxied), int32(0))
}

func TestDialConnThroughHTTPProxy(t *testing.T) {
	target := echoListener(t)

	var proxied int32
	proxy := goproxy.NewProxyHttpServer()
	proxy.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(
		func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
			atomic.AddInt32(&proxied, 1)
			return goproxy.OkConnect, host
		}))

	httpListener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = httpListener.Close() })
	go func() { _ = http.Serve(httpListener, proxy) }()

	proxyOpts := transport.ProxyOptions{
		URL: fmt.Sprintf("http://%s", httpListener.Addr().String()),
	}

	conn, err := dialConn(context.Background(), target, proxyOpts)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	require.Greater(t, atomic.LoadInt32(&proxied), int32(0))
}

type countingRule struct {
	n *int32
}

func (r countingRule) Allow(ctx context.Context, req *socks5.Request) (context.Context, bool) {
	atomic.AddInt32(r.n, 1)
	return ctx, true
}
