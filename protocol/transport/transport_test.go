package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEndpointSSHURL(t *testing.T) {
	ep, err := NewEndpoint("ssh://git@github.com/user/repository.git")
	require.NoError(t, err)
	assert.Equal(t, "ssh", ep.Protocol)
	assert.Equal(t, "git", ep.User)
	assert.Equal(t, "github.com", ep.Host)
	assert.Equal(t, "/user/repository.git", ep.Path)
	assert.Equal(t, "ssh://git@github.com/user/repository.git", ep.String())
}

func TestNewEndpointSSHURLWithPort(t *testing.T) {
	ep, err := NewEndpoint("ssh://git@github.com:777/user/repository.git")
	require.NoError(t, err)
	assert.Equal(t, 777, ep.Port)
	assert.Equal(t, "ssh://git@github.com:777/user/repository.git", ep.String())
}

func TestNewEndpointSCPLike(t *testing.T) {
	ep, err := NewEndpoint("git@github.com:user/repository.git")
	require.NoError(t, err)
	assert.Equal(t, "ssh", ep.Protocol)
	assert.Equal(t, "git", ep.User)
	assert.Equal(t, "github.com", ep.Host)
	assert.Equal(t, "user/repository.git", ep.Path)
	assert.Equal(t, "ssh://git@github.com/user/repository.git", ep.String())
}

func TestNewEndpointSCPLikeNumericPath(t *testing.T) {
	ep, err := NewEndpoint("git@github.com:9999/user/repository.git")
	require.NoError(t, err)
	assert.Equal(t, "9999/user/repository.git", ep.Path)
}

func TestNewEndpointFile(t *testing.T) {
	ep, err := NewEndpoint("/home/user/repository.git")
	require.NoError(t, err)
	assert.Equal(t, "file", ep.Protocol)
	assert.Equal(t, "/home/user/repository.git", ep.Path)
}

func TestNewEndpointHTTPS(t *testing.T) {
	ep, err := NewEndpoint("https://github.com/user/repository.git")
	require.NoError(t, err)
	assert.Equal(t, "https", ep.Protocol)
	assert.Equal(t, "github.com", ep.Host)
	assert.Equal(t, "/user/repository.git", ep.Path)
}

func TestProxyOptionsFullURL(t *testing.T) {
	opts := &ProxyOptions{URL: "socks5://proxy.example.com:1080", Username: "alice", Password: "s3cr3t"}
	u, err := opts.FullURL()
	require.NoError(t, err)
	assert.Equal(t, "socks5", u.Scheme)
	assert.Equal(t, "alice:s3cr3t", u.User.String())
}
