package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/config"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/packp"
	"github.com/hearthwood/gitcore/protocol/transport"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storage/memory"
)

func newTestRemote(t *testing.T, c *config.RemoteConfig) (*Repository, *Remote) {
	t.Helper()
	s := memory.NewStorage()
	r, err := Init(s, nil)
	require.NoError(t, err)
	rem, err := r.CreateRemote(c)
	require.NoError(t, err)
	return r, rem
}

func TestTransportForUnknownProtocol(t *testing.T) {
	ep, err := transport.NewEndpoint("https://example.com/repo.git")
	require.NoError(t, err)

	_, err = transportFor(ep)
	assert.Error(t, err)
}

func TestRegisterTransportOverridesDispatch(t *testing.T) {
	prev := transports["ssh"]
	defer func() { transports["ssh"] = prev }()

	fake := &fakeTransport{}
	RegisterTransport("ssh", fake)
	assert.Same(t, fake, transports["ssh"])
}

type fakeTransport struct{}

func (f *fakeTransport) NewSession(ep *transport.Endpoint, auth transport.AuthMethod) (transport.Session, error) {
	return nil, assert.AnError
}

func TestPlanFetchSelectsMatchingWants(t *testing.T) {
	_, rem := newTestRemote(t, &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@example.com:repo.git"},
		Fetch: []config.RefSpec{
			config.RefSpec("+refs/heads/*:refs/remotes/origin/*"),
		},
	})

	tip := objectid.ObjectID{}
	adv := packp.NewAdvRefs()
	adv.References = map[string]objectid.ObjectID{
		"refs/heads/master": tip,
		"refs/tags/v1":       tip,
	}

	wants, updates, err := rem.planFetch(adv, rem.c.Fetch)
	require.NoError(t, err)
	assert.Len(t, wants, 1)
	require.Len(t, updates, 1)
	assert.Equal(t, refs.Name("refs/remotes/origin/master"), updates[0].name)
}

func TestPlanPushSkipsUnchangedRefs(t *testing.T) {
	repo, rem := newTestRemote(t, &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@example.com:repo.git"},
	})

	tip := commitFixture(t, repo.s)
	require.NoError(t, repo.SetReference(refs.NewHashReference("refs/heads/master", tip)))

	adv := packp.NewAdvRefs()
	adv.References = map[string]objectid.ObjectID{"refs/heads/master": tip}

	specs := []config.RefSpec{config.RefSpec("refs/heads/master:refs/heads/master")}
	cmds, err := rem.planPush(adv, specs)
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestPlanPushIncludesChangedRefs(t *testing.T) {
	repo, rem := newTestRemote(t, &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@example.com:repo.git"},
	})

	tip := commitFixture(t, repo.s)
	require.NoError(t, repo.SetReference(refs.NewHashReference("refs/heads/master", tip)))

	adv := packp.NewAdvRefs()
	adv.References = map[string]objectid.ObjectID{}

	specs := []config.RefSpec{config.RefSpec("refs/heads/master:refs/heads/master")}
	cmds, err := rem.planPush(adv, specs)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, packp.Create, cmds[0].Action())
	assert.Equal(t, tip, cmds[0].New)
}

func TestBuildPushPackWalksHistory(t *testing.T) {
	repo, rem := newTestRemote(t, &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@example.com:repo.git"},
	})

	tip := commitFixture(t, repo.s)
	cmd := &packp.Command{Name: "refs/heads/master", New: tip}

	r, err := rem.buildPushPack([]*packp.Command{cmd}, map[string]objectid.ObjectID{})
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "PACK", string(buf[:n]))
}
