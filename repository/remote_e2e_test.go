package repository

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/config"
	"github.com/hearthwood/gitcore/format/packfile"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/protocol/packp"
	"github.com/hearthwood/gitcore/protocol/transport"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storage/memory"
)

// loopbackTransport/Session/Connection stand in for a real wire transport
// in tests, wired directly to a peer Repository's Storer so Fetch/Push can
// be exercised without a socket.
type loopbackTransport struct{ peer *Repository }

func (t *loopbackTransport) NewSession(ep *transport.Endpoint, auth transport.AuthMethod) (transport.Session, error) {
	return &loopbackSession{peer: t.peer}, nil
}

type loopbackSession struct{ peer *Repository }

func (s *loopbackSession) Handshake(ctx context.Context, service transport.Service) (transport.Connection, error) {
	return &loopbackConn{peer: s.peer}, nil
}

type loopbackConn struct{ peer *Repository }

func (c *loopbackConn) Close() error                  { return nil }
func (c *loopbackConn) Capabilities() *capability.List { return capability.NewList() }
func (c *loopbackConn) StatelessRPC() bool            { return false }

func (c *loopbackConn) GetRemoteRefs(ctx context.Context) (*packp.AdvRefs, error) {
	adv := packp.NewAdvRefs()
	iter, err := c.peer.s.IterReferences()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	return adv, iter.ForEach(func(r *refs.Reference) error {
		if r.Type() == refs.HashReference {
			adv.References[string(r.Name())] = r.Hash()
		}
		return nil
	})
}

func (c *loopbackConn) Fetch(ctx context.Context, req *transport.FetchRequest, dst io.Writer) (*packp.ShallowUpdate, error) {
	var sources []packfile.Source
	for _, id := range req.Wants {
		o, err := c.peer.s.EncodedObject(object.CommitType, id)
		if err != nil {
			return nil, err
		}
		content, err := readAll(o)
		if err != nil {
			return nil, err
		}
		sources = append(sources, packfile.Source{Type: object.CommitType, Content: content})
	}
	_, err := packfile.Encode(dst, sources, objectid.SHA1)
	return nil, err
}

func (c *loopbackConn) Push(ctx context.Context, req *transport.PushRequest) (*packp.ReportStatus, error) {
	body, err := io.ReadAll(req.Packfile)
	if err != nil {
		return nil, err
	}

	resolved, err := packfile.Decode(bytes.NewReader(body), objectid.SHA1, func(objectid.ObjectID) ([]byte, object.Type, error) {
		return nil, 0, object.ErrObjectNotFound
	})
	if err != nil {
		return nil, err
	}
	for _, obj := range resolved {
		if _, err := c.peer.storeResolved(obj.Type, obj.Content, objectid.SHA1); err != nil {
			return nil, err
		}
	}
	for _, cmd := range req.Commands {
		if err := c.peer.s.SetReference(refs.NewHashReference(cmd.Name, cmd.New)); err != nil {
			return nil, err
		}
	}
	return &packp.ReportStatus{UnpackStatus: "ok"}, nil
}

func TestFetchOverLoopbackTransport(t *testing.T) {
	remoteRepo, err := Init(memory.NewStorage(), nil)
	require.NoError(t, err)
	tip := commitFixture(t, remoteRepo.s)
	require.NoError(t, remoteRepo.SetReference(refs.NewHashReference("refs/heads/master", tip)))

	prev := transports["ssh"]
	defer func() { transports["ssh"] = prev }()
	transports["ssh"] = &loopbackTransport{peer: remoteRepo}

	local, rem := newTestRemote(t, &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"ssh://git@example.com/repo.git"},
		Fetch: []config.RefSpec{
			config.RefSpec("+refs/heads/*:refs/remotes/origin/*"),
		},
	})

	require.NoError(t, rem.Fetch(context.Background(), nil))

	ref, err := local.Reference("refs/remotes/origin/master", false)
	require.NoError(t, err)
	assert.Equal(t, tip, ref.Hash())

	_, err = local.CommitObject(tip)
	require.NoError(t, err)
}

func TestPushOverLoopbackTransport(t *testing.T) {
	remoteRepo, err := Init(memory.NewStorage(), nil)
	require.NoError(t, err)

	prev := transports["ssh"]
	defer func() { transports["ssh"] = prev }()
	transports["ssh"] = &loopbackTransport{peer: remoteRepo}

	local, rem := newTestRemote(t, &config.RemoteConfig{
		Name: "origin",
		URLs: []string{"ssh://git@example.com/repo.git"},
	})

	tip := commitFixture(t, local.s)
	require.NoError(t, local.SetReference(refs.NewHashReference("refs/heads/master", tip)))

	err = rem.Push(context.Background(), &PushOptions{
		RefSpecs: []config.RefSpec{config.RefSpec("refs/heads/master:refs/heads/master")},
	})
	require.NoError(t, err)

	ref, err := remoteRepo.Reference("refs/heads/master", false)
	require.NoError(t, err)
	assert.Equal(t, tip, ref.Hash())

	_, err = remoteRepo.CommitObject(tip)
	require.NoError(t, err)
}
