package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/config"
	"github.com/hearthwood/gitcore/format/packfile"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/packp"
	"github.com/hearthwood/gitcore/protocol/transport"
	"github.com/hearthwood/gitcore/protocol/transport/ssh"
	"github.com/hearthwood/gitcore/refs"
)

// Remote is a configured peer a Repository can Fetch from or Push to.
type Remote struct {
	c    *config.RemoteConfig
	repo *Repository
}

// Config returns the remote's configuration.
func (r *Remote) Config() *config.RemoteConfig { return r.c }

// transports maps an Endpoint.Protocol to the Transport that speaks it.
// ssh is the only wire transport built so far; file/git/http would each
// register here the way ssh does, without this package or its callers
// changing.
var transports = map[string]transport.Transport{
	"ssh": ssh.DefaultTransport,
}

// RegisterTransport adds or replaces the Transport used for protocol,
// letting a caller wire in file/git/http support, or substitute a fake
// Transport for tests, without forking Fetch/Push.
func RegisterTransport(protocol string, t transport.Transport) {
	transports[protocol] = t
}

func transportFor(ep *transport.Endpoint) (transport.Transport, error) {
	t, ok := transports[ep.Protocol]
	if !ok {
		return nil, fmt.Errorf("repository: no transport registered for protocol %q", ep.Protocol)
	}
	return t, nil
}

// FetchOptions parameterizes Remote.Fetch.
type FetchOptions struct {
	// RefSpecs overrides the remote's configured Fetch refspecs.
	RefSpecs []config.RefSpec
	Depth    int
	Progress io.Writer
	Auth     transport.AuthMethod
}

// Fetch negotiates and downloads every object the remote's matching refs
// need that this repository doesn't already have, then updates the local
// refs named by the refspecs.
func (r *Remote) Fetch(ctx context.Context, o *FetchOptions) error {
	if o == nil {
		o = &FetchOptions{}
	}
	specs := o.RefSpecs
	if len(specs) == 0 {
		specs = r.c.Fetch
	}

	if len(r.c.URLs) == 0 {
		return config.ErrRemoteConfigEmptyURL
	}
	ep, err := transport.NewEndpoint(r.c.URLs[0])
	if err != nil {
		return err
	}
	tr, err := transportFor(ep)
	if err != nil {
		return err
	}

	sess, err := tr.NewSession(ep, o.Auth)
	if err != nil {
		return err
	}
	conn, err := sess.Handshake(ctx, transport.UploadPackService)
	if err != nil {
		return err
	}
	defer conn.Close()

	adv, err := conn.GetRemoteRefs(ctx)
	if err != nil {
		return err
	}

	wants, updates, err := r.planFetch(adv, specs)
	if err != nil {
		return err
	}
	if len(wants) == 0 {
		return nil
	}

	haves, err := r.localHaves()
	if err != nil {
		return err
	}

	req := &transport.FetchRequest{
		Wants:    wants,
		Haves:    haves,
		Depth:    o.Depth,
		Progress: o.Progress,
	}

	var pack bytes.Buffer
	if _, err := conn.Fetch(ctx, req, &pack); err != nil {
		return err
	}

	format := wants[0].Format()
	resolved, err := packfile.Decode(&pack, format, r.repo.ExternalObjectBase)
	if err != nil {
		return err
	}
	for _, obj := range resolved {
		if _, err := r.repo.storeResolved(obj.Type, obj.Content, format); err != nil {
			return err
		}
	}

	for _, u := range updates {
		ref := refs.NewHashReference(u.name, u.id)
		if err := r.repo.s.SetReference(ref); err != nil {
			return err
		}
		if o.Progress != nil {
			fmt.Fprintln(o.Progress, fmtRef(u.name, u.id))
		}
	}
	return nil
}

type refUpdate struct {
	name refs.Name
	id   objectid.ObjectID
}

// planFetch decides which advertised object ids the repository doesn't
// already have (its wants) and which local refs should move to match,
// according to specs.
func (r *Remote) planFetch(adv *packp.AdvRefs, specs []config.RefSpec) ([]objectid.ObjectID, []refUpdate, error) {
	var wants []objectid.ObjectID
	var updates []refUpdate

	for name, id := range adv.References {
		n := refs.Name(name)
		if !config.MatchAny(specs, n) {
			continue
		}

		if err := r.repo.s.HasEncodedObject(id); err != nil {
			wants = append(wants, id)
		}

		dst := n
		for _, s := range specs {
			if s.Match(n) {
				dst = s.Dst(n)
				break
			}
		}
		updates = append(updates, refUpdate{name: dst, id: id})
	}
	return wants, updates, nil
}

// localHaves collects the tip of every local reference, so the remote can
// compute the differential closure instead of sending everything it has.
func (r *Remote) localHaves() ([]objectid.ObjectID, error) {
	iter, err := r.repo.s.IterReferences()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var haves []objectid.ObjectID
	err = iter.ForEach(func(ref *refs.Reference) error {
		if ref.Type() == refs.HashReference && !ref.Hash().IsZero() {
			haves = append(haves, ref.Hash())
		}
		return nil
	})
	return haves, err
}

// PushOptions parameterizes Remote.Push.
type PushOptions struct {
	RefSpecs []config.RefSpec
	Atomic   bool
	Progress io.Writer
	Auth     transport.AuthMethod
}

// Push sends, for each refspec, the local ref named by its source to its
// destination on the remote, along with the objects newly reachable from
// each new value. At least one refspec is required: the remote's configured
// refspecs are not used, and a source is looked up as a single ref name
// (wildcards are not expanded).
func (r *Remote) Push(ctx context.Context, o *PushOptions) error {
	if o == nil {
		o = &PushOptions{}
	}
	if len(o.RefSpecs) == 0 {
		return fmt.Errorf("repository: push requires at least one refspec")
	}
	if len(r.c.URLs) == 0 {
		return config.ErrRemoteConfigEmptyURL
	}

	ep, err := transport.NewEndpoint(r.c.URLs[0])
	if err != nil {
		return err
	}
	tr, err := transportFor(ep)
	if err != nil {
		return err
	}

	sess, err := tr.NewSession(ep, o.Auth)
	if err != nil {
		return err
	}
	conn, err := sess.Handshake(ctx, transport.ReceivePackService)
	if err != nil {
		return err
	}
	defer conn.Close()

	adv, err := conn.GetRemoteRefs(ctx)
	if err != nil {
		return err
	}

	commands, err := r.planPush(adv, o.RefSpecs)
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		return transport.ErrNoChange
	}

	pack, err := r.buildPushPack(commands, adv.References)
	if err != nil {
		return err
	}

	req := &transport.PushRequest{
		Commands: commands,
		Packfile: io.NopCloser(pack),
		Atomic:   o.Atomic,
		Progress: o.Progress,
	}

	report, err := conn.Push(ctx, req)
	if err != nil {
		return err
	}
	if o.Progress != nil {
		for _, cmd := range commands {
			fmt.Fprintln(o.Progress, fmtRef(cmd.Name, cmd.New))
		}
	}
	if report != nil {
		return report.Error()
	}
	return nil
}

func (r *Remote) planPush(adv *packp.AdvRefs, specs []config.RefSpec) ([]*packp.Command, error) {
	var commands []*packp.Command
	for _, spec := range specs {
		src := refs.Name(spec.Src())
		local, err := r.repo.s.Reference(src)
		if err != nil {
			return nil, err
		}

		dst := spec.Dst(src)
		old := adv.References[string(dst)]
		if local.Hash().Equal(old) {
			continue
		}

		commands = append(commands, &packp.Command{Name: dst, Old: old, New: local.Hash()})
	}
	return commands, nil
}

// buildPushPack walks history backward from every command's new tip,
// stopping at commits the remote already has (per remoteRefs), and
// encodes every object touched along the way into an undeltified pack.
func (r *Remote) buildPushPack(commands []*packp.Command, remoteRefs map[string]objectid.ObjectID) (io.Reader, error) {
	var tips, ignore []objectid.ObjectID
	for _, cmd := range commands {
		if cmd.Action() != packp.Delete {
			tips = append(tips, cmd.New)
		}
	}
	for _, id := range remoteRefs {
		ignore = append(ignore, id)
	}

	format := objectid.SHA1
	if len(commands) > 0 {
		format = commands[0].New.Format()
	}

	return r.repo.PackObjects(tips, ignore, format)
}
