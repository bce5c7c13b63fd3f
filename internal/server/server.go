// Package server implements the repository side of the two git wire
// services, upload-pack and receive-pack: advertising refs, negotiating a
// fetch or accepting a push, and driving a repository.Repository exactly
// the way the client side in repository.Remote drives a transport.Connection
// from the other end. It is the piece cmd/gitcore's receive-pack/upload-pack
// subcommands and protocol/transport/ssh's Server hand requests to.
package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/hearthwood/gitcore/format/packfile"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/protocol/packp"
	"github.com/hearthwood/gitcore/protocol/transport"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/repository"
	"github.com/hearthwood/gitcore/storer"
)

// AdvertiseReferences writes the first message of a git wire session: every
// ref the repository holds (plus a peeled entry for annotated tags), HEAD
// resolved to its target when forPush is false, and the capabilities this
// server understands.
func AdvertiseReferences(repo *repository.Repository, w io.Writer, forPush bool) error {
	ar := packp.NewAdvRefs()
	ar.Capabilities.Set(capability.Agent, capability.DefaultAgent())    //nolint:errcheck
	ar.Capabilities.Set(capability.OFSDelta)                           //nolint:errcheck
	ar.Capabilities.Set(capability.NoProgress)                         //nolint:errcheck
	if forPush {
		ar.Capabilities.Set(capability.ReportStatus) //nolint:errcheck
		ar.Capabilities.Set(capability.DeleteRefs)   //nolint:errcheck
	} else {
		ar.Capabilities.Set(capability.IncludeTag) //nolint:errcheck
	}

	iter, err := repo.References()
	if err != nil {
		return err
	}
	defer iter.Close()

	var all []*refs.Reference
	if err := iter.ForEach(func(r *refs.Reference) error {
		all = append(all, r)
		return nil
	}); err != nil {
		return err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

	for _, r := range all {
		if r.Name() == refs.HEAD {
			if !forPush {
				resolved, err := storer.ResolveReference(repo.Storer(), refs.HEAD)
				if err != nil {
					return err
				}
				hash := resolved.Hash()
				ar.Head = &hash
			}
			continue
		}
		if err := ar.AddReference(r); err != nil {
			return err
		}
	}

	return ar.Encode(w)
}

// UploadPack serves a git-upload-pack request: it advertises refs, decodes
// the client's wants/haves, and streams back a pack built from everything
// reachable from the wants that isn't already reachable from the haves.
func UploadPack(ctx context.Context, repo *repository.Repository, r io.Reader, w io.WriteCloser) (err error) {
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	if err := AdvertiseReferences(repo, w, false); err != nil {
		return err
	}

	rd := bufio.NewReader(r)
	upreq := packp.NewUploadRequest()
	if err := upreq.Decode(rd); err != nil {
		return err
	}
	if len(upreq.Wants) == 0 {
		return fmt.Errorf("server: upload-pack request carries no wants")
	}

	// No multi_ack(_detailed) is advertised, so the client sends its full
	// have set in one round terminated by "done" rather than negotiating
	// back and forth.
	var uphav packp.UploadHaves
	if err := uphav.Decode(rd); err != nil {
		return err
	}

	var srvrsp packp.ServerResponse
	if err := srvrsp.Encode(w); err != nil {
		return err
	}

	pack, err := repo.PackObjects(upreq.Wants, uphav.Haves, upreq.Wants[0].Format())
	if err != nil {
		return err
	}
	_, err = io.Copy(w, pack)
	return err
}

// ReceivePack serves a git-receive-pack request: it advertises refs,
// decodes the client's ref-update commands and packfile, stores every
// object the pack carries, applies each command, and reports the result if
// the client negotiated report-status.
func ReceivePack(ctx context.Context, repo *repository.Repository, r io.Reader, w io.WriteCloser) (err error) {
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	if err := AdvertiseReferences(repo, w, true); err != nil {
		return err
	}

	rd := bufio.NewReader(r)
	updreq := packp.NewReferenceUpdateRequest()
	if err := updreq.Decode(rd); err != nil {
		return err
	}

	unpackErr := applyPack(repo, rd, updreq.Commands)

	if !updreq.Capabilities.Supports(capability.ReportStatus) {
		return unpackErr
	}

	rs := packp.NewReportStatus()
	rs.UnpackStatus = "ok"
	if unpackErr != nil {
		rs.UnpackStatus = unpackErr.Error()
	}

	var firstErr error
	for _, cmd := range updreq.Commands {
		cmdErr := unpackErr
		if cmdErr == nil {
			cmdErr = updateReference(repo, cmd)
		}
		status := "ok"
		if cmdErr != nil {
			status = cmdErr.Error()
			if firstErr == nil {
				firstErr = cmdErr
			}
		}
		rs.CommandStatuses = append(rs.CommandStatuses, &packp.CommandStatus{
			ReferenceName: cmd.Name,
			Status:        status,
		})
	}

	if err := rs.Encode(w); err != nil {
		return err
	}
	return firstErr
}

func applyPack(repo *repository.Repository, r io.Reader, commands []*packp.Command) error {
	if len(commands) == 0 {
		return nil
	}

	format := objectid.SHA1
	for _, cmd := range commands {
		if !cmd.New.IsZero() {
			format = cmd.New.Format()
			break
		}
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}

	resolved, err := packfile.Decode(bytes.NewReader(body), format, repo.ExternalObjectBase)
	if err != nil {
		return err
	}
	for _, obj := range resolved {
		if _, err := repo.StoreResolvedObject(obj.Type, obj.Content, format); err != nil {
			return err
		}
	}
	return nil
}

func updateReference(repo *repository.Repository, cmd *packp.Command) error {
	switch cmd.Action() {
	case packp.Delete:
		return repo.Storer().RemoveReference(cmd.Name)
	default:
		return repo.SetReference(refs.NewHashReference(cmd.Name, cmd.New))
	}
}

// Serve dispatches service against the repository rooted at path, matching
// ssh.ServiceHandler's signature so protocol/transport/ssh.Server can invoke
// it directly, and so a CLI subcommand can invoke it against stdin/stdout.
func Serve(ctx context.Context, service transport.Service, path string, stdin io.Reader, stdout io.Writer) error {
	repo, handle, err := repository.DefaultCache.Open(path, func(p string) (*repository.Repository, error) {
		return repository.PlainOpen(p)
	})
	if err != nil {
		return err
	}
	defer repository.DefaultCache.Close(handle.Path)

	wc, ok := stdout.(io.WriteCloser)
	if !ok {
		wc = nopWriteCloser{stdout}
	}

	switch service {
	case transport.UploadPackService:
		return UploadPack(ctx, repo, stdin, wc)
	case transport.ReceivePackService:
		return ReceivePack(ctx, repo, stdin, wc)
	default:
		return fmt.Errorf("server: unsupported service %q", service)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
