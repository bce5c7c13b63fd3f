package transport

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/protocol/packp"
)

// negotiatePack runs the upload-pack haves/wants exchange described in
// https://git-scm.com/docs/pack-protocol#_packfile_negotiation: build an
// UploadRequest from req and the server's advertised capabilities, send it
// plus the client's haves, then read back a NAK/ACK and an optional
// shallow-update before the packfile itself starts flowing on r.
func negotiatePack(caps *capability.List, w io.Writer, r io.Reader, req *FetchRequest) (*packp.ShallowUpdate, error) {
	if len(req.Wants) == 0 {
		return nil, fmt.Errorf("transport: no wants specified")
	}

	upreq := packp.NewUploadRequest()
	multiACK := false
	multiACKDetailed := false
	switch {
	case caps.Supports(capability.MultiACKDetailed):
		upreq.Capabilities.Set(capability.MultiACKDetailed) //nolint:errcheck
		multiACKDetailed = true
	case caps.Supports(capability.MultiACK):
		upreq.Capabilities.Set(capability.MultiACK) //nolint:errcheck
		multiACK = true
	}

	if req.Progress != nil && caps.Supports(capability.Sideband64k) {
		upreq.Capabilities.Set(capability.Sideband64k) //nolint:errcheck
	} else if req.Progress != nil && caps.Supports(capability.Sideband) {
		upreq.Capabilities.Set(capability.Sideband) //nolint:errcheck
	} else if caps.Supports(capability.NoProgress) {
		upreq.Capabilities.Set(capability.NoProgress) //nolint:errcheck
	}

	if caps.Supports(capability.ThinPack) {
		upreq.Capabilities.Set(capability.ThinPack) //nolint:errcheck
	}
	if caps.Supports(capability.OFSDelta) {
		upreq.Capabilities.Set(capability.OFSDelta) //nolint:errcheck
	}
	if caps.Supports(capability.Agent) {
		upreq.Capabilities.Set(capability.Agent, capability.DefaultAgent()) //nolint:errcheck
	}
	if req.IncludeTags && caps.Supports(capability.IncludeTag) {
		upreq.Capabilities.Set(capability.IncludeTag) //nolint:errcheck
	}

	upreq.Wants = req.Wants
	if req.Depth != 0 {
		upreq.Depth = packp.DepthCommits(req.Depth)
		upreq.Capabilities.Set(capability.Shallow) //nolint:errcheck
		upreq.Shallows = req.Shallows
	}

	if isSubsetHex(req.Wants, req.Haves) && len(upreq.Shallows) == 0 {
		return nil, pktline.NewWriter(w).WriteFlush()
	}

	if err := upreq.Encode(w); err != nil {
		return nil, fmt.Errorf("transport: sending upload-request: %w", err)
	}

	uphav := packp.UploadHaves{Haves: req.Haves, Done: true}
	if err := uphav.Encode(w); err != nil {
		return nil, fmt.Errorf("transport: sending upload-haves: %w", err)
	}

	var shupd packp.ShallowUpdate
	if req.Depth != 0 {
		if err := shupd.Decode(r); err != nil {
			return nil, fmt.Errorf("transport: decoding shallow-update: %w", err)
		}
	}

	var srvrs packp.ServerResponse
	if err := srvrs.Decode(r, multiACK, multiACKDetailed); err != nil {
		return nil, fmt.Errorf("transport: decoding server-response: %w", err)
	}

	return &shupd, nil
}

func isSubsetHex(needle, haystack []objectid.ObjectID) bool {
	for _, h := range needle {
		found := false
		for _, oh := range haystack {
			if h.Equal(oh) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// negotiatePush writes req's command list, push-options and packfile to w,
// then reads back a ReportStatus when the caller asked the server to send
// one via the report-status capability.
func negotiatePush(caps *capability.List, w io.WriteCloser, r io.Reader, req *PushRequest) (*packp.ReportStatus, error) {
	updreq := packp.NewReferenceUpdateRequestFromCapabilities(caps)
	updreq.Commands = req.Commands
	updreq.Packfile = req.Packfile
	if req.Atomic && caps.Supports(capability.Atomic) {
		updreq.Capabilities.Set(capability.Atomic) //nolint:errcheck
	}
	for k, v := range req.Options {
		updreq.Options = append(updreq.Options, &packp.Option{Key: k, Value: v})
	}

	if err := updreq.Encode(w); err != nil {
		return nil, fmt.Errorf("transport: sending reference-update-request: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("transport: closing push writer: %w", err)
	}

	if !caps.Supports(capability.ReportStatus) {
		return nil, nil
	}

	var buf bytes.Buffer
	report := packp.NewReportStatus()
	if err := report.Decode(io.TeeReader(r, &buf)); err != nil {
		return nil, fmt.Errorf("transport: decoding report-status: %w", err)
	}
	return report, nil
}
