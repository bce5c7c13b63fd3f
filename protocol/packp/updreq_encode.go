package packp

import (
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
)

// Encode writes the reference-update-request message, followed by the
// packfile if one is attached.
func (req *ReferenceUpdateRequest) Encode(w io.Writer) error {
	if err := req.validate(); err != nil {
		return err
	}

	pw := pktline.NewWriter(w)

	if err := req.encodeShallow(pw, req.Shallow); err != nil {
		return err
	}
	if err := req.encodeCommands(pw, req.Commands, req.Capabilities); err != nil {
		return err
	}
	if req.Capabilities.Supports(capability.PushOptions) {
		if err := req.encodeOptions(pw, req.Options); err != nil {
			return err
		}
	}

	if req.Packfile != nil {
		if _, err := io.Copy(w, req.Packfile); err != nil {
			return err
		}
		return req.Packfile.Close()
	}

	return nil
}

func (req *ReferenceUpdateRequest) encodeShallow(pw *pktline.Writer, h *objectid.ObjectID) error {
	if h == nil {
		return nil
	}
	_, err := pw.WritePacketString(string(shallowPrefix) + h.String())
	return err
}

func (req *ReferenceUpdateRequest) encodeCommands(pw *pktline.Writer, cmds []*Command, caps *capability.List) error {
	first := fmt.Sprintf("%s\x00%s", formatCommand(cmds[0]), caps.String())
	if _, err := pw.WritePacketString(first); err != nil {
		return err
	}

	for _, cmd := range cmds[1:] {
		if _, err := pw.WritePacketString(formatCommand(cmd)); err != nil {
			return err
		}
	}

	return pw.WriteFlush()
}

func formatCommand(cmd *Command) string {
	return fmt.Sprintf("%s %s %s", cmd.Old.String(), cmd.New.String(), cmd.Name)
}

func (req *ReferenceUpdateRequest) encodeOptions(pw *pktline.Writer, opts []*Option) error {
	for _, opt := range opts {
		if _, err := pw.WritePacketString(fmt.Sprintf("%s=%s", opt.Key, opt.Value)); err != nil {
			return err
		}
	}
	return pw.WriteFlush()
}
