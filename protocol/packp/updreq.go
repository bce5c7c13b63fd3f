package packp

import (
	"errors"
	"io"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/refs"
)

// ErrEmptyCommands is returned by Encode when a reference-update request
// carries no commands.
var ErrEmptyCommands = errors.New("packp: empty commands")

// ErrMalformedCommand is returned for a command whose old and new hash are
// both zero.
var ErrMalformedCommand = errors.New("packp: malformed command")

// ReferenceUpdateRequest is the message a client sends to open a
// receive-pack (push) session: the ref changes it wants applied, its
// capabilities, and the packfile carrying the new objects.
// Zero-value is not safe; use NewReferenceUpdateRequest.
type ReferenceUpdateRequest struct {
	Capabilities *capability.List
	Commands     []*Command
	Options      []*Option
	Shallow      *objectid.ObjectID

	// Packfile carries the objects referenced by the new hashes, if any.
	Packfile io.ReadCloser

	// Progress receives sideband progress messages read back from the server.
	Progress io.Writer
}

// NewReferenceUpdateRequest returns a ReferenceUpdateRequest with no
// commands, ready to be populated.
func NewReferenceUpdateRequest() *ReferenceUpdateRequest {
	return &ReferenceUpdateRequest{
		Capabilities: capability.NewList(),
	}
}

// NewReferenceUpdateRequestFromCapabilities builds a request whose
// capabilities are the most useful subset of adv (the server's advertised
// capabilities): its agent string and report-status if supported. Callers
// are left to opt into atomic, side-band(-64k), quiet and push-options.
func NewReferenceUpdateRequestFromCapabilities(adv *capability.List) *ReferenceUpdateRequest {
	r := NewReferenceUpdateRequest()

	if adv.Supports(capability.Agent) {
		r.Capabilities.Set(capability.Agent, capability.DefaultAgent())
	}
	if adv.Supports(capability.ReportStatus) {
		r.Capabilities.Set(capability.ReportStatus)
	}

	return r
}

func (req *ReferenceUpdateRequest) validate() error {
	if len(req.Commands) == 0 {
		return ErrEmptyCommands
	}
	for _, c := range req.Commands {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Action classifies a Command by what it does to a ref.
type Action string

const (
	Create  Action = "create"
	Update  Action = "update"
	Delete  Action = "delete"
	Invalid Action = "invalid"
)

// Command is a single old-hash/new-hash/refname triple within a
// reference-update request.
type Command struct {
	Name refs.Name
	Old  objectid.ObjectID
	New  objectid.ObjectID
}

// Action reports what this command does: Create if Old is zero, Delete if
// New is zero, Update otherwise, or Invalid if both are zero.
func (c *Command) Action() Action {
	switch {
	case c.Old.IsZero() && c.New.IsZero():
		return Invalid
	case c.Old.IsZero():
		return Create
	case c.New.IsZero():
		return Delete
	default:
		return Update
	}
}

func (c *Command) validate() error {
	if c.Action() == Invalid {
		return ErrMalformedCommand
	}
	return nil
}

// Option is a push-options capability value.
type Option struct {
	Key   string
	Value string
}
