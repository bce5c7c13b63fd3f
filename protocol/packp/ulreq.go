package packp

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
)

// UploadRequest is the message a client sends to open an upload-pack
// negotiation: the objects it wants, what it already has shallow, and how
// deep or filtered the resulting packfile should be.
// Zero-value is not safe; use NewUploadRequest.
type UploadRequest struct {
	Capabilities *capability.List
	Wants        []objectid.ObjectID
	Shallows     []objectid.ObjectID
	Depth        Depth
	Filter       Filter
}

// Depth bounds how much history an upload-pack negotiation asks for.
type Depth interface {
	fmt.Stringer
	IsZero() bool
}

// DepthCommits caps the packfile at the given number of commits per ref.
// Zero means no limit.
type DepthCommits int

func (d DepthCommits) IsZero() bool { return d == 0 }
func (d DepthCommits) String() string { return strconv.Itoa(int(d)) }

// DepthSince excludes commits older than the given time.
type DepthSince time.Time

func (d DepthSince) IsZero() bool     { return time.Time(d).IsZero() }
func (d DepthSince) String() string   { return strconv.FormatInt(time.Time(d).Unix(), 10) }

// DepthReference excludes commits reachable from the named reference.
type DepthReference string

func (d DepthReference) IsZero() bool   { return d == "" }
func (d DepthReference) String() string { return string(d) }

// NewUploadRequest returns an UploadRequest with no wants or shallows, an
// infinite depth, and no filter. Encode refuses to run until at least one
// want is set.
func NewUploadRequest() *UploadRequest {
	return &UploadRequest{
		Capabilities: capability.NewList(),
		Depth:        DepthCommits(0),
	}
}
