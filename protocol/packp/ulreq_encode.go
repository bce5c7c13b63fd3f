package packp

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
)

// ErrEmptyWants is returned by Encode when an UploadRequest has no wants.
var ErrEmptyWants = errors.New("packp: empty wants")

// Encode writes the upload-request message to w.
func (r *UploadRequest) Encode(w io.Writer) error {
	if len(r.Wants) == 0 {
		return ErrEmptyWants
	}

	pw := pktline.NewWriter(w)

	if err := r.encodeWants(pw); err != nil {
		return err
	}
	if err := r.encodeShallows(pw); err != nil {
		return err
	}
	if err := r.encodeDepth(pw); err != nil {
		return err
	}
	if err := r.encodeFilter(pw); err != nil {
		return err
	}
	return pw.WriteFlush()
}

func sortedUniqueHex(ids []objectid.ObjectID) []objectid.ObjectID {
	sorted := make([]objectid.ObjectID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	out := sorted[:0]
	var last objectid.ObjectID
	first := true
	for _, id := range sorted {
		if first || id.String() != last.String() {
			out = append(out, id)
			last = id
			first = false
		}
	}
	return out
}

func (r *UploadRequest) encodeWants(pw *pktline.Writer) error {
	wants := sortedUniqueHex(r.Wants)

	caps := ""
	if r.Capabilities != nil {
		caps = r.Capabilities.String()
	}

	for i, w := range wants {
		line := "want " + w.String()
		if i == 0 && caps != "" {
			line += " " + caps
		}
		if _, err := pw.WritePacketString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (r *UploadRequest) encodeShallows(pw *pktline.Writer) error {
	for _, h := range sortedUniqueHex(r.Shallows) {
		if _, err := pw.WritePacketString("shallow " + h.String() + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (r *UploadRequest) encodeDepth(pw *pktline.Writer) error {
	if r.Depth == nil || r.Depth.IsZero() {
		return nil
	}

	var line string
	switch r.Depth.(type) {
	case DepthCommits:
		line = "deepen " + r.Depth.String()
	case DepthSince:
		line = "deepen-since " + r.Depth.String()
	case DepthReference:
		line = "deepen-not " + r.Depth.String()
	default:
		return fmt.Errorf("packp: unknown depth type %T", r.Depth)
	}

	_, err := pw.WritePacketString(line + "\n")
	return err
}

func (r *UploadRequest) encodeFilter(pw *pktline.Writer) error {
	if r.Filter == "" {
		return nil
	}
	_, err := pw.WritePacketString("filter " + string(r.Filter) + "\n")
	return err
}
