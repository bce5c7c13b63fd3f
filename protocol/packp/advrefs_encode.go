package packp

import (
	"fmt"
	"io"
	"sort"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
)

// Encode writes the advertised-refs message to w.
func (a *AdvRefs) Encode(w io.Writer) error {
	pw := pktline.NewWriter(w)

	if err := a.encodeFirstLine(pw); err != nil {
		return err
	}
	if err := a.encodeRefs(pw); err != nil {
		return err
	}
	if err := a.encodeShallow(pw); err != nil {
		return err
	}
	return pw.WriteFlush()
}

func (a *AdvRefs) encodeFirstLine(pw *pktline.Writer) error {
	hash := objectid.Zero
	name := noHead
	if a.Head != nil {
		hash = *a.Head
		name = head
	}

	var caps string
	if a.Capabilities != nil {
		caps = a.Capabilities.String()
	}

	line := fmt.Sprintf("%s %s\x00%s\n", hash.String(), name, caps)
	_, err := pw.WritePacketString(line)
	return err
}

func (a *AdvRefs) encodeRefs(pw *pktline.Writer) error {
	names := make([]string, 0, len(a.References))
	for name := range a.References {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == head {
			continue
		}
		if _, err := pw.WritePacketString(fmt.Sprintf("%s %s\n", a.References[name].String(), name)); err != nil {
			return err
		}
		if peeled, ok := a.Peeled[name]; ok {
			if _, err := pw.WritePacketString(fmt.Sprintf("%s %s^{}\n", peeled.String(), name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *AdvRefs) encodeShallow(pw *pktline.Writer) error {
	shallows := make([]objectid.ObjectID, len(a.Shallows))
	copy(shallows, a.Shallows)
	sort.Slice(shallows, func(i, j int) bool { return shallows[i].String() < shallows[j].String() })

	for _, h := range shallows {
		if _, err := pw.WritePacketString("shallow " + h.String() + "\n"); err != nil {
			return err
		}
	}
	return nil
}
