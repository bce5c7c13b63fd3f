package refs

import (
	"fmt"
	"strings"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// ReflogEntry is one line of a reference's log: the old and new value a ref
// update moved between, who made the change and when, and why. The
// identity/timestamp half of the line has the exact shape of a commit's
// author/committer line, so it reuses object.Signature to parse and render.
type ReflogEntry struct {
	Old     objectid.ObjectID
	New     objectid.ObjectID
	Who     object.Signature
	Message string
}

// String renders the entry the way it's appended to logs/<ref>:
// "<old> <new> <who>\t<message>\n".
func (e *ReflogEntry) String() string {
	return fmt.Sprintf("%s %s %s\t%s\n", e.Old, e.New, e.Who, e.Message)
}

// ParseReflogLine parses one line of a logs/<ref> file, as written by
// ReflogEntry.String.
func ParseReflogLine(line string) (*ReflogEntry, error) {
	line = strings.TrimSuffix(line, "\n")
	rest, message, ok := strings.Cut(line, "\t")
	if !ok {
		return nil, fmt.Errorf("refs: malformed reflog line: %q", line)
	}

	fields := strings.SplitN(rest, " ", 3)
	if len(fields) != 3 {
		return nil, fmt.Errorf("refs: malformed reflog line: %q", line)
	}

	old, err := objectid.FromHex(fields[0])
	if err != nil {
		return nil, err
	}
	newID, err := objectid.FromHex(fields[1])
	if err != nil {
		return nil, err
	}

	var who object.Signature
	if err := who.Decode([]byte(fields[2])); err != nil {
		return nil, err
	}

	return &ReflogEntry{Old: old, New: newID, Who: who, Message: message}, nil
}
