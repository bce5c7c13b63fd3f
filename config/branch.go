package config

import (
	"errors"

	format "github.com/hearthwood/gitcore/format/config"
	"github.com/hearthwood/gitcore/refs"
)

var (
	// ErrBranchEmptyName is returned when a branch has no name.
	ErrBranchEmptyName = errors.New("branch config: empty name")
	// ErrBranchInvalidMerge is returned when a branch's merge ref isn't a
	// full reference name (a "refs/..." path).
	ErrBranchInvalidMerge = errors.New("branch config: merge must be a full reference name")
	// ErrRefSpecMalformedSeparator is returned by a RefSpec with zero, or
	// more than one, ':' separators.
	ErrRefSpecMalformedSeparator = errors.New("config: refspec malformed, separator not found")
)

// Branch describes a single "branch.<name>" section: the upstream remote
// and ref it tracks, and the rebase/merge strategy used when pulling.
type Branch struct {
	// Name of the branch.
	Name string
	// Remote name of the remote to fetch from, as in Config.Remotes.
	Remote string
	// Merge is the remote ref to merge into this branch (must start with
	// "refs/").
	Merge refs.Name
	// Rebase instead of merging when pulling ("true", "false",
	// "interactive", "merges").
	Rebase string
	// Description of the branch, used by format-patch/request-pull.
	Description string

	raw *format.Subsection
}

// Validate validates the fields and sets the default values.
func (b *Branch) Validate() error {
	if b.Name == "" {
		return ErrBranchEmptyName
	}

	if b.Merge != "" && !isFullReferenceName(b.Merge) {
		return ErrBranchInvalidMerge
	}

	return nil
}

func isFullReferenceName(n refs.Name) bool {
	return len(n) > 5 && n[:5] == "refs/"
}

func (b *Branch) unmarshal(s *format.Subsection) error {
	b.raw = s

	b.Name = s.Name
	b.Remote = s.GetOption(remoteKey)
	b.Merge = refs.Name(s.GetOption(mergeKey))
	b.Rebase = s.GetOption(rebaseKey)
	b.Description = s.GetOption(descriptionKey)

	return b.Validate()
}

func (b *Branch) marshal() *format.Subsection {
	if b.raw == nil {
		b.raw = &format.Subsection{}
	}

	b.raw.Name = b.Name

	if b.Remote == "" {
		b.raw.RemoveOption(remoteKey)
	} else {
		b.raw.SetOption(remoteKey, b.Remote)
	}

	if b.Merge == "" {
		b.raw.RemoveOption(mergeKey)
	} else {
		b.raw.SetOption(mergeKey, b.Merge.String())
	}

	if b.Rebase == "" {
		b.raw.RemoveOption(rebaseKey)
	} else {
		b.raw.SetOption(rebaseKey, b.Rebase)
	}

	if b.Description == "" {
		b.raw.RemoveOption(descriptionKey)
	} else {
		b.raw.SetOption(descriptionKey, b.Description)
	}

	return b.raw
}
