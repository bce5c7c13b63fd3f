// Package refs implements Git reference names and values: the mapping from
// a name like "refs/heads/main" to either an object id or another name.
package refs

import (
	"errors"
	"strings"

	"github.com/hearthwood/gitcore/objectid"
)

// ErrReferenceNotFound is returned by a reference store when the requested
// name has no corresponding reference.
var ErrReferenceNotFound = errors.New("refs: reference not found")

const (
	refPrefix       = "refs/"
	refHeadPrefix   = refPrefix + "heads/"
	refTagPrefix    = refPrefix + "tags/"
	refRemotePrefix = refPrefix + "remotes/"
	refNotePrefix   = refPrefix + "notes/"
	symrefPrefix    = "ref: "
)

// Type discriminates a direct (hash) reference from a symbolic one.
type Type int8

const (
	InvalidReference Type = iota
	HashReference
	SymbolicReference
)

// Name is a fully qualified reference name such as "refs/heads/main" or
// the bare symbolic name "HEAD".
type Name string

// HEAD is the name of the reference that tracks the current checkout.
const HEAD Name = "HEAD"

// Short strips a well-known prefix (refs/heads/, refs/tags/,
// refs/remotes/, refs/notes/) for display, leaving other names unchanged.
func (n Name) Short() string {
	s := string(n)
	for _, prefix := range []string{refHeadPrefix, refTagPrefix, refRemotePrefix, refNotePrefix} {
		if strings.HasPrefix(s, prefix) {
			return s[len(prefix):]
		}
	}
	return s
}

func (n Name) String() string { return string(n) }

// Reference is a single entry of the refs namespace: either a direct
// pointer to an object id, or a symbolic pointer to another reference
// name (as HEAD usually is).
type Reference struct {
	typ    Type
	name   Name
	hash   objectid.ObjectID
	target Name
}

// NewReferenceFromStrings builds a Reference from a name and a raw target,
// recognizing the "ref: <name>" symbolic form; anything else is parsed as
// an object id.
func NewReferenceFromStrings(name, target string) (*Reference, error) {
	r := &Reference{name: Name(name)}

	if strings.HasPrefix(target, symrefPrefix) {
		r.typ = SymbolicReference
		r.target = Name(strings.TrimSpace(target[len(symrefPrefix):]))
		return r, nil
	}

	id, err := objectid.FromHex(strings.TrimSpace(target))
	if err != nil {
		return nil, err
	}
	r.typ = HashReference
	r.hash = id
	return r, nil
}

// NewSymbolicReference builds a symbolic reference pointing at target.
func NewSymbolicReference(name, target Name) *Reference {
	return &Reference{typ: SymbolicReference, name: name, target: target}
}

// NewHashReference builds a direct reference pointing at hash.
func NewHashReference(name Name, hash objectid.ObjectID) *Reference {
	return &Reference{typ: HashReference, name: name, hash: hash}
}

func (r *Reference) Type() Type            { return r.typ }
func (r *Reference) Name() Name            { return r.name }
func (r *Reference) Hash() objectid.ObjectID { return r.hash }
func (r *Reference) Target() Name          { return r.target }

func (r *Reference) IsBranch() bool { return strings.HasPrefix(string(r.name), refHeadPrefix) }
func (r *Reference) IsNote() bool   { return strings.HasPrefix(string(r.name), refNotePrefix) }
func (r *Reference) IsRemote() bool { return strings.HasPrefix(string(r.name), refRemotePrefix) }
func (r *Reference) IsTag() bool    { return strings.HasPrefix(string(r.name), refTagPrefix) }

// Strings renders the reference the way it's stored on disk: either
// "ref: <target>\n" or the hex id followed by a newline.
func (r *Reference) Strings() (string, string) {
	if r.typ == SymbolicReference {
		return string(r.name), symrefPrefix + string(r.target) + "\n"
	}
	return string(r.name), r.hash.String() + "\n"
}

func (r *Reference) String() string {
	if r.typ == SymbolicReference {
		return symrefPrefix + string(r.target)
	}
	return r.hash.String()
}
