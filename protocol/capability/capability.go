// Package capability implements the Git smart-protocol capability
// advertisement: the space-separated, optionally-valued token list a
// server attaches to its first ref advertisement line and a client
// attaches to its first want/have line.
package capability

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Capability is a single protocol extension name, as advertised on the
// wire (e.g. "thin-pack", "agent", "symref").
type Capability string

// Known capabilities. Unrecognized tokens are still accepted by Decode,
// with or without a value.
const (
	MultiACK                 Capability = "multi_ack"
	MultiACKDetailed         Capability = "multi_ack_detailed"
	NoDone                   Capability = "no-done"
	ThinPack                 Capability = "thin-pack"
	Sideband                 Capability = "side-band"
	Sideband64k              Capability = "side-band-64k"
	OFSDelta                 Capability = "ofs-delta"
	Agent                    Capability = "agent"
	Shallow                  Capability = "shallow"
	DeepenSince              Capability = "deepen-since"
	DeepenNot                Capability = "deepen-not"
	DeepenRelative           Capability = "deepen-relative"
	NoProgress               Capability = "no-progress"
	IncludeTag               Capability = "include-tag"
	ReportStatus             Capability = "report-status"
	DeleteRefs               Capability = "delete-refs"
	Quiet                    Capability = "quiet"
	Atomic                   Capability = "atomic"
	PushOptions              Capability = "push-options"
	AllowTipSHA1InWant       Capability = "allow-tip-sha1-in-want"
	AllowReachableSHA1InWant Capability = "allow-reachable-sha1-in-want"
	SymRef                   Capability = "symref"
	ObjectFormat             Capability = "object-format"
)

type arity int

const (
	arityNone arity = iota
	arityOne
	arityMulti
)

var known = map[Capability]arity{
	MultiACK:                 arityNone,
	MultiACKDetailed:         arityNone,
	NoDone:                   arityNone,
	ThinPack:                 arityNone,
	Sideband:                 arityNone,
	Sideband64k:              arityNone,
	OFSDelta:                 arityNone,
	Shallow:                  arityNone,
	NoProgress:               arityNone,
	IncludeTag:               arityNone,
	ReportStatus:             arityNone,
	DeleteRefs:               arityNone,
	Quiet:                    arityNone,
	Atomic:                   arityNone,
	PushOptions:              arityNone,
	AllowTipSHA1InWant:       arityNone,
	AllowReachableSHA1InWant: arityNone,
	DeepenRelative:           arityNone,

	Agent:          arityOne,
	ObjectFormat:   arityOne,
	DeepenSince:    arityOne,
	DeepenNot:      arityOne,

	SymRef: arityMulti,
}

// ErrArgumentsRequired is returned by Add/Set for a capability that
// requires at least one value.
var ErrArgumentsRequired = errors.New("capability: arguments required")

// ErrArguments is returned by Add/Set/Decode for a capability given an
// argument it does not accept.
var ErrArguments = errors.New("capability: unexpected arguments")

// ErrEmptyArgument is returned for a zero-length argument value.
var ErrEmptyArgument = errors.New("capability: empty argument")

// ErrMultipleArguments is returned by Add/Set for a single-valued
// capability given more than one value, or added a second time.
var ErrMultipleArguments = errors.New("capability: multiple arguments not allowed")

func arityOf(c Capability) arity {
	if a, ok := known[c]; ok {
		return a
	}
	return arityNone
}

// List is an ordered multimap of capability names to their argument
// values, as carried in a ref advertisement or a want/have line.
type List struct {
	m  map[Capability][]string
	ks []Capability
}

// NewList returns an empty List.
func NewList() *List {
	return &List{m: make(map[Capability][]string)}
}

// IsEmpty reports whether the list carries no capabilities.
func (l *List) IsEmpty() bool { return len(l.m) == 0 }

// Supports reports whether c is present, regardless of its arguments.
func (l *List) Supports(c Capability) bool {
	_, ok := l.m[c]
	return ok
}

// Get returns the argument values for c, or nil if absent.
func (l *List) Get(c Capability) []string {
	return l.m[c]
}

// All returns every capability present, in the order first added.
func (l *List) All() []Capability {
	return l.ks
}

// Add appends c with the given values, validating its arity. Adding an
// arityOne capability that is already present is an error.
func (l *List) Add(c Capability, values ...string) error {
	for _, v := range values {
		if v == "" {
			return ErrEmptyArgument
		}
	}

	switch arityOf(c) {
	case arityNone:
		if len(values) > 0 {
			return ErrArguments
		}
	case arityOne:
		if len(values) == 0 {
			return ErrArgumentsRequired
		}
		if len(values) > 1 {
			return ErrMultipleArguments
		}
		if _, ok := l.m[c]; ok {
			return ErrMultipleArguments
		}
	case arityMulti:
		if len(values) == 0 {
			return ErrArgumentsRequired
		}
	}

	if _, ok := l.m[c]; !ok {
		l.ks = append(l.ks, c)
	}
	l.m[c] = append(l.m[c], values...)
	return nil
}

// Set replaces any existing values for c with values.
func (l *List) Set(c Capability, values ...string) error {
	l.Delete(c)
	return l.Add(c, values...)
}

// Delete removes c entirely.
func (l *List) Delete(c Capability) {
	if _, ok := l.m[c]; !ok {
		return
	}
	delete(l.m, c)
	for i, k := range l.ks {
		if k == c {
			l.ks = append(l.ks[:i], l.ks[i+1:]...)
			break
		}
	}
}

// Decode parses a space-separated capability line, the form sent after
// the first pkt-line of a ref advertisement or a want/have line. Unknown
// tokens are accepted as given: bare, or with their "=value" kept.
func (l *List) Decode(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	for _, tok := range bytes.Fields(b) {
		name, value, hasValue := bytes.Cut(tok, []byte("="))
		c := Capability(name)
		a, isKnown := known[c]

		if !hasValue {
			if isKnown && a == arityOne {
				return fmt.Errorf("capability: %w: %s requires a value", ErrArguments, c)
			}
			if _, ok := l.m[c]; !ok {
				l.ks = append(l.ks, c)
				l.m[c] = nil
			}
			continue
		}

		if isKnown && a == arityNone {
			return fmt.Errorf("capability: %w: %s takes no value", ErrArguments, c)
		}

		if _, ok := l.m[c]; !ok {
			l.ks = append(l.ks, c)
		}
		l.m[c] = append(l.m[c], string(value))
	}

	return nil
}

// String renders the list in wire form, sorted by capability name for a
// deterministic encoding.
func (l *List) String() string {
	names := make([]string, 0, len(l.m))
	for c := range l.m {
		names = append(names, string(c))
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		c := Capability(name)
		values := l.m[c]
		if len(values) == 0 {
			parts = append(parts, name)
			continue
		}
		for _, v := range values {
			parts = append(parts, name+"="+v)
		}
	}

	return joinSpace(parts)
}

func joinSpace(parts []string) string {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(p)
	}
	return buf.String()
}

const userAgent = "git/gitcore"

// DefaultAgent returns the agent string this implementation advertises:
// userAgent, plus whatever GO_GIT_USER_AGENT_EXTRA adds for diagnosing
// which build produced a given connection.
func DefaultAgent() string {
	if extra := os.Getenv("GO_GIT_USER_AGENT_EXTRA"); extra != "" {
		return userAgent + " " + extra
	}
	return userAgent
}
