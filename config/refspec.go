package config

import (
	"strings"

	"github.com/hearthwood/gitcore/refs"
)

const (
	refSpecWildcard  = "*"
	refSpecForce     = "+"
	refSpecSeparator = ":"
)

// RefSpec maps remote references to local ones for fetch, or local
// references to remote ones for push: "[+]<src>:<dst>", where a leading
// "+" allows a non-fast-forward update and <src>/<dst> may each carry at
// most one "*" wildcard, e.g. "+refs/heads/*:refs/remotes/origin/*".
type RefSpec string

// IsValid reports whether s has exactly one separator and a matching
// number of wildcards (0 or 1) on both sides.
func (s RefSpec) IsValid() bool {
	spec := string(s)
	if strings.Count(spec, refSpecSeparator) != 1 {
		return false
	}

	sep := strings.Index(spec, refSpecSeparator)
	if sep == len(spec)-1 {
		return false
	}

	ws := strings.Count(spec[:sep], refSpecWildcard)
	wd := strings.Count(spec[sep+1:], refSpecWildcard)
	return ws == wd && ws < 2 && wd < 2
}

// Validate returns an error describing why s is invalid, or nil.
func (s RefSpec) Validate() error {
	if !s.IsValid() {
		return ErrRefSpecMalformedSeparator
	}
	return nil
}

// IsForceUpdate reports whether s allows a non-fast-forward update.
func (s RefSpec) IsForceUpdate() bool {
	return len(s) > 0 && s[0] == refSpecForce[0]
}

func (s RefSpec) isGlob() bool {
	return strings.Contains(string(s), refSpecWildcard)
}

// Src returns the source side of the mapping (the remote side for fetch,
// the local side for push).
func (s RefSpec) Src() string {
	spec := string(s)
	start := 0
	if s.IsForceUpdate() {
		start = 1
	}
	end := strings.Index(spec, refSpecSeparator)
	return spec[start:end]
}

// Match reports whether n matches s's source pattern.
func (s RefSpec) Match(n refs.Name) bool {
	if !s.isGlob() {
		return s.Src() == n.String()
	}
	return s.matchGlob(n)
}

func (s RefSpec) matchGlob(n refs.Name) bool {
	src := s.Src()
	name := n.String()
	wildcard := strings.Index(src, refSpecWildcard)

	prefix := src[:wildcard]
	suffix := src[wildcard+1:]

	return len(name) > len(prefix)+len(suffix) &&
		strings.HasPrefix(name, prefix) &&
		strings.HasSuffix(name, suffix)
}

// Dst returns the destination reference name for a source n that matched
// this RefSpec, substituting n's wildcard capture if s is a glob.
func (s RefSpec) Dst(n refs.Name) refs.Name {
	spec := string(s)
	start := strings.Index(spec, refSpecSeparator) + 1
	dst := spec[start:]
	src := s.Src()

	if !s.isGlob() {
		return refs.Name(dst)
	}

	name := n.String()
	ws := strings.Index(src, refSpecWildcard)
	wd := strings.Index(dst, refSpecWildcard)
	match := name[ws : len(name)-(len(src)-(ws+1))]

	return refs.Name(dst[:wd] + match + dst[wd+1:])
}

func (s RefSpec) String() string { return string(s) }

// MatchAny reports whether any RefSpec in l matches n.
func MatchAny(l []RefSpec, n refs.Name) bool {
	for _, r := range l {
		if r.Match(n) {
			return true
		}
	}
	return false
}
