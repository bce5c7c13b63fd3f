package config

import (
	"errors"
	"strings"

	format "github.com/hearthwood/gitcore/format/config"
)

var errURLEmptyInsteadOf = errors.New("url config: empty insteadOf")

const insteadOfKey = "insteadOf"

// URL defines a base-URL rewrite rule: any remote URL that starts with one
// of InsteadOfs is rewritten to start with Name instead.
type URL struct {
	// Name is the replacement base URL.
	Name string
	// InsteadOfs are the prefixes that get rewritten to Name. When more
	// than one insteadOf matches, the longest one wins.
	InsteadOfs []string

	raw *format.Subsection
}

// Validate validates the fields.
func (u *URL) Validate() error {
	if len(u.InsteadOfs) == 0 {
		return errURLEmptyInsteadOf
	}
	return nil
}

func (u *URL) unmarshal(s *format.Subsection) error {
	u.raw = s
	u.Name = s.Name
	u.InsteadOfs = s.GetAllOptions(insteadOfKey)
	return nil
}

func (u *URL) marshal() *format.Subsection {
	if u.raw == nil {
		u.raw = &format.Subsection{}
	}

	u.raw.Name = u.Name
	u.raw.SetOption(insteadOfKey, u.InsteadOfs...)

	return u.raw
}

func findLongestInsteadOfMatch(remoteURL string, urls map[string]*URL) *URL {
	var longest *URL
	var longestLen int

	for _, u := range urls {
		for _, prefix := range u.InsteadOfs {
			if !strings.HasPrefix(remoteURL, prefix) {
				continue
			}
			if longest == nil || longestLen < len(prefix) {
				longest = u
				longestLen = len(prefix)
			}
		}
	}

	return longest
}

// ApplyInsteadOf rewrites url if it has one of u.InsteadOfs as a prefix,
// replacing the longest such prefix.
func (u *URL) ApplyInsteadOf(url string) string {
	longest := -1
	for i, prefix := range u.InsteadOfs {
		if strings.HasPrefix(url, prefix) && (longest < 0 || len(prefix) > len(u.InsteadOfs[longest])) {
			longest = i
		}
	}
	if longest < 0 {
		return url
	}
	return u.Name + url[len(u.InsteadOfs[longest]):]
}
