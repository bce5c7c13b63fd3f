package config

import (
	"errors"

	format "github.com/hearthwood/gitcore/format/config"
)

var (
	// ErrModuleEmptyURL is returned when a submodule has no URL.
	ErrModuleEmptyURL = errors.New("submodule config: empty URL")
	// ErrModuleEmptyPath is returned when a submodule has no path.
	ErrModuleEmptyPath = errors.New("submodule config: empty path")
	// ErrModuleBadPath describes a submodule whose name cannot serve as a
	// path. Nothing in this package returns it: unmarshalSubmodules skips a
	// nameless entry without reporting an error.
	ErrModuleBadPath = errors.New("submodule config: invalid path")
)

// DefaultSubmoduleBranch is assumed when a submodule sets no branch.
const DefaultSubmoduleBranch = "master"

const (
	pathKey   = "path"
	urlKey2   = "url"
	branchKey = "branch"
)

// Submodule describes a single "submodule.<name>" section, a subset of the
// fields tracked by a .gitmodules file.
type Submodule struct {
	// Name of the submodule.
	Name string
	// Path, relative to the top of the working tree, where the submodule
	// is checked out.
	Path string
	// URL the submodule repository is cloned from.
	URL string
	// Branch is the remote branch tracked for updates, if any.
	Branch string

	raw *format.Subsection
}

// Validate validates the fields and sets default values.
func (m *Submodule) Validate() error {
	if m.Path == "" {
		return ErrModuleEmptyPath
	}
	if m.URL == "" {
		return ErrModuleEmptyURL
	}
	if m.Branch == "" {
		m.Branch = DefaultSubmoduleBranch
	}
	return nil
}

func (m *Submodule) unmarshal(s *format.Subsection) {
	m.raw = s
	m.Name = s.Name
	m.Path = s.GetOption(pathKey)
	m.URL = s.GetOption(urlKey2)
	m.Branch = s.GetOption(branchKey)
}

func (m *Submodule) marshal() *format.Subsection {
	if m.raw == nil {
		m.raw = &format.Subsection{}
	}

	m.raw.Name = m.Name
	if m.Path != "" {
		m.raw.SetOption(pathKey, m.Path)
	}
	if m.URL != "" {
		m.raw.SetOption(urlKey2, m.URL)
	}
	if m.Branch != "" && m.Branch != DefaultSubmoduleBranch {
		m.raw.SetOption(branchKey, m.Branch)
	}

	return m.raw
}

func unmarshalSubmodules(fc *format.Config, into map[string]*Submodule) {
	s := fc.Section(submoduleSection)
	for _, sub := range s.Subsections {
		m := &Submodule{}
		m.unmarshal(sub)

		if m.Name == "" {
			continue
		}

		into[m.Name] = m
	}
}
