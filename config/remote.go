package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	format "github.com/hearthwood/gitcore/format/config"
)

var (
	// ErrRemoteConfigEmptyURL is returned when a remote config has no URL.
	ErrRemoteConfigEmptyURL = errors.New("remote config: empty URL")
	// ErrRemoteConfigEmptyName is returned when a remote config has no name.
	ErrRemoteConfigEmptyName = errors.New("remote config: empty name")
)

// DefaultFetchRefSpec is the refspec assumed for a remote with none set.
const DefaultFetchRefSpec = "+refs/heads/*:refs/remotes/%s/*"

// RemoteConfig describes a single "remote.<name>" section.
type RemoteConfig struct {
	// Name of the remote.
	Name string
	// URLs of the remote; fetch always uses the first, push uses all.
	URLs []string
	// Mirror indicates the local repository is a mirror of the remote.
	Mirror bool
	// Fetch is the default set of refspecs used for fetch.
	Fetch []RefSpec

	insteadOfRulesApplied bool
	originalURLs          []string

	raw *format.Subsection
}

// Validate validates the fields and sets the default values.
func (c *RemoteConfig) Validate() error {
	if c.Name == "" {
		return ErrRemoteConfigEmptyName
	}
	if len(c.URLs) == 0 {
		return ErrRemoteConfigEmptyURL
	}

	for _, r := range c.Fetch {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	if len(c.Fetch) == 0 {
		c.Fetch = []RefSpec{RefSpec(fmt.Sprintf(DefaultFetchRefSpec, c.Name))}
	}

	return nil
}

// IsFirstURLLocal reports whether the first URL is a local filesystem path.
func (c *RemoteConfig) IsFirstURLLocal() bool {
	if len(c.URLs) == 0 {
		return false
	}
	u := c.URLs[0]
	return !strings.Contains(u, "://") && !strings.HasPrefix(u, "git@")
}

func (c *RemoteConfig) unmarshal(s *format.Subsection) error {
	c.raw = s

	var fetch []RefSpec
	for _, f := range s.GetAllOptions(fetchKey) {
		rs := RefSpec(f)
		if err := rs.Validate(); err != nil {
			return err
		}
		fetch = append(fetch, rs)
	}

	c.Name = s.Name
	c.URLs = append([]string(nil), s.GetAllOptions(urlKey)...)
	c.URLs = append(c.URLs, s.GetAllOptions(pushurlKey)...)
	c.Fetch = fetch
	c.Mirror = s.GetOption(mirrorKey) == "true"

	return nil
}

func (c *RemoteConfig) marshal() *format.Subsection {
	if c.raw == nil {
		c.raw = &format.Subsection{}
	}

	c.raw.Name = c.Name

	if len(c.URLs) == 0 {
		c.raw.RemoveOption(urlKey)
	} else {
		urls := c.URLs
		if c.insteadOfRulesApplied {
			urls = c.originalURLs
		}
		c.raw.SetOption(urlKey, urls...)
	}

	if len(c.Fetch) == 0 {
		c.raw.RemoveOption(fetchKey)
	} else {
		values := make([]string, len(c.Fetch))
		for i, rs := range c.Fetch {
			values[i] = rs.String()
		}
		c.raw.SetOption(fetchKey, values...)
	}

	if c.Mirror {
		c.raw.SetOption(mirrorKey, strconv.FormatBool(c.Mirror))
	}

	return c.raw
}

// applyURLRules rewrites c.URLs in place according to the longest matching
// insteadOf rule in urlRules, remembering the originals so Marshal can
// write back the un-rewritten form.
func (c *RemoteConfig) applyURLRules(urlRules map[string]*URL) {
	originalURLs := make([]string, len(c.URLs))
	copy(originalURLs, c.URLs)

	for i, u := range c.URLs {
		if match := findLongestInsteadOfMatch(u, urlRules); match != nil {
			c.URLs[i] = match.ApplyInsteadOf(u)
			c.insteadOfRulesApplied = true
		}
	}

	if c.insteadOfRulesApplied {
		c.originalURLs = originalURLs
	}
}
