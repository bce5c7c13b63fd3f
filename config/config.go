// Package config wraps the low-level INI model in format/config with a
// typed repository configuration — core, user, remotes, branches, URL
// rewrite rules and submodules — and local/global/system scope merging.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"dario.cat/mergo"

	format "github.com/hearthwood/gitcore/format/config"
)

// ErrInvalid is returned when a remote or branch's map key doesn't match
// its own Name field.
var ErrInvalid = errors.New("config: invalid key in remote or branch")

// ConfigStorer is implemented by a repository's backing store to persist
// and retrieve its local-scope Config.
type ConfigStorer interface {
	Config() (*Config, error)
	SetConfig(*Config) error
}

// Scope identifies which config file a Config was, or should be, read
// from, git-config(1)'s --local/--global/--system distinction.
type Scope int

const (
	LocalScope Scope = iota
	GlobalScope
	SystemScope
)

const (
	remoteSection    = "remote"
	submoduleSection = "submodule"
	branchSection    = "branch"
	coreSection      = "core"
	packSection      = "pack"
	userSection      = "user"
	authorSection    = "author"
	committerSection = "committer"
	initSection      = "init"
	urlSection       = "url"

	fetchKey                   = "fetch"
	urlKey                     = "url"
	pushurlKey                 = "pushurl"
	bareKey                    = "bare"
	worktreeKey                = "worktree"
	windowKey                  = "window"
	remoteKey                  = "remote"
	mergeKey                   = "merge"
	rebaseKey                  = "rebase"
	nameKey                    = "name"
	emailKey                   = "email"
	descriptionKey             = "description"
	defaultBranchKey           = "defaultBranch"
	repositoryFormatVersionKey = "repositoryformatversion"
	mirrorKey                  = "mirror"

	// DefaultPackWindow is the default delta-compression window size.
	DefaultPackWindow = uint(10)
)

// Config is a repository's merged configuration, mirroring the sections
// git-config(1) recognizes.
// https://www.kernel.org/pub/software/scm/git/docs/git-config.html#FILES
type Config struct {
	Core struct {
		// IsBare, if true, means this repository has no working tree.
		IsBare bool
		// Worktree is the path to the working tree root.
		Worktree string
		// RepositoryFormatVersion identifies the repository format/layout.
		RepositoryFormatVersion string
	}

	User struct {
		Name  string
		Email string
	}

	Author struct {
		Name  string
		Email string
	}

	Committer struct {
		Name  string
		Email string
	}

	Pack struct {
		// Window is the number of previous objects considered when
		// generating deltas; 0 disables delta compression.
		Window uint
	}

	Init struct {
		DefaultBranch string
	}

	// Remotes is keyed by remote name, matching RemoteConfig.Name.
	Remotes map[string]*RemoteConfig
	// Submodules is keyed by submodule name, matching Submodule.Name.
	Submodules map[string]*Submodule
	// Branches is keyed by branch name, matching Branch.Name.
	Branches map[string]*Branch
	// URLs is keyed by URL.Name; insteadOf rewrite rules.
	URLs map[string]*URL

	// Raw preserves whatever the underlying file contained that isn't
	// modeled above, so re-marshaling doesn't drop unknown keys.
	Raw *format.Config
}

// NewConfig returns an empty Config with its maps initialized and defaults
// applied.
func NewConfig() *Config {
	c := &Config{
		Remotes:    make(map[string]*RemoteConfig),
		Submodules: make(map[string]*Submodule),
		Branches:   make(map[string]*Branch),
		URLs:       make(map[string]*URL),
		Raw:        format.New(),
	}
	c.Pack.Window = DefaultPackWindow
	return c
}

// ReadConfig parses a git-config file from r.
func ReadConfig(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	c := NewConfig()
	if err := c.Unmarshal(b); err != nil {
		return nil, err
	}
	return c, nil
}

// Paths returns the candidate config file locations for scope, in the
// order git-config(1) checks them.
func Paths(scope Scope) ([]string, error) {
	var files []string
	switch scope {
	case GlobalScope:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			files = append(files, filepath.Join(xdg, "git/config"))
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		files = append(files, filepath.Join(home, ".gitconfig"), filepath.Join(home, ".config/git/config"))
	case SystemScope:
		files = append(files, "/etc/gitconfig")
	}
	return files, nil
}

// LoadConfig loads a single scope's config file from disk, returning an
// empty Config if none of the candidate paths exist. LocalScope has no
// fixed path (it lives inside a repository's storer) and must be read
// through a ConfigStorer instead.
func LoadConfig(scope Scope) (*Config, error) {
	if scope == LocalScope {
		return nil, fmt.Errorf("config: LocalScope must be read through a repository's storer")
	}

	files, err := Paths(scope)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		defer f.Close()
		return ReadConfig(f)
	}

	return NewConfig(), nil
}

// Merge combines local, global and system scope configs into one,
// local values winning over global, global over system. Unlike a plain
// struct overwrite, mergo.WithOverride only overwrites a destination
// field when the source's is non-zero, so an unset local value falls
// through to global/system instead of blanking it out.
func Merge(local, global, system *Config) (*Config, error) {
	result := NewConfig()

	for _, src := range []*Config{system, global, local} {
		if src == nil {
			continue
		}
		if err := mergo.Merge(result, src, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Validate validates every Remote and Branch, and that each map key
// matches its value's Name.
func (c *Config) Validate() error {
	for name, r := range c.Remotes {
		if r.Name != name {
			return ErrInvalid
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}

	for name, b := range c.Branches {
		if b.Name != name {
			return ErrInvalid
		}
		if err := b.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Unmarshal parses a git-config file and populates c from it.
func (c *Config) Unmarshal(b []byte) error {
	r := bytes.NewBuffer(b)
	d := format.NewDecoder(r)

	c.Raw = format.New()
	if err := d.Decode(c.Raw); err != nil {
		return err
	}

	c.unmarshalCore()
	c.unmarshalUser()
	if err := c.unmarshalPack(); err != nil {
		return err
	}
	c.unmarshalInit()
	unmarshalSubmodules(c.Raw, c.Submodules)

	if err := c.unmarshalBranches(); err != nil {
		return err
	}
	if err := c.unmarshalURLs(); err != nil {
		return err
	}

	return c.unmarshalRemotes()
}

func (c *Config) unmarshalCore() {
	s := c.Raw.Section(coreSection)
	c.Core.IsBare = s.GetOption(bareKey) == "true"
	c.Core.Worktree = s.GetOption(worktreeKey)
	c.Core.RepositoryFormatVersion = s.GetOption(repositoryFormatVersionKey)
}

func (c *Config) unmarshalUser() {
	s := c.Raw.Section(userSection)
	c.User.Name = s.GetOption(nameKey)
	c.User.Email = s.GetOption(emailKey)

	s = c.Raw.Section(authorSection)
	c.Author.Name = s.GetOption(nameKey)
	c.Author.Email = s.GetOption(emailKey)

	s = c.Raw.Section(committerSection)
	c.Committer.Name = s.GetOption(nameKey)
	c.Committer.Email = s.GetOption(emailKey)
}

func (c *Config) unmarshalPack() error {
	s := c.Raw.Section(packSection)
	window := s.GetOption(windowKey)
	if window == "" {
		c.Pack.Window = DefaultPackWindow
		return nil
	}

	w, err := strconv.ParseUint(window, 10, 32)
	if err != nil {
		return err
	}
	c.Pack.Window = uint(w)
	return nil
}

func (c *Config) unmarshalInit() {
	s := c.Raw.Section(initSection)
	c.Init.DefaultBranch = s.GetOption(defaultBranchKey)
}

func (c *Config) unmarshalRemotes() error {
	s := c.Raw.Section(remoteSection)
	for _, sub := range s.Subsections {
		r := &RemoteConfig{}
		if err := r.unmarshal(sub); err != nil {
			return err
		}
		c.Remotes[r.Name] = r
	}

	for _, r := range c.Remotes {
		r.applyURLRules(c.URLs)
	}

	return nil
}

func (c *Config) unmarshalURLs() error {
	s := c.Raw.Section(urlSection)
	for _, sub := range s.Subsections {
		u := &URL{}
		if err := u.unmarshal(sub); err != nil {
			return err
		}
		c.URLs[u.Name] = u
	}
	return nil
}

func (c *Config) unmarshalBranches() error {
	s := c.Raw.Section(branchSection)
	for _, sub := range s.Subsections {
		b := &Branch{}
		if err := b.unmarshal(sub); err != nil {
			return err
		}
		c.Branches[b.Name] = b
	}
	return nil
}

// Marshal renders c back to git-config file text form.
func (c *Config) Marshal() ([]byte, error) {
	if c.Raw == nil {
		c.Raw = format.New()
	}

	c.marshalCore()
	c.marshalUser()
	c.marshalPack()
	c.marshalInit()
	c.marshalRemotes()
	c.marshalSubmodules()
	c.marshalBranches()
	c.marshalURLs()

	buf := bytes.NewBuffer(nil)
	if err := format.NewEncoder(buf).Encode(c.Raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) marshalCore() {
	s := c.Raw.Section(coreSection)
	s.SetOption(bareKey, fmt.Sprintf("%t", c.Core.IsBare))
	if c.Core.Worktree != "" {
		s.SetOption(worktreeKey, c.Core.Worktree)
	}
	if c.Core.RepositoryFormatVersion != "" {
		s.SetOption(repositoryFormatVersionKey, c.Core.RepositoryFormatVersion)
	}
}

func (c *Config) marshalUser() {
	s := c.Raw.Section(userSection)
	if c.User.Name != "" {
		s.SetOption(nameKey, c.User.Name)
	}
	if c.User.Email != "" {
		s.SetOption(emailKey, c.User.Email)
	}

	s = c.Raw.Section(authorSection)
	if c.Author.Name != "" {
		s.SetOption(nameKey, c.Author.Name)
	}
	if c.Author.Email != "" {
		s.SetOption(emailKey, c.Author.Email)
	}

	s = c.Raw.Section(committerSection)
	if c.Committer.Name != "" {
		s.SetOption(nameKey, c.Committer.Name)
	}
	if c.Committer.Email != "" {
		s.SetOption(emailKey, c.Committer.Email)
	}
}

func (c *Config) marshalPack() {
	s := c.Raw.Section(packSection)
	if c.Pack.Window != DefaultPackWindow {
		s.SetOption(windowKey, fmt.Sprintf("%d", c.Pack.Window))
	}
}

func (c *Config) marshalInit() {
	s := c.Raw.Section(initSection)
	if c.Init.DefaultBranch != "" {
		s.SetOption(defaultBranchKey, c.Init.DefaultBranch)
	}
}

func (c *Config) marshalRemotes() {
	s := c.Raw.Section(remoteSection)
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make(format.Subsections, 0, len(names))
	for _, name := range names {
		subs = append(subs, c.Remotes[name].marshal())
	}
	s.Subsections = subs
}

func (c *Config) marshalSubmodules() {
	s := c.Raw.Section(submoduleSection)
	names := make([]string, 0, len(c.Submodules))
	for name := range c.Submodules {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make(format.Subsections, 0, len(names))
	for _, name := range names {
		sub := c.Submodules[name].marshal()
		sub.RemoveOption(pathKey)
		subs = append(subs, sub)
	}
	s.Subsections = subs
}

func (c *Config) marshalBranches() {
	s := c.Raw.Section(branchSection)
	names := make([]string, 0, len(c.Branches))
	for name := range c.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make(format.Subsections, 0, len(names))
	for _, name := range names {
		subs = append(subs, c.Branches[name].marshal())
	}
	s.Subsections = subs
}

func (c *Config) marshalURLs() {
	s := c.Raw.Section(urlSection)
	names := make([]string, 0, len(c.URLs))
	for name := range c.URLs {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make(format.Subsections, 0, len(names))
	for _, name := range names {
		subs = append(subs, c.URLs[name].marshal())
	}
	s.Subsections = subs
}
