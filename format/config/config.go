// Package config implements the low-level INI-like structure of a git
// config file: sections, optional subsections, and ordered key/value
// options, decoded with gcfg's line-oriented reader.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/gcfg"
)

// NoSubsection is passed to Config.Section/SetOption/etc. to mean "no
// subsection", as opposed to an explicit empty-string subsection name.
const NoSubsection = ""

// Option is a single "key = value" line.
type Option struct {
	Key   string
	Value string
}

// IsKey reports whether o's key matches name case-insensitively, as git
// config keys are.
func (o *Option) IsKey(name string) bool { return strings.EqualFold(o.Key, name) }

// Options is an ordered list of Option.
type Options []*Option

// GetAll returns every value set for key, in file order.
func (opts Options) GetAll(key string) []string {
	var values []string
	for _, o := range opts {
		if o.IsKey(key) {
			values = append(values, o.Value)
		}
	}
	return values
}

// Get returns the last value set for key, matching git's "last one wins".
func (opts Options) Get(key string) string {
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i].IsKey(key) {
			return opts[i].Value
		}
	}
	return ""
}

// Subsection is a named subsection of a Section, e.g. the "origin" in
// [remote "origin"].
type Subsection struct {
	Name    string
	Options Options
}

// IsName reports whether ss's name matches name exactly (subsection names
// are case-sensitive in git).
func (ss *Subsection) IsName(name string) bool { return ss.Name == name }

// AddOption appends a key/value pair, allowing duplicates.
func (ss *Subsection) AddOption(key, value string) *Subsection {
	ss.Options = append(ss.Options, &Option{Key: key, Value: value})
	return ss
}

// SetOption replaces every existing value for key with values, or appends
// if key was not present.
func (ss *Subsection) SetOption(key string, values ...string) *Subsection {
	ss.Options = setOption(ss.Options, key, values...)
	return ss
}

func (ss *Subsection) GetOption(key string) string       { return ss.Options.Get(key) }
func (ss *Subsection) GetAllOptions(key string) []string { return ss.Options.GetAll(key) }

// RemoveOption drops every value set for key.
func (ss *Subsection) RemoveOption(key string) *Subsection {
	ss.Options = setOption(ss.Options, key)
	return ss
}

// Subsections is an ordered list of Subsection.
type Subsections []*Subsection

// Section is a top-level config block, e.g. "core" or "remote".
type Section struct {
	Name        string
	Options     Options
	Subsections Subsections
}

// IsName reports whether the section's name matches name case-insensitively.
func (s *Section) IsName(name string) bool { return strings.EqualFold(s.Name, name) }

// Subsection returns the named subsection, creating it if absent.
func (s *Section) Subsection(name string) *Subsection {
	for _, ss := range s.Subsections {
		if ss.IsName(name) {
			return ss
		}
	}
	ss := &Subsection{Name: name}
	s.Subsections = append(s.Subsections, ss)
	return ss
}

// HasSubsection reports whether name has already been added.
func (s *Section) HasSubsection(name string) bool {
	for _, ss := range s.Subsections {
		if ss.IsName(name) {
			return true
		}
	}
	return false
}

// RemoveSubsection drops subsection name, if present.
func (s *Section) RemoveSubsection(name string) {
	out := s.Subsections[:0]
	for _, ss := range s.Subsections {
		if !ss.IsName(name) {
			out = append(out, ss)
		}
	}
	s.Subsections = out
}

func (s *Section) AddOption(key, value string) *Section {
	s.Options = append(s.Options, &Option{Key: key, Value: value})
	return s
}

func (s *Section) SetOption(key string, values ...string) *Section {
	s.Options = setOption(s.Options, key, values...)
	return s
}

func (s *Section) GetOption(key string) string       { return s.Options.Get(key) }
func (s *Section) GetAllOptions(key string) []string  { return s.Options.GetAll(key) }

// RemoveOption drops every value set for key.
func (s *Section) RemoveOption(key string) *Section {
	s.Options = setOption(s.Options, key)
	return s
}

func setOption(opts Options, key string, values ...string) Options {
	out := opts[:0]
	for _, o := range opts {
		if !o.IsKey(key) {
			out = append(out, o)
		}
	}
	for _, v := range values {
		out = append(out, &Option{Key: key, Value: v})
	}
	return out
}

// Sections is an ordered list of Section.
type Sections []*Section

// Config is the decoded contents of one config file: an ordered set of
// sections, each possibly split across subsections.
type Config struct {
	Sections Sections
}

// New returns an empty Config.
func New() *Config { return &Config{} }

// Section returns the named section, creating it (appended) if absent.
func (c *Config) Section(name string) *Section {
	for i := len(c.Sections) - 1; i >= 0; i-- {
		if c.Sections[i].IsName(name) {
			return c.Sections[i]
		}
	}
	s := &Section{Name: name}
	c.Sections = append(c.Sections, s)
	return s
}

// HasSection reports whether name has already been added.
func (c *Config) HasSection(name string) bool {
	for _, s := range c.Sections {
		if s.IsName(name) {
			return true
		}
	}
	return false
}

// RemoveSection drops every section named name.
func (c *Config) RemoveSection(name string) *Config {
	out := c.Sections[:0]
	for _, s := range c.Sections {
		if !s.IsName(name) {
			out = append(out, s)
		}
	}
	c.Sections = out
	return c
}

// AddOption adds a key/value option under section[/subsection], using
// NoSubsection for a top-level option.
func (c *Config) AddOption(section, subsection, key, value string) *Config {
	if subsection == NoSubsection {
		c.Section(section).AddOption(key, value)
	} else {
		c.Section(section).Subsection(subsection).AddOption(key, value)
	}
	return c
}

// SetOption replaces section[/subsection]'s values for key.
func (c *Config) SetOption(section, subsection, key string, values ...string) *Config {
	if subsection == NoSubsection {
		c.Section(section).SetOption(key, values...)
	} else {
		c.Section(section).Subsection(subsection).SetOption(key, values...)
	}
	return c
}

// RemoveOption drops every value of section[/subsection]'s key.
func (c *Config) RemoveOption(section, subsection, key string) *Config {
	if subsection == NoSubsection {
		c.Section(section).RemoveOption(key)
	} else {
		c.Section(section).Subsection(subsection).RemoveOption(key)
	}
	return c
}

// GetOption returns the last value of section[/subsection]'s key, or "".
func (c *Config) GetOption(section, subsection, key string) string {
	if subsection == NoSubsection {
		return c.Section(section).GetOption(key)
	}
	return c.Section(section).Subsection(subsection).GetOption(key)
}

// GetAllOptions returns every value of section[/subsection]'s key.
func (c *Config) GetAllOptions(section, subsection, key string) []string {
	if subsection == NoSubsection {
		return c.Section(section).GetAllOptions(key)
	}
	return c.Section(section).Subsection(subsection).GetAllOptions(key)
}

// Decoder reads a config file using gcfg's line scanner, routing each
// section/subsection/key/value line into a Config via AddOption.
type Decoder struct{ r io.Reader }

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// Decode parses the whole input into cfg.
func (d *Decoder) Decode(cfg *Config) error {
	cb := func(s, ss, k, v string, _ bool) error {
		if ss == "" && k == "" {
			cfg.Section(s)
			return nil
		}
		if ss != "" && k == "" {
			cfg.Section(s).Subsection(ss)
			return nil
		}
		cfg.AddOption(s, ss, k, v)
		return nil
	}
	return gcfg.ReadWithCallback(d.r, cb)
}

// Encoder renders a Config back to git's config file text form.
type Encoder struct{ w io.Writer }

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode writes cfg in section order, each followed by its top-level
// options and then its subsections.
func (e *Encoder) Encode(cfg *Config) error {
	for _, s := range cfg.Sections {
		if err := e.encodeSection(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeSection(s *Section) error {
	if len(s.Options) > 0 || len(s.Subsections) == 0 {
		if _, err := fmt.Fprintf(e.w, "[%s]\n", s.Name); err != nil {
			return err
		}
		if err := e.encodeOptions(s.Options); err != nil {
			return err
		}
	}
	for _, ss := range s.Subsections {
		if _, err := fmt.Fprintf(e.w, "[%s %q]\n", s.Name, ss.Name); err != nil {
			return err
		}
		if err := e.encodeOptions(ss.Options); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeOptions(opts Options) error {
	for _, o := range opts {
		if _, err := fmt.Fprintf(e.w, "\t%s = %s\n", o.Key, quoteValue(o.Value)); err != nil {
			return err
		}
	}
	return nil
}

func quoteValue(v string) string {
	if v == "" {
		return `""`
	}
	if strings.ContainsAny(v, " \t#;\"") {
		return fmt.Sprintf("%q", v)
	}
	return v
}
