package dotgit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hearthwood/gitcore/refs"
)

// ErrPackedRefsBadFormat is returned when a line of packed-refs can't be
// parsed as "<hash> <name>".
var ErrPackedRefsBadFormat = errors.New("dotgit: malformed packed-refs line")

// SetRef writes a single loose reference file, creating any missing
// directory components of its name.
func (d *DotGit) SetRef(ref *refs.Reference) error {
	name, content := ref.Strings()

	f, err := d.fs.Create(name)
	if err != nil {
		return fmt.Errorf("dotgit: creating ref %s: %w", name, err)
	}

	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// RemoveRef deletes a loose reference file. It is not an error for the
// file to already be absent (the ref may only exist in packed-refs).
func (d *DotGit) RemoveRef(n refs.Name) error {
	err := d.fs.Remove(n.String())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Refs enumerates every reference known to the repository: packed refs
// first, then loose refs (which shadow a packed entry of the same name),
// then HEAD.
func (d *DotGit) Refs() ([]*refs.Reference, error) {
	var series []*refs.Reference
	seen := make(map[refs.Name]bool)

	packed, err := d.packedRefs()
	if err != nil {
		return nil, err
	}
	loose, err := d.looseRefs(refsPath)
	if err != nil {
		return nil, err
	}
	for _, ref := range loose {
		seen[ref.Name()] = true
	}

	for _, ref := range packed {
		if seen[ref.Name()] {
			continue
		}
		series = append(series, ref)
	}
	series = append(series, loose...)

	if head, err := d.readRefFile("HEAD"); err == nil {
		series = append(series, head)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return series, nil
}

func (d *DotGit) packedRefs() ([]*refs.Reference, error) {
	f, err := d.fs.Open(packedRefsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var series []*refs.Reference
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		switch line[0] {
		case '#', '^':
			continue
		}

		hash, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, ErrPackedRefsBadFormat
		}

		ref, err := refs.NewReferenceFromStrings(name, hash)
		if err != nil {
			return nil, err
		}
		series = append(series, ref)
	}

	return series, s.Err()
}

func (d *DotGit) looseRefs(dir string) ([]*refs.Reference, error) {
	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var series []*refs.Reference
	for _, e := range entries {
		path := d.fs.Join(dir, e.Name())
		if e.IsDir() {
			nested, err := d.looseRefs(path)
			if err != nil {
				return nil, err
			}
			series = append(series, nested...)
			continue
		}

		ref, err := d.readRefFile(path)
		if err != nil {
			return nil, err
		}
		series = append(series, ref)
	}

	return series, nil
}

func (d *DotGit) readRefFile(path string) (*refs.Reference, error) {
	f, err := d.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return refs.NewReferenceFromStrings(path, strings.TrimSpace(string(b)))
}

// WritePackedRefs rewrites packed-refs in full from series, in the format
// Refs' packedRefs parser reads back.
func (d *DotGit) WritePackedRefs(series []*refs.Reference) error {
	f, err := d.fs.Create(packedRefsPath)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString("# pack-refs with: peeled fully-peeled sorted\n"); err != nil {
		f.Close()
		return err
	}

	for _, ref := range series {
		if ref.Type() != refs.HashReference {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", ref.Hash(), ref.Name()); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
