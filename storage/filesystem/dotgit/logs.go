package dotgit

import (
	"bufio"
	"os"

	"github.com/hearthwood/gitcore/refs"
)

const logsPath = "logs"

// AppendReflog appends entry to logs/<name>, creating the file and any
// missing parent directories on first use, the way git appends to a ref's
// reflog on every successful update.
func (d *DotGit) AppendReflog(name refs.Name, entry *refs.ReflogEntry) error {
	path := d.fs.Join(logsPath, name.String())

	if err := d.fs.MkdirAll(d.fs.Join(logsPath, parentOf(name.String())), 0o755); err != nil {
		return err
	}

	f, err := d.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write([]byte(entry.String()))
	return err
}

// ReadReflog returns every entry logged for name, oldest first. A ref with
// no log file yet (logging was never enabled for it, or it was never
// updated) returns a nil slice and no error.
func (d *DotGit) ReadReflog(name refs.Name) ([]*refs.ReflogEntry, error) {
	path := d.fs.Join(logsPath, name.String())

	f, err := d.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []*refs.ReflogEntry
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		entry, err := refs.ParseReflogLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, s.Err()
}

// parentOf returns the directory portion of a ref name ("refs/heads/main"
// -> "refs/heads"), or "" for a bare top-level name like "HEAD".
func parentOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[:i]
		}
	}
	return ""
}
