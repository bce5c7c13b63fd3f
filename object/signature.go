package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a commit/tag timestamp: a point in time plus the author's
// UTC offset, encoded in Git's wire form as "<unix-seconds> <+HHMM|-HHMM>".
type Timestamp struct {
	When time.Time
}

// ParseTimestamp parses the trailing "<seconds> <offset>" of a signature
// line.
func ParseTimestamp(s string) (Timestamp, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Timestamp{}, fmt.Errorf("object: malformed timestamp %q", s)
	}

	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("object: malformed timestamp seconds: %w", err)
	}

	sign := 1
	off := fields[1]
	if strings.HasPrefix(off, "-") {
		sign = -1
		off = off[1:]
	} else if strings.HasPrefix(off, "+") {
		off = off[1:]
	}
	if len(off) != 4 {
		return Timestamp{}, fmt.Errorf("object: malformed timezone offset %q", fields[1])
	}
	hours, err := strconv.Atoi(off[:2])
	if err != nil {
		return Timestamp{}, fmt.Errorf("object: malformed timezone offset %q: %w", fields[1], err)
	}
	mins, err := strconv.Atoi(off[2:])
	if err != nil {
		return Timestamp{}, fmt.Errorf("object: malformed timezone offset %q: %w", fields[1], err)
	}

	offsetSecs := sign * (hours*3600 + mins*60)
	loc := time.FixedZone(fields[1], offsetSecs)
	return Timestamp{When: time.Unix(secs, 0).In(loc)}, nil
}

// String renders the timestamp in Git's "<seconds> <+HHMM>" wire form.
func (t Timestamp) String() string {
	_, offset := t.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	mins := (offset % 3600) / 60
	return fmt.Sprintf("%d %s%02d%02d", t.When.Unix(), sign, hours, mins)
}

// Decode parses a "Name <email> <seconds> <+HHMM>" signature line.
func (s *Signature) Decode(b []byte) error {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open < 0 || close < 0 || close < open {
		return fmt.Errorf("object: malformed signature %q", b)
	}

	s.Name = strings.TrimSpace(string(b[:open]))
	s.Email = string(b[open+1 : close])

	rest := strings.TrimSpace(string(b[close+1:]))
	if rest == "" {
		return nil
	}

	ts, err := ParseTimestamp(rest)
	if err != nil {
		return err
	}
	s.When = ts
	return nil
}

// String renders the signature back to its wire form.
func (s Signature) String() string {
	when := s.When.String()
	if when == "" {
		return fmt.Sprintf("%s <%s>", s.Name, s.Email)
	}
	return fmt.Sprintf("%s <%s> %s", s.Name, s.Email, when)
}
