package objectid

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Abbreviated captures a prefix of an ObjectID's hex form — as few as one
// nibble, as many as the full id. It is the type returned by short-hash
// resolution and used to detect ambiguous abbreviations.
type Abbreviated struct {
	nibbles int
	raw     [SHA256Size]byte
}

// ParseAbbreviated parses a (possibly partial) hex string into an
// Abbreviated id. An odd nibble count is supported: the final nibble is
// stored in the high bits of its byte with the low bits zeroed.
func ParseAbbreviated(s string) (Abbreviated, error) {
	var a Abbreviated
	if len(s) == 0 || len(s) > SHA256HexSize {
		return a, fmt.Errorf("objectid: invalid abbreviation length %d", len(s))
	}

	padded := s
	if len(s)%2 != 0 {
		padded = s + "0"
	}
	raw, err := hex.DecodeString(padded)
	if err != nil {
		return a, fmt.Errorf("objectid: %w", err)
	}

	copy(a.raw[:], raw)
	a.nibbles = len(s)
	return a, nil
}

// Nibbles returns the number of hex digits captured.
func (a Abbreviated) Nibbles() int { return a.nibbles }

// String renders the abbreviation back to its original hex digits.
func (a Abbreviated) String() string {
	full := hex.EncodeToString(a.raw[:(a.nibbles+1)/2])
	return full[:a.nibbles]
}

// PrefixCompare returns 0 iff id begins with this abbreviation's prefix,
// negative if id sorts before the prefix, positive if after — mirroring
// ObjectID.Compare so callers can binary-search a sorted id table for the
// first id not less than the prefix and then test PrefixCompare at the
// bracketing entries.
func (a Abbreviated) PrefixCompare(id ObjectID) int {
	fullBytes := a.nibbles / 2
	if c := bytes.Compare(a.raw[:fullBytes], id.raw[:fullBytes]); c != 0 {
		return c
	}
	if a.nibbles%2 == 0 {
		return 0
	}

	// Odd trailing nibble: compare only the high 4 bits of the next byte.
	want := a.raw[fullBytes] & 0xf0
	got := id.raw[fullBytes] & 0xf0
	switch {
	case want < got:
		return -1
	case want > got:
		return 1
	default:
		return 0
	}
}

// Matches reports whether id begins with this abbreviation.
func (a Abbreviated) Matches(id ObjectID) bool { return a.PrefixCompare(id) == 0 }
