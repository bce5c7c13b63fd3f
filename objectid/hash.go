// Package objectid implements the content-addressed identifiers used to name
// every object in the store: 20-byte SHA-1 ids and, for repositories opted
// into the long hash format, 32-byte SHA-256 ids.
package objectid

import (
	"bytes"
	"crypto"
	_ "crypto/sha256" // registers crypto.SHA256 with the crypto package
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strconv"

	"github.com/pjbgf/sha1cd"
)

// Format selects which hash function an ObjectID or a repository uses.
type Format int

const (
	// SHA1 is the legacy, default object format.
	SHA1 Format = iota
	// SHA256 is the long object format.
	SHA256
)

const (
	// SHA1Size is the length in bytes of a SHA-1 object id.
	SHA1Size = 20
	// SHA1HexSize is the length of a SHA-1 id in lower-case hex.
	SHA1HexSize = SHA1Size * 2
	// SHA256Size is the length in bytes of a SHA-256 object id.
	SHA256Size = 32
	// SHA256HexSize is the length of a SHA-256 id in lower-case hex.
	SHA256HexSize = SHA256Size * 2
)

// ErrUnsupportedFormat is returned by RegisterHash for a Format other than
// the two supported here.
var ErrUnsupportedFormat = errors.New("objectid: unsupported hash format")

var algos = map[Format]func() hash.Hash{}

func init() { resetAlgos() }

// resetAlgos restores the default hash constructors. Exposed to tests that
// register substitute algorithms, so they can clean up after themselves.
func resetAlgos() {
	algos[SHA1] = sha1cd.New
	algos[SHA256] = crypto.SHA256.New
}

// RegisterHash overrides the hash.Hash constructor used for a Format.
func RegisterHash(f Format, ctor func() hash.Hash) error {
	if ctor == nil {
		return fmt.Errorf("objectid: nil constructor for %v", f)
	}
	switch f {
	case SHA1, SHA256:
		algos[f] = ctor
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
}

func newHasher(f Format) hash.Hash {
	ctor, ok := algos[f]
	if !ok {
		panic(fmt.Sprintf("objectid: hash algorithm not registered: %v", f))
	}
	return ctor()
}

// ObjectID is a content identifier: the hash of "<kind> <size>\0<payload>".
// Equality is byte-equality; ordering is unsigned lexicographic byte order.
// The zero value is a valid, all-zero SHA-1 id.
type ObjectID struct {
	format Format
	size   int
	raw    [SHA256Size]byte
}

// Zero is the all-zero SHA-1 id, used as the "no object"/"no old value"
// sentinel in ref updates.
var Zero ObjectID

// FromHex decodes a hex string into an ObjectID. The format is inferred from
// the string length: SHA256HexSize selects the long format, SHA1HexSize
// selects SHA-1, and any other length (including partial hashes) is an error.
func FromHex(s string) (ObjectID, error) {
	var id ObjectID
	switch len(s) {
	case SHA256HexSize:
		id.format = SHA256
		id.size = SHA256Size
	case SHA1HexSize:
		id.format = SHA1
		id.size = SHA1Size
	default:
		return id, fmt.Errorf("objectid: invalid hex length %d", len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return ObjectID{}, fmt.Errorf("objectid: %w", err)
	}
	copy(id.raw[:], raw)
	return id, nil
}

// FromBytes wraps raw id bytes. The format is inferred from the slice
// length (20 -> SHA-1, 32 -> SHA-256); any other length is an error.
func FromBytes(b []byte) (ObjectID, error) {
	var id ObjectID
	switch len(b) {
	case SHA1Size:
		id.format = SHA1
		id.size = SHA1Size
	case SHA256Size:
		id.format = SHA256
		id.size = SHA256Size
	default:
		return id, fmt.Errorf("objectid: invalid id length %d", len(b))
	}
	copy(id.raw[:], b)
	return id, nil
}

// Format reports which hash function produced this id.
func (id ObjectID) Format() Format { return id.format }

// Size returns the id length in bytes (20 or 32).
func (id ObjectID) Size() int {
	if id.size == 0 {
		return SHA1Size
	}
	return id.size
}

// Bytes returns the raw id bytes.
func (id ObjectID) Bytes() []byte {
	return append([]byte(nil), id.raw[:id.Size()]...)
}

// String returns the lower-case hex form.
func (id ObjectID) String() string {
	return hex.EncodeToString(id.raw[:id.Size()])
}

// IsZero reports whether every byte of the id is zero.
func (id ObjectID) IsZero() bool {
	var zero [SHA256Size]byte
	return bytes.Equal(id.raw[:id.Size()], zero[:id.Size()])
}

// Compare implements unsigned lexicographic byte ordering. Ids of differing
// size compare by their shared prefix first, then by size.
func (id ObjectID) Compare(other ObjectID) int {
	n := id.Size()
	if other.Size() < n {
		n = other.Size()
	}
	if c := bytes.Compare(id.raw[:n], other.raw[:n]); c != 0 {
		return c
	}
	return id.Size() - other.Size()
}

// Equal reports byte-equality between two ids of the same format.
func (id ObjectID) Equal(other ObjectID) bool {
	return id.format == other.format && bytes.Equal(id.raw[:id.Size()], other.raw[:other.Size()])
}

// FanOut returns the first byte of the id, the fan-out discriminator used
// by loose object directories and pack index fan-out tables.
func (id ObjectID) FanOut() byte { return id.raw[0] }

// Sort sorts ids in increasing unsigned byte order.
func Sort(ids []ObjectID) { sort.Sort(ByBytes(ids)) }

// ByBytes adapts a slice of ObjectID for sort.Sort, ordering by Compare.
type ByBytes []ObjectID

func (s ByBytes) Len() int           { return len(s) }
func (s ByBytes) Less(i, j int) bool { return s[i].Compare(s[j]) < 0 }
func (s ByBytes) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Hasher accumulates an object's canonical serialization and produces its
// ObjectID. Kind and size are written as the header before any payload.
type Hasher struct {
	hash.Hash
	format Format
}

// NewHasher returns a Hasher primed with the "<kind> <size>\0" header for
// the given object kind, declared payload size, and hash format.
func NewHasher(f Format, kind string, size int64) Hasher {
	h := Hasher{format: f, Hash: newHasher(f)}
	h.Write([]byte(kind))
	h.Write([]byte(" "))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
	return h
}

// NewPlainHasher returns a Hasher with no object-header priming, for
// whole-file checksums (the index, pack, and pack-index trailers) that
// hash their own bytes directly rather than a "<kind> <size>\0" payload.
func NewPlainHasher(f Format) Hasher {
	return Hasher{format: f, Hash: newHasher(f)}
}

// Format reports the hash format this Hasher was constructed with.
func (h Hasher) Format() Format { return h.format }

// Sum finalizes the hash and returns the resulting ObjectID.
func (h Hasher) Sum() ObjectID {
	sum := h.Hash.Sum(nil)
	id, _ := FromBytes(sum)
	id.format = h.format
	return id
}
