// Package idx implements the version 2 pack index (.idx) format: a
// 256-entry fan-out table over sorted object ids, their CRC32s, and their
// pack offsets, followed by the 64-bit offset overflow table and a trailing
// pair of whole-file checksums.
package idx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sort"

	"github.com/hearthwood/gitcore/objectid"
)

// Magic is the 4-byte signature that opens a version-2-or-later idx file.
var Magic = [4]byte{0xff, 0x74, 0x4f, 0x63}

// Version is the only on-disk version this package reads and writes.
const Version = 2

// ErrUnsupportedVersion is returned by Decode for any version other than 2.
var ErrUnsupportedVersion = errors.New("idx: unsupported index version")

// ErrInvalidChecksum is returned by Decode when the trailing idx checksum
// does not match the bytes read.
var ErrInvalidChecksum = errors.New("idx: index checksum mismatch")

const offsetOverflowMarker = uint32(1) << 31

// Entry describes one object in a packfile: its id, its pack offset, and
// its CRC32 (of the compressed object bytes).
type Entry struct {
	ID     objectid.ObjectID
	Offset int64
	CRC32  uint32
}

// Index is the decoded form of a .idx file, sorted by Entry.ID.
type Index struct {
	Entries          []Entry
	PackfileChecksum objectid.ObjectID
	IdxChecksum      objectid.ObjectID
}

// FindOffset returns the pack offset of id, if present.
func (idx *Index) FindOffset(id objectid.ObjectID) (int64, bool) {
	i := sort.Search(len(idx.Entries), func(i int) bool {
		return idx.Entries[i].ID.Compare(id) >= 0
	})
	if i < len(idx.Entries) && idx.Entries[i].ID.Equal(id) {
		return idx.Entries[i].Offset, true
	}
	return 0, false
}

// Contains reports whether id is present in the index.
func (idx *Index) Contains(id objectid.ObjectID) bool {
	_, ok := idx.FindOffset(id)
	return ok
}

// Builder accumulates entries (typically from a packfile scan) and produces
// a sorted Index.
type Builder struct {
	format objectid.Format
	checksum objectid.ObjectID
	entries  []Entry
}

// NewBuilder returns an empty Builder for the given object id format.
func NewBuilder(format objectid.Format) *Builder { return &Builder{format: format} }

// Add records one object's id, pack offset, and CRC32.
func (b *Builder) Add(id objectid.ObjectID, offset int64, crc uint32) {
	b.entries = append(b.entries, Entry{ID: id, Offset: offset, CRC32: crc})
}

// SetPackfileChecksum records the packfile's trailing checksum, copied
// verbatim into the idx file.
func (b *Builder) SetPackfileChecksum(sum objectid.ObjectID) { b.checksum = sum }

// Build sorts the accumulated entries by id and returns the Index.
func (b *Builder) Build() *Index {
	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].ID.Compare(b.entries[j].ID) < 0 })
	return &Index{Entries: b.entries, PackfileChecksum: b.checksum}
}

// Encode writes idx in version-2 format to w.
func Encode(w io.Writer, idx *Index, format objectid.Format) error {
	hasher := objectid.NewPlainHasher(format)
	mw := io.MultiWriter(w, hasher)

	if _, err := mw.Write(Magic[:]); err != nil {
		return err
	}
	if err := writeUint32(mw, Version); err != nil {
		return err
	}

	var fanout [256]uint32
	for _, e := range idx.Entries {
		fanout[e.ID.FanOut()]++
	}
	for i := 1; i < 256; i++ {
		fanout[i] += fanout[i-1]
	}
	for _, count := range fanout {
		if err := writeUint32(mw, count); err != nil {
			return err
		}
	}

	for _, e := range idx.Entries {
		if _, err := mw.Write(e.ID.Bytes()); err != nil {
			return err
		}
	}
	for _, e := range idx.Entries {
		if err := writeUint32(mw, e.CRC32); err != nil {
			return err
		}
	}

	var overflow []int64
	for _, e := range idx.Entries {
		if e.Offset > 0x7fffffff {
			if err := writeUint32(mw, offsetOverflowMarker|uint32(len(overflow))); err != nil {
				return err
			}
			overflow = append(overflow, e.Offset)
			continue
		}
		if err := writeUint32(mw, uint32(e.Offset)); err != nil {
			return err
		}
	}
	for _, off := range overflow {
		if err := writeUint64(mw, uint64(off)); err != nil {
			return err
		}
	}

	if _, err := mw.Write(idx.PackfileChecksum.Bytes()); err != nil {
		return err
	}

	sum, _ := objectid.FromBytes(hasher.Sum().Bytes())
	_, err := w.Write(sum.Bytes())
	return err
}

// Decode reads a version-2 idx file from r.
func Decode(r io.Reader, format objectid.Format) (*Index, error) {
	br := bufio.NewReader(r)
	hasher := objectid.NewPlainHasher(format)
	tee := io.TeeReader(br, hasher)

	var magic [4]byte
	if _, err := io.ReadFull(tee, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("idx: not a version-2+ index (legacy fan-out-only format unsupported)")
	}
	version, err := readUint32(tee)
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, ErrUnsupportedVersion
	}

	var fanout [256]uint32
	for i := range fanout {
		v, err := readUint32(tee)
		if err != nil {
			return nil, err
		}
		fanout[i] = v
	}
	count := int(fanout[255])

	idSize := objectid.SHA1Size
	if format == objectid.SHA256 {
		idSize = objectid.SHA256Size
	}

	ids := make([]objectid.ObjectID, count)
	for i := 0; i < count; i++ {
		buf := make([]byte, idSize)
		if _, err := io.ReadFull(tee, buf); err != nil {
			return nil, err
		}
		id, err := objectid.FromBytes(buf)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	crcs := make([]uint32, count)
	for i := 0; i < count; i++ {
		v, err := readUint32(tee)
		if err != nil {
			return nil, err
		}
		crcs[i] = v
	}

	rawOffsets := make([]uint32, count)
	var overflowIdx []int
	for i := 0; i < count; i++ {
		v, err := readUint32(tee)
		if err != nil {
			return nil, err
		}
		rawOffsets[i] = v
		if v&offsetOverflowMarker != 0 {
			overflowIdx = append(overflowIdx, i)
		}
	}

	overflow := make([]int64, len(overflowIdx))
	for i := range overflowIdx {
		v, err := readUint64(tee)
		if err != nil {
			return nil, err
		}
		overflow[i] = int64(v)
	}

	entries := make([]Entry, count)
	overflowPos := 0
	for i := 0; i < count; i++ {
		var off int64
		if rawOffsets[i]&offsetOverflowMarker != 0 {
			off = overflow[overflowPos]
			overflowPos++
		} else {
			off = int64(rawOffsets[i])
		}
		entries[i] = Entry{ID: ids[i], Offset: off, CRC32: crcs[i]}
	}

	packSumBuf := make([]byte, idSize)
	if _, err := io.ReadFull(tee, packSumBuf); err != nil {
		return nil, err
	}
	packSum, err := objectid.FromBytes(packSumBuf)
	if err != nil {
		return nil, err
	}

	want := hasher.Sum().Bytes()

	idxSumBuf := make([]byte, idSize)
	if _, err := io.ReadFull(br, idxSumBuf); err != nil {
		return nil, err
	}
	if !bytes.Equal(want, idxSumBuf) {
		return nil, ErrInvalidChecksum
	}
	idxSum, err := objectid.FromBytes(idxSumBuf)
	if err != nil {
		return nil, err
	}

	return &Index{Entries: entries, PackfileChecksum: packSum, IdxChecksum: idxSum}, nil
}

// CRC32 computes the CRC32 (IEEE) of b, as stored for each packed object.
func CRC32(b []byte) uint32 { return crc32.ChecksumIEEE(b) }

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
