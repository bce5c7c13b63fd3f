// Package packfile implements the packfile wire format: a "PACK" header, a
// count of contained objects, each stored zlib-deflated and optionally as an
// OFS_DELTA/REF_DELTA against another object in the same pack, followed by a
// trailing whole-file checksum.
package packfile

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// Magic is the 4-byte signature that opens every packfile.
var Magic = [4]byte{'P', 'A', 'C', 'K'}

// VersionSupported is the only packfile version this package reads/writes.
const VersionSupported = 2

const (
	maskContinue = 0x80
	maskPayload  = 0x7f
	maskType     = 0x70
	firstSizeBits = 4
)

// entryType is the on-wire object-type discriminator, distinct from
// object.Type because it also names the two delta kinds.
type entryType byte

const (
	entryCommit entryType = 1
	entryTree   entryType = 2
	entryBlob   entryType = 3
	entryTag    entryType = 4
	entryOfsDelta entryType = 6
	entryRefDelta entryType = 7
)

// ErrInvalidHeader is returned when a stream does not start with "PACK".
var ErrInvalidHeader = errors.New("packfile: invalid header")

// ErrUnsupportedVersion is returned for any packfile version other than 2.
var ErrUnsupportedVersion = errors.New("packfile: unsupported version")

// ErrInvalidDelta is returned when a delta's LEB128 header or opcodes are
// malformed or disagree with its stated base size.
var ErrInvalidDelta = errors.New("packfile: invalid delta")

// ErrDeltaCmd is returned for a zero delta opcode byte, which git's format
// never produces.
var ErrDeltaCmd = errors.New("packfile: invalid delta command")

// RawEntry is one object as it appears physically in the pack, before
// delta resolution.
type RawEntry struct {
	Offset int64
	Type   object.Type

	IsDelta    bool
	BaseOffset int64 // valid when this is an OFS_DELTA entry
	BaseID     objectid.ObjectID // valid when this is a REF_DELTA entry
	DeltaRef   bool              // true selects BaseID over BaseOffset

	Data []byte // inflated object content, or inflated delta instructions
}

// Scanner reads the sequence of RawEntry records out of a packfile stream.
// It does not resolve deltas.
type Scanner struct {
	r      *countingReader
	format objectid.Format
	count  uint32
	read   uint32
}

// NewScanner validates the "PACK" header and prepares to iterate entries.
func NewScanner(r io.Reader, format objectid.Format) (*Scanner, error) {
	cr := &countingReader{r: bufio.NewReader(r)}

	var magic [4]byte
	if _, err := io.ReadFull(cr, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidHeader
	}
	version, err := readUint32(cr)
	if err != nil {
		return nil, err
	}
	if version != VersionSupported {
		return nil, ErrUnsupportedVersion
	}
	count, err := readUint32(cr)
	if err != nil {
		return nil, err
	}
	return &Scanner{r: cr, format: format, count: count}, nil
}

// Count returns the number of objects declared in the header.
func (s *Scanner) Count() uint32 { return s.count }

// Next reads and inflates the next entry. It returns io.EOF once Count
// entries have been read.
func (s *Scanner) Next() (*RawEntry, error) {
	if s.read >= s.count {
		return nil, io.EOF
	}
	offset := s.r.n

	first, err := s.r.ReadByte()
	if err != nil {
		return nil, err
	}
	typ := entryType((first & maskType) >> firstSizeBits)
	size := uint64(first & 0x0f)
	shift := uint(4)
	for first&maskContinue != 0 {
		b, err := s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		size |= uint64(b&maskPayload) << shift
		shift += 7
		first = b
	}

	entry := &RawEntry{Offset: offset}

	switch typ {
	case entryCommit:
		entry.Type = object.CommitType
	case entryTree:
		entry.Type = object.TreeType
	case entryBlob:
		entry.Type = object.BlobType
	case entryTag:
		entry.Type = object.TagType
	case entryOfsDelta:
		entry.IsDelta = true
		delta, err := readOffsetDelta(s.r)
		if err != nil {
			return nil, err
		}
		entry.BaseOffset = offset - delta
	case entryRefDelta:
		entry.IsDelta = true
		entry.DeltaRef = true
		idSize := objectid.SHA1Size
		if s.format == objectid.SHA256 {
			idSize = objectid.SHA256Size
		}
		buf := make([]byte, idSize)
		if _, err := io.ReadFull(s.r, buf); err != nil {
			return nil, err
		}
		id, err := objectid.FromBytes(buf)
		if err != nil {
			return nil, err
		}
		entry.BaseID = id
	default:
		return nil, fmt.Errorf("packfile: unknown entry type %d", typ)
	}

	zr, err := zlib.NewReader(s.r)
	if err != nil {
		return nil, fmt.Errorf("packfile: inflating entry at %d: %w", offset, err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(zr, data); err != nil && err != io.EOF {
		return nil, err
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}
	entry.Data = data

	s.read++
	return entry, nil
}

// readOffsetDelta decodes git's big-endian, continuation-biased varint used
// for OFS_DELTA base offsets.
func readOffsetDelta(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	v := int64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		v = ((v + 1) << 7) | int64(b&0x7f)
	}
	return v, nil
}

type countingReader struct {
	r interface {
		io.Reader
		io.ByteReader
	}
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// PatchDelta applies the copy/insert opcodes in delta to src, reconstructing
// the target object's bytes.
func PatchDelta(src, delta []byte) ([]byte, error) {
	if len(src) == 0 || len(delta) < 4 {
		return nil, ErrInvalidDelta
	}

	srcSz, delta := decodeLEB128(delta)
	if srcSz != uint(len(src)) {
		return nil, ErrInvalidDelta
	}
	targetSz, delta := decodeLEB128(delta)

	dst := bytes.NewBuffer(make([]byte, 0, targetSz))
	remaining := targetSz

	for remaining > 0 {
		if len(delta) == 0 {
			return nil, ErrInvalidDelta
		}
		cmd := delta[0]
		delta = delta[1:]

		switch {
		case cmd&0x80 != 0:
			var offset, sz uint
			var err error
			offset, delta, err = decodeCopyOffset(cmd, delta)
			if err != nil {
				return nil, err
			}
			sz, delta, err = decodeCopySize(cmd, delta)
			if err != nil {
				return nil, err
			}
			if sz > remaining || offset+sz < offset || offset+sz > srcSz {
				return nil, ErrInvalidDelta
			}
			dst.Write(src[offset : offset+sz])
			remaining -= sz

		case cmd != 0:
			sz := uint(cmd)
			if sz > remaining || uint(len(delta)) < sz {
				return nil, ErrInvalidDelta
			}
			dst.Write(delta[:sz])
			delta = delta[sz:]
			remaining -= sz

		default:
			return nil, ErrDeltaCmd
		}
	}
	return dst.Bytes(), nil
}

var copyOffsetBits = []struct {
	mask  byte
	shift uint
}{{0x01, 0}, {0x02, 8}, {0x04, 16}, {0x08, 24}}

var copySizeBits = []struct {
	mask  byte
	shift uint
}{{0x10, 0}, {0x20, 8}, {0x40, 16}}

func decodeCopyOffset(cmd byte, delta []byte) (uint, []byte, error) {
	var offset uint
	for _, o := range copyOffsetBits {
		if cmd&o.mask != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			offset |= uint(delta[0]) << o.shift
			delta = delta[1:]
		}
	}
	return offset, delta, nil
}

func decodeCopySize(cmd byte, delta []byte) (uint, []byte, error) {
	var sz uint
	for _, s := range copySizeBits {
		if cmd&s.mask != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			sz |= uint(delta[0]) << s.shift
			delta = delta[1:]
		}
	}
	if sz == 0 {
		sz = 0x10000
	}
	return sz, delta, nil
}

func decodeLEB128(b []byte) (uint, []byte) {
	if len(b) == 0 {
		return 0, b
	}
	var num, sz uint
	for {
		c := b[sz]
		num |= (uint(c) & maskPayload) << (sz * 7)
		sz++
		if uint(c)&maskContinue == 0 || sz == uint(len(b)) {
			break
		}
	}
	return num, b[sz:]
}
