package dircache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/hearthwood/gitcore/objectid"
)

// EncodeVersionSupported is the version Encode writes when Index.Version is
// zero; a non-zero Index.Version up to 4 is written as given.
const EncodeVersionSupported uint32 = 2

// ErrInvalidTimestamp is returned by Encode for a negative entry timestamp.
var ErrInvalidTimestamp = errors.New("dircache: negative timestamps are not allowed")

// Encoder writes the binary index format to a stream.
type Encoder struct {
	w         io.Writer
	hasher    objectid.Hasher
	lastEntry *Entry
}

// NewEncoder returns an Encoder writing ids and a trailing whole-file
// checksum in the given object format.
func NewEncoder(w io.Writer, format objectid.Format) *Encoder {
	h := objectid.NewPlainHasher(format)
	mw := io.MultiWriter(w, teeWriter{&h})
	return &Encoder{w: mw, hasher: h}
}

type byName []*Entry

func (a byName) Len() int      { return len(a) }
func (a byName) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a byName) Less(i, j int) bool {
	if a[i].Name == a[j].Name {
		return a[i].Stage < a[j].Stage
	}
	return a[i].Name < a[j].Name
}

// Encode writes idx followed by the checksum trailer.
func (e *Encoder) Encode(idx *Index) error {
	if idx.Version == 0 {
		idx.Version = EncodeVersionSupported
	}
	if idx.Version > 4 {
		return ErrUnsupportedVersion
	}

	if err := e.encodeHeader(idx); err != nil {
		return err
	}
	if err := e.encodeEntries(idx); err != nil {
		return err
	}
	if err := e.encodeExtensions(idx); err != nil {
		return err
	}

	_, err := e.w.Write(e.hasher.Sum().Bytes())
	return err
}

func (e *Encoder) encodeHeader(idx *Index) error {
	if _, err := e.w.Write(indexSignature[:]); err != nil {
		return err
	}
	if err := writeUint32(e.w, idx.Version); err != nil {
		return err
	}
	return writeUint32(e.w, uint32(len(idx.Entries)))
}

func (e *Encoder) encodeEntries(idx *Index) error {
	sort.Sort(byName(idx.Entries))

	for _, entry := range idx.Entries {
		if entry.CreatedAt.Unix() < 0 || entry.ModifiedAt.Unix() < 0 {
			return ErrInvalidTimestamp
		}
		if err := e.encodeEntry(idx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeEntry(idx *Index, entry *Entry) error {
	sec, nsec := timeParts(entry.CreatedAt)
	msec, mnsec := timeParts(entry.ModifiedAt)

	for _, v := range []uint32{sec, nsec, msec, mnsec, entry.Dev, entry.Inode, uint32(entry.Mode), entry.UID, entry.GID, entry.Size} {
		if err := writeUint32(e.w, v); err != nil {
			return err
		}
	}
	if _, err := e.w.Write(entry.Hash.Bytes()); err != nil {
		return err
	}

	flags := uint16(entry.Stage&0x3) << 12
	nameLen := len(entry.Name)
	if nameLen < nameMask {
		flags |= uint16(nameLen)
	} else {
		flags |= nameMask
	}

	written := entryHeaderLength - 20 + len(entry.Hash.Bytes())

	if entry.IntentToAdd || entry.SkipWorktree {
		if err := writeUint16(e.w, flags|entryExtended); err != nil {
			return err
		}
		var extended uint16
		if entry.IntentToAdd {
			extended |= intentToAddMask
		}
		if entry.SkipWorktree {
			extended |= skipWorkTreeMask
		}
		if err := writeUint16(e.w, extended); err != nil {
			return err
		}
		written += 2
	} else {
		if err := writeUint16(e.w, flags); err != nil {
			return err
		}
	}

	switch idx.Version {
	case 2, 3:
		if err := e.encodeEntryName(entry); err != nil {
			return err
		}
		return e.padEntry(written, len(entry.Name))
	case 4:
		return e.encodeEntryNameV4(entry)
	default:
		return ErrUnsupportedVersion
	}
}

func timeParts(t interface {
	Unix() int64
	Nanosecond() int
}) (uint32, uint32) {
	if t.Unix() == 0 && t.Nanosecond() == 0 {
		return 0, 0
	}
	return uint32(t.Unix()), uint32(t.Nanosecond())
}

func (e *Encoder) encodeEntryName(entry *Entry) error {
	_, err := e.w.Write([]byte(entry.Name))
	return err
}

func (e *Encoder) encodeEntryNameV4(entry *Entry) error {
	name := entry.Name
	l := 0
	if e.lastEntry != nil {
		dir := path.Dir(e.lastEntry.Name) + "/"
		if strings.HasPrefix(entry.Name, dir) {
			l = len(e.lastEntry.Name) - len(dir)
			name = strings.TrimPrefix(entry.Name, dir)
		} else {
			l = len(e.lastEntry.Name)
		}
	}
	e.lastEntry = entry

	if err := writeVarInt(e.w, int64(l)); err != nil {
		return err
	}
	_, err := e.w.Write(append([]byte(name), 0))
	return err
}

func writeVarInt(w io.Writer, v int64) error {
	var stack []byte
	stack = append(stack, byte(v&0x7f))
	v >>= 7
	for v != 0 {
		v--
		stack = append(stack, byte(v&0x7f)|0x80)
		v >>= 7
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if _, err := w.Write(stack[i : i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) padEntry(written, nameLen int) error {
	entrySize := written + nameLen
	padLen := 8 - entrySize%8
	_, err := e.w.Write(make([]byte, padLen))
	return err
}

func (e *Encoder) encodeRawExtension(signature string, data []byte) error {
	if len(signature) != 4 {
		return fmt.Errorf("dircache: invalid extension signature length")
	}
	if _, err := e.w.Write([]byte(signature)); err != nil {
		return err
	}
	if err := writeUint32(e.w, uint32(len(data))); err != nil {
		return err
	}
	_, err := e.w.Write(data)
	return err
}

func (e *Encoder) encodeExtensions(idx *Index) error {
	if idx.EndOfIndexEntry != nil {
		if err := e.encodeEOIE(idx.EndOfIndexEntry); err != nil {
			return err
		}
	}
	if idx.Cache != nil {
		if err := e.encodeTREE(idx.Cache); err != nil {
			return err
		}
	}
	if idx.Link != nil {
		if err := e.encodeLINK(idx.Link); err != nil {
			return err
		}
	}
	if idx.UntrackedCache != nil {
		if err := e.encodeUNTR(idx.UntrackedCache); err != nil {
			return err
		}
	}
	if idx.ResolveUndo != nil {
		if err := e.encodeREUC(idx.ResolveUndo); err != nil {
			return err
		}
	}
	if idx.FSMonitor != nil {
		if err := e.encodeFSMN(idx.FSMonitor); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeEOIE(ext *EndOfIndexEntry) error {
	buf := &bytes.Buffer{}
	if err := writeUint32(buf, ext.Offset); err != nil {
		return err
	}
	buf.Write(ext.Hash.Bytes())
	return e.encodeRawExtension("EOIE", buf.Bytes())
}

func (e *Encoder) encodeTREE(ext *Tree) error {
	buf := &bytes.Buffer{}
	for _, entry := range ext.Entries {
		buf.WriteString(entry.Path)
		buf.WriteByte(0)
		fmt.Fprintf(buf, "%d %d\n", entry.EntryCount, entry.SubtreeCount)
		if entry.EntryCount != -1 {
			buf.Write(entry.Hash.Bytes())
		}
	}
	return e.encodeRawExtension("TREE", buf.Bytes())
}

func (e *Encoder) encodeREUC(ext *ResolveUndo) error {
	buf := &bytes.Buffer{}
	for _, entry := range ext.Entries {
		buf.WriteString(entry.Path)
		buf.WriteByte(0)
		for _, stage := range []Stage{AncestorMode, OurMode, TheirMode} {
			if _, ok := entry.Stages[stage]; ok {
				buf.WriteString(strconv.FormatInt(int64(stage), 8))
			} else {
				buf.WriteString("0")
			}
			buf.WriteByte(0)
		}
		for _, stage := range []Stage{AncestorMode, OurMode, TheirMode} {
			id, ok := entry.Stages[stage]
			if !ok {
				continue
			}
			buf.Write(id.Bytes())
		}
	}
	return e.encodeRawExtension("REUC", buf.Bytes())
}

func (e *Encoder) encodeLINK(ext *Link) error {
	buf := &bytes.Buffer{}
	buf.Write(ext.ObjectID.Bytes())
	buf.Write(ext.DeleteBitmap)
	buf.Write(ext.ReplaceBitmap)
	return e.encodeRawExtension("link", buf.Bytes())
}

func (e *Encoder) encodeUNTR(ext *UntrackedCache) error {
	buf := &bytes.Buffer{}
	for _, env := range ext.Environments {
		buf.WriteString(env)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)
	e.encodeUntrackedCacheStats(buf, &ext.InfoExcludeStats)
	e.encodeUntrackedCacheStats(buf, &ext.ExcludesFileStats)
	writeUint32(buf, ext.DirFlags)
	buf.Write(ext.InfoExcludeHash.Bytes())
	buf.Write(ext.ExcludesFileHash.Bytes())
	buf.WriteString(ext.PerDirIgnoreFile)
	buf.WriteByte(0)
	writeVarInt(buf, int64(len(ext.Entries)))
	for _, entry := range ext.Entries {
		writeVarInt(buf, int64(len(entry.Entries)))
		writeVarInt(buf, entry.Blocks)
		buf.WriteString(entry.Name)
		buf.WriteByte(0)
		for _, sub := range entry.Entries {
			buf.WriteString(sub)
			buf.WriteByte(0)
		}
	}
	buf.Write(ext.ValidBitmap)
	buf.Write(ext.CheckOnlyBitmap)
	buf.Write(ext.MetadataBitmap)
	for _, s := range ext.Stats {
		e.encodeUntrackedCacheStats(buf, &s)
	}
	for _, h := range ext.Hashes {
		buf.Write(h.Bytes())
	}
	buf.WriteByte(0)
	return e.encodeRawExtension("UNTR", buf.Bytes())
}

func (e *Encoder) encodeUntrackedCacheStats(buf *bytes.Buffer, s *UntrackedCacheStats) {
	sec, nsec := timeParts(s.CreatedAt)
	msec, mnsec := timeParts(s.ModifiedAt)
	for _, v := range []uint32{sec, nsec, msec, mnsec, s.Dev, s.Inode, s.UID, s.GID, s.Size} {
		writeUint32(buf, v)
	}
}

func (e *Encoder) encodeFSMN(ext *FSMonitor) error {
	buf := &bytes.Buffer{}
	writeUint32(buf, ext.Version)
	switch ext.Version {
	case 1:
		sec, nsec := timeParts(ext.Since)
		writeUint32(buf, sec)
		writeUint32(buf, nsec)
	case 2:
		buf.WriteString(ext.Token)
		buf.WriteByte(0)
	}
	writeUint32(buf, uint32(len(ext.DirtyBitmap)))
	buf.Write(ext.DirtyBitmap)
	return e.encodeRawExtension("FSMN", buf.Bytes())
}
