package dotgit

import (
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"

	"github.com/hearthwood/gitcore/format/idx"
	"github.com/hearthwood/gitcore/format/objfile"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// ObjectWriter stages a loose object under a temporary name so a reader
// never observes a half-written object file; Close renames it into
// objects/xx/yyyy... once the id is known.
type ObjectWriter struct {
	fs  billy.Filesystem
	tmp billy.File
	ow  *objfile.Writer
}

func newObjectWriter(fs billy.Filesystem) (*ObjectWriter, error) {
	if err := fs.MkdirAll(objectsPath, 0o755); err != nil {
		return nil, err
	}

	tmp, err := fs.TempFile(objectsPath, "tmp_obj_")
	if err != nil {
		return nil, err
	}

	return &ObjectWriter{fs: fs, tmp: tmp, ow: objfile.NewWriter(tmp, objectid.SHA1)}, nil
}

// WriteHeader declares the object's type and size, as objfile requires
// before any payload bytes are written.
func (w *ObjectWriter) WriteHeader(t object.Type, size int64) error {
	return w.ow.WriteHeader(t, size)
}

func (w *ObjectWriter) Write(p []byte) (int, error) {
	return w.ow.Write(p)
}

// Hash returns the id the written object will be stored under; valid only
// after every declared byte has been written.
func (w *ObjectWriter) Hash() objectid.ObjectID {
	return w.ow.Hash()
}

// Close finalizes the compressed stream and renames the temporary file
// into its content-addressed loose object path.
func (w *ObjectWriter) Close() error {
	if err := w.ow.Close(); err != nil {
		w.tmp.Close()
		return err
	}
	if err := w.tmp.Close(); err != nil {
		return err
	}

	id := w.ow.Hash()
	hex := id.String()
	dir := w.fs.Join(objectsPath, hex[0:2])
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return w.fs.Rename(w.tmp.Name(), w.fs.Join(dir, hex[2:]))
}

// PackWriter stages a new packfile and builds its .idx alongside it,
// renaming both into objects/pack/ together once Save commits them.
type PackWriter struct {
	fs       billy.Filesystem
	tmp      billy.File
	checksum objectid.ObjectID
	builder  *idx.Builder
}

func newPackWriter(fs billy.Filesystem) (*PackWriter, error) {
	dir := fs.Join(objectsPath, packPath)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tmp, err := fs.TempFile(dir, "tmp_pack_")
	if err != nil {
		return nil, err
	}

	return &PackWriter{fs: fs, tmp: tmp, builder: idx.NewBuilder(objectid.SHA1)}, nil
}

func (w *PackWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

// Index records the pack offset and CRC32 of an entry as it is written,
// so the matching .idx can be built without a second pass over the pack.
func (w *PackWriter) Index(id objectid.ObjectID, offset int64, crc32 uint32) {
	w.builder.Add(id, offset, crc32)
}

// Save finalizes the packfile under its content checksum and writes the
// matching .idx, renaming both into objects/pack/.
func (w *PackWriter) Save(checksum objectid.ObjectID) error {
	w.checksum = checksum
	if err := w.tmp.Close(); err != nil {
		return err
	}

	base := w.fs.Join(objectsPath, packPath, fmt.Sprintf("pack-%s", checksum))
	if err := w.fs.Rename(w.tmp.Name(), base+packExt); err != nil {
		return err
	}

	w.builder.SetPackfileChecksum(checksum)

	idxFile, err := w.fs.Create(base + idxExt)
	if err != nil {
		return err
	}

	if err := idx.Encode(idxFile, w.builder.Build(), objectid.SHA1); err != nil {
		idxFile.Close()
		return err
	}

	return idxFile.Close()
}

var _ io.Writer = (*PackWriter)(nil)
