// Package commitgraph implements a commit-graph file: a sorted oid fanout
// and lookup table paired with each commit's tree, parents, and generation
// number, letting a generation-aware walk (revwalk's IsAncestorFast)
// skip decoding commit objects it already knows are unreachable by
// generation number alone.
package commitgraph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/hearthwood/gitcore/objectid"
)

// Magic opens a commit-graph file, matching git's own CGPH signature.
var Magic = [4]byte{'C', 'G', 'P', 'H'}

// Version is the only on-disk version this package reads and writes.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("commitgraph: unsupported version")
	ErrMalformed          = errors.New("commitgraph: malformed file")
)

// parentNone marks an absent parent slot; parentOctopus marks a merge with
// more than two parents, whose remaining parents live in the extra-edge
// list, the last of which is tagged with parentLast.
const (
	parentNone    = uint32(0x70000000)
	parentOctopus = uint32(0x80000000)
	parentMask    = uint32(0x7fffffff)
	parentLast    = uint32(0x80000000)
)

// CommitData is the reduced, precomputed view of a commit a generation-aware
// walk needs without decoding the commit object itself.
type CommitData struct {
	TreeHash      objectid.ObjectID
	ParentHashes  []objectid.ObjectID
	Generation    uint64
	CommitterTime time.Time
}

type entry struct {
	id   objectid.ObjectID
	data *CommitData
}

// Graph is a decoded or freshly built commit-graph, indexed by object id.
type Graph struct {
	entries []entry
	byID    map[objectid.ObjectID]int
}

// IndexOf returns id's position in the graph, for GetCommitData.
func (g *Graph) IndexOf(id objectid.ObjectID) (int, bool) {
	i, ok := g.byID[id]
	return i, ok
}

// GetCommitData returns the precomputed data for id.
func (g *Graph) GetCommitData(id objectid.ObjectID) (*CommitData, bool) {
	i, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return g.entries[i].data, true
}

// Hashes returns every commit id covered by the graph, in on-disk (sorted)
// order.
func (g *Graph) Hashes() []objectid.ObjectID {
	ids := make([]objectid.ObjectID, len(g.entries))
	for i, e := range g.entries {
		ids[i] = e.id
	}
	return ids
}

// Len reports how many commits the graph covers.
func (g *Graph) Len() int { return len(g.entries) }

// Builder accumulates commits and produces a sorted Graph ready to Encode.
type Builder struct {
	entries []entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Add records one commit's precomputed data. Generation must already be
// computed (1 + max(parent generations), or 1 for a root commit) before
// calling Add — the builder does not compute it itself.
func (b *Builder) Add(id objectid.ObjectID, data *CommitData) {
	b.entries = append(b.entries, entry{id: id, data: data})
}

// Build sorts the accumulated commits by id and returns the Graph.
func (b *Builder) Build() *Graph {
	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].id.Compare(b.entries[j].id) < 0 })
	byID := make(map[objectid.ObjectID]int, len(b.entries))
	for i, e := range b.entries {
		byID[e.id] = i
	}
	return &Graph{entries: b.entries, byID: byID}
}

// Encode writes g as a commit-graph file to w: a 256-entry fanout, a sorted
// oid lookup table, one fixed-size record per commit (tree hash, up to two
// parent indexes, generation + committer time packed into 8 bytes, as git's
// own CDAT chunk does), and an extra-edge list for any octopus merge beyond
// two parents. Unlike git's own file, chunks are written in this fixed
// order with no chunk-offset table — this package only ever emits the
// chunks below, so the generic, extensible chunk directory git's on-disk
// format provides for forward compatibility has no payoff here.
func Encode(w io.Writer, g *Graph, format objectid.Format) error {
	hasher := objectid.NewPlainHasher(format)
	mw := io.MultiWriter(w, hasher)

	if _, err := mw.Write(Magic[:]); err != nil {
		return err
	}
	hashByte := byte(1)
	if format == objectid.SHA256 {
		hashByte = 2
	}
	if _, err := mw.Write([]byte{Version, hashByte}); err != nil {
		return err
	}

	var fanout [256]uint32
	for _, e := range g.entries {
		fanout[e.id.FanOut()]++
	}
	for i := 1; i < 256; i++ {
		fanout[i] += fanout[i-1]
	}
	for _, count := range fanout {
		if err := writeUint32(mw, count); err != nil {
			return err
		}
	}

	for _, e := range g.entries {
		if _, err := mw.Write(e.id.Bytes()); err != nil {
			return err
		}
	}

	var extraEdges []uint32
	for _, e := range g.entries {
		if _, err := mw.Write(e.data.TreeHash.Bytes()); err != nil {
			return err
		}

		var p1, p2 uint32
		switch len(e.data.ParentHashes) {
		case 0:
			p1, p2 = parentNone, parentNone
		case 1:
			p1 = uint32(g.byID[e.data.ParentHashes[0]])
			p2 = parentNone
		case 2:
			p1 = uint32(g.byID[e.data.ParentHashes[0]])
			p2 = uint32(g.byID[e.data.ParentHashes[1]])
		default:
			p1 = uint32(g.byID[e.data.ParentHashes[0]])
			p2 = uint32(len(extraEdges)) | parentOctopus
			for _, ph := range e.data.ParentHashes[1:] {
				extraEdges = append(extraEdges, uint32(g.byID[ph]))
			}
			extraEdges[len(extraEdges)-1] |= parentLast
		}
		if err := writeUint32(mw, p1); err != nil {
			return err
		}
		if err := writeUint32(mw, p2); err != nil {
			return err
		}

		packed := uint64(e.data.CommitterTime.Unix()) | e.data.Generation<<34
		if err := writeUint64(mw, packed); err != nil {
			return err
		}
	}

	for _, edge := range extraEdges {
		if err := writeUint32(mw, edge); err != nil {
			return err
		}
	}

	_, err := w.Write(hasher.Sum().Bytes())
	return err
}

// Decode reads a commit-graph file written by Encode.
func Decode(r io.Reader, format objectid.Format) (*Graph, error) {
	br := bufio.NewReader(r)
	hasher := objectid.NewPlainHasher(format)
	tee := io.TeeReader(br, hasher)

	var magic [4]byte
	if _, err := io.ReadFull(tee, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrMalformed
	}

	hdr := make([]byte, 2)
	if _, err := io.ReadFull(tee, hdr); err != nil {
		return nil, err
	}
	if hdr[0] != Version {
		return nil, ErrUnsupportedVersion
	}

	idSize := objectid.SHA1Size
	if format == objectid.SHA256 {
		idSize = objectid.SHA256Size
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

	type rawCommit struct {
		tree       objectid.ObjectID
		p1, p2     uint32
		generation uint64
		when       time.Time
	}
	raw := make([]rawCommit, count)
	var extraEdgeCount int
	for i := 0; i < count; i++ {
		buf := make([]byte, idSize)
		if _, err := io.ReadFull(tee, buf); err != nil {
			return nil, err
		}
		tree, err := objectid.FromBytes(buf)
		if err != nil {
			return nil, err
		}
		p1, err := readUint32(tee)
		if err != nil {
			return nil, err
		}
		p2, err := readUint32(tee)
		if err != nil {
			return nil, err
		}
		packed, err := readUint64(tee)
		if err != nil {
			return nil, err
		}
		raw[i] = rawCommit{
			tree:       tree,
			p1:         p1,
			p2:         p2,
			generation: packed >> 34,
			when:       time.Unix(int64(packed&0x3FFFFFFFF), 0),
		}
		if p2&parentOctopus == parentOctopus {
			n := int(p2 & parentMask)
			extraEdgeCount = max(extraEdgeCount, n+1)
		}
	}

	extraEdges := make([]uint32, extraEdgeCount)
	for i := range extraEdges {
		v, err := readUint32(tee)
		if err != nil {
			return nil, err
		}
		extraEdges[i] = v
	}

	entries := make([]entry, count)
	byID := make(map[objectid.ObjectID]int, count)
	for i, id := range ids {
		entries[i] = entry{id: id}
		byID[id] = i
	}

	for i, rc := range raw {
		var parents []objectid.ObjectID
		switch {
		case rc.p1 == parentNone && rc.p2 == parentNone:
		case rc.p2&parentOctopus == parentOctopus:
			parents = append(parents, ids[rc.p1&parentMask])
			off := int(rc.p2 & parentMask)
			for {
				edge := extraEdges[off]
				parents = append(parents, ids[edge&parentMask])
				off++
				if edge&parentLast == parentLast {
					break
				}
			}
		case rc.p2 == parentNone:
			parents = append(parents, ids[rc.p1&parentMask])
		default:
			parents = append(parents, ids[rc.p1&parentMask], ids[rc.p2&parentMask])
		}

		entries[i].data = &CommitData{
			TreeHash:      rc.tree,
			ParentHashes:  parents,
			Generation:    rc.generation,
			CommitterTime: rc.when,
		}
	}

	want := hasher.Sum().Bytes()
	sumBuf := make([]byte, idSize)
	if _, err := io.ReadFull(br, sumBuf); err != nil {
		return nil, err
	}
	if !bytes.Equal(want, sumBuf) {
		return nil, ErrMalformed
	}

	return &Graph{entries: entries, byID: byID}, nil
}

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
