package diff

import (
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// DefaultRenameScoreThreshold is the minimum similarity (0-100, matching
// git's -M<n>% convention) a delete/insert pair must reach in the second
// rename-detection stage to be folded into a Rename change.
const DefaultRenameScoreThreshold = 50

// BlobGetter loads blob content by hash, used to score content similarity
// between a deleted and an inserted file.
type BlobGetter interface {
	GetBlob(hash string) ([]byte, error)
}

// DetectRenames rewrites Delete/Insert pairs in changes into Rename changes,
// pairing any delete with any insert regardless of their positions, in two
// stages: first an exact-content match (same blob hash, certainly a pure
// rename or copy), then a similarity match scored against threshold for
// content that was renamed and edited together. Unmatched deletes and
// inserts are left as-is. The result lists the other changes first, then
// the renames, then the unmatched deletes and inserts; it is not re-sorted
// by name.
func DetectRenames(changes Changes, blobs BlobGetter, threshold int) Changes {
	var deletes, inserts []Change
	var rest Changes
	for _, c := range changes {
		switch c.Action {
		case Delete:
			deletes = append(deletes, c)
		case Insert:
			inserts = append(inserts, c)
		default:
			rest = append(rest, c)
		}
	}
	if len(deletes) == 0 || len(inserts) == 0 {
		return changes
	}

	matchedDeletes := make(map[int]bool, len(deletes))
	matchedInserts := make(map[int]bool, len(inserts))
	var renames []Change

	// Stage 1: exact content match. A hashset of insert hashes lets each
	// delete look up its candidate in O(1) instead of an O(d*i) scan.
	byHash := hashset.New()
	insertByHash := make(map[string][]int, len(inserts))
	for i, ins := range inserts {
		h := ins.ToHash.String()
		byHash.Add(h)
		insertByHash[h] = append(insertByHash[h], i)
	}
	for di, del := range deletes {
		h := del.FromHash.String()
		if !byHash.Contains(h) {
			continue
		}
		candidates := insertByHash[h]
		for k, ii := range candidates {
			if matchedInserts[ii] {
				continue
			}
			renames = append(renames, Change{
				Action:   Rename,
				Name:     inserts[ii].Name,
				OldName:  del.Name,
				FromHash: del.FromHash,
				ToHash:   inserts[ii].ToHash,
			})
			matchedDeletes[di] = true
			matchedInserts[ii] = true
			insertByHash[h] = append(candidates[:k], candidates[k+1:]...)
			break
		}
	}

	// Stage 2: similarity match on remaining pairs, using blob content when
	// a BlobGetter is available, scored by line-level Dice coefficient.
	// Candidate scores are kept in a red-black tree ordered by score so the
	// best match is picked first (a greedy maximum-weight matching, not
	// optimal but the same approach git itself uses for -M).
	if blobs != nil {
		scores := redblacktree.NewWith(utils.IntComparator)
		type pair struct{ di, ii int }
		for di, del := range deletes {
			if matchedDeletes[di] {
				continue
			}
			for ii, ins := range inserts {
				if matchedInserts[ii] {
					continue
				}
				score, err := similarity(blobs, del.FromHash.String(), ins.ToHash.String())
				if err != nil || score < threshold {
					continue
				}
				bucket, found := scores.Get(-score)
				var list []pair
				if found {
					list = bucket.([]pair)
				}
				scores.Put(-score, append(list, pair{di, ii}))
			}
		}
		for _, key := range scores.Keys() {
			bucket, _ := scores.Get(key)
			for _, p := range bucket.([]pair) {
				if matchedDeletes[p.di] || matchedInserts[p.ii] {
					continue
				}
				del, ins := deletes[p.di], inserts[p.ii]
				renames = append(renames, Change{
					Action:   Rename,
					Name:     ins.Name,
					OldName:  del.Name,
					FromHash: del.FromHash,
					ToHash:   ins.ToHash,
				})
				matchedDeletes[p.di] = true
				matchedInserts[p.ii] = true
			}
		}
	}

	out := make(Changes, 0, len(rest)+len(renames)+len(deletes)+len(inserts))
	out = append(out, rest...)
	out = append(out, renames...)
	for di, del := range deletes {
		if !matchedDeletes[di] {
			out = append(out, del)
		}
	}
	for ii, ins := range inserts {
		if !matchedInserts[ii] {
			out = append(out, ins)
		}
	}
	return out
}

// similarity scores two blobs' content by Sorensen-Dice coefficient over
// their line sets, returned as a percentage 0-100.
func similarity(blobs BlobGetter, fromHash, toHash string) (int, error) {
	a, err := blobs.GetBlob(fromHash)
	if err != nil {
		return 0, err
	}
	b, err := blobs.GetBlob(toHash)
	if err != nil {
		return 0, err
	}
	linesA := splitLines(a)
	linesB := splitLines(b)
	if len(linesA) == 0 && len(linesB) == 0 {
		return 100, nil
	}

	setA := hashset.New()
	for _, l := range linesA {
		setA.Add(l)
	}
	shared := 0
	seen := make(map[string]bool, len(linesB))
	for _, l := range linesB {
		if seen[l] {
			continue
		}
		seen[l] = true
		if setA.Contains(l) {
			shared++
		}
	}

	total := len(linesA) + len(linesB)
	if total == 0 {
		return 100, nil
	}
	return (2 * shared * 100) / total, nil
}

func splitLines(b []byte) []string {
	var lines []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, string(b[start:i+1]))
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, string(b[start:]))
	}
	return lines
}
