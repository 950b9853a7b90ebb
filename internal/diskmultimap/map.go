// Package diskmultimap implements the disk-resident multimap: a persistent
// hash table keyed by short strings mapping one key to many (value, context)
// records, backed by a fixed-width record file with an in-file bucket array
// and two interleaved singly-linked chains per bucket.
//
// Ported from the algorithm in _examples/original_source/DiskMultiMap.cpp,
// with Case A/B/C of Erase following the corrected if/else promotion rules
// the distilled specification states explicitly (the original's Case A has
// a double bucket-slot write that would drop the promoted record).
package diskmultimap

import (
	"fmt"

	"github.com/cyberintel/intelweb/internal/binaryfile"
	"github.com/cyberintel/intelweb/internal/fs"
)

// Map is a persistent hash multimap over a single BinaryFile.
type Map struct {
	bf   *binaryfile.BinaryFile
	h    header
	open bool
}

// CreateNew initializes an empty map file at path with numBuckets buckets.
// Fails if the file cannot be created.
func CreateNew(fsys fs.FS, path string, numBuckets uint32) (*Map, error) {
	bf, err := binaryfile.CreateNew(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("diskmultimap: create %q: %w", path, err)
	}

	h := header{numBuckets: numBuckets, freespace: 0}

	if err := bf.WriteAt(encodeHeader(h), 0); err != nil {
		bf.Close()
		return nil, fmt.Errorf("diskmultimap: write header %q: %w", path, err)
	}

	emptySlots := make([]byte, int(numBuckets)*bucketSlotSize)
	if err := bf.WriteAt(emptySlots, int64(headerSize)); err != nil {
		bf.Close()
		return nil, fmt.Errorf("diskmultimap: write bucket array %q: %w", path, err)
	}

	return &Map{bf: bf, h: h, open: true}, nil
}

// OpenExisting loads the header from an existing map file. It does not
// validate the record area.
func OpenExisting(fsys fs.FS, path string) (*Map, error) {
	bf, err := binaryfile.OpenExisting(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("diskmultimap: open %q: %w", path, err)
	}

	buf := make([]byte, headerSize)
	if err := bf.ReadAt(buf, 0); err != nil {
		bf.Close()
		return nil, fmt.Errorf("diskmultimap: read header %q: %w", path, err)
	}

	h := decodeHeader(buf)

	length, err := bf.FileLength()
	if err != nil {
		bf.Close()
		return nil, fmt.Errorf("diskmultimap: stat %q: %w", path, err)
	}

	if length < recordAreaBase(h.numBuckets) {
		bf.Close()
		return nil, fmt.Errorf("diskmultimap: open %q: %w", path, ErrFileTooSmall)
	}

	return &Map{bf: bf, h: h, open: true}, nil
}

// Close releases the underlying file. Safe to call repeatedly.
func (m *Map) Close() error {
	if !m.open {
		return nil
	}

	m.open = false

	if err := m.bf.Close(); err != nil {
		return fmt.Errorf("diskmultimap: close: %w", err)
	}

	return nil
}

func checkFieldLengths(key, value, context string) error {
	if len(key) > MaxFieldLen || len(value) > MaxFieldLen || len(context) > MaxFieldLen {
		return fmt.Errorf("%w: key=%d value=%d context=%d bytes, max=%d",
			ErrFieldTooLong, len(key), len(value), len(context), MaxFieldLen)
	}

	return nil
}

func (m *Map) bucketHead(i uint32) (uint64, error) {
	buf := make([]byte, bucketSlotSize)
	if err := m.bf.ReadAt(buf, bucketSlotOffset(i)); err != nil {
		return 0, fmt.Errorf("diskmultimap: read bucket slot %d: %w", i, err)
	}

	return decodeBucketSlot(buf), nil
}

func (m *Map) setBucketHead(i uint32, offset uint64) error {
	if err := m.bf.WriteAt(encodeBucketSlot(offset), bucketSlotOffset(i)); err != nil {
		return fmt.Errorf("diskmultimap: write bucket slot %d: %w", i, err)
	}

	return nil
}

func (m *Map) readRecord(offset uint64) (record, error) {
	buf := make([]byte, recordSize)
	if err := m.bf.ReadAt(buf, int64(offset)); err != nil {
		return record{}, fmt.Errorf("diskmultimap: read record at %d: %w", offset, err)
	}

	return decodeRecord(buf), nil
}

func (m *Map) writeRecord(offset uint64, r record) error {
	if err := m.bf.WriteAt(encodeRecord(r), int64(offset)); err != nil {
		return fmt.Errorf("diskmultimap: write record at %d: %w", offset, err)
	}

	return nil
}

func (m *Map) persistHeader() error {
	if err := m.bf.WriteAt(encodeHeader(m.h), 0); err != nil {
		return fmt.Errorf("diskmultimap: write header: %w", err)
	}

	return nil
}

// allocateSlot returns the offset of a free record slot, reusing the
// free-list head if one exists and otherwise growing the file.
func (m *Map) allocateSlot() (uint64, error) {
	if m.h.freespace != 0 {
		s := m.h.freespace

		freeHead, err := m.readRecord(s)
		if err != nil {
			return 0, err
		}

		m.h.freespace = freeHead.nextKey

		if err := m.persistHeader(); err != nil {
			return 0, err
		}

		return s, nil
	}

	length, err := m.bf.FileLength()
	if err != nil {
		return 0, fmt.Errorf("diskmultimap: file length: %w", err)
	}

	return uint64(length), nil
}

// Insert adds (key, value, context) to the map. Returns false (with a
// wrapped error) if any string exceeds MaxFieldLen or the map is closed.
func (m *Map) Insert(key, value, context string) (bool, error) {
	if !m.open {
		return false, ErrNotOpen
	}

	if err := checkFieldLengths(key, value, context); err != nil {
		return false, err
	}

	bucket := bucketIndex(key, m.h.numBuckets)

	head, err := m.bucketHead(bucket)
	if err != nil {
		return false, err
	}

	slot, err := m.allocateSlot()
	if err != nil {
		return false, err
	}

	if head == 0 {
		if err := m.writeRecord(slot, record{key: key, value: value, context: context}); err != nil {
			return false, err
		}

		if err := m.setBucketHead(bucket, slot); err != nil {
			return false, err
		}

		return true, nil
	}

	visited := make(map[uint64]bool)

	cur := head

	var curRec record

	for cur != 0 {
		if visited[cur] {
			return false, fmt.Errorf("diskmultimap: insert: %w", ErrChainCycle)
		}

		visited[cur] = true

		curRec, err = m.readRecord(cur)
		if err != nil {
			return false, err
		}

		if curRec.key == key {
			break
		}

		cur = curRec.nextKey
	}

	if cur != 0 {
		// Equal key found: splice the new record in directly after the
		// vertical chain's head, which stays the horizontal-chain node.
		newRec := record{key: key, value: value, context: context, nextKey: 0, nextEqual: curRec.nextEqual}
		if err := m.writeRecord(slot, newRec); err != nil {
			return false, err
		}

		curRec.nextEqual = slot
		if err := m.writeRecord(cur, curRec); err != nil {
			return false, err
		}

		return true, nil
	}

	// No equal key found: prepend to the horizontal chain.
	newRec := record{key: key, value: value, context: context, nextKey: head, nextEqual: 0}
	if err := m.writeRecord(slot, newRec); err != nil {
		return false, err
	}

	if err := m.setBucketHead(bucket, slot); err != nil {
		return false, err
	}

	return true, nil
}

// Search returns an iterator positioned at the horizontal-chain node whose
// key equals key. The iterator is invalid if key was not found; on a
// precondition violation or I/O error it is also invalid, and the error is
// non-nil.
func (m *Map) Search(key string) (*Iterator, error) {
	if !m.open {
		return &Iterator{}, ErrNotOpen
	}

	if len(key) > MaxFieldLen {
		return &Iterator{}, fmt.Errorf("%w: key=%d bytes, max=%d", ErrFieldTooLong, len(key), MaxFieldLen)
	}

	bucket := bucketIndex(key, m.h.numBuckets)

	cur, err := m.bucketHead(bucket)
	if err != nil {
		return &Iterator{}, err
	}

	visited := make(map[uint64]bool)

	for cur != 0 {
		if visited[cur] {
			return &Iterator{}, fmt.Errorf("diskmultimap: search: %w", ErrChainCycle)
		}

		visited[cur] = true

		rec, err := m.readRecord(cur)
		if err != nil {
			return &Iterator{}, err
		}

		if rec.key == key {
			return &Iterator{m: m, offset: cur}, nil
		}

		cur = rec.nextKey
	}

	return &Iterator{}, nil
}

// Erase removes every record matching the exact (key, value, context)
// triple and returns the count removed.
func (m *Map) Erase(key, value, context string) (int, error) {
	if !m.open {
		return 0, ErrNotOpen
	}

	if err := checkFieldLengths(key, value, context); err != nil {
		return 0, err
	}

	bucket := bucketIndex(key, m.h.numBuckets)

	bucketValue, err := m.bucketHead(bucket)
	if err != nil {
		return 0, err
	}

	if bucketValue == 0 {
		return 0, nil
	}

	var (
		cur, prev  record
		curOffset  = bucketValue
		prevOffset uint64
	)

	visited := make(map[uint64]bool)

	// Locate the horizontal-chain node for key.
	for curOffset != 0 {
		if visited[curOffset] {
			return 0, fmt.Errorf("diskmultimap: erase: %w", ErrChainCycle)
		}

		visited[curOffset] = true

		cur, err = m.readRecord(curOffset)
		if err != nil {
			return 0, err
		}

		if cur.key == key {
			break
		}

		prevOffset = curOffset
		prev = cur
		curOffset = cur.nextKey
	}

	if curOffset == 0 {
		return 0, nil
	}

	numErased := 0

	for curOffset != 0 {
		if cur.value == value && cur.context == context {
			if bucketValue == curOffset {
				// Case A: match is the current horizontal head.
				if cur.nextEqual != 0 {
					next, err := m.readRecord(cur.nextEqual)
					if err != nil {
						return numErased, err
					}

					next.nextKey = cur.nextKey
					if err := m.writeRecord(cur.nextEqual, next); err != nil {
						return numErased, err
					}

					if err := m.setBucketHead(bucket, cur.nextEqual); err != nil {
						return numErased, err
					}

					// The promoted record is now the horizontal head.
					bucketValue = cur.nextEqual
				} else if err := m.setBucketHead(bucket, cur.nextKey); err != nil {
					return numErased, err
				}
			} else {
				if prev.nextKey == curOffset {
					// Case B: cur is the head of its own vertical chain;
					// prev and cur sit on separate vertical chains.
					if cur.nextEqual != 0 {
						next, err := m.readRecord(cur.nextEqual)
						if err != nil {
							return numErased, err
						}

						next.nextKey = cur.nextKey
						if err := m.writeRecord(cur.nextEqual, next); err != nil {
							return numErased, err
						}

						prev.nextKey = cur.nextEqual
					} else {
						prev.nextKey = cur.nextKey
					}
				} else {
					// Case C: cur is a non-head vertical node; prev and
					// cur are on the same vertical chain.
					prev.nextEqual = cur.nextEqual
				}

				if err := m.writeRecord(prevOffset, prev); err != nil {
					return numErased, err
				}
			}

			freedOffset := curOffset
			nextEqual := cur.nextEqual

			cur.nextKey = m.h.freespace
			m.h.freespace = freedOffset

			if err := m.writeRecord(freedOffset, cur); err != nil {
				return numErased, err
			}

			if err := m.persistHeader(); err != nil {
				return numErased, err
			}

			numErased++
			curOffset = nextEqual
		} else {
			prevOffset = curOffset
			prev = cur
			curOffset = cur.nextEqual
		}

		if curOffset != 0 {
			cur, err = m.readRecord(curOffset)
			if err != nil {
				return numErased, err
			}
		}
	}

	return numErased, nil
}

// Walk visits every live record exactly once, bucket by bucket and, within
// each bucket, horizontal-chain node by horizontal-chain node and
// vertical-chain node by vertical-chain node. It returns the number of
// records visited. This is a bounded full-file scan, not an ordered range
// query over keys (spec.md's Non-goals exclude the latter, not this).
func (m *Map) Walk(fn func(key, value, context string)) (int, error) {
	if !m.open {
		return 0, ErrNotOpen
	}

	count := 0

	for b := uint32(0); b < m.h.numBuckets; b++ {
		head, err := m.bucketHead(b)
		if err != nil {
			return count, err
		}

		visited := make(map[uint64]bool)

		for cur := head; cur != 0; {
			if visited[cur] {
				return count, fmt.Errorf("diskmultimap: walk: %w", ErrChainCycle)
			}

			visited[cur] = true

			rec, err := m.readRecord(cur)
			if err != nil {
				return count, err
			}

			vVisited := make(map[uint64]bool)

			for v := cur; v != 0; {
				if vVisited[v] {
					return count, fmt.Errorf("diskmultimap: walk: %w", ErrChainCycle)
				}

				vVisited[v] = true

				vRec := rec
				if v != cur {
					vRec, err = m.readRecord(v)
					if err != nil {
						return count, err
					}
				}

				fn(vRec.key, vRec.value, vRec.context)
				count++

				v = vRec.nextEqual
			}

			cur = rec.nextKey
		}
	}

	return count, nil
}
