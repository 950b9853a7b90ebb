// Package intelweb implements the bidirectional threat-intel crawl engine
// described in _examples/original_source/IntelWeb.{h,cpp}: two
// diskmultimap.Maps (forward: creator -> created, reverse: created ->
// creator) fed by whitespace-tokenized telemetry lines, searched by a
// prevalence-gated breadth-first crawl from a set of known-bad indicators.
package intelweb

import (
	"bufio"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cyberintel/intelweb/internal/diskmultimap"
	"github.com/cyberintel/intelweb/internal/fs"
)

// loadFactor bounds the average chain length per bucket; matches the
// original's createNew, which sizes numBuckets as maxDataItems * (1/L).
const loadFactor = 0.75

const lockFileSuffix = ".intelweb.lock"

// IntelWeb composes a forward and reverse DiskMultiMap over one telemetry
// data set, identified on disk by a shared file-name prefix.
type IntelWeb struct {
	fsys    fs.FS
	prefix  string
	forward *diskmultimap.Map
	reverse *diskmultimap.Map
	lock    *fs.Lock
	open    bool
}

func forwardPath(prefix string) string { return prefix + "_forward_hash_table.dat" }
func reversePath(prefix string) string { return prefix + "_reverse_hash_table.dat" }

// CreateNew initializes a fresh IntelWeb at prefix, sized to hold roughly
// maxDataItems distinct keys at the target load factor. Fails if either
// underlying file already exists or the prefix is locked by another
// process.
func CreateNew(fsys fs.FS, prefix string, maxDataItems uint32) (*IntelWeb, error) {
	lock, err := fs.NewLocker(fsys).TryLock(prefix + lockFileSuffix)
	if err != nil {
		return nil, fmt.Errorf("intelweb: create %q: %w", prefix, ErrAlreadyLocked)
	}

	for _, p := range []string{forwardPath(prefix), reversePath(prefix)} {
		exists, err := fsys.Exists(p)
		if err != nil {
			lock.Close()
			return nil, fmt.Errorf("intelweb: create %q: %w", prefix, err)
		}

		if exists {
			lock.Close()
			return nil, fmt.Errorf("intelweb: create %q: %s already exists", prefix, p)
		}
	}

	numBuckets := uint32(math.Ceil(float64(maxDataItems) / loadFactor))
	if numBuckets == 0 {
		numBuckets = 1
	}

	fwd, err := diskmultimap.CreateNew(fsys, forwardPath(prefix), numBuckets)
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("intelweb: create forward map: %w", err)
	}

	rev, err := diskmultimap.CreateNew(fsys, reversePath(prefix), numBuckets)
	if err != nil {
		fwd.Close()
		lock.Close()
		return nil, fmt.Errorf("intelweb: create reverse map: %w", err)
	}

	return &IntelWeb{fsys: fsys, prefix: prefix, forward: fwd, reverse: rev, lock: lock, open: true}, nil
}

// OpenExisting opens a previously created IntelWeb at prefix.
func OpenExisting(fsys fs.FS, prefix string) (*IntelWeb, error) {
	lock, err := fs.NewLocker(fsys).TryLock(prefix + lockFileSuffix)
	if err != nil {
		return nil, fmt.Errorf("intelweb: open %q: %w", prefix, ErrAlreadyLocked)
	}

	fwd, err := diskmultimap.OpenExisting(fsys, forwardPath(prefix))
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("intelweb: open forward map: %w", err)
	}

	rev, err := diskmultimap.OpenExisting(fsys, reversePath(prefix))
	if err != nil {
		fwd.Close()
		lock.Close()
		return nil, fmt.Errorf("intelweb: open reverse map: %w", err)
	}

	return &IntelWeb{fsys: fsys, prefix: prefix, forward: fwd, reverse: rev, lock: lock, open: true}, nil
}

// Close releases both underlying maps and the advisory prefix lock. Safe to
// call repeatedly.
func (iw *IntelWeb) Close() error {
	if !iw.open {
		return nil
	}

	iw.open = false

	var firstErr error

	if err := iw.forward.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := iw.reverse.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := iw.lock.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		return fmt.Errorf("intelweb: close: %w", firstErr)
	}

	return nil
}

// Ingest reads whitespace-tokenized "context from to" lines from path and
// inserts each into both the forward and reverse maps. A line that does not
// tokenize into exactly three fields is skipped, not an error (spec.md
// §4.2/§7). Returns the count of lines accepted and skipped.
func (iw *IntelWeb) Ingest(path string) (accepted, skipped int, err error) {
	if !iw.open {
		return 0, 0, ErrNotOpen
	}

	f, err := iw.fsys.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("intelweb: ingest: open %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			skipped++
			continue
		}

		context, from, to := fields[0], fields[1], fields[2]

		if _, err := iw.forward.Insert(from, to, context); err != nil {
			return accepted, skipped, fmt.Errorf("intelweb: ingest: forward insert: %w", err)
		}

		if _, err := iw.reverse.Insert(to, from, context); err != nil {
			return accepted, skipped, fmt.Errorf("intelweb: ingest: reverse insert: %w", err)
		}

		accepted++
	}

	if err := scanner.Err(); err != nil {
		return accepted, skipped, fmt.Errorf("intelweb: ingest: read %q: %w", path, err)
	}

	return accepted, skipped, nil
}

// Crawl performs a prevalence-gated breadth-first search starting from
// indicators, following both the forward and reverse maps. An entity newly
// discovered is added to the queue only if its prevalence (total record
// count across both maps) is under minPrevalenceToBeGood. Returns the
// number of distinct bad entities found, the entities in ascending string
// order, and the interactions that involve at least one bad entity, ordered
// per spec.md §4.3 (lexicographic on context, from, to).
func (iw *IntelWeb) Crawl(indicators []string, minPrevalenceToBeGood uint32) (int, []string, []Interaction, error) {
	if !iw.open {
		return 0, nil, nil, ErrNotOpen
	}

	badEntities := make(map[string]struct{})
	badInteractions := make(map[string]Interaction)

	queue := append([]string(nil), indicators...)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		it, err := iw.forward.Search(cur)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("intelweb: crawl: forward search: %w", err)
		}

		if it.IsValid() {
			if _, known := badEntities[cur]; !known {
				badEntities[cur] = struct{}{}

				for it.IsValid() {
					tup, err := it.Deref()
					if err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: deref: %w", err)
					}

					inter := Interaction{Context: tup.Context, From: tup.Key, To: tup.Value}
					badInteractions[interactionKey(inter)] = inter

					under, err := iw.PrevalenceUnderThreshold(tup.Value, minPrevalenceToBeGood)
					if err != nil {
						return 0, nil, nil, err
					}

					if under {
						queue = append(queue, tup.Value)
					}

					if err := it.Next(); err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: advance: %w", err)
					}
				}

				it, err = iw.reverse.Search(cur)
				if err != nil {
					return 0, nil, nil, fmt.Errorf("intelweb: crawl: reverse search: %w", err)
				}

				for it.IsValid() {
					tup, err := it.Deref()
					if err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: deref: %w", err)
					}

					inter := Interaction{Context: tup.Context, From: tup.Value, To: tup.Key}
					badInteractions[interactionKey(inter)] = inter

					under, err := iw.PrevalenceUnderThreshold(tup.Value, minPrevalenceToBeGood)
					if err != nil {
						return 0, nil, nil, err
					}

					if under {
						queue = append(queue, tup.Value)
					}

					if err := it.Next(); err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: advance: %w", err)
					}
				}
			}
		}

		it, err = iw.reverse.Search(cur)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("intelweb: crawl: reverse search: %w", err)
		}

		if it.IsValid() {
			if _, known := badEntities[cur]; !known {
				badEntities[cur] = struct{}{}

				for it.IsValid() {
					tup, err := it.Deref()
					if err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: deref: %w", err)
					}

					inter := Interaction{Context: tup.Context, From: tup.Value, To: tup.Key}
					badInteractions[interactionKey(inter)] = inter

					under, err := iw.PrevalenceUnderThreshold(tup.Value, minPrevalenceToBeGood)
					if err != nil {
						return 0, nil, nil, err
					}

					if under {
						queue = append(queue, tup.Value)
					}

					if err := it.Next(); err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: advance: %w", err)
					}
				}

				it, err = iw.forward.Search(cur)
				if err != nil {
					return 0, nil, nil, fmt.Errorf("intelweb: crawl: forward search: %w", err)
				}

				for it.IsValid() {
					tup, err := it.Deref()
					if err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: deref: %w", err)
					}

					inter := Interaction{Context: tup.Context, From: tup.Key, To: tup.Value}
					badInteractions[interactionKey(inter)] = inter

					under, err := iw.PrevalenceUnderThreshold(tup.Value, minPrevalenceToBeGood)
					if err != nil {
						return 0, nil, nil, err
					}

					if under {
						queue = append(queue, tup.Value)
					}

					if err := it.Next(); err != nil {
						return 0, nil, nil, fmt.Errorf("intelweb: crawl: advance: %w", err)
					}
				}
			}
		}
	}

	entities := make([]string, 0, len(badEntities))
	for e := range badEntities {
		entities = append(entities, e)
	}

	sort.Strings(entities)

	interactions := make([]Interaction, 0, len(badInteractions))
	for _, in := range badInteractions {
		interactions = append(interactions, in)
	}

	sort.Slice(interactions, func(i, j int) bool { return interactions[i].less(interactions[j]) })

	return len(badEntities), entities, interactions, nil
}

// Purge removes every record referencing entity, in either direction, from
// both maps. Records are collected via Search before any Erase call, since
// Erase mutates the very chain Search is walking (spec.md §9). Returns
// whether anything was removed.
func (iw *IntelWeb) Purge(entity string) (bool, error) {
	if !iw.open {
		return false, ErrNotOpen
	}

	type triple struct{ key, value, context string }

	var toPurge []triple

	fwdIt, err := iw.forward.Search(entity)
	if err != nil {
		return false, fmt.Errorf("intelweb: purge: forward search: %w", err)
	}

	for fwdIt.IsValid() {
		tup, err := fwdIt.Deref()
		if err != nil {
			return false, fmt.Errorf("intelweb: purge: deref: %w", err)
		}

		toPurge = append(toPurge, triple{tup.Key, tup.Value, tup.Context})

		if err := fwdIt.Next(); err != nil {
			return false, fmt.Errorf("intelweb: purge: advance: %w", err)
		}
	}

	revIt, err := iw.reverse.Search(entity)
	if err != nil {
		return false, fmt.Errorf("intelweb: purge: reverse search: %w", err)
	}

	var toPurgeRev []triple

	for revIt.IsValid() {
		tup, err := revIt.Deref()
		if err != nil {
			return false, fmt.Errorf("intelweb: purge: deref: %w", err)
		}

		toPurgeRev = append(toPurgeRev, triple{tup.Key, tup.Value, tup.Context})

		if err := revIt.Next(); err != nil {
			return false, fmt.Errorf("intelweb: purge: advance: %w", err)
		}
	}

	purged := len(toPurge) > 0 || len(toPurgeRev) > 0

	for _, t := range toPurge {
		// t was found under entity as key in forward: entity created t.value.
		if _, err := iw.forward.Erase(t.key, t.value, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: forward erase: %w", err)
		}

		if _, err := iw.reverse.Erase(t.value, t.key, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: reverse erase: %w", err)
		}

		// Account for child-creating-parent situations, where entity also
		// appears as the created side of some other interaction.
		if _, err := iw.forward.Erase(t.value, t.key, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: forward erase (reverse role): %w", err)
		}

		if _, err := iw.reverse.Erase(t.key, t.value, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: reverse erase (reverse role): %w", err)
		}
	}

	for _, t := range toPurgeRev {
		// t was found under entity as key in reverse: entity was created by
		// t.value.
		if _, err := iw.reverse.Erase(t.key, t.value, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: reverse erase: %w", err)
		}

		if _, err := iw.forward.Erase(t.value, t.key, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: forward erase: %w", err)
		}

		if _, err := iw.reverse.Erase(t.value, t.key, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: reverse erase (reverse role): %w", err)
		}

		if _, err := iw.forward.Erase(t.key, t.value, t.context); err != nil {
			return false, fmt.Errorf("intelweb: purge: forward erase (reverse role): %w", err)
		}
	}

	return purged, nil
}

// PrevalenceUnderThreshold reports whether key's total record count across
// the forward and reverse maps is strictly under threshold.
func (iw *IntelWeb) PrevalenceUnderThreshold(key string, threshold uint32) (bool, error) {
	if !iw.open {
		return false, ErrNotOpen
	}

	count, err := iw.prevalence(key, threshold)
	if err != nil {
		return false, err
	}

	return count < threshold, nil
}

// prevalence counts records for key across both maps, short-circuiting once
// the count reaches threshold (avoids walking unbounded-prevalence chains
// beyond what's needed to answer the threshold question).
func (iw *IntelWeb) prevalence(key string, threshold uint32) (uint32, error) {
	var count uint32

	for _, m := range []*diskmultimap.Map{iw.forward, iw.reverse} {
		it, err := m.Search(key)
		if err != nil {
			return 0, fmt.Errorf("intelweb: prevalence: search: %w", err)
		}

		for it.IsValid() && count < threshold {
			count++

			if err := it.Next(); err != nil {
				return 0, fmt.Errorf("intelweb: prevalence: advance: %w", err)
			}
		}
	}

	return count, nil
}

// Stats reports the total number of distinct entities and interactions
// currently stored, by walking every bucket of the forward map once.
// Supplemental inspection feature, not part of spec.md's core operations.
func (iw *IntelWeb) Stats() (entities int, interactions int, err error) {
	if !iw.open {
		return 0, 0, ErrNotOpen
	}

	seen := make(map[string]struct{})

	count, err := iw.forward.Walk(func(key, value, _ string) {
		seen[key] = struct{}{}
		seen[value] = struct{}{}
		interactions++
	})
	if err != nil {
		return 0, 0, fmt.Errorf("intelweb: stats: %w", err)
	}

	if count != interactions {
		return 0, 0, fmt.Errorf("intelweb: stats: walk visited %d records but counted %d interactions", count, interactions)
	}

	return len(seen), interactions, nil
}
