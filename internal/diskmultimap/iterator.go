package diskmultimap

// Tuple is one stored (key, value, context) record, as produced by
// dereferencing an Iterator.
type Tuple struct {
	Key     string
	Value   string
	Context string
}

// Iterator walks the vertical chain produced by Map.Search, starting from
// the horizontal-chain head (the first-inserted record for that key) and
// following next_equal. Insert places each new record directly after the
// head, so the records after the head come newest first. It is invalidated by any
// mutation of the underlying map; callers must not interleave mutation with
// iteration on the same iterator.
type Iterator struct {
	m       *Map
	offset  uint64
	cached  Tuple
	cacheAt uint64
	primed  bool
}

// IsValid reports whether the iterator is positioned at a record.
func (it *Iterator) IsValid() bool {
	return it.offset != 0
}

// Next advances to the next record in the vertical chain. No-op if the
// iterator is already invalid.
func (it *Iterator) Next() error {
	if !it.IsValid() {
		return nil
	}

	rec, err := it.m.readRecord(it.offset)
	if err != nil {
		return err
	}

	it.offset = rec.nextEqual

	return nil
}

// Deref returns the (key, value, context) triple at the current position.
// An invalid iterator yields an empty Tuple. The underlying record is read
// once and cached until the iterator advances.
func (it *Iterator) Deref() (Tuple, error) {
	if !it.IsValid() {
		return Tuple{}, nil
	}

	if it.primed && it.cacheAt == it.offset {
		return it.cached, nil
	}

	rec, err := it.m.readRecord(it.offset)
	if err != nil {
		return Tuple{}, err
	}

	it.cached = Tuple{Key: rec.key, Value: rec.value, Context: rec.context}
	it.cacheAt = it.offset
	it.primed = true

	return it.cached, nil
}
