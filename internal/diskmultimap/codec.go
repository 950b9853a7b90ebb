package diskmultimap

import "encoding/binary"

// On-disk layout constants (spec.md §3, §6). Little-endian, explicit byte
// offsets rather than struct tags or reflection, matching the teacher's
// cache_binary.go style.
const (
	// MaxFieldLen is L from spec.md: the maximum byte length of a key,
	// value, or context string, not counting the NUL terminator.
	MaxFieldLen = 120

	// fieldWidth is L+1: the fixed on-disk width of a NUL-terminated string
	// field.
	fieldWidth = MaxFieldLen + 1

	// headerSize is the constant on-disk size of Header: u32 numBuckets +
	// u64 freespace, packed with no padding.
	headerSize = 4 + 8

	// bucketSlotSize is the width of one bucket-array slot: a u64 offset.
	bucketSlotSize = 8

	// recordSize is R from spec.md: key + value + context fields plus the
	// two u64 chain pointers.
	recordSize = fieldWidth*3 + 8 + 8

	keyFieldOffset     = 0
	valueFieldOffset   = fieldWidth
	contextFieldOffset = fieldWidth * 2
	nextKeyOffset      = fieldWidth * 3
	nextEqualOffset    = fieldWidth*3 + 8
)

// header mirrors spec.md §3's Header entity: bucket count and the free-list
// head offset (0 = empty).
type header struct {
	numBuckets uint32
	freespace  uint64
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.numBuckets)
	binary.LittleEndian.PutUint64(buf[4:12], h.freespace)

	return buf
}

func decodeHeader(buf []byte) header {
	return header{
		numBuckets: binary.LittleEndian.Uint32(buf[0:4]),
		freespace:  binary.LittleEndian.Uint64(buf[4:12]),
	}
}

func encodeBucketSlot(offset uint64) []byte {
	buf := make([]byte, bucketSlotSize)
	binary.LittleEndian.PutUint64(buf, offset)

	return buf
}

func decodeBucketSlot(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// record is the in-memory form of spec.md §3's fixed-width Record.
type record struct {
	key       string
	value     string
	context   string
	nextKey   uint64
	nextEqual uint64
}

func encodeRecord(r record) []byte {
	buf := make([]byte, recordSize)

	putField(buf[keyFieldOffset:keyFieldOffset+fieldWidth], r.key)
	putField(buf[valueFieldOffset:valueFieldOffset+fieldWidth], r.value)
	putField(buf[contextFieldOffset:contextFieldOffset+fieldWidth], r.context)
	binary.LittleEndian.PutUint64(buf[nextKeyOffset:nextKeyOffset+8], r.nextKey)
	binary.LittleEndian.PutUint64(buf[nextEqualOffset:nextEqualOffset+8], r.nextEqual)

	return buf
}

func decodeRecord(buf []byte) record {
	return record{
		key:       getField(buf[keyFieldOffset : keyFieldOffset+fieldWidth]),
		value:     getField(buf[valueFieldOffset : valueFieldOffset+fieldWidth]),
		context:   getField(buf[contextFieldOffset : contextFieldOffset+fieldWidth]),
		nextKey:   binary.LittleEndian.Uint64(buf[nextKeyOffset : nextKeyOffset+8]),
		nextEqual: binary.LittleEndian.Uint64(buf[nextEqualOffset : nextEqualOffset+8]),
	}
}

// putField writes s into dst as a NUL-terminated field. Bytes after the
// first NUL are left zeroed; spec.md §6 only requires them "unspecified".
func putField(dst []byte, s string) {
	copy(dst, s)
	dst[len(s)] = 0
}

// getField reads a NUL-terminated string out of a fixed-width field.
func getField(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}

	return string(src)
}

// bucketSlotOffset returns the file offset of bucket slot i, per spec.md
// §3: "slot offset = sizeof(Header) + i*8".
func bucketSlotOffset(i uint32) int64 {
	return int64(headerSize) + int64(i)*bucketSlotSize
}

// recordAreaBase returns the file offset at which the record area begins,
// immediately after the bucket array.
func recordAreaBase(numBuckets uint32) int64 {
	return int64(headerSize) + int64(numBuckets)*bucketSlotSize
}
