package diskmultimap

import "hash/fnv"

// hashKey returns a stable, process-deterministic hash of key. Buckets are
// re-derived from keys on every access (spec.md §4.1), so the hash identity
// is never persisted; a file is only portable across processes using this
// same function (spec.md §9, "Hash-function portability").
//
// FNV-1a is the plain stdlib choice here: no hash library appears anywhere
// in the example corpus, and spec.md explicitly permits "any stable
// non-cryptographic string hash" — nothing is lost by not importing one.
func hashKey(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))

	return h.Sum64()
}

// bucketIndex maps key to a bucket slot in [0, numBuckets).
func bucketIndex(key string, numBuckets uint32) uint32 {
	return uint32(hashKey(key) % uint64(numBuckets))
}
