package hash

import (
	"fmt"
)

// Verify checks the structural invariants of the table and returns an error
// wrapping ErrCorrupted that describes the first violation found.
//   - the catalog has 2^globalDepth entries and matches the metadata
//   - every catalog entry's handle and address agree with the registry
//   - local depths lie in [1, globalDepth] and each bucket is shared by
//     exactly the indices congruent to its pattern
//   - every entry hashes to the bucket holding it and no key appears twice
//   - the free pool and the unit bitmaps are the complement of the live buckets
func (table *HashTable) Verify() error {
	depth := table.meta.globalDepth()
	size := table.catalog.size()
	if uint64(size) != 1<<depth || uint64(size) != table.meta.catalogSize() {
		return corruption("catalog has %d entries at global depth %d (metadata says %d)",
			size, depth, table.meta.catalogSize())
	}
	live := make(map[bucketID]int) // handle -> canonical index
	keys := make(map[uint64]int)
	for i := 0; i < size; i++ {
		e := table.catalog.get(i)
		if int(e.handle) >= table.space.numSlots() {
			return corruption("catalog index %d has unknown handle %d", i, e.handle)
		}
		bucket := table.space.bucket(e.handle)
		if bucket.GetAddress() != e.addr {
			return corruption("catalog index %d records %s but its bucket is at %s", i, e.addr, bucket.GetAddress())
		}
		if table.space.isFree(e.handle) {
			return corruption("catalog index %d refers to free slot %s", i, e.addr)
		}
		local := bucket.GetDepth()
		if local < 1 || local > depth {
			return corruption("bucket %s has local depth %d outside [1, %d]", e.addr, local, depth)
		}
		pattern := uint64(i) & lowMask(local)
		if owner := table.catalog.get(int(pattern)).handle; owner != e.handle {
			return corruption("catalog index %d and its pattern %d refer to different buckets", i, pattern)
		}
		if !isCanonical(i, bucket) {
			continue
		}
		if other, ok := live[e.handle]; ok {
			return corruption("bucket %s is the canonical bucket of both %d and %d", e.addr, other, i)
		}
		live[e.handle] = i
		for _, found := range bucket.Select() {
			if table.hasher(found.Key)&lowMask(local) != pattern {
				return corruption("key %d in bucket %s does not hash to pattern %d", found.Key, e.addr, pattern)
			}
			if other, ok := keys[found.Key]; ok {
				return corruption("key %d is stored under both index %d and index %d", found.Key, other, i)
			}
			keys[found.Key] = i
		}
	}
	for _, bucket := range table.space.buckets {
		_, used := live[bucket.id]
		if used == table.space.isFree(bucket.id) {
			return corruption("slot %s is live=%t but free=%t", bucket.GetAddress(), used, !used)
		}
		if bucket.page.IsUsed(bucket.offset) != used {
			return corruption("unit bitmap of slot %s disagrees with the catalog", bucket.GetAddress())
		}
	}
	return nil
}

func corruption(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorrupted, fmt.Sprintf(format, args...))
}

// IsHash reports whether the index satisfies every structural invariant.
func IsHash(index *HashIndex) (bool, error) {
	if err := index.check(); err != nil {
		return false, err
	}
	return index.table.Verify() == nil, nil
}
