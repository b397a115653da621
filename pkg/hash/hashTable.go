package hash

import (
	"fmt"
	"io"
	"math"
	"math/bits"

	"pmhash/pkg/entry"
	"pmhash/pkg/log"
	"pmhash/pkg/pager"
)

// A HashTable is an index that uses extendible hashing over allocation units.
// The catalog has 2^globalDepth entries; a bucket of local depth L is shared
// by every index congruent to its pattern modulo 2^L.
type HashTable struct {
	pager   *pager.Pager // The pager backing the buckets and records
	meta    *metadata    // Global depth, catalog size and next unit id
	catalog *catalog     // Catalog index -> bucket
	space   *freeSpace   // Every registered slot and the free pool
	hasher  Hasher
	logger  log.Logger
	stats   counters
}

// GetDepth returns the table's global depth.
func (table *HashTable) GetDepth() uint64 {
	return table.meta.globalDepth()
}

// GetCatalogSize returns the number of catalog entries.
func (table *HashTable) GetCatalogSize() int {
	return table.catalog.size()
}

// GetPager returns the pager backing the table.
func (table *HashTable) GetPager() *pager.Pager {
	return table.pager
}

// Hash returns the hash of a key under the table's hasher.
func (table *HashTable) Hash(key uint64) uint64 {
	return table.hasher(key)
}

// LookupIndex returns the catalog index responsible for key.
func (table *HashTable) LookupIndex(key uint64) (int, error) {
	index := table.hasher(key) & lowMask(table.meta.globalDepth())
	if index >= uint64(table.catalog.size()) {
		return 0, fmt.Errorf("%w: catalog index %d out of range %d", ErrCorrupted, index, table.catalog.size())
	}
	return int(index), nil
}

// GetBucket returns the bucket at the given catalog index.
func (table *HashTable) GetBucket(index int) (*HashBucket, error) {
	if index < 0 || index >= table.catalog.size() {
		return nil, fmt.Errorf("catalog index %d out of range %d", index, table.catalog.size())
	}
	return table.space.bucket(table.catalog.get(index).handle), nil
}

// bucketFor returns the catalog index and the bucket responsible for key.
func (table *HashTable) bucketFor(key uint64) (int, *HashBucket, error) {
	index, err := table.LookupIndex(key)
	if err != nil {
		return 0, nil, err
	}
	bucket, err := table.GetBucket(index)
	if err != nil {
		return 0, nil, err
	}
	return index, bucket, nil
}

// Search returns the value stored under key.
func (table *HashTable) Search(key uint64) (uint64, error) {
	table.stats.searches++
	_, bucket, err := table.bucketFor(key)
	if err != nil {
		return 0, err
	}
	found, ok := bucket.Find(key)
	if !ok {
		return 0, ErrKeyNotFound
	}
	return found.Value, nil
}

// Insert a key / value pair into the table, splitting buckets as needed.
// An existing key is left unchanged and reported as a duplicate.
func (table *HashTable) Insert(key uint64, value uint64) error {
	_, bucket, err := table.bucketFor(key)
	if err != nil {
		return err
	}
	if _, ok := bucket.Find(key); ok {
		return ErrDuplicateKey
	}
	bucket, err = table.getFreeBucket(key)
	if err != nil {
		return err
	}
	if !bucket.Insert(entry.New(key, value)) {
		return fmt.Errorf("%w: bucket %s is full after splitting", ErrCorrupted, bucket.GetAddress())
	}
	table.stats.inserts++
	return nil
}

// Update the value of an existing key.
func (table *HashTable) Update(key uint64, value uint64) error {
	_, bucket, err := table.bucketFor(key)
	if err != nil {
		return err
	}
	if err := bucket.Update(key, value); err != nil {
		return err
	}
	table.stats.updates++
	return nil
}

// Remove the entry with the given key, then merge the emptied bucket with its buddy if possible.
func (table *HashTable) Remove(key uint64) error {
	index, bucket, err := table.bucketFor(key)
	if err != nil {
		return err
	}
	if err := bucket.Delete(key); err != nil {
		return err
	}
	table.stats.removes++
	return table.merge(index)
}

// getFreeBucket returns the bucket for key, splitting until it has room.
func (table *HashTable) getFreeBucket(key uint64) (*HashBucket, error) {
	index, bucket, err := table.bucketFor(key)
	if err != nil {
		return nil, err
	}
	if bucket.IsFull() {
		if depth := table.separatingDepth(bucket, key); depth > MAX_GLOBAL_DEPTH {
			return nil, fmt.Errorf("%w: separating bucket %s needs depth %d, limit is %d",
				ErrResourceExhausted, bucket.GetAddress(), depth, MAX_GLOBAL_DEPTH)
		}
	}
	for bucket.IsFull() {
		if err := table.split(index); err != nil {
			return nil, err
		}
		if index, bucket, err = table.bucketFor(key); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

// separatingDepth is the local depth at which the hashes of bucket's entries and key
// stop sharing a low-bit prefix. Identical hashes can never be separated.
func (table *HashTable) separatingDepth(bucket *HashBucket, key uint64) uint64 {
	h := table.hasher(key)
	var diff uint64
	for _, e := range bucket.Select() {
		diff |= table.hasher(e.Key) ^ h
	}
	if diff == 0 {
		return math.MaxUint64
	}
	return uint64(bits.TrailingZeros64(diff)) + 1
}

// initialize gives a table of depth 0 its first two buckets.
func (table *HashTable) initialize() error {
	first, err := table.space.acquire()
	if err != nil {
		return err
	}
	second, err := table.space.acquire()
	if err != nil {
		table.space.release(first)
		return err
	}
	entries := []catalogEntry{
		{handle: first.id, addr: first.GetAddress()},
		{handle: second.id, addr: second.GetAddress()},
	}
	if err := table.catalog.replace(entries); err != nil {
		table.space.release(second)
		table.space.release(first)
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}
	table.meta.setShape(1)
	table.stats.grows++
	table.logger.Debug("initialized catalog with buckets %s and %s", first.GetAddress(), second.GetAddress())
	return nil
}

// extendTable increases the global depth of the table by 1.
func (table *HashTable) extendTable() error {
	depth := table.meta.globalDepth()
	if depth >= MAX_GLOBAL_DEPTH {
		return fmt.Errorf("%w: global depth limit %d reached", ErrResourceExhausted, MAX_GLOBAL_DEPTH)
	}
	if err := table.catalog.grow(); err != nil {
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}
	table.meta.setShape(depth + 1)
	table.stats.grows++
	table.logger.Debug("catalog grew to depth %d", depth+1)
	return nil
}

// split divides the bucket at the given catalog index into itself and a new sibling,
// growing the catalog first if the bucket is at the global depth. The sibling is
// acquired before anything is modified, so a failure leaves the table unchanged.
func (table *HashTable) split(index int) error {
	bucket, err := table.GetBucket(index)
	if err != nil {
		return err
	}
	localDepth := bucket.GetDepth()
	sibling, err := table.space.acquire()
	if err != nil {
		return err
	}
	if localDepth == table.meta.globalDepth() {
		if err := table.extendTable(); err != nil {
			table.space.release(sibling)
			return err
		}
	}
	// Indices matching the old pattern with bit localDepth set now belong to the sibling.
	pattern := uint64(index) & lowMask(localDepth)
	siblingPattern := pattern | 1<<localDepth
	entries := bucket.drain()
	bucket.updateLocalDepth(localDepth + 1)
	sibling.updateLocalDepth(localDepth + 1)
	siblingEntry := catalogEntry{handle: sibling.id, addr: sibling.GetAddress()}
	stride := uint64(1) << (localDepth + 1)
	for i := siblingPattern; i < uint64(table.catalog.size()); i += stride {
		table.catalog.set(int(i), siblingEntry)
	}
	for _, e := range entries {
		if table.hasher(e.Key)&(1<<localDepth) != 0 {
			sibling.Insert(e)
		} else {
			bucket.Insert(e)
		}
	}
	table.stats.splits++
	table.logger.Debug("split %s (pattern %d) into %s (pattern %d) at depth %d: %d/%d entries",
		bucket.GetAddress(), pattern, sibling.GetAddress(), siblingPattern, localDepth+1,
		bucket.NumKeys(), sibling.NumKeys())
	return nil
}

// merge folds the bucket at index into its buddy while one of the pair is empty
// and both share a local depth above 1. The lower bucket survives. The catalog never shrinks.
func (table *HashTable) merge(index int) error {
	for {
		bucket, err := table.GetBucket(index)
		if err != nil {
			return err
		}
		depth := bucket.GetDepth()
		if depth <= 1 {
			return nil
		}
		high := uint64(1) << (depth - 1)
		lowerPattern := uint64(index) & lowMask(depth) &^ high
		upperPattern := lowerPattern | high
		lower, err := table.GetBucket(int(lowerPattern))
		if err != nil {
			return err
		}
		upper, err := table.GetBucket(int(upperPattern))
		if err != nil {
			return err
		}
		if lower.id == upper.id || lower.GetDepth() != depth || upper.GetDepth() != depth {
			return nil
		}
		if !lower.IsEmpty() && !upper.IsEmpty() {
			return nil
		}
		if lower.IsEmpty() {
			lower.copyFrom(upper)
		}
		lower.updateLocalDepth(depth - 1)
		lowerEntry := table.catalog.get(int(lowerPattern))
		for i := upperPattern; i < uint64(table.catalog.size()); i += 1 << depth {
			table.catalog.set(int(i), lowerEntry)
		}
		table.logger.Debug("merged %s into %s at depth %d", upper.GetAddress(), lower.GetAddress(), depth-1)
		table.space.release(upper)
		table.stats.merges++
		index = int(lowerPattern)
	}
}

// Select returns all entries in this table, bucket by bucket in catalog order.
func (table *HashTable) Select() ([]entry.Entry, error) {
	ret := make([]entry.Entry, 0)
	for i := 0; i < table.catalog.size(); i++ {
		bucket, err := table.GetBucket(i)
		if err != nil {
			return nil, err
		}
		if isCanonical(i, bucket) {
			ret = append(ret, bucket.Select()...)
		}
	}
	return ret, nil
}

// isCanonical reports whether index is the lowest catalog index pointing at bucket.
func isCanonical(index int, bucket *HashBucket) bool {
	return uint64(index)>>bucket.GetDepth() == 0
}

// Print writes a string representation of this entire table (including its buckets) to the specified writer.
func (table *HashTable) Print(w io.Writer) {
	io.WriteString(w, "====\n")
	fmt.Fprintf(w, "global depth: %d\n", table.meta.globalDepth())
	for i := 0; i < table.catalog.size(); i++ {
		fmt.Fprintf(w, "====\nindex %d\n", i)
		bucket, err := table.GetBucket(i)
		if err != nil {
			continue
		}
		bucket.Print(w)
	}
	io.WriteString(w, "====\n")
}

// PrintBucket writes the bucket at one catalog index.
func (table *HashTable) PrintBucket(index int, w io.Writer) {
	bucket, err := table.GetBucket(index)
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	bucket.Print(w)
}

// GetLiveAddresses returns the addresses of all buckets the catalog refers to, in catalog order.
func (table *HashTable) GetLiveAddresses() []pager.Address {
	addrs := make([]pager.Address, 0)
	for i := 0; i < table.catalog.size(); i++ {
		bucket := table.space.bucket(table.catalog.get(i).handle)
		if isCanonical(i, bucket) {
			addrs = append(addrs, bucket.GetAddress())
		}
	}
	return addrs
}

// GetFreeAddresses returns the free pool in the order slots will be handed out.
func (table *HashTable) GetFreeAddresses() []pager.Address {
	return table.space.freeAddresses()
}

// persist flushes every dirty unit and both records.
func (table *HashTable) persist() error {
	if err := table.pager.FlushAllPages(); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}
