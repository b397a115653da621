package hash

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"

	"pmhash/pkg/entry"
	"pmhash/pkg/pager"
)

// bucketID is the in-memory handle of a bucket slot. Handles are dense and
// only meaningful for the lifetime of an open index.
type bucketID uint32

// HashBucket is a view over one bucket-sized slot of an allocation unit.
type HashBucket struct {
	id     bucketID
	page   *pager.Page // The unit containing the slot
	offset uint32      // The slot's position inside the unit
	data   []byte      // The slot's bytes inside the unit
}

// initEmptyBucket formats a slot as an empty bucket of local depth 1.
func initEmptyBucket(slot []byte) {
	clear(slot)
	binary.LittleEndian.PutUint64(slot[DEPTH_OFFSET:], 1)
}

// GetDepth returns the bucket's local depth.
func (bucket *HashBucket) GetDepth() uint64 {
	return binary.LittleEndian.Uint64(bucket.data[DEPTH_OFFSET:])
}

// GetPage returns the unit the bucket lives in.
func (bucket *HashBucket) GetPage() *pager.Page {
	return bucket.page
}

// GetAddress returns the bucket's persistent address.
func (bucket *HashBucket) GetAddress() pager.Address {
	return bucket.page.Address(bucket.offset)
}

// NumKeys returns the number of occupied slots.
func (bucket *HashBucket) NumKeys() int {
	return int(bucket.bitmap().Count())
}

// IsFull reports whether every slot is occupied.
func (bucket *HashBucket) IsFull() bool {
	return bucket.NumKeys() >= MAX_BUCKET_SIZE
}

// IsEmpty reports whether no slot is occupied.
func (bucket *HashBucket) IsEmpty() bool {
	return bucket.bitmap().None()
}

// Find returns the entry in the bucket with the given key.
func (bucket *HashBucket) Find(key uint64) (entry.Entry, bool) {
	if slot, ok := bucket.slotOf(key); ok {
		return bucket.getEntry(slot), true
	}
	return entry.Entry{}, false
}

// Insert places e in the first free slot. Returns false if the bucket is full.
// Duplicate keys are not checked here.
func (bucket *HashBucket) Insert(e entry.Entry) bool {
	bits := bucket.bitmap()
	slot, ok := bits.NextClear(0)
	if !ok || slot >= uint(MAX_BUCKET_SIZE) {
		return false
	}
	bucket.modifyEntry(slot, e)
	bits.Set(slot)
	bucket.storeBitmap(bits)
	return true
}

// Update modifies the value associated with a given key, or returns an error
// if no entry with that key is found.
func (bucket *HashBucket) Update(key uint64, value uint64) error {
	slot, ok := bucket.slotOf(key)
	if !ok {
		return ErrKeyNotFound
	}
	bucket.modifyEntry(slot, entry.New(key, value))
	return nil
}

// Delete frees the slot holding key, or returns an error if no entry with that key is found.
func (bucket *HashBucket) Delete(key uint64) error {
	slot, ok := bucket.slotOf(key)
	if !ok {
		return ErrKeyNotFound
	}
	bits := bucket.bitmap()
	bits.Clear(slot)
	bucket.storeBitmap(bits)
	return nil
}

// Select returns all key-value entries within this bucket, in slot order.
func (bucket *HashBucket) Select() []entry.Entry {
	bits := bucket.bitmap()
	ret := make([]entry.Entry, 0, bits.Count())
	for slot, ok := bits.NextSet(0); ok; slot, ok = bits.NextSet(slot + 1) {
		ret = append(ret, bucket.getEntry(slot))
	}
	return ret
}

// Print writes a string-representation of this bucket and its entries to the specified writer.
func (bucket *HashBucket) Print(w io.Writer) {
	fmt.Fprintf(w, "bucket %s depth: %d\n", bucket.GetAddress(), bucket.GetDepth())
	io.WriteString(w, "entries:")
	for _, e := range bucket.Select() {
		e.Print(w)
	}
	io.WriteString(w, "\n")
}

/////////////////////////////////////////////////////////////////////////////
///////////////////// HashBucket Helper Functions ///////////////////////////
/////////////////////////////////////////////////////////////////////////////

// entryPos gets the byte-position of the entry in the given slot.
func entryPos(slot uint) int64 {
	return BUCKET_HEADER_SIZE + int64(slot)*entry.Size
}

func (bucket *HashBucket) touch() {
	bucket.page.SetDirty(true)
}

// bitmap returns a copy of the bucket's occupancy bitmap.
func (bucket *HashBucket) bitmap() *bitset.BitSet {
	word := binary.LittleEndian.Uint64(bucket.data[BITMAP_OFFSET:])
	return bitset.From([]uint64{word})
}

func (bucket *HashBucket) storeBitmap(bits *bitset.BitSet) {
	var word uint64
	if words := bits.Bytes(); len(words) > 0 {
		word = words[0]
	}
	binary.LittleEndian.PutUint64(bucket.data[BITMAP_OFFSET:], word)
	bucket.touch()
}

// slotOf returns the occupied slot holding key.
func (bucket *HashBucket) slotOf(key uint64) (uint, bool) {
	bits := bucket.bitmap()
	for slot, ok := bits.NextSet(0); ok; slot, ok = bits.NextSet(slot + 1) {
		if bucket.getKeyAt(slot) == key {
			return slot, true
		}
	}
	return 0, false
}

// modifyEntry writes the given entry into the given slot.
func (bucket *HashBucket) modifyEntry(slot uint, e entry.Entry) {
	pos := entryPos(slot)
	e.MarshalTo(bucket.data[pos : pos+entry.Size])
	bucket.touch()
}

// getEntry returns the entry in the given slot.
func (bucket *HashBucket) getEntry(slot uint) entry.Entry {
	pos := entryPos(slot)
	return entry.UnmarshalEntry(bucket.data[pos : pos+entry.Size])
}

// getKeyAt returns the key in the given slot.
func (bucket *HashBucket) getKeyAt(slot uint) uint64 {
	pos := entryPos(slot)
	return binary.LittleEndian.Uint64(bucket.data[pos:])
}

// updateLocalDepth writes the bucket's new local depth.
func (bucket *HashBucket) updateLocalDepth(depth uint64) {
	binary.LittleEndian.PutUint64(bucket.data[DEPTH_OFFSET:], depth)
	bucket.touch()
}

// drain empties the bucket and returns the entries it held.
func (bucket *HashBucket) drain() []entry.Entry {
	entries := bucket.Select()
	bucket.storeBitmap(bitset.New(uint(MAX_BUCKET_SIZE)))
	return entries
}

// copyFrom replaces this bucket's occupancy and entries with those of other.
// The local depth is left unchanged.
func (bucket *HashBucket) copyFrom(other *HashBucket) {
	copy(bucket.data[BITMAP_OFFSET:], other.data[BITMAP_OFFSET:])
	bucket.touch()
}

// reset returns the slot to the empty state of a freshly allocated bucket.
func (bucket *HashBucket) reset() {
	initEmptyBucket(bucket.data)
	bucket.touch()
}
