package hash

import (
	"errors"

	"pmhash/pkg/cursor"
	"pmhash/pkg/entry"
)

// HashCursor points to a spot in the hash table. It visits every live bucket
// once, at the lowest catalog index that refers to it.
type HashCursor struct {
	table   *HashTable
	index   int           // Current catalog index
	entries []entry.Entry // Snapshot of the current bucket
	cellnum int
}

// CursorAtStart returns a cursor to the first entry in the hash table.
func (index *HashIndex) CursorAtStart() (cursor.Cursor, error) {
	if err := index.check(); err != nil {
		return nil, err
	}
	c := &HashCursor{table: index.table, index: -1}
	// If we are in an empty bucket, move to the first non-empty one.
	if c.nextBucket() {
		return nil, errors.New("all buckets are empty")
	}
	return c, nil
}

// Next moves the cursor ahead by one entry.
// Returns true if we reach the end of our index
func (c *HashCursor) Next() bool {
	if c.cellnum+1 < len(c.entries) {
		c.cellnum++
		return false
	}
	return c.nextBucket()
}

// nextBucket advances to the next canonical, non-empty bucket.
// Returns true if there is none.
func (c *HashCursor) nextBucket() bool {
	for c.index+1 < c.table.catalog.size() {
		c.index++
		bucket := c.table.space.bucket(c.table.catalog.get(c.index).handle)
		if !isCanonical(c.index, bucket) || bucket.IsEmpty() {
			continue
		}
		c.entries = bucket.Select()
		c.cellnum = 0
		return false
	}
	c.entries = nil
	c.cellnum = 0
	return true
}

// GetEntry returns the entry currently pointed to by the cursor.
func (c *HashCursor) GetEntry() (entry.Entry, error) {
	if c.cellnum >= len(c.entries) {
		return entry.Entry{}, errors.New("getEntry: cursor is not pointing at a valid entry")
	}
	return c.entries[c.cellnum], nil
}

// Close is called when we no longer need to use the cursor anymore.
func (c *HashCursor) Close() {
	c.entries = nil
}
