package hash

import (
	"errors"

	"pmhash/pkg/config"
	"pmhash/pkg/pager"
)

var (
	// Error for inserting a key that is already present
	ErrDuplicateKey = errors.New("duplicate key")
	// Error for updating, removing or searching a key that is not present
	ErrKeyNotFound = errors.New("key not found")
	// Error for when no further allocation units or catalog space can be obtained
	ErrResourceExhausted = errors.New("resource exhausted")
	// Error for a missing or corrupt backing file, or an internal inconsistency
	ErrCorrupted = errors.New("corrupted index")
	// Error for reopening a backing directory with a different hasher
	ErrHasherMismatch = errors.New("hasher does not match the backing directory")
	// Error for using an index after Close or Destroy
	ErrClosed = errors.New("index is closed")
)

/////////////////////////////////////////////////////////////////////////////
////////////////////////// Low-level Constants //////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Bucket slot: | local depth (8) | slot bitmap (8) | entries (16 each) |
const DEPTH_OFFSET int64 = 0
const DEPTH_SIZE int64 = 8
const BITMAP_OFFSET int64 = DEPTH_OFFSET + DEPTH_SIZE
const BITMAP_SIZE int64 = 8
const BUCKET_HEADER_SIZE int64 = DEPTH_SIZE + BITMAP_SIZE
const MAX_BUCKET_SIZE int = config.BucketSlots
const BUCKETSIZE int64 = pager.BucketSize

// The catalog never grows past 2^MAX_GLOBAL_DEPTH entries (32 MB on media).
const MAX_GLOBAL_DEPTH uint64 = 22

// Metadata record: | magic (4) | version (4) | next unit id (8) | catalog size (8) |
// global depth (8) | hasher (8) | checksum (8) |
const (
	META_MAGIC          uint32 = 0x4D455441
	META_VERSION        uint32 = 1
	META_NEXT_UNIT_OFF  int64  = 8
	META_CATALOG_OFF    int64  = 16
	META_DEPTH_OFF      int64  = 24
	META_HASHER_OFF     int64  = 32
	META_CHECKSUM_OFF   int64  = 40
	META_RECORD_SIZE    int64  = 48
	CATALOG_MAGIC       uint32 = 0x43415447
	CATALOG_HEADER_SIZE int64  = 16
	CATALOG_COUNT_OFF   int64  = 8
)
