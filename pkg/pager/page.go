package pager

import (
	"encoding/binary"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/ncw/directio"

	"pmhash/pkg/config"
	"pmhash/pkg/entry"
)

/////////////////////////////////////////////////////////////////////////////
//////////////////////////////// Unit layout ////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Unit header: | magic (4) | version (2) | reserved (2) | unit id (4) | reserved (4) | used bitmap (8) | ... 64 bytes
const (
	UnitMagic      uint32 = 0x504D5048
	UnitVersion    uint16 = 1
	UnitHeaderSize int64  = 64

	magicOffset   = 0
	versionOffset = 4
	unitIDOffset  = 8
	bitmapOffset  = 16
)

// BucketSize is the size of one bucket slot: local depth (8), slot bitmap (8), entries.
const BucketSize int64 = 16 + config.BucketSlots*entry.Size

// Pagesize is the size of one allocation unit file, rounded up to the I/O block size.
const Pagesize int64 = (UnitHeaderSize + config.UnitSlots*BucketSize + directio.BlockSize - 1) /
	directio.BlockSize * directio.BlockSize

// Address locates one bucket-sized slot inside the page store.
type Address struct {
	UnitID uint32
	Offset uint32
}

// AddressSize is the encoded size of an Address.
const AddressSize = 8

// Less orders addresses by unit id, then by slot offset.
func (a Address) Less(b Address) bool {
	if a.UnitID == b.UnitID {
		return a.Offset < b.Offset
	}
	return a.UnitID < b.UnitID
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.UnitID, a.Offset)
}

// PutAddress encodes a into the first AddressSize bytes of data.
func PutAddress(data []byte, a Address) {
	binary.LittleEndian.PutUint32(data[0:4], a.UnitID)
	binary.LittleEndian.PutUint32(data[4:8], a.Offset)
}

// GetAddress decodes an Address written by PutAddress.
func GetAddress(data []byte) Address {
	return Address{
		UnitID: binary.LittleEndian.Uint32(data[0:4]),
		Offset: binary.LittleEndian.Uint32(data[4:8]),
	}
}

// Page is one mapped allocation unit holding config.UnitSlots bucket slots.
type Page struct {
	pager   *Pager
	pagenum uint32  // Unit id, also the name of the backing file
	mapping Mapping // Mapped unit file
	dirty   bool    // Whether the unit was written since it was last persisted
	data    []byte
}

// GetPager returns the pager this page belongs to.
func (page *Page) GetPager() *Pager {
	return page.pager
}

// GetPageNum returns the page's unit id.
func (page *Page) GetPageNum() uint32 {
	return page.pagenum
}

// IsDirty reports whether the page's data has changed since it was last persisted.
func (page *Page) IsDirty() bool {
	return page.dirty
}

// SetDirty changes the dirty status of a page.
func (page *Page) SetDirty(dirty bool) {
	page.dirty = dirty
}

// GetData returns the mapped bytes of the unit.
func (page *Page) GetData() []byte {
	return page.data
}

// Update copies size bytes of data into the page at the specified offset.
func (page *Page) Update(data []byte, offset int64, size int64) {
	page.dirty = true
	copy(page.data[offset:offset+size], data)
}

// Slot returns the bytes of the bucket slot at the given offset.
func (page *Page) Slot(offset uint32) []byte {
	start := UnitHeaderSize + int64(offset)*BucketSize
	return page.data[start : start+BucketSize : start+BucketSize]
}

// Address returns the persistent address of the slot at the given offset.
func (page *Page) Address(offset uint32) Address {
	return Address{UnitID: page.pagenum, Offset: offset}
}

// UsedSlots returns a copy of the unit's used-slot bitmap.
func (page *Page) UsedSlots() *bitset.BitSet {
	word := binary.LittleEndian.Uint64(page.data[bitmapOffset : bitmapOffset+8])
	return bitset.From([]uint64{word})
}

// IsUsed reports whether the slot at offset is owned by a live bucket.
func (page *Page) IsUsed(offset uint32) bool {
	return page.UsedSlots().Test(uint(offset))
}

// SetUsed marks the slot at offset as owned (or not) by a live bucket.
func (page *Page) SetUsed(offset uint32, used bool) {
	bits := page.UsedSlots()
	if used {
		bits.Set(uint(offset))
	} else {
		bits.Clear(uint(offset))
	}
	binary.LittleEndian.PutUint64(page.data[bitmapOffset:bitmapOffset+8], bits.Bytes()[0])
	page.dirty = true
}

// initHeader writes a fresh header for this unit.
func (page *Page) initHeader() {
	header := make([]byte, UnitHeaderSize)
	binary.LittleEndian.PutUint32(header[magicOffset:], UnitMagic)
	binary.LittleEndian.PutUint16(header[versionOffset:], UnitVersion)
	binary.LittleEndian.PutUint32(header[unitIDOffset:], page.pagenum)
	page.Update(header, 0, UnitHeaderSize)
}

// checkHeader validates the header of a unit read back from its file.
func (page *Page) checkHeader() error {
	data := page.data
	if magic := binary.LittleEndian.Uint32(data[magicOffset:]); magic != UnitMagic {
		return fmt.Errorf("%w: unit %d has bad magic %#x", ErrBadUnit, page.pagenum, magic)
	}
	if version := binary.LittleEndian.Uint16(data[versionOffset:]); version != UnitVersion {
		return fmt.Errorf("%w: unit %d has unsupported version %d", ErrBadUnit, page.pagenum, version)
	}
	if id := binary.LittleEndian.Uint32(data[unitIDOffset:]); id != page.pagenum {
		return fmt.Errorf("%w: unit file %d claims id %d", ErrBadUnit, page.pagenum, id)
	}
	return nil
}
