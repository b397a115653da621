package hash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"pmhash/pkg/config"
	"pmhash/pkg/pager"
)

// catalogEntry is one catalog index: the bucket's handle and its persistent address.
type catalogEntry struct {
	handle bucketID
	addr   pager.Address
}

// catalog maps every hash prefix of the global depth to a bucket. The in-memory
// entries mirror the catalog record, which holds the addresses.
type catalog struct {
	entries []catalogEntry
	record  *pager.Record
}

// Catalog record: | magic (4) | reserved (4) | count (8) | addresses (8 each) |
func catalogRecordSize(count int) int64 {
	return CATALOG_HEADER_SIZE + int64(count)*pager.AddressSize
}

// openCatalog maps the catalog record and reads back count addresses.
func openCatalog(p *pager.Pager, count uint64) (*catalog, []pager.Address, error) {
	exists, err := p.RecordExists(config.CatalogFileName)
	if err != nil {
		return nil, nil, err
	}
	if !exists && count > 0 {
		return nil, nil, fmt.Errorf("%w: catalog record is missing", ErrCorrupted)
	}
	record, err := p.OpenRecord(config.CatalogFileName, catalogRecordSize(int(count)), !exists)
	if err != nil {
		if errors.Is(err, pager.ErrBadRecord) || errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		return nil, nil, err
	}
	cat := &catalog{record: record}
	data := record.GetData()
	if !exists {
		binary.LittleEndian.PutUint32(data[0:], CATALOG_MAGIC)
		return cat, nil, nil
	}
	if magic := binary.LittleEndian.Uint32(data[0:]); magic != CATALOG_MAGIC {
		return nil, nil, fmt.Errorf("%w: catalog has bad magic %#x", ErrCorrupted, magic)
	}
	if stored := binary.LittleEndian.Uint64(data[CATALOG_COUNT_OFF:]); stored != count {
		return nil, nil, fmt.Errorf("%w: catalog holds %d entries, metadata expects %d", ErrCorrupted, stored, count)
	}
	if record.Size() < catalogRecordSize(int(count)) {
		return nil, nil, fmt.Errorf("%w: catalog record is truncated", ErrCorrupted)
	}
	addrs := make([]pager.Address, count)
	for i := range addrs {
		pos := catalogRecordSize(i)
		addrs[i] = pager.GetAddress(data[pos : pos+pager.AddressSize])
	}
	return cat, addrs, nil
}

func (cat *catalog) size() int {
	return len(cat.entries)
}

func (cat *catalog) get(index int) catalogEntry {
	return cat.entries[index]
}

// set points the catalog index at a bucket, in memory and in the record.
func (cat *catalog) set(index int, e catalogEntry) {
	cat.entries[index] = e
	cat.writeAddress(index)
}

func (cat *catalog) writeAddress(index int) {
	pos := catalogRecordSize(index)
	pager.PutAddress(cat.record.GetData()[pos:pos+pager.AddressSize], cat.entries[index].addr)
}

func (cat *catalog) writeCount() {
	binary.LittleEndian.PutUint64(cat.record.GetData()[CATALOG_COUNT_OFF:], uint64(len(cat.entries)))
}

// replace swaps in a whole new set of entries, resizing the record first.
// On failure nothing changes.
func (cat *catalog) replace(entries []catalogEntry) error {
	if err := cat.record.Resize(catalogRecordSize(len(entries))); err != nil {
		return err
	}
	cat.entries = entries
	for i := range cat.entries {
		cat.writeAddress(i)
	}
	cat.writeCount()
	return nil
}

// grow doubles the catalog; the upper half repeats the lower half.
// On failure nothing changes.
func (cat *catalog) grow() error {
	old := len(cat.entries)
	if err := cat.record.Resize(catalogRecordSize(2 * old)); err != nil {
		return err
	}
	cat.entries = append(cat.entries, cat.entries...)
	for i := old; i < len(cat.entries); i++ {
		cat.writeAddress(i)
	}
	cat.writeCount()
	return nil
}
