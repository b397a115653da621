package hash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash"

	"pmhash/pkg/config"
	"pmhash/pkg/pager"
)

// metadata is the durable summary of an index: the next unit id to allocate,
// the catalog size, the global depth and the hasher keys were placed with.
type metadata struct {
	record *pager.Record
}

// openMetadata maps the metadata record, creating and formatting it if the
// directory has none. fresh reports whether it was created.
func openMetadata(p *pager.Pager, hasher uint64) (meta *metadata, fresh bool, err error) {
	exists, err := p.RecordExists(config.MetadataFileName)
	if err != nil {
		return nil, false, err
	}
	record, err := p.OpenRecord(config.MetadataFileName, META_RECORD_SIZE, !exists)
	if err != nil {
		if errors.Is(err, pager.ErrBadRecord) || errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		return nil, false, err
	}
	meta = &metadata{record: record}
	if !exists {
		meta.format(hasher)
		if err := record.Persist(); err != nil {
			return nil, false, err
		}
		return meta, true, nil
	}
	if err := meta.validate(hasher); err != nil {
		return nil, false, err
	}
	return meta, false, nil
}

// format writes an empty metadata record: no units, no catalog, depth 0.
func (meta *metadata) format(hasher uint64) {
	data := meta.record.GetData()
	clear(data[:META_RECORD_SIZE])
	binary.LittleEndian.PutUint32(data[0:], META_MAGIC)
	binary.LittleEndian.PutUint32(data[4:], META_VERSION)
	binary.LittleEndian.PutUint64(data[META_HASHER_OFF:], hasher)
	meta.seal()
}

func (meta *metadata) validate(hasher uint64) error {
	data := meta.record.GetData()
	if magic := binary.LittleEndian.Uint32(data[0:]); magic != META_MAGIC {
		return fmt.Errorf("%w: metadata has bad magic %#x", ErrCorrupted, magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:]); version != META_VERSION {
		return fmt.Errorf("%w: metadata has unsupported version %d", ErrCorrupted, version)
	}
	if sum := xxhash.Sum64(data[:META_CHECKSUM_OFF]); sum != meta.get(META_CHECKSUM_OFF) {
		return fmt.Errorf("%w: metadata checksum mismatch", ErrCorrupted)
	}
	depth, size := meta.globalDepth(), meta.catalogSize()
	if depth > MAX_GLOBAL_DEPTH || (depth == 0 && size != 0) || (depth > 0 && size != 1<<depth) {
		return fmt.Errorf("%w: global depth %d does not match catalog size %d", ErrCorrupted, depth, size)
	}
	if stored := meta.hasher(); stored != hasher {
		return fmt.Errorf("%w: directory uses %s, opened with %s",
			ErrHasherMismatch, hasherName(stored), hasherName(hasher))
	}
	return nil
}

func (meta *metadata) get(offset int64) uint64 {
	return binary.LittleEndian.Uint64(meta.record.GetData()[offset:])
}

// set writes one field and reseals the record.
func (meta *metadata) set(offset int64, value uint64) {
	binary.LittleEndian.PutUint64(meta.record.GetData()[offset:], value)
	meta.seal()
}

func (meta *metadata) seal() {
	data := meta.record.GetData()
	binary.LittleEndian.PutUint64(data[META_CHECKSUM_OFF:], xxhash.Sum64(data[:META_CHECKSUM_OFF]))
}

func (meta *metadata) nextUnitID() uint64         { return meta.get(META_NEXT_UNIT_OFF) }
func (meta *metadata) setNextUnitID(id uint64)    { meta.set(META_NEXT_UNIT_OFF, id) }
func (meta *metadata) catalogSize() uint64        { return meta.get(META_CATALOG_OFF) }
func (meta *metadata) setCatalogSize(size uint64) { meta.set(META_CATALOG_OFF, size) }
func (meta *metadata) globalDepth() uint64        { return meta.get(META_DEPTH_OFF) }
func (meta *metadata) hasher() uint64             { return meta.get(META_HASHER_OFF) }

// setShape records a new global depth together with the matching catalog size.
func (meta *metadata) setShape(depth uint64) {
	binary.LittleEndian.PutUint64(meta.record.GetData()[META_DEPTH_OFF:], depth)
	binary.LittleEndian.PutUint64(meta.record.GetData()[META_CATALOG_OFF:], 1<<depth)
	meta.seal()
}
