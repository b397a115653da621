package hash

import (
	"fmt"
	"math"

	"pmhash/pkg/config"
	"pmhash/pkg/list"
	"pmhash/pkg/log"
	"pmhash/pkg/pager"
)

// freeSpace registers every bucket slot of every mapped unit and hands out
// the ones no catalog entry refers to.
type freeSpace struct {
	pager    *pager.Pager
	meta     *metadata
	logger   log.Logger
	buckets  []*HashBucket // Indexed by handle
	handleOf map[pager.Address]bucketID
	free     *list.List[bucketID]
	freeLink map[bucketID]*list.Link[bucketID]
}

func newFreeSpace(p *pager.Pager, meta *metadata, logger log.Logger) *freeSpace {
	return &freeSpace{
		pager:    p,
		meta:     meta,
		logger:   logger,
		handleOf: make(map[pager.Address]bucketID),
		free:     list.NewList[bucketID](),
		freeLink: make(map[bucketID]*list.Link[bucketID]),
	}
}

// register assigns a handle to every slot of page. The slots are not yet free.
func (space *freeSpace) register(page *pager.Page) []bucketID {
	handles := make([]bucketID, 0, config.UnitSlots)
	for offset := uint32(0); offset < config.UnitSlots; offset++ {
		id := bucketID(len(space.buckets))
		space.buckets = append(space.buckets, &HashBucket{
			id:     id,
			page:   page,
			offset: offset,
			data:   page.Slot(offset),
		})
		space.handleOf[page.Address(offset)] = id
		handles = append(handles, id)
	}
	return handles
}

// pushFree appends a registered slot to the free pool.
func (space *freeSpace) pushFree(id bucketID) {
	if _, ok := space.freeLink[id]; ok {
		return
	}
	space.freeLink[id] = space.free.PushTail(id)
}

// allocUnit maps a brand-new unit and adds all its slots to the free pool.
func (space *freeSpace) allocUnit() error {
	next := space.meta.nextUnitID()
	if next > math.MaxUint32 {
		return fmt.Errorf("%w: unit ids are used up", ErrResourceExhausted)
	}
	page, err := space.pager.AllocateUnit(uint32(next))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}
	space.meta.setNextUnitID(next + 1)
	for _, id := range space.register(page) {
		space.pushFree(id)
	}
	space.logger.Debug("allocated unit %d", next)
	return nil
}

// acquire takes a slot from the free pool, allocating a unit if the pool is empty.
func (space *freeSpace) acquire() (*HashBucket, error) {
	if space.free.Len() == 0 {
		if err := space.allocUnit(); err != nil {
			return nil, err
		}
	}
	id, _ := space.free.PopHead()
	delete(space.freeLink, id)
	bucket := space.buckets[id]
	bucket.reset()
	bucket.page.SetUsed(bucket.offset, true)
	return bucket, nil
}

// release resets a slot and returns it to the free pool.
func (space *freeSpace) release(bucket *HashBucket) {
	bucket.reset()
	bucket.page.SetUsed(bucket.offset, false)
	space.pushFree(bucket.id)
}

func (space *freeSpace) bucket(id bucketID) *HashBucket {
	return space.buckets[id]
}

// address maps a handle to its persistent address. The arena is the forward map.
func (space *freeSpace) address(id bucketID) pager.Address {
	return space.buckets[id].GetAddress()
}

// resolve maps a persistent address to its handle.
func (space *freeSpace) resolve(addr pager.Address) (bucketID, bool) {
	id, ok := space.handleOf[addr]
	return id, ok
}

func (space *freeSpace) isFree(id bucketID) bool {
	_, ok := space.freeLink[id]
	return ok
}

func (space *freeSpace) numFree() int {
	return space.free.Len()
}

func (space *freeSpace) numSlots() int {
	return len(space.buckets)
}

// freeAddresses lists the free pool in acquisition order.
func (space *freeSpace) freeAddresses() []pager.Address {
	addrs := make([]pager.Address, 0, space.free.Len())
	space.free.Map(func(link *list.Link[bucketID]) {
		addrs = append(addrs, space.address(link.GetValue()))
	})
	return addrs
}
