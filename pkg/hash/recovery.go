package hash

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pmhash/pkg/log"
	"pmhash/pkg/pager"
)

// openTable rebuilds a table from its backing directory, or formats an empty
// one. Every unit below the recorded next id is mapped and registered, the
// catalog is resolved against the registered slots, and every slot the
// catalog does not refer to joins the free pool.
func openTable(p *pager.Pager, hasher Hasher, hasherID uint64, logger log.Logger) (*HashTable, error) {
	meta, fresh, err := openMetadata(p, hasherID)
	if err != nil {
		return nil, err
	}
	if fresh {
		logger.Info("formatted new index in %s", p.GetDir())
	}
	pages, err := loadUnits(p, meta.nextUnitID())
	if err != nil {
		return nil, err
	}
	space := newFreeSpace(p, meta, logger)
	for _, page := range pages {
		space.register(page)
	}
	cat, addrs, err := openCatalog(p, meta.catalogSize())
	if err != nil {
		return nil, err
	}
	cat.entries = make([]catalogEntry, len(addrs))
	live := make(map[bucketID]bool)
	for i, addr := range addrs {
		id, ok := space.resolve(addr)
		if !ok {
			return nil, fmt.Errorf("%w: catalog index %d refers to unknown slot %s", ErrCorrupted, i, addr)
		}
		cat.entries[i] = catalogEntry{handle: id, addr: addr}
		live[id] = true
	}
	repaired := 0
	for _, bucket := range space.buckets {
		used := live[bucket.id]
		if !used {
			space.pushFree(bucket.id)
		}
		if bucket.page.IsUsed(bucket.offset) != used {
			bucket.page.SetUsed(bucket.offset, used)
			repaired++
		}
	}
	if repaired > 0 {
		logger.Warn("repaired %d unit bitmap bits that disagreed with the catalog", repaired)
	}
	table := &HashTable{
		pager:   p,
		meta:    meta,
		catalog: cat,
		space:   space,
		hasher:  hasher,
		logger:  logger,
	}
	if meta.globalDepth() == 0 {
		if err := table.initialize(); err != nil {
			return nil, err
		}
	}
	logger.Info("opened index: depth %d, %d units, %d live buckets, %d free slots",
		meta.globalDepth(), len(pages), len(live), space.numFree())
	return table, nil
}

// loadUnits maps units 0 through count-1 concurrently and returns them in id order.
func loadUnits(p *pager.Pager, count uint64) ([]*pager.Page, error) {
	pages := make([]*pager.Page, count)
	var group errgroup.Group
	for id := uint64(0); id < count; id++ {
		id := id
		group.Go(func() error {
			page, err := p.LoadUnit(uint32(id))
			if err != nil {
				return err
			}
			pages[id] = page
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, pager.ErrUnitNotFound) || errors.Is(err, pager.ErrBadUnit) {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		return nil, err
	}
	return pages, nil
}
