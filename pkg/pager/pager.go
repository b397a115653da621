// Package pager implements the allocation units and durable records that back a hash index.
//
// Every allocation unit lives in its own file inside the pager's directory, named by its
// numeric id, and is mapped into memory for as long as the pager is open.
package pager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/ncw/directio"
	"golang.org/x/sync/errgroup"

	"pmhash/pkg/config"
)

var (
	// Error for when a unit that should exist has no backing file
	ErrUnitNotFound = errors.New("allocation unit not found")
	// Error for when a unit's file exists but its contents are not a valid unit
	ErrBadUnit = errors.New("bad allocation unit")
	// Error for when a record's file exists but is not valid
	ErrBadRecord = errors.New("bad record")
	// Error for when no further allocation units may be created
	ErrUnitLimit = errors.New("allocation unit limit reached")
)

// SlotInitializer prepares the bytes of one bucket slot in a newly allocated unit.
type SlotInitializer func(slot []byte)

// Pager manages the mapped allocation units and records of one backing directory.
type Pager struct {
	dir      string
	backend  Backend
	maxUnits uint32          // 0 means unlimited
	initSlot SlotInitializer // Applied to every slot of a new unit
	units    map[uint32]*Page
	records  map[string]*Record
	mtx      sync.Mutex // Protects units and records for concurrent loads and flushes
}

// New constructs a Pager over the directory dir, creating it if needed.
func New(dir string, backend Backend, maxUnits uint32, initSlot SlotInitializer) (*Pager, error) {
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = MmapBackend{}
	}
	return &Pager{
		dir:      dir,
		backend:  backend,
		maxUnits: maxUnits,
		initSlot: initSlot,
		units:    make(map[uint32]*Page),
		records:  make(map[string]*Record),
	}, nil
}

// GetDir returns the backing directory.
func (pager *Pager) GetDir() string {
	return pager.dir
}

// GetBackend returns the backend used to map files.
func (pager *Pager) GetBackend() Backend {
	return pager.backend
}

// GetNumUnits returns the number of currently mapped units.
func (pager *Pager) GetNumUnits() int {
	pager.mtx.Lock()
	defer pager.mtx.Unlock()
	return len(pager.units)
}

// UnitPath returns the path of the file backing the unit with the given id.
func (pager *Pager) UnitPath(id uint32) string {
	return filepath.Join(pager.dir, strconv.FormatUint(uint64(id), 10))
}

// AllocateUnit creates the unit with the given id, with every slot initialized empty.
// A leftover file with the same id is overwritten.
func (pager *Pager) AllocateUnit(id uint32) (*Page, error) {
	if pager.maxUnits > 0 && id >= pager.maxUnits {
		return nil, fmt.Errorf("%w: unit %d exceeds the limit of %d", ErrUnitLimit, id, pager.maxUnits)
	}
	pager.mtx.Lock()
	_, mapped := pager.units[id]
	pager.mtx.Unlock()
	if mapped {
		return nil, fmt.Errorf("unit %d is already mapped", id)
	}
	mapping, err := pager.backend.Map(pager.UnitPath(id), Pagesize, true)
	if err != nil {
		return nil, fmt.Errorf("allocate unit %d: %w", id, err)
	}
	page := &Page{pager: pager, pagenum: id, mapping: mapping, data: mapping.Bytes()}
	clear(page.data)
	page.initHeader()
	if pager.initSlot != nil {
		for offset := uint32(0); offset < config.UnitSlots; offset++ {
			pager.initSlot(page.Slot(offset))
		}
	}
	pager.mtx.Lock()
	pager.units[id] = page
	pager.mtx.Unlock()
	return page, nil
}

// LoadUnit maps an existing unit, failing if its file is missing or corrupt.
func (pager *Pager) LoadUnit(id uint32) (*Page, error) {
	pager.mtx.Lock()
	if page, ok := pager.units[id]; ok {
		pager.mtx.Unlock()
		return page, nil
	}
	pager.mtx.Unlock()

	mapping, err := pager.backend.Map(pager.UnitPath(id), Pagesize, false)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: unit %d", ErrUnitNotFound, id)
		}
		if errors.Is(err, ErrShortFile) {
			return nil, fmt.Errorf("%w: %v", ErrBadUnit, err)
		}
		return nil, fmt.Errorf("load unit %d: %w", id, err)
	}
	page := &Page{pager: pager, pagenum: id, mapping: mapping, data: mapping.Bytes()}
	if err := page.checkHeader(); err != nil {
		mapping.Close()
		return nil, err
	}

	pager.mtx.Lock()
	defer pager.mtx.Unlock()
	if existing, ok := pager.units[id]; ok {
		mapping.Close()
		return existing, nil
	}
	pager.units[id] = page
	return page, nil
}

// GetUnit returns an already mapped unit.
func (pager *Pager) GetUnit(id uint32) (*Page, bool) {
	pager.mtx.Lock()
	defer pager.mtx.Unlock()
	page, ok := pager.units[id]
	return page, ok
}

// PersistUnit durably flushes a previously mutated unit.
func (pager *Pager) PersistUnit(page *Page) error {
	if err := page.mapping.Flush(); err != nil {
		return fmt.Errorf("persist unit %d: %w", page.pagenum, err)
	}
	page.SetDirty(false)
	return nil
}

// sortedUnits returns the mapped units ordered by id.
func (pager *Pager) sortedUnits() []*Page {
	pager.mtx.Lock()
	defer pager.mtx.Unlock()
	pages := make([]*Page, 0, len(pager.units))
	for _, page := range pager.units {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].pagenum < pages[j].pagenum })
	return pages
}

// FlushAllPages persists every dirty unit and every record.
func (pager *Pager) FlushAllPages() error {
	var g errgroup.Group
	for _, page := range pager.sortedUnits() {
		if !page.IsDirty() {
			continue
		}
		page := page
		g.Go(func() error {
			return pager.PersistUnit(page)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	pager.mtx.Lock()
	defer pager.mtx.Unlock()
	for _, record := range pager.records {
		if err := record.Persist(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes everything to the medium and unmaps every unit and record.
func (pager *Pager) Close() error {
	err := pager.FlushAllPages()
	if rerr := pager.Release(); err == nil {
		err = rerr
	}
	return err
}

// Release unmaps every unit and record without flushing them.
func (pager *Pager) Release() (err error) {
	pager.mtx.Lock()
	defer pager.mtx.Unlock()
	for id, page := range pager.units {
		if cerr := page.mapping.Close(); err == nil {
			err = cerr
		}
		delete(pager.units, id)
	}
	for name, record := range pager.records {
		if cerr := record.mapping.Close(); err == nil {
			err = cerr
		}
		delete(pager.records, name)
	}
	return err
}

// RoundToBlock rounds size up to a multiple of the I/O block size.
func RoundToBlock(size int64) int64 {
	if size <= 0 {
		return directio.BlockSize
	}
	return (size + directio.BlockSize - 1) / directio.BlockSize * directio.BlockSize
}
