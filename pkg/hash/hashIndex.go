// Package hash implements a persistent extendible hash index over fixed-size
// allocation units.
//
// Keys and values are unsigned 64-bit integers. Buckets hold up to
// config.BucketSlots entries and live in slots of allocation unit files; a
// catalog of 2^globalDepth entries maps hash prefixes to buckets. The catalog,
// the metadata and every unit are memory mapped, so all state survives a
// restart of the process.
package hash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/otiai10/copy"

	"pmhash/pkg/config"
	"pmhash/pkg/dump"
	"pmhash/pkg/entry"
	"pmhash/pkg/log"
	"pmhash/pkg/pager"
)

// HashIndex is an index that uses a HashTable as its underlying datastructure.
type HashIndex struct {
	table   *HashTable   // The HashTable
	pager   *pager.Pager // The pager backing this index / HashTable
	options config.Options
	logger  log.Logger
	logFile *os.File // Non-nil when options name a log file
	closed  bool
}

// Open opens the index stored in opts.Dir, creating an empty one if the
// directory holds none.
func Open(opts *config.Options) (*HashIndex, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger, logFile, err := newLogger(opts)
	if err != nil {
		return nil, err
	}
	index, err := open(*opts, logger)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}
	index.logFile = logFile
	return index, nil
}

// OpenDir opens the index in dir with default options.
func OpenDir(dir string) (*HashIndex, error) {
	return Open(config.NewDefaultOptions(dir))
}

func open(opts config.Options, logger log.Logger) (*HashIndex, error) {
	hasher, hasherID, err := lookupHasher(opts.Hasher)
	if err != nil {
		return nil, err
	}
	backend, err := pager.NewBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	p, err := pager.New(opts.Dir, backend, opts.MaxUnits, initEmptyBucket)
	if err != nil {
		return nil, err
	}
	table, err := openTable(p, hasher, hasherID, logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	return &HashIndex{table: table, pager: p, options: opts, logger: logger}, nil
}

// newLogger builds the index logger from opts. Each open index is tagged
// with a session id so interleaved runs can be told apart in a shared log.
func newLogger(opts *config.Options) (log.Logger, *os.File, error) {
	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	var out io.Writer = os.Stderr
	var file *os.File
	if opts.LogFile != "" {
		if file, err = os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = file
	}
	logger := log.NewStandardLogger(log.WithLevel(level), log.WithOutput(out)).WithFields(map[string]interface{}{
		"dir":     opts.Dir,
		"session": uuid.New().String()[:8],
	})
	return logger, file, nil
}

// GetName returns the base name of the backing directory.
func (index *HashIndex) GetName() string {
	return filepath.Base(index.pager.GetDir())
}

// GetPager returns the pager backing this index
func (index *HashIndex) GetPager() *pager.Pager {
	return index.pager
}

// Get table.
func (index *HashIndex) GetTable() *HashTable {
	return index.table
}

// GetOptions returns the options the index was opened with.
func (index *HashIndex) GetOptions() config.Options {
	return index.options
}

// GetLogger returns the index's logger.
func (index *HashIndex) GetLogger() log.Logger {
	return index.logger
}

func (index *HashIndex) check() error {
	if index.closed {
		return ErrClosed
	}
	return nil
}

// Search returns the value stored under key.
func (index *HashIndex) Search(key uint64) (uint64, error) {
	if err := index.check(); err != nil {
		return 0, err
	}
	return index.table.Search(key)
}

// Find returns the entry stored under key.
func (index *HashIndex) Find(key uint64) (entry.Entry, error) {
	value, err := index.Search(key)
	if err != nil {
		return entry.Entry{}, err
	}
	return entry.New(key, value), nil
}

// Insert given element.
func (index *HashIndex) Insert(key uint64, value uint64) error {
	if err := index.check(); err != nil {
		return err
	}
	return index.table.Insert(key, value)
}

// Update given element.
func (index *HashIndex) Update(key uint64, value uint64) error {
	if err := index.check(); err != nil {
		return err
	}
	return index.table.Update(key, value)
}

// Remove given element.
func (index *HashIndex) Remove(key uint64) error {
	if err := index.check(); err != nil {
		return err
	}
	return index.table.Remove(key)
}

// Select all elements.
func (index *HashIndex) Select() ([]entry.Entry, error) {
	if err := index.check(); err != nil {
		return nil, err
	}
	return index.table.Select()
}

// Print all elements.
func (index *HashIndex) Print(w io.Writer) {
	if index.closed {
		return
	}
	index.table.Print(w)
}

// Print the bucket at one catalog index.
func (index *HashIndex) PrintBucket(catalogIndex int, w io.Writer) {
	if index.closed {
		return
	}
	index.table.PrintBucket(catalogIndex, w)
}

// Stats returns a snapshot of the index's shape and activity.
func (index *HashIndex) Stats() (Stats, error) {
	if err := index.check(); err != nil {
		return Stats{}, err
	}
	return index.table.GetStats(), nil
}

// Verify checks the structural invariants of the index.
func (index *HashIndex) Verify() error {
	if err := index.check(); err != nil {
		return err
	}
	return index.table.Verify()
}

// Persist durably flushes every unit and record without closing the index.
func (index *HashIndex) Persist() error {
	if err := index.check(); err != nil {
		return err
	}
	return index.table.persist()
}

// Backup persists the index and copies its backing directory to dst, which must not exist.
// The copy can be opened as an index of its own.
func (index *HashIndex) Backup(dst string) error {
	if err := index.Persist(); err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("backup destination %s already exists", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := copy.Copy(index.pager.GetDir(), dst, copy.Options{Sync: true}); err != nil {
		return fmt.Errorf("backup to %s: %w", dst, err)
	}
	index.logger.Info("backed up to %s", dst)
	return nil
}

// Export writes every entry to a dump file at path.
func (index *HashIndex) Export(path string) (int, error) {
	entries, err := index.Select()
	if err != nil {
		return 0, err
	}
	if err := dump.WriteFile(path, entries); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	index.logger.Info("exported %d entries to %s", len(entries), path)
	return len(entries), nil
}

// Import loads every entry of the dump file at path. Keys already present
// take the dumped value.
func (index *HashIndex) Import(path string) (int, error) {
	if err := index.check(); err != nil {
		return 0, err
	}
	entries, err := dump.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	for i, e := range entries {
		err := index.table.Insert(e.Key, e.Value)
		if errors.Is(err, ErrDuplicateKey) {
			err = index.table.Update(e.Key, e.Value)
		}
		if err != nil {
			return i, fmt.Errorf("import entry %d: %w", i, err)
		}
	}
	index.logger.Info("imported %d entries from %s", len(entries), path)
	return len(entries), nil
}

// Close flushes the index and unmaps it. With ClearOnClose the backing
// directory is erased instead of being left for the next open.
func (index *HashIndex) Close() error {
	if err := index.check(); err != nil {
		return err
	}
	index.closed = true
	err := index.pager.Close()
	if index.options.ClearOnClose {
		if rerr := os.RemoveAll(index.pager.GetDir()); err == nil {
			err = rerr
		}
	}
	index.logger.Info("closed")
	index.closeLog()
	return err
}

// Destroy erases the backing directory and closes the index without flushing it.
func (index *HashIndex) Destroy() error {
	if err := index.check(); err != nil {
		return err
	}
	index.closed = true
	err := index.pager.Release()
	if rerr := os.RemoveAll(index.pager.GetDir()); err == nil {
		err = rerr
	}
	index.logger.Info("destroyed")
	index.closeLog()
	return err
}

// Reset erases the backing directory and reopens the index empty in its place.
func (index *HashIndex) Reset() error {
	if err := index.check(); err != nil {
		return err
	}
	if err := index.pager.Release(); err != nil {
		return err
	}
	if err := os.RemoveAll(index.pager.GetDir()); err != nil {
		index.closed = true
		return err
	}
	fresh, err := open(index.options, index.logger)
	if err != nil {
		index.closed = true
		return err
	}
	index.table, index.pager = fresh.table, fresh.pager
	index.logger.Info("reset")
	return nil
}

func (index *HashIndex) closeLog() {
	if index.logFile != nil {
		index.logFile.Close()
		index.logFile = nil
	}
}
