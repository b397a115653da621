package pager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Record is a single durable, mapped file with a caller-defined layout,
// such as the index metadata or the catalog.
type Record struct {
	pager   *Pager
	name    string
	mapping Mapping
}

// RecordPath returns the path of the record with the given name.
func (pager *Pager) RecordPath(name string) string {
	return filepath.Join(pager.dir, name)
}

// RecordExists reports whether a record file with the given name exists.
func (pager *Pager) RecordExists(name string) (bool, error) {
	_, err := os.Stat(pager.RecordPath(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// OpenRecord maps the record with the given name, holding at least size bytes.
// Without create a missing record reports an os.ErrNotExist error.
func (pager *Pager) OpenRecord(name string, size int64, create bool) (*Record, error) {
	pager.mtx.Lock()
	_, open := pager.records[name]
	pager.mtx.Unlock()
	if open {
		return nil, fmt.Errorf("record %s is already open", name)
	}
	mapping, err := pager.backend.Map(pager.RecordPath(name), RoundToBlock(size), create)
	if err != nil {
		if errors.Is(err, ErrShortFile) {
			return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
		}
		return nil, fmt.Errorf("open record %s: %w", name, err)
	}
	record := &Record{pager: pager, name: name, mapping: mapping}
	pager.mtx.Lock()
	pager.records[name] = record
	pager.mtx.Unlock()
	return record, nil
}

// GetName returns the record's file name.
func (record *Record) GetName() string {
	return record.name
}

// GetData returns the mapped bytes of the record.
func (record *Record) GetData() []byte {
	return record.mapping.Bytes()
}

// Size returns the number of mapped bytes.
func (record *Record) Size() int64 {
	return int64(len(record.mapping.Bytes()))
}

// Resize grows the record to hold at least size bytes, preserving its contents.
// On failure the record keeps its previous mapping.
func (record *Record) Resize(size int64) error {
	size = RoundToBlock(size)
	if size <= record.Size() {
		return nil
	}
	if err := record.mapping.Flush(); err != nil {
		return fmt.Errorf("resize record %s: %w", record.name, err)
	}
	mapping, err := record.pager.backend.Map(record.pager.RecordPath(record.name), size, true)
	if err != nil {
		return fmt.Errorf("resize record %s: %w", record.name, err)
	}
	old := record.mapping
	record.mapping = mapping
	return old.Close()
}

// Persist durably flushes the record.
func (record *Record) Persist() error {
	if err := record.mapping.Flush(); err != nil {
		return fmt.Errorf("persist record %s: %w", record.name, err)
	}
	return nil
}
