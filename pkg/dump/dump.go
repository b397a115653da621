// Package dump reads and writes portable snapshots of an index's entries.
//
// A dump is a zstd stream holding the magic "PMHDUMP1", the entry count,
// the entries themselves and an xxhash64 of everything before it.
package dump

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"
	"github.com/klauspost/compress/zstd"

	"pmhash/pkg/entry"
)

// ErrBadDump is returned when a stream is not a valid dump.
var ErrBadDump = errors.New("bad dump")

const magic = "PMHDUMP1"

// Write encodes entries as a dump onto w.
func Write(w io.Writer, entries []entry.Entry) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	digest := xxhash.New()
	out := io.MultiWriter(enc, digest)
	var buf [entry.Size]byte
	if _, err := io.WriteString(out, magic); err != nil {
		enc.Close()
		return err
	}
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(entries)))
	if _, err := out.Write(buf[:8]); err != nil {
		enc.Close()
		return err
	}
	for _, e := range entries {
		e.MarshalTo(buf[:])
		if _, err := out.Write(buf[:]); err != nil {
			enc.Close()
			return err
		}
	}
	binary.LittleEndian.PutUint64(buf[:8], digest.Sum64())
	if _, err := enc.Write(buf[:8]); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes a dump written by Write.
func Read(r io.Reader) ([]entry.Entry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	digest := xxhash.New()
	in := io.TeeReader(dec, digest)

	header := make([]byte, len(magic)+8)
	if _, err := io.ReadFull(in, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDump, err)
	}
	if string(header[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadDump)
	}
	count := binary.LittleEndian.Uint64(header[len(magic):])
	entries := make([]entry.Entry, 0)
	var buf [entry.Size]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(in, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: entry %d of %d: %v", ErrBadDump, i, count, err)
		}
		entries = append(entries, entry.UnmarshalEntry(buf[:]))
	}
	sum := digest.Sum64()
	if _, err := io.ReadFull(dec, buf[:8]); err != nil {
		return nil, fmt.Errorf("%w: missing checksum: %v", ErrBadDump, err)
	}
	if binary.LittleEndian.Uint64(buf[:8]) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrBadDump)
	}
	return entries, nil
}

// WriteFile writes a dump of entries to path, replacing any existing file.
func WriteFile(path string, entries []entry.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads the dump at path.
func ReadFile(path string) ([]entry.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
