package dump_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"pmhash/pkg/dump"
	"pmhash/pkg/entry"
)

func TestDumpRoundTrip(t *testing.T) {
	entries := make([]entry.Entry, 0, 500)
	for i := uint64(0); i < 500; i++ {
		entries = append(entries, entry.New(i*7, i*i))
	}
	var buf bytes.Buffer
	if err := dump.Write(&buf, entries); err != nil {
		t.Fatal(err)
	}
	got, err := dump.Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(entries) {
		t.Fatalf("read %d entries, wrote %d", len(got), len(entries))
	}
	for i := range got {
		if got[i] != entries[i] {
			t.Fatalf("entry %d: got %v, want %v", i, got[i], entries[i])
		}
	}
}

func TestDumpEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dump")
	if err := dump.WriteFile(path, nil); err != nil {
		t.Fatal(err)
	}
	got, err := dump.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestDumpRejectsGarbage(t *testing.T) {
	if _, err := dump.Read(bytes.NewReader([]byte("definitely not zstd"))); err == nil {
		t.Fatal("expected an error reading garbage")
	}
}

func TestDumpRejectsTruncated(t *testing.T) {
	entries := make([]entry.Entry, 0, 100)
	for i := uint64(0); i < 100; i++ {
		entries = append(entries, entry.New(i, i+1))
	}
	var buf bytes.Buffer
	if err := dump.Write(&buf, entries); err != nil {
		t.Fatal(err)
	}
	if _, err := dump.Read(bytes.NewReader(buf.Bytes()[:buf.Len()/2])); err == nil {
		t.Fatal("expected an error reading a truncated stream")
	}
}

func TestDumpRejectsWrongMagic(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	enc.Write([]byte("NOTADUMP\x00\x00\x00\x00\x00\x00\x00\x00"))
	enc.Close()
	if _, err := dump.Read(&buf); !errors.Is(err, dump.ErrBadDump) {
		t.Fatalf("expected ErrBadDump, got %v", err)
	}
}
