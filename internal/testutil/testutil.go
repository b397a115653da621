// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ncw/directio"

	"pmhash/pkg/config"
	"pmhash/pkg/entry"
	"pmhash/pkg/hash"
)

// Mod vals by this value to prevent hardcoding tests
// + 1 is necessary because rand.Int63n(_) can return 0
var Salt uint64 = uint64(rand.Int63n(1000)) + 1

// Index is the subset of index operations the helpers need.
type Index interface {
	Insert(key, value uint64) error
	Find(key uint64) (entry.Entry, error)
}

// TestOptions returns options for an index in a fresh directory that is
// removed once the test finishes. Only warnings and errors are logged.
func TestOptions(t *testing.T) *config.Options {
	t.Helper()
	opts := config.NewDefaultOptions(filepath.Join(t.TempDir(), "index"))
	opts.LogLevel = "warn"
	return opts
}

// OpenIndex opens an index with the given options, failing the test on error.
// The index is closed when the test finishes unless the test closed it already.
func OpenIndex(t *testing.T, opts *config.Options) *hash.HashIndex {
	t.Helper()
	index, err := hash.Open(opts)
	if err != nil {
		t.Fatal("Failed to open hash index:", err)
	}
	t.Cleanup(func() {
		_ = index.Close()
	})
	return index
}

// CloseAndReopen closes the index and opens its directory again with the same options.
func CloseAndReopen(t *testing.T, index *hash.HashIndex) *hash.HashIndex {
	t.Helper()
	opts := index.GetOptions()
	if err := index.Close(); err != nil {
		t.Fatal("Failed to close hash index:", err)
	}
	return OpenIndex(t, &opts)
}

// InsertEntry tries to insert the entry (key, val) into the specified index,
// erroring the test if the operation fails
func InsertEntry(t *testing.T, index Index, key, val uint64) {
	t.Helper()
	if err := index.Insert(key, val); err != nil {
		t.Errorf("Failed to insert (%d, %d) into the index: %s", key, val, err)
	}
}

// CheckFindEntry verifies that entry (key, expectedVal) was present in the specified index,
// erroring the test if the entry isn't found or is found with the wrong values
func CheckFindEntry(t *testing.T, index Index, key, expectedVal uint64) {
	t.Helper()
	found, err := index.Find(key)
	if err != nil {
		t.Errorf("Failed to find inserted entry (%d, %d): %s", key, expectedVal, err)
		return
	}
	CheckEntry(t, found, key, expectedVal)
}

// CheckEntry verifies that the specified entry has the expected key and value,
// erroring the test if this isn't the case
func CheckEntry(t *testing.T, e entry.Entry, expectedKey, expectedVal uint64) {
	t.Helper()
	if e.Key != expectedKey {
		t.Errorf("Expected entry to have key %d, but instead found key %d", expectedKey, e.Key)
		return
	}
	if e.Value != expectedVal {
		t.Errorf("Expected entry with key %d to have value %d, but instead found value %d", expectedKey, expectedVal, e.Value)
	}
}

// KeyValuePair is a pair of key and value
type KeyValuePair struct {
	Key uint64
	Val uint64
}

// GenerateRandomKeyValuePairs generates n random key-value pairs with unique keys.
// Returns the n pairs generated in a slice and a map that maps the generated keys to the generated values.
func GenerateRandomKeyValuePairs(n int) ([]KeyValuePair, map[uint64]uint64) {
	entries := make([]KeyValuePair, 0, n)
	answerKey := make(map[uint64]uint64, n)
	for len(entries) < n {
		key := rand.Uint64()
		if _, ok := answerKey[key]; ok {
			continue
		}
		val := rand.Uint64()
		answerKey[key] = val
		entries = append(entries, KeyValuePair{Key: key, Val: val})
	}
	return entries, answerKey
}

// SkipWithoutDirectIO skips the test when dir's filesystem refuses O_DIRECT (such as tmpfs).
func SkipWithoutDirectIO(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0775); err != nil {
		t.Fatal(err)
	}
	probe := filepath.Join(dir, "probe")
	f, err := directio.OpenFile(probe, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		t.Skipf("O_DIRECT unsupported here: %v", err)
	}
	f.Close()
	os.Remove(probe)
}
