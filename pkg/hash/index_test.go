package hash_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pmhash/internal/testutil"
	"pmhash/pkg/config"
	"pmhash/pkg/hash"
)

func TestHashIndex(t *testing.T) {
	t.Run("Backup", testBackup)
	t.Run("ExportImport", testExportImport)
	t.Run("Persist", testPersist)
	t.Run("Destroy", testDestroy)
	t.Run("Reset", testReset)
	t.Run("ClearOnClose", testClearOnClose)
	t.Run("Closed", testClosed)
	t.Run("Cursor", testCursor)
	t.Run("EmptyCursor", testEmptyCursor)
	t.Run("Repl", testRepl)
	t.Run("ReplLog", testReplLog)
}

func testBackup(t *testing.T) {
	index := setupHash(t)
	entries, answerKey := testutil.GenerateRandomKeyValuePairs(600)
	for _, e := range entries {
		testutil.InsertEntry(t, index, e.Key, e.Val)
	}
	dst := filepath.Join(t.TempDir(), "backup")
	if err := index.Backup(dst); err != nil {
		t.Fatal(err)
	}
	if err := index.Backup(dst); err == nil {
		t.Fatal("a backup over an existing directory should fail")
	}
	opts := testutil.TestOptions(t)
	opts.Dir = dst
	backup := testutil.OpenIndex(t, opts)
	for key, val := range answerKey {
		testutil.CheckFindEntry(t, backup, key, val)
	}
	checkVerify(t, backup)
}

func testExportImport(t *testing.T) {
	index := setupHash(t)
	entries, answerKey := testutil.GenerateRandomKeyValuePairs(800)
	for _, e := range entries {
		testutil.InsertEntry(t, index, e.Key, e.Val)
	}
	path := filepath.Join(t.TempDir(), "entries.dump")
	n, err := index.Export(path)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(entries) {
		t.Fatalf("exported %d entries, expected %d", n, len(entries))
	}

	other := testutil.OpenIndex(t, testutil.TestOptions(t))
	// An existing key takes the dumped value.
	testutil.InsertEntry(t, other, entries[0].Key, entries[0].Val+1)
	if n, err = other.Import(path); err != nil {
		t.Fatal(err)
	}
	if n != len(entries) {
		t.Fatalf("imported %d entries, expected %d", n, len(entries))
	}
	for key, val := range answerKey {
		testutil.CheckFindEntry(t, other, key, val)
	}
	checkVerify(t, other)
}

// Persisted state is visible to a copy taken without closing.
func testPersist(t *testing.T) {
	index := setupHash(t)
	insertEvens(t, index)
	if err := index.Persist(); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "copy")
	if err := index.Backup(dst); err != nil {
		t.Fatal(err)
	}
	opts := testutil.TestOptions(t)
	opts.Dir = dst
	copied := testutil.OpenIndex(t, opts)
	for key := uint64(0); key < 80; key += 2 {
		testutil.CheckFindEntry(t, copied, key, key%hashSalt)
	}
}

func testDestroy(t *testing.T) {
	index := setupHash(t)
	insertEvens(t, index)
	dir := index.GetOptions().Dir
	if err := index.Destroy(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("backing directory should be gone, stat returned %v", err)
	}
	if err := index.Insert(1, 1); !errors.Is(err, hash.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func testReset(t *testing.T) {
	index := setupHash(t)
	insertEvens(t, index)
	if err := index.Reset(); err != nil {
		t.Fatal(err)
	}
	stats, _ := index.Stats()
	if stats.Entries != 0 || stats.GlobalDepth != 1 || stats.Units != 1 {
		t.Fatalf("reset should leave an empty index, got %+v", stats)
	}
	if _, err := index.Search(0); !errors.Is(err, hash.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after reset, got %v", err)
	}
	testutil.InsertEntry(t, index, 3, 4)
	index = testutil.CloseAndReopen(t, index)
	testutil.CheckFindEntry(t, index, 3, 4)
}

func testClearOnClose(t *testing.T) {
	index := setupHashWith(t, func(opts *config.Options) { opts.ClearOnClose = true })
	insertEvens(t, index)
	dir := index.GetOptions().Dir
	if err := index.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("backing directory should be gone, stat returned %v", err)
	}
}

func testClosed(t *testing.T) {
	index := setupHash(t)
	if err := index.Close(); err != nil {
		t.Fatal(err)
	}
	if err := index.Close(); !errors.Is(err, hash.ErrClosed) {
		t.Fatalf("second close: expected ErrClosed, got %v", err)
	}
	if _, err := index.Search(1); !errors.Is(err, hash.ErrClosed) {
		t.Fatalf("search: expected ErrClosed, got %v", err)
	}
	if err := index.Verify(); !errors.Is(err, hash.ErrClosed) {
		t.Fatalf("verify: expected ErrClosed, got %v", err)
	}
}

// The cursor visits every entry exactly once, even though buckets are shared by several indices.
func testCursor(t *testing.T) {
	index := setupHash(t)
	for k := uint64(0); k <= 32; k++ {
		testutil.InsertEntry(t, index, 5+32*k, k)
	}
	for key := uint64(0); key < 40; key += 2 {
		testutil.InsertEntry(t, index, key, key)
	}
	selected, err := index.Select()
	if err != nil {
		t.Fatal(err)
	}
	c, err := index.CursorAtStart()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	seen := make(map[uint64]bool)
	for {
		e, err := c.GetEntry()
		if err != nil {
			t.Fatal(err)
		}
		if seen[e.Key] {
			t.Fatalf("cursor visited key %d twice", e.Key)
		}
		seen[e.Key] = true
		if c.Next() {
			break
		}
	}
	if len(seen) != len(selected) || len(seen) != 33+20 {
		t.Fatalf("cursor saw %d keys, select returned %d", len(seen), len(selected))
	}
	for _, e := range selected {
		if !seen[e.Key] {
			t.Fatalf("cursor missed key %d", e.Key)
		}
	}
}

func testEmptyCursor(t *testing.T) {
	index := setupHash(t)
	if _, err := index.CursorAtStart(); err == nil {
		t.Fatal("expected an error for a cursor over an empty index")
	}
}

func runRepl(t *testing.T, index *hash.HashIndex, input string) string {
	t.Helper()
	var output bytes.Buffer
	hash.HashRepl(index).Run(uuid.New(), "", strings.NewReader(input), &output)
	return output.String()
}

func testRepl(t *testing.T) {
	index := setupHash(t)
	dump := filepath.Join(t.TempDir(), "repl.dump")
	output := runRepl(t, index, strings.Join([]string{
		"insert 1 2",
		"insert 1 3",
		"search 1",
		"update 1 5",
		"search 1",
		"insert 9 9",
		"remove 9",
		"search 9",
		"select",
		"verify",
		"export " + dump,
		"insert 18446744073709551615 1",
		"search 18446744073709551615",
		"insert x 1",
		"bogus",
	}, "\n"))
	for _, want := range []string{
		"ERROR: insert error: duplicate key",
		"found entry: (1, 2)",
		"found entry: (1, 5)",
		"ERROR: search error: key not found",
		"(1, 5)\n",
		"ok\n",
		"exported 1 entries",
		"found entry: (18446744073709551615, 1)",
		"ERROR: insert error:",
		"ERROR: command not found",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("repl output is missing %q:\n%s", want, output)
		}
	}
}

func testReplLog(t *testing.T) {
	index := setupHashWith(t, func(opts *config.Options) {
		opts.LogLevel = "info"
		opts.LogFile = filepath.Join(t.TempDir(), config.LogFileName)
	})
	output := runRepl(t, index, "log 5\n")
	if !strings.Contains(output, "opened index") {
		t.Fatalf("log output should contain the open message:\n%s", output)
	}
}
