package workload_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"pmhash/internal/testutil"
	"pmhash/pkg/workload"
)

func TestParse(t *testing.T) {
	input := "# comment\nINSERT 1\n\nREAD 1\nupdate 2\nDELETE 18446744073709551615\nI 5\n"
	ops, err := workload.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := []workload.Op{
		{Kind: workload.Insert, Key: 1},
		{Kind: workload.Read, Key: 1},
		{Kind: workload.Update, Key: 2},
		{Kind: workload.Delete, Key: 18446744073709551615},
		{Kind: workload.Insert, Key: 5},
	}
	if len(ops) != len(want) {
		t.Fatalf("parsed %d ops, expected %d", len(ops), len(want))
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("op %d: got %+v, expected %+v", i, ops[i], want[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"INSERT\n", "SCAN 1\n", "READ -1\n", "READ 1 2\n"} {
		if _, err := workload.Parse(strings.NewReader(input)); !errors.Is(err, workload.ErrBadLine) {
			t.Fatalf("%q: expected ErrBadLine, got %v", input, err)
		}
	}
}

func TestWriteAndParse(t *testing.T) {
	load, run := workload.Generate(200, 50, 1)
	var buf bytes.Buffer
	if err := workload.Write(&buf, append(load, run...)); err != nil {
		t.Fatal(err)
	}
	ops, err := workload.Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != len(load)+len(run) {
		t.Fatalf("parsed %d ops, wrote %d", len(ops), len(load)+len(run))
	}
}

// Replays a generated workload against a real index. Every run operation
// targets a loaded key, so nothing fails.
func TestReplay(t *testing.T) {
	index := testutil.OpenIndex(t, testutil.TestOptions(t))
	load, run := workload.Generate(1000, 25, 7)
	result := workload.Replay(index, load)
	if result.Count != 1000 || len(result.Failed) != 0 {
		t.Fatalf("load: %d ops with failures %v", result.Count, result.Failed)
	}
	result = workload.Replay(index, run)
	if result.Count != 1000 || len(result.Failed) != 0 {
		t.Fatalf("run: %d ops with failures %v", result.Count, result.Failed)
	}
	// Inserting the load again fails for every key.
	result = workload.Replay(index, load)
	if result.Failed[workload.Insert] != 1000 {
		t.Fatalf("expected 1000 duplicate inserts, got %d", result.Failed[workload.Insert])
	}
	if err := index.Verify(); err != nil {
		t.Fatal(err)
	}
}
