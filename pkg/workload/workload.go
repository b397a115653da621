// Package workload reads YCSB-style operation traces and replays them against an index.
//
// Each line holds an operation name and a key, for example "INSERT 42".
// Only the first letter of the operation is significant. Values are taken
// to be equal to their keys.
package workload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrBadLine = errors.New("bad workload line")

// Kind is the type of one workload operation.
type Kind byte

const (
	Insert Kind = 'I'
	Read   Kind = 'R'
	Update Kind = 'U'
	Delete Kind = 'D'
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case Read:
		return "READ"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	}
	return fmt.Sprintf("Kind(%c)", byte(k))
}

// Op is one operation of a workload.
type Op struct {
	Kind Kind
	Key  uint64
}

// Parse reads a workload. Blank lines and lines starting with '#' are skipped.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	scanner := bufio.NewScanner(r)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w %d: %q", ErrBadLine, lineno, line)
		}
		kind := Kind(strings.ToUpper(fields[0])[0])
		switch kind {
		case Insert, Read, Update, Delete:
		default:
			return nil, fmt.Errorf("%w %d: unknown operation %q", ErrBadLine, lineno, fields[0])
		}
		key, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrBadLine, lineno, err)
		}
		ops = append(ops, Op{Kind: kind, Key: key})
	}
	return ops, scanner.Err()
}

// ParseFile reads the workload at path.
func ParseFile(path string) ([]Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write encodes ops in the format Parse reads.
func Write(w io.Writer, ops []Op) error {
	bw := bufio.NewWriter(w)
	for _, op := range ops {
		if _, err := fmt.Fprintf(bw, "%s %d\n", op.Kind, op.Key); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Generate builds a load phase inserting n distinct keys and a run phase of
// n operations over those keys, readPercent of which are reads and the rest updates.
func Generate(n int, readPercent int, seed int64) (load []Op, run []Op) {
	rng := rand.New(rand.NewSource(seed))
	keys := make([]uint64, 0, n)
	seen := make(map[uint64]bool, n)
	for len(keys) < n {
		key := rng.Uint64()
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
		load = append(load, Op{Kind: Insert, Key: key})
	}
	for i := 0; i < n && len(keys) > 0; i++ {
		kind := Update
		if rng.Intn(100) < readPercent {
			kind = Read
		}
		run = append(run, Op{Kind: kind, Key: keys[rng.Intn(len(keys))]})
	}
	return load, run
}

// Index is the set of operations a workload drives.
type Index interface {
	Insert(key, value uint64) error
	Search(key uint64) (uint64, error)
	Update(key, value uint64) error
	Remove(key uint64) error
}

// Result summarizes one replay.
type Result struct {
	Count   int
	Failed  map[Kind]int // Operations that returned an error, by kind
	Elapsed time.Duration
}

// OPS returns the throughput of the replay in operations per second.
func (r Result) OPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Count) / r.Elapsed.Seconds()
}

// Replay applies ops to index in order. Failing operations are counted, not fatal.
func Replay(index Index, ops []Op) Result {
	result := Result{Failed: make(map[Kind]int)}
	start := time.Now()
	for _, op := range ops {
		var err error
		switch op.Kind {
		case Insert:
			err = index.Insert(op.Key, op.Key)
		case Read:
			_, err = index.Search(op.Key)
		case Update:
			err = index.Update(op.Key, op.Key)
		case Delete:
			err = index.Remove(op.Key)
		}
		if err != nil {
			result.Failed[op.Kind]++
		}
		result.Count++
	}
	result.Elapsed = time.Since(start)
	return result
}
