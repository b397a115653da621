package hash

import (
	"fmt"
	"strconv"
	"strings"

	"pmhash/pkg/entry"
	"pmhash/pkg/log"
	"pmhash/pkg/repl"
)

// HashRepl creates a REPL over the given index.
func HashRepl(index *HashIndex) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleInsert(index, payload)
	}, "Insert an element. usage: insert <key> <value>")

	r.AddCommand("search", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleSearch(index, payload)
	}, "Find an element. usage: search <key>")

	r.AddCommand("update", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleUpdate(index, payload)
	}, "Update an element. usage: update <key> <value>")

	r.AddCommand("remove", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleRemove(index, payload)
	}, "Remove an element. usage: remove <key>")

	r.AddCommand("select", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleSelect(index, payload)
	}, "Print every element. usage: select")

	r.AddCommand("pretty", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandlePretty(index, payload)
	}, "Print out the internal data representation. usage: pretty [catalog index]")

	r.AddCommand("verify", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		if err := index.Verify(); err != nil {
			return "", fmt.Errorf("verify error: %v", err)
		}
		return "ok", nil
	}, "Check the structure of the index. usage: verify")

	r.AddCommand("stats", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		stats, err := index.Stats()
		if err != nil {
			return "", fmt.Errorf("stats error: %v", err)
		}
		w := new(strings.Builder)
		stats.Print(w)
		return w.String(), nil
	}, "Print the shape of the index and operation counts. usage: stats")

	r.AddCommand("persist", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		if err := index.Persist(); err != nil {
			return "", fmt.Errorf("persist error: %v", err)
		}
		return "", nil
	}, "Flush the index to its backing files. usage: persist")

	r.AddCommand("backup", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		dst, err := oneArgument(payload, "usage: backup <directory>")
		if err != nil {
			return "", err
		}
		if err := index.Backup(dst); err != nil {
			return "", fmt.Errorf("backup error: %v", err)
		}
		return fmt.Sprintf("backed up to %s", dst), nil
	}, "Copy the backing directory. usage: backup <directory>")

	r.AddCommand("export", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		path, err := oneArgument(payload, "usage: export <file>")
		if err != nil {
			return "", err
		}
		n, err := index.Export(path)
		if err != nil {
			return "", fmt.Errorf("export error: %v", err)
		}
		return fmt.Sprintf("exported %d entries", n), nil
	}, "Write every element to a dump file. usage: export <file>")

	r.AddCommand("import", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		path, err := oneArgument(payload, "usage: import <file>")
		if err != nil {
			return "", err
		}
		n, err := index.Import(path)
		if err != nil {
			return "", fmt.Errorf("import error: %v", err)
		}
		return fmt.Sprintf("imported %d entries", n), nil
	}, "Load every element of a dump file. usage: import <file>")

	r.AddCommand("log", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleLog(index, payload)
	}, "Print the last lines of the log file. usage: log [lines]")

	r.AddCommand("reset", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		if err := index.Reset(); err != nil {
			return "", fmt.Errorf("reset error: %v", err)
		}
		return "index erased", nil
	}, "Erase every element and backing file. usage: reset")

	return r
}

// parseUint parses a key or value argument.
func parseUint(field string) (uint64, error) {
	return strconv.ParseUint(field, 10, 64)
}

func oneArgument(payload string, usage string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 2 {
		return "", fmt.Errorf("%s", usage)
	}
	return fields[1], nil
}

// Handle search.
func HandleSearch(index *HashIndex, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: search <key>
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: search <key>")
	}
	key, err := parseUint(fields[1])
	if err != nil {
		return "", fmt.Errorf("search error: %v", err)
	}
	value, err := index.Search(key)
	if err != nil {
		return "", fmt.Errorf("search error: %v", err)
	}
	return fmt.Sprintf("found entry: (%d, %d)\n", key, value), nil
}

// Handle insert.
func HandleInsert(index *HashIndex, payload string) (err error) {
	fields := strings.Fields(payload)
	// Usage: insert <key> <value>
	if len(fields) != 3 {
		return fmt.Errorf("usage: insert <key> <value>")
	}
	key, err := parseUint(fields[1])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	value, err := parseUint(fields[2])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err := index.Insert(key, value); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return nil
}

// Handle update.
func HandleUpdate(index *HashIndex, payload string) (err error) {
	fields := strings.Fields(payload)
	// Usage: update <key> <value>
	if len(fields) != 3 {
		return fmt.Errorf("usage: update <key> <value>")
	}
	key, err := parseUint(fields[1])
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	value, err := parseUint(fields[2])
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	if err := index.Update(key, value); err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	return nil
}

// Handle remove.
func HandleRemove(index *HashIndex, payload string) (err error) {
	fields := strings.Fields(payload)
	// Usage: remove <key>
	if len(fields) != 2 {
		return fmt.Errorf("usage: remove <key>")
	}
	key, err := parseUint(fields[1])
	if err != nil {
		return fmt.Errorf("remove error: %v", err)
	}
	if err := index.Remove(key); err != nil {
		return fmt.Errorf("remove error: %v", err)
	}
	return nil
}

// Handle select.
func HandleSelect(index *HashIndex, payload string) (output string, err error) {
	if len(strings.Fields(payload)) != 1 {
		return "", fmt.Errorf("usage: select")
	}
	results, err := index.Select()
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	w := new(strings.Builder)
	printResults(results, w)
	return w.String(), nil
}

// Handle pretty printing.
func HandlePretty(index *HashIndex, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: pretty [catalog index]
	if len(fields) > 2 {
		return "", fmt.Errorf("usage: pretty [catalog index]")
	}
	if err := index.check(); err != nil {
		return "", fmt.Errorf("pretty error: %v", err)
	}
	w := new(strings.Builder)
	if len(fields) == 2 {
		catalogIndex, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("pretty error: %v", err)
		}
		index.PrintBucket(catalogIndex, w)
		return w.String(), nil
	}
	index.Print(w)
	return w.String(), nil
}

// Handle log.
func HandleLog(index *HashIndex, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: log [lines]
	if len(fields) > 2 {
		return "", fmt.Errorf("usage: log [lines]")
	}
	n := 20
	if len(fields) == 2 {
		if n, err = strconv.Atoi(fields[1]); err != nil || n <= 0 {
			return "", fmt.Errorf("log error: bad line count %q", fields[1])
		}
	}
	path := index.GetOptions().LogFile
	if path == "" {
		return "", fmt.Errorf("log error: no log file configured")
	}
	lines, err := log.Tail(path, n)
	if err != nil {
		return "", fmt.Errorf("log error: %v", err)
	}
	return strings.Join(lines, "\n"), nil
}

// printResults writes entries, one per line.
func printResults(entries []entry.Entry, w *strings.Builder) {
	for _, e := range entries {
		fmt.Fprintf(w, "(%d, %d)\n", e.Key, e.Value)
	}
}
