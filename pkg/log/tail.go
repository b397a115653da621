package log

import (
	"io"
	"os"

	"github.com/icza/backscanner"
)

// Tail returns the last n lines of the file at path, oldest first.
// The file is scanned backwards so large log files are not read in full.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	fstats, err := file.Stat()
	if err != nil {
		return nil, err
	}

	scanner := backscanner.New(file, int(fstats.Size()))
	lines := make([]string, 0, n)
	skippedTrailing := false
	for len(lines) < n {
		line, _, err := scanner.Line()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// A file ending in a newline yields one empty line first.
		if !skippedTrailing {
			skippedTrailing = true
			if line == "" {
				continue
			}
		}
		lines = append(lines, line)
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}
