// Package stream reads target records from the append-only line files that
// external self-play and reanalyze workers write to. A Reader never writes
// and assumes no locking: the only cross-process coordination is the line
// count the caller carries between polls.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zerosum-labs/learner/target"
)

// ErrUnavailable wraps failures to open a stream file. The condition is
// recoverable: the caller keeps its cursor and retries on the next poll.
var ErrUnavailable = errors.New("stream unavailable")

// Reader tails one stream file.
type Reader struct {
	path string
}

// NewReader creates a Reader for the given stream file path. The file does
// not need to exist yet; Read reports ErrUnavailable until a worker
// creates it.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the stream file path.
func (r *Reader) Path() string { return r.path }

// Read opens the stream file, skips the first consumed lines, and parses
// the rest. It returns the parsed records and the updated consumed count.
// Lines that fail to parse are dropped and still counted as consumed,
// whatever their length; a worker crashing mid-write or emitting garbage
// costs at most those records, never the stream. If the file cannot be
// opened the cursor is returned unchanged with ErrUnavailable.
func (r *Reader) Read(consumed int) ([]target.Target, int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, consumed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()

	// ReadString has no line-length cap, unlike bufio.Scanner: a single
	// oversized line must not wedge the stream forever.
	reader := bufio.NewReader(f)
	var records []target.Target
	line := 0
	for {
		text, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, consumed, fmt.Errorf("%w: %v", ErrUnavailable, readErr)
		}
		if len(text) > 0 {
			line++
			if line > consumed {
				text = strings.TrimSuffix(text, "\n")
				text = strings.TrimSuffix(text, "\r")
				if record, err := target.Parse(text); err == nil {
					records = append(records, record)
				}
			}
		}
		if readErr == io.EOF {
			return records, line, nil
		}
	}
}
