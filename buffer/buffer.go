// Package buffer implements the bounded replay buffer feeding the training
// loop. Records carry reuse and recency metadata; the buffer owns eviction
// (priority truncation) and destructive shuffle-based sampling.
package buffer

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/zerosum-labs/learner/target"
)

// ErrShortBuffer is returned by Draw when the buffer holds fewer records
// than requested. No partial draws are performed.
var ErrShortBuffer = errors.New("not enough buffered records")

// Record wraps a target with its reuse budget and the training-step count
// at ingestion time. ModelSteps is set once and never updated; it only
// feeds eviction priority.
type Record struct {
	Target        target.Target
	UsesAvailable int
	ModelSteps    int
}

// Buffer is an unordered, capacity-bounded collection of records for one
// stream. It is not safe for concurrent use; the training loop is
// single-threaded.
type Buffer struct {
	records []Record
}

// New creates an empty Buffer with the given capacity hint.
func New(capacityHint int) *Buffer {
	return &Buffer{records: make([]Record, 0, capacityHint)}
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int { return len(b.records) }

// Add inserts freshly read targets, seeding each with the per-stream uses
// budget and the current training-step count.
func (b *Buffer) Add(targets []target.Target, uses, modelSteps int) {
	for _, t := range targets {
		b.records = append(b.records, Record{
			Target:        t,
			UsesAvailable: uses,
			ModelSteps:    modelSteps,
		})
	}
}

// Truncate enforces the capacity limit. When the buffer is over max,
// records are ranked by ModelSteps descending then UsesAvailable
// descending, the top max are kept, and the rest are discarded. Freshness
// wins over volume; among equally fresh records the ones with more
// remaining training value survive. Returns the number evicted.
func (b *Buffer) Truncate(max int) int {
	if max < 0 || len(b.records) <= max {
		return 0
	}
	sort.Slice(b.records, func(i, j int) bool {
		if b.records[i].ModelSteps != b.records[j].ModelSteps {
			return b.records[i].ModelSteps > b.records[j].ModelSteps
		}
		return b.records[i].UsesAvailable > b.records[j].UsesAvailable
	})
	evicted := len(b.records) - max
	b.records = b.records[:max]
	return evicted
}

// Draw removes exactly n records and returns them. The whole buffer is
// re-shuffled first so draws are unbiased by insertion order; within one
// draw no record appears twice. The caller applies reuse accounting via
// Reinsert once the batch is formed.
func (b *Buffer) Draw(n int, rng *rand.Rand) ([]Record, error) {
	if n > len(b.records) {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrShortBuffer, len(b.records), n)
	}
	rng.Shuffle(len(b.records), func(i, j int) {
		b.records[i], b.records[j] = b.records[j], b.records[i]
	})

	drawn := make([]Record, n)
	copy(drawn, b.records[len(b.records)-n:])
	b.records = b.records[:len(b.records)-n]
	return drawn, nil
}

// Reinsert returns drawn records to the buffer after decrementing their
// reuse budget. Records with no uses left are discarded, so a record
// seeded with U uses participates in exactly U batches absent truncation.
func (b *Buffer) Reinsert(drawn []Record) {
	for _, rec := range drawn {
		rec.UsesAvailable--
		if rec.UsesAvailable > 0 {
			b.records = append(b.records, rec)
		}
	}
}
