package learn

import (
	"fmt"
	"math/rand"

	"github.com/zerosum-labs/learner/buffer"
	"github.com/zerosum-labs/learner/target"
)

// Compose draws exactly size targets for one training batch. In the
// exploitation-only phase the whole batch comes from the exploitation
// buffer; in the mixed phase each buffer supplies half, concatenated
// exploitation-first. If either required buffer cannot supply its share,
// nothing is drawn at all (no partial batches) and ErrNotReady is
// returned.
//
// Reuse accounting is applied after the batch is formed: drawn records go
// back to their buffer only while they have uses remaining.
func Compose(exploitation, reanalyze *buffer.Buffer, size int, mixed bool, rng *rand.Rand) ([]target.Target, error) {
	if mixed {
		half := size / 2
		if exploitation.Len() < half || reanalyze.Len() < half {
			return nil, fmt.Errorf("%w: exploitation %d, reanalyze %d, need %d each",
				ErrNotReady, exploitation.Len(), reanalyze.Len(), half)
		}

		fromExploitation, err := exploitation.Draw(half, rng)
		if err != nil {
			return nil, err
		}
		fromReanalyze, err := reanalyze.Draw(half, rng)
		if err != nil {
			// Undo the first draw so a failed composition leaves both
			// buffers untouched.
			exploitation.Reinsert(withExtraUse(fromExploitation))
			return nil, err
		}

		batch := make([]target.Target, 0, size)
		for _, rec := range fromExploitation {
			batch = append(batch, rec.Target)
		}
		for _, rec := range fromReanalyze {
			batch = append(batch, rec.Target)
		}
		exploitation.Reinsert(fromExploitation)
		reanalyze.Reinsert(fromReanalyze)
		return batch, nil
	}

	if exploitation.Len() < size {
		return nil, fmt.Errorf("%w: exploitation %d, need %d", ErrNotReady, exploitation.Len(), size)
	}
	drawn, err := exploitation.Draw(size, rng)
	if err != nil {
		return nil, err
	}
	batch := make([]target.Target, 0, size)
	for _, rec := range drawn {
		batch = append(batch, rec.Target)
	}
	exploitation.Reinsert(drawn)
	return batch, nil
}

// withExtraUse compensates the decrement Reinsert applies, for records that
// were never actually batched.
func withExtraUse(records []buffer.Record) []buffer.Record {
	for i := range records {
		records[i].UsesAvailable++
	}
	return records
}
