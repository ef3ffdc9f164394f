package learn_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/zerosum-labs/learner/buffer"
	"github.com/zerosum-labs/learner/learn"
	"github.com/zerosum-labs/learner/target"
)

func fill(b *buffer.Buffer, uses int, states ...string) {
	for _, s := range states {
		b.Add([]target.Target{{
			State:  s,
			Policy: []target.ActionProb{{Action: "a1", Prob: 1}},
			UBE:    1,
		}}, uses, 0)
	}
}

func TestCompose_ExploitationOnly(t *testing.T) {
	exploitation := buffer.New(8)
	reanalyze := buffer.New(8)
	fill(exploitation, 1, "e1", "e2", "e3", "e4")

	rng := rand.New(rand.NewSource(1))
	batch, err := learn.Compose(exploitation, reanalyze, 4, false, rng)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if len(batch) != 4 {
		t.Errorf("got batch of %d, want 4", len(batch))
	}
	// uses=1: every drawn record is spent.
	if exploitation.Len() != 0 {
		t.Errorf("got exploitation len %d after batch, want 0", exploitation.Len())
	}
}

func TestCompose_ExploitationOnly_IgnoresReanalyze(t *testing.T) {
	exploitation := buffer.New(8)
	reanalyze := buffer.New(8)
	fill(exploitation, 1, "e1", "e2")
	fill(reanalyze, 1, "r1", "r2", "r3", "r4")

	rng := rand.New(rand.NewSource(1))
	batch, err := learn.Compose(exploitation, reanalyze, 2, false, rng)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	for _, tgt := range batch {
		if tgt.State == "r1" || tgt.State == "r2" || tgt.State == "r3" || tgt.State == "r4" {
			t.Errorf("exploitation-only batch contains reanalyze record %q", tgt.State)
		}
	}
	if reanalyze.Len() != 4 {
		t.Errorf("reanalyze buffer was touched: len %d, want 4", reanalyze.Len())
	}
}

func TestCompose_ExploitationOnly_NotReady(t *testing.T) {
	exploitation := buffer.New(8)
	reanalyze := buffer.New(8)
	fill(exploitation, 1, "e1", "e2", "e3")
	fill(reanalyze, 1, "r1", "r2", "r3", "r4")

	rng := rand.New(rand.NewSource(1))
	if _, err := learn.Compose(exploitation, reanalyze, 4, false, rng); !errors.Is(err, learn.ErrNotReady) {
		t.Fatalf("got error %v, want ErrNotReady", err)
	}
	// No partial draws happened.
	if exploitation.Len() != 3 {
		t.Errorf("failed composition changed exploitation: len %d, want 3", exploitation.Len())
	}
}

func TestCompose_Mixed_HalfFromEach(t *testing.T) {
	exploitation := buffer.New(8)
	reanalyze := buffer.New(8)
	fill(exploitation, 1, "e1", "e2", "e3")
	fill(reanalyze, 1, "r1", "r2", "r3")

	rng := rand.New(rand.NewSource(1))
	batch, err := learn.Compose(exploitation, reanalyze, 4, true, rng)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if len(batch) != 4 {
		t.Fatalf("got batch of %d, want 4", len(batch))
	}

	var fromExploitation, fromReanalyze int
	for _, tgt := range batch {
		switch tgt.State[0] {
		case 'e':
			fromExploitation++
		case 'r':
			fromReanalyze++
		}
	}
	if fromExploitation != 2 || fromReanalyze != 2 {
		t.Errorf("got %d exploitation and %d reanalyze records, want 2 and 2",
			fromExploitation, fromReanalyze)
	}
	if exploitation.Len() != 1 || reanalyze.Len() != 1 {
		t.Errorf("got lens %d and %d after batch, want 1 and 1",
			exploitation.Len(), reanalyze.Len())
	}
}

func TestCompose_Mixed_NotReady(t *testing.T) {
	tests := []struct {
		name         string
		exploitation []string
		reanalyze    []string
	}{
		{name: "reanalyze short", exploitation: []string{"e1", "e2"}, reanalyze: []string{"r1"}},
		{name: "exploitation short", exploitation: []string{"e1"}, reanalyze: []string{"r1", "r2"}},
		{name: "both short", exploitation: []string{"e1"}, reanalyze: []string{"r1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exploitation := buffer.New(8)
			reanalyze := buffer.New(8)
			fill(exploitation, 1, tt.exploitation...)
			fill(reanalyze, 1, tt.reanalyze...)

			rng := rand.New(rand.NewSource(1))
			if _, err := learn.Compose(exploitation, reanalyze, 4, true, rng); !errors.Is(err, learn.ErrNotReady) {
				t.Fatalf("got error %v, want ErrNotReady", err)
			}
			if exploitation.Len() != len(tt.exploitation) || reanalyze.Len() != len(tt.reanalyze) {
				t.Errorf("failed composition changed buffers: %d and %d, want %d and %d",
					exploitation.Len(), reanalyze.Len(), len(tt.exploitation), len(tt.reanalyze))
			}
		})
	}
}

func TestCompose_AppliesReuseAccounting(t *testing.T) {
	exploitation := buffer.New(8)
	reanalyze := buffer.New(8)
	fill(exploitation, 2, "e1", "e2")
	fill(reanalyze, 1, "r1", "r2")

	rng := rand.New(rand.NewSource(1))
	if _, err := learn.Compose(exploitation, reanalyze, 4, true, rng); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	// Exploitation records had 2 uses: both return with 1 left.
	// Reanalyze records had 1 use: both are spent.
	if exploitation.Len() != 2 {
		t.Errorf("got exploitation len %d, want 2", exploitation.Len())
	}
	if reanalyze.Len() != 0 {
		t.Errorf("got reanalyze len %d, want 0", reanalyze.Len())
	}
}
