// Package model defines the opaque model capability the training loop
// drives. The loop never sees model internals: it feeds batches of targets
// to TrainStep and moves snapshots in and out through the checkpoint
// manager.
package model

import "github.com/zerosum-labs/learner/target"

// Prediction is the model output for one state: a distribution over the
// full action vocabulary, a value estimate, and an uncertainty estimate.
type Prediction struct {
	Policy []float64
	Value  float64
	UBE    float64
}

// Model is a batched inference and training capability.
type Model interface {
	// Infer evaluates the given state descriptors in one batch.
	Infer(states []string) ([]Prediction, error)

	// TrainStep performs one opaque training update on the batch and
	// returns the scalar loss. The batch is consumed as-is; reuse and
	// eviction accounting are the caller's concern.
	TrainStep(batch []target.Target) (loss float64, err error)

	// ResetOptimizer clears accumulated optimizer state. Called on the
	// numbered-checkpoint cadence; implementations without accumulators
	// treat it as a no-op.
	ResetOptimizer()

	// Snapshot serializes the full parameter state.
	Snapshot() ([]byte, error)

	// Restore replaces the parameter state from a Snapshot payload.
	Restore(snapshot []byte) error
}
