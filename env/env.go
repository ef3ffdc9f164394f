// Package env defines the environment capability consumed by the training
// loop: producing opening states, enumerating legal actions, applying
// actions, and detecting terminal outcomes. The loop never depends on a
// concrete game; bootstrap rollouts and model feature extraction go through
// these interfaces only.
package env

import "math/rand"

// State is one position of a two-player zero-sum game. Implementations are
// immutable: Apply returns a new State and leaves the receiver unchanged.
type State interface {
	// Encode returns the canonical text descriptor for this state.
	// Game.Decode is its inverse. Descriptors must not contain '|' or
	// newlines, since they are embedded in line-oriented target records.
	Encode() string

	// Features returns the numeric representation of the state from the
	// perspective of the player to move. Length is Game.FeatureLen.
	Features() []float64

	// LegalActions enumerates the actions playable in this state, in a
	// stable order. Empty only for terminal states.
	LegalActions() []string

	// Apply plays the named action and returns the resulting state.
	// Illegal actions return an error.
	Apply(action string) (State, error)

	// Terminal reports whether the game is over and, if so, the outcome
	// from the perspective of the player to move: -1 loss, 0 draw, +1 win.
	Terminal() (outcome float64, done bool)
}

// Game is the rules engine for one environment.
type Game interface {
	// Initial produces an opening state. The rng allows games with
	// randomized openings; deterministic games may ignore it.
	Initial(rng *rand.Rand) State

	// Decode parses a descriptor produced by State.Encode.
	Decode(desc string) (State, error)

	// Actions returns the full action vocabulary in a fixed order. Every
	// action that can ever appear in LegalActions is present.
	Actions() []string

	// FeatureLen returns the length of State.Features vectors.
	FeatureLen() int
}
