package learn

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zerosum-labs/learner/env"
	"github.com/zerosum-labs/learner/observability"
	"github.com/zerosum-labs/learner/target"
)

// bootstrapUBE is the placeholder uncertainty assigned to synthetic
// targets; random rollouts carry no uncertainty signal of their own.
const bootstrapUBE = 1

// bootstrap synthesizes an initial target pool from uniform-random
// self-play and trains on it. It runs only when no checkpoint exists, so
// the model sees plausible data before the first external targets arrive.
func (s *Scheduler) bootstrap(ctx context.Context) error {
	s.emit(ctx, EventBootstrapStart, observability.LevelInfo, "learn.bootstrap", map[string]any{
		"pool_size": s.cfg.BootstrapTargets,
		"steps":     s.cfg.BootstrapSteps,
	})

	pool := make([]target.Target, 0, s.cfg.BootstrapTargets)
	for len(pool) < s.cfg.BootstrapTargets {
		if err := ctx.Err(); err != nil {
			return err
		}
		episode, err := s.rolloutEpisode()
		if err != nil {
			return fmt.Errorf("bootstrap rollout: %w", err)
		}
		pool = append(pool, episode...)
	}

	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if err := s.writeBootstrapPool(pool); err != nil {
		return err
	}

	for step := 0; step < s.cfg.BootstrapSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := pool[step*s.cfg.BatchSize : (step+1)*s.cfg.BatchSize]
		if _, err := s.model.TrainStep(batch); err != nil {
			return fmt.Errorf("bootstrap step %d: %w", step, err)
		}
	}

	s.emit(ctx, EventBootstrapComplete, observability.LevelInfo, "learn.bootstrap", map[string]any{
		"pool_size": len(pool),
		"steps":     s.cfg.BootstrapSteps,
	})
	return nil
}

// rolloutEpisode plays one full episode with uniform-random action
// selection, then walks the visited states in reverse building targets: a
// uniform policy over the legal actions, and a value equal to the terminal
// outcome negated once per ply back from the end. In a two-player zero-sum
// game each backward step flips the perspective.
func (s *Scheduler) rolloutEpisode() ([]target.Target, error) {
	var states []env.State
	state := s.game.Initial(s.rng)
	for {
		if _, done := state.Terminal(); done {
			break
		}
		states = append(states, state)
		actions := state.LegalActions()
		next, err := state.Apply(actions[s.rng.Intn(len(actions))])
		if err != nil {
			return nil, err
		}
		state = next
	}

	value, _ := state.Terminal()
	targets := make([]target.Target, 0, len(states))
	for i := len(states) - 1; i >= 0; i-- {
		value = -value
		actions := states[i].LegalActions()
		p := 1 / float64(len(actions))
		policy := make([]target.ActionProb, 0, len(actions))
		for _, a := range actions {
			policy = append(policy, target.ActionProb{Action: a, Prob: p})
		}
		targets = append(targets, target.Target{
			State:  states[i].Encode(),
			Policy: policy,
			Value:  value,
			UBE:    bootstrapUBE,
		})
	}
	return targets, nil
}

// writeBootstrapPool persists the full synthetic pool for offline
// inspection, once per bootstrap run. Failure is fatal to the caller.
func (s *Scheduler) writeBootstrapPool(pool []target.Target) error {
	path := filepath.Join(s.cfg.Directory, BootstrapFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write bootstrap pool: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, t := range pool {
		if _, err := w.WriteString(t.String()); err != nil {
			f.Close()
			return fmt.Errorf("write bootstrap pool: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return fmt.Errorf("write bootstrap pool: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write bootstrap pool: %w", err)
	}
	return f.Close()
}
