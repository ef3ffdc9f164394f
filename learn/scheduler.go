// Package learn implements the training scheduler: the top-level control
// loop that ingests target streams into replay buffers, composes batches by
// training phase, drives opaque model training steps, and checkpoints
// progress so a restarted process resumes where it left off.
package learn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zerosum-labs/learner/buffer"
	"github.com/zerosum-labs/learner/checkpoint"
	"github.com/zerosum-labs/learner/env"
	"github.com/zerosum-labs/learner/model"
	"github.com/zerosum-labs/learner/observability"
	"github.com/zerosum-labs/learner/stream"
)

// Option configures a Scheduler after config-driven initialization.
type Option func(*Scheduler)

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithRand overrides the sampling source for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// WithSleep overrides the idle wait for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// Scheduler owns the training loop state: the two replay buffers, their
// stream read cursors, and the model step counter. All of it lives here as
// explicit fields so the loop is testable with injected fakes; none of it
// is global.
type Scheduler struct {
	cfg   Config
	game  env.Game
	model model.Model

	checkpoints        *checkpoint.Manager
	exploitationReader *stream.Reader
	reanalyzeReader    *stream.Reader
	exploitation       *buffer.Buffer
	reanalyze          *buffer.Buffer

	// Stream read cursors. In-memory only: a restart re-reads from line
	// zero and re-ingests already-seen records, bounded by truncation.
	exploitationRead int
	reanalyzeRead    int

	steps    int
	runID    string
	observer observability.Observer
	rng      *rand.Rand
	sleep    func(time.Duration)
}

// New creates a Scheduler from configuration, a rules engine, and a model.
// Configuration problems and a bad directory fail here, before any
// training.
func New(cfg *Config, game env.Game, mdl model.Model, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	manager, err := checkpoint.NewManager(cfg.Directory)
	if err != nil {
		return nil, err
	}

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:                *cfg,
		game:               game,
		model:              mdl,
		checkpoints:        manager,
		exploitationReader: stream.NewReader(filepath.Join(cfg.Directory, ExploitationFile)),
		reanalyzeReader:    stream.NewReader(filepath.Join(cfg.Directory, ReanalyzeFile)),
		exploitation:       buffer.New(cfg.MaxExploitationLen),
		reanalyze:          buffer.New(cfg.MaxReanalyzeLen),
		runID:              uuid.NewString(),
		observer:           observer,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:              time.Sleep,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Steps returns the completed training-step count.
func (s *Scheduler) Steps() int { return s.steps }

// RunID returns the unique identifier of this process run.
func (s *Scheduler) RunID() string { return s.runID }

// Run resumes from the most advanced checkpoint (bootstrapping from
// synthetic self-play if none exists) and then drives the training loop
// until the context is cancelled. Checkpoint I/O failures and model
// failures are fatal and returned; stream problems and insufficient data
// are not.
func (s *Scheduler) Run(ctx context.Context) error {
	s.emit(ctx, EventRunStart, observability.LevelInfo, "learn.Run", map[string]any{
		"directory":  s.cfg.Directory,
		"batch_size": s.cfg.BatchSize,
	})

	if err := s.resume(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.tick(ctx); err != nil {
			return err
		}
	}
}

// resume locates the most advanced checkpoint and restores from it; with
// none the fresh model's state is saved as the step-0 checkpoint. Either
// way, a model still at step zero (never trained, or a previous run died
// before finishing bootstrap) goes through the bootstrap phase before the
// main loop, and the post-bootstrap state is saved as the first real
// checkpoint.
func (s *Scheduler) resume(ctx context.Context) error {
	step, path, err := s.checkpoints.Latest()
	switch {
	case err == nil:
		snapshot, err := s.checkpoints.Load(path)
		if err != nil {
			return err
		}
		if err := s.model.Restore(snapshot); err != nil {
			return fmt.Errorf("restore checkpoint %s: %w", path, err)
		}
		s.steps = step
		s.emit(ctx, EventResume, observability.LevelInfo, "learn.resume", map[string]any{
			"steps":      step,
			"checkpoint": path,
		})
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		if err := s.saveNumbered(0); err != nil {
			return err
		}
		s.steps = 0
	default:
		return err
	}

	if s.steps == 0 && s.cfg.BootstrapSteps > 0 {
		if err := s.bootstrap(ctx); err != nil {
			return err
		}
		s.steps = s.cfg.BootstrapSteps
		if err := s.saveNumbered(s.steps); err != nil {
			return err
		}
	}
	return nil
}

// tick runs one loop iteration: ingest, truncate, and either train one
// step (with cadenced saves) or idle for the wait interval.
func (s *Scheduler) tick(ctx context.Context) error {
	mixed := s.steps >= s.cfg.StepsBeforeReanalyze

	s.ingest(ctx, s.exploitationReader, s.exploitation, &s.exploitationRead,
		s.cfg.ExploitationUses, s.cfg.MaxExploitationLen, "exploitation")
	// Below the reanalyze threshold the reanalyze stream is not even read;
	// the buffer stays empty and plays no part in readiness.
	if mixed {
		s.ingest(ctx, s.reanalyzeReader, s.reanalyze, &s.reanalyzeRead,
			s.cfg.ReanalyzeUses, s.cfg.MaxReanalyzeLen, "reanalyze")
	}

	ready := s.exploitation.Len() >= s.cfg.MinExploitationLen &&
		(!mixed || s.reanalyze.Len() >= s.cfg.BatchSize/2)
	if !ready {
		s.wait(ctx)
		return nil
	}

	batch, err := Compose(s.exploitation, s.reanalyze, s.cfg.BatchSize, mixed, s.rng)
	if errors.Is(err, ErrNotReady) {
		s.wait(ctx)
		return nil
	}
	if err != nil {
		return err
	}

	loss, err := s.model.TrainStep(batch)
	if err != nil {
		return fmt.Errorf("training step at %d: %w", s.steps, err)
	}
	s.steps++

	s.emit(ctx, EventStep, observability.LevelVerbose, "learn.tick", map[string]any{
		"steps": s.steps,
		"loss":  loss,
		"mixed": mixed,
	})

	if s.steps%s.cfg.StepsPerSave == 0 {
		snapshot, err := s.model.Snapshot()
		if err != nil {
			return fmt.Errorf("snapshot at %d: %w", s.steps, err)
		}
		if err := s.checkpoints.SaveLatest(snapshot); err != nil {
			return err
		}
		s.emit(ctx, EventSaveLatest, observability.LevelInfo, "learn.tick", map[string]any{
			"steps":            s.steps,
			"exploitation_len": s.exploitation.Len(),
			"reanalyze_len":    s.reanalyze.Len(),
		})
	}

	if s.steps%s.cfg.StepsPerCheckpoint == 0 {
		if err := s.saveNumbered(s.steps); err != nil {
			return err
		}
		s.model.ResetOptimizer()
		s.emit(ctx, EventCheckpoint, observability.LevelInfo, "learn.tick", map[string]any{
			"steps": s.steps,
		})
	}

	return nil
}

// ingest polls one stream, appends new records to its buffer, and enforces
// the buffer's capacity. Stream failures are recoverable: the cursor stays
// put and the next tick retries.
func (s *Scheduler) ingest(ctx context.Context, reader *stream.Reader, buf *buffer.Buffer,
	cursor *int, uses, max int, name string) {
	records, read, err := reader.Read(*cursor)
	if err != nil {
		s.emit(ctx, EventStreamError, observability.LevelError, "learn.ingest", map[string]any{
			"stream": name,
			"error":  err.Error(),
		})
		return
	}
	*cursor = read
	buf.Add(records, uses, s.steps)

	if evicted := buf.Truncate(max); evicted > 0 {
		s.emit(ctx, EventTruncate, observability.LevelInfo, "learn.ingest", map[string]any{
			"stream":  name,
			"evicted": evicted,
			"len":     buf.Len(),
		})
	}
}

func (s *Scheduler) wait(ctx context.Context) {
	s.emit(ctx, EventWait, observability.LevelInfo, "learn.tick", map[string]any{
		"steps":            s.steps,
		"exploitation_len": s.exploitation.Len(),
		"reanalyze_len":    s.reanalyze.Len(),
		"wait_seconds":     s.cfg.WaitSeconds,
	})
	s.sleep(s.cfg.WaitInterval())
}

func (s *Scheduler) saveNumbered(step int) error {
	snapshot, err := s.model.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot at %d: %w", step, err)
	}
	if _, err := s.checkpoints.Save(step, snapshot); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) emit(ctx context.Context, eventType observability.EventType,
	level observability.Level, source string, data map[string]any) {
	s.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		RunID:     s.runID,
		Data:      data,
	})
}
