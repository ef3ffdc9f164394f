package learn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the training loop. The bootstrap pool default guarantees
// enough synthetic targets for every bootstrap step at the default batch
// size.
const (
	defaultBatchSize            = 128
	defaultMinExploitationLen   = 2000
	defaultMaxExploitationLen   = 10000
	defaultMaxReanalyzeLen      = 10000
	defaultExploitationUses     = 1
	defaultReanalyzeUses        = 1
	defaultStepsBeforeReanalyze = 5000
	defaultStepsPerSave         = 10
	defaultStepsPerCheckpoint   = 1000
	defaultWaitSeconds          = 30
	defaultLearningRate         = 1e-4
	defaultBootstrapSteps       = 1000
	defaultBootstrapTargets     = 2000 * defaultBatchSize
	defaultObserver             = "slog"
)

// Stream file names under the target directory.
const (
	ExploitationFile = "targets-selfplay.txt"
	ReanalyzeFile    = "targets-reanalyze.txt"
	BootstrapFile    = "targets-initial.txt"
)

// Config holds all training-loop parameters. The directory is where stream
// files are read from and checkpoints are written to.
type Config struct {
	Directory string `json:"directory" yaml:"directory"`

	BatchSize          int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	MinExploitationLen int `json:"min_exploitation_len,omitempty" yaml:"min_exploitation_len,omitempty"`
	MaxExploitationLen int `json:"max_exploitation_len,omitempty" yaml:"max_exploitation_len,omitempty"`
	MaxReanalyzeLen    int `json:"max_reanalyze_len,omitempty" yaml:"max_reanalyze_len,omitempty"`
	ExploitationUses   int `json:"exploitation_uses,omitempty" yaml:"exploitation_uses,omitempty"`
	ReanalyzeUses      int `json:"reanalyze_uses,omitempty" yaml:"reanalyze_uses,omitempty"`

	// StepsBeforeReanalyze is the step count at which the loop moves,
	// irreversibly, from the exploitation-only phase to the mixed phase.
	StepsBeforeReanalyze int `json:"steps_before_reanalyze,omitempty" yaml:"steps_before_reanalyze,omitempty"`

	StepsPerSave       int `json:"steps_per_save,omitempty" yaml:"steps_per_save,omitempty"`
	StepsPerCheckpoint int `json:"steps_per_checkpoint,omitempty" yaml:"steps_per_checkpoint,omitempty"`

	// WaitSeconds is the coarse idle interval when buffered data is
	// insufficient for a batch.
	WaitSeconds int `json:"wait_seconds,omitempty" yaml:"wait_seconds,omitempty"`

	LearningRate float64 `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`

	BootstrapTargets int `json:"bootstrap_targets,omitempty" yaml:"bootstrap_targets,omitempty"`
	BootstrapSteps   int `json:"bootstrap_steps,omitempty" yaml:"bootstrap_steps,omitempty"`

	// Observer names a registered observability observer.
	Observer string `json:"observer,omitempty" yaml:"observer,omitempty"`
}

// DefaultConfig returns a Config with defaults for everything except the
// directory, which has no sensible default.
func DefaultConfig() Config {
	return Config{
		BatchSize:            defaultBatchSize,
		MinExploitationLen:   defaultMinExploitationLen,
		MaxExploitationLen:   defaultMaxExploitationLen,
		MaxReanalyzeLen:      defaultMaxReanalyzeLen,
		ExploitationUses:     defaultExploitationUses,
		ReanalyzeUses:        defaultReanalyzeUses,
		StepsBeforeReanalyze: defaultStepsBeforeReanalyze,
		StepsPerSave:         defaultStepsPerSave,
		StepsPerCheckpoint:   defaultStepsPerCheckpoint,
		WaitSeconds:          defaultWaitSeconds,
		LearningRate:         defaultLearningRate,
		BootstrapTargets:     defaultBootstrapTargets,
		BootstrapSteps:       defaultBootstrapSteps,
		Observer:             defaultObserver,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Directory != "" {
		c.Directory = source.Directory
	}
	if source.BatchSize > 0 {
		c.BatchSize = source.BatchSize
	}
	if source.MinExploitationLen > 0 {
		c.MinExploitationLen = source.MinExploitationLen
	}
	if source.MaxExploitationLen > 0 {
		c.MaxExploitationLen = source.MaxExploitationLen
	}
	if source.MaxReanalyzeLen > 0 {
		c.MaxReanalyzeLen = source.MaxReanalyzeLen
	}
	if source.ExploitationUses > 0 {
		c.ExploitationUses = source.ExploitationUses
	}
	if source.ReanalyzeUses > 0 {
		c.ReanalyzeUses = source.ReanalyzeUses
	}
	if source.StepsBeforeReanalyze > 0 {
		c.StepsBeforeReanalyze = source.StepsBeforeReanalyze
	}
	if source.StepsPerSave > 0 {
		c.StepsPerSave = source.StepsPerSave
	}
	if source.StepsPerCheckpoint > 0 {
		c.StepsPerCheckpoint = source.StepsPerCheckpoint
	}
	if source.WaitSeconds > 0 {
		c.WaitSeconds = source.WaitSeconds
	}
	if source.LearningRate > 0 {
		c.LearningRate = source.LearningRate
	}
	if source.BootstrapTargets > 0 {
		c.BootstrapTargets = source.BootstrapTargets
	}
	if source.BootstrapSteps > 0 {
		c.BootstrapSteps = source.BootstrapSteps
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a YAML or JSON config file (by extension), merges it
// over defaults, and returns the result. Validation happens separately in
// New, after flag overrides have been applied.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	case ".json":
		err = json.Unmarshal(data, &loaded)
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

// Validate checks internal consistency. Mixed-phase batches split evenly
// across the two buffers, so the batch size must be even; the readiness
// threshold must cover a full batch; the bootstrap pool must cover every
// bootstrap step.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("directory is required")
	}
	if c.BatchSize <= 0 || c.BatchSize%2 != 0 {
		return fmt.Errorf("batch_size must be positive and even, got %d", c.BatchSize)
	}
	if c.MinExploitationLen < c.BatchSize {
		return fmt.Errorf("min_exploitation_len %d must be at least batch_size %d",
			c.MinExploitationLen, c.BatchSize)
	}
	if c.MaxExploitationLen < c.MinExploitationLen {
		return fmt.Errorf("max_exploitation_len %d must be at least min_exploitation_len %d",
			c.MaxExploitationLen, c.MinExploitationLen)
	}
	if c.MaxReanalyzeLen < c.BatchSize/2 {
		return fmt.Errorf("max_reanalyze_len %d must be at least half the batch size", c.MaxReanalyzeLen)
	}
	if c.ExploitationUses < 1 || c.ReanalyzeUses < 1 {
		return fmt.Errorf("per-stream uses must be at least 1")
	}
	if c.StepsBeforeReanalyze < 0 {
		return fmt.Errorf("steps_before_reanalyze must not be negative")
	}
	if c.StepsPerSave < 1 || c.StepsPerCheckpoint < 1 {
		return fmt.Errorf("save cadences must be at least 1")
	}
	if c.WaitSeconds < 1 {
		return fmt.Errorf("wait_seconds must be at least 1")
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive")
	}
	if c.BootstrapSteps < 0 {
		return fmt.Errorf("bootstrap_steps must not be negative")
	}
	if c.BootstrapTargets < c.BootstrapSteps*c.BatchSize {
		return fmt.Errorf("bootstrap_targets %d cannot cover %d bootstrap steps at batch size %d",
			c.BootstrapTargets, c.BootstrapSteps, c.BatchSize)
	}
	return nil
}

// WaitInterval returns the idle wait as a duration.
func (c *Config) WaitInterval() time.Duration {
	return time.Duration(c.WaitSeconds) * time.Second
}
