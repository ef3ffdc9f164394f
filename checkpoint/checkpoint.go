// Package checkpoint persists and discovers model snapshots. Numbered
// checkpoint files embed the training-step count in a fixed-width sortable
// suffix; a separate fixed-name file always holds the most recent snapshot.
// Writes are atomic (temp file + rename): a torn checkpoint is worse than a
// crash, so callers treat any save or load failure as fatal.
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	filePrefix = "model_"
	fileExt    = ".ckpt"

	// LatestName is the fixed-name file overwritten on every save cadence.
	LatestName = "model_latest" + fileExt
)

// ErrNoCheckpoint is returned by Latest when the directory holds no valid
// numbered checkpoint. The caller then starts from step zero.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Manager reads and writes checkpoints under one directory.
type Manager struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewManager creates a Manager for the given directory. The directory must
// already exist; a bad directory is a startup failure, not something to
// mask with MkdirAll.
func NewManager(dir string) (*Manager, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("checkpoint directory: %s is not a directory", dir)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("checkpoint compressor: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("checkpoint decompressor: %w", err)
	}

	return &Manager{dir: dir, encoder: encoder, decoder: decoder}, nil
}

// Latest scans the directory and returns the step count and path of the
// numbered checkpoint with the highest embedded step. Files whose suffix is
// not numeric (including the fixed-name latest file) are ignored. Returns
// ErrNoCheckpoint when nothing valid is found.
func (m *Manager) Latest() (int, string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, "", fmt.Errorf("scan checkpoints: %w", err)
	}

	best := -1
	var bestPath string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		step, ok := stepFromName(entry.Name())
		if !ok {
			continue
		}
		if step > best {
			best = step
			bestPath = filepath.Join(m.dir, entry.Name())
		}
	}

	if best < 0 {
		return 0, "", ErrNoCheckpoint
	}
	return best, bestPath, nil
}

// Save writes a numbered checkpoint for the given step and returns its
// path.
func (m *Manager) Save(step int, snapshot []byte) (string, error) {
	name := fmt.Sprintf("%s%06d%s", filePrefix, step, fileExt)
	path := filepath.Join(m.dir, name)
	if err := m.write(path, snapshot); err != nil {
		return "", err
	}
	return path, nil
}

// SaveLatest overwrites the fixed-name latest checkpoint.
func (m *Manager) SaveLatest(snapshot []byte) error {
	return m.write(filepath.Join(m.dir, LatestName), snapshot)
}

// Load reads and decompresses the checkpoint at the given path.
func (m *Manager) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	snapshot, err := m.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	return snapshot, nil
}

// write compresses and persists a snapshot atomically: the payload lands in
// a temp file in the same directory and is renamed into place.
func (m *Manager) write(path string, snapshot []byte) error {
	compressed := m.encoder.EncodeAll(snapshot, nil)

	tmp, err := os.CreateTemp(m.dir, ".tmp-ckpt-*")
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// stepFromName extracts the step count from a checkpoint filename. The
// step is the numeric run after the last '_' of the stem, e.g.
// "model_005000.ckpt" -> 5000.
func stepFromName(name string) (int, bool) {
	if !strings.HasSuffix(name, fileExt) || !strings.HasPrefix(name, filePrefix) {
		return 0, false
	}
	stem := strings.TrimSuffix(name, fileExt)
	suffix := stem[strings.LastIndex(stem, "_")+1:]
	step, err := strconv.Atoi(suffix)
	if err != nil || step < 0 {
		return 0, false
	}
	return step, true
}
