package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xxxsen/pagelift/internal/model"
	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
)

const fileName = "checkpoint.json"

// Store persists the migration checkpoint as a single JSON document. Every
// save rewrites the whole record so the on-disk state is always one
// well-formed document.
type Store struct {
	path string
}

func NewStore(cacheDir string) *Store {
	return &Store{path: filepath.Join(cacheDir, fileName)}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted checkpoint. A missing file returns ErrNotFound so
// the caller can decide between "start fresh" and "refuse to resume".
func (s *Store) Load() (*model.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: checkpoint %s", appErr.ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var record model.Checkpoint
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if record.ItemsCreated == nil {
		record.ItemsCreated = map[string]string{}
	}
	return &record, nil
}

func (s *Store) Save(record *model.Checkpoint) error {
	record.LastUpdated = time.Now()
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Clear removes the persisted checkpoint; used by reset.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
