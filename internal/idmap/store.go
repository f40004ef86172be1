package idmap

import (
	"fmt"
	"os"
	"path/filepath"

	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
)

const fileName = "idmap.json"

// Store persists the registry next to the checkpoint but in its own file, so
// either can be reloaded independently.
type Store struct {
	path string
}

func NewStore(cacheDir string) *Store {
	return &Store{path: filepath.Join(cacheDir, fileName)}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load() (*Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: id map %s", appErr.ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read id map: %w", err)
	}
	return Deserialize(data)
}

func (s *Store) Save(r *Registry) error {
	data, err := r.Serialize()
	if err != nil {
		return fmt.Errorf("encode id map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write id map: %w", err)
	}
	return nil
}

func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
