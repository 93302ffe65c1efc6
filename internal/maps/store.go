package maps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const Extension = ".map"

var ErrNotFound = errors.New("map does not exist")

// Store keeps map files in a single directory, one file per grid named
// after the grid.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid map name %q", name)
	}
	return filepath.Join(s.dir, name+Extension), nil
}

func (s *Store) LoadAll() (map[string]*Grid, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read maps directory: %w", err)
	}

	grids := make(map[string]*Grid)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != Extension {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), Extension)

		grid, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		grids[name] = grid
	}
	return grids, nil
}

// Load parses a single map file. The grid is keyed by its file name even
// when the text names it differently.
func (s *Store) Load(name string) (*Grid, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read map %s: %w", name, err)
	}

	grid, err := Parse(name, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse map %s: %w", name, err)
	}
	grid.Name = name
	return grid, nil
}

func (s *Store) Write(name, source string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create maps directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		return fmt.Errorf("failed to write map %s: %w", name, err)
	}
	return nil
}

func (s *Store) Remove(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove map %s: %w", name, err)
	}
	return nil
}
