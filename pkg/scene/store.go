package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store loads scene definitions from JSON files in a directory, one file
// per scene id. Definitions are static for the process lifetime, so loaded
// scenes are cached in memory indefinitely. The cache is safe for
// concurrent readers.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Scene
}

// NewStore creates a scene store reading from dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if dir == "" {
		dir = "./data/scenes"
	}
	return &Store{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*Scene),
	}
}

// Load returns the scene definition for id. It fails with ErrNotFound if
// no definition exists. Loads are deterministic and side-effect free.
func (s *Store) Load(ctx context.Context, id string) (*Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidSceneID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	sc, err := s.read(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = sc
	s.mu.Unlock()

	return sc, nil
}

func (s *Store) read(id string) (*Scene, error) {
	path := filepath.Join(s.dir, id+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Scene definition missing", "scene", id, "path", path)
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read scene file %s: %w", path, err)
	}

	var sc Scene
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene %q: %w", id, err)
	}

	// Filename is authoritative for the id.
	sc.ID = id
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scene definition: %w", err)
	}

	return &sc, nil
}

// LoadAll reads every scene definition in the store's directory. Used by
// the static graph validator; runtime traversal loads lazily via Load.
func (s *Store) LoadAll(ctx context.Context) (map[string]*Scene, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenes directory %s: %w", s.dir, err)
	}

	scenes := make(map[string]*Scene)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		sc, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		scenes[id] = sc
	}

	return scenes, nil
}
