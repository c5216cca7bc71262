package favorites

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

// Store persists van/naar favorites as a flat JSON array on disk.
// All access goes through the store; the file is rewritten whole on change.
type Store struct {
	mu   sync.Mutex
	path string
	list []models.Favorite
}

// NewStore loads the favorites file; a missing file is an empty store.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.list); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns a copy of all favorites
func (s *Store) List() []models.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Favorite, len(s.list))
	copy(out, s.list)
	return out
}

// Add stores a favorite; adding an existing pair is a no-op
func (s *Store) Add(f models.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.list {
		if equalFold(cur, f) {
			return nil
		}
	}
	s.list = append(s.list, f)
	return s.save()
}

// Remove deletes a favorite; removing an absent pair is a no-op
func (s *Store) Remove(f models.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.list[:0]
	for _, cur := range s.list {
		if !equalFold(cur, f) {
			kept = append(kept, cur)
		}
	}
	if len(kept) == len(s.list) {
		return nil
	}
	s.list = kept
	return s.save()
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func equalFold(a, b models.Favorite) bool {
	return strings.EqualFold(a.Van, b.Van) && strings.EqualFold(a.Naar, b.Naar)
}
