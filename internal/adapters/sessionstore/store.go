package sessionstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// Store saves negotiated sessions under XDG_STATE_HOME or ~/.local/state.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a session store at the default location.
func NewStore() (*Store, error) {
	path, err := sessionsPath()
	if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// NewStoreAt creates a session store backed by path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Get returns the session cached for a server node.
func (s *Store) Get(nodeID string) (msp.SessionRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if err != nil {
		return msp.SessionRef{}, false, err
	}
	ref, ok := data[nodeID]
	return ref, ok, nil
}

// Put caches a session for a server node.
func (s *Store) Put(nodeID string, ref msp.SessionRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if err != nil {
		return err
	}
	data[nodeID] = ref
	return s.writeAll(data)
}

// Clear forgets the session for a server node.
func (s *Store) Clear(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := data[nodeID]; !ok {
		return nil
	}
	delete(data, nodeID)
	return s.writeAll(data)
}

func (s *Store) readAll() (map[string]msp.SessionRef, error) {
	data := map[string]msp.SessionRef{}
	file, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, err
	}
	if len(file) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) writeAll(data map[string]msp.SessionRef) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func sessionsPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "mss", "sessions.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "mss", "sessions.json"), nil
}
