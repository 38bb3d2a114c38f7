package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"quizroom-service/internal/domain"
)

// IdentityStore keeps the identities of a terminal client in a YAML file so
// that restarting `quizroom play` resumes the same players.
type IdentityStore struct {
	path string
	mu   sync.Mutex
}

type identityFile struct {
	Identities map[string]domain.Identity `yaml:"identities"`
}

func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

// DefaultPath is the session file under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quizroom", "session.yaml"), nil
}

func (s *IdentityStore) Load(_ context.Context, roomID string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.read()
	if err != nil {
		return domain.Identity{}, false, err
	}
	identity, ok := file.Identities[roomID]
	return identity, ok, nil
}

func (s *IdentityStore) Save(_ context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.read()
	if err != nil {
		return err
	}
	file.Identities[identity.RoomID] = identity
	return s.write(file)
}

func (s *IdentityStore) Clear(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := file.Identities[roomID]; !ok {
		return nil
	}
	delete(file.Identities, roomID)
	return s.write(file)
}

func (s *IdentityStore) read() (identityFile, error) {
	file := identityFile{Identities: map[string]domain.Identity{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return file, fmt.Errorf("read session file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse session file: %w", err)
	}
	if file.Identities == nil {
		file.Identities = map[string]domain.Identity{}
	}
	return file, nil
}

// write replaces the file atomically so a crash never leaves it half written.
func (s *IdentityStore) write(file identityFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
