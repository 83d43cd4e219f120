package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

// Store keeps records in one JSON file, as {key: record}.
type Store struct {
	path   string
	key    string
	logger core.Logger
	mu     sync.Mutex
}

var _ auth.TokenStore = (*Store)(nil)

func New(path string, logger core.Logger) *Store {
	return &Store{path: path, key: auth.StoreKey, logger: logger}
}

func (s *Store) Path() string { return s.path }

func (s *Store) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile()")
	}
	records := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal()")
	}
	return records, nil
}

// write replaces the file atomically.
func (s *Store) write(records map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "os.MkdirAll()")
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "os.CreateTemp()")
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "os.Chmod()")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "os.Write()")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "os.Close()")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "os.Rename()")
}

func (s *Store) Load() (auth.CredentialPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		s.logger.Warn("filestore: unreadable credentials file", s.path, err)
		return auth.CredentialPair{}, false
	}
	raw, ok := records[s.key]
	if !ok {
		return auth.CredentialPair{}, false
	}
	pair, err := auth.DecodeCredentials(raw)
	if err != nil {
		s.logger.Warn("filestore: ignoring stored credentials", s.path, err)
		return auth.CredentialPair{}, false
	}
	return pair, true
}

func (s *Store) Save(pair auth.CredentialPair) error {
	raw, err := auth.EncodeCredentials(pair)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		// a corrupt file is replaced
		records = map[string]json.RawMessage{}
	}
	records[s.key] = raw
	return s.write(records)
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		records = map[string]json.RawMessage{}
	}
	if _, ok := records[s.key]; !ok && err == nil {
		return nil
	}
	delete(records, s.key)
	return s.write(records)
}
