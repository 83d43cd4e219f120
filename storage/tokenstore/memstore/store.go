package memstore

import (
	"sync"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

// Records is an in-process key-value space shared by scoped stores.
type Records struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewRecords() *Records {
	return &Records{data: make(map[string][]byte)}
}

// Put writes a raw record as is.
func (r *Records) Put(key string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = append([]byte(nil), raw...)
}

func (r *Records) Get(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, ok := r.data[key]
	return raw, ok
}

func (r *Records) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
}

func (r *Records) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Key is the record key of a scope; the empty scope uses the bare store key.
func Key(scope string) string {
	if scope == "" {
		return auth.StoreKey
	}
	return auth.StoreKey + ":" + scope
}

// Store is a token store over one record of a Records space.
type Store struct {
	records *Records
	key     string
	logger  core.Logger
}

var _ auth.TokenStore = (*Store)(nil)

func New(records *Records, scope string, logger core.Logger) *Store {
	return &Store{records: records, key: Key(scope), logger: logger}
}

func (s *Store) Load() (auth.CredentialPair, bool) {
	raw, ok := s.records.Get(s.key)
	if !ok {
		return auth.CredentialPair{}, false
	}
	pair, err := auth.DecodeCredentials(raw)
	if err != nil {
		s.logger.Warn("memstore: ignoring stored credentials", s.key, err)
		return auth.CredentialPair{}, false
	}
	return pair, true
}

func (s *Store) Save(pair auth.CredentialPair) error {
	raw, err := auth.EncodeCredentials(pair)
	if err != nil {
		return err
	}
	s.records.Put(s.key, raw)
	return nil
}

func (s *Store) Clear() error {
	s.records.Delete(s.key)
	return nil
}
