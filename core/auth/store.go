package auth

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// StoreKey is the fixed key the credential pair is persisted under.
const StoreKey = "cems.auth"

var (
	ErrMalformedCredentials = errors.New("malformed credential record")
	ErrPartialCredentials   = errors.New("partial credential record")
)

// TokenStore persists one credential pair.
// Load never fails: unreadable, malformed or partial data loads as absent.
type TokenStore interface {
	Load() (CredentialPair, bool)
	Save(pair CredentialPair) error
	Clear() error
}

// EncodeCredentials serializes pair as a flat record.
func EncodeCredentials(pair CredentialPair) ([]byte, error) {
	if !pair.Valid() {
		return nil, ErrPartialCredentials
	}
	return json.Marshal(pair)
}

// DecodeCredentials parses a stored record; stores log its error and treat the pair as absent.
func DecodeCredentials(raw []byte) (CredentialPair, error) {
	var pair CredentialPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return CredentialPair{}, errors.Wrap(ErrMalformedCredentials, err.Error())
	}
	if !pair.Valid() {
		return CredentialPair{}, ErrPartialCredentials
	}
	return pair, nil
}
