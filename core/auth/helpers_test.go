package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type nopLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *nopLogger) Debug(string, ...interface{}) {}
func (l *nopLogger) Info(string, ...interface{})  {}
func (l *nopLogger) Error(string, ...interface{}) {}
func (l *nopLogger) Fatal(string, ...interface{}) {}
func (l *nopLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *nopLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

type mapStore struct {
	mu   sync.Mutex
	raw  []byte
	errs int
}

func (s *mapStore) Load() (CredentialPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return CredentialPair{}, false
	}
	pair, err := DecodeCredentials(s.raw)
	if err != nil {
		s.errs++
		return CredentialPair{}, false
	}
	return pair, true
}

func (s *mapStore) Save(pair CredentialPair) error {
	raw, err := EncodeCredentials(pair)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
	return nil
}

func (s *mapStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	return nil
}

var errBackend = errors.New("backend failure")

type stubBackend struct {
	mu sync.Mutex

	login    LoginResult
	loginErr error
	register RegistrationResult
	me       CurrentUser
	meErr    error
	// meGate, when set, blocks CurrentUser until it is closed.
	meGate chan struct{}
	// refreshed, when set, is reported through OnRefreshed during CurrentUser.
	refreshed *CredentialPair

	meCalls    int
	meAuthz    []CredentialPair
	resetEmail string
	confirm    PasswordResetConfirm
}

func (b *stubBackend) Login(_ context.Context, _ LoginRequest) (LoginResult, error) {
	return b.login, b.loginErr
}

func (b *stubBackend) RegisterStudent(_ context.Context, _ StudentRegistration) (RegistrationResult, error) {
	return b.register, nil
}

func (b *stubBackend) CurrentUser(ctx context.Context, authz Authorization) (CurrentUser, error) {
	b.mu.Lock()
	b.meCalls++
	b.meAuthz = append(b.meAuthz, authz.Pair)
	gate, refreshed := b.meGate, b.refreshed
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return CurrentUser{}, ctx.Err()
		}
	}
	if refreshed != nil && authz.OnRefreshed != nil {
		authz.OnRefreshed(*refreshed)
	}
	return b.me, b.meErr
}

func (b *stubBackend) RequestPasswordReset(_ context.Context, email string) error {
	b.resetEmail = email
	return nil
}

func (b *stubBackend) ConfirmPasswordReset(_ context.Context, req PasswordResetConfirm) error {
	b.confirm = req
	return nil
}

func (b *stubBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meCalls
}

func intPtr(i int) *int { return &i }
