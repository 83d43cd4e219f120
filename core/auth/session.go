package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
)

var (
	// ErrSessionChanged is returned by an identity refresh outrun by a logout or a new login.
	ErrSessionChanged = errors.New("session changed during identity refresh")

	errInvalidCredentials = errors.New("Invalid response from server")
)

// Options tune a Manager.
type Options struct {
	AdminPath string
	// BackgroundTimeout bounds identity refreshes running in the background.
	BackgroundTimeout time.Duration
}

// Manager owns one authentication session: identity, credential pair and loading state.
// It is the single writer of the token store. All methods are safe for concurrent use.
type Manager struct {
	backend   Backend
	store     TokenStore
	logger    core.Logger
	routes    *Routes
	bgTimeout time.Duration

	mu         sync.RWMutex
	identity   *Identity
	pair       *CredentialPair
	loading    bool
	generation uint64
	background *BackgroundRefresh
}

// NewManager loads the persisted credential pair, if any. The session stays
// loading until Resume (or RefreshIdentity) resolves the identity.
func NewManager(backend Backend, store TokenStore, logger core.Logger, opts Options) *Manager {
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = 30 * time.Second
	}
	m := &Manager{
		backend:   backend,
		store:     store,
		logger:    logger,
		routes:    NewRoutes(opts.AdminPath),
		bgTimeout: opts.BackgroundTimeout,
	}
	if pair, ok := store.Load(); ok {
		m.pair = &pair
		m.loading = true
	}
	return m
}

// Resume refreshes the identity of a persisted session in the background.
func (m *Manager) Resume() *BackgroundRefresh {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()
	return m.startRefresh(gen)
}

// Login authenticates and returns the minimal identity found in the login
// response. The full profile is fetched in the background (see Background).
// A failed login leaves the session untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (Identity, error) {
	res, err := m.backend.Login(ctx, LoginRequest{Username: username, Password: password})
	if err != nil {
		return Identity{}, err
	}
	pair := CredentialPair{Access: res.Access, Refresh: res.Refresh}
	if !pair.Valid() {
		return Identity{}, errInvalidCredentials
	}
	id := identityFromLogin(res.User)

	m.mu.Lock()
	gen := m.beginSession(pair, id)
	m.mu.Unlock()

	m.startRefresh(gen)
	return id, nil
}

// RegisterStudent creates a student account and signs it in.
func (m *Manager) RegisterStudent(ctx context.Context, req StudentRegistration) (Identity, error) {
	res, err := m.backend.RegisterStudent(ctx, req)
	if err != nil {
		return Identity{}, err
	}
	pair := CredentialPair{Access: res.Access, Refresh: res.Refresh}
	if !pair.Valid() {
		return Identity{}, errInvalidCredentials
	}
	id := identityFromRegistration(res)

	m.mu.Lock()
	m.beginSession(pair, id)
	m.mu.Unlock()
	return id, nil
}

// beginSession must be called with the lock held.
func (m *Manager) beginSession(pair CredentialPair, id Identity) uint64 {
	m.generation++
	m.pair = &pair
	m.identity = &id
	m.loading = false
	m.persist(pair)
	return m.generation
}

// RefreshIdentity replaces the identity with the server's profile.
// Without an access token it only clears loading. Any failure, a failed
// silent token refresh included, logs the session out.
func (m *Manager) RefreshIdentity(ctx context.Context) error {
	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()
	return m.refreshIdentity(ctx, gen)
}

func (m *Manager) refreshIdentity(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return ErrSessionChanged
	}
	if m.pair == nil || m.pair.Access == "" {
		m.loading = false
		m.mu.Unlock()
		return nil
	}
	m.loading = true
	authz := m.authorizationLocked()
	m.mu.Unlock()

	cu, err := m.backend.CurrentUser(ctx, authz)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return ErrSessionChanged
	}
	if err != nil {
		m.logoutLocked()
		return err
	}
	id := identityFromCurrentUser(cu)
	m.identity = &id
	m.loading = false
	return nil
}

// Logout forgets the session locally. No network call is made.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutLocked()
}

func (m *Manager) logoutLocked() {
	m.generation++
	m.identity = nil
	m.pair = nil
	m.loading = false
	if err := m.store.Clear(); err != nil {
		m.logger.Error("auth: clearing credentials", err)
	}
}

// UpdateCredentials persists a pair silently refreshed by the API client.
func (m *Manager) UpdateCredentials(pair CredentialPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCredentialsLocked(pair)
}

func (m *Manager) updateCredentialsLocked(pair CredentialPair) {
	if !pair.Valid() {
		m.logger.Warn("auth: ignoring partial credential pair")
		return
	}
	m.pair = &pair
	m.persist(pair)
}

func (m *Manager) persist(pair CredentialPair) {
	if err := m.store.Save(pair); err != nil {
		m.logger.Error("auth: saving credentials", err)
	}
}

// Authorization returns the current pair with a refresh hook bound to this
// session: a pair refreshed after a logout or a new login is dropped.
func (m *Manager) Authorization() Authorization {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authorizationLocked()
}

func (m *Manager) authorizationLocked() Authorization {
	gen := m.generation
	var pair CredentialPair
	if m.pair != nil {
		pair = *m.pair
	}
	return Authorization{
		Pair: pair,
		OnRefreshed: func(refreshed CredentialPair) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if gen != m.generation {
				m.logger.Debug("auth: dropping credentials refreshed for a previous session")
				return
			}
			m.updateCredentialsLocked(refreshed)
		},
	}
}

// RequestPasswordReset asks the backend to email a reset link. The session is not affected.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	return m.backend.RequestPasswordReset(ctx, email)
}

// ConfirmPasswordReset sets a new password from a reset link. The session is not affected.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirm) error {
	return m.backend.ConfirmPasswordReset(ctx, req)
}

// Identity returns a copy of the current identity, nil when anonymous.
func (m *Manager) Identity() *Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// Credentials returns the current pair.
func (m *Manager) Credentials() (CredentialPair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pair == nil {
		return CredentialPair{}, false
	}
	return *m.pair, true
}

func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// State snapshots the session for the guard.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := State{Loading: m.loading}
	if m.identity != nil {
		id := *m.identity
		st.Identity = &id
	}
	return st
}

// HasRole reports whether the current identity holds role.
func (m *Manager) HasRole(role Role) bool {
	id := m.Identity()
	return id != nil && id.Roles.Has(role)
}

func (m *Manager) Routes() *Routes { return m.routes }

// DashboardPath returns the dashboard of id, or of the current identity when id is nil.
func (m *Manager) DashboardPath(id *Identity) string {
	if id == nil {
		id = m.Identity()
	}
	return m.routes.DashboardPath(id)
}

func (m *Manager) IsExternalPath(path string) bool {
	return m.routes.IsExternal(path)
}

// CanAccessRoute checks path for id, or for the current identity when id is nil.
func (m *Manager) CanAccessRoute(path string, id *Identity) bool {
	if id == nil {
		id = m.Identity()
	}
	return m.routes.CanAccess(path, id)
}

// Guard decides a navigation to path against the live session.
func (m *Manager) Guard(policy Policy, path string) Decision {
	return Guard(m.State(), m.routes, policy, path)
}

// PostAuthDestination is where the current identity goes after signing in.
func (m *Manager) PostAuthDestination(from string) string {
	return m.routes.PostAuthDestination(from, m.Identity())
}

// Background returns the latest background identity refresh, nil if none was started.
func (m *Manager) Background() *BackgroundRefresh {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.background
}
