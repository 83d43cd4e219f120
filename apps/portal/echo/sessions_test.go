package echoportal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/storage/tokenstore/memstore"
	"github.com/trezcool/cems/tests"
)

func TestSessions_Sweep(t *testing.T) {
	p := newTestPortal(t)
	idle := p.browser()
	idle.login(testutil.StudentUsername, testutil.StudentPassword)
	active := p.browser()
	active.login(testutil.TeacherUsername, testutil.TeacherPassword)
	require.Equal(t, 2, p.records.Len())

	registry := p.srv.sessions
	now := time.Now()
	assert.Zero(t, registry.sweep(now))

	later := now.Add(registry.idleTTL + time.Minute)
	active.session().touch(later)
	assert.Equal(t, 1, registry.sweep(later))
	assert.Equal(t, 1, registry.len())
	assert.Equal(t, 1, p.records.Len(), "the dropped session's credentials are released")

	// the dropped browser comes back signed out
	assert.Nil(t, idle.session().manager.Identity())
	assert.NotNil(t, active.session().manager.Identity())
}

// heldStores blocks loading the credentials of one session until released.
type heldStores struct {
	TokenStores
	held    string
	loading chan struct{}
	release chan struct{}
}

type heldStore struct {
	auth.TokenStore
	s *heldStores
}

func (h *heldStores) Open(sessionID string) auth.TokenStore {
	store := h.TokenStores.Open(sessionID)
	if sessionID != h.held {
		return store
	}
	return heldStore{TokenStore: store, s: h}
}

func (h heldStore) Load() (auth.CredentialPair, bool) {
	close(h.s.loading)
	<-h.s.release
	return h.TokenStore.Load()
}

func TestSessions_OpenDoesNotBlockOthers(t *testing.T) {
	api := testutil.NewBackend(t)
	logger := testutil.NewLogger()
	stores := &heldStores{
		TokenStores: MemoryStores(memstore.NewRecords(), logger),
		held:        "slow",
		loading:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	registry := newSessions(ServerDeps{Conf: api.Config(), Logger: logger, Stores: stores})

	slow := make(chan *session, 1)
	go func() { slow <- registry.get("slow") }()
	<-stores.loading

	done := make(chan *session, 1)
	go func() { done <- registry.get("fast") }()
	select {
	case sess := <-done:
		assert.Equal(t, "fast", sess.id)
	case <-time.After(2 * time.Second):
		t.Fatal("a new visitor waited on another session's token store")
	}

	close(stores.release)
	assert.Equal(t, "slow", (<-slow).id)
	assert.Equal(t, 2, registry.len())
}

func TestSessions_ConcurrentOpenSharesOneSession(t *testing.T) {
	p := newTestPortal(t)
	registry := p.srv.sessions

	var wg sync.WaitGroup
	got := make([]*session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = registry.get("shared")
		}(i)
	}
	wg.Wait()
	for _, sess := range got {
		require.Same(t, got[0], sess)
	}
	assert.Equal(t, 1, registry.len())
}
