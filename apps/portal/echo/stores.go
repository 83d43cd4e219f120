package echoportal

import (
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/storage/tokenstore/memstore"
	"github.com/trezcool/cems/storage/tokenstore/redisstore"
)

// TokenStores opens the token store of each portal session.
// Release is called once an idle session is dropped from the registry.
type TokenStores interface {
	Open(sessionID string) auth.TokenStore
	Release(sessionID string)
}

type memoryStores struct {
	records *memstore.Records
	logger  core.Logger
}

// MemoryStores keeps every session's credentials in process; they die with the portal.
func MemoryStores(records *memstore.Records, logger core.Logger) TokenStores {
	return &memoryStores{records: records, logger: logger}
}

func (m *memoryStores) Open(sessionID string) auth.TokenStore {
	return memstore.New(m.records, sessionID, m.logger)
}

func (m *memoryStores) Release(sessionID string) {
	m.records.Delete(memstore.Key(sessionID))
}

type redisStores struct {
	rdb    redis.UniversalClient
	conf   *core.Config
	logger core.Logger
}

// RedisStores keeps credentials in Redis so sessions outlive a portal restart
// and can be served by any portal instance.
func RedisStores(rdb redis.UniversalClient, conf *core.Config, logger core.Logger) TokenStores {
	return &redisStores{rdb: rdb, conf: conf, logger: logger}
}

func (r *redisStores) Open(sessionID string) auth.TokenStore {
	return redisstore.New(r.rdb, sessionID, r.conf, r.logger)
}

// Release leaves the record to its Redis expiry; another instance may still serve the session.
func (r *redisStores) Release(string) {}
