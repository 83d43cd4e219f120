package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

// Store keeps one credential record in Redis under "cems.auth:<scope>".
// The key expires with the refresh token when it is a JWT, else after the fallback TTL.
// Credentials whose refresh token is already past its exp are never written.
type Store struct {
	rdb       redis.UniversalClient
	key       string
	ttl       time.Duration
	opTimeout time.Duration
	logger    core.Logger
	now       func() time.Time
}

var _ auth.TokenStore = (*Store)(nil)

func New(rdb redis.UniversalClient, scope string, conf *core.Config, logger core.Logger) *Store {
	opTimeout := conf.Redis.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &Store{
		rdb:       rdb,
		key:       Key(scope),
		ttl:       conf.Portal.SessionIdleTTL,
		opTimeout: opTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

func Key(scope string) string {
	return auth.StoreKey + ":" + scope
}

// Connect opens a client for conf and checks it answers.
func Connect(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, conf.Redis.OpTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis.Ping()")
	}
	return rdb, nil
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opTimeout)
}

func (s *Store) Load() (auth.CredentialPair, bool) {
	ctx, cancel := s.ctx()
	defer cancel()
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return auth.CredentialPair{}, false
	}
	if err != nil {
		s.logger.Warn("redisstore: loading credentials", s.key, err)
		return auth.CredentialPair{}, false
	}
	pair, err := auth.DecodeCredentials(raw)
	if err != nil {
		s.logger.Warn("redisstore: ignoring stored credentials", s.key, err)
		return auth.CredentialPair{}, false
	}
	return pair, true
}

// expiration follows the refresh token's exp claim, falling back to the configured TTL.
// It reports false once that claim has passed.
func (s *Store) expiration(pair auth.CredentialPair) (time.Duration, bool) {
	exp, err := auth.TokenExpiry(pair.Refresh)
	if err != nil {
		return s.ttl, true
	}
	ttl := exp.Sub(s.now())
	return ttl, ttl > 0
}

// Save drops the record instead when the refresh token has already expired.
func (s *Store) Save(pair auth.CredentialPair) error {
	ttl, live := s.expiration(pair)
	if !live {
		return s.Clear()
	}
	raw, err := auth.EncodeCredentials(pair)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return errors.Wrap(s.rdb.Set(ctx, s.key, raw, ttl).Err(), "redis.Set()")
}

func (s *Store) Clear() error {
	ctx, cancel := s.ctx()
	defer cancel()
	return errors.Wrap(s.rdb.Del(ctx, s.key).Err(), "redis.Del()")
}
