package checkpoint

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/go-go-golems/duet/pkg/state"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultRedisKeyPrefix = "duet:thread:"

type RedisStoreOption func(*RedisStore)

// WithRedisKeyPrefix sets the prefix prepended to every thread id.
func WithRedisKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL expires snapshots after ttl. Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// RedisStore keeps one JSON snapshot per thread under prefix+threadID.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore dials addr and pings it before returning.
func NewRedisStore(ctx context.Context, addr string, options ...RedisStoreOption) (*RedisStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis checkpoint store: missing address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, unavailable("ping", err)
	}

	return NewRedisStoreFromClient(rdb, options...), nil
}

func NewRedisStoreFromClient(rdb *goredis.Client, options ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: DefaultRedisKeyPrefix,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

func (s *RedisStore) Load(ctx context.Context, threadID string) (*state.ThreadState, error) {
	if err := checkThreadID(threadID); err != nil {
		return nil, err
	}
	if s == nil || s.rdb == nil {
		return nil, unavailable("load", errors.New("redis checkpoint store not initialized"))
	}

	raw, err := s.rdb.Get(ctx, s.key(threadID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return state.NewThreadState(threadID), nil
	}
	if err != nil {
		return nil, unavailable("load", err)
	}

	ts := &state.ThreadState{}
	if err := json.Unmarshal(raw, ts); err != nil {
		return nil, errors.Wrapf(err, "redis checkpoint store: decode thread %q", threadID)
	}
	return snapshotFor(threadID, ts), nil
}

func (s *RedisStore) Save(ctx context.Context, threadID string, ts *state.ThreadState) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	if s == nil || s.rdb == nil {
		return unavailable("save", errors.New("redis checkpoint store not initialized"))
	}

	raw, err := json.Marshal(snapshotFor(threadID, ts))
	if err != nil {
		return err
	}
	return unavailable("save", s.rdb.Set(ctx, s.key(threadID), raw, s.ttl).Err())
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	if s == nil || s.rdb == nil {
		return unavailable("delete", errors.New("redis checkpoint store not initialized"))
	}
	return unavailable("delete", s.rdb.Del(ctx, s.key(threadID)).Err())
}

func (s *RedisStore) ListThreads(ctx context.Context) ([]string, error) {
	if s == nil || s.rdb == nil {
		return nil, unavailable("list", errors.New("redis checkpoint store not initialized"))
	}
	ids := []string{}
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
var _ Lister = (*RedisStore)(nil)
var _ Deleter = (*RedisStore)(nil)
