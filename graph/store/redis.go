package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of Store.
//
// Each checkpoint is a hash with "version" and "data" fields under
// prefix+threadID, and a sorted set at prefix+"index" orders threads by last
// update. CompareAndSwap runs as a Lua script so the version check and the
// write happen atomically on the server.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	owned  bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix for checkpoints.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithTTL expires checkpoints that have not been written for ttl.
// Zero (the default) keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore connects to Redis at a redis:// URL.
func NewRedisStore(url string, opts ...RedisOption) (*RedisStore, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	s := NewRedisStoreFromClient(backend.NewClient(o), opts...)
	s.owned = true
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. Close does not close a
// client the store did not create.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "agents:checkpoint:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkpoints live under prefix+"thread:" so no thread id can collide with
// the index key.
func (s *RedisStore) key(threadID string) string {
	return s.prefix + "thread:" + threadID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// casScript compares the stored version with ARGV[1] and, on a match, writes
// the new version and document and refreshes the index entry.
//
// KEYS[1] checkpoint hash, KEYS[2] index set.
// ARGV: expected, next version, data, score, thread id, ttl ms.
var casScript = backend.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current then current = '0' end
if tonumber(current) ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[2], 'data', ARGV[3])
local ttl = tonumber(ARGV[6])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[5])
return 1
`)

// Load returns the stored checkpoint for threadID.
func (s *RedisStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	vals, err := s.client.HMGet(ctx, s.key(threadID), "version", "data").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", threadID, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, ErrNotFound
	}
	version, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version of %s: %w", threadID, err)
	}
	cp, err := decode([]byte(fmt.Sprint(vals[1])))
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", threadID, err)
	}
	cp.Version = version
	return cp, nil
}

// CompareAndSwap writes cp when the stored version equals expected.
func (s *RedisStore) CompareAndSwap(ctx context.Context, cp *Checkpoint, expected int64) error {
	next := *cp
	stamp(&next, expected, s.now())
	data, err := encode(&next)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", cp.ThreadID, err)
	}

	ok, err := casScript.Run(ctx, s.client,
		[]string{s.key(cp.ThreadID), s.indexKey()},
		expected, next.Version, data, next.UpdatedAt.UnixMilli(), cp.ThreadID, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", cp.ThreadID, err)
	}
	if ok == 0 {
		return ErrVersionConflict
	}
	*cp = next
	return nil
}

// Delete removes a thread's checkpoint and its index entry.
func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(threadID))
	pipe.ZRem(ctx, s.indexKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", threadID, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the checkpoints matching opts, most recently updated first.
// Index entries whose checkpoint has expired are removed along the way.
func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]*Checkpoint, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	var out []*Checkpoint
	for _, id := range ids {
		cp, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.client.ZRem(ctx, s.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !opts.match(cp) {
			continue
		}
		out = append(out, cp)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Close closes the client if the store created it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
