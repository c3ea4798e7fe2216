package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var errStaleSnapshot = errors.New("cache: tag invalidated since snapshot")

// RedisStore keeps entries as plain string keys, each tag as a set of entry
// keys, and each tag generation as a counter. Generation counters carry no
// TTL: an expired counter would reset and let an old snapshot match again.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cache"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) entryKey(key string) string { return s.prefix + ":entry:" + key }
func (s *RedisStore) tagKey(tag string) string   { return s.prefix + ":tag:" + tag }
func (s *RedisStore) genKey(tag string) string   { return s.prefix + ":gen:" + tag }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return body, true, nil
}

func (s *RedisStore) Snapshot(ctx context.Context, tags []string) (Snapshot, error) {
	snap, err := s.generations(ctx, s.client, tags)
	if err != nil {
		return nil, fmt.Errorf("cache snapshot: %w", err)
	}
	return snap, nil
}

// Set watches the generation counters of snap, so an InvalidateTag landing
// between the check and the write aborts the transaction.
func (s *RedisStore) Set(ctx context.Context, key string, body []byte, snap Snapshot) (bool, error) {
	tags := make([]string, 0, len(snap))
	genKeys := make([]string, 0, len(snap))
	for tag := range snap {
		tags = append(tags, tag)
		genKeys = append(genKeys, s.genKey(tag))
	}

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.generations(ctx, tx, tags)
		if err != nil {
			return err
		}
		for tag, gen := range snap {
			if current[tag] != gen {
				return errStaleSnapshot
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.entryKey(key), body, s.ttl)
			for _, tag := range tags {
				pipe.SAdd(ctx, s.tagKey(tag), key)
				if s.ttl > 0 {
					// the set never outlives the newest entry it points at
					pipe.Expire(ctx, s.tagKey(tag), s.ttl)
				}
			}
			return nil
		})
		return err
	}, genKeys...)

	switch {
	case errors.Is(err, errStaleSnapshot), errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache set %s: %w", key, err)
	}
	return true, nil
}

// InvalidateTag bumps the generation before collecting members. Any Set that
// commits first is visible to SMEMBERS; any later one fails its check. Only
// the collected members are removed from the set, so an entry added in
// between keeps its tag.
func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) (int, error) {
	if err := s.client.Incr(ctx, s.genKey(tag)).Err(); err != nil {
		return 0, fmt.Errorf("cache bump generation %s: %w", tag, err)
	}

	tagKey := s.tagKey(tag)
	keys, err := s.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return 0, fmt.Errorf("cache tag members %s: %w", tag, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	entryKeys := make([]string, 0, len(keys))
	members := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		entryKeys = append(entryKeys, s.entryKey(k))
		members = append(members, k)
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, entryKeys...)
		pipe.SRem(ctx, tagKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache invalidate %s: %w", tag, err)
	}
	return int(removed.Val()), nil
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (s *RedisStore) generations(ctx context.Context, c mgetter, tags []string) (Snapshot, error) {
	snap := make(Snapshot, len(tags))
	if len(tags) == 0 {
		return snap, nil
	}

	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = s.genKey(tag)
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range vals {
		var gen int64
		if str, ok := v.(string); ok {
			gen, err = strconv.ParseInt(str, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("generation %s: %w", tags[i], err)
			}
		}
		snap[tags[i]] = gen
	}
	return snap, nil
}
