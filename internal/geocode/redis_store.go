package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：Redis 存储（多实例共享缓存）
// 约束：值为 JSON；Redis 端 TTL 仅用于清理，读取时仍以条目内的 ExpiresAt 为准。
type RedisStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisStore(rc *redis.Client) *RedisStore {
	return &RedisStore{rc: rc, prefix: "geocode:"}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	b, err := s.rc.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.rc.Set(ctx, s.prefix+e.Key, b, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rc.Del(ctx, s.prefix+key).Err()
}

// DeleteExpired 用 WATCH 事务比较后删除；事务冲突说明已被并发覆盖，直接放弃
func (s *RedisStore) DeleteExpired(ctx context.Context, key string, expiresAt time.Time) error {
	k := s.prefix + key
	err := s.rc.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		if !e.ExpiresAt.Equal(expiresAt) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, k)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}
