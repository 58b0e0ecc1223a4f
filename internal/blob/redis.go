package blob

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisをバックエンドとするBlobストアです。
// TTLの強制はRedis自身が行うため、明示的なガベージコレクションは持ちません。
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Set はキーにペイロードをTTL付きで保存します。
func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, data, ttl).Err()
}

// SetMulti は複数エントリをトランザクションパイプラインで一括保存します。
func (s *RedisStore) SetMulti(ctx context.Context, entries []Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	for _, e := range entries {
		pipe.Set(ctx, e.Key, e.Data, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Get はキーのペイロードを取得します。存在しない場合は (nil, nil) を返します。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// GetDel はGETDELによる取得と削除のアトミックな組み合わせです。
func (s *RedisStore) GetDel(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.GetDel(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete は複数キーを削除します。
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}
