package blob

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore はテストとローカル開発用のインメモリBlobストアです。
// RedisStore と同じTTLセマンティクスを、差し替え可能な時計で再現します。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替えます（TTLのテスト用）。
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Set はキーにペイロードをTTL付きで保存します。
func (s *MemoryStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.SetMulti(ctx, []Entry{{Key: key, Data: data}}, ttl)
}

// SetMulti は複数エントリを一括保存します。ロック中に行うため部分書き込みは起きません。
func (s *MemoryStore) SetMulti(_ context.Context, entries []Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	for _, e := range entries {
		buf := make([]byte, len(e.Data))
		copy(buf, e.Data)
		s.entries[e.Key] = memEntry{data: buf, expiresAt: expires}
	}
	return nil
}

// Get はキーのペイロードを取得します。期限切れのキーは存在しないものとして扱います。
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key, false), nil
}

// GetDel は取得と削除を一度に行います。
func (s *MemoryStore) GetDel(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key, true), nil
}

// Delete は複数キーを削除します。
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// Len は期限切れを除いた保持キー数を返します。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.entries {
		if s.getLocked(key, false) != nil {
			n++
		}
	}
	return n
}

func (s *MemoryStore) getLocked(key string, remove bool) []byte {
	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	if remove {
		delete(s.entries, key)
	}
	buf := make([]byte, len(entry.data))
	copy(buf, entry.data)
	return buf
}
