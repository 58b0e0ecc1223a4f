package blob

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	data, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected payload: %q", data)
	}

	data, err = store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil for missing key, got %q", data)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	if err := store.Set(ctx, "k1", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	now = now.Add(59 * time.Minute)
	data, _ := store.Get(ctx, "k1")
	if data == nil {
		t.Fatal("key expired before its TTL")
	}

	now = now.Add(2 * time.Minute)
	data, _ = store.Get(ctx, "k1")
	if data != nil {
		t.Fatalf("key readable after TTL: %q", data)
	}
}

func TestMemoryStoreGetDelIsOneTime(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("once"), time.Hour); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	data, err := store.GetDel(ctx, "k1")
	if err != nil {
		t.Fatalf("GetDel returned error: %v", err)
	}
	if string(data) != "once" {
		t.Fatalf("unexpected payload: %q", data)
	}

	data, _ = store.GetDel(ctx, "k1")
	if data != nil {
		t.Fatalf("second GetDel should miss, got %q", data)
	}
}

func TestMemoryStoreSetMultiAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	entries := []Entry{
		{Key: "a", Data: []byte("1")},
		{Key: "b", Data: []byte("2")},
	}
	if err := store.SetMulti(ctx, entries, time.Hour); err != nil {
		t.Fatalf("SetMulti returned error: %v", err)
	}

	if err := store.Delete(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	for _, key := range []string{"a", "b"} {
		if data, _ := store.Get(ctx, key); data != nil {
			t.Fatalf("key %s still readable after delete", key)
		}
	}
}

func TestKeyLayout(t *testing.T) {
	fileKey := FileKey("job-1")
	if !strings.HasPrefix(fileKey, "job:job-1:file:") {
		t.Fatalf("unexpected file key: %s", fileKey)
	}
	if fileKey == FileKey("job-1") {
		t.Fatal("file keys must carry a random suffix")
	}
	if got := ResultKey("job-1"); got != "job:job-1:result" {
		t.Fatalf("unexpected result key: %s", got)
	}
}
