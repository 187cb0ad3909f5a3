package cache

import (
	"context"
	"testing"
	"time"
)

type clock struct {
	at time.Time
}

func (c *clock) now() time.Time { return c.at }

func newTestMemory(ttl time.Duration, size int) (*Memory, *clock) {
	c := &clock{at: time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)}
	m := NewMemory(Config{TTL: ttl, MaxSize: size})
	m.now = c.now
	return m, c
}

func TestMemorySetGetShouldStoreAndRetrieve(t *testing.T) {
	m, _ := newTestMemory(time.Minute, 10)
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte(`{"id":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(value) != `{"id":1}` {
		t.Errorf("unexpected value %s", value)
	}
}

func TestMemoryGetMissingShouldMiss(t *testing.T) {
	m, _ := newTestMemory(time.Minute, 10)
	_, ok, err := m.Get(context.Background(), "nope")
	if ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if m.Stats().Misses != 1 {
		t.Errorf("expected one miss, got %d", m.Stats().Misses)
	}
}

func TestMemoryEntriesExpireAfterTTL(t *testing.T) {
	m, c := newTestMemory(time.Minute, 10)
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"))

	c.at = c.at.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if m.Len() != 0 {
		t.Errorf("expected expired entry to be dropped, size %d", m.Len())
	}
}

func TestMemoryEvictsOldestWhenFull(t *testing.T) {
	m, c := newTestMemory(time.Hour, 2)
	ctx := context.Background()
	_ = m.Set(ctx, "a", []byte("1"))
	c.at = c.at.Add(time.Second)
	_ = m.Set(ctx, "b", []byte("2"))
	c.at = c.at.Add(time.Second)
	_ = m.Set(ctx, "c", []byte("3"))

	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, ok, _ := m.Get(ctx, "c"); !ok {
		t.Fatalf("expected newest entry to be kept")
	}
	if m.Stats().Evictions != 1 {
		t.Errorf("expected one eviction, got %d", m.Stats().Evictions)
	}
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	m, c := newTestMemory(time.Minute, 10)
	ctx := context.Background()
	_ = m.Set(ctx, "old", []byte("1"))
	c.at = c.at.Add(90 * time.Second)
	_ = m.Set(ctx, "fresh", []byte("2"))

	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("expected one entry left, got %d", m.Len())
	}
}

func TestMemoryDeleteAndCopyOnSet(t *testing.T) {
	m, _ := newTestMemory(time.Minute, 10)
	ctx := context.Background()
	value := []byte("abc")
	_ = m.Set(ctx, "k", value)
	value[0] = 'z'

	got, _, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("expected stored copy, got %s", got)
	}
	_ = m.Delete(ctx, "k")
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected deleted entry to miss")
	}
	if m.Stats().Deletes != 1 {
		t.Errorf("expected one delete, got %d", m.Stats().Deletes)
	}
}

func TestRedisWithoutClientIsNotConfigured(t *testing.T) {
	r := NewRedis(nil, "profile", time.Minute)
	if _, _, err := r.Get(context.Background(), "k"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if r.key("abc") != "profile:abc" {
		t.Fatalf("unexpected key %s", r.key("abc"))
	}
}
