package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T, prefix string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "", 0, prefix)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, _ := newTestRedis(t, "")
	exerciseStore(t, s)
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	s, mr := newTestRedis(t, "freshpost:")
	if err := s.Save(context.Background(), "history", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	got, err := mr.Get("freshpost:history")
	if err != nil {
		t.Fatalf("key not written under prefix: %v", err)
	}
	if got != "{}" {
		t.Errorf("value = %q", got)
	}
}

func TestNewRedisStore_RequiresAddress(t *testing.T) {
	if _, err := NewRedisStore("", "", 0, ""); err == nil {
		t.Error("expected error for empty address")
	}
}
