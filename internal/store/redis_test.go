package store

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreFromClient(client)
}

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, newTestRedisStore(t))
}

func TestRedisStoreIsolatesUsers(t *testing.T) {
	s := newTestRedisStore(t)

	for _, userID := range []string{"1", "2"} {
		state := testState(userID)
		if err := s.SaveConversationState(state); err != nil {
			t.Fatalf("save for user %s failed: %v", userID, err)
		}
	}
	if err := s.DeleteConversationState("1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	gone, err := s.GetConversationState("1")
	if err != nil || gone != nil {
		t.Errorf("expected user 1 state gone, got %+v (err %v)", gone, err)
	}
	kept, err := s.GetConversationState("2")
	if err != nil || kept == nil {
		t.Errorf("expected user 2 state kept, got %+v (err %v)", kept, err)
	}
}

func TestNewRedisStoreRequiresAddr(t *testing.T) {
	if _, err := NewRedisStore(); err == nil {
		t.Error("expected error when address is not set")
	}
}
