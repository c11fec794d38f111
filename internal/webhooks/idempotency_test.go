package webhooks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeIdempotencyStore struct {
	keys map[string]bool
	err  error
}

func newFakeStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: map[string]bool{}}
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("pay:idem:%s:%s", scope, id)
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestIdempotencyGuard_DeduplicatesEvents(t *testing.T) {
	store := newFakeStore()
	guard := NewIdempotencyGuard(store, "stripe", nil)
	ctx := context.Background()

	if !guard.CheckAndMark(ctx, "evt_1") {
		t.Fatalf("first delivery must be fresh")
	}
	if guard.CheckAndMark(ctx, "evt_1") {
		t.Fatalf("redelivery must be marked as seen")
	}
	if !guard.CheckAndMark(ctx, "evt_2") {
		t.Fatalf("different event id must be fresh")
	}
}

func TestIdempotencyGuard_ReleaseAllowsRetry(t *testing.T) {
	store := newFakeStore()
	guard := NewIdempotencyGuard(store, "bank", nil)
	ctx := context.Background()

	if !guard.CheckAndMark(ctx, "evt_fail") {
		t.Fatalf("first delivery must be fresh")
	}
	guard.Release(ctx, "evt_fail")
	if !guard.CheckAndMark(ctx, "evt_fail") {
		t.Fatalf("released event must be processable again")
	}
}

func TestIdempotencyGuard_FailsOpen(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("redis down")
	guard := NewIdempotencyGuard(store, "stripe", nil)

	if !guard.CheckAndMark(context.Background(), "evt_x") {
		t.Fatalf("guard must fail open when the store errors")
	}
}

func TestIdempotencyGuard_NilStoreDisablesDedup(t *testing.T) {
	guard := NewIdempotencyGuard(nil, "stripe", nil)
	for i := 0; i < 2; i++ {
		if !guard.CheckAndMark(context.Background(), "evt_y") {
			t.Fatalf("nil store must never block processing")
		}
	}
}
