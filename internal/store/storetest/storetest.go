// Package storetest holds the behaviour every store.Store driver must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vovakirdan/babble-server/internal/store"
)

// Run exercises a store created by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("follow", func(t *testing.T) { testFollow(t, newStore(t)) })
	t.Run("timeline", func(t *testing.T) { testTimeline(t, newStore(t)) })
	t.Run("high bit keys", func(t *testing.T) { testHighBitKeys(t, newStore(t)) })
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetUser(ctx, 1); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	u, err := s.SaveUser(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("save user: %v", err)
	}
	if u.Key != 1 || u.Name != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}

	// Saving again keeps a single record.
	if _, err := s.SaveUser(ctx, 1, "alice"); err != nil {
		t.Fatalf("save user again: %v", err)
	}
	got, err := s.GetUser(ctx, 1)
	if err != nil || got.Name != "alice" {
		t.Fatalf("get user: %+v %v", got, err)
	}
}

func testFollow(t *testing.T, s store.Store) {
	ctx := context.Background()

	created, err := s.Follow(ctx, 1, 2)
	if err != nil || !created {
		t.Fatalf("first follow: created=%v err=%v", created, err)
	}
	created, err = s.Follow(ctx, 1, 2)
	if err != nil || created {
		t.Fatalf("repeated follow: created=%v err=%v", created, err)
	}
	if _, err := s.Follow(ctx, 3, 2); err != nil {
		t.Fatalf("follow: %v", err)
	}

	n, err := s.CountFollowers(ctx, 2)
	if err != nil || n != 2 {
		t.Fatalf("count followers: %d %v", n, err)
	}
	if n, _ := s.CountFollowers(ctx, 1); n != 0 {
		t.Fatalf("unexpected followers of 1: %d", n)
	}

	following, err := s.ListFollowing(ctx, 1)
	if err != nil || len(following) != 1 || following[0] != 2 {
		t.Fatalf("list following: %v %v", following, err)
	}
}

func testTimeline(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i := range 5 {
		for _, author := range []struct {
			key  uint64
			name string
		}{{1, "alice"}, {2, "bob"}, {3, "carol"}} {
			msg := &store.Message{AuthorKey: author.key, Author: author.name, Body: fmt.Sprintf("%s-%d", author.name, i)}
			if err := s.SaveMessage(ctx, msg); err != nil {
				t.Fatalf("save message: %v", err)
			}
			if msg.ID == 0 {
				t.Fatal("message id not set")
			}
		}
	}

	msgs, err := s.ListTimeline(ctx, []uint64{1, 2}, 4)
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	want := []string{"alice-3", "bob-3", "alice-4", "bob-4"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, m := range msgs {
		if m.Body != want[i] {
			t.Fatalf("position %d: got %q want %q", i, m.Body, want[i])
		}
		if m.CreatedAt.IsZero() {
			t.Fatalf("message %d has no timestamp", m.ID)
		}
	}

	if msgs, _ := s.ListTimeline(ctx, nil, 4); len(msgs) != 0 {
		t.Fatalf("timeline without authors: %d", len(msgs))
	}
}

func testHighBitKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	const big = uint64(1<<63 + 12345)

	if _, err := s.SaveUser(ctx, big, "big"); err != nil {
		t.Fatalf("save user: %v", err)
	}
	u, err := s.GetUser(ctx, big)
	if err != nil || u.Key != big {
		t.Fatalf("round trip key: %+v %v", u, err)
	}

	if _, err := s.Follow(ctx, 7, big); err != nil {
		t.Fatalf("follow: %v", err)
	}
	following, _ := s.ListFollowing(ctx, 7)
	if len(following) != 1 || following[0] != big {
		t.Fatalf("following: %v", following)
	}
}
