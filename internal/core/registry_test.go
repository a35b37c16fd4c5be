package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRegistryInsertLookupRemove(t *testing.T) {
	reg := NewRegistry(4)

	alice := bundle("alice")
	if err := reg.Insert(alice); err != nil {
		t.Fatalf("insert alice: %v", err)
	}

	got, ok := reg.Lookup(alice.Key)
	if !ok || got != alice {
		t.Fatalf("lookup alice: got %+v, %v", got, ok)
	}

	removed, err := reg.Remove(alice.Key)
	if err != nil {
		t.Fatalf("remove alice: %v", err)
	}
	if removed != alice {
		t.Fatalf("removed wrong bundle: %+v", removed)
	}
	if _, ok := reg.Lookup(alice.Key); ok {
		t.Fatal("alice still registered after remove")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}

func TestRegistryDuplicateKeyLeavesRegistryUnchanged(t *testing.T) {
	reg := NewRegistry(4)
	first := bundle("alice")
	if err := reg.Insert(first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := bundle("alice")
	err := reg.Insert(second)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	got, _ := reg.Lookup(first.Key)
	if got != first || reg.Len() != 1 {
		t.Fatalf("registry changed by rejected insert: len=%d got=%p want=%p", reg.Len(), got, first)
	}
}

func TestRegistryKeyCollisionNamesHolder(t *testing.T) {
	reg := NewRegistry(4)
	if err := reg.Insert(bundle("alice")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	clash := &ClientBundle{Key: KeyFor("alice"), Name: "mallory", Conn: nopConn{addr: "mallory"}}
	err := reg.Insert(clash)
	if !errors.Is(err, ErrKeyCollision) || !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected key collision, got %v", err)
	}
	if !strings.Contains(err.Error(), `held by "alice"`) {
		t.Fatalf("error does not name the holder: %v", err)
	}
	if ce := AsCoreError(err); ce.Code != ErrCodeAlreadyRegistered {
		t.Fatalf("unexpected code %q", ce.Code)
	}

	// same name is a plain duplicate
	if err := reg.Insert(bundle("alice")); errors.Is(err, ErrKeyCollision) || !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected plain duplicate, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry changed: len=%d", reg.Len())
	}
}

func TestRegistryFull(t *testing.T) {
	reg := NewRegistry(3)
	names := []string{"alice", "bob", "carol"}
	for _, n := range names {
		if err := reg.Insert(bundle(n)); err != nil {
			t.Fatalf("insert %s: %v", n, err)
		}
	}

	if err := reg.Insert(bundle("dave")); !errors.Is(err, ErrRegistryFull) {
		t.Fatalf("expected ErrRegistryFull, got %v", err)
	}

	for _, n := range names {
		b, ok := reg.Lookup(KeyFor(n))
		if !ok || b.Name != n {
			t.Fatalf("existing entry %s corrupted: %+v", n, b)
		}
	}

	// A freed slot can be reused.
	if _, err := reg.Remove(KeyFor("bob")); err != nil {
		t.Fatalf("remove bob: %v", err)
	}
	if err := reg.Insert(bundle("dave")); err != nil {
		t.Fatalf("insert dave after remove: %v", err)
	}
}

func TestRegistryRemoveUnknown(t *testing.T) {
	reg := NewRegistry(2)
	if err := reg.Insert(bundle("alice")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := reg.Remove(KeyFor("ghost"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("remove of unknown key changed registry: len=%d", reg.Len())
	}
}

func TestRegistryRemoveMovesLastEntry(t *testing.T) {
	reg := NewRegistry(4)
	for _, n := range []string{"a", "b", "c", "d"} {
		if err := reg.Insert(bundle(n)); err != nil {
			t.Fatalf("insert %s: %v", n, err)
		}
	}

	if _, err := reg.Remove(KeyFor("a")); err != nil {
		t.Fatalf("remove a: %v", err)
	}

	for _, n := range []string{"b", "c", "d"} {
		if b, ok := reg.Lookup(KeyFor(n)); !ok || b.Name != n {
			t.Fatalf("lookup %s after swap: %+v %v", n, b, ok)
		}
	}
	if len(reg.Snapshot()) != 3 {
		t.Fatalf("unexpected snapshot size %d", len(reg.Snapshot()))
	}
}

func TestRegistryReset(t *testing.T) {
	reg := NewRegistry(2)
	_ = reg.Insert(bundle("a"))
	_ = reg.Insert(bundle("b"))

	reg.Reset()

	if reg.Len() != 0 || reg.Cap() != 2 {
		t.Fatalf("reset: len=%d cap=%d", reg.Len(), reg.Cap())
	}
	if err := reg.Insert(bundle("a")); err != nil {
		t.Fatalf("insert after reset: %v", err)
	}
}

// Every error branch is hammered concurrently; a leaked lock shows up as a
// hang caught by mustFinish.
func TestRegistryErrorPathsReleaseLocks(t *testing.T) {
	const (
		capacity   = 8
		goroutines = 16
		rounds     = 2000
	)
	reg := NewRegistry(capacity)
	for i := range capacity {
		if err := reg.Insert(bundle(fmt.Sprintf("fixed-%d", i))); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	mustFinish(t, 10*time.Second, "concurrent registry errors", func() {
		var wg sync.WaitGroup
		for g := range goroutines {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := range rounds {
					dup := bundle(fmt.Sprintf("fixed-%d", i%capacity))
					if err := reg.Insert(dup); !errors.Is(err, ErrAlreadyRegistered) {
						t.Errorf("dup insert: %v", err)
						return
					}
					if err := reg.Insert(bundle(fmt.Sprintf("extra-%d-%d", g, i))); !errors.Is(err, ErrRegistryFull) {
						t.Errorf("full insert: %v", err)
						return
					}
					if _, err := reg.Remove(KeyFor(fmt.Sprintf("ghost-%d", i))); !errors.Is(err, ErrNotFound) {
						t.Errorf("ghost remove: %v", err)
						return
					}
					if _, ok := reg.Lookup(KeyFor("fixed-0")); !ok {
						t.Errorf("lookup fixed-0 failed")
						return
					}
				}
			}(g)
		}
		wg.Wait()
	})

	if reg.Len() != capacity {
		t.Fatalf("expected %d entries, got %d", capacity, reg.Len())
	}
}

func TestRegistryConcurrentInsertRemoveKeepsKeysUnique(t *testing.T) {
	reg := NewRegistry(32)

	mustFinish(t, 10*time.Second, "concurrent insert/remove", func() {
		var wg sync.WaitGroup
		for g := range 8 {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := range 500 {
					name := fmt.Sprintf("user-%d", (g+i)%12)
					if err := reg.Insert(bundle(name)); err == nil {
						_, _ = reg.Remove(KeyFor(name))
					}
				}
			}(g)
		}
		wg.Wait()
	})

	seen := make(map[Key]bool)
	for _, b := range reg.Snapshot() {
		if seen[b.Key] {
			t.Fatalf("duplicate key %s in registry", b.Key)
		}
		seen[b.Key] = true
	}
}
