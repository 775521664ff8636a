package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTTLSetGet(t *testing.T) {
	c := NewTTL[string](time.Minute, 0)
	defer c.Stop()

	c.Set("a", "one")
	got, ok := c.Get("a")
	if !ok || got != "one" {
		t.Fatalf("Get(a) = %q/%v, want one/true", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("missing key reported present")
	}
	if !c.Has("a") || c.Has("missing") {
		t.Fatal("Has disagrees with Get")
	}
}

func TestTTLLazyExpiry(t *testing.T) {
	c := NewTTL[int](time.Minute, 0)
	defer c.Stop()

	c.SetWithTTL("short", 1, 5*time.Millisecond)
	c.Set("long", 2)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Fatal("expired entry served")
	}
	// The expired entry is removed on read, not just hidden.
	if c.Len() != 1 {
		t.Fatalf("Len = %d after lazy expiry, want 1", c.Len())
	}
	if v, ok := c.Get("long"); !ok || v != 2 {
		t.Fatal("live entry lost")
	}
}

func TestTTLSweep(t *testing.T) {
	c := NewTTL[int](time.Minute, 10*time.Millisecond)
	defer c.Stop()

	c.SetWithTTL("a", 1, time.Millisecond)
	c.SetWithTTL("b", 2, time.Millisecond)

	deadline := time.After(2 * time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweep left %d entries", c.Len())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestTTLClearOwner(t *testing.T) {
	c := NewTTL[bool](time.Minute, 0)
	defer c.Stop()

	c.Set("u1", true)
	c.Set("u1-s1-users-read", true)
	c.Set("u1-bulk-s1-abc", true)
	c.Set("u10-s1-users-read", true)
	c.Set("u2-s1-users-read", true)

	c.ClearOwner("u1")
	if c.Len() != 2 {
		t.Fatalf("Len = %d after ClearOwner, want 2", c.Len())
	}
	if !c.Has("u10-s1-users-read") || !c.Has("u2-s1-users-read") {
		t.Fatal("ClearOwner evicted another owner's entries")
	}
	if c.Has("u1") || c.Has("u1-s1-users-read") || c.Has("u1-bulk-s1-abc") {
		t.Fatal("ClearOwner left the owner's entries")
	}
}

func TestTTLClear(t *testing.T) {
	c := NewTTL[int](time.Minute, 0)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len = %d after Clear, want 0", c.Len())
	}
}

func TestTTLConcurrentAccess(t *testing.T) {
	c := NewTTL[int](2*time.Millisecond, time.Millisecond)
	defer c.Stop()

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("u%d", n)
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%s-s1-users-read-%d", owner, i%10)
				c.SetWithTTL(key, i, time.Duration(i%3)*time.Millisecond)
				c.Get(key)
				c.Has(key)
				if i%50 == 0 {
					c.ClearOwner(owner)
				}
			}
		}(n)
	}
	wg.Wait()

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len = %d after concurrent access and Clear, want 0", c.Len())
	}
}

func TestTTLOverwrite(t *testing.T) {
	c := NewTTL[int](time.Minute, 0)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("Get(a) = %d after overwrite, want 2", v)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d after overwrite, want 1", c.Len())
	}
}
