package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestKeyCache_Get(t *testing.T) {
	var calls atomic.Int32
	c := NewKeyCache(func(k string) string {
		calls.Add(1)
		return strings.ToUpper(k)
	})

	if got := c.Get("abc"); got != "ABC" {
		t.Errorf("Get(abc) = %q, want ABC", got)
	}
	c.Get("abc")
	if n := calls.Load(); n != 1 {
		t.Errorf("lookup ran %d times, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestKeyCache_Put(t *testing.T) {
	c := NewKeyCache(func(k string) string { return "looked-up" })

	c.Put("k", "pinned")
	if got := c.Get("k"); got != "pinned" {
		t.Errorf("Get(k) = %q, want pinned", got)
	}
}

func TestKeyCache_Pop(t *testing.T) {
	var calls atomic.Int32
	c := NewKeyCache(func(k string) int {
		return int(calls.Add(1))
	})

	c.Get("k")
	if val, ok := c.Pop("k"); !ok || val != 1 {
		t.Errorf("Pop(k) = (%d, %v), want (1, true)", val, ok)
	}
	if _, ok := c.Pop("k"); ok {
		t.Error("Pop of absent key should report false")
	}
	if got := c.Get("k"); got != 2 {
		t.Errorf("Get after Pop = %d, want fresh lookup 2", got)
	}
}

func TestKeyCache_ConcurrentGet(t *testing.T) {
	var calls atomic.Int32
	c := NewKeyCache(func(k string) string {
		calls.Add(1)
		return k
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Get("k")
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("lookup ran %d times, want 1", n)
	}
}
