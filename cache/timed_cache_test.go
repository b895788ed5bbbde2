package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dailyyoga/datakit/bus"
	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/sched"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, _ := logger.New(&logger.Config{Level: "debug", Encoding: "console"})
	return log
}

func newTestCache(t *testing.T, maxAge time.Duration) (*TimedCache[string, string], bus.Bus, sched.Scheduler) {
	t.Helper()
	log := testLogger(t)
	b := bus.New(log)
	sch := sched.New(log)
	t.Cleanup(sch.Close)
	t.Cleanup(b.Close)

	c, err := NewTimed[string, string](log, b, sch, &TimedCacheConfig{Name: "test", MaxAge: maxAge})
	if err != nil {
		t.Fatalf("NewTimed failed: %v", err)
	}
	return c, b, sch
}

func TestTimedCacheConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TimedCacheConfig
		wantErr bool
	}{
		{"valid", &TimedCacheConfig{Name: "c"}, false},
		{"valid with max age", &TimedCacheConfig{Name: "c", MaxAge: time.Minute}, false},
		{"missing name", &TimedCacheConfig{}, true},
		{"negative max age", &TimedCacheConfig{Name: "c", MaxAge: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimedCache_PutGet(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()
	ctx := context.Background()

	c.Put("k1", "v1")
	if val, ok, err := c.Get(ctx, "k1"); err != nil || !ok || val != "v1" {
		t.Errorf("Get(k1) = (%q, %v, %v), want (v1, true, nil)", val, ok, err)
	}
	if _, ok, err := c.Get(ctx, "absent"); err != nil || ok {
		t.Errorf("Get(absent) = (_, %v, %v), want (false, nil)", ok, err)
	}
}

func TestTimedCache_MissResolver(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()
	ctx := context.Background()

	var calls atomic.Int32
	c.SetOnMiss(func(ctx context.Context, key string) (string, error) {
		calls.Add(1)
		return "resolved:" + key, nil
	})

	if val, ok, _ := c.Get(ctx, "k1"); !ok || val != "resolved:k1" {
		t.Errorf("Get(k1) = (%q, %v), want resolved:k1", val, ok)
	}
	c.Get(ctx, "k1")
	if n := calls.Load(); n != 1 {
		t.Errorf("resolver ran %d times, want 1", n)
	}
}

func TestTimedCache_ConcurrentMiss_SingleResolution(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()

	var calls atomic.Int32
	c.SetOnMiss(func(ctx context.Context, key string) (string, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "v", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if val, ok, err := c.Get(context.Background(), "k"); err != nil || !ok || val != "v" {
				t.Errorf("Get = (%q, %v, %v)", val, ok, err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("resolver ran %d times, want 1", n)
	}
}

func TestTimedCache_ResolverError(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()
	ctx := context.Background()

	wantErr := errors.New("backend down")
	var calls atomic.Int32
	c.SetOnMiss(func(ctx context.Context, key string) (string, error) {
		calls.Add(1)
		return "", wantErr
	})

	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, wantErr) {
		t.Errorf("Get error = %v, want %v", err, wantErr)
	}
	// Errors are not cached.
	c.Get(ctx, "k")
	if n := calls.Load(); n != 2 {
		t.Errorf("resolver ran %d times, want 2", n)
	}
}

func TestTimedCache_NegativeResult(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()
	ctx := context.Background()

	var calls atomic.Int32
	c.SetOnMiss(func(ctx context.Context, key string) (string, error) {
		calls.Add(1)
		return "", nil
	})

	if val, ok, _ := c.Get(ctx, "k"); !ok || val != "" {
		t.Errorf("Get = (%q, %v), want (\"\", true)", val, ok)
	}
	c.Get(ctx, "k")
	if n := calls.Load(); n != 1 {
		t.Errorf("resolver ran %d times, want 1: negative result not cached", n)
	}
}

func TestTimedCache_Pop(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()

	c.Put("k1", "v1")
	if val, ok := c.Pop("k1"); !ok || val != "v1" {
		t.Errorf("Pop(k1) = (%q, %v), want (v1, true)", val, ok)
	}
	if _, ok := c.Pop("k1"); ok {
		t.Error("second Pop should report absent")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestTimedCache_PopEvents_AbsentKey(t *testing.T) {
	c, b, _ := newTestCache(t, 0)
	defer c.Close()

	var mu sync.Mutex
	var topics []string
	b.Subscribe(bus.TopicAll, func(topic string, fields bus.Fields) {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
	})

	c.Pop("never-stored")

	mu.Lock()
	defer mu.Unlock()
	if len(topics) != 2 || topics[0] != TopicFlush || topics[1] != TopicPop {
		t.Errorf("topics = %v, want [%s %s]", topics, TopicFlush, TopicPop)
	}
}

func TestTimedCache_FlushEventOrder(t *testing.T) {
	c, b, _ := newTestCache(t, 0)
	defer c.Close()

	var mu sync.Mutex
	type event struct {
		topic string
		key   any
		val   any
	}
	var events []event
	b.Subscribe(bus.TopicAll, func(topic string, fields bus.Fields) {
		mu.Lock()
		events = append(events, event{topic, fields["key"], fields["val"]})
		mu.Unlock()
	})

	c.Put("k1", "v1")
	c.Pop("k1")

	mu.Lock()
	defer mu.Unlock()
	want := []event{
		{TopicPut, "k1", "v1"},
		{TopicFlush, "k1", "v1"},
		{TopicPop, "k1", "v1"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(events), len(want), events)
	}
	for i, e := range events {
		if e != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestTimedCache_Flush_KeepsEntry(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()

	var flushed atomic.Int32
	c.SetOnFlush(func(key string, val string) { flushed.Add(1) })

	c.Put("k1", "v1")
	if val, ok := c.Flush("k1"); !ok || val != "v1" {
		t.Errorf("Flush(k1) = (%q, %v), want (v1, true)", val, ok)
	}
	if flushed.Load() != 1 {
		t.Errorf("flush hook ran %d times, want 1", flushed.Load())
	}
	if val, ok, _ := c.Get(context.Background(), "k1"); !ok || val != "v1" {
		t.Errorf("entry removed by Flush: (%q, %v)", val, ok)
	}
}

func TestTimedCache_Clear(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()

	var mu sync.Mutex
	flushed := map[string]int{}
	c.SetOnFlush(func(key string, val string) {
		mu.Lock()
		flushed[key]++
		mu.Unlock()
	})

	c.Put("k1", "v1")
	c.Put("k2", "v2")
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
	mu.Lock()
	defer mu.Unlock()
	if flushed["k1"] != 1 || flushed["k2"] != 1 {
		t.Errorf("flush counts = %v, want one per key", flushed)
	}
}

func TestTimedCache_Eviction(t *testing.T) {
	c, _, _ := newTestCache(t, 100*time.Millisecond)
	defer c.Close()

	var popped atomic.Int32
	c.SetOnFlush(func(key string, val string) { popped.Add(1) })

	c.Put("k1", "v1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Fatal("entry not evicted within deadline")
	}
	if popped.Load() != 1 {
		t.Errorf("flush hook ran %d times, want 1", popped.Load())
	}
}

func TestTimedCache_HitDefersEviction(t *testing.T) {
	c, _, _ := newTestCache(t, 200*time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	c.Put("k1", "v1")

	// Keep hitting for longer than max age; the entry must survive.
	for i := 0; i < 15; i++ {
		time.Sleep(20 * time.Millisecond)
		if _, ok, _ := c.Get(ctx, "k1"); !ok {
			t.Fatalf("entry evicted despite hits (iteration %d)", i)
		}
	}
}

func TestTimedCache_KeysValues(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()

	c.Put("k1", "v1")
	c.Put("k2", "v2")

	keys := c.Keys()
	vals := c.Values()
	if len(keys) != 2 || len(vals) != 2 {
		t.Errorf("Keys/Values lengths = %d/%d, want 2/2", len(keys), len(vals))
	}
}

func TestTimedCache_Close_PopsAll(t *testing.T) {
	c, _, _ := newTestCache(t, 0)

	var mu sync.Mutex
	flushed := map[string]string{}
	c.SetOnFlush(func(key string, val string) {
		mu.Lock()
		flushed[key] = val
		mu.Unlock()
	})

	c.Put("k1", "v1")
	c.Put("k2", "v2")
	c.Close()
	c.Close() // idempotent

	mu.Lock()
	defer mu.Unlock()
	if flushed["k1"] != "v1" || flushed["k2"] != "v2" {
		t.Errorf("flushed = %v, want both entries", flushed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Close, want 0", c.Len())
	}
}

func TestNewTimed_ConfigErrors(t *testing.T) {
	log := testLogger(t)

	if _, err := NewTimed[string, string](log, nil, nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewTimed[string, string](log, nil, nil, &TimedCacheConfig{}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := NewTimed[string, string](log, nil, nil, &TimedCacheConfig{Name: "c", MaxAge: time.Second}); err == nil {
		t.Error("expected error for max age without scheduler")
	}
}

func TestTimedCache_NoBus(t *testing.T) {
	c, err := NewTimed[int, int](testLogger(t), nil, nil, &TimedCacheConfig{Name: "nobus"})
	if err != nil {
		t.Fatalf("NewTimed failed: %v", err)
	}
	defer c.Close()

	c.Put(1, 10)
	c.Pop(1)
	c.Flush(2)
}

func TestTimedCache_ConcurrentAccess(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				switch j % 4 {
				case 0:
					c.Put(key, "v")
				case 1:
					c.Get(context.Background(), key)
				case 2:
					c.Pop(key)
				default:
					c.Len()
				}
			}
		}(i)
	}
	wg.Wait()
}
