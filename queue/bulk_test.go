package queue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBulk_PutExtendFIFO(t *testing.T) {
	q := NewBulk[int](testLogger(t), nil)
	defer q.Close()

	q.Put(1)
	q.Extend([]int{2, 3})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got := q.Get(ctx)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBulk_GetDrainsAll(t *testing.T) {
	q := NewBulk[string](testLogger(t), nil)
	defer q.Close()

	q.Extend([]string{"a", "b", "c"})

	if got := q.Get(context.Background()); len(got) != 3 {
		t.Fatalf("expected full drain of 3 items, got %d", len(got))
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty after drain, len = %d", q.Len())
	}
}

func TestBulk_GetTimeoutEmpty(t *testing.T) {
	q := NewBulk[string](testLogger(t), nil)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := q.Get(ctx)
	elapsed := time.Since(start)

	if got != nil {
		t.Fatalf("expected nil on timeout, got %v", got)
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("Get returned too early: %v", elapsed)
	}
}

func TestBulk_Abandoned(t *testing.T) {
	q := NewBulk[string](testLogger(t), nil)
	defer q.Close()

	if q.Abandoned(2 * time.Second) {
		t.Error("fresh queue should not be abandoned")
	}

	time.Sleep(20 * time.Millisecond)
	if !q.Abandoned(10 * time.Millisecond) {
		t.Error("queue with no drains past the threshold should be abandoned")
	}
}

func TestBulk_AbandonedResetByGet(t *testing.T) {
	q := NewBulk[string](testLogger(t), nil)
	defer q.Close()

	time.Sleep(20 * time.Millisecond)
	q.Put("x")
	q.Get(context.Background())

	if q.Abandoned(10 * time.Millisecond) {
		t.Error("a successful drain should reset the abandonment clock")
	}
}

func TestBulk_HibernateNonDestructive(t *testing.T) {
	var sink bytes.Buffer
	q := NewBulk[string](testLogger(t), nil)
	defer q.Close()

	q.Extend([]string{"foo", "bar"})
	if err := q.Hibernate(&sink); err != nil {
		t.Fatalf("Hibernate failed: %v", err)
	}

	q.Put("baz")
	q.Extend([]string{"faz"})

	got := q.Get(context.Background())
	want := []string{"foo", "bar", "baz", "faz"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	// The next drain sees only what came after.
	q.Put("baz")
	if got := q.Get(context.Background()); len(got) != 1 {
		t.Fatalf("expected exactly one item, got %v", got)
	}
}

func TestBulk_HibernateSnapshotContent(t *testing.T) {
	var sink bytes.Buffer
	q := NewBulk[string](testLogger(t), nil)
	defer q.Close()

	q.Extend([]string{"foo", "bar"})
	if err := q.Hibernate(&sink); err != nil {
		t.Fatalf("Hibernate failed: %v", err)
	}

	var decoded []string
	scanner := bufio.NewScanner(&sink)
	for scanner.Scan() {
		var s string
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			t.Fatalf("bad snapshot line %q: %v", scanner.Text(), err)
		}
		decoded = append(decoded, s)
	}

	if len(decoded) != 2 || decoded[0] != "foo" || decoded[1] != "bar" {
		t.Errorf("expected snapshot [foo bar], got %v", decoded)
	}
}

func TestBulk_GobEncoder(t *testing.T) {
	var sink bytes.Buffer
	q := NewBulk[int](testLogger(t), &Config[int]{Encoder: GobEncoder[int]{}})
	defer q.Close()

	q.Extend([]int{1, 2, 3})
	if err := q.Hibernate(&sink); err != nil {
		t.Fatalf("Hibernate failed: %v", err)
	}
	if sink.Len() == 0 {
		t.Error("expected gob bytes in sink")
	}
	if q.Len() != 3 {
		t.Errorf("hibernation must not drain, len = %d", q.Len())
	}
}

func TestBulk_ExtendAtomicUnderConcurrency(t *testing.T) {
	q := NewBulk[int](testLogger(t), nil)
	defer q.Close()

	// Each batch is strictly increasing; atomicity means every batch
	// appears as a contiguous run in drain order.
	const writers = 4
	const batches = 25
	const batchLen = 5

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for b := 0; b < batches; b++ {
				base := (w*batches + b) * batchLen
				batch := make([]int, batchLen)
				for i := range batch {
					batch[i] = base + i
				}
				q.Extend(batch)
			}
		}(w)
	}
	wg.Wait()

	var all []int
	for q.Len() > 0 {
		all = append(all, q.Get(context.Background())...)
	}

	if len(all) != writers*batches*batchLen {
		t.Fatalf("expected %d items, got %d", writers*batches*batchLen, len(all))
	}
	for i := 0; i < len(all); i += batchLen {
		base := all[i]
		if base%batchLen != 0 {
			t.Fatalf("batch boundary broken at index %d: %v", i, all[i:i+batchLen])
		}
		for j := 1; j < batchLen; j++ {
			if all[i+j] != base+j {
				t.Fatalf("batch interleaved at index %d: %v", i+j, all[i:i+batchLen])
			}
		}
	}
}

func TestBulk_CloseReturnsLeftovers(t *testing.T) {
	q := NewBulk[string](testLogger(t), nil)

	q.Extend([]string{"a", "b"})
	q.Close()

	if got := q.Get(context.Background()); len(got) != 2 {
		t.Fatalf("expected leftovers after close, got %v", got)
	}
	if got := q.Get(context.Background()); got != nil {
		t.Fatalf("expected nil once drained, got %v", got)
	}
}
