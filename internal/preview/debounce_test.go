package preview

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerCoalescesToLatestPayload(t *testing.T) {
	var mu sync.Mutex
	var delivered []string

	d := NewDebouncer(200*time.Millisecond, func(p string) {
		mu.Lock()
		delivered = append(delivered, p)
		mu.Unlock()
	})

	// Three pushes inside one window must produce exactly one delivery
	// carrying the final payload.
	d.Push("first")
	time.Sleep(40 * time.Millisecond)
	d.Push("second")
	time.Sleep(40 * time.Millisecond)
	d.Push("final")

	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 {
		t.Fatalf("delivered %d payloads, want 1: %v", len(delivered), delivered)
	}
	if delivered[0] != "final" {
		t.Fatalf("delivered %q, want %q", delivered[0], "final")
	}
}

func TestDebouncerStopDropsPending(t *testing.T) {
	var mu sync.Mutex
	count := 0

	d := NewDebouncer(50*time.Millisecond, func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	d.Push(1)
	d.Stop()

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("delivered %d payloads after Stop, want 0", count)
	}
}

func TestDebouncerFlushDeliversImmediately(t *testing.T) {
	ch := make(chan int, 1)
	d := NewDebouncer(time.Hour, func(v int) { ch <- v })
	d.Push(7)
	d.Flush()

	select {
	case got := <-ch:
		if got != 7 {
			t.Fatalf("flushed %d, want 7", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("Flush did not deliver")
	}

	// Nothing pending afterwards.
	d.Flush()
	select {
	case v := <-ch:
		t.Fatalf("second Flush delivered %d, want nothing", v)
	case <-time.After(50 * time.Millisecond):
	}
}
