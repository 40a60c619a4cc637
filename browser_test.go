//go:build !unittest

package tiktok

import (
	"fmt"
	"sync"
	"testing"
)

func TestResponseQueue_EmitsInEventOrder(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var got []string
	q := &responseQueue{emit: func(url string, body []byte) {
		mu.Lock()
		got = append(got, url+"="+string(body))
		mu.Unlock()
	}}

	// Reserve in event order, fill bodies out of order.
	first := q.reserve("a")
	second := q.reserve("b")
	third := q.reserve("c")

	q.fill(third, []byte("3"))
	q.fill(first, []byte("1"))
	q.fill(second, []byte("2"))

	want := []string{"a=1", "b=2", "c=3"}
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResponseQueue_SkipsFailedBodies(t *testing.T) {
	t.Parallel()
	var got []string
	q := &responseQueue{emit: func(url string, body []byte) {
		got = append(got, url)
	}}

	first := q.reserve("a")
	second := q.reserve("b")
	third := q.reserve("c")

	// A failed retrieval must not stall everything queued behind it.
	q.fill(second, nil)
	q.fill(first, []byte("1"))
	q.fill(third, []byte("3"))

	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("emitted %v, want [a c]", got)
	}
}

func TestResponseQueue_ConcurrentFills(t *testing.T) {
	t.Parallel()
	const n = 64
	var mu sync.Mutex
	var got []string
	q := &responseQueue{emit: func(url string, body []byte) {
		mu.Lock()
		got = append(got, url)
		mu.Unlock()
	}}

	slots := make([]*responseSlot, n)
	for i := range slots {
		slots[i] = q.reserve(fmt.Sprint(i))
	}

	var wg sync.WaitGroup
	for i := range slots {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.fill(slots[i], []byte("x"))
		}()
	}
	wg.Wait()

	if len(got) != n {
		t.Fatalf("emitted %d, want %d", len(got), n)
	}
	for i := range got {
		if got[i] != fmt.Sprint(i) {
			t.Errorf("got[%d] = %q, want %q", i, got[i], fmt.Sprint(i))
		}
	}
}
