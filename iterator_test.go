package tiktok

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func lightFixture(id string, likes int, created int64) LightVideo {
	return LightVideo{
		ID:        id,
		Author:    "someone",
		Stats:     VideoStats{Likes: likes},
		CreatedAt: time.Unix(created, 0),
	}
}

// echoFetch hydrates a light reference into a full video without I/O.
func echoFetch(ctx context.Context, lv LightVideo) (*Video, error) {
	return &Video{LightVideo: lv, Description: "video " + lv.ID}, nil
}

func TestIterator_DeduplicatesSeeds(t *testing.T) {
	t.Parallel()
	seeds := []LightVideo{
		lightFixture("1", 10, 100),
		lightFixture("2", 20, 200),
		lightFixture("1", 10, 100), // overlap between preload and capture
		lightFixture("3", 30, 300),
		lightFixture("2", 20, 200),
	}
	it := newVideoIterator(echoFetch, seeds, 0)

	if it.Len() != 3 {
		t.Fatalf("Len = %d, want 3", it.Len())
	}
	lights := it.Lights()
	for i, want := range []string{"1", "2", "3"} {
		if lights[i].ID != want {
			t.Errorf("lights[%d] = %q, want %q", i, lights[i].ID, want)
		}
	}
}

func TestIterator_LimitCapsYield(t *testing.T) {
	t.Parallel()
	seeds := []LightVideo{
		lightFixture("1", 0, 0),
		lightFixture("2", 0, 0),
		lightFixture("3", 0, 0),
	}
	it := newVideoIterator(echoFetch, seeds, 2)

	if it.Len() != 2 {
		t.Errorf("Len = %d, want 2", it.Len())
	}
	var got []string
	for it.Next(context.Background()) {
		got = append(got, it.Video().ID)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("yielded %v", got)
	}
}

func TestIterator_SortedByAppliesBeforeLimit(t *testing.T) {
	t.Parallel()
	seeds := []LightVideo{
		lightFixture("low", 1, 100),
		lightFixture("high", 9, 200),
		lightFixture("mid", 5, 300),
	}
	byLikes := func(a, b LightVideo) bool { return a.Stats.Likes < b.Stats.Likes }

	// Sorting covers the full underlying list, then the limit truncates, so
	// the single yielded item is the global maximum, not the maximum of an
	// already-truncated prefix.
	it := newVideoIterator(echoFetch, seeds, 1).SortedBy(byLikes, true)

	lights := it.Lights()
	if len(lights) != 1 || lights[0].ID != "high" {
		t.Fatalf("reverse sorted head = %+v, want high", lights)
	}

	asc := newVideoIterator(echoFetch, seeds, 0).SortedBy(byLikes, false)
	got := asc.Lights()
	for i, want := range []string{"low", "mid", "high"} {
		if got[i].ID != want {
			t.Errorf("asc[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestIterator_SortedByLeavesOriginalUntouched(t *testing.T) {
	t.Parallel()
	seeds := []LightVideo{
		lightFixture("b", 2, 0),
		lightFixture("a", 1, 0),
	}
	it := newVideoIterator(echoFetch, seeds, 0)
	_ = it.SortedBy(func(x, y LightVideo) bool { return x.ID < y.ID }, false)

	lights := it.Lights()
	if lights[0].ID != "b" || lights[1].ID != "a" {
		t.Errorf("original order disturbed: %+v", lights)
	}
}

func TestIterator_FetchErrorStopsIteration(t *testing.T) {
	t.Parallel()
	boom := errors.New("hydration failed")
	calls := 0
	fetch := func(ctx context.Context, lv LightVideo) (*Video, error) {
		calls++
		if lv.ID == "2" {
			return nil, boom
		}
		return echoFetch(ctx, lv)
	}
	seeds := []LightVideo{
		lightFixture("1", 0, 0),
		lightFixture("2", 0, 0),
		lightFixture("3", 0, 0),
	}
	it := newVideoIterator(fetch, seeds, 0)

	if !it.Next(context.Background()) {
		t.Fatal("expected first item")
	}
	if it.Next(context.Background()) {
		t.Fatal("expected iteration to stop on fetch error")
	}
	if !errors.Is(it.Err(), boom) {
		t.Errorf("Err = %v, want %v", it.Err(), boom)
	}
	if it.Next(context.Background()) {
		t.Fatal("expected iterator to stay stopped")
	}
	if calls != 2 {
		t.Errorf("expected lazy fetching to stop at the failure, got %d calls", calls)
	}
}

func TestIterator_All(t *testing.T) {
	t.Parallel()
	seeds := []LightVideo{
		lightFixture("1", 0, 0),
		lightFixture("2", 0, 0),
	}
	it := newVideoIterator(echoFetch, seeds, 0)

	var got []string
	for v, err := range it.All(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v.ID)
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("yielded %v", got)
	}
}

func TestIterator_AllYieldsErrorOnce(t *testing.T) {
	t.Parallel()
	boom := errors.New("hydration failed")
	fetch := func(ctx context.Context, lv LightVideo) (*Video, error) {
		return nil, boom
	}
	it := newVideoIterator(fetch, []LightVideo{lightFixture("1", 0, 0)}, 0)

	var errs []error
	for v, err := range it.All(context.Background()) {
		if v != nil {
			t.Errorf("unexpected video %v", v)
		}
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("errs = %v", errs)
	}
}

func TestIterator_StreamPreservesOrder(t *testing.T) {
	t.Parallel()
	// Make earlier items slower than later ones; order must still hold.
	fetch := func(ctx context.Context, lv LightVideo) (*Video, error) {
		if lv.ID == "1" {
			time.Sleep(20 * time.Millisecond)
		}
		return echoFetch(ctx, lv)
	}
	seeds := []LightVideo{
		lightFixture("1", 0, 0),
		lightFixture("2", 0, 0),
		lightFixture("3", 0, 0),
		lightFixture("4", 0, 0),
	}
	it := newVideoIterator(fetch, seeds, 0)

	var got []string
	for r := range it.Stream(context.Background(), 3) {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Video.ID)
	}
	want := []string{"1", "2", "3", "4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIterator_StreamStopsOnError(t *testing.T) {
	t.Parallel()
	boom := errors.New("hydration failed")
	fetch := func(ctx context.Context, lv LightVideo) (*Video, error) {
		if lv.ID == "2" {
			return nil, boom
		}
		return echoFetch(ctx, lv)
	}
	seeds := []LightVideo{
		lightFixture("1", 0, 0),
		lightFixture("2", 0, 0),
		lightFixture("3", 0, 0),
	}
	it := newVideoIterator(fetch, seeds, 0)

	var results []VideoResult
	for r := range it.Stream(context.Background(), 1) {
		results = append(results, r)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (one value, one error), got %d", len(results))
	}
	if results[0].Err != nil || results[0].Video.ID != "1" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("results[1].Err = %v, want %v", results[1].Err, boom)
	}
}

func TestIterator_StreamContextCancel(t *testing.T) {
	t.Parallel()
	fetch := func(ctx context.Context, lv LightVideo) (*Video, error) {
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return echoFetch(ctx, lv)
	}
	seeds := make([]LightVideo, 50)
	for i := range seeds {
		seeds[i] = lightFixture(fmt.Sprint(i), 0, 0)
	}
	it := newVideoIterator(fetch, seeds, 0)

	ctx, cancel := context.WithCancel(context.Background())
	ch := it.Stream(ctx, 2)
	<-ch
	cancel()

	// The channel must close promptly instead of delivering all 50 items.
	received := 1
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if received == 50 {
					t.Error("expected cancellation to cut the stream short")
				}
				return
			}
			received++
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}
