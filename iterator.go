package tiktok

import (
	"context"
	"iter"
	"sort"

	"golang.org/x/sync/errgroup"
)

// VideoIterator exposes a listing's light video references as a lazy,
// finite, hydrating sequence. References are deduplicated by id at
// construction and yielded in discovery order unless re-sorted. Each value
// is hydrated into a full Video only when pulled, so abandoning the
// iterator costs nothing beyond what was already fetched.
//
// The zero value is not usable; iterators come from User, Challenge, or a
// SortedBy call.
type VideoIterator struct {
	fetch func(context.Context, LightVideo) (*Video, error)
	light []LightVideo
	limit int // 0 = unbounded

	pos int
	cur *Video
	err error
}

func newVideoIterator(fetch func(context.Context, LightVideo) (*Video, error), seeds []LightVideo, limit int) *VideoIterator {
	seen := make(map[string]struct{}, len(seeds))
	light := make([]LightVideo, 0, len(seeds))
	for _, lv := range seeds {
		if _, dup := seen[lv.ID]; dup {
			continue
		}
		seen[lv.ID] = struct{}{}
		light = append(light, lv)
	}
	return &VideoIterator{fetch: fetch, light: light, limit: limit}
}

// Len reports how many items the iterator will yield at most.
func (it *VideoIterator) Len() int {
	if it.limit > 0 && it.limit < len(it.light) {
		return it.limit
	}
	return len(it.light)
}

// Lights returns a copy of the underlying light references, capped at the
// iterator's limit. Useful for ordering and inspection without hydration.
func (it *VideoIterator) Lights() []LightVideo {
	out := make([]LightVideo, it.Len())
	copy(out, it.light[:it.Len()])
	return out
}

// SortedBy returns a fresh iterator over the same light references, ordered
// by less evaluated on the cheap light fields. Sorting happens before the
// limit is applied, so sort-then-limit equals full-sort-then-truncate.
// Hydration state does not carry over; the new iterator starts from the top.
func (it *VideoIterator) SortedBy(less func(a, b LightVideo) bool, reverse bool) *VideoIterator {
	light := make([]LightVideo, len(it.light))
	copy(light, it.light)
	sort.SliceStable(light, func(i, j int) bool {
		if reverse {
			return less(light[j], light[i])
		}
		return less(light[i], light[j])
	})
	return &VideoIterator{fetch: it.fetch, light: light, limit: it.limit}
}

// Next hydrates and advances to the next video. It returns false when the
// sequence is exhausted or a hydration failed; check Err afterwards.
func (it *VideoIterator) Next(ctx context.Context) bool {
	if it.err != nil || it.pos >= it.Len() {
		return false
	}
	v, err := it.fetch(ctx, it.light[it.pos])
	if err != nil {
		it.err = err
		return false
	}
	it.cur = v
	it.pos++
	return true
}

// Video returns the most recently hydrated video.
func (it *VideoIterator) Video() *Video { return it.cur }

// Err returns the hydration error that stopped iteration, if any.
func (it *VideoIterator) Err() error { return it.err }

// All returns a range-over-func view of the remaining sequence. On a
// hydration failure it yields (nil, err) once and stops.
func (it *VideoIterator) All(ctx context.Context) iter.Seq2[*Video, error] {
	return func(yield func(*Video, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Video(), nil) {
				return
			}
		}
		if it.err != nil {
			yield(nil, it.err)
		}
	}
}

// VideoResult pairs a hydrated video with its hydration error for channel
// consumption.
type VideoResult struct {
	Video *Video
	Err   error
}

// Stream is the asynchronous flavor of iteration: it hydrates up to
// prefetch items concurrently and delivers results on the returned channel
// in discovery order. The channel closes when the sequence is exhausted or
// ctx is done. Stopping reads and cancelling ctx abandons the stream.
func (it *VideoIterator) Stream(ctx context.Context, prefetch int) <-chan VideoResult {
	if prefetch < 1 {
		prefetch = 1
	}
	remaining := make([]LightVideo, it.Len()-it.pos)
	copy(remaining, it.light[it.pos:it.Len()])

	slots := make([]chan VideoResult, len(remaining))
	for i := range slots {
		slots[i] = make(chan VideoResult, 1)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(streamCtx)
	g.SetLimit(prefetch)
	go func() {
		for i := range remaining {
			g.Go(func() error {
				v, err := it.fetch(gctx, remaining[i])
				slots[i] <- VideoResult{Video: v, Err: err}
				return nil
			})
		}
	}()

	out := make(chan VideoResult)
	go func() {
		defer close(out)
		defer cancel()
		for i := range slots {
			select {
			case r := <-slots[i]:
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
				if r.Err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
