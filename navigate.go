package tiktok

import (
	"context"
	"fmt"
	"time"
)

// browserPage is the minimal controllable-page capability the scraper needs.
// The production implementation wraps a rod page; tests substitute fakes.
type browserPage interface {
	// Navigate mutates the page's location. It does not wait for readiness.
	Navigate(url string) error
	// WaitElement blocks until the selector is attached or timeout elapses.
	WaitElement(selector string, timeout time.Duration) error
	// OnResponse subscribes fn to network response bodies observed on the
	// page and returns a function that cancels the subscription.
	OnResponse(fn func(url string, body []byte)) (stop func())
	// ScrollToBottom issues one scroll-to-bottom action.
	ScrollToBottom() error
	// Content returns the current serialized HTML of the page.
	Content() (string, error)
	Close() error
}

// navigateOnce performs a single navigation attempt: load the URL and wait
// for the embedded state element to attach. The caller owns retry policy.
func navigateOnce(ctx context.Context, pg browserPage, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitElement("#"+preloadScriptID, timeout); err != nil {
		return fmt.Errorf("wait for embedded state: %w", err)
	}
	return nil
}

// scrollPage issues scroll-to-bottom actions interspersed with short pauses
// until total elapses. Best-effort traffic generation: a failing scroll ends
// the loop early, keeping whatever was already captured. A zero total is a
// no-op.
func scrollPage(ctx context.Context, pg browserPage, total, delay, step time.Duration) {
	if total <= 0 {
		return
	}
	if delay > 0 && !sleepCtx(ctx, delay) {
		return
	}
	deadline := time.Now().Add(total)
	for time.Now().Before(deadline) {
		if err := pg.ScrollToBottom(); err != nil {
			return
		}
		if !sleepCtx(ctx, step) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
