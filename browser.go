//go:build !unittest

package tiktok

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/devices"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ensureBrowser launches the headless browser on first use. The stealth sign
// page stays loaded on the base URL so the site's signing JS is available.
func (a *API) ensureBrowser(ctx context.Context) error {
	a.browserMu.Lock()
	defer a.browserMu.Unlock()
	if a.browser != nil {
		return nil
	}
	if a.closed.Load() {
		return ErrSessionClosed
	}

	l := launcher.New().Headless(a.headless)
	if a.proxy != "" {
		l = l.Proxy(a.proxy)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: launch: %v", ErrBrowserNotReady, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("%w: connect: %v", ErrBrowserNotReady, err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		return fmt.Errorf("%w: stealth page: %v", ErrBrowserNotReady, err)
	}

	setupResourceBlocking(browser)

	if err := page.Navigate(a.baseURL); err != nil {
		browser.Close()
		return fmt.Errorf("navigate to base url: %w", err)
	}
	if err := page.WaitStable(2 * time.Second); err != nil {
		browser.Close()
		return fmt.Errorf("wait for base page: %w", err)
	}

	// Sync browser cookies (including a fresh msToken) to the HTTP client
	// so hydration requests carry the same session.
	if err := a.syncBrowserCookies(page); err != nil {
		browser.Close()
		return err
	}

	// Fields are assigned only once the browser is fully usable, so a failed
	// launch is retried from scratch on the next call.
	a.browser = browser
	a.signPage = page
	a.signingReady.Store(true)
	return nil
}

// setupResourceBlocking fails requests for static assets the extraction
// never reads.
func setupResourceBlocking(browser *rod.Browser) {
	router := browser.HijackRequests()
	blocked := []string{"*.css", "*.png", "*.jpg", "*.jpeg", "*.mp4", "*.woff*", "*.svg", "*analytics*"}
	for _, pattern := range blocked {
		router.MustAdd(pattern, func(ctx *rod.Hijack) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
}

// newRodPage opens a fresh stealth page with the session's device profile.
func (a *API) newRodPage(ctx context.Context) (browserPage, error) {
	if err := a.ensureBrowser(ctx); err != nil {
		return nil, err
	}

	page, err := stealth.Page(a.browser)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if a.emulateMobile {
		if err := page.Emulate(devices.IPhoneX); err != nil {
			page.Close()
			return nil, fmt.Errorf("emulate mobile device: %w", err)
		}
	} else {
		err := (proto.NetworkSetUserAgentOverride{UserAgent: a.userAgent}).Call(page)
		if err != nil {
			page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	return &rodPage{page: page.Context(ctx)}, nil
}

// rodPage adapts a rod page to the browserPage capability.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(url string) error {
	return p.page.Navigate(url)
}

func (p *rodPage) WaitElement(selector string, timeout time.Duration) error {
	_, err := p.page.Timeout(timeout).Element(selector)
	return err
}

func (p *rodPage) ScrollToBottom() error {
	_, err := p.page.Eval(`() => {
		const el = document.scrollingElement || document.body;
		el.scrollTop = el.scrollHeight;
	}`)
	return err
}

func (p *rodPage) Content() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// OnResponse streams response bodies to fn in network-event order. Body
// retrieval happens off the event goroutine since CDP won't serve bodies
// until the response finishes, so a slot is reserved per event and delivery
// waits until every earlier slot has its body.
func (p *rodPage) OnResponse(fn func(url string, body []byte)) (stop func()) {
	done := make(chan struct{})
	q := &responseQueue{emit: fn}
	go p.page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		select {
		case <-done:
			return true
		default:
		}
		slot := q.reserve(e.Response.URL)
		go func(id proto.NetworkRequestID) {
			result, err := proto.NetworkGetResponseBody{RequestID: id}.Call(p.page)
			if err != nil {
				q.fill(slot, nil)
				return
			}
			body := []byte(result.Body)
			if result.Base64Encoded {
				decoded, err := base64.StdEncoding.DecodeString(result.Body)
				if err != nil {
					q.fill(slot, nil)
					return
				}
				body = decoded
			}
			q.fill(slot, body)
		}(e.RequestID)
		return false
	})()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// responseQueue re-serializes concurrently retrieved response bodies into
// the order their network events fired.
type responseQueue struct {
	mu    sync.Mutex
	slots []*responseSlot
	next  int
	emit  func(url string, body []byte)
}

type responseSlot struct {
	url   string
	body  []byte
	ready bool
}

func (q *responseQueue) reserve(url string) *responseSlot {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := &responseSlot{url: url}
	q.slots = append(q.slots, s)
	return s
}

// fill completes a slot (nil body means retrieval failed, the slot is
// skipped) and emits the contiguous ready prefix.
func (q *responseQueue) fill(s *responseSlot, body []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s.body = body
	s.ready = true
	for q.next < len(q.slots) && q.slots[q.next].ready {
		e := q.slots[q.next]
		q.next++
		if e.body != nil {
			q.emit(e.url, e.body)
		}
	}
}

// signURL calls the site's frontierSign JS to generate the X-Bogus
// signature, returning the original URL with the signed params appended.
// Caller must hold browserMu.
func (a *API) signURL(rawURL string) (string, error) {
	if a.signPage == nil {
		return "", ErrBrowserNotReady
	}
	if err := a.ensureSigningReady(); err != nil {
		return "", fmt.Errorf("ensure signing ready: %w", err)
	}

	page := a.signPage.Timeout(5 * time.Second)
	result, err := page.Eval(`(url) => {
		if (typeof window.byted_acrawler === 'undefined') {
			throw new Error('signing function not available');
		}
		const params = window.byted_acrawler.frontierSign(url);
		if (typeof params === 'string') {
			return params;
		}
		const u = new URL(url);
		for (const [k, v] of Object.entries(params)) {
			u.searchParams.set(k, v);
		}
		return u.toString();
	}`, rawURL)
	if err != nil {
		a.signingReady.Store(false)
		return "", fmt.Errorf("%w: signing failed: %v", ErrAPI, err)
	}
	return result.Value.String(), nil
}

// ensureSigningReady checks that the signing JS is loaded, reloading the
// sign page only after a previous failure.
func (a *API) ensureSigningReady() error {
	if a.signingReady.Load() {
		return nil
	}

	result, err := a.signPage.Timeout(3 * time.Second).Eval(`() => typeof window.byted_acrawler !== 'undefined'`)
	if err != nil || !result.Value.Bool() {
		if err := a.signPage.Navigate(a.baseURL); err != nil {
			return fmt.Errorf("reload for signing: %w", err)
		}
		if err := a.signPage.WaitStable(2 * time.Second); err != nil {
			return fmt.Errorf("wait after reload: %w", err)
		}
	}

	a.signingReady.Store(true)
	return nil
}

// syncBrowserCookies copies the page's browser cookies to the HTTP client's
// jar.
func (a *API) syncBrowserCookies(page *rod.Page) error {
	cookies, err := page.Cookies([]string{a.baseURL})
	if err != nil {
		return fmt.Errorf("get browser cookies: %w", err)
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: time.Unix(int64(c.Expires), 0),
		})
	}
	a.SetCookies(httpCookies)
	return nil
}

func (a *API) closeBrowser() error {
	a.browserMu.Lock()
	defer a.browserMu.Unlock()
	if a.signPage != nil {
		if err := a.signPage.Close(); err != nil {
			return fmt.Errorf("close sign page: %w", err)
		}
		a.signPage = nil
	}
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
		a.browser = nil
	}
	return nil
}
