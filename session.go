package tiktok

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

// defaultTransport returns an http.Transport tuned for scraping: connection
// pooling, keep-alive, and TLS handshake caching.
func defaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// SetProxy configures an HTTP/HTTPS or SOCKS5 proxy for both the hydration
// HTTP client and the browser (applied at launch). Connection pooling
// settings are preserved.
func (a *API) SetProxy(proxyAddr string) error {
	if proxyAddr == "" {
		a.client.Transport = defaultTransport()
		a.proxy = ""
		return nil
	}

	u, err := url.Parse(proxyAddr)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	base := defaultTransport()

	switch u.Scheme {
	case "http", "https":
		base.Proxy = http.ProxyURL(u)
		a.client.Transport = base
	case "socks5":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 proxy: %w", err)
		}
		dc, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return fmt.Errorf("socks5: context dialer not supported")
		}
		base.DialContext = dc.DialContext
		a.client.Transport = base
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}

	a.proxy = proxyAddr
	return nil
}

// doRequest builds and executes an HTTP request with standard TikTok
// headers, sharing the session's cookie jar with the browser.
func (a *API) doRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.tiktok.com/")
	req.Header.Set("Origin", "https://www.tiktok.com")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrAPI, resp.StatusCode, urlStr)
	}
	return resp, nil
}

// throttleHydrate enforces a minimum delay plus jitter between hydration
// HTTP requests so per-item fetching doesn't hammer the site. Cancelling ctx
// interrupts the wait.
func (a *API) throttleHydrate(ctx context.Context) error {
	a.hydrateMu.Lock()
	defer a.hydrateMu.Unlock()
	if a.hydrateDelay == 0 {
		return ctx.Err()
	}
	elapsed := time.Since(a.lastHydrate)
	jitter := time.Duration(rand.Int64N(int64(250 * time.Millisecond)))
	if wait := a.hydrateDelay + jitter - elapsed; wait > 0 {
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
	a.lastHydrate = time.Now()
	return nil
}
