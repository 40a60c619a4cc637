//go:build unittest

package tiktok

import "context"

func (a *API) ensureBrowser(ctx context.Context) error {
	return ErrBrowserNotReady
}

func (a *API) newRodPage(ctx context.Context) (browserPage, error) {
	return nil, ErrBrowserNotReady
}

func (a *API) signURL(rawURL string) (string, error) {
	return "", ErrBrowserNotReady
}

func (a *API) closeBrowser() error {
	a.browserMu.Lock()
	defer a.browserMu.Unlock()
	a.signPage = nil
	a.browser = nil
	return nil
}
