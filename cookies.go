package tiktok

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
)

var tiktokURL, _ = url.Parse("https://www.tiktok.com")

// GetCookies returns the current session cookies for tiktok.com.
func (a *API) GetCookies() []*http.Cookie {
	return a.client.Jar.Cookies(tiktokURL)
}

// SetCookies sets session cookies and extracts the msToken.
func (a *API) SetCookies(cookies []*http.Cookie) {
	a.client.Jar.SetCookies(tiktokURL, cookies)
	for _, c := range cookies {
		if c.Name == "msToken" {
			a.msToken = c.Value
		}
	}
}

// SaveCookies writes session cookies to a JSON file, so a later session can
// reuse them instead of starting cold.
func (a *API) SaveCookies(path string) error {
	data, err := json.Marshal(a.GetCookies())
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCookies reads cookies from a JSON file and sets them on the client.
func (a *API) LoadCookies(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cookies file: %w", err)
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("unmarshal cookies: %w", err)
	}
	a.SetCookies(cookies)
	return nil
}
