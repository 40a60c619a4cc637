package tiktok

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"
)

// Listing endpoints the page calls while scrolling. Matching is by URL path
// only; pagination cursors live in the query string and vary per call.
const (
	patternPostItems      = "/api/post/item_list/"
	patternChallengeItems = "/api/challenge/item_list/"
	patternCommentList    = "/api/comment/list/"
)

var defaultEndpointPatterns = []string{
	patternPostItems,
	patternChallengeItems,
	patternCommentList,
}

// capture is one buffered response body, tagged with the pattern it matched.
type capture struct {
	pattern string
	body    json.RawMessage
}

// interceptor buffers JSON bodies of listing API responses observed on a
// page between Start and Stop. Arrival order is preserved. There is no
// guarantee of completeness: only responses landing inside the active window
// are kept, and anything arriving after Stop is ignored.
type interceptor struct {
	patterns []string
	warn     func(WarningCategory, error, string)

	mu       sync.Mutex
	active   bool
	captures []capture
}

func newInterceptor(patterns []string, warn func(WarningCategory, error, string)) *interceptor {
	if warn == nil {
		warn = func(WarningCategory, error, string) {}
	}
	return &interceptor{patterns: patterns, warn: warn}
}

// Start begins buffering. Must be called before the UI action that triggers
// the listing calls.
func (ic *interceptor) Start() {
	ic.mu.Lock()
	ic.active = true
	ic.mu.Unlock()
}

// Stop ends the window and returns everything captured, in arrival order.
func (ic *interceptor) Stop() []capture {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.active = false
	out := ic.captures
	ic.captures = nil
	return out
}

// observe feeds one network response into the buffer. Responses outside the
// Start/Stop window are ignored entirely; in-window non-matching URLs are
// dropped silently and malformed bodies with a warning, since the latter
// usually signals wire-format drift.
func (ic *interceptor) observe(rawURL string, body []byte) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if !ic.active {
		return
	}
	pattern, ok := ic.match(rawURL)
	if !ok {
		return
	}
	if !json.Valid(body) {
		ic.warn(WarnSchema, nil, "dropping malformed response body from "+pattern)
		return
	}
	ic.captures = append(ic.captures, capture{pattern: pattern, body: json.RawMessage(body)})
}

func (ic *interceptor) match(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	for _, p := range ic.patterns {
		if strings.Contains(u.Path, p) {
			return p, true
		}
	}
	return "", false
}

// decodeCaptures parses buffered bodies into listing responses. A body that
// fails to decode is skipped with a warning, never fatal.
func decodeCaptures(captures []capture, warn func(WarningCategory, error, string)) []apiResponse {
	out := make([]apiResponse, 0, len(captures))
	for _, c := range captures {
		var resp apiResponse
		if err := json.Unmarshal(c.body, &resp); err != nil {
			warn(WarnSchema, err, "skipping undecodable capture from "+c.pattern)
			continue
		}
		out = append(out, resp)
	}
	return out
}
