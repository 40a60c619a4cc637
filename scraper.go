package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
)

// TikTok status codes with special handling.
const (
	statusSlideshow   = 10239
	statusPrivateList = 10222
)

// User list scenes for the signed /api/user/list/ endpoint.
const (
	sceneFollowing = 21
	sceneFollowers = 67
)

// API scrapes TikTok by driving a headless browser: it reads the JSON state
// embedded in server-rendered pages and intercepts the listing API calls the
// page makes while scrolling. One API owns one browser context; everything
// it returns (iterators, hydration paths) is invalidated by Close.
//
// The browser launches lazily on the first call that needs it.
type API struct {
	client    *http.Client
	baseURL   string // defaults to "https://www.tiktok.com"
	userAgent string
	proxy     string

	emulateMobile     bool
	headless          bool
	navigationTimeout time.Duration
	navigationRetries int
	scrollDownTime    time.Duration
	scrollDownDelay   time.Duration
	scrollIterDelay   time.Duration
	hydrateDelay      time.Duration
	dataDumpPrefix    string

	warnFn   func(Warning)
	silenced map[WarningCategory]bool

	closed atomic.Bool

	// Browser state. The sign page is kept loaded for URL signing only.
	browserMu    sync.Mutex
	browser      *rod.Browser
	signPage     *rod.Page
	signingReady atomic.Bool

	// Session token extracted from cookies.
	msToken string

	hydrateMu   sync.Mutex
	lastHydrate time.Time

	// newPage opens a fresh controllable page. signFn signs a raw URL via
	// browser JS. Both replaceable for testing.
	newPage func(ctx context.Context) (browserPage, error)
	signFn  func(rawURL string) (string, error)
}

// New creates an API with sensible defaults. The browser is not launched
// until the first scrape.
func New() *API {
	jar, _ := cookiejar.New(nil)
	a := &API{
		client: &http.Client{
			Jar:       jar,
			Timeout:   15 * time.Second,
			Transport: defaultTransport(),
		},
		baseURL:           "https://www.tiktok.com",
		userAgent:         defaultUserAgent,
		headless:          true,
		navigationTimeout: 30 * time.Second,
		scrollDownDelay:   time.Second,
		scrollIterDelay:   200 * time.Millisecond,
		hydrateDelay:      500 * time.Millisecond,
		warnFn:            defaultWarningHandler,
		silenced:          map[WarningCategory]bool{},
	}
	a.newPage = a.newRodPage
	a.signFn = a.signURL
	return a
}

// WithMobileEmulation makes the session emulate a mobile device. Required to
// retrieve slideshow posts. Cannot be toggled after the browser launches.
func (a *API) WithMobileEmulation() *API {
	a.emulateMobile = true
	a.userAgent = mobileUserAgent
	return a
}

// WithHeadless controls whether the browser runs headless (default true).
func (a *API) WithHeadless(headless bool) *API {
	a.headless = headless
	return a
}

// WithNavigationTimeout bounds each navigation attempt's readiness wait.
func (a *API) WithNavigationTimeout(d time.Duration) *API {
	a.navigationTimeout = d
	return a
}

// WithNavigationRetries sets how many times navigation is retried after a
// failed attempt. Zero means a single attempt.
func (a *API) WithNavigationRetries(n int) *API {
	if n < 0 {
		n = 0
	}
	a.navigationRetries = n
	return a
}

// WithScrollDownTime sets the session default for how long pages are
// scrolled to trigger additional listing API calls. Zero disables scrolling.
// Can be overridden per call with WithScroll.
func (a *API) WithScrollDownTime(d time.Duration) *API {
	a.scrollDownTime = d
	return a
}

// WithHydrateDelay sets the minimum delay between per-item hydration
// requests. Zero disables throttling.
func (a *API) WithHydrateDelay(d time.Duration) *API {
	a.hydrateDelay = d
	return a
}

// WithDataDump writes the raw embedded state plus intercepted payloads to
// "<prefix>.<Kind>.json" before each parse. Useful for schema archaeology.
func (a *API) WithDataDump(prefix string) *API {
	a.dataDumpPrefix = prefix
	return a
}

// WithWarningHandler replaces the default slog-based warning handler.
func (a *API) WithWarningHandler(fn func(Warning)) *API {
	if fn != nil {
		a.warnFn = fn
	}
	return a
}

// WithSilencedWarnings suppresses the given warning categories.
func (a *API) WithSilencedWarnings(cats ...WarningCategory) *API {
	for _, c := range cats {
		a.silenced[c] = true
	}
	return a
}

// Close tears down all browser resources. Every pending iterator and
// hydration path fails with ErrSessionClosed afterwards. Safe to call twice.
func (a *API) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.closeBrowser()
}

// CallOption overrides session defaults for a single call.
type CallOption func(*callOpts)

type callOpts struct {
	videoLimit     int
	scrollDownTime time.Duration
}

// WithVideoLimit caps how many videos a listing call's iterator will ever
// yield. Zero means unbounded.
func WithVideoLimit(n int) CallOption {
	return func(o *callOpts) { o.videoLimit = n }
}

// WithScroll overrides the session's scroll-down time for one call.
func WithScroll(d time.Duration) CallOption {
	return func(o *callOpts) { o.scrollDownTime = d }
}

func (a *API) newCallOpts(opts []CallOption) callOpts {
	o := callOpts{scrollDownTime: a.scrollDownTime}
	for _, f := range opts {
		f(&o)
	}
	return o
}

// Video retrieves a video from its link. If the video is a slideshow, the
// API must have been constructed WithMobileEmulation or this fails with
// ErrSlideshow.
func (a *API) Video(ctx context.Context, link string, opts ...CallOption) (*Video, error) {
	if link == "" {
		return nil, fmt.Errorf("%w: video link is required", ErrAPI)
	}
	o := a.newCallOpts(opts)
	state, extras, err := a.scrapeData(ctx, link, o, "Video")
	if err != nil {
		return nil, err
	}
	return a.videoFromState(state, extras, true)
}

// User retrieves a user profile from their handle (without the '@'),
// including a lazy iterator over their recent uploads.
func (a *API) User(ctx context.Context, handle string, opts ...CallOption) (*User, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: user handle is required", ErrAPI)
	}
	o := a.newCallOpts(opts)
	state, extras, err := a.scrapeData(ctx, a.baseURL+"/@"+url.PathEscape(handle), o, "User")
	if err != nil {
		return nil, err
	}
	u, err := a.userFromState(handle, state, extras, o)
	if err != nil {
		return nil, err
	}

	// Follower/following lists ride on a signed endpoint; failures reduce
	// the result, never abort it.
	if u.SecUID != "" {
		if followers, err := a.fetchUserList(ctx, u.SecUID, sceneFollowers); err != nil {
			a.warn(WarnUserList, err, "could not fetch follower list for @"+handle)
		} else {
			u.Followers = followers
		}
		if following, err := a.fetchUserList(ctx, u.SecUID, sceneFollowing); err != nil {
			a.warn(WarnUserList, err, "could not fetch following list for @"+handle)
		} else {
			u.Following = following
		}
	}
	return u, nil
}

// Challenge retrieves a hashtag from its name (without the '#'), including
// a lazy iterator over videos tagged with it.
func (a *API) Challenge(ctx context.Context, tag string, opts ...CallOption) (*Challenge, error) {
	if tag == "" {
		return nil, fmt.Errorf("%w: challenge tag is required", ErrAPI)
	}
	o := a.newCallOpts(opts)
	state, extras, err := a.scrapeData(ctx, a.baseURL+"/tag/"+url.PathEscape(tag), o, "Challenge")
	if err != nil {
		return nil, err
	}
	return a.challengeFromState(state, extras, o)
}

// scrapeData loads a page and returns its embedded state plus whatever the
// interception window caught. Navigation failures are retried up to the
// configured count; extraction failures are fatal immediately since a retry
// would re-read the same page.
func (a *API) scrapeData(ctx context.Context, link string, o callOpts, kind string) (*sigiState, []apiResponse, error) {
	if a.closed.Load() {
		return nil, nil, ErrSessionClosed
	}

	ic := newInterceptor(defaultEndpointPatterns, a.warn)
	attempts := a.navigationRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if a.closed.Load() {
			return nil, nil, ErrSessionClosed
		}

		raw, state, captures, err := a.scrapeOnce(ctx, link, o, ic)
		if err == nil {
			if o.scrollDownTime > 0 && len(captures) == 0 {
				a.warn(WarnCapture, ErrCaptureTimeout, "no listing responses captured while scrolling "+link)
			}
			a.dump(kind, raw, captures)
			return state, decodeCaptures(captures, a.warn), nil
		}
		if isFatalScrape(err) {
			return nil, nil, err
		}
		lastErr = err
		a.warn(WarnNavigation, err, fmt.Sprintf("navigation attempt %d/%d failed for %s", attempt, attempts, link))
	}

	return nil, nil, &NavigationError{URL: link, Attempts: attempts, Last: lastErr}
}

// scrapeOnce is a single attempt: fresh page, capture window around
// navigation and scrolling, then preload extraction.
func (a *API) scrapeOnce(ctx context.Context, link string, o callOpts, ic *interceptor) (json.RawMessage, *sigiState, []capture, error) {
	pg, err := a.newPage(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open page: %w", err)
	}
	defer pg.Close()

	stop := pg.OnResponse(ic.observe)
	defer stop()
	ic.Start()

	if err := navigateOnce(ctx, pg, link, a.navigationTimeout); err != nil {
		ic.Stop()
		return nil, nil, nil, err
	}

	scrollPage(ctx, pg, o.scrollDownTime, a.scrollDownDelay, a.scrollIterDelay)

	html, err := pg.Content()
	captures := ic.Stop()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read page content: %w", err)
	}

	raw, err := extractPreload([]byte(html))
	if err != nil {
		return nil, nil, nil, err
	}
	state, err := parseSigiState(raw)
	if err != nil {
		return nil, nil, nil, err
	}
	return raw, state, captures, nil
}

// isFatalScrape reports whether an attempt error would not be cured by a
// retry: extraction errors, a closed session, or an unlaunchable browser.
func isFatalScrape(err error) bool {
	var invalid *InvalidJSONError
	if errors.As(err, &invalid) {
		return true
	}
	return errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrBrowserNotReady)
}

func (a *API) videoFromState(state *sigiState, extras []apiResponse, warnEmptyComments bool) (*Video, error) {
	if code := state.VideoPage.StatusCode; code != 0 {
		if code == statusSlideshow {
			return nil, ErrSlideshow
		}
		return nil, fmt.Errorf("%w: video page status code %d", ErrAPI, code)
	}

	var raw rawVideo
	found := false
	for _, item := range state.ItemModule {
		raw = item
		found = true
		break // video pages embed exactly one entry
	}
	if !found {
		return nil, &SchemaError{Field: "ItemModule", Msg: "video entry missing"}
	}

	v, err := parseVideo(raw)
	if err != nil {
		return nil, err
	}

	v.Comments = a.collectComments(state, extras)
	if len(v.Comments) == 0 && warnEmptyComments {
		a.warn(WarnComments, nil, "no comments collected; a retry or a nonzero scroll-down time might help")
	}
	return v, nil
}

// collectComments merges preloaded and intercepted comments, skipping
// malformed elements with a warning and deduplicating by id.
func (a *API) collectComments(state *sigiState, extras []apiResponse) []Comment {
	keys := make([]string, 0, len(state.CommentItem))
	for k := range state.CommentItem {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var comments []Comment
	seen := map[string]struct{}{}
	add := func(raw rawComment) {
		c, err := parseComment(raw)
		if err != nil {
			a.warn(WarnSchema, err, "skipping malformed comment")
			return
		}
		if _, dup := seen[c.ID]; c.ID != "" && dup {
			return
		}
		seen[c.ID] = struct{}{}
		comments = append(comments, c)
	}

	for _, k := range keys {
		add(state.CommentItem[k])
	}
	for _, extra := range extras {
		for _, raw := range extra.Comments {
			add(raw)
		}
	}
	return comments
}

func (a *API) userFromState(handle string, state *sigiState, extras []apiResponse, o callOpts) (*User, error) {
	if code := state.UserPage.StatusCode; code != 0 {
		return nil, fmt.Errorf("%w: user page status code %d", ErrAPI, code)
	}

	raw, ok := state.UserModule.Users[handle]
	if !ok {
		// The module is keyed by handle; fall back to the sole entry when
		// casing differs from the request.
		if len(state.UserModule.Users) != 1 {
			return nil, &SchemaError{Field: "UserModule.users", Msg: "user entry missing for " + handle}
		}
		for key, u := range state.UserModule.Users {
			handle, raw = key, u
		}
	}

	u, err := parseUser(raw, state.UserModule.Stats[handle])
	if err != nil {
		return nil, err
	}
	u.Videos = newVideoIterator(a.hydrateVideo, a.seedLightVideos(state, extras), o.videoLimit)
	return u, nil
}

func (a *API) challengeFromState(state *sigiState, extras []apiResponse, o callOpts) (*Challenge, error) {
	if code := state.ChallengePage.StatusCode; code != 0 {
		return nil, fmt.Errorf("%w: challenge page status code %d", ErrAPI, code)
	}
	c, err := parseChallenge(state.ChallengePage.ChallengeInfo)
	if err != nil {
		return nil, err
	}
	c.Videos = newVideoIterator(a.hydrateVideo, a.seedLightVideos(state, extras), o.videoLimit)
	return c, nil
}

// seedLightVideos builds the iterator seed list: preloaded entries newest
// first, then intercepted listing entries in arrival order. Malformed
// elements are skipped with a warning; the iterator deduplicates ids.
func (a *API) seedLightVideos(state *sigiState, extras []apiResponse) []LightVideo {
	preload := make([]LightVideo, 0, len(state.ItemModule))
	for _, raw := range state.ItemModule {
		lv, err := parseLightVideo(raw)
		if err != nil {
			a.warn(WarnSchema, err, "skipping malformed listing entry")
			continue
		}
		preload = append(preload, lv)
	}
	// ItemModule is a JSON object; impose the listing's newest-first order.
	sort.SliceStable(preload, func(i, j int) bool {
		return preload[i].CreatedAt.After(preload[j].CreatedAt)
	})

	seeds := preload
	for _, extra := range extras {
		for _, raw := range extra.ItemList {
			lv, err := parseLightVideo(raw)
			if err != nil {
				a.warn(WarnSchema, err, "skipping malformed listing entry")
				continue
			}
			seeds = append(seeds, lv)
		}
	}
	return seeds
}

// hydrateVideo exchanges a light reference for the full record. The cheap
// path fetches the video page over plain HTTP with the session's cookies;
// when that page lacks the embedded state a full browser scrape is the
// fallback. Identity never changes across hydration.
func (a *API) hydrateVideo(ctx context.Context, lv LightVideo) (*Video, error) {
	if a.closed.Load() {
		return nil, ErrSessionClosed
	}

	v, err := a.hydrateVideoHTTP(ctx, lv.ID)
	if err != nil {
		if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
			return nil, err
		}
		slog.Debug("tiktok: http hydration failed, falling back to browser",
			"id", lv.ID, "err", err)
		v, err = a.Video(ctx, a.videoPageURL(lv.ID))
		if err != nil {
			return nil, err
		}
	}

	if v.ID != lv.ID {
		return nil, &SchemaError{Field: "id", Msg: fmt.Sprintf("hydration changed identity %s -> %s", lv.ID, v.ID)}
	}
	return v, nil
}

func (a *API) videoPageURL(id string) string {
	return a.baseURL + "/v/" + url.PathEscape(id)
}

func (a *API) hydrateVideoHTTP(ctx context.Context, id string) (*Video, error) {
	if err := a.throttleHydrate(ctx); err != nil {
		return nil, err
	}
	if a.closed.Load() {
		return nil, ErrSessionClosed
	}

	resp, err := a.doRequest(ctx, http.MethodGet, a.videoPageURL(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read video page: %w", err)
	}

	raw, err := extractPreload(body)
	if err != nil {
		return nil, err
	}
	state, err := parseSigiState(raw)
	if err != nil {
		return nil, err
	}
	return a.videoFromState(state, nil, false)
}

// fetchUserList walks the signed cursor-paginated /api/user/list/ endpoint.
// URLs are signed via browser JS since the endpoint rejects unsigned calls.
func (a *API) fetchUserList(ctx context.Context, secUID string, scene int) ([]LightUser, error) {
	var out []LightUser
	cursor := int64(0)
	for cursor != -1 {
		rawURL := fmt.Sprintf("%s/api/user/list/?minCursor=%d&scene=%d&count=200&secUid=%s",
			a.baseURL, cursor, scene, url.QueryEscape(secUID))

		a.browserMu.Lock()
		signed, err := a.signFn(rawURL)
		a.browserMu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("sign user list url: %w", err)
		}

		resp, err := a.doRequest(ctx, http.MethodGet, signed, nil)
		if err != nil {
			return nil, err
		}
		var result apiResponse
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode user list: %w", err)
		}

		if result.StatusCode == statusPrivateList {
			return nil, ErrPrivateList
		}
		for _, item := range result.UserList {
			if item.User.UniqueID == "" {
				continue
			}
			out = append(out, LightUser{Handle: item.User.UniqueID})
		}

		next := int64(result.MinCursor)
		if next == cursor && next != -1 {
			break // stuck cursor, endpoint stopped paginating
		}
		cursor = next
	}
	return out, nil
}

// dump writes the raw embedded state plus intercepted payloads to the
// configured dump file before parsing. Best-effort.
func (a *API) dump(kind string, raw json.RawMessage, captures []capture) {
	if a.dataDumpPrefix == "" {
		return
	}
	extras := make([]json.RawMessage, 0, len(captures))
	for _, c := range captures {
		extras = append(extras, c.body)
	}
	payload := struct {
		Data   json.RawMessage   `json:"data"`
		Extras []json.RawMessage `json:"extras"`
	}{Data: raw, Extras: extras}

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	path := a.dataDumpPrefix + "." + kind + ".json"
	if err := os.WriteFile(path, b, 0o644); err != nil {
		slog.Debug("tiktok: data dump failed", "path", path, "err", err)
	}
}
