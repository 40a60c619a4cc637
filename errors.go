package tiktok

import (
	"errors"
	"fmt"
)

// ErrAPI is the root of the public error family. Every fatal failure returned
// by this package satisfies errors.Is(err, ErrAPI), so callers need a single
// catch point.
var (
	ErrAPI             = errors.New("tiktok: api failure")
	ErrSessionClosed   = fmt.Errorf("%w: session closed", ErrAPI)
	ErrSlideshow       = fmt.Errorf("%w: slideshows require mobile emulation", ErrAPI)
	ErrBrowserNotReady = fmt.Errorf("%w: browser not initialized", ErrAPI)
	ErrPrivateList     = fmt.Errorf("%w: requested user list is private", ErrAPI)

	// ErrCaptureTimeout is never returned from a call. It surfaces on the
	// warning channel when a scroll window elapses without a single matching
	// capture, which simply means fewer listing elements than hoped.
	ErrCaptureTimeout = fmt.Errorf("%w: scroll window elapsed with no captured responses", ErrAPI)
)

// NavigationError reports that loading a page failed on every attempt.
type NavigationError struct {
	URL      string
	Attempts int
	Last     error // failure from the final attempt, if any
}

func (e *NavigationError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("tiktok: navigation to %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Last)
	}
	return fmt.Sprintf("tiktok: navigation to %s failed after %d attempt(s)", e.URL, e.Attempts)
}

func (e *NavigationError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrAPI}
	}
	return []error{ErrAPI, e.Last}
}

// InvalidJSONError reports that the embedded page state was missing or
// unparsable. Nothing can be extracted from such a page, so this is fatal
// for the call.
type InvalidJSONError struct {
	Reason string
	Cause  error
}

func (e *InvalidJSONError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tiktok: embedded state: %s: %v", e.Reason, e.Cause)
	}
	return "tiktok: embedded state: " + e.Reason
}

func (e *InvalidJSONError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAPI}
	}
	return []error{ErrAPI, e.Cause}
}

// SchemaError reports a payload that decoded as JSON but is missing a
// required field or carries the wrong type. Field is the path of the
// offending field. Fatal for the primary requested entity; listing elements
// that fail this way are skipped with a warning instead.
type SchemaError struct {
	Field string
	Msg   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tiktok: schema mismatch at %q: %s", e.Field, e.Msg)
}

func (e *SchemaError) Unwrap() error { return ErrAPI }
