package tiktok

import "log/slog"

// WarningCategory identifies a class of non-fatal extraction signal.
// Categories can be silenced individually with WithSilencedWarnings.
type WarningCategory string

const (
	// WarnSchema: a listing element failed validation and was skipped.
	WarnSchema WarningCategory = "schema"
	// WarnCapture: an interception window produced no usable payloads.
	WarnCapture WarningCategory = "capture"
	// WarnComments: a video scrape collected zero comments.
	WarnComments WarningCategory = "comments"
	// WarnUserList: a follower/following list could not be fetched.
	WarnUserList WarningCategory = "userlist"
	// WarnNavigation: a navigation attempt failed and is being retried.
	WarnNavigation WarningCategory = "navigation"
)

// Warning is a non-fatal signal emitted during extraction, typically schema
// drift in TikTok's wire format. Warnings never abort a scrape.
type Warning struct {
	Category WarningCategory
	Message  string
	Err      error
}

func defaultWarningHandler(w Warning) {
	slog.Warn("tiktok: "+w.Message, "category", string(w.Category), "err", w.Err)
}

// warn routes a warning through the configured handler unless its category
// has been silenced.
func (a *API) warn(cat WarningCategory, err error, msg string) {
	if a.silenced[cat] {
		return
	}
	a.warnFn(Warning{Category: cat, Message: msg, Err: err})
}
