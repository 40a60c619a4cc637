package tiktok

import (
	"bytes"
	"encoding/json"

	"github.com/PuerkitoBio/goquery"
)

// preloadScriptID is the fixed identifier of the script element holding the
// server-rendered page state.
const preloadScriptID = "SIGI_STATE"

var (
	preloadTagOpen  = []byte(`<script id="SIGI_STATE" type="application/json">`)
	preloadTagClose = []byte(`</script>`)
)

// extractPreload locates the embedded state script element in page HTML and
// returns its JSON body. A byte search on the exact tag handles the common
// case; when TikTok reorders attributes across page versions the element is
// looked up through a DOM parse instead.
func extractPreload(htmlBody []byte) (json.RawMessage, error) {
	if start := bytes.Index(htmlBody, preloadTagOpen); start != -1 {
		start += len(preloadTagOpen)
		if end := bytes.Index(htmlBody[start:], preloadTagClose); end != -1 {
			return validStateJSON(htmlBody[start : start+end])
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return nil, &InvalidJSONError{Reason: "parse page html", Cause: err}
	}
	sel := doc.Find("script#" + preloadScriptID)
	if sel.Length() == 0 {
		return nil, &InvalidJSONError{Reason: "script #" + preloadScriptID + " not found"}
	}
	return validStateJSON([]byte(sel.First().Text()))
}

func validStateJSON(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, &InvalidJSONError{Reason: "script #" + preloadScriptID + " body is not valid JSON"}
	}
	return json.RawMessage(body), nil
}
