package tiktok

import (
	"errors"
	"testing"
)

func TestExtractPreload_FastPath(t *testing.T) {
	t.Parallel()
	html := `<html><body><script id="SIGI_STATE" type="application/json">{"x": 1}</script></body></html>`
	raw, err := extractPreload([]byte(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"x": 1}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestExtractPreload_ReorderedAttributes(t *testing.T) {
	t.Parallel()
	// Attribute order varies across page versions; this defeats the exact
	// byte search and exercises the DOM lookup.
	html := `<html><body><script type="application/json" id="SIGI_STATE">{"y": 2}</script></body></html>`
	raw, err := extractPreload([]byte(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"y": 2}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestExtractPreload_SurroundingWhitespace(t *testing.T) {
	t.Parallel()
	html := `<script id="SIGI_STATE" type="application/json">
		{"z": 3}
	</script>`
	raw, err := extractPreload([]byte(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"z": 3}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestExtractPreload_MissingScript(t *testing.T) {
	t.Parallel()
	html := `<html><body><div>please verify you are human</div></body></html>`
	_, err := extractPreload([]byte(html))
	var invalid *InvalidJSONError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidJSONError, got %v", err)
	}
	if !errors.Is(err, ErrAPI) {
		t.Error("expected InvalidJSONError to be part of the ErrAPI family")
	}
}

func TestExtractPreload_InvalidBody(t *testing.T) {
	t.Parallel()
	html := `<script id="SIGI_STATE" type="application/json">{"truncated": </script>`
	_, err := extractPreload([]byte(html))
	var invalid *InvalidJSONError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidJSONError, got %v", err)
	}
}

func TestExtractPreload_IgnoresOtherScripts(t *testing.T) {
	t.Parallel()
	html := `<html><body>` +
		`<script id="OTHER_STATE" type="application/json">{"wrong": true}</script>` +
		`<script id="SIGI_STATE" type="application/json">{"right": true}</script>` +
		`</body></html>`
	raw, err := extractPreload([]byte(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"right": true}` {
		t.Errorf("raw = %s", raw)
	}
}
