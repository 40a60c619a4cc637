package tiktok

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFlexInt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    flexInt
		wantErr bool
	}{
		{"number", `42`, 42, false},
		{"negative", `-1`, -1, false},
		{"numeric string", `"1234567890123"`, 1234567890123, false},
		{"empty string", `""`, 0, false},
		{"null", `null`, 0, false},
		{"non-numeric string", `"abc"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var f flexInt
			err := json.Unmarshal([]byte(tt.in), &f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && f != tt.want {
				t.Errorf("got %d, want %d", f, tt.want)
			}
		})
	}
}

func TestFlexBool(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want flexBool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`null`, false},
	}
	for _, tt := range tests {
		var f flexBool
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if f != tt.want {
			t.Errorf("%s: got %v, want %v", tt.in, f, tt.want)
		}
	}
}

func TestAuthorRef(t *testing.T) {
	t.Parallel()
	var fromString authorRef
	if err := json.Unmarshal([]byte(`"chef"`), &fromString); err != nil {
		t.Fatalf("string form: %v", err)
	}
	if fromString.Handle != "chef" {
		t.Errorf("string form handle = %q", fromString.Handle)
	}

	var fromObject authorRef
	if err := json.Unmarshal([]byte(`{"uniqueId": "chef", "nickname": "Chef"}`), &fromObject); err != nil {
		t.Fatalf("object form: %v", err)
	}
	if fromObject.Handle != "chef" {
		t.Errorf("object form handle = %q", fromObject.Handle)
	}
}

func TestParseSigiState_InjectsMapKeys(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"ItemModule": {"7123": {"desc": "entry without id field"}},
		"CommentItem": {"c9": {"text": "hello"}}
	}`)
	state, err := parseSigiState(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := state.ItemModule["7123"].ID; got != "7123" {
		t.Errorf("injected video id = %q", got)
	}
	if got := state.CommentItem["c9"].CID; got != "c9" {
		t.Errorf("injected comment id = %q", got)
	}
}

func TestParseSigiState_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := parseSigiState([]byte(`{"ItemModule": [1, 2]}`))
	var invalid *InvalidJSONError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidJSONError, got %v", err)
	}
}

func TestParseLightVideo_RequiresID(t *testing.T) {
	t.Parallel()
	_, err := parseLightVideo(rawVideo{Desc: "no id"})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "id" {
		t.Errorf("field = %q, want id", schemaErr.Field)
	}
}

func TestParseVideo_RequiresMedia(t *testing.T) {
	t.Parallel()
	_, err := parseVideo(rawVideo{ID: "7123"})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Field != "video.playAddr" {
		t.Errorf("field = %q", schemaErr.Field)
	}
}

func TestParseVideo_SlideshowNeedsNoPlayAddr(t *testing.T) {
	t.Parallel()
	v, err := parseVideo(rawVideo{
		ID:        "7123",
		ImagePost: &rawImagePost{Title: "slides"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ImagePost == nil || v.ImagePost.Title != "slides" {
		t.Errorf("image post = %+v", v.ImagePost)
	}
}

func TestParseVideo_SkipsUntitledTags(t *testing.T) {
	t.Parallel()
	v, err := parseVideo(rawVideo{
		ID:    "7123",
		Video: rawMedia{PlayAddr: "https://v.example/p.mp4"},
		Challenges: []rawChallengeRef{
			{ID: "1", Title: "cooking"},
			{ID: "2"}, // placeholder entries carry an id but no title
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Tags) != 1 || v.Tags[0].Title != "cooking" {
		t.Errorf("tags = %+v", v.Tags)
	}
}

func TestParseComment_HandleFallback(t *testing.T) {
	t.Parallel()
	c, err := parseComment(rawComment{CID: "c1", Text: "hi", UserUniqueID: "fallback"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Author.Handle != "fallback" {
		t.Errorf("handle = %q", c.Author.Handle)
	}

	c, err = parseComment(rawComment{CID: "c2", Text: "hi", User: authorRef{Handle: "primary"}, UserUniqueID: "fallback"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Author.Handle != "primary" {
		t.Errorf("handle = %q", c.Author.Handle)
	}
}

func TestParseUser_RequiresHandle(t *testing.T) {
	t.Parallel()
	_, err := parseUser(rawUser{ID: "42"}, rawUserStats{})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestParseChallenge_RequiredFields(t *testing.T) {
	t.Parallel()
	if _, err := parseChallenge(nil); err == nil {
		t.Error("expected error for nil info")
	}

	info := &rawChallengeInfo{}
	info.Challenge.ID = "99"
	if _, err := parseChallenge(info); err == nil {
		t.Error("expected error for missing title")
	}

	info.Challenge.Title = "cooking"
	c, err := parseChallenge(info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "99" || c.Title != "cooking" {
		t.Errorf("challenge = %+v", c)
	}
}
