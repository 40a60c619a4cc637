package tiktok

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Wire structs matching TikTok's embedded state and listing API JSON.
// Unknown fields are ignored and optional fields default to zero values so
// upstream schema drift doesn't break decoding; required fields are checked
// in the parse functions below.

// flexInt decodes a number, a numeric string, or null. TikTok flips between
// these representations across page versions.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexBool decodes true/false or 0/1.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}

// authorRef decodes either a bare handle string or a user object; listing
// entries carry the object, intercepted payloads sometimes just the handle.
type authorRef struct {
	Handle string
}

func (a *authorRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.Handle)
	}
	var obj struct {
		UniqueID string `json:"uniqueId"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	a.Handle = obj.UniqueID
	return nil
}

type rawVideoStats struct {
	PlayCount    flexInt `json:"playCount"`
	DiggCount    flexInt `json:"diggCount"`
	CommentCount flexInt `json:"commentCount"`
	ShareCount   flexInt `json:"shareCount"`
	CollectCount flexInt `json:"collectCount"`
}

type rawMedia struct {
	Height       flexInt `json:"height"`
	Width        flexInt `json:"width"`
	Duration     flexInt `json:"duration"`
	Format       string  `json:"format"`
	Cover        string  `json:"cover"`
	PlayAddr     string  `json:"playAddr"`
	DownloadAddr string  `json:"downloadAddr"`
}

type rawMusic struct {
	ID         flexInt `json:"id"`
	Title      string  `json:"title"`
	AuthorName string  `json:"authorName"`
	PlayURL    string  `json:"playUrl"`
	Album      string  `json:"album"`
	Duration   flexInt `json:"duration"`
	Original   bool    `json:"original"`
}

type rawImage struct {
	ImageURL struct {
		URLList []string `json:"urlList"`
	} `json:"imageURL"`
	ImageWidth  flexInt `json:"imageWidth"`
	ImageHeight flexInt `json:"imageHeight"`
}

type rawImagePost struct {
	Title  string     `json:"title"`
	Images []rawImage `json:"images"`
}

type rawChallengeRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

type rawVideo struct {
	ID         string            `json:"id"`
	Desc       string            `json:"desc"`
	CreateTime flexInt           `json:"createTime"`
	Author     authorRef         `json:"author"`
	Stats      rawVideoStats     `json:"stats"`
	Video      rawMedia          `json:"video"`
	Music      rawMusic          `json:"music"`
	Challenges []rawChallengeRef `json:"challenges"`
	ImagePost  *rawImagePost     `json:"imagePost"`
	Digged     bool              `json:"digged"`
}

// Comment list payloads use snake_case, unlike the rest of the wire format.
type rawComment struct {
	CID          string    `json:"cid"`
	Text         string    `json:"text"`
	AwemeID      string    `json:"aweme_id"`
	DiggCount    flexInt   `json:"digg_count"`
	ReplyTotal   flexInt   `json:"reply_comment_total"`
	Language     string    `json:"comment_language"`
	User         authorRef `json:"user"`
	UserUniqueID string    `json:"unique_id"`
}

type rawUser struct {
	ID        string `json:"id"`
	UniqueID  string `json:"uniqueId"`
	Nickname  string `json:"nickname"`
	SecUID    string `json:"secUid"`
	Verified  bool   `json:"verified"`
	Private   bool   `json:"privateAccount"`
	Signature string `json:"signature"`
	Avatar    string `json:"avatarLarger"`
}

type rawUserStats struct {
	FollowerCount  flexInt `json:"followerCount"`
	FollowingCount flexInt `json:"followingCount"`
	HeartCount     flexInt `json:"heartCount"`
	VideoCount     flexInt `json:"videoCount"`
	DiggCount      flexInt `json:"diggCount"`
}

type rawUserModule struct {
	Users map[string]rawUser      `json:"users"`
	Stats map[string]rawUserStats `json:"stats"`
}

type rawChallengeStats struct {
	VideoCount flexInt `json:"videoCount"`
	ViewCount  flexInt `json:"viewCount"`
}

type rawChallengeInfo struct {
	Challenge struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Desc       string `json:"desc"`
		IsCommerce bool   `json:"isCommerce"`
	} `json:"challenge"`
	Stats rawChallengeStats `json:"stats"`
}

type rawStatusPage struct {
	StatusCode int `json:"statusCode"`
}

type rawChallengePage struct {
	StatusCode    int               `json:"statusCode"`
	ChallengeInfo *rawChallengeInfo `json:"challengeInfo"`
}

// sigiState is the embedded page state found in the #SIGI_STATE script tag.
type sigiState struct {
	ItemModule    map[string]rawVideo   `json:"ItemModule"`
	CommentItem   map[string]rawComment `json:"CommentItem"`
	UserModule    rawUserModule         `json:"UserModule"`
	UserPage      rawStatusPage         `json:"UserPage"`
	VideoPage     rawStatusPage         `json:"VideoPage"`
	ChallengePage rawChallengePage      `json:"ChallengePage"`
}

// apiResponse is the body shape shared by the intercepted listing endpoints
// and the signed user-list endpoint.
type apiResponse struct {
	StatusCode int          `json:"statusCode"`
	Cursor     flexInt      `json:"cursor"`
	HasMore    flexBool     `json:"hasMore"`
	Total      flexInt      `json:"total"`
	ItemList   []rawVideo   `json:"itemList"`
	Comments   []rawComment `json:"comments"`
	MinCursor  flexInt      `json:"minCursor"`
	UserList   []struct {
		User rawUser `json:"user"`
	} `json:"userList"`
}

// parseSigiState decodes the raw embedded JSON. Some page versions omit the
// id inside ItemModule entries; it is always present as the map key, so it
// gets injected before mapping.
func parseSigiState(raw []byte) (*sigiState, error) {
	var state sigiState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, &InvalidJSONError{Reason: "decode embedded state", Cause: err}
	}
	for key, item := range state.ItemModule {
		if item.ID == "" {
			item.ID = key
			state.ItemModule[key] = item
		}
	}
	for key, c := range state.CommentItem {
		if c.CID == "" {
			c.CID = key
			state.CommentItem[key] = c
		}
	}
	return &state, nil
}

func parseVideoStats(raw rawVideoStats) VideoStats {
	return VideoStats{
		Plays:    int(raw.PlayCount),
		Likes:    int(raw.DiggCount),
		Comments: int(raw.CommentCount),
		Shares:   int(raw.ShareCount),
		Collects: int(raw.CollectCount),
	}
}

// parseLightVideo maps a listing entry to a light reference. The id is the
// only load-bearing field; everything else tolerates absence.
func parseLightVideo(raw rawVideo) (LightVideo, error) {
	if raw.ID == "" {
		return LightVideo{}, &SchemaError{Field: "id", Msg: "listing entry missing video id"}
	}
	return LightVideo{
		ID:        raw.ID,
		Author:    raw.Author.Handle,
		Stats:     parseVideoStats(raw.Stats),
		CreatedAt: time.Unix(int64(raw.CreateTime), 0),
	}, nil
}

// parseVideo maps a full video entry. Media detail is required here, unlike
// in the light mapping.
func parseVideo(raw rawVideo) (*Video, error) {
	light, err := parseLightVideo(raw)
	if err != nil {
		return nil, err
	}
	if raw.Video.PlayAddr == "" && raw.ImagePost == nil {
		return nil, &SchemaError{Field: "video.playAddr", Msg: "full video missing media urls"}
	}
	v := &Video{
		LightVideo:  light,
		Description: raw.Desc,
		Digged:      raw.Digged,
		Media: MediaInfo{
			Height:      int(raw.Video.Height),
			Width:       int(raw.Video.Width),
			Duration:    int(raw.Video.Duration),
			Format:      raw.Video.Format,
			Cover:       raw.Video.Cover,
			PlayURL:     raw.Video.PlayAddr,
			DownloadURL: raw.Video.DownloadAddr,
		},
		Music: Music{
			ID:         strconv.FormatInt(int64(raw.Music.ID), 10),
			Title:      raw.Music.Title,
			AuthorName: raw.Music.AuthorName,
			PlayURL:    raw.Music.PlayURL,
			Album:      raw.Music.Album,
			Duration:   int(raw.Music.Duration),
			Original:   raw.Music.Original,
		},
	}
	for _, c := range raw.Challenges {
		if c.Title == "" {
			continue
		}
		v.Tags = append(v.Tags, LightChallenge{Title: c.Title})
	}
	if raw.ImagePost != nil {
		post := &ImagePost{Title: raw.ImagePost.Title}
		for _, img := range raw.ImagePost.Images {
			post.Images = append(post.Images, Image{
				URLs:   img.ImageURL.URLList,
				Width:  int(img.ImageWidth),
				Height: int(img.ImageHeight),
			})
		}
		v.ImagePost = post
	}
	return v, nil
}

func parseComment(raw rawComment) (Comment, error) {
	if raw.Text == "" && raw.CID == "" {
		return Comment{}, &SchemaError{Field: "cid", Msg: "comment missing id and text"}
	}
	handle := raw.User.Handle
	if handle == "" {
		handle = raw.UserUniqueID
	}
	return Comment{
		ID:       raw.CID,
		VideoID:  raw.AwemeID,
		Author:   LightUser{Handle: handle},
		Text:     raw.Text,
		Likes:    int(raw.DiggCount),
		Replies:  int(raw.ReplyTotal),
		Language: raw.Language,
	}, nil
}

func parseUser(raw rawUser, stats rawUserStats) (*User, error) {
	if raw.UniqueID == "" {
		return nil, &SchemaError{Field: "user.uniqueId", Msg: "user missing handle"}
	}
	return &User{
		LightUser: LightUser{Handle: raw.UniqueID},
		ID:        raw.ID,
		Nickname:  raw.Nickname,
		SecUID:    raw.SecUID,
		Verified:  raw.Verified,
		Private:   raw.Private,
		Signature: raw.Signature,
		AvatarURL: raw.Avatar,
		Stats: UserStats{
			Followers: int(stats.FollowerCount),
			Following: int(stats.FollowingCount),
			Hearts:    int(stats.HeartCount),
			Videos:    int(stats.VideoCount),
			Likes:     int(stats.DiggCount),
		},
	}, nil
}

func parseChallenge(info *rawChallengeInfo) (*Challenge, error) {
	if info == nil || info.Challenge.ID == "" {
		return nil, &SchemaError{Field: "challengeInfo.challenge.id", Msg: "challenge missing id"}
	}
	if info.Challenge.Title == "" {
		return nil, &SchemaError{Field: "challengeInfo.challenge.title", Msg: "challenge missing title"}
	}
	return &Challenge{
		LightChallenge: LightChallenge{Title: info.Challenge.Title},
		ID:             info.Challenge.ID,
		Desc:           info.Challenge.Desc,
		IsCommerce:     info.Challenge.IsCommerce,
		Stats: ChallengeStats{
			Videos: int(info.Stats.VideoCount),
			Views:  int(info.Stats.ViewCount),
		},
	}, nil
}
