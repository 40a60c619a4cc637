package tiktok

import (
	"net/url"
	"time"
)

// VideoStats holds a video's engagement counters.
type VideoStats struct {
	Plays    int
	Likes    int
	Comments int
	Shares   int
	Collects int
}

// UserStats holds a user profile's counters.
type UserStats struct {
	Followers int
	Following int
	Hearts    int
	Videos    int
	Likes     int
}

// ChallengeStats holds a hashtag's aggregate counters.
type ChallengeStats struct {
	Videos int
	Views  int
}

// LightVideo is the minimal identity record for a video discovered on a
// listing page: enough to deduplicate, order, and later hydrate into a full
// Video, without any media detail. Hydration never changes the ID.
type LightVideo struct {
	ID        string
	Author    string // creator handle, may be empty for some listing entries
	Stats     VideoStats
	CreatedAt time.Time
}

// MediaInfo describes the playable video files and covers.
type MediaInfo struct {
	Height      int
	Width       int
	Duration    int
	Format      string
	Cover       string
	PlayURL     string
	DownloadURL string
}

// Music is the sound attached to a video.
type Music struct {
	ID         string
	Title      string
	AuthorName string
	PlayURL    string
	Album      string
	Duration   int
	Original   bool
}

// Image is one slide of a slideshow post.
type Image struct {
	URLs   []string
	Width  int
	Height int
}

// ImagePost is the slideshow payload of an image-mode video. Only populated
// when the session emulates a mobile device.
type ImagePost struct {
	Title  string
	Images []Image
}

// Video is a fully hydrated video record.
type Video struct {
	LightVideo
	Description string
	Media       MediaInfo
	Music       Music
	ImagePost   *ImagePost // non-nil only for slideshows
	Tags        []LightChallenge
	Comments    []Comment
	Digged      bool
}

// URL returns a working link to the video.
func (v *Video) URL() string { return VideoLink(v.ID) }

// LightUser is the bare minimum needed to hydrate a user via API.User.
type LightUser struct {
	Handle string
}

// User is a fully hydrated user profile. Videos lazily hydrates the user's
// recent uploads; Followers and Following are nil unless the signed list
// fetch succeeded.
type User struct {
	LightUser
	ID        string
	Nickname  string
	SecUID    string
	Verified  bool
	Private   bool
	Signature string
	AvatarURL string
	Stats     UserStats
	Videos    *VideoIterator
	Followers []LightUser
	Following []LightUser
}

// LightChallenge is the bare minimum needed to hydrate a challenge via
// API.Challenge.
type LightChallenge struct {
	Title string
}

// Challenge is a fully hydrated hashtag record. Videos lazily hydrates the
// videos tagged with it.
type Challenge struct {
	LightChallenge
	ID         string
	Desc       string
	IsCommerce bool
	Stats      ChallengeStats
	Videos     *VideoIterator
}

// Comment is one comment under a video. Author is a light reference;
// hydrate it with API.User.
type Comment struct {
	ID       string
	VideoID  string
	Author   LightUser
	Text     string
	Likes    int
	Replies  int
	Language string
}

// VideoLink returns a working link to a video from its unique id.
func VideoLink(id string) string {
	return "https://www.tiktok.com/v/" + url.PathEscape(id)
}

// UserLink returns a link to a user's profile page from their handle
// (without the '@').
func UserLink(handle string) string {
	return "https://www.tiktok.com/@" + url.PathEscape(handle)
}

// ChallengeLink returns a link to a hashtag page from its name
// (without the '#').
func ChallengeLink(tag string) string {
	return "https://www.tiktok.com/tag/" + url.PathEscape(tag)
}
