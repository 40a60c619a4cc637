package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tiktok "github.com/corvuslabs/tiktokapigo"
)

func main() {
	video := flag.String("video", "", "Link to a TikTok video to look up")
	user := flag.String("user", "", "TikTok user handle to look up (no '@')")
	challenge := flag.String("challenge", "", "Challenge/hashtag to look up (no '#')")
	limit := flag.Int("limit", 10, "Max videos to hydrate from a listing")
	scroll := flag.Duration("scroll", 0, "How long to scroll listings for more results")
	mobile := flag.Bool("mobile", false, "Emulate a mobile device (required for slideshows)")
	proxyURL := flag.String("proxy", "", "Proxy URL (http/https/socks5)")
	cookies := flag.String("cookies", "", "Path to a cookies JSON file to load")
	saveCookies := flag.String("save-cookies", "", "Path to save session cookies on exit")
	dump := flag.String("dump", "", "Prefix for raw data dump files")
	flag.Parse()

	if *video == "" && *user == "" && *challenge == "" {
		fmt.Fprintln(os.Stderr, "usage: tiktok --video <link> | --user <handle> | --challenge <tag>")
		os.Exit(1)
	}

	api := tiktok.New().
		WithScrollDownTime(*scroll).
		WithNavigationTimeout(30 * time.Second).
		WithNavigationRetries(2)
	if *mobile {
		api = api.WithMobileEmulation()
	}
	if *dump != "" {
		api = api.WithDataDump(*dump)
	}
	defer api.Close()

	if *proxyURL != "" {
		if err := api.SetProxy(*proxyURL); err != nil {
			log.Fatalf("set proxy: %v", err)
		}
	}
	if *cookies != "" {
		if err := api.LoadCookies(*cookies); err != nil {
			log.Fatalf("load cookies: %v", err)
		}
	}

	ctx := context.Background()

	switch {
	case *video != "":
		v, err := api.Video(ctx, *video)
		if err != nil {
			log.Fatalf("get video: %v", err)
		}
		printVideo(v)

	case *user != "":
		u, err := api.User(ctx, *user, tiktok.WithVideoLimit(*limit))
		if err != nil {
			log.Fatalf("get user: %v", err)
		}
		printUser(u)
		printListing(ctx, u.Videos)

	case *challenge != "":
		c, err := api.Challenge(ctx, *challenge, tiktok.WithVideoLimit(*limit))
		if err != nil {
			log.Fatalf("get challenge: %v", err)
		}
		fmt.Printf("Challenge: #%s (%s)\n", c.Title, c.ID)
		fmt.Printf("Videos:    %d\n", c.Stats.Videos)
		fmt.Printf("Views:     %d\n", c.Stats.Views)
		printListing(ctx, c.Videos)
	}

	if *saveCookies != "" {
		if err := api.SaveCookies(*saveCookies); err != nil {
			log.Fatalf("save cookies: %v", err)
		}
	}
}

func printVideo(v *tiktok.Video) {
	fmt.Printf("Video:    %s by @%s\n", v.ID, v.Author)
	fmt.Printf("Posted:   %s\n", v.CreatedAt.Format("2006-01-02"))
	fmt.Printf("Stats:    %d plays, %d likes, %d comments, %d shares\n",
		v.Stats.Plays, v.Stats.Likes, v.Stats.Comments, v.Stats.Shares)
	if v.Description != "" {
		fmt.Printf("Desc:     %s\n", v.Description)
	}
	if v.ImagePost != nil {
		fmt.Printf("Slides:   %d images\n", len(v.ImagePost.Images))
	}
	for _, c := range v.Comments {
		fmt.Printf("  @%s: %s (%d likes)\n", c.Author.Handle, c.Text, c.Likes)
	}
}

func printUser(u *tiktok.User) {
	fmt.Printf("User:      @%s (%s)\n", u.Handle, u.Nickname)
	fmt.Printf("Followers: %d\n", u.Stats.Followers)
	fmt.Printf("Following: %d\n", u.Stats.Following)
	fmt.Printf("Videos:    %d\n", u.Stats.Videos)
	fmt.Printf("Verified:  %v\n", u.Verified)
	if u.Signature != "" {
		fmt.Printf("Bio:       %s\n", u.Signature)
	}
}

func printListing(ctx context.Context, it *tiktok.VideoIterator) {
	n := 0
	for it.Next(ctx) {
		v := it.Video()
		n++
		fmt.Printf("[%d] %s by @%s: %d plays, %d likes (%s)\n",
			n, v.ID, v.Author, v.Stats.Plays, v.Stats.Likes,
			v.CreatedAt.Format("2006-01-02"))
	}
	if err := it.Err(); err != nil {
		log.Fatalf("iterate videos: %v", err)
	}
	fmt.Printf("\nTotal: %d videos\n", n)
}
