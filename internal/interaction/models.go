package interaction

import (
	"github.com/pianoholic0120/wp1141-sub002/internal/ledger"
	"github.com/pianoholic0120/wp1141-sub002/internal/post"
)

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

type RepostResult struct {
	Reposted    bool `json:"reposted"`
	RepostCount int  `json:"repostCount"`
}

type FollowResult struct {
	FollowerCount int `json:"followerCount"`
}

// PostView is a post as seen by one caller.
type PostView struct {
	post.Post
	ledger.Counts
	OriginalPost *PostView `json:"originalPost,omitempty"`
}

// NewPost is the input to CreatePost. Mentions and Hashtags are merged with
// the ones found in Content.
type NewPost struct {
	Content       string
	Visibility    post.Visibility
	ReplySettings post.ReplySetting
	Mentions      []string
	Hashtags      []string
}

type NewComment struct {
	Content  string
	Mentions []string
}
