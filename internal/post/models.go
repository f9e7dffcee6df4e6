package post

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("post: not found")
	ErrAuthorNotFound = errors.New("post: author not found")
	// ErrRepostExists is returned when the author already holds a repost of
	// the same original.
	ErrRepostExists = errors.New("post: repost already exists")
)

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityMentioned Visibility = "mentioned"
)

type ReplySetting string

const (
	ReplyEveryone  ReplySetting = "everyone"
	ReplyFollowers ReplySetting = "followers"
	ReplyMentioned ReplySetting = "mentioned"
)

type Post struct {
	ID             string       `json:"id"`
	AuthorID       string       `json:"authorId"`
	Content        string       `json:"content"`
	ParentPostID   *string      `json:"parentPostId,omitempty"`
	OriginalPostID *string      `json:"originalPostId,omitempty"`
	IsRepost       bool         `json:"isRepost"`
	Visibility     Visibility   `json:"visibility"`
	ReplySettings  ReplySetting `json:"replySettings"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func (p Post) IsComment() bool {
	return p.ParentPostID != nil
}

// Draft is the input to Create. Mentions are handles, Hashtags are tags
// without the leading '#'.
type Draft struct {
	AuthorID       string
	Content        string
	ParentPostID   *string
	OriginalPostID *string
	IsRepost       bool
	Visibility     Visibility
	ReplySettings  ReplySetting
	Mentions       []string
	Hashtags       []string
}

// Created is a stored post together with the user ids its mentions resolved to.
type Created struct {
	Post
	MentionedUserIDs []string `json:"-"`
}
