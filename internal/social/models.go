package social

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("social: user not found")
	ErrSelfFollow   = errors.New("social: follower and following are the same user")
	ErrHandleTaken  = errors.New("social: handle already taken")
)

type User struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type FollowStatus struct {
	IsFollowing    bool `json:"isFollowing"`
	FollowerCount  int  `json:"followerCount"`
	FollowingCount int  `json:"followingCount"`
}
