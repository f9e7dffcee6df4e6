package stream

// Channel families. Post channels carry count deltas for one post, user
// channels carry notification and follower deltas for one recipient, and the
// feed channel carries newly inserted posts.
const FeedChannel = "posts"

func PostChannel(postID string) string { return "post:" + postID }

func UserChannel(userID string) string { return "user:" + userID }

const (
	EventLikeAdded         = "like-added"
	EventLikeRemoved       = "like-removed"
	EventRepostAdded       = "repost-added"
	EventRepostRemoved     = "repost-removed"
	EventFollowAdded       = "follow-added"
	EventFollowRemoved     = "follow-removed"
	EventNewNotification   = "new-notification"
	EventNotificationsRead = "notifications-read"
	EventCommentAdded      = "comment-added"
	EventNewPost           = "new-post"
)

// Envelope is the frame written to websocket subscribers and redis.
type Envelope struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Data    any    `json:"data"`
}

type LikeEvent struct {
	PostID    string `json:"postId"`
	UserID    string `json:"userId"`
	LikeCount int    `json:"likeCount"`
}

type RepostEvent struct {
	PostID      string `json:"postId"`
	UserID      string `json:"userId"`
	RepostCount int    `json:"repostCount"`
}

type FollowEvent struct {
	FollowerID    string `json:"followerId"`
	FollowingID   string `json:"followingId"`
	FollowerCount int    `json:"followerCount"`
}

type NotificationEvent struct {
	Notification any `json:"notification"`
}

type ReadEvent struct {
	UserID string `json:"userId"`
}

type CommentEvent struct {
	PostID       string `json:"postId"`
	CommentCount int    `json:"commentCount"`
	Comment      any    `json:"comment"`
}

type PostEvent struct {
	Post any `json:"post"`
}
