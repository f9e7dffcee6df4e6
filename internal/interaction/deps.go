package interaction

import (
	"context"

	"github.com/pianoholic0120/wp1141-sub002/internal/ledger"
	"github.com/pianoholic0120/wp1141-sub002/internal/notify"
	"github.com/pianoholic0120/wp1141-sub002/internal/post"
	"github.com/pianoholic0120/wp1141-sub002/internal/social"
)

// Posts is the post store.
type Posts interface {
	Create(ctx context.Context, d post.Draft) (post.Created, error)
	Get(ctx context.Context, id string) (post.Post, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountComments(ctx context.Context, postID string) (int, error)
	Comments(ctx context.Context, postID string, limit, offset int) ([]post.Post, error)
	ByHashtag(ctx context.Context, tag string, limit, offset int) ([]post.Post, error)
}

// Ledger holds likes and reposts. LikeOn and RepostOff are create-if-absent
// and delete-if-present; the store's unique keys decide races.
type Ledger interface {
	LikeOn(ctx context.Context, userID, postID string) (bool, error)
	LikeOff(ctx context.Context, userID, postID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int, error)
	RepostOff(ctx context.Context, authorID, originalID string) (bool, error)
	CountReposts(ctx context.Context, originalID string) (int, error)
	Counts(ctx context.Context, postID, callerID string) (ledger.Counts, error)
}

// Graph is the follow graph and user directory.
type Graph interface {
	ResolveUser(ctx context.Context, ref string) (social.User, error)
	Follow(ctx context.Context, followerID, followingID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	FollowerCount(ctx context.Context, userID string) (int, error)
	FollowingCount(ctx context.Context, userID string) (int, error)
	Followers(ctx context.Context, userID string, limit int) ([]string, error)
	Following(ctx context.Context, userID string, limit int) ([]string, error)
}

type Visibility interface {
	CanViewPost(ctx context.Context, p post.Post, callerID string) (bool, error)
	CanReply(ctx context.Context, p post.Post, callerID string) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipientID, actorID string, typ notify.Type, postID *string) (*notify.Notification, error)
}

type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type Deps struct {
	Posts      Posts
	Ledger     Ledger
	Graph      Graph
	Visibility Visibility
	Notifier   Notifier
	Publisher  Publisher
}
