// Package visibility decides who may see, and reply to, a post.
package visibility

import (
	"context"
	"errors"

	"github.com/pianoholic0120/wp1141-sub002/internal/post"
)

type PostSource interface {
	Get(ctx context.Context, id string) (post.Post, error)
}

// Graph answers whether a follow edge joins two users in either direction.
type Graph interface {
	Connected(ctx context.Context, a, b string) (bool, error)
}

// MentionIndex answers whether a user's handle is mentioned by a post.
type MentionIndex interface {
	Mentions(ctx context.Context, postID, userID string) (bool, error)
}

// Resolver only reads, so a single value is safe for concurrent use.
type Resolver struct {
	posts    PostSource
	graph    Graph
	mentions MentionIndex
}

func NewResolver(posts PostSource, graph Graph, mentions MentionIndex) *Resolver {
	return &Resolver{posts: posts, graph: graph, mentions: mentions}
}

// CanView reports whether callerID ("" for anonymous) may view postID. A
// missing post is not visible.
func (r *Resolver) CanView(ctx context.Context, postID, callerID string) (bool, error) {
	p, err := r.posts.Get(ctx, postID)
	if errors.Is(err, post.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.CanViewPost(ctx, p, callerID)
}

// CanViewPost applies the visibility mode of an already loaded post.
func (r *Resolver) CanViewPost(ctx context.Context, p post.Post, callerID string) (bool, error) {
	if callerID != "" && callerID == p.AuthorID {
		return true, nil
	}

	switch p.Visibility {
	case post.VisibilityPublic:
		return true, nil
	case post.VisibilityFollowers:
		return r.connected(ctx, p.AuthorID, callerID)
	case post.VisibilityMentioned:
		return r.mentioned(ctx, p.ID, callerID)
	default:
		return false, nil
	}
}

// CanReply applies the post's reply setting. The author may always reply.
func (r *Resolver) CanReply(ctx context.Context, p post.Post, callerID string) (bool, error) {
	if callerID == "" {
		return false, nil
	}
	if callerID == p.AuthorID {
		return true, nil
	}

	switch p.ReplySettings {
	case post.ReplyEveryone, "":
		return true, nil
	case post.ReplyFollowers:
		return r.connected(ctx, p.AuthorID, callerID)
	case post.ReplyMentioned:
		return r.mentioned(ctx, p.ID, callerID)
	default:
		return false, nil
	}
}

func (r *Resolver) connected(ctx context.Context, authorID, callerID string) (bool, error) {
	if callerID == "" {
		return false, nil
	}
	return r.graph.Connected(ctx, callerID, authorID)
}

func (r *Resolver) mentioned(ctx context.Context, postID, callerID string) (bool, error) {
	if callerID == "" {
		return false, nil
	}
	return r.mentions.Mentions(ctx, postID, callerID)
}
