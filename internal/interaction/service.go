// Package interaction sequences every user interaction: visibility check,
// ledger write, count read-back, notification and fan-out. It keeps no state
// of its own, so any number of replicas may serve the same store.
package interaction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pianoholic0120/wp1141-sub002/internal/apperr"
	"github.com/pianoholic0120/wp1141-sub002/internal/ledger"
	"github.com/pianoholic0120/wp1141-sub002/internal/notify"
	"github.com/pianoholic0120/wp1141-sub002/internal/post"
	"github.com/pianoholic0120/wp1141-sub002/internal/social"
	"github.com/pianoholic0120/wp1141-sub002/internal/stream"
	"github.com/pianoholic0120/wp1141-sub002/internal/textparse"
)

// errNotVisible never says whether the post exists.
var errNotVisible = apperr.Forbidden("post not accessible")

// errUnknownCaller is a valid token whose subject has no user row.
var errUnknownCaller = apperr.NotFound("user not found")

// hashtagScanBatch bounds each store read while filling a page of visible
// hashtag posts.
const hashtagScanBatch = 100

type Service struct {
	posts    Posts
	ledger   Ledger
	graph    Graph
	vis      Visibility
	notifier Notifier
	pub      Publisher
}

func NewService(d Deps) *Service {
	return &Service{
		posts:    d.Posts,
		ledger:   d.Ledger,
		graph:    d.Graph,
		vis:      d.Visibility,
		notifier: d.Notifier,
		pub:      d.Publisher,
	}
}

// ToggleLike flips userID's like on postID. Unliking needs no visibility
// check since the existing row proves earlier access.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (LikeResult, error) {
	if userID == "" {
		return LikeResult{}, apperr.Unauthorized("sign in required")
	}
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return LikeResult{}, err
	}

	removed, err := s.ledger.LikeOff(ctx, userID, p.ID)
	if err != nil {
		return LikeResult{}, apperr.Upstream("unlike", err)
	}
	if removed {
		count, err := s.ledger.CountLikes(ctx, p.ID)
		if err != nil {
			return LikeResult{}, apperr.Upstream("count likes", err)
		}
		s.publish(ctx, stream.PostChannel(p.ID), stream.EventLikeRemoved, stream.LikeEvent{PostID: p.ID, UserID: userID, LikeCount: count})
		return LikeResult{Liked: false, LikeCount: count}, nil
	}

	if err := s.requireView(ctx, p, userID); err != nil {
		return LikeResult{}, err
	}
	inserted, err := s.ledger.LikeOn(ctx, userID, p.ID)
	if errors.Is(err, ledger.ErrPostNotFound) {
		return LikeResult{}, apperr.NotFound("post not found")
	}
	if errors.Is(err, ledger.ErrUserNotFound) {
		return LikeResult{}, errUnknownCaller
	}
	if err != nil {
		return LikeResult{}, apperr.Upstream("like", err)
	}
	if !inserted {
		slog.Debug("like already present", "post", p.ID, "user", userID)
	}

	count, err := s.ledger.CountLikes(ctx, p.ID)
	if err != nil {
		return LikeResult{}, apperr.Upstream("count likes", err)
	}
	s.publish(ctx, stream.PostChannel(p.ID), stream.EventLikeAdded, stream.LikeEvent{PostID: p.ID, UserID: userID, LikeCount: count})
	if inserted {
		s.notify(ctx, p.AuthorID, userID, notify.TypeLike, &p.ID)
	}
	return LikeResult{Liked: true, LikeCount: count}, nil
}

// ToggleRepost flips userID's repost of postID. Reposting a repost targets
// its original, so chains never form.
func (s *Service) ToggleRepost(ctx context.Context, userID, postID, content string) (RepostResult, error) {
	if userID == "" {
		return RepostResult{}, apperr.Unauthorized("sign in required")
	}
	target, err := s.loadPost(ctx, postID)
	if err != nil {
		return RepostResult{}, err
	}
	if target.IsRepost && target.OriginalPostID != nil {
		target, err = s.loadPost(ctx, *target.OriginalPostID)
		if err != nil {
			return RepostResult{}, err
		}
	}
	if err := s.requireView(ctx, target, userID); err != nil {
		return RepostResult{}, err
	}

	removed, err := s.ledger.RepostOff(ctx, userID, target.ID)
	if err != nil {
		return RepostResult{}, apperr.Upstream("unrepost", err)
	}
	if removed {
		count, err := s.ledger.CountReposts(ctx, target.ID)
		if err != nil {
			return RepostResult{}, apperr.Upstream("count reposts", err)
		}
		s.publish(ctx, stream.PostChannel(target.ID), stream.EventRepostRemoved, stream.RepostEvent{PostID: target.ID, UserID: userID, RepostCount: count})
		return RepostResult{Reposted: false, RepostCount: count}, nil
	}

	parsed := textparse.Parse(content)
	created, err := s.posts.Create(ctx, post.Draft{
		AuthorID:       userID,
		Content:        content,
		OriginalPostID: &target.ID,
		IsRepost:       true,
		Visibility:     target.Visibility,
		ReplySettings:  post.ReplyEveryone,
		Mentions:       parsed.Mentions,
		Hashtags:       parsed.Hashtags,
	})
	inserted := true
	switch {
	case errors.Is(err, post.ErrRepostExists):
		inserted = false
		slog.Debug("repost already present", "post", target.ID, "user", userID)
	case errors.Is(err, post.ErrAuthorNotFound):
		return RepostResult{}, errUnknownCaller
	case errors.Is(err, post.ErrNotFound):
		return RepostResult{}, apperr.NotFound("post not found")
	case err != nil:
		return RepostResult{}, apperr.Upstream("repost", err)
	}

	count, err := s.ledger.CountReposts(ctx, target.ID)
	if err != nil {
		return RepostResult{}, apperr.Upstream("count reposts", err)
	}
	s.publish(ctx, stream.PostChannel(target.ID), stream.EventRepostAdded, stream.RepostEvent{PostID: target.ID, UserID: userID, RepostCount: count})
	if inserted {
		s.publishFeed(ctx, created.Post)
		s.notify(ctx, target.AuthorID, userID, notify.TypeRepost, &target.ID)
		for _, id := range created.MentionedUserIDs {
			if id != target.AuthorID {
				s.notify(ctx, id, userID, notify.TypeMention, &created.ID)
			}
		}
	}
	return RepostResult{Reposted: true, RepostCount: count}, nil
}

// Follow resolves targetRef by id or handle and adds the edge. An existing
// edge is a conflict.
func (s *Service) Follow(ctx context.Context, followerID, targetRef string) (FollowResult, error) {
	if followerID == "" {
		return FollowResult{}, apperr.Unauthorized("sign in required")
	}
	target, err := s.resolveUser(ctx, targetRef)
	if err != nil {
		return FollowResult{}, err
	}
	if target.ID == followerID {
		return FollowResult{}, apperr.InvalidArgument("cannot follow yourself")
	}

	created, err := s.graph.Follow(ctx, followerID, target.ID)
	switch {
	case errors.Is(err, social.ErrSelfFollow):
		return FollowResult{}, apperr.InvalidArgument("cannot follow yourself")
	case errors.Is(err, social.ErrUserNotFound):
		return FollowResult{}, apperr.NotFound("user not found")
	case err != nil:
		return FollowResult{}, apperr.Upstream("follow", err)
	case !created:
		return FollowResult{}, apperr.Conflict("already following")
	}

	count, err := s.graph.FollowerCount(ctx, target.ID)
	if err != nil {
		return FollowResult{}, apperr.Upstream("count followers", err)
	}
	s.publish(ctx, stream.UserChannel(target.ID), stream.EventFollowAdded, stream.FollowEvent{FollowerID: followerID, FollowingID: target.ID, FollowerCount: count})
	s.notify(ctx, target.ID, followerID, notify.TypeFollow, nil)
	return FollowResult{FollowerCount: count}, nil
}

// Unfollow removes the edge if present. A missing edge is not an error and
// publishes nothing.
func (s *Service) Unfollow(ctx context.Context, followerID, targetRef string) (FollowResult, error) {
	if followerID == "" {
		return FollowResult{}, apperr.Unauthorized("sign in required")
	}
	target, err := s.resolveUser(ctx, targetRef)
	if err != nil {
		return FollowResult{}, err
	}

	removed, err := s.graph.Unfollow(ctx, followerID, target.ID)
	if err != nil {
		return FollowResult{}, apperr.Upstream("unfollow", err)
	}
	count, err := s.graph.FollowerCount(ctx, target.ID)
	if err != nil {
		return FollowResult{}, apperr.Upstream("count followers", err)
	}
	if removed {
		s.publish(ctx, stream.UserChannel(target.ID), stream.EventFollowRemoved, stream.FollowEvent{FollowerID: followerID, FollowingID: target.ID, FollowerCount: count})
	}
	return FollowResult{FollowerCount: count}, nil
}

// FollowStatus reports counts for targetRef and whether callerID follows it.
func (s *Service) FollowStatus(ctx context.Context, callerID, targetRef string) (social.FollowStatus, error) {
	target, err := s.resolveUser(ctx, targetRef)
	if err != nil {
		return social.FollowStatus{}, err
	}

	var st social.FollowStatus
	if callerID != "" && callerID != target.ID {
		if st.IsFollowing, err = s.graph.IsFollowing(ctx, callerID, target.ID); err != nil {
			return social.FollowStatus{}, apperr.Upstream("follow status", err)
		}
	}
	if st.FollowerCount, err = s.graph.FollowerCount(ctx, target.ID); err != nil {
		return social.FollowStatus{}, apperr.Upstream("count followers", err)
	}
	if st.FollowingCount, err = s.graph.FollowingCount(ctx, target.ID); err != nil {
		return social.FollowStatus{}, apperr.Upstream("count following", err)
	}
	return st, nil
}

func (s *Service) Followers(ctx context.Context, targetRef string, limit int) ([]string, error) {
	target, err := s.resolveUser(ctx, targetRef)
	if err != nil {
		return nil, err
	}
	ids, err := s.graph.Followers(ctx, target.ID, limit)
	if err != nil {
		return nil, apperr.Upstream("list followers", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *Service) Following(ctx context.Context, targetRef string, limit int) ([]string, error) {
	target, err := s.resolveUser(ctx, targetRef)
	if err != nil {
		return nil, err
	}
	ids, err := s.graph.Following(ctx, target.ID, limit)
	if err != nil {
		return nil, apperr.Upstream("list following", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// CreatePost stores a top-level post, announces public posts on the feed
// channel and notifies mentioned users.
func (s *Service) CreatePost(ctx context.Context, authorID string, in NewPost) (post.Post, error) {
	if authorID == "" {
		return post.Post{}, apperr.Unauthorized("sign in required")
	}
	parsed := textparse.Parse(in.Content)
	created, err := s.posts.Create(ctx, post.Draft{
		AuthorID:      authorID,
		Content:       in.Content,
		Visibility:    in.Visibility,
		ReplySettings: in.ReplySettings,
		Mentions:      textparse.Merge(in.Mentions, parsed.Mentions, textparse.NormalizeHandle),
		Hashtags:      textparse.Merge(in.Hashtags, parsed.Hashtags, textparse.NormalizeTag),
	})
	if errors.Is(err, post.ErrAuthorNotFound) {
		return post.Post{}, errUnknownCaller
	}
	if err != nil {
		return post.Post{}, apperr.Upstream("create post", err)
	}

	s.publishFeed(ctx, created.Post)
	for _, id := range created.MentionedUserIDs {
		s.notify(ctx, id, authorID, notify.TypeMention, &created.ID)
	}
	return created.Post, nil
}

// GetPost returns the post with its counts. A repost carries its original
// when the caller may see it.
func (s *Service) GetPost(ctx context.Context, callerID, postID string) (PostView, error) {
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return PostView{}, err
	}
	if err := s.requireView(ctx, p, callerID); err != nil {
		return PostView{}, err
	}
	return s.viewWithOriginal(ctx, p, callerID)
}

// viewWithOriginal attaches a repost's original when callerID may see it.
func (s *Service) viewWithOriginal(ctx context.Context, p post.Post, callerID string) (PostView, error) {
	view, err := s.view(ctx, p, callerID)
	if err != nil {
		return PostView{}, err
	}

	if p.IsRepost && p.OriginalPostID != nil {
		orig, err := s.posts.Get(ctx, *p.OriginalPostID)
		switch {
		case errors.Is(err, post.ErrNotFound):
		case err != nil:
			return PostView{}, apperr.Upstream("get original post", err)
		default:
			ok, err := s.vis.CanViewPost(ctx, orig, callerID)
			if err != nil {
				return PostView{}, apperr.Upstream("visibility", err)
			}
			if ok {
				ov, err := s.view(ctx, orig, callerID)
				if err != nil {
					return PostView{}, err
				}
				view.OriginalPost = &ov
			}
		}
	}
	return view, nil
}

// DeletePost removes a post owned by callerID. Reposts are removed by
// toggling the repost instead.
func (s *Service) DeletePost(ctx context.Context, callerID, postID string) error {
	if callerID == "" {
		return apperr.Unauthorized("sign in required")
	}
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != callerID || p.IsRepost {
		return apperr.Forbidden("only the author may delete this post")
	}
	if _, err := s.posts.Delete(ctx, p.ID); err != nil {
		return apperr.Upstream("delete post", err)
	}
	return nil
}

// AddComment replies to postID when both its visibility and reply settings
// admit userID.
func (s *Service) AddComment(ctx context.Context, userID, postID string, in NewComment) (post.Post, error) {
	if userID == "" {
		return post.Post{}, apperr.Unauthorized("sign in required")
	}
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return post.Post{}, err
	}
	if err := s.requireView(ctx, p, userID); err != nil {
		return post.Post{}, err
	}
	ok, err := s.vis.CanReply(ctx, p, userID)
	if err != nil {
		return post.Post{}, apperr.Upstream("reply settings", err)
	}
	if !ok {
		return post.Post{}, apperr.Forbidden("replies are restricted on this post")
	}

	parsed := textparse.Parse(in.Content)
	created, err := s.posts.Create(ctx, post.Draft{
		AuthorID:      userID,
		Content:       in.Content,
		ParentPostID:  &p.ID,
		Visibility:    p.Visibility,
		ReplySettings: post.ReplyEveryone,
		Mentions:      textparse.Merge(in.Mentions, parsed.Mentions, textparse.NormalizeHandle),
		Hashtags:      parsed.Hashtags,
	})
	if errors.Is(err, post.ErrAuthorNotFound) {
		return post.Post{}, errUnknownCaller
	}
	if errors.Is(err, post.ErrNotFound) {
		return post.Post{}, apperr.NotFound("post not found")
	}
	if err != nil {
		return post.Post{}, apperr.Upstream("create comment", err)
	}

	count, err := s.posts.CountComments(ctx, p.ID)
	if err != nil {
		return post.Post{}, apperr.Upstream("count comments", err)
	}
	s.publish(ctx, stream.PostChannel(p.ID), stream.EventCommentAdded, stream.CommentEvent{PostID: p.ID, CommentCount: count, Comment: created.Post})
	s.notify(ctx, p.AuthorID, userID, notify.TypeComment, &p.ID)
	for _, id := range created.MentionedUserIDs {
		if id != p.AuthorID {
			s.notify(ctx, id, userID, notify.TypeMention, &created.ID)
		}
	}
	return created.Post, nil
}

func (s *Service) ListComments(ctx context.Context, callerID, postID string, limit, offset int) ([]post.Post, error) {
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.requireView(ctx, p, callerID); err != nil {
		return nil, err
	}
	comments, err := s.posts.Comments(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, apperr.Upstream("list comments", err)
	}
	return comments, nil
}

// HashtagPosts lists top-level posts tagged with tag that callerID may see,
// newest first, with counts. limit and offset count visible posts only, so a
// page is never short while hidden posts remain behind it.
func (s *Service) HashtagPosts(ctx context.Context, callerID, tag string, limit, offset int) ([]PostView, error) {
	tag = textparse.NormalizeTag(tag)
	if tag == "" {
		return nil, apperr.InvalidArgument("hashtag required")
	}

	views := []PostView{}
	skipped := 0
	for scanned := 0; len(views) < limit; scanned += hashtagScanBatch {
		batch, err := s.posts.ByHashtag(ctx, tag, hashtagScanBatch, scanned)
		if err != nil {
			return nil, apperr.Upstream("list hashtag posts", err)
		}
		for _, p := range batch {
			ok, err := s.vis.CanViewPost(ctx, p, callerID)
			if err != nil {
				return nil, apperr.Upstream("visibility", err)
			}
			if !ok {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			v, err := s.viewWithOriginal(ctx, p, callerID)
			if err != nil {
				return nil, err
			}
			views = append(views, v)
			if len(views) == limit {
				break
			}
		}
		if len(batch) < hashtagScanBatch {
			break
		}
	}
	return views, nil
}

// CanView is the websocket subscription gate for post channels.
func (s *Service) CanView(ctx context.Context, postID, callerID string) (bool, error) {
	p, err := s.posts.Get(ctx, postID)
	if errors.Is(err, post.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.vis.CanViewPost(ctx, p, callerID)
}

func (s *Service) loadPost(ctx context.Context, id string) (post.Post, error) {
	p, err := s.posts.Get(ctx, id)
	if errors.Is(err, post.ErrNotFound) {
		return post.Post{}, apperr.NotFound("post not found")
	}
	if err != nil {
		return post.Post{}, apperr.Upstream("get post", err)
	}
	return p, nil
}

func (s *Service) requireView(ctx context.Context, p post.Post, callerID string) error {
	ok, err := s.vis.CanViewPost(ctx, p, callerID)
	if err != nil {
		return apperr.Upstream("visibility", err)
	}
	if !ok {
		return errNotVisible
	}
	return nil
}

func (s *Service) resolveUser(ctx context.Context, ref string) (social.User, error) {
	u, err := s.graph.ResolveUser(ctx, ref)
	if errors.Is(err, social.ErrUserNotFound) {
		return social.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return social.User{}, apperr.Upstream("resolve user", err)
	}
	return u, nil
}

func (s *Service) view(ctx context.Context, p post.Post, callerID string) (PostView, error) {
	counts, err := s.ledger.Counts(ctx, p.ID, callerID)
	if err != nil {
		return PostView{}, apperr.Upstream("post counts", err)
	}
	return PostView{Post: p, Counts: counts}, nil
}

// publishFeed only announces public posts; the feed channel has no viewer
// gate.
func (s *Service) publishFeed(ctx context.Context, p post.Post) {
	if p.Visibility != post.VisibilityPublic {
		return
	}
	s.publish(ctx, stream.FeedChannel, stream.EventNewPost, stream.PostEvent{Post: p})
}

// publish and notify run after the write has committed; their failures are
// logged and never reach the caller.
func (s *Service) publish(ctx context.Context, channel, event string, payload any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(context.WithoutCancel(ctx), channel, event, payload); err != nil {
		slog.Warn("fan-out failed", "channel", channel, "event", event, "err", err)
	}
}

func (s *Service) notify(ctx context.Context, recipientID, actorID string, typ notify.Type, postID *string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(context.WithoutCancel(ctx), recipientID, actorID, typ, postID); err != nil {
		slog.Warn("notification failed", "recipient", recipientID, "type", typ, "err", err)
	}
}
