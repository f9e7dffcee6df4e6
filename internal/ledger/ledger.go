// Package ledger records likes and reposts as uniquely keyed rows and derives
// counts from them. Uniqueness is left to the store's keys: likes on
// (user_id, post_id) and reposts on the partial index over
// (author_id, original_post_id), so concurrent toggles never double insert.
package ledger

import (
	"context"
	"errors"

	"github.com/pianoholic0120/wp1141-sub002/internal/db"
)

var (
	ErrPostNotFound = errors.New("ledger: post not found")
	ErrUserNotFound = errors.New("ledger: user not found")
)

// Foreign keys on likes, named in schema.sql.
const (
	likesPostFK = "likes_post_fk"
	likesUserFK = "likes_user_fk"
)

// Counts are derived from row cardinality at read time.
type Counts struct {
	LikeCount    int  `json:"likeCount"`
	RepostCount  int  `json:"repostCount"`
	CommentCount int  `json:"commentCount"`
	IsLiked      bool `json:"isLiked"`
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// LikeOn inserts the like if absent. inserted is false when the row already
// existed, which includes losing a race against a concurrent insert.
func (s *Service) LikeOn(ctx context.Context, userID, postID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO likes (user_id, post_id)
		VALUES ($1,$2)
		ON CONFLICT (user_id, post_id) DO NOTHING
	`, userID, postID)
	if db.IsForeignKeyViolation(err) {
		switch db.ConstraintName(err) {
		case likesPostFK:
			return false, ErrPostNotFound
		case likesUserFK:
			return false, ErrUserNotFound
		}
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// LikeOff deletes the like if present.
func (s *Service) LikeOff(ctx context.Context, userID, postID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM likes WHERE user_id=$1 AND post_id=$2`, userID, postID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Service) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id=$1`, postID).Scan(&n)
	return n, err
}

// RepostOff deletes authorID's repost of originalID if present.
func (s *Service) RepostOff(ctx context.Context, authorID, originalID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM posts
		WHERE author_id=$1 AND original_post_id=$2 AND is_repost
	`, authorID, originalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Service) CountReposts(ctx context.Context, originalID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM posts WHERE original_post_id=$1 AND is_repost
	`, originalID).Scan(&n)
	return n, err
}

// Counts reads every derived count for postID in one round trip. IsLiked is
// false for an anonymous caller.
func (s *Service) Counts(ctx context.Context, postID, callerID string) (Counts, error) {
	var c Counts
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM likes WHERE post_id=$1),
			(SELECT COUNT(*) FROM posts WHERE original_post_id=$1 AND is_repost),
			(SELECT COUNT(*) FROM posts WHERE parent_post_id=$1),
			EXISTS (SELECT 1 FROM likes WHERE post_id=$1 AND user_id=$2)
	`, postID, callerID).Scan(&c.LikeCount, &c.RepostCount, &c.CommentCount, &c.IsLiked)
	return c, err
}
