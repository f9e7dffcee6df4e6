// Package social stores users and the directed follow graph.
package social

import (
	"context"
	"errors"

	"github.com/pianoholic0120/wp1141-sub002/internal/db"
	"github.com/pianoholic0120/wp1141-sub002/internal/textparse"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// CreateUser adds a user with a normalised handle. Profiles live with the
// identity provider; this seeds the directory for local use.
func (s *Service) CreateUser(ctx context.Context, handle, name string) (User, error) {
	u := User{
		ID:     uuid.NewString(),
		Handle: textparse.NormalizeHandle(handle),
		Name:   name,
	}
	if u.Handle == "" {
		return User{}, errors.New("social: handle required")
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (id, handle, name)
		VALUES ($1,$2,$3)
		RETURNING created_at
	`, u.ID, u.Handle, u.Name).Scan(&u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return User{}, ErrHandleTaken
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// ResolveUser looks a user up by id or by handle.
func (s *Service) ResolveUser(ctx context.Context, ref string) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, handle, name, created_at
		FROM users
		WHERE id = $1 OR handle = $2
		ORDER BY (id = $1) DESC
		LIMIT 1
	`, ref, textparse.NormalizeHandle(ref)).Scan(&u.ID, &u.Handle, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Follow creates the edge. created is false when the edge already existed;
// the primary key decides, so concurrent calls create at most one row.
func (s *Service) Follow(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == followingID {
		return false, ErrSelfFollow
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO user_follows (follower_id, following_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, followerID, followingID)
	switch {
	case db.IsForeignKeyViolation(err):
		return false, ErrUserNotFound
	case db.IsCheckViolation(err):
		return false, ErrSelfFollow
	case err != nil:
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Unfollow removes the edge if present.
func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM user_follows WHERE follower_id=$1 AND following_id=$2
	`, followerID, followingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Service) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_follows WHERE follower_id=$1 AND following_id=$2)
	`, followerID, followingID).Scan(&exists)
	return exists, err
}

// Connected reports whether an edge exists between a and b in either direction.
func (s *Service) Connected(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_follows
			WHERE (follower_id=$1 AND following_id=$2)
			   OR (follower_id=$2 AND following_id=$1)
		)
	`, a, b).Scan(&exists)
	return exists, err
}

func (s *Service) FollowerCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_follows WHERE following_id=$1`, userID).Scan(&n)
	return n, err
}

func (s *Service) FollowingCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_follows WHERE follower_id=$1`, userID).Scan(&n)
	return n, err
}

// Followers lists the ids following userID, newest edge first.
func (s *Service) Followers(ctx context.Context, userID string, limit int) ([]string, error) {
	return s.edges(ctx, `
		SELECT follower_id FROM user_follows
		WHERE following_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
}

// Following lists the ids userID follows, newest edge first.
func (s *Service) Following(ctx context.Context, userID string, limit int) ([]string, error) {
	return s.edges(ctx, `
		SELECT following_id FROM user_follows
		WHERE follower_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
}

func (s *Service) edges(ctx context.Context, query, userID string, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
