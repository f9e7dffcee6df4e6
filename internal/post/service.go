// Package post stores posts, comments and reposts with their mentions and
// hashtags.
package post

import (
	"context"
	"errors"
	"strings"

	"github.com/pianoholic0120/wp1141-sub002/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// authorFK is the posts.author_id foreign key, named in schema.sql.
const authorFK = "posts_author_fk"

const postColumns = `id, author_id, content, parent_post_id, original_post_id, is_repost, visibility, reply_settings, created_at`

// Create inserts the post, its mentions and hashtags in one statement. Unknown
// mention handles are skipped. A repost that collides with the author's
// existing repost of the same original inserts nothing and returns
// ErrRepostExists.
func (s *Service) Create(ctx context.Context, d Draft) (Created, error) {
	p := Post{
		ID:             uuid.NewString(),
		AuthorID:       d.AuthorID,
		Content:        d.Content,
		ParentPostID:   d.ParentPostID,
		OriginalPostID: d.OriginalPostID,
		IsRepost:       d.IsRepost,
		Visibility:     d.Visibility,
		ReplySettings:  d.ReplySettings,
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if p.ReplySettings == "" {
		p.ReplySettings = ReplyEveryone
	}
	mentions := d.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	hashtags := d.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	var mentioned []string
	err := s.db.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO posts (id, author_id, content, parent_post_id, original_post_id, is_repost, visibility, reply_settings)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (author_id, original_post_id) WHERE is_repost DO NOTHING
			RETURNING id, created_at
		), mentioned AS (
			INSERT INTO post_mentions (post_id, user_id)
			SELECT i.id, u.id FROM inserted i JOIN users u ON u.handle = ANY($9::text[])
			ON CONFLICT DO NOTHING
			RETURNING user_id
		), tagged AS (
			INSERT INTO post_hashtags (post_id, tag)
			SELECT i.id, t.tag FROM inserted i, unnest($10::text[]) AS t(tag)
			ON CONFLICT DO NOTHING
		)
		SELECT i.created_at, COALESCE((SELECT array_agg(user_id) FROM mentioned), '{}'::text[])
		FROM inserted i
	`, p.ID, p.AuthorID, p.Content, p.ParentPostID, p.OriginalPostID, p.IsRepost, string(p.Visibility), string(p.ReplySettings), mentions, hashtags).
		Scan(&p.CreatedAt, &mentioned)
	if errors.Is(err, pgx.ErrNoRows) {
		return Created{}, ErrRepostExists
	}
	if db.IsForeignKeyViolation(err) {
		if db.ConstraintName(err) == authorFK {
			return Created{}, ErrAuthorNotFound
		}
		return Created{}, ErrNotFound
	}
	if err != nil {
		return Created{}, err
	}
	return Created{Post: p, MentionedUserIDs: mentioned}, nil
}

func (s *Service) Get(ctx context.Context, id string) (Post, error) {
	row := s.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id=$1`, id)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

// Delete removes the post; likes, comments, reposts and mentions cascade.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Mentions reports whether userID's handle is in postID's mention set.
func (s *Service) Mentions(ctx context.Context, postID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM post_mentions m
			JOIN users mentioned ON mentioned.id = m.user_id
			JOIN users caller ON caller.handle = mentioned.handle
			WHERE m.post_id=$1 AND caller.id=$2
		)
	`, postID, userID).Scan(&ok)
	return ok, err
}

func (s *Service) CountComments(ctx context.Context, postID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE parent_post_id=$1`, postID).Scan(&n)
	return n, err
}

// Comments lists direct replies to postID, oldest first.
func (s *Service) Comments(ctx context.Context, postID string, limit, offset int) ([]Post, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE parent_post_id=$1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

// ByHashtag lists top-level posts tagged with tag, newest first. Comments
// are excluded; reposts are included.
func (s *Service) ByHashtag(ctx context.Context, tag string, limit, offset int) ([]Post, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+qualified("p")+`
		FROM post_hashtags h
		JOIN posts p ON p.id = h.post_id
		WHERE h.tag=$1 AND p.parent_post_id IS NULL
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`, tag, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func qualified(alias string) string {
	cols := strings.Split(postColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func collectPosts(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	var visibility, reply string
	err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &p.ParentPostID, &p.OriginalPostID, &p.IsRepost, &visibility, &reply, &p.CreatedAt)
	if err != nil {
		return Post{}, err
	}
	p.Visibility = Visibility(visibility)
	p.ReplySettings = ReplySetting(reply)
	return p, nil
}
