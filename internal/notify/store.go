package notify

import (
	"context"
	"errors"
	"time"

	"github.com/pianoholic0120/wp1141-sub002/internal/db"

	"github.com/jackc/pgx/v5"
)

// Store is the notification table. Only the Dispatcher writes to it.
type Store interface {
	FindRecentUnread(ctx context.Context, recipientID, actorID string, typ Type, postID *string, since time.Time) (Notification, bool, error)
	Insert(ctx context.Context, n Notification) error
	Get(ctx context.Context, id string) (Notification, error)
	MarkRead(ctx context.Context, id string) (Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	List(ctx context.Context, userID string, limit, offset int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type PGStore struct {
	db db.Querier
}

func NewPGStore(db db.Querier) *PGStore {
	return &PGStore{db: db}
}

const columns = `id, user_id, actor_id, type, post_id, read, created_at`

// FindRecentUnread returns the newest unread notification matching the key
// that was created after since. A nil postID matches only rows without a post.
func (s *PGStore) FindRecentUnread(ctx context.Context, recipientID, actorID string, typ Type, postID *string, since time.Time) (Notification, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+columns+`
		FROM notifications
		WHERE user_id=$1 AND actor_id=$2 AND type=$3
		  AND post_id IS NOT DISTINCT FROM $4
		  AND NOT read AND created_at > $5
		ORDER BY created_at DESC
		LIMIT 1
	`, recipientID, actorID, string(typ), postID, since)
	n, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, err
	}
	return n, true, nil
}

func (s *PGStore) Insert(ctx context.Context, n Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, actor_id, type, post_id, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, n.ID, n.UserID, n.ActorID, string(n.Type), n.PostID, n.Read, n.CreatedAt)
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (Notification, error) {
	n, err := scan(s.db.QueryRow(ctx, `SELECT `+columns+` FROM notifications WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func (s *PGStore) MarkRead(ctx context.Context, id string) (Notification, error) {
	n, err := scan(s.db.QueryRow(ctx, `
		UPDATE notifications SET read = true WHERE id=$1
		RETURNING `+columns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func (s *PGStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET read = true WHERE user_id=$1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// List returns userID's notifications, newest first.
func (s *PGStore) List(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+columns+`
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Notification{}
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *PGStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT read`, userID).Scan(&n)
	return n, err
}

func scan(row pgx.Row) (Notification, error) {
	var n Notification
	var typ string
	if err := row.Scan(&n.ID, &n.UserID, &n.ActorID, &typ, &n.PostID, &n.Read, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	n.Type = Type(typ)
	return n, nil
}
