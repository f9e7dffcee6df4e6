package notify

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("notify: notification not found")

type Type string

const (
	TypeLike    Type = "like"
	TypeComment Type = "comment"
	TypeFollow  Type = "follow"
	TypeMention Type = "mention"
	TypeRepost  Type = "repost"
)

// Notification is owned by its recipient (UserID) and written only by the
// Dispatcher. Read is the only field that ever changes.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ActorID   string    `json:"actorId"`
	Type      Type      `json:"type"`
	PostID    *string   `json:"postId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
