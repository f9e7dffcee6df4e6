// Package notify creates, lists and marks notifications, collapsing repeated
// identical requests inside a dedup window, and pushes changes to the
// recipient's user channel.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pianoholic0120/wp1141-sub002/internal/apperr"
	"github.com/pianoholic0120/wp1141-sub002/internal/stream"

	"github.com/google/uuid"
)

// DefaultWindow is how long an unread notification absorbs identical repeats.
const DefaultWindow = 60 * time.Second

// Publisher is the fan-out capability. Errors are logged, never returned.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type Dispatcher struct {
	store  Store
	pub    Publisher
	window time.Duration
	now    func() time.Time
}

func NewDispatcher(store Store, pub Publisher, window time.Duration) *Dispatcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Dispatcher{store: store, pub: pub, window: window, now: time.Now}
}

// Notify records that actorID did typ to recipientID. It returns nil without
// writing when recipient and actor are the same user, and returns the existing
// row when an identical unread one is younger than the window.
func (d *Dispatcher) Notify(ctx context.Context, recipientID, actorID string, typ Type, postID *string) (*Notification, error) {
	if recipientID == "" || recipientID == actorID {
		return nil, nil
	}

	now := d.now().UTC()
	existing, found, err := d.store.FindRecentUnread(ctx, recipientID, actorID, typ, postID, now.Add(-d.window))
	if err != nil {
		return nil, err
	}
	if found {
		slog.Debug("notification deduplicated", "id", existing.ID, "type", typ, "recipient", recipientID)
		return &existing, nil
	}

	n := Notification{
		ID:        uuid.NewString(),
		UserID:    recipientID,
		ActorID:   actorID,
		Type:      typ,
		PostID:    postID,
		CreatedAt: now,
	}
	if err := d.store.Insert(ctx, n); err != nil {
		return nil, err
	}

	d.publish(ctx, stream.UserChannel(recipientID), stream.EventNewNotification, stream.NotificationEvent{Notification: n})
	return &n, nil
}

// MarkRead marks one notification read on behalf of its recipient.
func (d *Dispatcher) MarkRead(ctx context.Context, id, callerID string) (Notification, error) {
	n, err := d.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Notification{}, apperr.NotFound("notification not found")
	}
	if err != nil {
		return Notification{}, apperr.Upstream("get notification", err)
	}
	if n.UserID != callerID {
		return Notification{}, apperr.Forbidden("notification not owned by caller")
	}

	n, err = d.store.MarkRead(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Notification{}, apperr.NotFound("notification not found")
	}
	if err != nil {
		return Notification{}, apperr.Upstream("mark notification read", err)
	}

	d.publish(ctx, stream.UserChannel(callerID), stream.EventNotificationsRead, stream.ReadEvent{UserID: callerID})
	return n, nil
}

// MarkAllRead marks every unread notification of callerID read and publishes
// a single read event.
func (d *Dispatcher) MarkAllRead(ctx context.Context, callerID string) (int64, error) {
	n, err := d.store.MarkAllRead(ctx, callerID)
	if err != nil {
		return 0, apperr.Upstream("mark all notifications read", err)
	}
	d.publish(ctx, stream.UserChannel(callerID), stream.EventNotificationsRead, stream.ReadEvent{UserID: callerID})
	return n, nil
}

func (d *Dispatcher) List(ctx context.Context, callerID string, limit, offset int) ([]Notification, error) {
	list, err := d.store.List(ctx, callerID, limit, offset)
	if err != nil {
		return nil, apperr.Upstream("list notifications", err)
	}
	return list, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, callerID string) (int, error) {
	n, err := d.store.UnreadCount(ctx, callerID)
	if err != nil {
		return 0, apperr.Upstream("count unread notifications", err)
	}
	return n, nil
}

// publish outlives the request: a disconnect after the write must not drop
// the push.
func (d *Dispatcher) publish(ctx context.Context, channel, event string, payload any) {
	if d.pub == nil {
		return
	}
	if err := d.pub.Publish(context.WithoutCancel(ctx), channel, event, payload); err != nil {
		slog.Warn("fan-out failed", "channel", channel, "event", event, "err", err)
	}
}
