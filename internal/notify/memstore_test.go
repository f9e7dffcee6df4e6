package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used by dispatcher and handler tests.
type memStore struct {
	mu   sync.Mutex
	rows []Notification
	err  error
}

func samePost(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memStore) FindRecentUnread(_ context.Context, recipientID, actorID string, typ Type, postID *string, since time.Time) (Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Notification{}, false, m.err
	}
	var best *Notification
	for i := range m.rows {
		n := &m.rows[i]
		if n.UserID != recipientID || n.ActorID != actorID || n.Type != typ || n.Read || !samePost(n.PostID, postID) {
			continue
		}
		if !n.CreatedAt.After(since) {
			continue
		}
		if best == nil || n.CreatedAt.After(best.CreatedAt) {
			best = n
		}
	}
	if best == nil {
		return Notification{}, false, nil
	}
	return *best, true, nil
}

func (m *memStore) Insert(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, n)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Notification{}, m.err
	}
	for _, n := range m.rows {
		if n.ID == id {
			return n, nil
		}
	}
	return Notification{}, ErrNotFound
}

func (m *memStore) MarkRead(_ context.Context, id string) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Read = true
			return m.rows[i], nil
		}
	}
	return Notification{}, ErrNotFound
}

func (m *memStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for i := range m.rows {
		if m.rows[i].UserID == userID && !m.rows[i].Read {
			m.rows[i].Read = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) List(_ context.Context, userID string, limit, offset int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	list := []Notification{}
	for _, n := range m.rows {
		if n.UserID == userID {
			list = append(list, n)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if offset >= len(list) {
		return []Notification{}, nil
	}
	list = list[offset:]
	if limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (m *memStore) UnreadCount(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, row := range m.rows {
		if row.UserID == userID && !row.Read {
			n++
		}
	}
	return n, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type published struct {
	channel string
	event   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	frames []published
	err    error
}

func (r *recorder) Publish(_ context.Context, channel, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, published{channel, event, payload})
	return r.err
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.channel+" "+f.event)
	}
	return out
}
