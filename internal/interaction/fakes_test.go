package interaction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pianoholic0120/wp1141-sub002/internal/ledger"
	"github.com/pianoholic0120/wp1141-sub002/internal/notify"
	"github.com/pianoholic0120/wp1141-sub002/internal/post"
	"github.com/pianoholic0120/wp1141-sub002/internal/social"
	"github.com/pianoholic0120/wp1141-sub002/internal/textparse"
	"github.com/pianoholic0120/wp1141-sub002/internal/visibility"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type likeKey struct{ user, post string }
type followKey struct{ follower, following string }
type repostKey struct{ author, original string }

// world is an in-memory store enforcing the same unique keys as the schema:
// one like per (user, post), one repost per (author, original), one follow
// per (follower, following).
type world struct {
	mu       sync.Mutex
	seq      int
	users    map[string]social.User
	posts    map[string]post.Post
	mentions map[string][]string
	hashtags map[string][]string
	likes    map[likeKey]bool
	reposts  map[repostKey]string
	follows  map[followKey]time.Time
	failNext error
}

func newWorld(userIDs ...string) *world {
	w := &world{
		users:    map[string]social.User{},
		posts:    map[string]post.Post{},
		mentions: map[string][]string{},
		hashtags: map[string][]string{},
		likes:    map[likeKey]bool{},
		reposts:  map[repostKey]string{},
		follows:  map[followKey]time.Time{},
	}
	for _, id := range userIDs {
		w.users[id] = social.User{ID: id, Handle: id, Name: id}
	}
	return w
}

func (w *world) fail() error {
	err := w.failNext
	w.failNext = nil
	return err
}

func (w *world) addPost(p post.Post) post.Post {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p.Visibility == "" {
		p.Visibility = post.VisibilityPublic
	}
	if p.ReplySettings == "" {
		p.ReplySettings = post.ReplyEveryone
	}
	w.posts[p.ID] = p
	if p.IsRepost && p.OriginalPostID != nil {
		w.reposts[repostKey{p.AuthorID, *p.OriginalPostID}] = p.ID
	}
	return p
}

func (w *world) addFollow(follower, following string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.follows[followKey{follower, following}] = time.Now()
}

func (w *world) likeRows(postID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for k := range w.likes {
		if k.post == postID {
			n++
		}
	}
	return n
}

// Posts

func (w *world) Create(_ context.Context, d post.Draft) (post.Created, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fail(); err != nil {
		return post.Created{}, err
	}
	if _, ok := w.users[d.AuthorID]; !ok {
		return post.Created{}, post.ErrAuthorNotFound
	}
	for _, ref := range []*string{d.ParentPostID, d.OriginalPostID} {
		if ref != nil {
			if _, ok := w.posts[*ref]; !ok {
				return post.Created{}, post.ErrNotFound
			}
		}
	}
	if d.IsRepost {
		if _, exists := w.reposts[repostKey{d.AuthorID, *d.OriginalPostID}]; exists {
			return post.Created{}, post.ErrRepostExists
		}
	}

	w.seq++
	p := post.Post{
		ID:             fmt.Sprintf("p%d", w.seq),
		AuthorID:       d.AuthorID,
		Content:        d.Content,
		ParentPostID:   d.ParentPostID,
		OriginalPostID: d.OriginalPostID,
		IsRepost:       d.IsRepost,
		Visibility:     d.Visibility,
		ReplySettings:  d.ReplySettings,
		CreatedAt:      epoch.Add(time.Duration(w.seq) * time.Second),
	}
	if p.Visibility == "" {
		p.Visibility = post.VisibilityPublic
	}
	if p.ReplySettings == "" {
		p.ReplySettings = post.ReplyEveryone
	}
	w.posts[p.ID] = p
	if p.IsRepost {
		w.reposts[repostKey{p.AuthorID, *p.OriginalPostID}] = p.ID
	}

	var mentioned []string
	for _, h := range d.Mentions {
		for _, u := range w.users {
			if u.Handle == textparse.NormalizeHandle(h) {
				mentioned = append(mentioned, u.ID)
			}
		}
	}
	w.mentions[p.ID] = mentioned
	w.hashtags[p.ID] = d.Hashtags
	return post.Created{Post: p, MentionedUserIDs: mentioned}, nil
}

func (w *world) Get(_ context.Context, id string) (post.Post, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fail(); err != nil {
		return post.Post{}, err
	}
	p, ok := w.posts[id]
	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	return p, nil
}

func (w *world) Delete(_ context.Context, id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.posts[id]; !ok {
		return false, nil
	}
	w.deleteLocked(id)
	return true, nil
}

func (w *world) deleteLocked(id string) {
	p := w.posts[id]
	delete(w.posts, id)
	delete(w.mentions, id)
	delete(w.hashtags, id)
	if p.IsRepost && p.OriginalPostID != nil {
		delete(w.reposts, repostKey{p.AuthorID, *p.OriginalPostID})
	}
	for k := range w.likes {
		if k.post == id {
			delete(w.likes, k)
		}
	}
	for cid, c := range w.posts {
		if (c.ParentPostID != nil && *c.ParentPostID == id) || (c.OriginalPostID != nil && *c.OriginalPostID == id) {
			w.deleteLocked(cid)
		}
	}
}

func (w *world) CountComments(_ context.Context, postID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, p := range w.posts {
		if p.ParentPostID != nil && *p.ParentPostID == postID {
			n++
		}
	}
	return n, nil
}

func (w *world) Comments(_ context.Context, postID string, limit, offset int) ([]post.Post, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := []post.Post{}
	for _, p := range w.posts {
		if p.ParentPostID != nil && *p.ParentPostID == postID {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if offset >= len(list) {
		return []post.Post{}, nil
	}
	list = list[offset:]
	if limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (w *world) ByHashtag(_ context.Context, tag string, limit, offset int) ([]post.Post, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fail(); err != nil {
		return nil, err
	}
	list := []post.Post{}
	for id, tags := range w.hashtags {
		p := w.posts[id]
		if p.IsComment() {
			continue
		}
		for _, t := range tags {
			if t == tag {
				list = append(list, p)
				break
			}
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if offset >= len(list) {
		return []post.Post{}, nil
	}
	list = list[offset:]
	if limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (w *world) Mentions(_ context.Context, postID, userID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.mentions[postID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// Ledger

func (w *world) LikeOn(_ context.Context, userID, postID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fail(); err != nil {
		return false, err
	}
	if _, ok := w.posts[postID]; !ok {
		return false, ledger.ErrPostNotFound
	}
	if _, ok := w.users[userID]; !ok {
		return false, ledger.ErrUserNotFound
	}
	k := likeKey{userID, postID}
	if w.likes[k] {
		return false, nil
	}
	w.likes[k] = true
	return true, nil
}

func (w *world) LikeOff(_ context.Context, userID, postID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := likeKey{userID, postID}
	if !w.likes[k] {
		return false, nil
	}
	delete(w.likes, k)
	return true, nil
}

func (w *world) CountLikes(_ context.Context, postID string) (int, error) {
	return w.likeRows(postID), nil
}

func (w *world) RepostOff(_ context.Context, authorID, originalID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.reposts[repostKey{authorID, originalID}]
	if !ok {
		return false, nil
	}
	w.deleteLocked(id)
	return true, nil
}

func (w *world) CountReposts(_ context.Context, originalID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for k := range w.reposts {
		if k.original == originalID {
			n++
		}
	}
	return n, nil
}

func (w *world) Counts(ctx context.Context, postID, callerID string) (ledger.Counts, error) {
	likes, _ := w.CountLikes(ctx, postID)
	reposts, _ := w.CountReposts(ctx, postID)
	comments, _ := w.CountComments(ctx, postID)
	w.mu.Lock()
	liked := w.likes[likeKey{callerID, postID}]
	w.mu.Unlock()
	return ledger.Counts{LikeCount: likes, RepostCount: reposts, CommentCount: comments, IsLiked: liked}, nil
}

// Graph

func (w *world) ResolveUser(_ context.Context, ref string) (social.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if u, ok := w.users[ref]; ok {
		return u, nil
	}
	for _, u := range w.users {
		if u.Handle == textparse.NormalizeHandle(ref) {
			return u, nil
		}
	}
	return social.User{}, social.ErrUserNotFound
}

func (w *world) Follow(_ context.Context, followerID, followingID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if followerID == followingID {
		return false, social.ErrSelfFollow
	}
	if _, ok := w.users[followingID]; !ok {
		return false, social.ErrUserNotFound
	}
	k := followKey{followerID, followingID}
	if _, ok := w.follows[k]; ok {
		return false, nil
	}
	w.follows[k] = time.Now()
	return true, nil
}

func (w *world) Unfollow(_ context.Context, followerID, followingID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := followKey{followerID, followingID}
	if _, ok := w.follows[k]; !ok {
		return false, nil
	}
	delete(w.follows, k)
	return true, nil
}

func (w *world) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.follows[followKey{followerID, followingID}]
	return ok, nil
}

func (w *world) Connected(ctx context.Context, a, b string) (bool, error) {
	ab, _ := w.IsFollowing(ctx, a, b)
	ba, _ := w.IsFollowing(ctx, b, a)
	return ab || ba, nil
}

func (w *world) FollowerCount(_ context.Context, userID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for k := range w.follows {
		if k.following == userID {
			n++
		}
	}
	return n, nil
}

func (w *world) FollowingCount(_ context.Context, userID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for k := range w.follows {
		if k.follower == userID {
			n++
		}
	}
	return n, nil
}

func (w *world) Followers(_ context.Context, userID string, limit int) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []string
	for k := range w.follows {
		if k.following == userID {
			ids = append(ids, k.follower)
		}
	}
	sort.Strings(ids)
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

func (w *world) Following(_ context.Context, userID string, limit int) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []string
	for k := range w.follows {
		if k.follower == userID {
			ids = append(ids, k.following)
		}
	}
	sort.Strings(ids)
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

type sentNotification struct {
	recipient, actor string
	typ              notify.Type
	postID           string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(_ context.Context, recipientID, actorID string, typ notify.Type, postID *string) (*notify.Notification, error) {
	if recipientID == actorID {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := sentNotification{recipient: recipientID, actor: actorID, typ: typ}
	if postID != nil {
		s.postID = *postID
	}
	f.sent = append(f.sent, s)
	return &notify.Notification{UserID: recipientID, ActorID: actorID, Type: typ, PostID: postID}, nil
}

func (f *fakeNotifier) of(typ notify.Type) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, s := range f.sent {
		if s.typ == typ {
			out = append(out, s)
		}
	}
	return out
}

type frame struct {
	channel, event string
	payload        any
}

type fakePublisher struct {
	mu     sync.Mutex
	frames []frame
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, channel, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{channel, event, payload})
	return f.err
}

func (f *fakePublisher) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		out = append(out, fr.channel+" "+fr.event)
	}
	return out
}

func (f *fakePublisher) last() frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames[len(f.frames)-1]
}

type harness struct {
	svc   *Service
	world *world
	notes *fakeNotifier
	pub   *fakePublisher
}

func newHarness(userIDs ...string) *harness {
	w := newWorld(userIDs...)
	notes := &fakeNotifier{}
	pub := &fakePublisher{}
	svc := NewService(Deps{
		Posts:      w,
		Ledger:     w,
		Graph:      w,
		Visibility: visibility.NewResolver(w, w, w),
		Notifier:   notes,
		Publisher:  pub,
	})
	return &harness{svc: svc, world: w, notes: notes, pub: pub}
}
