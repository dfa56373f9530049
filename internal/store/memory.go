package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/models"
)

type pairKey struct{ a, b string }

// Memory is an in-process Store. A single mutex covers every
// read-check-mutate sequence, so counters never lose updates.
type Memory struct {
	mu sync.RWMutex

	users      map[string]*models.User
	usernames  map[string]string
	posts      map[string]*models.Post
	comments   map[string][]models.Comment
	likes      map[pairKey]models.Like
	postLikes  map[string]int64
	follows    map[pairKey]models.Follow
	followers  map[string]map[string]struct{}
	followings map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]*models.User),
		usernames:  make(map[string]string),
		posts:      make(map[string]*models.Post),
		comments:   make(map[string][]models.Comment),
		likes:      make(map[pairKey]models.Like),
		postLikes:  make(map[string]int64),
		follows:    make(map[pairKey]models.Follow),
		followers:  make(map[string]map[string]struct{}),
		followings: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, ok := m.usernames[key]; ok {
		return apperr.ErrUsernameTaken
	}
	if _, ok := m.users[u.ID]; ok {
		return apperr.Validation("user %q already exists", u.ID)
	}
	cp := *u
	m.users[u.ID] = &cp
	m.usernames[key] = u.ID
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usernames[strings.ToLower(username)]
	if !ok {
		return nil, apperr.NotFound("user", username)
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, upd UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.ProfilePhoto != nil {
		u.ProfilePhoto = *upd.ProfilePhoto
	}
	if upd.IsPrivate != nil {
		u.IsPrivate = *upd.IsPrivate
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (m *Memory) UsersByIDs(_ context.Context, ids []string) (map[string]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = *u
		}
	}
	return out, nil
}

func (m *Memory) CreatePost(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	author, ok := m.users[p.AuthorID]
	if !ok {
		return apperr.NotFound("user", p.AuthorID)
	}
	if _, ok := m.posts[p.ID]; ok {
		return apperr.Validation("post %q already exists", p.ID)
	}
	cp := p.Clone()
	m.posts[p.ID] = &cp
	author.PostsCount++
	return nil
}

func (m *Memory) GetPost(_ context.Context, id string) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, apperr.NotFound("post", id)
	}
	cp := p.Clone()
	return &cp, nil
}

func (m *Memory) ListPosts(_ context.Context, f filter.Posts, now time.Time) ([]models.Post, error) {
	f = f.Normalize()

	m.mu.RLock()
	matched := make([]models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if f.Match(p, now) {
			matched = append(matched, p.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return f.Order.Less(&matched[i], &matched[j]) })

	if f.Offset >= len(matched) {
		return []models.Post{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], nil
}

func (m *Memory) AddLike(_ context.Context, l *models.Like) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[l.UserID]; !ok {
		return nil, apperr.NotFound("user", l.UserID)
	}
	p, ok := m.posts[l.PostID]
	if !ok {
		return nil, apperr.NotFound("post", l.PostID)
	}
	key := pairKey{l.UserID, l.PostID}
	if _, ok := m.likes[key]; ok {
		return nil, apperr.ErrAlreadyLiked
	}
	m.likes[key] = *l
	m.postLikes[l.PostID]++
	p.LikesCount++
	cp := p.Clone()
	return &cp, nil
}

func (m *Memory) RemoveLike(_ context.Context, userID, postID string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok {
		return nil, apperr.NotFound("post", postID)
	}
	key := pairKey{userID, postID}
	if _, ok := m.likes[key]; !ok {
		return nil, apperr.ErrNotLiked
	}
	if p.LikesCount <= 0 {
		return nil, apperr.Invariant("likes_count of post %s would go negative", postID)
	}
	delete(m.likes, key)
	m.postLikes[postID]--
	p.LikesCount--
	cp := p.Clone()
	return &cp, nil
}

func (m *Memory) LikedPostIDs(_ context.Context, userID string, postIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if userID == "" {
		return out, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range postIDs {
		if _, ok := m.likes[pairKey{userID, id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *Memory) CountLikes(_ context.Context, postID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.postLikes[postID], nil
}

func (m *Memory) AddComment(_ context.Context, c *models.Comment) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[c.AuthorID]; !ok {
		return nil, apperr.NotFound("user", c.AuthorID)
	}
	p, ok := m.posts[c.PostID]
	if !ok {
		return nil, apperr.NotFound("post", c.PostID)
	}
	m.comments[c.PostID] = append(m.comments[c.PostID], *c)
	p.CommentsCount++
	cp := p.Clone()
	return &cp, nil
}

func (m *Memory) ListComments(_ context.Context, postID string, limit, offset int) ([]models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.posts[postID]; !ok {
		return nil, apperr.NotFound("post", postID)
	}
	all := m.comments[postID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []models.Comment{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]models.Comment(nil), all[offset:end]...), nil
}

func (m *Memory) CountComments(_ context.Context, postID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.comments[postID])), nil
}

func (m *Memory) AddFollow(_ context.Context, f *models.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	follower, ok := m.users[f.FollowerID]
	if !ok {
		return apperr.NotFound("user", f.FollowerID)
	}
	following, ok := m.users[f.FollowingID]
	if !ok {
		return apperr.NotFound("user", f.FollowingID)
	}
	key := pairKey{f.FollowerID, f.FollowingID}
	if _, ok := m.follows[key]; ok {
		return apperr.ErrAlreadyFollowing
	}
	m.follows[key] = *f
	addToSet(m.followers, f.FollowingID, f.FollowerID)
	addToSet(m.followings, f.FollowerID, f.FollowingID)
	follower.FollowingCount++
	following.FollowersCount++
	return nil
}

func (m *Memory) RemoveFollow(_ context.Context, followerID, followingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{followerID, followingID}
	if _, ok := m.follows[key]; !ok {
		return apperr.ErrNotFollowing
	}
	follower, following := m.users[followerID], m.users[followingID]
	if follower == nil || following == nil {
		return apperr.Invariant("follow %s -> %s references a missing user", followerID, followingID)
	}
	if follower.FollowingCount <= 0 || following.FollowersCount <= 0 {
		return apperr.Invariant("follow counters of %s/%s would go negative", followerID, followingID)
	}
	delete(m.follows, key)
	delete(m.followers[followingID], followerID)
	delete(m.followings[followerID], followingID)
	follower.FollowingCount--
	following.FollowersCount--
	return nil
}

func (m *Memory) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.follows[pairKey{followerID, followingID}]
	return ok, nil
}

func (m *Memory) ListFollowers(_ context.Context, userID string) ([]models.User, error) {
	return m.listSet(m.followers, userID)
}

func (m *Memory) ListFollowing(_ context.Context, userID string) ([]models.User, error) {
	return m.listSet(m.followings, userID)
}

func (m *Memory) listSet(set map[string]map[string]struct{}, userID string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.users[userID]; !ok {
		return nil, apperr.NotFound("user", userID)
	}
	out := make([]models.User, 0, len(set[userID]))
	for id := range set[userID] {
		out = append(out, *m.users[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func addToSet(set map[string]map[string]struct{}, key, member string) {
	if set[key] == nil {
		set[key] = make(map[string]struct{})
	}
	set[key][member] = struct{}{}
}
