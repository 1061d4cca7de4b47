// Package memory is an in-process implementation of the storage contracts
// with the same semantics as the MongoDB storage. Service tests run on it.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"blog/internal/domain/models"
	"blog/internal/storage"

	"github.com/google/uuid"
)

type tokenRecord struct {
	userID    string
	expiresAt time.Time
}

type likeKey struct {
	postID string
	userID string
}

type Storage struct {
	mu       sync.RWMutex
	seq      int64
	order    map[string]int64
	users    map[string]models.User
	tokens   map[string]tokenRecord
	posts    map[string]models.Post
	comments map[string]models.Comment
	likes    map[likeKey]struct{}
}

func New() *Storage {
	return &Storage{
		order:    map[string]int64{},
		users:    map[string]models.User{},
		tokens:   map[string]tokenRecord{},
		posts:    map[string]models.Post{},
		comments: map[string]models.Comment{},
		likes:    map[likeKey]struct{}{},
	}
}

func (s *Storage) newID() string {
	id := uuid.NewString()
	s.seq++
	s.order[id] = s.seq
	return id
}

func (s *Storage) SaveUser(_ context.Context, user *models.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conflictLocked("", user); err != nil {
		return "", err
	}

	user.ID = s.newID()
	s.users[user.ID] = *user
	return user.ID, nil
}

func (s *Storage) User(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = models.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *Storage) UserByID(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &u, nil
}

func (s *Storage) EmailTaken(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = models.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *Storage) UsernameTaken(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *Storage) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	if err := s.conflictLocked(user.ID, user); err != nil {
		return err
	}

	s.users[user.ID] = *user
	return nil
}

// conflictLocked mirrors the unique email and username indexes.
func (s *Storage) conflictLocked(selfID string, user *models.User) error {
	for id, u := range s.users {
		if id == selfID {
			continue
		}
		if u.Email == user.Email {
			return storage.ErrEmailExists
		}
		if u.Username == user.Username {
			return storage.ErrUsernameExists
		}
	}
	return nil
}

func (s *Storage) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return storage.ErrUserNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *Storage) Users(_ context.Context, page models.Page) (models.List[*models.User], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, &u)
	}
	sortNewest(s, all, func(u *models.User) (time.Time, string) { return u.CreatedAt, u.ID })

	return paginate(all, page), nil
}

func (s *Storage) RecordRefreshToken(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[tokenHash] = tokenRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *Storage) RefreshTokenExists(_ context.Context, tokenHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tokens[tokenHash]
	return ok, nil
}

func (s *Storage) RemoveRefreshToken(_ context.Context, tokenHash, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.tokens[tokenHash]; ok && rec.userID == userID {
		delete(s.tokens, tokenHash)
	}
	return nil
}

func (s *Storage) RemoveUserRefreshTokens(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, rec := range s.tokens {
		if rec.userID == userID {
			delete(s.tokens, h)
			n++
		}
	}
	return n, nil
}

func (s *Storage) PruneRefreshTokens(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, rec := range s.tokens {
		if rec.expiresAt.Before(before) {
			delete(s.tokens, h)
			n++
		}
	}
	return n, nil
}

// RefreshTokenCount is a test helper.
func (s *Storage) RefreshTokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tokens)
}

func (s *Storage) SavePost(_ context.Context, post *models.Post) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.Tags == nil {
		post.Tags = []string{}
	}
	post.ID = s.newID()
	post.Likes = 0
	s.posts[post.ID] = clonePost(*post)
	return post.ID, nil
}

func (s *Storage) Post(_ context.Context, postID string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, storage.ErrPostNotFound
	}
	p = clonePost(p)
	return &p, nil
}

func (s *Storage) Posts(_ context.Context, filter models.PostFilter, page models.Page) (models.List[*models.Post], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Post
	for _, p := range s.posts {
		if filter.AuthorID != "" && p.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Tag != "" && !slices.Contains(p.Tags, filter.Tag) {
			continue
		}
		p = clonePost(p)
		all = append(all, &p)
	}
	sortNewest(s, all, func(p *models.Post) (time.Time, string) { return p.CreatedAt, p.ID })

	return paginate(all, page), nil
}

func (s *Storage) UpdatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.posts[post.ID]
	if !ok {
		return storage.ErrPostNotFound
	}
	cur.Title = post.Title
	cur.Content = post.Content
	cur.Tags = slices.Clone(post.Tags)
	cur.UpdatedAt = post.UpdatedAt
	s.posts[post.ID] = cur
	return nil
}

func (s *Storage) DeletePost(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return storage.ErrPostNotFound
	}
	s.deletePostLocked(postID)
	return nil
}

func (s *Storage) deletePostLocked(postID string) {
	delete(s.posts, postID)
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
		}
	}
	for k := range s.likes {
		if k.postID == postID {
			delete(s.likes, k)
		}
	}
}

func (s *Storage) SaveComment(_ context.Context, comment *models.Comment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment.ID = s.newID()
	s.comments[comment.ID] = *comment
	return comment.ID, nil
}

func (s *Storage) Comment(_ context.Context, commentID string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[commentID]
	if !ok {
		return nil, storage.ErrCommentNotFound
	}
	return &c, nil
}

func (s *Storage) Comments(_ context.Context, postID string, page models.Page) (models.List[*models.Comment], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			all = append(all, &c)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return s.order[all[i].ID] < s.order[all[j].ID]
	})

	return paginate(all, page), nil
}

func (s *Storage) UpdateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.comments[comment.ID]
	if !ok {
		return storage.ErrCommentNotFound
	}
	cur.Content = comment.Content
	cur.UpdatedAt = comment.UpdatedAt
	s.comments[comment.ID] = cur
	return nil
}

func (s *Storage) DeleteComment(_ context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[commentID]; !ok {
		return storage.ErrCommentNotFound
	}
	delete(s.comments, commentID)
	return nil
}

func (s *Storage) LikePost(_ context.Context, postID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return 0, storage.ErrPostNotFound
	}
	k := likeKey{postID: postID, userID: userID}
	if _, ok := s.likes[k]; ok {
		return 0, storage.ErrAlreadyLiked
	}

	s.likes[k] = struct{}{}
	p.Likes++
	s.posts[postID] = p
	return p.Likes, nil
}

func (s *Storage) UnlikePost(_ context.Context, postID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := likeKey{postID: postID, userID: userID}
	if _, ok := s.likes[k]; !ok {
		return 0, storage.ErrNotLiked
	}
	delete(s.likes, k)

	p, ok := s.posts[postID]
	if !ok {
		return 0, nil
	}
	if p.Likes > 0 {
		p.Likes--
	}
	s.posts[postID] = p
	return p.Likes, nil
}

func (s *Storage) Liked(_ context.Context, postID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.likes[likeKey{postID: postID, userID: userID}]
	return ok, nil
}

func (s *Storage) DeleteUserContent(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.posts {
		if p.AuthorID == userID {
			s.deletePostLocked(id)
		}
	}
	for id, c := range s.comments {
		if c.AuthorID == userID {
			delete(s.comments, id)
		}
	}
	for k := range s.likes {
		if k.userID != userID {
			continue
		}
		delete(s.likes, k)
		if p, ok := s.posts[k.postID]; ok && p.Likes > 0 {
			p.Likes--
			s.posts[k.postID] = p
		}
	}
	return nil
}

// sortNewest orders by creation time descending, then by insertion order.
func sortNewest[T any](s *Storage, items []T, key func(T) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return s.order[idi] > s.order[idj]
	})
}

func paginate[T any](all []T, page models.Page) models.List[T] {
	list := models.List[T]{Page: page, Total: int64(len(all)), Items: []T{}}

	start := int(page.Skip())
	if start >= len(all) {
		return list
	}
	end := min(start+page.Limit, len(all))
	list.Items = append(list.Items, all[start:end]...)
	return list
}

func clonePost(p models.Post) models.Post {
	p.Tags = slices.Clone(p.Tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}
