// Package dto holds the JSON shapes of the API. Domain models never reach
// the wire directly, so password hashes cannot leak by accident.
package dto

import (
	"time"

	"blog/internal/domain/models"
)

type User struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Bio       string      `json:"bio"`
	AvatarURL string      `json:"avatarUrl"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func FromUser(u *models.User) User {
	return User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Likes     int64     `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromPost(p *models.Post) Post {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return Post{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Title:     p.Title,
		Content:   p.Content,
		Tags:      tags,
		Likes:     p.Likes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromComment(c *models.Comment) Comment {
	return Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// FromList converts every item of list with conv.
func FromList[M, T any](list models.List[M], conv func(M) T) Page[T] {
	items := make([]T, 0, len(list.Items))
	for _, m := range list.Items {
		items = append(items, conv(m))
	}
	return Page[T]{
		Items: items,
		Page:  list.Page.Number,
		Limit: list.Page.Limit,
		Total: list.Total,
	}
}

// Session is the body of a successful register or login.
type Session struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

type AccessToken struct {
	AccessToken string `json:"accessToken"`
}

type Likes struct {
	Likes int64 `json:"likes"`
}

type LikeState struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

// PageQuery binds ?page= and ?limit=. Zero values fall back to defaults.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (q PageQuery) Model() models.Page {
	return models.NewPage(q.Page, q.Limit)
}
