package models

import "time"

type Post struct {
	ID        string
	AuthorID  string
	Title     string
	Content   string
	Tags      []string
	Likes     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostFilter narrows a post listing. Zero fields match everything.
type PostFilter struct {
	AuthorID string
	Tag      string
}

// Page selects a window of a listing. Pages are 1-based.
type Page struct {
	Number int
	Limit  int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// NewPage clamps number and limit to sane bounds.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Skip() int64 {
	return int64((p.Number - 1) * p.Limit)
}

// List is one page of results together with the total match count.
type List[T any] struct {
	Items []T
	Page  Page
	Total int64
}
