package blog_test

import (
	"context"
	"log/slog"
	"testing"

	"blog/internal/domain/models"
	"blog/internal/lib/sanitize"
	"blog/internal/services/blog"
	"blog/internal/storage/memory"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	blog  *blog.Blog
	store *memory.Storage
	alice *models.User
	bob   *models.User
	admin *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	f := &fixture{
		blog:  blog.New(slog.New(slog.DiscardHandler), store, store, store, sanitize.New()),
		store: store,
	}
	f.alice = f.user(t, models.RoleUser)
	f.bob = f.user(t, models.RoleUser)
	f.admin = f.user(t, models.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, role models.Role) *models.User {
	t.Helper()

	u, err := models.NewUser(gofakeit.Username(), gofakeit.Email(), "Abcd1234!", role, 4)
	require.NoError(t, err)
	_, err = f.store.SaveUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

func (f *fixture) post(t *testing.T, author *models.User) *models.Post {
	t.Helper()

	p, err := f.blog.CreatePost(context.Background(), author, blog.PostInput{
		Title:   "Hello",
		Content: "<p>First post</p>",
		Tags:    []string{"go"},
	})
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T { return &v }

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.blog.CreatePost(ctx, f.alice, blog.PostInput{
		Title:   "  <b>Title</b> ",
		Content: `<p>hi</p><script>alert(1)</script>`,
		Tags:    []string{"Go", "go ", "", "mongo"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, f.alice.ID, p.AuthorID)
	assert.Equal(t, "Title", p.Title)
	assert.Equal(t, "<p>hi</p>", p.Content)
	assert.Equal(t, []string{"go", "mongo"}, p.Tags)

	stored, err := f.blog.Post(ctx, p.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Content, "<script")
}

func TestCreatePost_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tooMany := make([]string, blog.MaxTags+1)
	for i := range tooMany {
		tooMany[i] = gofakeit.UUID()
	}

	tests := []struct {
		name    string
		in      blog.PostInput
		wantErr error
	}{
		{name: "empty content", in: blog.PostInput{Title: "t", Content: "<script>x()</script>"}, wantErr: blog.ErrEmptyContent},
		{name: "empty title", in: blog.PostInput{Title: "<i></i>", Content: "body"}, wantErr: blog.ErrEmptyTitle},
		{name: "too many tags", in: blog.PostInput{Title: "t", Content: "body", Tags: tooMany}, wantErr: blog.ErrTooManyTags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.blog.CreatePost(ctx, f.alice, tt.in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPost_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.blog.Post(context.Background(), "missing")
	require.ErrorIs(t, err, blog.ErrPostNotFound)
}

func TestListPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.post(t, f.alice)
	second := f.post(t, f.alice)
	other := f.post(t, f.bob)
	_, err := f.blog.CreatePost(ctx, f.bob, blog.PostInput{Title: "t", Content: "c", Tags: []string{"rust"}})
	require.NoError(t, err)

	all, err := f.blog.ListPosts(ctx, models.PostFilter{}, models.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Total)
	assert.Equal(t, models.DefaultPageLimit, all.Page.Limit)

	byAlice, err := f.blog.ListPosts(ctx, models.PostFilter{AuthorID: f.alice.ID}, models.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, byAlice.Items, 2)
	assert.Equal(t, second.ID, byAlice.Items[0].ID, "newest first")
	assert.Equal(t, first.ID, byAlice.Items[1].ID)

	byTag, err := f.blog.ListPosts(ctx, models.PostFilter{Tag: " GO "}, models.NewPage(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 3, byTag.Total)

	paged, err := f.blog.ListPosts(ctx, models.PostFilter{Tag: "go"}, models.NewPage(2, 2))
	require.NoError(t, err)
	require.Len(t, paged.Items, 1)
	assert.Equal(t, first.ID, paged.Items[0].ID)
	assert.NotEqual(t, other.ID, paged.Items[0].ID)
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.post(t, f.alice)

	updated, err := f.blog.UpdatePost(ctx, f.alice, p.ID, blog.PostPatch{
		Title: ptr("New title"),
		Tags:  ptr([]string{"Updated"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "<p>First post</p>", updated.Content)
	assert.Equal(t, []string{"updated"}, updated.Tags)

	_, err = f.blog.UpdatePost(ctx, f.bob, p.ID, blog.PostPatch{Title: ptr("mine now")})
	require.ErrorIs(t, err, blog.ErrForbidden)

	_, err = f.blog.UpdatePost(ctx, f.admin, p.ID, blog.PostPatch{Title: ptr("admin edit")})
	require.ErrorIs(t, err, blog.ErrForbidden, "admins delete but do not edit")

	_, err = f.blog.UpdatePost(ctx, f.alice, p.ID, blog.PostPatch{Content: ptr("<script></script>")})
	require.ErrorIs(t, err, blog.ErrEmptyContent)

	_, err = f.blog.UpdatePost(ctx, f.alice, "missing", blog.PostPatch{})
	require.ErrorIs(t, err, blog.ErrPostNotFound)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.post(t, f.alice)
	_, err := f.blog.AddComment(ctx, f.bob, p.ID, "nice")
	require.NoError(t, err)
	_, err = f.blog.LikePost(ctx, f.bob, p.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.blog.DeletePost(ctx, f.bob, p.ID), blog.ErrForbidden)

	require.NoError(t, f.blog.DeletePost(ctx, f.alice, p.ID))
	_, err = f.blog.Post(ctx, p.ID)
	require.ErrorIs(t, err, blog.ErrPostNotFound)

	liked, err := f.store.Liked(ctx, p.ID, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	require.ErrorIs(t, f.blog.DeletePost(ctx, f.alice, p.ID), blog.ErrPostNotFound)
}

func TestDeletePost_Admin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.post(t, f.alice)
	require.NoError(t, f.blog.DeletePost(ctx, f.admin, p.ID))
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.post(t, f.alice)

	c1, err := f.blog.AddComment(ctx, f.bob, p.ID, "<b>first</b>")
	require.NoError(t, err)
	assert.Equal(t, "first", c1.Content)

	c2, err := f.blog.AddComment(ctx, f.alice, p.ID, "second")
	require.NoError(t, err)

	_, err = f.blog.AddComment(ctx, f.bob, p.ID, "<script>x()</script>")
	require.ErrorIs(t, err, blog.ErrEmptyContent)

	_, err = f.blog.AddComment(ctx, f.bob, "missing", "hello")
	require.ErrorIs(t, err, blog.ErrPostNotFound)

	list, err := f.blog.ListComments(ctx, p.ID, models.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, c1.ID, list.Items[0].ID, "oldest first")
	assert.Equal(t, c2.ID, list.Items[1].ID)

	_, err = f.blog.ListComments(ctx, "missing", models.NewPage(1, 10))
	require.ErrorIs(t, err, blog.ErrPostNotFound)
}

func TestUpdateAndDeleteComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.post(t, f.alice)
	c, err := f.blog.AddComment(ctx, f.bob, p.ID, "typo")
	require.NoError(t, err)

	_, err = f.blog.UpdateComment(ctx, f.alice, c.ID, "hijack")
	require.ErrorIs(t, err, blog.ErrForbidden)

	updated, err := f.blog.UpdateComment(ctx, f.bob, c.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Content)

	_, err = f.blog.UpdateComment(ctx, f.bob, c.ID, "  ")
	require.ErrorIs(t, err, blog.ErrEmptyContent)

	require.ErrorIs(t, f.blog.DeleteComment(ctx, f.alice, c.ID), blog.ErrForbidden)
	require.NoError(t, f.blog.DeleteComment(ctx, f.admin, c.ID))
	require.ErrorIs(t, f.blog.DeleteComment(ctx, f.bob, c.ID), blog.ErrCommentNotFound)

	_, err = f.blog.UpdateComment(ctx, f.bob, c.ID, "gone")
	require.ErrorIs(t, err, blog.ErrCommentNotFound)
}

func TestLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.post(t, f.alice)

	n, err := f.blog.LikePost(ctx, f.bob, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.blog.LikePost(ctx, f.bob, p.ID)
	require.ErrorIs(t, err, blog.ErrAlreadyLiked)

	n, err = f.blog.LikePost(ctx, f.alice, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	liked, err := f.blog.Liked(ctx, f.bob, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	n, err = f.blog.UnlikePost(ctx, f.bob, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = f.blog.UnlikePost(ctx, f.bob, p.ID)
	require.NoError(t, err, "unlike is idempotent")
	assert.EqualValues(t, 1, n)

	n, err = f.blog.UnlikePost(ctx, f.alice, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = f.blog.UnlikePost(ctx, f.alice, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "counter never goes negative")

	_, err = f.blog.LikePost(ctx, f.bob, "missing")
	require.ErrorIs(t, err, blog.ErrPostNotFound)
	_, err = f.blog.UnlikePost(ctx, f.bob, "missing")
	require.ErrorIs(t, err, blog.ErrPostNotFound)
}
