package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"blog/internal/domain/models"
	"blog/internal/lib/sl"
	"blog/internal/storage"
)

// MaxTags bounds the number of tags on a post.
const MaxTags = 10

var (
	ErrForbidden       = errors.New("forbidden")
	ErrEmptyContent    = errors.New("content is empty")
	ErrEmptyTitle      = errors.New("title is empty")
	ErrTooManyTags     = errors.New("too many tags")
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrAlreadyLiked    = errors.New("post already liked")
)

type PostStore interface {
	SavePost(ctx context.Context, post *models.Post) (string, error)
	Post(ctx context.Context, postID string) (*models.Post, error)
	Posts(ctx context.Context, filter models.PostFilter, page models.Page) (models.List[*models.Post], error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, postID string) error
}

type CommentStore interface {
	SaveComment(ctx context.Context, comment *models.Comment) (string, error)
	Comment(ctx context.Context, commentID string) (*models.Comment, error)
	Comments(ctx context.Context, postID string, page models.Page) (models.List[*models.Comment], error)
	UpdateComment(ctx context.Context, comment *models.Comment) error
	DeleteComment(ctx context.Context, commentID string) error
}

type LikeStore interface {
	LikePost(ctx context.Context, postID, userID string) (int64, error)
	UnlikePost(ctx context.Context, postID, userID string) (int64, error)
	Liked(ctx context.Context, postID, userID string) (bool, error)
}

type Sanitizer interface {
	Content(raw string) string
	Comment(raw string) string
	Text(raw string) string
}

type Blog struct {
	logger    *slog.Logger
	posts     PostStore
	comments  CommentStore
	likes     LikeStore
	sanitizer Sanitizer
}

type PostInput struct {
	Title   string
	Content string
	Tags    []string
}

// PostPatch carries the fields of a partial update. Nil means unchanged.
type PostPatch struct {
	Title   *string
	Content *string
	Tags    *[]string
}

func New(
	logger *slog.Logger,
	posts PostStore,
	comments CommentStore,
	likes LikeStore,
	sanitizer Sanitizer,
) *Blog {
	return &Blog{
		logger:    logger,
		posts:     posts,
		comments:  comments,
		likes:     likes,
		sanitizer: sanitizer,
	}
}

func (b *Blog) CreatePost(ctx context.Context, author *models.User, in PostInput) (*models.Post, error) {
	const op = "blog.CreatePost"
	log := b.logger.With(
		slog.String("op", op),
		slog.String("userID", author.ID),
	)

	title, content, err := b.cleanPost(in.Title, in.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tags, err := b.cleanTags(in.Tags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	post := &models.Post{
		AuthorID:  author.ID,
		Title:     title,
		Content:   content,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := b.posts.SavePost(ctx, post); err != nil {
		log.Error("failed to save post", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("post created", slog.String("postID", post.ID))

	return post, nil
}

func (b *Blog) Post(ctx context.Context, postID string) (*models.Post, error) {
	const op = "blog.Post"

	post, err := b.posts.Post(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return post, nil
}

func (b *Blog) ListPosts(ctx context.Context, filter models.PostFilter, page models.Page) (models.List[*models.Post], error) {
	const op = "blog.ListPosts"

	filter.Tag = normalizeTag(filter.Tag)

	list, err := b.posts.Posts(ctx, filter, models.NewPage(page.Number, page.Limit))
	if err != nil {
		b.logger.Error("failed to list posts", slog.String("op", op), sl.Err(err))
		return list, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// UpdatePost applies patch to a post. Only the author may edit.
func (b *Blog) UpdatePost(ctx context.Context, actor *models.User, postID string, patch PostPatch) (*models.Post, error) {
	const op = "blog.UpdatePost"
	log := b.logger.With(
		slog.String("op", op),
		slog.String("userID", actor.ID),
		slog.String("postID", postID),
	)

	post, err := b.posts.Post(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	if post.AuthorID != actor.ID {
		log.Warn("edit by non-author")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	title, content := post.Title, post.Content
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.Content != nil {
		content = *patch.Content
	}
	if post.Title, post.Content, err = b.cleanPost(title, content); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if patch.Tags != nil {
		if post.Tags, err = b.cleanTags(*patch.Tags); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	post.UpdatedAt = time.Now().UTC()

	if err := b.posts.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPostNotFound)
		}
		log.Error("failed to update post", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("post updated")

	return post, nil
}

// DeletePost removes a post with its comments and likes. The author and
// admins may delete.
func (b *Blog) DeletePost(ctx context.Context, actor *models.User, postID string) error {
	const op = "blog.DeletePost"
	log := b.logger.With(
		slog.String("op", op),
		slog.String("userID", actor.ID),
		slog.String("postID", postID),
	)

	post, err := b.posts.Post(ctx, postID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	if post.AuthorID != actor.ID && !actor.IsAdmin() {
		log.Warn("delete by non-author")
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := b.posts.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			return fmt.Errorf("%s: %w", op, ErrPostNotFound)
		}
		log.Error("failed to delete post", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("post deleted", slog.Bool("byAdmin", post.AuthorID != actor.ID))

	return nil
}

func (b *Blog) AddComment(ctx context.Context, author *models.User, postID, content string) (*models.Comment, error) {
	const op = "blog.AddComment"
	log := b.logger.With(
		slog.String("op", op),
		slog.String("userID", author.ID),
		slog.String("postID", postID),
	)

	clean := b.sanitizer.Comment(content)
	if clean == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyContent)
	}

	if _, err := b.posts.Post(ctx, postID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}

	now := time.Now().UTC()
	comment := &models.Comment{
		PostID:    postID,
		AuthorID:  author.ID,
		Content:   clean,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := b.comments.SaveComment(ctx, comment); err != nil {
		log.Error("failed to save comment", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}

	log.Info("comment added", slog.String("commentID", comment.ID))

	return comment, nil
}

func (b *Blog) ListComments(ctx context.Context, postID string, page models.Page) (models.List[*models.Comment], error) {
	const op = "blog.ListComments"

	if _, err := b.posts.Post(ctx, postID); err != nil {
		return models.List[*models.Comment]{}, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}

	list, err := b.comments.Comments(ctx, postID, models.NewPage(page.Number, page.Limit))
	if err != nil {
		b.logger.Error("failed to list comments", slog.String("op", op), sl.Err(err))
		return list, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// UpdateComment replaces the content of a comment. Only its author may edit.
func (b *Blog) UpdateComment(ctx context.Context, actor *models.User, commentID, content string) (*models.Comment, error) {
	const op = "blog.UpdateComment"
	log := b.logger.With(
		slog.String("op", op),
		slog.String("userID", actor.ID),
		slog.String("commentID", commentID),
	)

	comment, err := b.comments.Comment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	if comment.AuthorID != actor.ID {
		log.Warn("edit by non-author")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	clean := b.sanitizer.Comment(content)
	if clean == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyContent)
	}
	comment.Content = clean
	comment.UpdatedAt = time.Now().UTC()

	if err := b.comments.UpdateComment(ctx, comment); err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCommentNotFound)
		}
		log.Error("failed to update comment", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return comment, nil
}

// DeleteComment removes a comment. The author and admins may delete.
func (b *Blog) DeleteComment(ctx context.Context, actor *models.User, commentID string) error {
	const op = "blog.DeleteComment"
	log := b.logger.With(
		slog.String("op", op),
		slog.String("userID", actor.ID),
		slog.String("commentID", commentID),
	)

	comment, err := b.comments.Comment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	if comment.AuthorID != actor.ID && !actor.IsAdmin() {
		log.Warn("delete by non-author")
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := b.comments.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			return fmt.Errorf("%s: %w", op, ErrCommentNotFound)
		}
		log.Error("failed to delete comment", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("comment deleted")

	return nil
}

// LikePost likes a post on behalf of user and returns the new like count.
func (b *Blog) LikePost(ctx context.Context, user *models.User, postID string) (int64, error) {
	const op = "blog.LikePost"

	likes, err := b.likes.LikePost(ctx, postID, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyLiked) {
			return 0, fmt.Errorf("%s: %w", op, ErrAlreadyLiked)
		}
		if errors.Is(err, storage.ErrPostNotFound) {
			return 0, fmt.Errorf("%s: %w", op, ErrPostNotFound)
		}
		b.logger.Error("failed to like post", slog.String("op", op), sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return likes, nil
}

// UnlikePost withdraws a like. Withdrawing a like that does not exist is not
// an error; the current count is returned either way.
func (b *Blog) UnlikePost(ctx context.Context, user *models.User, postID string) (int64, error) {
	const op = "blog.UnlikePost"

	likes, err := b.likes.UnlikePost(ctx, postID, user.ID)
	if err == nil {
		return likes, nil
	}
	if !errors.Is(err, storage.ErrNotLiked) && !errors.Is(err, storage.ErrPostNotFound) {
		b.logger.Error("failed to unlike post", slog.String("op", op), sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	post, err := b.posts.Post(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return post.Likes, nil
}

// Liked reports whether user has liked the post.
func (b *Blog) Liked(ctx context.Context, user *models.User, postID string) (bool, error) {
	const op = "blog.Liked"

	liked, err := b.likes.Liked(ctx, postID, user.ID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return liked, nil
}

func (b *Blog) cleanPost(title, content string) (string, string, error) {
	title = b.sanitizer.Text(title)
	if title == "" {
		return "", "", ErrEmptyTitle
	}
	content = b.sanitizer.Content(content)
	if content == "" {
		return "", "", ErrEmptyContent
	}
	return title, content, nil
}

// cleanTags lower-cases, de-duplicates and drops empty tags.
func (b *Blog) cleanTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = normalizeTag(b.sanitizer.Text(t))
		if t == "" || slices.Contains(tags, t) {
			continue
		}
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		return nil, ErrTooManyTags
	}
	return tags, nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func mapNotFound(err error) error {
	switch {
	case errors.Is(err, storage.ErrPostNotFound):
		return ErrPostNotFound
	case errors.Is(err, storage.ErrCommentNotFound):
		return ErrCommentNotFound
	default:
		return err
	}
}
