package blog

import (
	"context"
	"errors"
	"log/slog"

	"blog/internal/domain/models"
	"blog/internal/http/response"
	"blog/internal/services/blog"

	"github.com/gin-gonic/gin"
)

type Blog interface {
	CreatePost(ctx context.Context, author *models.User, in blog.PostInput) (*models.Post, error)
	Post(ctx context.Context, postID string) (*models.Post, error)
	ListPosts(ctx context.Context, filter models.PostFilter, page models.Page) (models.List[*models.Post], error)
	UpdatePost(ctx context.Context, actor *models.User, postID string, patch blog.PostPatch) (*models.Post, error)
	DeletePost(ctx context.Context, actor *models.User, postID string) error

	AddComment(ctx context.Context, author *models.User, postID, content string) (*models.Comment, error)
	ListComments(ctx context.Context, postID string, page models.Page) (models.List[*models.Comment], error)
	UpdateComment(ctx context.Context, actor *models.User, commentID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, actor *models.User, commentID string) error

	LikePost(ctx context.Context, user *models.User, postID string) (int64, error)
	UnlikePost(ctx context.Context, user *models.User, postID string) (int64, error)
	Liked(ctx context.Context, user *models.User, postID string) (bool, error)
}

type handler struct {
	logger *slog.Logger
	blog   Blog
}

// Register mounts the post, comment and like endpoints on r. Reads are
// public; writes need requireAuth.
func Register(r gin.IRouter, logger *slog.Logger, blog Blog, requireAuth gin.HandlerFunc) {
	h := &handler{logger: logger, blog: blog}

	posts := r.Group("/posts")
	posts.GET("", h.listPosts)
	posts.POST("", requireAuth, h.createPost)
	posts.GET("/:id", h.post)
	posts.PATCH("/:id", requireAuth, h.updatePost)
	posts.DELETE("/:id", requireAuth, h.deletePost)

	posts.GET("/:id/like", requireAuth, h.likeState)
	posts.POST("/:id/like", requireAuth, h.like)
	posts.DELETE("/:id/like", requireAuth, h.unlike)

	posts.GET("/:id/comments", h.listComments)
	posts.POST("/:id/comments", requireAuth, h.addComment)

	comments := r.Group("/comments", requireAuth)
	comments.PATCH("/:id", h.updateComment)
	comments.DELETE("/:id", h.deleteComment)
}

func (h *handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, blog.ErrPostNotFound):
		response.Abort(c, response.NotFound("Post not found"))
	case errors.Is(err, blog.ErrCommentNotFound):
		response.Abort(c, response.NotFound("Comment not found"))
	case errors.Is(err, blog.ErrForbidden):
		response.Abort(c, response.Forbidden("Not allowed to modify this resource"))
	case errors.Is(err, blog.ErrEmptyTitle):
		response.Abort(c, response.Validation("title must not be empty"))
	case errors.Is(err, blog.ErrEmptyContent):
		response.Abort(c, response.Validation("content must not be empty"))
	case errors.Is(err, blog.ErrTooManyTags):
		response.Abort(c, response.Validation("too many tags"))
	case errors.Is(err, blog.ErrAlreadyLiked):
		response.Abort(c, response.Validation("Post already liked"))
	default:
		response.Internal(c, h.logger, err)
	}
}
