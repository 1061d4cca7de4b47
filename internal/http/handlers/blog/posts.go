package blog

import (
	"net/http"

	"blog/internal/domain/models"
	"blog/internal/http/dto"
	"blog/internal/http/middleware"
	"blog/internal/http/response"
	"blog/internal/services/blog"

	"github.com/gin-gonic/gin"
)

type listPostsQuery struct {
	dto.PageQuery
	Author string `form:"author"`
	Tag    string `form:"tag"`
}

type createPostRequest struct {
	Title   string   `json:"title" binding:"required,min=1,max=200"`
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags" binding:"max=10,dive,max=30"`
}

type updatePostRequest struct {
	Title   *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Content *string   `json:"content" binding:"omitempty,min=1"`
	Tags    *[]string `json:"tags" binding:"omitempty,max=10"`
}

func (h *handler) listPosts(c *gin.Context) {
	var q listPostsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Bind(c, err)
		return
	}

	list, err := h.blog.ListPosts(c.Request.Context(),
		models.PostFilter{AuthorID: q.Author, Tag: q.Tag},
		q.Model(),
	)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromList(list, dto.FromPost))
}

func (h *handler) createPost(c *gin.Context) {
	author, _ := middleware.CurrentUser(c)

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}

	post, err := h.blog.CreatePost(c.Request.Context(), author, blog.PostInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromPost(post))
}

func (h *handler) post(c *gin.Context) {
	post, err := h.blog.Post(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromPost(post))
}

func (h *handler) updatePost(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}

	post, err := h.blog.UpdatePost(c.Request.Context(), actor, c.Param("id"), blog.PostPatch{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromPost(post))
}

func (h *handler) deletePost(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	if err := h.blog.DeletePost(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) like(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	likes, err := h.blog.LikePost(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.Likes{Likes: likes})
}

func (h *handler) unlike(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	likes, err := h.blog.UnlikePost(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.Likes{Likes: likes})
}

func (h *handler) likeState(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	post, err := h.blog.Post(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	liked, err := h.blog.Liked(ctx, user, post.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LikeState{Liked: liked, Likes: post.Likes})
}
