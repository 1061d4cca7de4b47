package blog

import (
	"net/http"

	"blog/internal/http/dto"
	"blog/internal/http/middleware"
	"blog/internal/http/response"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

func (h *handler) listComments(c *gin.Context) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Bind(c, err)
		return
	}

	list, err := h.blog.ListComments(c.Request.Context(), c.Param("id"), q.Model())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromList(list, dto.FromComment))
}

func (h *handler) addComment(c *gin.Context) {
	author, _ := middleware.CurrentUser(c)

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}

	comment, err := h.blog.AddComment(c.Request.Context(), author, c.Param("id"), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromComment(comment))
}

func (h *handler) updateComment(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}

	comment, err := h.blog.UpdateComment(c.Request.Context(), actor, c.Param("id"), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromComment(comment))
}

func (h *handler) deleteComment(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	if err := h.blog.DeleteComment(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
