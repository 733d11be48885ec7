package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// PostHandler 封装了社区帖子相关的 HTTP 处理逻辑
type PostHandler struct {
	postService *service.PostService
}

// NewPostHandler 创建 PostHandler 实例
func NewPostHandler(postService *service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// CreatePostRequest 定义发帖请求的结构体
type CreatePostRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body" binding:"required"`
	Anonymous bool   `json:"anonymous"`
}

// Create 发布一篇帖子
func (h *PostHandler) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}
	post, err := h.postService.Create(c.Request.Context(), uid, req.Title, req.Body, req.Anonymous)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, post)
}

// List 返回帖子列表（按创建时间倒序）
func (h *PostHandler) List(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	posts, err := h.postService.List(c.Request.Context(), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"posts": posts})
}

// UpdatePostRequest 定义改帖请求的结构体，nil 字段保持不变
type UpdatePostRequest struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

// Update 修改帖子（仅作者或管理员）
func (h *PostHandler) Update(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}
	post, err := h.postService.Update(c.Request.Context(), uid, postID, req.Title, req.Body)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, post)
}

// Delete 删除帖子（仅作者或管理员）。幂等。
func (h *PostHandler) Delete(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	if err := h.postService.Delete(c.Request.Context(), uid, postID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// LikeCount 返回帖子的点赞数
func (h *PostHandler) LikeCount(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	count, err := h.postService.LikeCount(c.Request.Context(), postID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ToggleLike 切换当前用户对帖子的点赞状态
func (h *PostHandler) ToggleLike(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	liked, err := h.postService.ToggleLike(c.Request.Context(), uid, postID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func postIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("postId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID format"})
		return 0, false
	}
	return uint(id), true
}
