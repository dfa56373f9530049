package interaction

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/httpx"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type actorRequest struct {
	UserID string `json:"user_id"`
}

type commentRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// actor reads user_id from the JSON body, falling back to the query string
// for clients that cannot send a DELETE body.
func actor(c *gin.Context) (string, error) {
	var req actorRequest
	if err := httpx.BindOptionalJSON(c, &req); err != nil {
		return "", err
	}
	if req.UserID == "" {
		req.UserID = c.Query("user_id")
	}
	return req.UserID, nil
}

// LikePost POST /api/posts/:id/like
func (h *Handler) LikePost(c *gin.Context) {
	postID := c.Param("id")
	userID, err := actor(c)
	if err != nil {
		httpx.BadRequest(c, err, "")
		return
	}

	p, err := h.svc.Like(c.Request.Context(), userID, postID)
	if err != nil {
		httpx.WriteError(c, err, userID, fmt.Sprintf("like %s", postID))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "likes_count": p.LikesCount})
	logs.LogJSON("INFO", "Post liked", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": userID,
		"postID": postID,
	})
}

// UnlikePost DELETE /api/posts/:id/like
func (h *Handler) UnlikePost(c *gin.Context) {
	postID := c.Param("id")
	userID, err := actor(c)
	if err != nil {
		httpx.BadRequest(c, err, "")
		return
	}

	p, err := h.svc.Unlike(c.Request.Context(), userID, postID)
	if err != nil {
		httpx.WriteError(c, err, userID, fmt.Sprintf("unlike %s", postID))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "likes_count": p.LikesCount})
	logs.LogJSON("INFO", "Post unliked", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": userID,
		"postID": postID,
	})
}

// GetComments GET /api/posts/:id/comments
func (h *Handler) GetComments(c *gin.Context) {
	postID := c.Param("id")
	limit, offset, err := httpx.Page(c)
	if err != nil {
		httpx.WriteError(c, err, "", "")
		return
	}

	comments, err := h.svc.Comments(c.Request.Context(), postID, limit, offset)
	if err != nil {
		httpx.WriteError(c, err, "", fmt.Sprintf("comments of %s", postID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// AddComment POST /api/posts/:id/comments
func (h *Handler) AddComment(c *gin.Context) {
	postID := c.Param("id")
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err, "")
		return
	}

	comment, err := h.svc.Comment(c.Request.Context(), req.UserID, postID, req.Content)
	if err != nil {
		httpx.WriteError(c, err, req.UserID, fmt.Sprintf("comment on %s", postID))
		return
	}

	c.JSON(http.StatusCreated, comment)
	logs.LogJSON("INFO", "Comment added", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": req.UserID,
		"postID": postID,
	})
}
