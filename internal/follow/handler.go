package follow

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/httpx"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type followRequest struct {
	UserID string `json:"user_id"`
}

func follower(c *gin.Context) (string, error) {
	var req followRequest
	if err := httpx.BindOptionalJSON(c, &req); err != nil {
		return "", apperr.Validation("invalid request: %v", err)
	}
	if req.UserID == "" {
		req.UserID = c.Query("user_id")
	}
	return req.UserID, nil
}

// FollowUser POST /api/users/:id/follow
func (h *Handler) FollowUser(c *gin.Context) {
	followingID := c.Param("id")
	followerID, err := follower(c)
	if err == nil {
		err = h.svc.Follow(c.Request.Context(), followerID, followingID)
	}
	if err != nil {
		httpx.WriteError(c, err, followerID, fmt.Sprintf("followingID : %s", followingID))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
	logs.LogJSON("INFO", "User followed", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": followerID,
		"extra":  fmt.Sprintf("followingID : %s", followingID),
	})
}

// UnfollowUser DELETE /api/users/:id/follow
func (h *Handler) UnfollowUser(c *gin.Context) {
	followingID := c.Param("id")
	followerID, err := follower(c)
	if err == nil {
		err = h.svc.Unfollow(c.Request.Context(), followerID, followingID)
	}
	if err != nil {
		httpx.WriteError(c, err, followerID, fmt.Sprintf("followingID : %s", followingID))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
	logs.LogJSON("INFO", "User unfollowed", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": followerID,
		"extra":  fmt.Sprintf("followingID : %s", followingID),
	})
}

// GetFollowStatus GET /api/users/:id/follow?user_id=
func (h *Handler) GetFollowStatus(c *gin.Context) {
	followingID := c.Param("id")
	followerID := c.Query("user_id")
	ok, err := h.svc.IsFollowing(c.Request.Context(), followerID, followingID)
	if err != nil {
		httpx.WriteError(c, err, followerID, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_following": ok})
}

// GetFollowers GET /api/users/:id/followers
func (h *Handler) GetFollowers(c *gin.Context) {
	id := c.Param("id")
	users, err := h.svc.Followers(c.Request.Context(), id)
	if err != nil {
		httpx.WriteError(c, err, "", fmt.Sprintf("followers of %s", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetFollowing GET /api/users/:id/following
func (h *Handler) GetFollowing(c *gin.Context) {
	id := c.Param("id")
	users, err := h.svc.Following(c.Request.Context(), id)
	if err != nil {
		httpx.WriteError(c, err, "", fmt.Sprintf("following of %s", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
