package user

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/httpx"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/models"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Bio         string `json:"bio"`
}

type updateRequest struct {
	DisplayName  *string `json:"display_name"`
	Bio          *string `json:"bio"`
	ProfilePhoto *string `json:"profile_photo"`
	IsPrivate    *bool   `json:"is_private"`
}

type profileResponse struct {
	models.User
	IsFollowing *bool `json:"is_following,omitempty"`
}

// CreateUser POST /api/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err, "")
		return
	}

	u, err := h.svc.Register(c.Request.Context(), RegisterInput(req))
	if err != nil {
		httpx.WriteError(c, err, "", fmt.Sprintf("register %s", req.Username))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u})
	logs.LogJSON("INFO", "User registered", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": u.ID,
	})
}

// GetUser GET /api/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.WriteError(c, err, "", "")
		return
	}
	h.respond(c, u)
}

// GetUserByUsername GET /api/users/username/:username?viewer=
func (h *Handler) GetUserByUsername(c *gin.Context) {
	u, err := h.svc.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		httpx.WriteError(c, err, httpx.Viewer(c), "")
		return
	}
	h.respond(c, u)
}

// UpdateUser PATCH /api/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	id := c.Param("id")
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err, id)
		return
	}

	u, err := h.svc.UpdateProfile(c.Request.Context(), id, ProfileUpdate(req))
	if err != nil {
		httpx.WriteError(c, err, id, "update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": u})
	logs.LogJSON("INFO", "Profile updated", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": id,
	})
}

// respond hides the email from everyone but the owner and tells other
// viewers whether they follow the user.
func (h *Handler) respond(c *gin.Context, u *models.User) {
	viewer := httpx.Viewer(c)
	resp := profileResponse{User: *u}
	if viewer != u.ID {
		resp.Email = ""
	}
	if viewer != "" && viewer != u.ID {
		following, err := h.svc.IsFollowing(c.Request.Context(), viewer, u.ID)
		if err != nil {
			httpx.WriteError(c, err, viewer, fmt.Sprintf("follow status of %s", u.ID))
			return
		}
		resp.IsFollowing = &following
	}
	c.JSON(http.StatusOK, gin.H{"user": resp})
}
