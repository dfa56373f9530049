package feed

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/httpx"
)

type Handler struct {
	feed *Assembler
}

func NewHandler(a *Assembler) *Handler {
	return &Handler{feed: a}
}

// GetPosts GET /api/posts?date=&popularity=&tag=&limit=&offset=&viewer=
func (h *Handler) GetPosts(c *gin.Context) {
	f, ok := h.parseFilter(c)
	if !ok {
		return
	}
	views, err := h.feed.Feed(c.Request.Context(), f, httpx.Viewer(c))
	if err != nil {
		httpx.WriteError(c, err, httpx.Viewer(c), fmt.Sprintf("feed %s", f.Key()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

// GetMapPosts GET /api/posts/map
func (h *Handler) GetMapPosts(c *gin.Context) {
	f, ok := h.parseFilter(c)
	if !ok {
		return
	}
	views, err := h.feed.Map(c.Request.Context(), f, httpx.Viewer(c))
	if err != nil {
		httpx.WriteError(c, err, httpx.Viewer(c), fmt.Sprintf("map %s", f.Key()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

// GetPost GET /api/posts/:id
func (h *Handler) GetPost(c *gin.Context) {
	id := c.Param("id")
	view, err := h.feed.Post(c.Request.Context(), id, httpx.Viewer(c))
	if err != nil {
		httpx.WriteError(c, err, httpx.Viewer(c), fmt.Sprintf("post %s", id))
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) parseFilter(c *gin.Context) (filter.Posts, bool) {
	f, err := filter.Parse(c.Query("date"), c.Query("popularity"))
	if err == nil {
		f.Limit, f.Offset, err = httpx.Page(c)
	}
	if err != nil {
		httpx.WriteError(c, err, httpx.Viewer(c), c.Request.URL.RawQuery)
		return filter.Posts{}, false
	}
	f.Tag = c.Query("tag")
	return f, true
}
