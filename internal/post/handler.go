package post

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/feed"
	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/httpx"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/storage"
)

type Handler struct {
	repo  *Repository
	views *feed.Assembler
}

func NewHandler(repo *Repository, views *feed.Assembler) *Handler {
	return &Handler{repo: repo, views: views}
}

type createRequest struct {
	AuthorID string           `json:"author_id"`
	Title    string           `json:"title"`
	Caption  string           `json:"caption"`
	ImageURL string           `json:"image_url"`
	VideoURL string           `json:"video_url"`
	Tags     []string         `json:"tags"`
	Location *models.Location `json:"location"`
}

// CreatePost POST /api/posts
func (h *Handler) CreatePost(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err, "")
		return
	}

	h.create(c, CreateInput{
		AuthorID: req.AuthorID,
		Title:    req.Title,
		Caption:  req.Caption,
		ImageURL: req.ImageURL,
		VideoURL: req.VideoURL,
		Tags:     req.Tags,
		Location: req.Location,
	})
}

// UploadPost POST /api/posts/upload (multipart, file field "media")
func (h *Handler) UploadPost(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+(1<<20))

	authorID := c.PostForm("author_id")
	file, header, err := c.Request.FormFile("media")
	if err != nil {
		httpx.WriteError(c, apperr.Validation("no media provided"), authorID, err.Error())
		return
	}
	defer file.Close()

	loc, err := formLocation(c)
	if err != nil {
		httpx.WriteError(c, err, authorID, "")
		return
	}

	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	h.create(c, CreateInput{
		AuthorID: authorID,
		Title:    c.PostForm("title"),
		Caption:  c.PostForm("caption"),
		Tags:     tags,
		Location: loc,
		Upload: &Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		},
	})
}

func (h *Handler) create(c *gin.Context, in CreateInput) {
	p, err := h.repo.Create(c.Request.Context(), in)
	if err != nil {
		httpx.WriteError(c, err, in.AuthorID, fmt.Sprintf("create post %q", in.Title))
		return
	}

	view, err := h.views.Post(c.Request.Context(), p.ID, in.AuthorID)
	if err != nil {
		httpx.WriteError(c, err, in.AuthorID, fmt.Sprintf("load created post %s", p.ID))
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetPostsByUsername GET /api/users/username/:username/posts
func (h *Handler) GetPostsByUsername(c *gin.Context) {
	username := c.Param("username")
	viewer := httpx.Viewer(c)

	f, err := filter.Parse(c.Query("date"), c.Query("popularity"))
	if err == nil {
		f.Limit, f.Offset, err = httpx.Page(c)
	}
	if err != nil {
		httpx.WriteError(c, err, viewer, "")
		return
	}

	posts, err := h.repo.ListByUsername(c.Request.Context(), username, f)
	if err != nil {
		httpx.WriteError(c, err, viewer, fmt.Sprintf("posts of %s", username))
		return
	}
	views, err := h.views.Assemble(c.Request.Context(), posts, viewer)
	if err != nil {
		httpx.WriteError(c, err, viewer, fmt.Sprintf("posts of %s", username))
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": views})
	logs.LogJSON("DEBUG", "Profile posts fetched", map[string]interface{}{
		"route":  c.FullPath(),
		"userID": viewer,
		"extra":  fmt.Sprintf("%d posts of %s", len(views), username),
	})
}

func formLocation(c *gin.Context) (*models.Location, error) {
	latRaw, lonRaw := c.PostForm("latitude"), c.PostForm("longitude")
	if latRaw == "" && lonRaw == "" {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)
	if errLat != nil || errLon != nil {
		return nil, apperr.Validation("latitude and longitude must both be numbers")
	}
	return &models.Location{
		Latitude:  lat,
		Longitude: lon,
		Name:      c.PostForm("location_name"),
		Region:    c.PostForm("region"),
	}, nil
}
