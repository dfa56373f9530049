// Package client is a Go client for the Sunset Spot REST API. Likes and
// comments are applied to a local overlay first so callers can render them
// before the server answers.
package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Victor-Weng/sunset-spot/internal/feed"
	"github.com/Victor-Weng/sunset-spot/internal/interaction"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/optimistic"
	"github.com/Victor-Weng/sunset-spot/internal/weather"
)

// APIError is the {"error","code"} body the server sends with every failure.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	http    *resty.Client
	overlay *optimistic.Overlay
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		overlay: optimistic.New(),
	}
}

// Overlay exposes the pending local deltas, e.g. to re-render a view.
func (c *Client) Overlay() *optimistic.Overlay {
	return c.overlay
}

type FeedQuery struct {
	Date       string
	Popularity string
	Tag        string
	Viewer     string
	Limit      int
	Offset     int
}

func (q FeedQuery) params() map[string]string {
	p := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	set("date", q.Date)
	set("popularity", q.Popularity)
	set("tag", q.Tag)
	set("viewer", q.Viewer)
	if q.Limit > 0 {
		p["limit"] = strconv.Itoa(q.Limit)
	}
	if q.Offset > 0 {
		p["offset"] = strconv.Itoa(q.Offset)
	}
	return p
}

// Feed returns the filtered feed with pending local deltas applied.
func (c *Client) Feed(ctx context.Context, q FeedQuery) ([]feed.PostView, error) {
	var body struct {
		Posts []feed.PostView `json:"posts"`
	}
	if err := c.do(c.http.R().SetContext(ctx).SetQueryParams(q.params()).SetResult(&body), "GET", "/api/posts"); err != nil {
		return nil, err
	}
	for i := range body.Posts {
		body.Posts[i] = c.overlay.View(body.Posts[i])
	}
	return body.Posts, nil
}

func (c *Client) Post(ctx context.Context, postID, viewer string) (*feed.PostView, error) {
	var v feed.PostView
	req := c.http.R().SetContext(ctx).SetPathParam("id", postID).SetResult(&v)
	if viewer != "" {
		req.SetQueryParam("viewer", viewer)
	}
	if err := c.do(req, "GET", "/api/posts/{id}"); err != nil {
		return nil, err
	}
	v = c.overlay.View(v)
	return &v, nil
}

type CreatePostRequest struct {
	AuthorID string           `json:"author_id"`
	Title    string           `json:"title"`
	Caption  string           `json:"caption,omitempty"`
	ImageURL string           `json:"image_url"`
	VideoURL string           `json:"video_url,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
	Location *models.Location `json:"location,omitempty"`
}

func (c *Client) CreatePost(ctx context.Context, in CreatePostRequest) (*feed.PostView, error) {
	var v feed.PostView
	if err := c.do(c.http.R().SetContext(ctx).SetBody(in).SetResult(&v), "POST", "/api/posts"); err != nil {
		return nil, err
	}
	return &v, nil
}

type likeResponse struct {
	Success    bool  `json:"success"`
	LikesCount int64 `json:"likes_count"`
}

// Like returns the server's like count. The overlay shows the like while the
// request is in flight and drops it exactly once the call settles.
func (c *Client) Like(ctx context.Context, userID, postID string) (int64, error) {
	return c.toggleLike(ctx, "POST", userID, postID, optimistic.LikeDelta())
}

func (c *Client) Unlike(ctx context.Context, userID, postID string) (int64, error) {
	return c.toggleLike(ctx, "DELETE", userID, postID, optimistic.UnlikeDelta())
}

func (c *Client) toggleLike(ctx context.Context, method, userID, postID string, d optimistic.Delta) (int64, error) {
	var body likeResponse
	err := c.overlay.Do(ctx, postID, d, func(ctx context.Context) error {
		req := c.http.R().
			SetContext(ctx).
			SetPathParam("id", postID).
			SetBody(map[string]string{"user_id": userID}).
			SetResult(&body)
		return c.do(req, method, "/api/posts/{id}/like")
	})
	if err != nil {
		return 0, err
	}
	return body.LikesCount, nil
}

func (c *Client) Comment(ctx context.Context, userID, postID, content string) (*models.Comment, error) {
	var comment models.Comment
	err := c.overlay.Do(ctx, postID, optimistic.CommentDelta(), func(ctx context.Context) error {
		req := c.http.R().
			SetContext(ctx).
			SetPathParam("id", postID).
			SetBody(map[string]string{"user_id": userID, "content": content}).
			SetResult(&comment)
		return c.do(req, "POST", "/api/posts/{id}/comments")
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) Comments(ctx context.Context, postID string) ([]interaction.CommentView, error) {
	var body struct {
		Comments []interaction.CommentView `json:"comments"`
	}
	req := c.http.R().SetContext(ctx).SetPathParam("id", postID).SetResult(&body)
	if err := c.do(req, "GET", "/api/posts/{id}/comments"); err != nil {
		return nil, err
	}
	return body.Comments, nil
}

func (c *Client) Weather(ctx context.Context, lat, lon float64) (*weather.Report, error) {
	var r weather.Report
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat": strconv.FormatFloat(lat, 'f', -1, 64),
			"lon": strconv.FormatFloat(lon, 'f', -1, 64),
		}).
		SetResult(&r)
	if err := c.do(req, "GET", "/api/weather"); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) do(req *resty.Request, method, path string) error {
	apiErr := &APIError{}
	resp, err := req.SetError(apiErr).Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}
