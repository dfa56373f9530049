package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Victor-Weng/sunset-spot/internal/config"
	"github.com/Victor-Weng/sunset-spot/internal/feed"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/server"
	"github.com/Victor-Weng/sunset-spot/internal/store"
)

func newServer(t *testing.T) (*Client, *server.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		WeatherBaseURL: "http://127.0.0.1:1",
		GeocodeBaseURL: "http://127.0.0.1:1",
		GatewayTimeout: 200 * time.Millisecond,
		FeedCacheSize:  16,
		FeedCacheTTL:   time.Minute,
	}
	app, err := server.NewApp(context.Background(), cfg, store.NewMemory())
	require.NoError(t, err)
	srv := httptest.NewServer(server.NewRouter(app))
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})

	ctx := context.Background()
	for _, u := range []models.User{{ID: "alex", Username: "alex"}, {ID: "sam", Username: "sam"}} {
		u := u
		require.NoError(t, app.Store.CreateUser(ctx, &u))
	}
	return New(srv.URL, 5*time.Second), app
}

func TestLikeFlow(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	p, err := c.CreatePost(ctx, CreatePostRequest{AuthorID: "alex", Title: "Sunrise", ImageURL: "https://img.test/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "alex", p.Author.Username)

	n, err := c.Like(ctx, "sam", p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = c.Like(ctx, "sam", p.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "already_liked", apiErr.Code)
	assert.Zero(t, c.Overlay().Pending(), "failed like rolled back")

	view, err := c.Post(ctx, p.ID, "sam")
	require.NoError(t, err)
	assert.EqualValues(t, 1, view.LikesCount)
	assert.True(t, view.IsLiked)

	n, err = c.Unlike(ctx, "sam", p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	posts, err := c.Feed(ctx, FeedQuery{Viewer: "sam", Popularity: "most_liked"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Zero(t, posts[0].LikesCount)
	assert.False(t, posts[0].IsLiked)
}

func TestCommentFlow(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	p, err := c.CreatePost(ctx, CreatePostRequest{AuthorID: "alex", Title: "Falls", ImageURL: "https://img.test/f.jpg"})
	require.NoError(t, err)

	comment, err := c.Comment(ctx, "sam", p.ID, "Great shot")
	require.NoError(t, err)
	assert.Equal(t, "Great shot", comment.Content)

	_, err = c.Comment(ctx, "sam", p.ID, "   ")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	comments, err := c.Comments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "sam", comments[0].Author.Username)

	view, err := c.Post(ctx, p.ID, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, view.CommentsCount)
	assert.Zero(t, c.Overlay().Pending())
}

func TestWeatherUnavailable(t *testing.T) {
	c, _ := newServer(t)
	_, err := c.Weather(context.Background(), 48.7, -121.8)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "upstream_unavailable", apiErr.Code)
}

func TestDeltaVisibleWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(arrived)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"store unavailable","code":"internal_error"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	base := feed.PostView{Post: models.Post{ID: "p1", LikesCount: 7}}

	done := make(chan error, 1)
	go func() {
		_, err := c.Like(context.Background(), "sam", "p1")
		done <- err
	}()

	<-arrived
	pending := c.Overlay().View(base)
	assert.EqualValues(t, 8, pending.LikesCount)
	assert.True(t, pending.IsLiked)

	close(release)
	require.Error(t, <-done)
	assert.Equal(t, base, c.Overlay().View(base))
}
