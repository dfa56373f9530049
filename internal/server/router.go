package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/feed"
	"github.com/Victor-Weng/sunset-spot/internal/follow"
	"github.com/Victor-Weng/sunset-spot/internal/interaction"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
	"github.com/Victor-Weng/sunset-spot/internal/middleware"
	"github.com/Victor-Weng/sunset-spot/internal/post"
	"github.com/Victor-Weng/sunset-spot/internal/user"
	"github.com/Victor-Weng/sunset-spot/internal/weather"
)

func NewRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		middleware.CORS(app.Config.CORSOrigins),
		middleware.Timeout(app.Config.RequestTimeout),
	)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	feeds := feed.NewHandler(app.Feed)
	posts := post.NewHandler(app.Posts, app.Feed)
	interactions := interaction.NewHandler(app.Interactions)
	follows := follow.NewHandler(app.Follows)
	users := user.NewHandler(app.Users)

	api := r.Group("/api")

	// Users
	api.POST("/users", users.CreateUser)
	api.GET("/users/username/:username", users.GetUserByUsername)
	api.GET("/users/username/:username/posts", posts.GetPostsByUsername)
	api.GET("/users/:id", users.GetUser)
	api.PATCH("/users/:id", users.UpdateUser)

	// Follows
	api.POST("/users/:id/follow", follows.FollowUser)
	api.DELETE("/users/:id/follow", follows.UnfollowUser)
	api.GET("/users/:id/follow", follows.GetFollowStatus)
	api.GET("/users/:id/followers", follows.GetFollowers)
	api.GET("/users/:id/following", follows.GetFollowing)

	// Posts
	api.GET("/posts", feeds.GetPosts)
	api.GET("/posts/map", feeds.GetMapPosts)
	api.POST("/posts", posts.CreatePost)
	api.POST("/posts/upload", posts.UploadPost)
	api.GET("/posts/:id", feeds.GetPost)

	// Likes & comments
	api.POST("/posts/:id/like", interactions.LikePost)
	api.DELETE("/posts/:id/like", interactions.UnlikePost)
	api.GET("/posts/:id/comments", interactions.GetComments)
	api.POST("/posts/:id/comments", interactions.AddComment)

	api.GET("/weather", weather.NewHandler(app.Weather).Current)

	return r
}
