// Package store is the Entity Store: the single source of truth for users,
// posts, comments, likes and follows. Every method that changes a counter
// does so atomically with the relation it counts.
package store

import (
	"context"
	"time"

	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/models"
)

type UserUpdate struct {
	DisplayName  *string
	Bio          *string
	ProfilePhoto *string
	IsPrivate    *bool
}

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (*models.User, error)
	UsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error)

	// CreatePost inserts the post and increments the author's posts count.
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, f filter.Posts, now time.Time) ([]models.Post, error)

	// AddLike returns apperr.ErrAlreadyLiked when the pair exists.
	AddLike(ctx context.Context, l *models.Like) (*models.Post, error)
	// RemoveLike returns apperr.ErrNotLiked when the pair is absent.
	RemoveLike(ctx context.Context, userID, postID string) (*models.Post, error)
	LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	CountLikes(ctx context.Context, postID string) (int64, error)

	AddComment(ctx context.Context, c *models.Comment) (*models.Post, error)
	ListComments(ctx context.Context, postID string, limit, offset int) ([]models.Comment, error)
	CountComments(ctx context.Context, postID string) (int64, error)

	AddFollow(ctx context.Context, f *models.Follow) error
	RemoveFollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowers(ctx context.Context, userID string) ([]models.User, error)
	ListFollowing(ctx context.Context, userID string) ([]models.User, error)

	Close() error
}
