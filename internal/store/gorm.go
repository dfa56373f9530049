package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/models"
)

// SQL is the gorm-backed Store. Counter updates run inside a transaction
// that holds a row lock on the counted entity.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

func (s *SQL) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("LOWER(username) = LOWER(?)", u.Username).Count(&n).Error; err != nil {
			return dbErr("check username", err)
		}
		if n > 0 {
			return apperr.ErrUsernameTaken
		}
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrUsernameTaken
			}
			return dbErr("create user", err)
		}
		return nil
	})
}

func (s *SQL) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return &u, nil
}

func (s *SQL) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&u).Error; err != nil {
		return nil, notFoundOr(err, "user", username)
	}
	return &u, nil
}

func (s *SQL) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "user", id)
		}
		changes := map[string]interface{}{}
		if upd.DisplayName != nil {
			changes["display_name"] = *upd.DisplayName
		}
		if upd.Bio != nil {
			changes["bio"] = *upd.Bio
		}
		if upd.ProfilePhoto != nil {
			changes["profile_photo"] = *upd.ProfilePhoto
		}
		if upd.IsPrivate != nil {
			changes["is_private"] = *upd.IsPrivate
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&u).Updates(changes).Error; err != nil {
			return dbErr("update user", err)
		}
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			return dbErr("reload user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQL) UsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, dbErr("load users", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *SQL) CreatePost(ctx context.Context, p *models.Post) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&author, "id = ?", p.AuthorID).Error; err != nil {
			return notFoundOr(err, "user", p.AuthorID)
		}
		if err := tx.Create(p).Error; err != nil {
			return dbErr("create post", err)
		}
		if err := tx.Model(&author).UpdateColumn("posts_count", gorm.Expr("posts_count + 1")).Error; err != nil {
			return dbErr("increment posts_count", err)
		}
		return nil
	})
}

func (s *SQL) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "post", id)
	}
	return &p, nil
}

// tagMatchSQL matches one element of the JSON tags array exactly, ignoring
// case. Rows whose tags are not an array (NULL or "null") never match.
const tagMatchSQL = `EXISTS (SELECT 1 FROM jsonb_array_elements_text(
	CASE WHEN jsonb_typeof(posts.tags::jsonb) = 'array' THEN posts.tags::jsonb ELSE '[]'::jsonb END
) AS t(tag) WHERE LOWER(t.tag) = LOWER(?))`

func (s *SQL) ListPosts(ctx context.Context, f filter.Posts, now time.Time) ([]models.Post, error) {
	f = f.Normalize()

	query := s.db.WithContext(ctx).Model(&models.Post{})
	if since, ok := f.Window.Since(now); ok {
		query = query.Where("created_at >= ?", since)
	}
	if f.AuthorID != "" {
		query = query.Where("author_id = ?", f.AuthorID)
	}
	if f.WithLocation {
		query = query.Where("location IS NOT NULL")
	}
	if f.Tag != "" {
		query = query.Where(tagMatchSQL, f.Tag)
	}

	var posts []models.Post
	if err := query.Order(f.Order.SQL()).Limit(f.Limit).Offset(f.Offset).Find(&posts).Error; err != nil {
		return nil, dbErr("list posts", err)
	}
	return posts, nil
}

func (s *SQL) AddLike(ctx context.Context, l *models.Like) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPost(tx, l.PostID, &p); err != nil {
			return err
		}
		if err := requireUser(tx, l.UserID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Like{}).Where("user_id = ? AND post_id = ?", l.UserID, l.PostID).Count(&n).Error; err != nil {
			return dbErr("check like", err)
		}
		if n > 0 {
			return apperr.ErrAlreadyLiked
		}
		if err := tx.Create(l).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrAlreadyLiked
			}
			return dbErr("create like", err)
		}
		if err := tx.Model(&p).UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error; err != nil {
			return dbErr("increment likes_count", err)
		}
		p.LikesCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQL) RemoveLike(ctx context.Context, userID, postID string) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPost(tx, postID, &p); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return dbErr("delete like", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotLiked
		}
		if p.LikesCount <= 0 {
			return apperr.Invariant("likes_count of post %s would go negative", postID)
		}
		if err := tx.Model(&p).UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error; err != nil {
			return dbErr("decrement likes_count", err)
		}
		p.LikesCount--
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQL) LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if userID == "" || len(postIDs) == 0 {
		return out, nil
	}
	var liked []string
	if err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error; err != nil {
		return nil, dbErr("load likes", err)
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}

func (s *SQL) CountLikes(ctx context.Context, postID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, dbErr("count likes", err)
	}
	return n, nil
}

func (s *SQL) AddComment(ctx context.Context, c *models.Comment) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPost(tx, c.PostID, &p); err != nil {
			return err
		}
		if err := requireUser(tx, c.AuthorID); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return dbErr("create comment", err)
		}
		if err := tx.Model(&p).UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error; err != nil {
			return dbErr("increment comments_count", err)
		}
		p.CommentsCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQL) ListComments(ctx context.Context, postID string, limit, offset int) ([]models.Comment, error) {
	if err := requireRow(s.db.WithContext(ctx), &models.Post{}, "post", postID); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC, id ASC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var comments []models.Comment
	if err := query.Find(&comments).Error; err != nil {
		return nil, dbErr("list comments", err)
	}
	return comments, nil
}

func (s *SQL) CountComments(ctx context.Context, postID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, dbErr("count comments", err)
	}
	return n, nil
}

func (s *SQL) AddFollow(ctx context.Context, f *models.Follow) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUsers(tx, f.FollowerID, f.FollowingID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", f.FollowerID, f.FollowingID).
			Count(&n).Error; err != nil {
			return dbErr("check follow", err)
		}
		if n > 0 {
			return apperr.ErrAlreadyFollowing
		}
		if err := tx.Create(f).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrAlreadyFollowing
			}
			return dbErr("create follow", err)
		}
		return adjustFollowCounters(tx, f.FollowerID, f.FollowingID, 1)
	})
}

func (s *SQL) RemoveFollow(ctx context.Context, followerID, followingID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, err := lockUsersRows(tx, followerID, followingID)
		if err != nil {
			return err
		}
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return dbErr("delete follow", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFollowing
		}
		if users[followerID].FollowingCount <= 0 || users[followingID].FollowersCount <= 0 {
			return apperr.Invariant("follow counters of %s/%s would go negative", followerID, followingID)
		}
		return adjustFollowCounters(tx, followerID, followingID, -1)
	})
}

func (s *SQL) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error; err != nil {
		return false, dbErr("check follow", err)
	}
	return n > 0, nil
}

func (s *SQL) ListFollowers(ctx context.Context, userID string) ([]models.User, error) {
	return s.listFollowUsers(ctx, userID, "following_id", "follower_id")
}

func (s *SQL) ListFollowing(ctx context.Context, userID string) ([]models.User, error) {
	return s.listFollowUsers(ctx, userID, "follower_id", "following_id")
}

func (s *SQL) listFollowUsers(ctx context.Context, userID, matchCol, pickCol string) ([]models.User, error) {
	db := s.db.WithContext(ctx)
	if err := requireRow(db, &models.User{}, "user", userID); err != nil {
		return nil, err
	}
	var ids []string
	if err := db.Model(&models.Follow{}).Where(matchCol+" = ?", userID).Pluck(pickCol, &ids).Error; err != nil {
		return nil, dbErr("list follows", err)
	}
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := db.Where("id IN ?", ids).Order("username ASC").Find(&users).Error; err != nil {
		return nil, dbErr("load users", err)
	}
	return users, nil
}

func (s *SQL) lockPost(tx *gorm.DB, id string, p *models.Post) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(p, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "post", id)
	}
	return nil
}

func lockUsers(tx *gorm.DB, ids ...string) error {
	_, err := lockUsersRows(tx, ids...)
	return err
}

// lockUsersRows locks the rows in id order so concurrent follow/unfollow
// pairs cannot deadlock.
func lockUsersRows(tx *gorm.DB, ids ...string) (map[string]models.User, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := make(map[string]models.User, len(sorted))
	for _, id := range sorted {
		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error; err != nil {
			return nil, notFoundOr(err, "user", id)
		}
		out[id] = u
	}
	return out, nil
}

func adjustFollowCounters(tx *gorm.DB, followerID, followingID string, delta int) error {
	if err := tx.Model(&models.User{}).Where("id = ?", followerID).
		UpdateColumn("following_count", gorm.Expr("following_count + ?", delta)).Error; err != nil {
		return dbErr("update following_count", err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followingID).
		UpdateColumn("followers_count", gorm.Expr("followers_count + ?", delta)).Error; err != nil {
		return dbErr("update followers_count", err)
	}
	return nil
}

func requireUser(tx *gorm.DB, id string) error {
	return requireRow(tx, &models.User{}, "user", id)
}

func requireRow(db *gorm.DB, model interface{}, entity, id string) error {
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return dbErr("check "+entity, err)
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return dbErr("load "+entity, err)
}

func dbErr(op string, err error) error {
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}
