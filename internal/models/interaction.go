package models

import "time"

type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	PostID    string    `json:"post_id" gorm:"index;size:36;not null"`
	AuthorID  string    `json:"author_id" gorm:"size:36;not null"`
	Content   string    `json:"content" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Comment) TableName() string {
	return "comments"
}

// Like is unique per (user, post).
type Like struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"size:36;not null;uniqueIndex:idx_likes_user_post"`
	PostID    string    `json:"post_id" gorm:"size:36;not null;uniqueIndex:idx_likes_user_post;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string {
	return "likes"
}

// Follow is unique per (follower, following) and never points at itself.
type Follow struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	FollowerID  string    `json:"follower_id" gorm:"size:36;not null;uniqueIndex:idx_follows_pair"`
	FollowingID string    `json:"following_id" gorm:"size:36;not null;uniqueIndex:idx_follows_pair;index"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Follow) TableName() string {
	return "follows"
}
