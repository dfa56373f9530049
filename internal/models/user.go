package models

import "time"

type User struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	Username       string    `json:"username" gorm:"uniqueIndex;size:30;not null"`
	Email          string    `json:"email,omitempty" gorm:"size:255"`
	DisplayName    string    `json:"display_name" gorm:"size:100"`
	Bio            string    `json:"bio"`
	ProfilePhoto   string    `json:"profile_photo" gorm:"size:512"`
	IsPrivate      bool      `json:"is_private"`
	FollowersCount int64     `json:"followers_count" gorm:"not null"`
	FollowingCount int64     `json:"following_count" gorm:"not null"`
	PostsCount     int64     `json:"posts_count" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// AuthorSummary is the part of a user embedded in post views.
type AuthorSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
}

func (u User) Summary() AuthorSummary {
	return AuthorSummary{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		ProfilePhoto: u.ProfilePhoto,
	}
}
