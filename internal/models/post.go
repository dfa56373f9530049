package models

import "time"

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Region    string  `json:"region,omitempty"`
}

// Weather is captured once when the post is created and never updated.
type Weather struct {
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    *int    `json:"humidity,omitempty"`
	Icon        string  `json:"icon,omitempty"`
}

type Post struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	AuthorID      string    `json:"author_id" gorm:"index;size:36;not null"`
	Title         string    `json:"title" gorm:"not null"`
	Caption       string    `json:"caption"`
	ImageURL      string    `json:"image_url" gorm:"size:512;not null"`
	VideoURL      string    `json:"video_url,omitempty" gorm:"size:512"`
	Tags          []string  `json:"tags" gorm:"serializer:json;type:text"`
	Location      *Location `json:"location,omitempty" gorm:"serializer:json;type:text"`
	Weather       *Weather  `json:"weather,omitempty" gorm:"serializer:json;type:text"`
	LikesCount    int64     `json:"likes_count" gorm:"not null;index"`
	CommentsCount int64     `json:"comments_count" gorm:"not null;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

// Clone returns a deep copy so callers never share slices or pointers with
// the store.
func (p Post) Clone() Post {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Location != nil {
		loc := *p.Location
		out.Location = &loc
	}
	if p.Weather != nil {
		w := *p.Weather
		if w.Humidity != nil {
			h := *w.Humidity
			w.Humidity = &h
		}
		out.Weather = &w
	}
	return out
}
