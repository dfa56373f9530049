// Package seed loads the demo account and its sample posts into an empty
// store.
package seed

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/store"
)

const DemoUsername = "demo"

var namespace = uuid.MustParse("6f1c8f5e-3a43-4d8e-9a55-2f0f6f7e9b10")

// ID derives a stable id so reseeding a persistent store is idempotent.
func ID(name string) string {
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

var users = []models.User{
	{ID: ID("user:demo"), Username: DemoUsername, Email: "demo@spot.com", DisplayName: "Demo User",
		Bio: "Nature enthusiast and photographer 🌲📸", CreatedAt: ts("2023-01-01T00:00:00Z")},
	{ID: ID("user:naturelover22"), Username: "naturelover22", Email: "sarah@example.com", DisplayName: "Sarah Johnson",
		CreatedAt: ts("2023-06-01T00:00:00Z")},
	{ID: ID("user:mountaineer_mike"), Username: "mountaineer_mike", Email: "mike@example.com", DisplayName: "Mike Chen",
		Bio: "Mountain lover", CreatedAt: ts("2023-08-01T00:00:00Z")},
}

var posts = []models.Post{
	{
		ID:        ID("post:1"),
		Title:     "Sunrise at Mount Baker",
		Caption:   "Caught this incredible sunrise while hiking Mount Baker. The colors were absolutely breathtaking! #MountBaker #Sunrise #PNW #NaturePhotography",
		ImageURL:  "https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=800&h=600&fit=crop",
		Tags:      []string{"MountBaker", "Sunrise", "PNW", "NaturePhotography"},
		Location:  &models.Location{Latitude: 48.7767, Longitude: -121.8144, Name: "Mount Baker, WA", Region: "Washington"},
		CreatedAt: ts("2024-01-15T06:30:00Z"),
	},
	{
		ID:        ID("post:2"),
		Title:     "Hidden Waterfall Discovery",
		Caption:   "Found this hidden gem after a 3-mile hike through the forest. Sometimes the best spots are the ones you have to work for! 💪🏞️",
		ImageURL:  "https://images.unsplash.com/photo-1440342359743-84fcb8c21f21?w=800&h=600&fit=crop",
		Tags:      []string{"Waterfall", "Hiking", "HiddenGem", "Forest"},
		Location:  &models.Location{Latitude: 47.4979, Longitude: -121.1013, Name: "Snoqualmie Falls, WA", Region: "Washington"},
		CreatedAt: ts("2024-01-12T14:20:00Z"),
	},
	{
		ID:        ID("post:3"),
		Title:     "Alpine Lake Reflection",
		Caption:   "Perfect mirror reflection at this alpine lake. Nature's artistry at its finest! The 6-hour hike was totally worth it.",
		ImageURL:  "https://images.unsplash.com/photo-1441974231531-c6227db76b6e?w=800&h=600&fit=crop",
		Tags:      []string{"AlpineLake", "Reflection", "Mountains", "Hiking"},
		Location:  &models.Location{Latitude: 47.7511, Longitude: -120.7401, Name: "Lake Chelan, WA", Region: "Washington"},
		CreatedAt: ts("2024-01-10T16:45:00Z"),
	},
}

var comments = []models.Comment{
	{ID: ID("comment:1"), PostID: ID("post:1"), AuthorID: ID("user:naturelover22"),
		Content: "Absolutely stunning! What time did you start the hike?", CreatedAt: ts("2024-01-15T08:00:00Z")},
	{ID: ID("comment:2"), PostID: ID("post:1"), AuthorID: ID("user:mountaineer_mike"),
		Content: "Mount Baker never disappoints! Great shot 📸", CreatedAt: ts("2024-01-15T09:15:00Z")},
}

// Demo inserts the demo data unless the demo user already exists. Counters
// are derived from the inserted rows, never copied.
func Demo(ctx context.Context, s store.Store) error {
	if _, err := s.GetUserByUsername(ctx, DemoUsername); err == nil {
		logs.LogJSON("INFO", "Demo data already present", nil)
		return nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	for _, u := range users {
		u := u
		u.UpdatedAt = u.CreatedAt
		if err := s.CreateUser(ctx, &u); err != nil {
			return err
		}
	}
	for _, p := range posts {
		p := p.Clone()
		p.AuthorID = users[0].ID
		p.UpdatedAt = p.CreatedAt
		if err := s.CreatePost(ctx, &p); err != nil {
			return err
		}
	}
	for _, c := range comments {
		c := c
		c.UpdatedAt = c.CreatedAt
		if _, err := s.AddComment(ctx, &c); err != nil {
			return err
		}
	}
	// The second demo post starts out liked by the demo user.
	if _, err := s.AddLike(ctx, &models.Like{
		ID:        ID("like:demo:2"),
		UserID:    users[0].ID,
		PostID:    posts[1].ID,
		CreatedAt: posts[1].CreatedAt,
	}); err != nil {
		return err
	}

	logs.LogJSON("INFO", "Demo data seeded", map[string]interface{}{
		"userID": users[0].ID,
		"extra":  "3 posts, 2 comments",
	})
	return nil
}
