package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type DateWindow int

const (
	WindowAll DateWindow = iota
	WindowToday
	WindowWeek
	WindowMonth
	WindowYear
)

var windowNames = map[DateWindow]string{
	WindowAll:   "all",
	WindowToday: "today",
	WindowWeek:  "week",
	WindowMonth: "month",
	WindowYear:  "year",
}

func (w DateWindow) String() string {
	if s, ok := windowNames[w]; ok {
		return s
	}
	return fmt.Sprintf("DateWindow(%d)", int(w))
}

func ParseDateWindow(s string) (DateWindow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return WindowAll, nil
	case "today":
		return WindowToday, nil
	case "week":
		return WindowWeek, nil
	case "month":
		return WindowMonth, nil
	case "year":
		return WindowYear, nil
	default:
		return WindowAll, apperr.Validation("unknown date window %q", s)
	}
}

// Since returns the earliest createdAt admitted by the window. ok is false
// for WindowAll. "today" starts at midnight of now's day in now's location.
func (w DateWindow) Since(now time.Time) (since time.Time, ok bool) {
	switch w {
	case WindowToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case WindowWeek:
		return now.AddDate(0, 0, -7), true
	case WindowMonth:
		return now.AddDate(0, -1, 0), true
	case WindowYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

type OrderBy int

const (
	OrderRecent OrderBy = iota
	OrderMostLiked
	OrderMostCommented
)

func (o OrderBy) String() string {
	switch o {
	case OrderMostLiked:
		return "most_liked"
	case OrderMostCommented:
		return "most_commented"
	default:
		return "recent"
	}
}

func ParseOrderBy(s string) (OrderBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "recent":
		return OrderRecent, nil
	case "most_liked", "mostliked":
		return OrderMostLiked, nil
	case "most_commented", "mostcommented":
		return OrderMostCommented, nil
	default:
		return OrderRecent, apperr.Validation("unknown popularity order %q", s)
	}
}

// Less reports whether a sorts before b. Every order ends on recency
// descending and then id, so the result is total.
func (o OrderBy) Less(a, b *models.Post) bool {
	switch o {
	case OrderMostLiked:
		if a.LikesCount != b.LikesCount {
			return a.LikesCount > b.LikesCount
		}
	case OrderMostCommented:
		if a.CommentsCount != b.CommentsCount {
			return a.CommentsCount > b.CommentsCount
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// SQL returns the ORDER BY clause matching Less.
func (o OrderBy) SQL() string {
	switch o {
	case OrderMostLiked:
		return "likes_count DESC, created_at DESC, id DESC"
	case OrderMostCommented:
		return "comments_count DESC, created_at DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

type Posts struct {
	Window       DateWindow
	Order        OrderBy
	AuthorID     string
	Tag          string
	WithLocation bool
	Limit        int
	Offset       int
}

// Parse builds a filter from the query values used by the HTTP API.
func Parse(date, popularity string) (Posts, error) {
	w, err := ParseDateWindow(date)
	if err != nil {
		return Posts{}, err
	}
	o, err := ParseOrderBy(popularity)
	if err != nil {
		return Posts{}, err
	}
	return Posts{Window: w, Order: o}, nil
}

// Normalize clamps paging values.
func (f Posts) Normalize() Posts {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Tag = strings.TrimPrefix(strings.TrimSpace(f.Tag), "#")
	return f
}

func (f Posts) Match(p *models.Post, now time.Time) bool {
	if since, ok := f.Window.Since(now); ok && p.CreatedAt.Before(since) {
		return false
	}
	if f.AuthorID != "" && p.AuthorID != f.AuthorID {
		return false
	}
	if f.WithLocation && p.Location == nil {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range p.Tags {
			if strings.EqualFold(t, f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Key identifies the filter in caches.
func (f Posts) Key() string {
	return fmt.Sprintf("w=%s|o=%s|a=%s|t=%s|loc=%t|l=%d|o=%d",
		f.Window, f.Order, f.AuthorID, strings.ToLower(f.Tag), f.WithLocation, f.Limit, f.Offset)
}
