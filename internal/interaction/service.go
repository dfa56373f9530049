// Package interaction owns likes and comments. Every mutation changes the
// relation and its counter in one store call, then invalidates the feed
// before returning.
package interaction

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/events"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/store"
)

const MaxCommentLength = 500

type Invalidator interface {
	Invalidate()
}

type CommentView struct {
	models.Comment
	Author models.AuthorSummary `json:"author"`
}

type Service struct {
	store  store.Store
	feed   Invalidator
	events events.Publisher
}

func NewService(s store.Store, feed Invalidator, pub events.Publisher) *Service {
	return &Service{store: s, feed: feed, events: pub}
}

func (s *Service) Like(ctx context.Context, userID, postID string) (*models.Post, error) {
	if err := requireIDs(userID, postID); err != nil {
		return nil, err
	}
	p, err := s.store.AddLike(ctx, &models.Like{
		ID:        uuid.New().String(),
		UserID:    userID,
		PostID:    postID,
		CreatedAt: time.Now().UTC(),
	})
	s.record(ctx, "like", err, userID, postID)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, events.PostLiked, userID, postID, map[string]any{"likes_count": p.LikesCount})
	return p, nil
}

func (s *Service) Unlike(ctx context.Context, userID, postID string) (*models.Post, error) {
	if err := requireIDs(userID, postID); err != nil {
		return nil, err
	}
	p, err := s.store.RemoveLike(ctx, userID, postID)
	s.record(ctx, "unlike", err, userID, postID)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, events.PostUnliked, userID, postID, map[string]any{"likes_count": p.LikesCount})
	return p, nil
}

// Comment appends a comment. Content is trimmed and must hold between 1 and
// MaxCommentLength characters.
func (s *Service) Comment(ctx context.Context, userID, postID, content string) (*models.Comment, error) {
	if err := requireIDs(userID, postID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("comment cannot be empty")
	}
	if n := utf8.RuneCountInString(content); n > MaxCommentLength {
		return nil, apperr.Validation("comment is %d characters, limit is %d", n, MaxCommentLength)
	}

	now := time.Now().UTC()
	c := &models.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		AuthorID:  userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p, err := s.store.AddComment(ctx, c)
	s.record(ctx, "comment", err, userID, postID)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, events.CommentCreated, userID, postID, map[string]any{
		"comment_id":     c.ID,
		"comments_count": p.CommentsCount,
	})
	return c, nil
}

// Comments lists a post's comments oldest first with their author summary.
func (s *Service) Comments(ctx context.Context, postID string, limit, offset int) ([]CommentView, error) {
	comments, err := s.store.ListComments(ctx, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	authors, err := s.store.UsersByIDs(ctx, lo.Uniq(lo.Map(comments, func(c models.Comment, _ int) string { return c.AuthorID })))
	if err != nil {
		return nil, err
	}
	return lo.Map(comments, func(c models.Comment, _ int) CommentView {
		v := CommentView{Comment: c, Author: authors[c.AuthorID].Summary()}
		if v.Author.ID == "" {
			v.Author.ID = c.AuthorID
		}
		return v
	}), nil
}

func (s *Service) committed(ctx context.Context, eventType, userID, postID string, data map[string]any) {
	if s.feed != nil {
		s.feed.Invalidate()
	}
	events.Emit(ctx, s.events, events.Event{
		Type:      eventType,
		ActorID:   userID,
		SubjectID: postID,
		Data:      data,
	})
}

func (s *Service) record(_ context.Context, action string, err error, userID, postID string) {
	metrics.Interactions.WithLabelValues(action, outcome(err)).Inc()
	if apperr.Is(err, apperr.KindInvariant) {
		metrics.InvariantViolations.WithLabelValues("post").Inc()
		logs.LogJSON("ERROR", "Counter invariant violated", map[string]interface{}{
			"error":  err.Error(),
			"userID": userID,
			"postID": postID,
			"extra":  fmt.Sprintf("action %s rejected", action),
		})
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

func requireIDs(userID, postID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation("user_id is required")
	}
	if strings.TrimSpace(postID) == "" {
		return apperr.Validation("post id is required")
	}
	return nil
}
