package follow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/events"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/store"
)

type Invalidator interface {
	Invalidate()
}

type Service struct {
	store  store.Store
	feed   Invalidator
	events events.Publisher
}

func NewService(s store.Store, feed Invalidator, pub events.Publisher) *Service {
	return &Service{store: s, feed: feed, events: pub}
}

// Follow makes followerID follow followingID. Both counters move with the
// relation.
func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	if err := checkPair(followerID, followingID); err != nil {
		return err
	}
	err := s.store.AddFollow(ctx, &models.Follow{
		ID:          uuid.New().String(),
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   time.Now().UTC(),
	})
	s.record("follow", err)
	if err != nil {
		return err
	}
	s.committed(ctx, events.UserFollowed, followerID, followingID)
	return nil
}

func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	if err := checkPair(followerID, followingID); err != nil {
		return err
	}
	err := s.store.RemoveFollow(ctx, followerID, followingID)
	s.record("unfollow", err)
	if err != nil {
		return err
	}
	s.committed(ctx, events.UserUnfollowed, followerID, followingID)
	return nil
}

func (s *Service) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.store.IsFollowing(ctx, followerID, followingID)
}

func (s *Service) Followers(ctx context.Context, userID string) ([]models.AuthorSummary, error) {
	users, err := s.store.ListFollowers(ctx, userID)
	return summaries(users), err
}

func (s *Service) Following(ctx context.Context, userID string) ([]models.AuthorSummary, error) {
	users, err := s.store.ListFollowing(ctx, userID)
	return summaries(users), err
}

func (s *Service) committed(ctx context.Context, eventType, followerID, followingID string) {
	if s.feed != nil {
		s.feed.Invalidate()
	}
	events.Emit(ctx, s.events, events.Event{Type: eventType, ActorID: followerID, SubjectID: followingID})
}

func (s *Service) record(action string, err error) {
	label := "ok"
	if err != nil {
		label = apperr.KindOf(err).String()
	}
	metrics.Interactions.WithLabelValues(action, label).Inc()
	if apperr.Is(err, apperr.KindInvariant) {
		metrics.InvariantViolations.WithLabelValues("user").Inc()
	}
}

func checkPair(followerID, followingID string) error {
	if strings.TrimSpace(followerID) == "" || strings.TrimSpace(followingID) == "" {
		return apperr.Validation("follower and followed user are required")
	}
	if followerID == followingID {
		return apperr.Validation("cannot follow yourself")
	}
	return nil
}

func summaries(users []models.User) []models.AuthorSummary {
	if users == nil {
		return nil
	}
	out := make([]models.AuthorSummary, len(users))
	for i, u := range users {
		out[i] = u.Summary()
	}
	return out
}
