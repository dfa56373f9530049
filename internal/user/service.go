package user

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/store"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

const (
	maxDisplayName = 100
	maxBio         = 500
)

type Invalidator interface {
	Invalidate()
}

type RegisterInput struct {
	Username    string
	DisplayName string
	Email       string
	Bio         string
}

// ProfileUpdate holds the editable fields; nil leaves a field unchanged.
// The username is not editable.
type ProfileUpdate struct {
	DisplayName  *string
	Bio          *string
	ProfilePhoto *string
	IsPrivate    *bool
}

type Service struct {
	store store.Store
	feed  Invalidator
}

func NewService(s store.Store, feed Invalidator) *Service {
	return &Service{store: s, feed: feed}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if !usernameRe.MatchString(username) {
		return nil, apperr.Validation("username must be 3-30 letters, digits, '_' or '.'")
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, apperr.Validation("invalid email %q", email)
		}
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}
	if err := checkLengths(&displayName, &in.Bio); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &models.User{
		ID:          uuid.New().String(),
		Username:    username,
		Email:       email,
		DisplayName: displayName,
		Bio:         strings.TrimSpace(in.Bio),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.User, error) {
	if upd.DisplayName != nil {
		v := strings.TrimSpace(*upd.DisplayName)
		if v == "" {
			return nil, apperr.Validation("display name cannot be empty")
		}
		upd.DisplayName = &v
	}
	if err := checkLengths(upd.DisplayName, upd.Bio); err != nil {
		return nil, err
	}

	u, err := s.store.UpdateUser(ctx, id, store.UserUpdate{
		DisplayName:  upd.DisplayName,
		Bio:          upd.Bio,
		ProfilePhoto: upd.ProfilePhoto,
		IsPrivate:    upd.IsPrivate,
	})
	if err != nil {
		return nil, err
	}
	// Author summaries embedded in cached feed pages may have changed.
	if s.feed != nil && (upd.DisplayName != nil || upd.ProfilePhoto != nil) {
		s.feed.Invalidate()
	}
	return u, nil
}

// IsFollowing reports whether viewerID follows userID.
func (s *Service) IsFollowing(ctx context.Context, viewerID, userID string) (bool, error) {
	return s.store.IsFollowing(ctx, viewerID, userID)
}

func checkLengths(displayName, bio *string) error {
	if displayName != nil && utf8.RuneCountInString(*displayName) > maxDisplayName {
		return apperr.Validation("display name is limited to %d characters", maxDisplayName)
	}
	if bio != nil && utf8.RuneCountInString(*bio) > maxBio {
		return apperr.Validation("bio is limited to %d characters", maxBio)
	}
	return nil
}
