package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/models"
)

func newMockSQL(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	return openMockSQL(t, sqlmock.QueryMatcherRegexp)
}

// sqlLog records every statement gorm sends to the mock.
type sqlLog struct {
	mu    sync.Mutex
	stmts []string
}

func (l *sqlLog) Match(expected, actual string) error {
	l.mu.Lock()
	l.stmts = append(l.stmts, actual)
	l.mu.Unlock()
	return sqlmock.QueryMatcherRegexp.Match(expected, actual)
}

func (l *sqlLog) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.stmts, "\n")
}

func userRow(id string, followers, following int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "followers_count", "following_count"}).
		AddRow(id, "user_"+id, followers, following)
}

func openMockSQL(t *testing.T, matcher sqlmock.QueryMatcher) (*SQL, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	assert.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:                 mockDB,
		DriverName:           "postgres",
		PreferSimpleProtocol: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{})
	assert.NoError(t, err)

	return NewSQL(db), mock
}

func postRow(id string, likes, comments int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "author_id", "title", "image_url", "likes_count", "comments_count", "created_at", "updated_at"}).
		AddRow(id, "u1", "Sunrise", "https://img/sunrise.jpg", likes, comments, now, now)
}

func TestSQLAddLike(t *testing.T) {
	tests := []struct {
		name          string
		existing      int64
		expectedErr   error
		expectedLikes int64
	}{
		{name: "first like increments counter", existing: 0, expectedLikes: 5},
		{name: "duplicate like is a conflict", existing: 1, expectedErr: apperr.ErrAlreadyLiked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockSQL(t)

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT \* FROM "posts"`).WillReturnRows(postRow("p1", 4, 0))
			mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
			mock.ExpectQuery(`SELECT count\(\*\) FROM "likes"`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.existing))
			if tt.expectedErr == nil {
				mock.ExpectExec(`INSERT INTO "likes"`).WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(`UPDATE "posts" SET "likes_count"`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			p, err := s.AddLike(context.Background(), &models.Like{ID: "l1", UserID: "u2", PostID: "p1"})
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, p)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedLikes, p.LikesCount)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLAddLikeMissingPost(t *testing.T) {
	s, mock := newMockSQL(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "posts"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.AddLike(context.Background(), &models.Like{ID: "l1", UserID: "u2", PostID: "nope"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRemoveLike(t *testing.T) {
	tests := []struct {
		name        string
		likes       int64
		deleted     int64
		expectedErr error
		kind        apperr.Kind
	}{
		{name: "removes like and decrements", likes: 3, deleted: 1},
		{name: "absent like is a conflict", likes: 3, deleted: 0, expectedErr: apperr.ErrNotLiked},
		{name: "zero counter is an invariant violation", likes: 0, deleted: 1, kind: apperr.KindInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockSQL(t)

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT \* FROM "posts"`).WillReturnRows(postRow("p1", tt.likes, 0))
			mock.ExpectExec(`DELETE FROM "likes"`).WillReturnResult(sqlmock.NewResult(0, tt.deleted))
			ok := tt.expectedErr == nil && tt.kind == apperr.KindInternal
			if ok {
				mock.ExpectExec(`UPDATE "posts" SET "likes_count"`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			p, err := s.RemoveLike(context.Background(), "u2", "p1")
			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
			case tt.kind != apperr.KindInternal:
				assert.True(t, apperr.Is(err, tt.kind))
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.likes-1, p.LikesCount)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLIsFollowing(t *testing.T) {
	s, mock := newMockSQL(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := s.IsFollowing(context.Background(), "u1", "u2")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGetPostNotFound(t *testing.T) {
	s, mock := newMockSQL(t)

	mock.ExpectQuery(`SELECT \* FROM "posts"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetPost(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLListPosts(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   filter.Posts
		expected string
	}{
		{
			name:     "window bounds created_at",
			filter:   filter.Posts{Window: filter.WindowWeek},
			expected: `SELECT \* FROM "posts" WHERE created_at >= \$1 ORDER BY created_at DESC, id DESC`,
		},
		{
			name:     "most liked order",
			filter:   filter.Posts{Order: filter.OrderMostLiked},
			expected: `SELECT \* FROM "posts" ORDER BY likes_count DESC, created_at DESC, id DESC`,
		},
		{
			name:     "location only",
			filter:   filter.Posts{WithLocation: true},
			expected: `SELECT \* FROM "posts" WHERE location IS NOT NULL ORDER BY`,
		},
		{
			name:     "tag matches one array element",
			filter:   filter.Posts{Tag: "#golden_hour"},
			expected: `(?s)SELECT \* FROM "posts" WHERE EXISTS \(SELECT 1 FROM jsonb_array_elements_text\(.*\) AS t\(tag\) WHERE LOWER\(t\.tag\) = LOWER\(\$1\)\) ORDER BY`,
		},
		{
			name:     "filters combine",
			filter:   filter.Posts{Window: filter.WindowMonth, WithLocation: true, Tag: "pnw", Order: filter.OrderMostCommented},
			expected: `(?s)WHERE created_at >= \$1 AND location IS NOT NULL AND EXISTS \(.*LOWER\(\$2\)\) ORDER BY comments_count DESC`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &sqlLog{}
			s, mock := openMockSQL(t, log)

			mock.ExpectQuery(tt.expected).WillReturnRows(postRow("p1", 2, 1))

			posts, err := s.ListPosts(context.Background(), tt.filter, now)
			require.NoError(t, err)
			require.Len(t, posts, 1)
			assert.Equal(t, "p1", posts[0].ID)
			assert.NotContains(t, log.joined(), "LIKE")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLListPostsPassesBareTag(t *testing.T) {
	s, mock := newMockSQL(t)

	mock.ExpectQuery(`jsonb_array_elements_text`).
		WithArgs("50%_off", filter.DefaultLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	posts, err := s.ListPosts(context.Background(), filter.Posts{Tag: "#50%_off"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAddComment(t *testing.T) {
	s, mock := newMockSQL(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "posts" .*FOR UPDATE`).WillReturnRows(postRow("p1", 0, 2))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO "comments"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE "posts" SET "comments_count"=comments_count \+ 1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := s.AddComment(context.Background(), &models.Comment{ID: "c1", PostID: "p1", AuthorID: "u2", Content: "wow"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.CommentsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAddCommentUnknownAuthor(t *testing.T) {
	s, mock := newMockSQL(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "posts"`).WillReturnRows(postRow("p1", 0, 2))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	p, err := s.AddComment(context.Background(), &models.Comment{ID: "c1", PostID: "p1", AuthorID: "ghost", Content: "wow"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAddFollow(t *testing.T) {
	tests := []struct {
		name        string
		existing    int64
		expectedErr error
	}{
		{name: "new follow bumps both counters", existing: 0},
		{name: "duplicate follow is a conflict", existing: 1, expectedErr: apperr.ErrAlreadyFollowing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockSQL(t)

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 .*FOR UPDATE`).
				WithArgs("a-follower", sqlmock.AnyArg()).
				WillReturnRows(userRow("a-follower", 0, 0))
			mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 .*FOR UPDATE`).
				WithArgs("b-target", sqlmock.AnyArg()).
				WillReturnRows(userRow("b-target", 0, 0))
			mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.existing))
			if tt.expectedErr == nil {
				mock.ExpectExec(`INSERT INTO "follows"`).WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(`UPDATE "users" SET "following_count"=following_count \+ \$1`).
					WithArgs(1, "a-follower").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`UPDATE "users" SET "followers_count"=followers_count \+ \$1`).
					WithArgs(1, "b-target").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			err := s.AddFollow(context.Background(), &models.Follow{ID: "f1", FollowerID: "a-follower", FollowingID: "b-target"})
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLAddFollowLocksInIDOrder(t *testing.T) {
	s, mock := newMockSQL(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WithArgs("a-target", sqlmock.AnyArg()).
		WillReturnRows(userRow("a-target", 0, 0))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WithArgs("z-follower", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := s.AddFollow(context.Background(), &models.Follow{ID: "f1", FollowerID: "z-follower", FollowingID: "a-target"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRemoveFollow(t *testing.T) {
	tests := []struct {
		name        string
		counters    int64
		deleted     int64
		expectedErr error
		kind        apperr.Kind
	}{
		{name: "removes follow and decrements", counters: 1, deleted: 1},
		{name: "absent follow is a conflict", counters: 1, deleted: 0, expectedErr: apperr.ErrNotFollowing},
		{name: "zero counters are an invariant violation", counters: 0, deleted: 1, kind: apperr.KindInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockSQL(t)

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(userRow("a-follower", tt.counters, tt.counters))
			mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(userRow("b-target", tt.counters, tt.counters))
			mock.ExpectExec(`DELETE FROM "follows"`).WillReturnResult(sqlmock.NewResult(0, tt.deleted))
			ok := tt.expectedErr == nil && tt.kind == apperr.KindInternal
			if ok {
				mock.ExpectExec(`UPDATE "users" SET "following_count"`).
					WithArgs(-1, "a-follower").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`UPDATE "users" SET "followers_count"`).
					WithArgs(-1, "b-target").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			err := s.RemoveFollow(context.Background(), "a-follower", "b-target")
			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
			case tt.kind != apperr.KindInternal:
				assert.True(t, apperr.Is(err, tt.kind))
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
