package post

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/events"
	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/geocode"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/store"
	"github.com/Victor-Weng/sunset-spot/internal/weather"
)

type stubWeather struct {
	report *weather.Report
	block  bool
	calls  int
	mu     sync.Mutex
}

func (s *stubWeather) Lookup(ctx context.Context, _, _ float64) (*weather.Report, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, apperr.Upstream("weather", ctx.Err())
	}
	return s.report, nil
}

type stubGeocoder struct {
	place *geocode.Place
	err   error
}

func (s stubGeocoder) Reverse(context.Context, float64, float64) (*geocode.Place, error) {
	return s.place, s.err
}

type memImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    error
}

func (m *memImages) Store(_ context.Context, folder, name, _ string, body io.Reader) (string, error) {
	if m.fail != nil {
		return "", apperr.Storage(m.fail)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "https://img.test/" + folder + "/" + name
	m.objects[url] = b
	return url, nil
}

func (m *memImages) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	return nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

type fixture struct {
	store   *store.Memory
	repo    *Repository
	weather *stubWeather
	images  *memImages
	inv     *countingInvalidator
	events  *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemory(),
		weather: &stubWeather{report: &weather.Report{Temperature: 12.5, Description: "few clouds", Icon: "02d"}},
		images:  &memImages{objects: map[string][]byte{}},
		inv:     &countingInvalidator{},
		events:  events.NewRecorder(16),
	}
	f.repo = NewRepository(Deps{
		Store:          f.store,
		Weather:        f.weather,
		Geocoder:       stubGeocoder{place: &geocode.Place{Name: "Mount Baker", Region: "Washington"}},
		Images:         f.images,
		Events:         f.events,
		Feed:           f.inv,
		GatewayTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, f.store.CreateUser(context.Background(), &models.User{ID: "u1", Username: "sunset_lover"}))
	return f
}

func TestCreateDerivesTagsFromCaption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.repo.Create(ctx, CreateInput{
		AuthorID: "u1",
		Title:    "Sunrise",
		Caption:  "Golden hour #Sunrise over the #PNW #Sunrise",
		ImageURL: "https://img.test/sunrise.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sunrise", "PNW"}, p.Tags)
	assert.Zero(t, p.LikesCount)
	assert.Zero(t, p.CommentsCount)
	assert.False(t, p.CreatedAt.IsZero())

	u, _ := f.store.GetUser(ctx, "u1")
	assert.EqualValues(t, 1, u.PostsCount)
	assert.Equal(t, 1, f.inv.n)

	recorded := f.events.Drain()
	require.Len(t, recorded, 1)
	assert.Equal(t, events.PostCreated, recorded[0].Type)
	assert.Equal(t, p.ID, recorded[0].SubjectID)
}

func TestCreateNormalisesExplicitTags(t *testing.T) {
	f := newFixture(t)

	p, err := f.repo.Create(context.Background(), CreateInput{
		AuthorID: "u1",
		Title:    "Lake",
		Caption:  "#ignored",
		ImageURL: "https://img.test/lake.jpg",
		Tags:     []string{"#AlpineLake", " Reflection ", "", "AlpineLake"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AlpineLake", "Reflection"}, p.Tags)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
		kind apperr.Kind
	}{
		{"missing image", CreateInput{AuthorID: "u1", Title: "No image"}, apperr.KindValidation},
		{"blank title", CreateInput{AuthorID: "u1", Title: "  ", ImageURL: "x.jpg"}, apperr.KindValidation},
		{"bad latitude", CreateInput{AuthorID: "u1", Title: "t", ImageURL: "x.jpg", Location: &models.Location{Latitude: 91}}, apperr.KindValidation},
		{"NaN latitude", CreateInput{AuthorID: "u1", Title: "t", ImageURL: "x.jpg", Location: &models.Location{Latitude: math.NaN()}}, apperr.KindValidation},
		{"infinite longitude", CreateInput{AuthorID: "u1", Title: "t", ImageURL: "x.jpg", Location: &models.Location{Longitude: math.Inf(-1)}}, apperr.KindValidation},
		{"unknown author", CreateInput{AuthorID: "ghost", Title: "t", ImageURL: "x.jpg"}, apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.repo.Create(ctx, tt.in)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)

			posts, err := f.store.ListPosts(ctx, filter.Posts{}, time.Now())
			require.NoError(t, err)
			assert.Empty(t, posts)
			assert.Zero(t, f.inv.n)
		})
	}
}

func TestCreateCapturesWeatherAndPlace(t *testing.T) {
	f := newFixture(t)

	p, err := f.repo.Create(context.Background(), CreateInput{
		AuthorID: "u1",
		Title:    "Sunrise",
		ImageURL: "https://img.test/sunrise.jpg",
		Location: &models.Location{Latitude: 48.77, Longitude: -121.81},
	})
	require.NoError(t, err)
	require.NotNil(t, p.Weather)
	assert.Equal(t, 12.5, p.Weather.Temperature)
	assert.Equal(t, "few clouds", p.Weather.Condition)
	assert.Equal(t, "Mount Baker", p.Location.Name)
	assert.Equal(t, "Washington", p.Location.Region)
	assert.Equal(t, 1, f.weather.calls)
}

func TestCreateSurvivesWeatherTimeout(t *testing.T) {
	f := newFixture(t)
	f.weather.block = true
	f.repo.geo = stubGeocoder{err: errors.New("nominatim down")}

	start := time.Now()
	p, err := f.repo.Create(context.Background(), CreateInput{
		AuthorID: "u1",
		Title:    "Sunrise",
		ImageURL: "https://img.test/sunrise.jpg",
		Location: &models.Location{Latitude: 48.77, Longitude: -121.81, Name: "Artist Point"},
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, p.Weather)
	assert.Equal(t, "Artist Point", p.Location.Name)

	stored, err := f.store.GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Weather)
}

func TestCreateWithUpload(t *testing.T) {
	f := newFixture(t)

	p, err := f.repo.Create(context.Background(), CreateInput{
		AuthorID: "u1",
		Title:    "Falls",
		Upload: &Upload{
			Filename:    "falls.JPG",
			ContentType: "image/jpeg",
			Size:        4,
			Body:        strings.NewReader("jpeg"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/posts/post_"+p.ID+".jpg", p.ImageURL)
	assert.Equal(t, []byte("jpeg"), f.images.objects[p.ImageURL])
}

func TestCreateUploadFailures(t *testing.T) {
	tests := []struct {
		name   string
		images ImageStore
		upload Upload
		kind   apperr.Kind
	}{
		{"storage down", &memImages{objects: map[string][]byte{}, fail: errors.New("s3 unavailable")},
			Upload{Filename: "a.png", Size: 3, Body: strings.NewReader("png")}, apperr.KindStorage},
		{"storage not configured", nil,
			Upload{Filename: "a.png", Size: 3, Body: strings.NewReader("png")}, apperr.KindStorage},
		{"bad extension", &memImages{objects: map[string][]byte{}},
			Upload{Filename: "a.exe", Size: 3, Body: strings.NewReader("exe")}, apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.images = tt.images
			up := tt.upload

			_, err := f.repo.Create(context.Background(), CreateInput{AuthorID: "u1", Title: "t", Upload: &up})
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)

			posts, _ := f.store.ListPosts(context.Background(), filter.Posts{}, time.Now())
			assert.Empty(t, posts)
			u, _ := f.store.GetUser(context.Background(), "u1")
			assert.Zero(t, u.PostsCount)
		})
	}
}

func TestListByUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateUser(ctx, &models.User{ID: "u2", Username: "other"}))

	_, err := f.repo.Create(ctx, CreateInput{AuthorID: "u1", Title: "mine", ImageURL: "a.jpg"})
	require.NoError(t, err)
	_, err = f.repo.Create(ctx, CreateInput{AuthorID: "u2", Title: "theirs", ImageURL: "b.jpg"})
	require.NoError(t, err)

	posts, err := f.repo.ListByUsername(ctx, "Sunset_Lover", filter.Posts{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "mine", posts[0].Title)

	_, err = f.repo.ListByUsername(ctx, "nobody", filter.Posts{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
