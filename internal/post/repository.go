package post

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/events"
	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/geocode"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/storage"
	"github.com/Victor-Weng/sunset-spot/internal/store"
	"github.com/Victor-Weng/sunset-spot/internal/weather"
)

var hashtagRe = regexp.MustCompile(`#\w+`)

type WeatherLookup interface {
	Lookup(ctx context.Context, lat, lon float64) (*weather.Report, error)
}

type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*geocode.Place, error)
}

type ImageStore interface {
	Store(ctx context.Context, folder, name, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// Invalidator is implemented by the feed assembler.
type Invalidator interface {
	Invalidate()
}

type Deps struct {
	Store          store.Store
	Weather        WeatherLookup
	Geocoder       Geocoder
	Images         ImageStore
	Events         events.Publisher
	Feed           Invalidator
	GatewayTimeout time.Duration
}

type Repository struct {
	store   store.Store
	weather WeatherLookup
	geo     Geocoder
	images  ImageStore
	events  events.Publisher
	feed    Invalidator
	timeout time.Duration

	now func() time.Time
}

// NewRepository wires the repository. Weather, Geocoder, Images, Events and
// Feed are optional.
func NewRepository(d Deps) *Repository {
	timeout := d.GatewayTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Repository{
		store:   d.Store,
		weather: d.Weather,
		geo:     d.Geocoder,
		images:  d.Images,
		events:  d.Events,
		feed:    d.Feed,
		timeout: timeout,
		now:     time.Now,
	}
}

// SetInvalidator attaches the feed cache once it exists; the assembler reads
// through the repository, so the two are built in sequence.
func (r *Repository) SetInvalidator(inv Invalidator) {
	r.feed = inv
}

type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type CreateInput struct {
	AuthorID string
	Title    string
	Caption  string
	ImageURL string
	VideoURL string
	Tags     []string
	Location *models.Location
	Upload   *Upload
}

func (r *Repository) Create(ctx context.Context, in CreateInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if strings.TrimSpace(in.ImageURL) == "" && in.Upload == nil {
		return nil, apperr.Validation("an image is required")
	}
	if in.AuthorID == "" {
		return nil, apperr.Validation("author_id is required")
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}
	if _, err := r.store.GetUser(ctx, in.AuthorID); err != nil {
		return nil, err
	}

	p := &models.Post{
		ID:       uuid.New().String(),
		AuthorID: in.AuthorID,
		Title:    title,
		Caption:  in.Caption,
		ImageURL: strings.TrimSpace(in.ImageURL),
		VideoURL: strings.TrimSpace(in.VideoURL),
		Tags:     resolveTags(in.Tags, in.Caption),
	}

	var uploaded string
	if in.Upload != nil {
		url, ext, err := r.upload(ctx, p.ID, in.Upload)
		if err != nil {
			return nil, err
		}
		uploaded = url
		if storage.IsVideo(ext) {
			p.VideoURL = url
			if p.ImageURL == "" {
				p.ImageURL = url
			}
		} else {
			p.ImageURL = url
		}
	}

	if in.Location != nil {
		loc := *in.Location
		p.Location = &loc
		r.enrich(ctx, p)
	}

	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	if err := r.store.CreatePost(ctx, p); err != nil {
		if uploaded != "" {
			if delErr := r.images.Delete(ctx, uploaded); delErr != nil {
				logs.LogJSON("WARN", "Orphan upload cleanup failed", map[string]interface{}{
					"error":  delErr.Error(),
					"postID": p.ID,
					"extra":  uploaded,
				})
			}
		}
		return nil, err
	}

	metrics.PostsCreated.Inc()
	if r.feed != nil {
		r.feed.Invalidate()
	}
	events.Emit(ctx, r.events, events.Event{
		Type:      events.PostCreated,
		ActorID:   p.AuthorID,
		SubjectID: p.ID,
		Data:      map[string]any{"tags": p.Tags, "has_location": p.Location != nil},
	})
	logs.LogJSON("INFO", "Post created", map[string]interface{}{
		"userID": p.AuthorID,
		"postID": p.ID,
	})
	return p, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Post, error) {
	return r.store.GetPost(ctx, id)
}

func (r *Repository) List(ctx context.Context, f filter.Posts) ([]models.Post, error) {
	return r.store.ListPosts(ctx, f, r.now())
}

// ListByUsername lists the posts of a profile.
func (r *Repository) ListByUsername(ctx context.Context, username string, f filter.Posts) ([]models.Post, error) {
	u, err := r.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	f.AuthorID = u.ID
	return r.List(ctx, f)
}

func (r *Repository) upload(ctx context.Context, postID string, up *Upload) (url, ext string, err error) {
	ext, err = storage.ValidateUpload(up.Filename, up.Size)
	if err != nil {
		return "", "", err
	}
	if r.images == nil {
		return "", "", apperr.Storage(storage.ErrNotConfigured)
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err = r.images.Store(ctx, "posts", fmt.Sprintf("post_%s%s", postID, ext), contentType, up.Body)
	return url, ext, err
}

// enrich fills the weather snapshot and missing place names. Both lookups run
// once, in parallel, each bounded by the gateway timeout; failures only log.
func (r *Repository) enrich(ctx context.Context, p *models.Post) {
	lat, lon := p.Location.Latitude, p.Location.Longitude

	var (
		wg     sync.WaitGroup
		report *weather.Report
		place  *geocode.Place
	)
	if r.weather != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			res, err := r.weather.Lookup(cctx, lat, lon)
			if err != nil {
				logs.LogJSON("WARN", "Weather lookup failed, post created without weather", map[string]interface{}{
					"error":  err.Error(),
					"postID": p.ID,
				})
				return
			}
			report = res
		}()
	}
	if r.geo != nil && (p.Location.Name == "" || p.Location.Region == "") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			res, err := r.geo.Reverse(cctx, lat, lon)
			if err != nil {
				logs.LogJSON("WARN", "Reverse geocoding failed", map[string]interface{}{
					"error":  err.Error(),
					"postID": p.ID,
				})
				return
			}
			place = res
		}()
	}
	wg.Wait()

	if report != nil {
		p.Weather = &models.Weather{
			Temperature: report.Temperature,
			Condition:   report.Description,
			Humidity:    report.Humidity,
			Icon:        report.Icon,
		}
	}
	if place != nil {
		if p.Location.Name == "" {
			p.Location.Name = place.Name
		}
		if p.Location.Region == "" {
			p.Location.Region = place.Region
		}
	}
}

// finite rejects NaN and ±Inf, which no range check catches and which
// encoding/json cannot write.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateLocation(loc *models.Location) error {
	if loc == nil {
		return nil
	}
	if !finite(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90 {
		return apperr.Validation("latitude %v out of range", loc.Latitude)
	}
	if !finite(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180 {
		return apperr.Validation("longitude %v out of range", loc.Longitude)
	}
	return nil
}

// resolveTags normalises explicit tags or, when none are given, extracts the
// caption's hashtags.
func resolveTags(explicit []string, caption string) []string {
	raw := explicit
	if len(raw) == 0 {
		raw = hashtagRe.FindAllString(caption, -1)
	}
	tags := lo.FilterMap(raw, func(t string, _ int) (string, bool) {
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#"))
		return t, t != ""
	})
	return lo.Uniq(tags)
}
