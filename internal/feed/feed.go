// Package feed assembles post views: posts joined with their author summary
// and the viewer's like state.
package feed

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/Victor-Weng/sunset-spot/internal/filter"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
	"github.com/Victor-Weng/sunset-spot/internal/models"
	"github.com/Victor-Weng/sunset-spot/internal/store"
)

type PostView struct {
	models.Post
	Author  models.AuthorSummary `json:"author"`
	IsLiked bool                 `json:"is_liked"`
}

func (v PostView) Clone() PostView {
	v.Post = v.Post.Clone()
	return v
}

// PostSource is the read side of the post repository.
type PostSource interface {
	Get(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, f filter.Posts) ([]models.Post, error)
}

type Assembler struct {
	posts PostSource
	store store.Store
	cache Cache
	gen   atomic.Uint64
}

// NewAssembler builds an assembler. cache may be nil to disable caching.
func NewAssembler(posts PostSource, s store.Store, cache Cache) *Assembler {
	a := &Assembler{posts: posts, store: s, cache: cache}
	// Start from the clock so a shared cache never serves pages written
	// by an earlier process under the same generation.
	a.gen.Store(uint64(time.Now().UnixNano()))
	return a
}

// Invalidate makes every page cached so far unreachable. Mutations call it
// after committing and before returning.
func (a *Assembler) Invalidate() {
	a.gen.Add(1)
	if a.cache != nil {
		a.cache.Purge(context.Background())
	}
}

func (a *Assembler) Feed(ctx context.Context, f filter.Posts, viewerID string) ([]PostView, error) {
	f = f.Normalize()
	key := strconv.FormatUint(a.gen.Load(), 10) + ":" + f.Key()

	var views []PostView
	if cached, ok := a.cacheGet(ctx, key); ok {
		metrics.FeedCache.WithLabelValues("hit").Inc()
		views = lo.Map(cached, func(v PostView, _ int) PostView { return v.Clone() })
	} else {
		metrics.FeedCache.WithLabelValues("miss").Inc()
		posts, err := a.posts.List(ctx, f)
		if err != nil {
			return nil, err
		}
		views, err = a.withAuthors(ctx, posts)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			a.cache.Set(ctx, key, lo.Map(views, func(v PostView, _ int) PostView { return v.Clone() }))
		}
	}

	if err := a.markLiked(ctx, views, viewerID); err != nil {
		return nil, err
	}
	return views, nil
}

// Map is Feed restricted to posts that carry a location.
func (a *Assembler) Map(ctx context.Context, f filter.Posts, viewerID string) ([]PostView, error) {
	f.WithLocation = true
	return a.Feed(ctx, f, viewerID)
}

func (a *Assembler) Post(ctx context.Context, postID, viewerID string) (*PostView, error) {
	p, err := a.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	views, err := a.Assemble(ctx, []models.Post{*p}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Assemble turns already loaded posts into views for viewerID without
// touching the cache.
func (a *Assembler) Assemble(ctx context.Context, posts []models.Post, viewerID string) ([]PostView, error) {
	views, err := a.withAuthors(ctx, posts)
	if err != nil {
		return nil, err
	}
	if err := a.markLiked(ctx, views, viewerID); err != nil {
		return nil, err
	}
	return views, nil
}

func (a *Assembler) cacheGet(ctx context.Context, key string) ([]PostView, bool) {
	if a.cache == nil {
		return nil, false
	}
	return a.cache.Get(ctx, key)
}

func (a *Assembler) withAuthors(ctx context.Context, posts []models.Post) ([]PostView, error) {
	ids := lo.Uniq(lo.Map(posts, func(p models.Post, _ int) string { return p.AuthorID }))
	authors, err := a.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = PostView{Post: p, Author: authors[p.AuthorID].Summary()}
		if views[i].Author.ID == "" {
			views[i].Author.ID = p.AuthorID
		}
	}
	return views, nil
}

func (a *Assembler) markLiked(ctx context.Context, views []PostView, viewerID string) error {
	if viewerID == "" || len(views) == 0 {
		return nil
	}
	ids := lo.Map(views, func(v PostView, _ int) string { return v.ID })
	liked, err := a.store.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range views {
		views[i].IsLiked = liked[views[i].ID]
	}
	return nil
}
