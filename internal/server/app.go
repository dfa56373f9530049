// Package server wires the services from configuration and exposes them
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Victor-Weng/sunset-spot/internal/config"
	"github.com/Victor-Weng/sunset-spot/internal/database"
	"github.com/Victor-Weng/sunset-spot/internal/events"
	"github.com/Victor-Weng/sunset-spot/internal/feed"
	"github.com/Victor-Weng/sunset-spot/internal/follow"
	"github.com/Victor-Weng/sunset-spot/internal/geocode"
	"github.com/Victor-Weng/sunset-spot/internal/interaction"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/post"
	"github.com/Victor-Weng/sunset-spot/internal/seed"
	"github.com/Victor-Weng/sunset-spot/internal/storage"
	"github.com/Victor-Weng/sunset-spot/internal/store"
	"github.com/Victor-Weng/sunset-spot/internal/user"
	"github.com/Victor-Weng/sunset-spot/internal/weather"
)

type App struct {
	Config       *config.Config
	Store        store.Store
	Feed         *feed.Assembler
	Posts        *post.Repository
	Interactions *interaction.Service
	Follows      *follow.Service
	Users        *user.Service
	Weather      *weather.Client

	closers []func() error
}

// OpenStore returns the Postgres store when DATABASE_URL is set and the
// in-memory store otherwise.
func OpenStore(cfg *config.Config) (store.Store, error) {
	if cfg.DBUrl == "" {
		logs.LogJSON("WARN", "DATABASE_URL not set, using in-memory store", nil)
		return store.NewMemory(), nil
	}
	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return store.NewSQL(db), nil
}

// NewApp builds every service on top of st. Optional collaborators (S3,
// Redis, Kafka) are only created when configured.
func NewApp(ctx context.Context, cfg *config.Config, st store.Store) (*App, error) {
	app := &App{Config: cfg, Store: st}
	app.closers = append(app.closers, st.Close)

	app.Weather = weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.GatewayTimeout)
	deps := post.Deps{
		Store:          st,
		Geocoder:       geocode.NewClient(cfg.GeocodeBaseURL, cfg.GeocodeAgent, cfg.GatewayTimeout),
		GatewayTimeout: cfg.GatewayTimeout,
	}
	if cfg.WeatherEnabled() {
		deps.Weather = app.Weather
	} else {
		logs.LogJSON("WARN", "OPENWEATHER_API_KEY not set, posts are created without weather", nil)
	}

	if cfg.StorageEnabled() {
		s3Store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		deps.Images = s3Store
	}

	pub := newPublisher(cfg)
	app.closers = append(app.closers, pub.Close)
	deps.Events = pub

	app.Posts = post.NewRepository(deps)
	app.Feed = feed.NewAssembler(app.Posts, st, newCache(ctx, cfg, app))
	app.Posts.SetInvalidator(app.Feed)

	app.Interactions = interaction.NewService(st, app.Feed, pub)
	app.Follows = follow.NewService(st, app.Feed, pub)
	app.Users = user.NewService(st, app.Feed)

	if cfg.SeedDemo {
		if err := seed.Demo(ctx, st); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		app.Feed.Invalidate()
	}
	return app, nil
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	logs.LogJSON("INFO", "Publishing events to Kafka", map[string]interface{}{
		"extra": fmt.Sprintf("topic %s on %v", cfg.KafkaTopic, cfg.KafkaBrokers),
	})
	return events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// newCache picks Redis when it answers a ping and the in-process LRU
// otherwise.
func newCache(ctx context.Context, cfg *config.Config, app *App) feed.Cache {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.GatewayTimeout)
		defer cancel()
		err := rdb.Ping(pingCtx).Err()
		if err == nil {
			app.closers = append(app.closers, rdb.Close)
			return feed.NewRedis(rdb, cfg.FeedCacheTTL)
		}
		_ = rdb.Close()
		logs.LogJSON("WARN", "Redis unavailable, using in-process feed cache", map[string]interface{}{
			"error": err.Error(),
			"extra": cfg.RedisAddr,
		})
	}
	return feed.NewLRU(cfg.FeedCacheSize, cfg.FeedCacheTTL)
}

// Close releases collaborators in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
