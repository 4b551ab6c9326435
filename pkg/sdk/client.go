package ytproxy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/ytproxy/internal/db/redis"
	"github.com/kailas-cloud/ytproxy/internal/domain/content"
	"github.com/kailas-cloud/ytproxy/internal/keypool"
	"github.com/kailas-cloud/ytproxy/internal/repository/respcache"
	"github.com/kailas-cloud/ytproxy/internal/repository/youtube"
	"github.com/kailas-cloud/ytproxy/internal/scheduler"
	"github.com/kailas-cloud/ytproxy/internal/upstream"
	healthuc "github.com/kailas-cloud/ytproxy/internal/usecase/health"
	"github.com/kailas-cloud/ytproxy/internal/usecase/media"
	usageuc "github.com/kailas-cloud/ytproxy/internal/usecase/usage"
)

const (
	defaultBaseURL          = "https://www.googleapis.com/youtube/v3"
	defaultQuota            = 10000
	defaultTimeout          = 120 * time.Second
	defaultResetHour        = 9
	defaultResetMinute      = 1
	defaultReadinessTimeout = 10 * time.Second
)

// mediaUseCase is the internal interface for upstream lookups.
type mediaUseCase interface {
	SearchChannels(ctx context.Context, query string) ([]content.Channel, error)
	SearchVideos(ctx context.Context, query string) ([]content.Video, error)
	SearchPlaylists(ctx context.Context, query string) ([]content.Playlist, error)
	LatestVideos(ctx context.Context, channelID string) ([]content.Video, error)
	Channel(ctx context.Context, id string) (*content.Channel, error)
	Video(ctx context.Context, id string) (*content.Video, error)
	Playlist(ctx context.Context, id string) (*content.Playlist, error)
	PlaylistVideosPage(ctx context.Context, playlistID, pageToken string) ([]content.Video, string, error)
	PlaylistVideos(ctx context.Context, playlistID string) ([]content.Video, error)
	ChannelVideos(ctx context.Context, channelID string) ([]content.Video, error)
}

// Client is the ytproxy SDK entry point.
type Client struct {
	media     mediaUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer

	store     *dbRedis.Store
	stopReset context.CancelFunc
	resetDone sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Client and starts the daily budget reset.
// The provided context is used for the cache readiness check only.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		quota:       defaultQuota,
		baseURL:     defaultBaseURL,
		timeout:     defaultTimeout,
		resetHour:   defaultResetHour,
		resetMinute: defaultResetMinute,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.keys) == 0 {
		return nil, errors.New("ytproxy: at least one API key required (use WithKeys)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store *dbRedis.Store
	if len(cfg.cacheAddrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("ytproxy: create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("ytproxy: cache not ready: %w", err)
		}
	}

	c, err := wireClient(cfg, store, obs)
	if err != nil && store != nil {
		store.Close()
	}
	return c, err
}

func wireClient(cfg *clientConfig, store *dbRedis.Store, obs *observer) (*Client, error) {
	log := cfg.zapLogger
	if log == nil {
		log = zap.NewNop()
	}

	pool, err := keypool.New(cfg.keys, cfg.quota, log.Named("keypool"))
	if err != nil {
		return nil, fmt.Errorf("ytproxy: %w", err)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc, err = upstream.NewHTTPClient(upstream.ClientConfig{
			ConnectTimeout: cfg.timeout,
			Timeout:        cfg.timeout,
			ProxyURL:       cfg.proxyURL,
			NoProxy:        cfg.noProxy,
		})
		if err != nil {
			return nil, fmt.Errorf("ytproxy: %w", err)
		}
	}

	dispatcher := upstream.NewDispatcher(pool, hc, cfg.baseURL, log.Named("upstream")).
		WithQuotaExceededStatuses(cfg.statuses...)

	reset, err := scheduler.New(pool, cfg.resetHour, cfg.resetMinute, log.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("ytproxy: %w", err)
	}

	repo := youtube.New(dispatcher, mergeCosts(cfg.costs))
	healthSvc := healthuc.New(pool, nil)
	if store != nil {
		dispatcher.WithCache(respcache.New(store, nil, log.Named("respcache")))
		repo.WithCacheTTL(cfg.cacheTTL)
		healthSvc = healthuc.New(pool, store)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		media:     media.New(repo),
		healthSvc: healthSvc,
		usageSvc:  usageuc.New(pool, reset),
		obs:       obs,
		store:     store,
		stopReset: cancel,
	}
	c.resetDone.Add(1)
	go func() {
		defer c.resetDone.Done()
		reset.Run(runCtx)
	}()
	return c, nil
}

func mergeCosts(c Costs) youtube.Costs {
	costs := youtube.DefaultCosts()
	if c.Search > 0 {
		costs.Search = c.Search
	}
	if c.Single > 0 {
		costs.Single = c.Single
	}
	if c.PlaylistPage > 0 {
		costs.PlaylistPage = c.PlaylistPage
	}
	return costs
}

// Close stops the daily reset and releases the cache connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.stopReset != nil {
			c.stopReset()
			c.resetDone.Wait()
		}
		if c.store != nil {
			c.store.Close()
		}
	})
}

// SearchChannels returns the channels matching query.
func (c *Client) SearchChannels(ctx context.Context, query string) (_ []Channel, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_channels", start, err) }()

	items, err := c.media.SearchChannels(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search channels: %w", err)
	}
	return mapAll(items, channelFromDomain), nil
}

// SearchVideos returns the videos matching query, newest first.
func (c *Client) SearchVideos(ctx context.Context, query string) (_ []Video, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_videos", start, err) }()

	items, err := c.media.SearchVideos(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}
	return mapAll(items, videoFromDomain), nil
}

// SearchPlaylists returns the playlists matching query.
func (c *Client) SearchPlaylists(ctx context.Context, query string) (_ []Playlist, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_playlists", start, err) }()

	items, err := c.media.SearchPlaylists(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search playlists: %w", err)
	}
	return mapAll(items, playlistFromDomain), nil
}

// LatestVideos returns the most recent uploads of a channel (one search page).
func (c *Client) LatestVideos(ctx context.Context, channelID string) (_ []Video, err error) {
	start := time.Now()
	defer func() { c.obs.observe("latest_videos", start, err) }()

	items, err := c.media.LatestVideos(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("latest videos: %w", err)
	}
	return mapAll(items, videoFromDomain), nil
}

// Channel looks up one channel. Returns ErrNotFound when it does not exist.
func (c *Client) Channel(ctx context.Context, id string) (_ Channel, err error) {
	start := time.Now()
	defer func() { c.obs.observe("channel", start, err) }()

	ch, err := c.media.Channel(ctx, id)
	if err != nil {
		return Channel{}, fmt.Errorf("channel: %w", err)
	}
	if ch == nil {
		return Channel{}, fmt.Errorf("channel %q: %w", id, ErrNotFound)
	}
	return channelFromDomain(*ch), nil
}

// Video looks up one video. Returns ErrNotFound when it does not exist.
func (c *Client) Video(ctx context.Context, id string) (_ Video, err error) {
	start := time.Now()
	defer func() { c.obs.observe("video", start, err) }()

	v, err := c.media.Video(ctx, id)
	if err != nil {
		return Video{}, fmt.Errorf("video: %w", err)
	}
	if v == nil {
		return Video{}, fmt.Errorf("video %q: %w", id, ErrNotFound)
	}
	return videoFromDomain(*v), nil
}

// Playlist looks up one playlist. Returns ErrNotFound when it does not exist.
func (c *Client) Playlist(ctx context.Context, id string) (_ Playlist, err error) {
	start := time.Now()
	defer func() { c.obs.observe("playlist", start, err) }()

	p, err := c.media.Playlist(ctx, id)
	if err != nil {
		return Playlist{}, fmt.Errorf("playlist: %w", err)
	}
	if p == nil {
		return Playlist{}, fmt.Errorf("playlist %q: %w", id, ErrNotFound)
	}
	return playlistFromDomain(*p), nil
}

// PlaylistVideosPage returns one page of a playlist and the token of the next
// page ("" on the last one).
func (c *Client) PlaylistVideosPage(ctx context.Context, playlistID, pageToken string) (_ []Video, _ string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("playlist_videos_page", start, err) }()

	items, next, err := c.media.PlaylistVideosPage(ctx, playlistID, pageToken)
	if err != nil {
		return nil, "", fmt.Errorf("playlist videos page: %w", err)
	}
	return mapAll(items, videoFromDomain), next, nil
}

// PlaylistVideos walks every page of a playlist. A failing page fails the whole call.
func (c *Client) PlaylistVideos(ctx context.Context, playlistID string) (_ []Video, err error) {
	start := time.Now()
	defer func() { c.obs.observe("playlist_videos", start, err) }()

	items, err := c.media.PlaylistVideos(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("playlist videos: %w", err)
	}
	return mapAll(items, videoFromDomain), nil
}

// ChannelVideos returns every upload of a channel via its uploads playlist.
func (c *Client) ChannelVideos(ctx context.Context, channelID string) (_ []Video, err error) {
	start := time.Now()
	defer func() { c.obs.observe("channel_videos", start, err) }()

	items, err := c.media.ChannelVideos(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("channel videos: %w", err)
	}
	return mapAll(items, videoFromDomain), nil
}
