// Package youtube builds YouTube Data API v3 requests and maps responses to content models.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/ytproxy/internal/domain/content"
	"github.com/kailas-cloud/ytproxy/internal/upstream"
)

// Operation names used in errors, logs and metrics.
const (
	OpSearch        = "search"
	OpSingle        = "single"
	OpPlaylistItems = "playlist_items"
)

const maxResults = "50"

// Costs are the quota units charged per upstream call.
type Costs struct {
	Search       int
	Single       int
	PlaylistPage int
}

// DefaultCosts returns the upstream's published unit costs.
func DefaultCosts() Costs {
	return Costs{Search: 100, Single: 6, PlaylistPage: 3}
}

// Repo implements usecase/media.Source on top of the upstream dispatcher.
type Repo struct {
	d        *upstream.Dispatcher
	costs    Costs
	cacheTTL time.Duration
}

// New creates a YouTube repository.
func New(d *upstream.Dispatcher, costs Costs) *Repo {
	return &Repo{d: d, costs: costs}
}

// WithCacheTTL lets single-item lookups be served from the response cache.
func (r *Repo) WithCacheTTL(ttl time.Duration) *Repo {
	r.cacheTTL = ttl
	return r
}

// SearchChannels searches channels by free text.
func (r *Repo) SearchChannels(ctx context.Context, query string) ([]content.Channel, error) {
	return upstream.Do(ctx, r.d, r.search(content.KindChannel, "q", query), decodeSearch(searchItem.toChannel))
}

// SearchVideos searches videos by free text.
func (r *Repo) SearchVideos(ctx context.Context, query string) ([]content.Video, error) {
	return upstream.Do(ctx, r.d, r.search(content.KindVideo, "q", query), decodeSearch(searchItem.toVideo))
}

// SearchPlaylists searches playlists by free text.
func (r *Repo) SearchPlaylists(ctx context.Context, query string) ([]content.Playlist, error) {
	return upstream.Do(ctx, r.d, r.search(content.KindPlaylist, "q", query), decodeSearch(searchItem.toPlaylist))
}

// LatestVideos returns the most recent videos of a channel, newest first.
func (r *Repo) LatestVideos(ctx context.Context, channelID string) ([]content.Video, error) {
	return upstream.Do(ctx, r.d, r.search(content.KindVideo, "channelId", channelID), decodeSearch(searchItem.toVideo))
}

// Channel fetches one channel with statistics and the uploads playlist. nil means absent.
func (r *Repo) Channel(ctx context.Context, id string) (*content.Channel, error) {
	return upstream.Do(ctx, r.d, r.single("channels", "snippet,id,statistics,contentDetails", id), decodeSingle(listItem.toChannel))
}

// Video fetches one video. nil means absent.
func (r *Repo) Video(ctx context.Context, id string) (*content.Video, error) {
	return upstream.Do(ctx, r.d, r.single("videos", "snippet,id", id), decodeSingle(listItem.toVideo))
}

// Playlist fetches one playlist. nil means absent.
func (r *Repo) Playlist(ctx context.Context, id string) (*content.Playlist, error) {
	return upstream.Do(ctx, r.d, r.single("playlists", "snippet,id", id), decodeSingle(listItem.toPlaylist))
}

type page struct {
	videos []content.Video
	next   string
}

// PlaylistVideosPage returns one page of playlist videos and the token of the next page ("" on the last one).
func (r *Repo) PlaylistVideosPage(ctx context.Context, playlistID, pageToken string) ([]content.Video, string, error) {
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("maxResults", maxResults)
	params.Set("playlistId", playlistID)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	p, err := upstream.Do[page](ctx, r.d, upstream.Request{
		Name:   OpPlaylistItems,
		Cost:   r.costs.PlaylistPage,
		Path:   "playlistItems",
		Params: params,
	}, decodePlaylistPage)
	if err != nil {
		return nil, "", err
	}
	return p.videos, p.next, nil
}

func (r *Repo) search(kind content.Kind, filter, value string) upstream.Request {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("maxResults", maxResults)
	params.Set("safeSearch", "none")
	params.Set("order", "date")
	params.Set(filter, value)
	params.Set("type", string(kind))
	if kind == content.KindVideo {
		params.Set("videoDimension", "2d")
	}

	return upstream.Request{
		Name:   OpSearch,
		Cost:   r.costs.Search,
		Path:   "search",
		Params: params,
	}
}

func (r *Repo) single(path, part, id string) upstream.Request {
	params := url.Values{}
	params.Set("part", part)
	params.Set("id", id)

	return upstream.Request{
		Name:     OpSingle,
		Cost:     r.costs.Single,
		Path:     path,
		Params:   params,
		CacheTTL: r.cacheTTL,
	}
}

func decodeSearch[T any](conv func(searchItem) (T, error)) upstream.Decoder[[]T] {
	return func(body []byte) ([]T, error) {
		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal search response: %w", err)
		}
		return convertAll(resp.Items, conv)
	}
}

// decodeSingle yields nil when the upstream returns no items.
func decodeSingle[T any](conv func(listItem) (T, error)) upstream.Decoder[*T] {
	return func(body []byte) (*T, error) {
		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal list response: %w", err)
		}
		if len(resp.Items) == 0 {
			return nil, nil
		}
		v, err := conv(resp.Items[0])
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", resp.Items[0].ID, err)
		}
		return &v, nil
	}
}

func decodePlaylistPage(body []byte) (page, error) {
	var resp playlistItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return page{}, fmt.Errorf("unmarshal playlist items: %w", err)
	}
	videos, err := convertAll(resp.Items, playlistItem.toVideo)
	if err != nil {
		return page{}, err
	}
	return page{videos: videos, next: resp.NextPageToken}, nil
}

func convertAll[I, T any](items []I, conv func(I) (T, error)) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		v, err := conv(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
