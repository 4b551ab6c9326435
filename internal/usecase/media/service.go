// Package media composes upstream calls into the operations served to clients.
package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ytproxy/internal/domain"
	"github.com/kailas-cloud/ytproxy/internal/domain/content"
)

// Service is the façade over the upstream source.
type Service struct {
	src Source
}

// New creates a media service.
func New(src Source) *Service {
	return &Service{src: src}
}

// SearchChannels searches channels by free text.
func (s *Service) SearchChannels(ctx context.Context, query string) ([]content.Channel, error) {
	if err := requireParam("q", query); err != nil {
		return nil, err
	}
	return s.src.SearchChannels(ctx, query)
}

// SearchVideos searches videos by free text.
func (s *Service) SearchVideos(ctx context.Context, query string) ([]content.Video, error) {
	if err := requireParam("q", query); err != nil {
		return nil, err
	}
	return s.src.SearchVideos(ctx, query)
}

// SearchPlaylists searches playlists by free text.
func (s *Service) SearchPlaylists(ctx context.Context, query string) ([]content.Playlist, error) {
	if err := requireParam("q", query); err != nil {
		return nil, err
	}
	return s.src.SearchPlaylists(ctx, query)
}

// LatestVideos returns the newest videos published by a channel.
func (s *Service) LatestVideos(ctx context.Context, channelID string) ([]content.Video, error) {
	if err := requireParam("channel id", channelID); err != nil {
		return nil, err
	}
	return s.src.LatestVideos(ctx, channelID)
}

// Channel returns one channel, or nil when it does not exist.
func (s *Service) Channel(ctx context.Context, id string) (*content.Channel, error) {
	if err := requireParam("id", id); err != nil {
		return nil, err
	}
	return s.src.Channel(ctx, id)
}

// Video returns one video, or nil when it does not exist.
func (s *Service) Video(ctx context.Context, id string) (*content.Video, error) {
	if err := requireParam("id", id); err != nil {
		return nil, err
	}
	return s.src.Video(ctx, id)
}

// Playlist returns one playlist, or nil when it does not exist.
func (s *Service) Playlist(ctx context.Context, id string) (*content.Playlist, error) {
	if err := requireParam("id", id); err != nil {
		return nil, err
	}
	return s.src.Playlist(ctx, id)
}

// PlaylistVideosPage returns a single page. next is "" on the last page.
func (s *Service) PlaylistVideosPage(ctx context.Context, playlistID, pageToken string) ([]content.Video, string, error) {
	if err := requireParam("playlist id", playlistID); err != nil {
		return nil, "", err
	}
	return s.src.PlaylistVideosPage(ctx, playlistID, pageToken)
}

// PlaylistVideos walks every page of a playlist. Each page is charged separately;
// the first failing page aborts the walk and nothing collected so far is returned.
func (s *Service) PlaylistVideos(ctx context.Context, playlistID string) ([]content.Video, error) {
	if err := requireParam("playlist id", playlistID); err != nil {
		return nil, err
	}

	var all []content.Video
	seen := make(map[string]struct{})
	token := ""
	for {
		videos, next, err := s.src.PlaylistVideosPage(ctx, playlistID, token)
		if err != nil {
			return nil, fmt.Errorf("playlist %s page %d: %w", playlistID, len(seen)+1, err)
		}
		all = append(all, videos...)

		if next == "" {
			return all, nil
		}
		if _, dup := seen[next]; dup {
			return nil, fmt.Errorf("%w: playlist %s repeats page token %q", domain.ErrUpstreamDecode, playlistID, next)
		}
		seen[next] = struct{}{}
		token = next
	}
}

// ChannelVideos lists every upload of a channel through its uploads playlist.
func (s *Service) ChannelVideos(ctx context.Context, channelID string) ([]content.Video, error) {
	ch, err := s.Channel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	if ch == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrNotFound)
	}
	uploads := ch.UploadPlaylistID()
	if uploads == "" {
		return nil, fmt.Errorf("channel %s has no uploads playlist: %w", channelID, domain.ErrNotFound)
	}
	return s.PlaylistVideos(ctx, uploads)
}

func requireParam(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, name)
	}
	return nil
}
