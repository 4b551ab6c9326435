package media

import (
	"context"

	"github.com/kailas-cloud/ytproxy/internal/domain/content"
)

// Source fetches content from the upstream. Single-item lookups return nil when the item does not exist.
type Source interface {
	SearchChannels(ctx context.Context, query string) ([]content.Channel, error)
	SearchVideos(ctx context.Context, query string) ([]content.Video, error)
	SearchPlaylists(ctx context.Context, query string) ([]content.Playlist, error)
	LatestVideos(ctx context.Context, channelID string) ([]content.Video, error)
	Channel(ctx context.Context, id string) (*content.Channel, error)
	Video(ctx context.Context, id string) (*content.Video, error)
	Playlist(ctx context.Context, id string) (*content.Playlist, error)
	PlaylistVideosPage(ctx context.Context, playlistID, pageToken string) ([]content.Video, string, error)
}
