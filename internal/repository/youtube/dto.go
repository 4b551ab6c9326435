package youtube

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/ytproxy/internal/domain"
	"github.com/kailas-cloud/ytproxy/internal/domain/content"
)

// Upstream resource kinds.
const (
	kindChannel  = "youtube#channel"
	kindVideo    = "youtube#video"
	kindPlaylist = "youtube#playlist"
)

var errMissingField = errors.New("missing field")

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type listResponse struct {
	Items    []listItem `json:"items"`
	PageInfo pageInfo   `json:"pageInfo"`
}

type pageInfo struct {
	TotalResults *int `json:"totalResults"`
}

type playlistItemsResponse struct {
	Items         []playlistItem `json:"items"`
	NextPageToken string         `json:"nextPageToken"`
}

type searchItem struct {
	ID      searchID `json:"id"`
	Snippet snippet  `json:"snippet"`
}

// searchID carries the id under a kind-specific field.
type searchID struct {
	Kind       string `json:"kind"`
	ChannelID  string `json:"channelId"`
	PlaylistID string `json:"playlistId"`
	VideoID    string `json:"videoId"`
}

type listItem struct {
	Kind           string          `json:"kind"`
	ID             string          `json:"id"`
	Snippet        snippet         `json:"snippet"`
	Statistics     *statistics     `json:"statistics"`
	ContentDetails *contentDetails `json:"contentDetails"`
}

type playlistItem struct {
	ID      string  `json:"id"`
	Snippet snippet `json:"snippet"`
}

type snippet struct {
	Title        string      `json:"title"`
	ChannelID    *string     `json:"channelId"`
	ChannelTitle *string     `json:"channelTitle"`
	Description  *string     `json:"description"`
	PublishedAt  *string     `json:"publishedAt"`
	Thumbnails   *thumbnails `json:"thumbnails"`
	ResourceID   *resourceID `json:"resourceId"`
}

type thumbnails struct {
	High    *thumbnail `json:"high"`
	Medium  *thumbnail `json:"medium"`
	Default *thumbnail `json:"default"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type resourceID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

type statistics struct {
	VideoCount string `json:"videoCount"`
}

type contentDetails struct {
	RelatedPlaylists struct {
		Uploads string `json:"uploads"`
	} `json:"relatedPlaylists"`
}

// url picks the largest available thumbnail: high, then medium, then default.
func (t *thumbnails) url() string {
	switch {
	case t == nil:
		return ""
	case t.High != nil:
		return t.High.URL
	case t.Medium != nil:
		return t.Medium.URL
	case t.Default != nil:
		return t.Default.URL
	default:
		return ""
	}
}

func (s snippet) requireThumbnails() (string, error) {
	if s.Thumbnails == nil {
		return "", fmt.Errorf("%w: snippet.thumbnails", errMissingField)
	}
	return s.Thumbnails.url(), nil
}

func required(v *string, field string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: snippet.%s", errMissingField, field)
	}
	return *v, nil
}

func kindMismatch(want, got string) error {
	return fmt.Errorf("%w: want %s, got %q", domain.ErrKindMismatch, want, got)
}

func (s snippet) toVideo(id string) (content.Video, error) {
	date, err := required(s.PublishedAt, "publishedAt")
	if err != nil {
		return content.Video{}, err
	}
	thumb, err := s.requireThumbnails()
	if err != nil {
		return content.Video{}, err
	}
	channelID, err := required(s.ChannelID, "channelId")
	if err != nil {
		return content.Video{}, err
	}
	channelTitle, err := required(s.ChannelTitle, "channelTitle")
	if err != nil {
		return content.Video{}, err
	}
	return content.NewVideo(id, s.Title, date, thumb, channelID, channelTitle, s.Description), nil
}

// Playlists may come without thumbnails.
func (s snippet) toPlaylist(id string) (content.Playlist, error) {
	channelID, err := required(s.ChannelID, "channelId")
	if err != nil {
		return content.Playlist{}, err
	}
	channelTitle, err := required(s.ChannelTitle, "channelTitle")
	if err != nil {
		return content.Playlist{}, err
	}
	return content.NewPlaylist(id, s.Title, s.Thumbnails.url(), channelID, channelTitle), nil
}

// Search results never carry statistics, so the video count stays unknown.
func (i searchItem) toChannel() (content.Channel, error) {
	if i.ID.Kind != kindChannel {
		return content.Channel{}, kindMismatch(kindChannel, i.ID.Kind)
	}
	thumb, err := i.Snippet.requireThumbnails()
	if err != nil {
		return content.Channel{}, err
	}
	return content.NewChannel(i.ID.ChannelID, i.Snippet.Title, thumb, nil, ""), nil
}

func (i searchItem) toVideo() (content.Video, error) {
	if i.ID.Kind != kindVideo {
		return content.Video{}, kindMismatch(kindVideo, i.ID.Kind)
	}
	return i.Snippet.toVideo(i.ID.VideoID)
}

func (i searchItem) toPlaylist() (content.Playlist, error) {
	if i.ID.Kind != kindPlaylist {
		return content.Playlist{}, kindMismatch(kindPlaylist, i.ID.Kind)
	}
	return i.Snippet.toPlaylist(i.ID.PlaylistID)
}

// A missing or malformed videoCount counts as zero.
func (i listItem) toChannel() (content.Channel, error) {
	if i.Kind != kindChannel {
		return content.Channel{}, kindMismatch(kindChannel, i.Kind)
	}
	thumb, err := i.Snippet.requireThumbnails()
	if err != nil {
		return content.Channel{}, err
	}

	var count uint64
	if i.Statistics != nil {
		if n, perr := strconv.ParseUint(i.Statistics.VideoCount, 10, 64); perr == nil {
			count = n
		}
	}

	uploads := ""
	if i.ContentDetails != nil {
		uploads = i.ContentDetails.RelatedPlaylists.Uploads
	}
	return content.NewChannel(i.ID, i.Snippet.Title, thumb, &count, uploads), nil
}

func (i listItem) toVideo() (content.Video, error) {
	if i.Kind != kindVideo {
		return content.Video{}, kindMismatch(kindVideo, i.Kind)
	}
	return i.Snippet.toVideo(i.ID)
}

func (i listItem) toPlaylist() (content.Playlist, error) {
	if i.Kind != kindPlaylist {
		return content.Playlist{}, kindMismatch(kindPlaylist, i.Kind)
	}
	return i.Snippet.toPlaylist(i.ID)
}

func (i playlistItem) toVideo() (content.Video, error) {
	rid := i.Snippet.ResourceID
	if rid == nil {
		return content.Video{}, fmt.Errorf("%w: snippet.resourceId", errMissingField)
	}
	if rid.Kind != kindVideo {
		return content.Video{}, kindMismatch(kindVideo, rid.Kind)
	}
	return i.Snippet.toVideo(rid.VideoID)
}
