package ytproxy

import "github.com/kailas-cloud/ytproxy/internal/domain/content"

// Channel is a YouTube channel.
type Channel struct {
	ID        string
	Title     string
	Thumbnail string
	// VideoCount and UploadPlaylistID are only set by Client.Channel; search results omit them.
	VideoCount       *uint64
	UploadPlaylistID string
}

// Video is a YouTube video. Description is nil when the upstream did not return one.
type Video struct {
	ID           string
	Title        string
	Date         string
	Thumbnail    string
	ChannelID    string
	ChannelTitle string
	Description  *string
}

// Playlist is a YouTube playlist.
type Playlist struct {
	ID           string
	Title        string
	Thumbnail    string
	ChannelID    string
	ChannelTitle string
}

func channelFromDomain(c content.Channel) Channel {
	out := Channel{
		ID:               c.ID(),
		Title:            c.Title(),
		Thumbnail:        c.Thumbnail(),
		UploadPlaylistID: c.UploadPlaylistID(),
	}
	if n, ok := c.VideoCount(); ok {
		out.VideoCount = &n
	}
	return out
}

func videoFromDomain(v content.Video) Video {
	out := Video{
		ID:           v.ID(),
		Title:        v.Title(),
		Date:         v.Date(),
		Thumbnail:    v.Thumbnail(),
		ChannelID:    v.ChannelID(),
		ChannelTitle: v.ChannelTitle(),
	}
	if d, ok := v.Description(); ok {
		out.Description = &d
	}
	return out
}

func playlistFromDomain(p content.Playlist) Playlist {
	return Playlist{
		ID:           p.ID(),
		Title:        p.Title(),
		Thumbnail:    p.Thumbnail(),
		ChannelID:    p.ChannelID(),
		ChannelTitle: p.ChannelTitle(),
	}
}

func mapAll[I, O any](in []I, conv func(I) O) []O {
	out := make([]O, len(in))
	for i, v := range in {
		out[i] = conv(v)
	}
	return out
}
