package content

// Channel is an upstream channel (immutable value object).
type Channel struct {
	id               string
	title            string
	thumbnail        string
	videoCount       *uint64
	uploadPlaylistID string
}

// NewChannel creates a Channel. videoCount is nil when the source does not carry statistics.
func NewChannel(id, title, thumbnail string, videoCount *uint64, uploadPlaylistID string) Channel {
	return Channel{
		id:               id,
		title:            title,
		thumbnail:        thumbnail,
		videoCount:       videoCount,
		uploadPlaylistID: uploadPlaylistID,
	}
}

// ID returns the channel ID.
func (c Channel) ID() string { return c.id }

// Title returns the channel title.
func (c Channel) Title() string { return c.title }

// Thumbnail returns the best available thumbnail URL.
func (c Channel) Thumbnail() string { return c.thumbnail }

// VideoCount returns the published video count, if known.
func (c Channel) VideoCount() (uint64, bool) {
	if c.videoCount == nil {
		return 0, false
	}
	return *c.videoCount, true
}

// UploadPlaylistID returns the ID of the playlist holding every upload ("" if unknown).
func (c Channel) UploadPlaylistID() string { return c.uploadPlaylistID }
