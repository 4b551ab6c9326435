package content

// Playlist is an upstream playlist.
type Playlist struct {
	id           string
	title        string
	thumbnail    string
	channelID    string
	channelTitle string
}

// NewPlaylist creates a Playlist.
func NewPlaylist(id, title, thumbnail, channelID, channelTitle string) Playlist {
	return Playlist{
		id:           id,
		title:        title,
		thumbnail:    thumbnail,
		channelID:    channelID,
		channelTitle: channelTitle,
	}
}

func (p Playlist) ID() string           { return p.id }
func (p Playlist) Title() string        { return p.title }
func (p Playlist) Thumbnail() string    { return p.thumbnail }
func (p Playlist) ChannelID() string    { return p.channelID }
func (p Playlist) ChannelTitle() string { return p.channelTitle }
