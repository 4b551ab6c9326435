package content

// Video is an upstream video.
type Video struct {
	id           string
	title        string
	date         string
	thumbnail    string
	channelID    string
	channelTitle string
	description  *string
}

// NewVideo creates a Video. date is the upstream RFC 3339 publish timestamp, kept verbatim.
func NewVideo(id, title, date, thumbnail, channelID, channelTitle string, description *string) Video {
	return Video{
		id:           id,
		title:        title,
		date:         date,
		thumbnail:    thumbnail,
		channelID:    channelID,
		channelTitle: channelTitle,
		description:  description,
	}
}

func (v Video) ID() string           { return v.id }
func (v Video) Title() string        { return v.title }
func (v Video) Date() string         { return v.date }
func (v Video) Thumbnail() string    { return v.thumbnail }
func (v Video) ChannelID() string    { return v.channelID }
func (v Video) ChannelTitle() string { return v.channelTitle }

// Description returns the video description, if the upstream sent one.
func (v Video) Description() (string, bool) {
	if v.description == nil {
		return "", false
	}
	return *v.description, true
}
