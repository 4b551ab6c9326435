package content

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/ytproxy/internal/domain"
)

func TestIsValid(t *testing.T) {
	valid := []Kind{KindChannel, KindVideo, KindPlaylist}
	for _, k := range valid {
		if !k.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", k)
		}
	}

	invalid := []Kind{"", "Channel", "videos", "short"}
	for _, k := range invalid {
		if k.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", k)
		}
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("playlist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != KindPlaylist {
		t.Errorf("ParseKind(playlist) = %q", k)
	}

	_, err = ParseKind("music")
	if !errors.Is(err, domain.ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
}

func TestChannel_OptionalFields(t *testing.T) {
	c := NewChannel("UC1", "Title", "http://thumb", nil, "")
	if _, ok := c.VideoCount(); ok {
		t.Error("expected no video count")
	}

	n := uint64(42)
	c = NewChannel("UC1", "Title", "http://thumb", &n, "UU1")
	got, ok := c.VideoCount()
	if !ok || got != 42 {
		t.Errorf("VideoCount() = %d, %v", got, ok)
	}
	if c.UploadPlaylistID() != "UU1" {
		t.Errorf("UploadPlaylistID() = %q", c.UploadPlaylistID())
	}
}

func TestVideo_Description(t *testing.T) {
	v := NewVideo("v1", "T", "2020-01-01T00:00:00Z", "", "c1", "C", nil)
	if _, ok := v.Description(); ok {
		t.Error("expected no description")
	}

	d := "about"
	v = NewVideo("v1", "T", "2020-01-01T00:00:00Z", "", "c1", "C", &d)
	if got, ok := v.Description(); !ok || got != "about" {
		t.Errorf("Description() = %q, %v", got, ok)
	}
}
