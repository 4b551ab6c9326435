package content

import (
	"fmt"

	"github.com/kailas-cloud/ytproxy/internal/domain"
)

// Kind is the type of upstream content.
type Kind string

// Content kinds.
const (
	KindChannel  Kind = "channel"
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == KindChannel || k == KindVideo || k == KindPlaylist
}

// ParseKind converts a route or query value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidKind, s)
	}
	return k, nil
}
