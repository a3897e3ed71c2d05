package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/chinmina/spotify-bridge/internal/apierror"
)

func (c *Client) GetTrack(ctx context.Context, id string) (*Track, error) {
	return getResource[Track](ctx, c, "spotify.GetTrack", KindTrack, id)
}

func (c *Client) GetArtist(ctx context.Context, id string) (*Artist, error) {
	return getResource[Artist](ctx, c, "spotify.GetArtist", KindArtist, id)
}

func (c *Client) GetAlbum(ctx context.Context, id string) (*Album, error) {
	return getResource[Album](ctx, c, "spotify.GetAlbum", KindAlbum, id)
}

func (c *Client) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	return getResource[Playlist](ctx, c, "spotify.GetPlaylist", KindPlaylist, id)
}

// GetByID looks up a single resource of the given kind.
func (c *Client) GetByID(ctx context.Context, kind Kind, id string) (Resource, error) {
	switch kind {
	case KindTrack:
		return asResource(c.GetTrack(ctx, id))
	case KindArtist:
		return asResource(c.GetArtist(ctx, id))
	case KindAlbum:
		return asResource(c.GetAlbum(ctx, id))
	case KindPlaylist:
		return asResource(c.GetPlaylist(ctx, id))
	default:
		return nil, apierror.Invalid("spotify.GetByID", fmt.Sprintf("unknown resource kind %q", kind))
	}
}

// asResource avoids returning a typed nil inside a non-nil interface.
func asResource[R Resource](r R, err error) (Resource, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

func getResource[T any](ctx context.Context, c *Client, op string, kind Kind, id string) (*T, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apierror.Invalid(op, "id must not be empty")
	}

	var resource T
	if err := c.get(ctx, op, c.endpoint(nil, string(kind), id), &resource); err != nil {
		return nil, err
	}

	return &resource, nil
}
