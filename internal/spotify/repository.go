// Package spotify provides typed read access to the Spotify Web API. Every
// call authorizes itself with a token from the shared token cache, and every
// failure is reported as an *apierror.Error.
package spotify

import (
	"context"
	"fmt"
	"strings"
)

// Kind names a catalog resource type. Its value is the resource's path
// segment in the API.
type Kind string

const (
	KindTrack    Kind = "tracks"
	KindArtist   Kind = "artists"
	KindAlbum    Kind = "albums"
	KindPlaylist Kind = "playlists"
)

// ParseKind accepts either the singular or plural name of a resource kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "track", "tracks":
		return KindTrack, nil
	case "artist", "artists":
		return KindArtist, nil
	case "album", "albums":
		return KindAlbum, nil
	case "playlist", "playlists":
		return KindPlaylist, nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
}

// searchType is the value used for the kind in a search request's type
// parameter.
func (k Kind) searchType() string {
	return strings.TrimSuffix(string(k), "s")
}

// Resource is any catalog entity that can be looked up by ID.
type Resource interface {
	ResourceKind() Kind
	ResourceID() string
}

func (t *Track) ResourceKind() Kind    { return KindTrack }
func (t *Track) ResourceID() string    { return t.ID }
func (a *Artist) ResourceKind() Kind   { return KindArtist }
func (a *Artist) ResourceID() string   { return a.ID }
func (a *Album) ResourceKind() Kind    { return KindAlbum }
func (a *Album) ResourceID() string    { return a.ID }
func (p *Playlist) ResourceKind() Kind { return KindPlaylist }
func (p *Playlist) ResourceID() string { return p.ID }

// SearchRepository finds catalog entries by free text.
type SearchRepository interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error)
	SearchAlbums(ctx context.Context, query string, limit int) ([]SimpleAlbum, error)
	Search(ctx context.Context, q SearchQuery) (SearchResult, error)
}

// TrackRepository looks up tracks.
type TrackRepository interface {
	GetTrack(ctx context.Context, id string) (*Track, error)
	GetTracks(ctx context.Context, ids []string) ([]Track, error)
	GetArtistTopTracks(ctx context.Context, artistID, market string) ([]Track, error)
}

// ResourceRepository looks up single catalog entities.
type ResourceRepository interface {
	GetArtist(ctx context.Context, id string) (*Artist, error)
	GetAlbum(ctx context.Context, id string) (*Album, error)
	GetPlaylist(ctx context.Context, id string) (*Playlist, error)
	GetByID(ctx context.Context, kind Kind, id string) (Resource, error)
}

var (
	_ SearchRepository   = (*Client)(nil)
	_ TrackRepository    = (*Client)(nil)
	_ ResourceRepository = (*Client)(nil)
)
