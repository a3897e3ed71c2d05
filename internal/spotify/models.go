package spotify

import "time"

type ExternalURLs struct {
	Spotify string `json:"spotify,omitempty"`
}

type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

type Followers struct {
	Href  string `json:"href,omitempty"`
	Total int    `json:"total"`
}

type Copyright struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type SimpleArtist struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ExternalURLs *ExternalURLs `json:"external_urls,omitempty"`
}

type Artist struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Genres       []string      `json:"genres,omitempty"`
	Popularity   int           `json:"popularity"`
	Followers    *Followers    `json:"followers,omitempty"`
	Images       []Image       `json:"images,omitempty"`
	ExternalURLs *ExternalURLs `json:"external_urls,omitempty"`
}

type SimpleAlbum struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	AlbumType    string         `json:"album_type"`
	Artists      []SimpleArtist `json:"artists"`
	ReleaseDate  string         `json:"release_date,omitempty"`
	TotalTracks  int            `json:"total_tracks"`
	Images       []Image        `json:"images,omitempty"`
	ExternalURLs *ExternalURLs  `json:"external_urls,omitempty"`
}

type Album struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	AlbumType            string             `json:"album_type"`
	Artists              []SimpleArtist     `json:"artists"`
	ReleaseDate          string             `json:"release_date"`
	ReleaseDatePrecision string             `json:"release_date_precision"`
	TotalTracks          int                `json:"total_tracks"`
	Genres               []string           `json:"genres,omitempty"`
	Label                string             `json:"label,omitempty"`
	Popularity           int                `json:"popularity"`
	Images               []Image            `json:"images,omitempty"`
	ExternalURLs         *ExternalURLs      `json:"external_urls,omitempty"`
	Tracks               *Page[SimpleTrack] `json:"tracks,omitempty"`
	Copyrights           []Copyright        `json:"copyrights,omitempty"`
}

type Track struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Artists      []SimpleArtist `json:"artists"`
	Album        SimpleAlbum    `json:"album"`
	DurationMS   int64          `json:"duration_ms"`
	Explicit     bool           `json:"explicit"`
	Popularity   int            `json:"popularity"`
	PreviewURL   string         `json:"preview_url,omitempty"`
	TrackNumber  int            `json:"track_number"`
	DiscNumber   int            `json:"disc_number"`
	IsLocal      bool           `json:"is_local"`
	ExternalURLs *ExternalURLs  `json:"external_urls,omitempty"`
}

func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// SimpleTrack is the form of a track nested inside an album.
type SimpleTrack struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Artists      []SimpleArtist `json:"artists"`
	DurationMS   int64          `json:"duration_ms"`
	Explicit     bool           `json:"explicit"`
	TrackNumber  int            `json:"track_number"`
	DiscNumber   int            `json:"disc_number"`
	PreviewURL   string         `json:"preview_url,omitempty"`
	ExternalURLs *ExternalURLs  `json:"external_urls,omitempty"`
}

func (t SimpleTrack) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// PlaylistTrack is a track as it appears in a playlist. Local files have no
// ID and no album.
type PlaylistTrack struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name"`
	Artists      []SimpleArtist `json:"artists"`
	Album        *SimpleAlbum   `json:"album,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	Explicit     bool           `json:"explicit"`
	Popularity   int            `json:"popularity"`
	PreviewURL   string         `json:"preview_url,omitempty"`
	ExternalURLs *ExternalURLs  `json:"external_urls,omitempty"`
	IsLocal      bool           `json:"is_local"`
}

type PlaylistTrackItem struct {
	AddedAt string `json:"added_at,omitempty"`
	// Track is nil for items that are no longer available.
	Track *PlaylistTrack `json:"track"`
}

type PlaylistOwner struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name,omitempty"`
	ExternalURLs *ExternalURLs `json:"external_urls,omitempty"`
	Followers    *Followers    `json:"followers,omitempty"`
	Images       []Image       `json:"images,omitempty"`
}

type Playlist struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Description   string                  `json:"description,omitempty"`
	Owner         PlaylistOwner           `json:"owner"`
	Public        *bool                   `json:"public,omitempty"`
	Collaborative bool                    `json:"collaborative"`
	Followers     *Followers              `json:"followers,omitempty"`
	Images        []Image                 `json:"images,omitempty"`
	ExternalURLs  *ExternalURLs           `json:"external_urls,omitempty"`
	SnapshotID    string                  `json:"snapshot_id"`
	Tracks        Page[PlaylistTrackItem] `json:"tracks"`
}

// Page is the provider's paging envelope.
type Page[T any] struct {
	Href     string `json:"href,omitempty"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
	Total    int    `json:"total"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Items    []T    `json:"items"`
}
