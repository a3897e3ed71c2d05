package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chinmina/spotify-bridge/internal/apierror"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
	// MaxSearchOffset is the deepest offset the provider will page to.
	MaxSearchOffset = 1000
)

// SearchQuery describes a search across one or more resource kinds.
type SearchQuery struct {
	Query  string
	Kinds  []Kind
	Limit  int
	Offset int
	// Market restricts results to those available in the given country. It is
	// omitted from the request when empty.
	Market string
}

// SearchResult holds one page per requested kind. Kinds that were not
// requested are nil.
type SearchResult struct {
	Tracks    *Page[Track]       `json:"tracks,omitempty"`
	Artists   *Page[Artist]      `json:"artists,omitempty"`
	Albums    *Page[SimpleAlbum] `json:"albums,omitempty"`
	Playlists *Page[*Playlist]   `json:"playlists,omitempty"`
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	result, err := c.search(ctx, "spotify.SearchTracks", SearchQuery{Query: query, Kinds: []Kind{KindTrack}, Limit: limit})
	if err != nil {
		return nil, err
	}

	return pageItems(result.Tracks), nil
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error) {
	result, err := c.search(ctx, "spotify.SearchArtists", SearchQuery{Query: query, Kinds: []Kind{KindArtist}, Limit: limit})
	if err != nil {
		return nil, err
	}

	return pageItems(result.Artists), nil
}

func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]SimpleAlbum, error) {
	result, err := c.search(ctx, "spotify.SearchAlbums", SearchQuery{Query: query, Kinds: []Kind{KindAlbum}, Limit: limit})
	if err != nil {
		return nil, err
	}

	return pageItems(result.Albums), nil
}

// Search runs a single search request over every kind in the query. Playlist
// pages may contain nil entries, which are dropped.
func (c *Client) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	result, err := c.search(ctx, "spotify.Search", q)
	if err != nil {
		return SearchResult{}, err
	}

	if result.Playlists != nil {
		result.Playlists.Items = dropNil(result.Playlists.Items)
	}

	return result, nil
}

func (c *Client) search(ctx context.Context, op string, q SearchQuery) (SearchResult, error) {
	params, err := q.params()
	if err != nil {
		return SearchResult{}, apierror.Invalid(op, err.Error())
	}

	var result SearchResult
	if err := c.get(ctx, op, c.endpoint(params, "search"), &result); err != nil {
		return SearchResult{}, err
	}

	return result, nil
}

// params validates the query and renders it as request parameters. Out of
// range limits and offsets are clamped.
func (q SearchQuery) params() (url.Values, error) {
	text := norm.NFC.String(strings.TrimSpace(q.Query))
	if text == "" {
		return nil, errors.New("query must not be empty")
	}

	if len(q.Kinds) == 0 {
		return nil, errors.New("at least one resource kind must be requested")
	}

	types := make([]string, 0, len(q.Kinds))
	seen := make(map[Kind]bool, len(q.Kinds))
	for _, k := range q.Kinds {
		switch k {
		case KindTrack, KindArtist, KindAlbum, KindPlaylist:
		default:
			return nil, fmt.Errorf("unsupported search kind: %s", k)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		types = append(types, k.searchType())
	}

	if q.Offset < 0 {
		return nil, errors.New("offset must not be negative")
	}

	params := url.Values{
		"q":      {text},
		"type":   {strings.Join(types, ",")},
		"limit":  {strconv.Itoa(clampLimit(q.Limit))},
		"offset": {strconv.Itoa(min(q.Offset, MaxSearchOffset))},
	}

	if q.Market != "" {
		market, err := normalizeMarket(q.Market)
		if err != nil {
			return nil, err
		}
		params["market"] = []string{market}
	}

	return params, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return min(limit, MaxSearchLimit)
}

// pageItems returns the page's items, or an empty (never nil) slice when
// there is no page.
func pageItems[T any](p *Page[T]) []T {
	if p == nil || p.Items == nil {
		return []T{}
	}
	return p.Items
}

func dropNil[T any](items []*T) []*T {
	kept := make([]*T, 0, len(items))
	for _, item := range items {
		if item != nil {
			kept = append(kept, item)
		}
	}
	return kept
}
