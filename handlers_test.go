package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chinmina/spotify-bridge/internal/apierror"
	"github.com/chinmina/spotify-bridge/internal/spotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository serves canned responses, failing any call it has no
// function for.
type fakeRepository struct {
	search        func(spotify.SearchQuery) (spotify.SearchResult, error)
	searchTracks  func(query string, limit int) ([]spotify.Track, error)
	searchArtists func(query string, limit int) ([]spotify.Artist, error)
	searchAlbums  func(query string, limit int) ([]spotify.SimpleAlbum, error)
	getTracks     func(ids []string) ([]spotify.Track, error)
	topTracks     func(artistID, market string) ([]spotify.Track, error)
	getByID       func(kind spotify.Kind, id string) (spotify.Resource, error)
}

var errNotConfigured = errors.New("not configured")

func (f *fakeRepository) Search(_ context.Context, q spotify.SearchQuery) (spotify.SearchResult, error) {
	if f.search == nil {
		return spotify.SearchResult{}, errNotConfigured
	}
	return f.search(q)
}

func (f *fakeRepository) SearchTracks(_ context.Context, query string, limit int) ([]spotify.Track, error) {
	if f.searchTracks == nil {
		return nil, errNotConfigured
	}
	return f.searchTracks(query, limit)
}

func (f *fakeRepository) SearchArtists(_ context.Context, query string, limit int) ([]spotify.Artist, error) {
	if f.searchArtists == nil {
		return nil, errNotConfigured
	}
	return f.searchArtists(query, limit)
}

func (f *fakeRepository) SearchAlbums(_ context.Context, query string, limit int) ([]spotify.SimpleAlbum, error) {
	if f.searchAlbums == nil {
		return nil, errNotConfigured
	}
	return f.searchAlbums(query, limit)
}

func (f *fakeRepository) GetTrack(ctx context.Context, id string) (*spotify.Track, error) {
	r, err := f.GetByID(ctx, spotify.KindTrack, id)
	if err != nil {
		return nil, err
	}
	return r.(*spotify.Track), nil
}

func (f *fakeRepository) GetTracks(_ context.Context, ids []string) ([]spotify.Track, error) {
	if f.getTracks == nil {
		return nil, errNotConfigured
	}
	return f.getTracks(ids)
}

func (f *fakeRepository) GetArtistTopTracks(_ context.Context, artistID, market string) ([]spotify.Track, error) {
	if f.topTracks == nil {
		return nil, errNotConfigured
	}
	return f.topTracks(artistID, market)
}

func (f *fakeRepository) GetArtist(ctx context.Context, id string) (*spotify.Artist, error) {
	r, err := f.GetByID(ctx, spotify.KindArtist, id)
	if err != nil {
		return nil, err
	}
	return r.(*spotify.Artist), nil
}

func (f *fakeRepository) GetAlbum(ctx context.Context, id string) (*spotify.Album, error) {
	r, err := f.GetByID(ctx, spotify.KindAlbum, id)
	if err != nil {
		return nil, err
	}
	return r.(*spotify.Album), nil
}

func (f *fakeRepository) GetPlaylist(ctx context.Context, id string) (*spotify.Playlist, error) {
	r, err := f.GetByID(ctx, spotify.KindPlaylist, id)
	if err != nil {
		return nil, err
	}
	return r.(*spotify.Playlist), nil
}

func (f *fakeRepository) GetByID(_ context.Context, kind spotify.Kind, id string) (spotify.Resource, error) {
	if f.getByID == nil {
		return nil, errNotConfigured
	}
	return f.getByID(kind, id)
}

func serve(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest("GET", target, nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestHandleSearch_PassesQuery(t *testing.T) {
	var received spotify.SearchQuery
	repo := &fakeRepository{
		search: func(q spotify.SearchQuery) (spotify.SearchResult, error) {
			received = q
			return spotify.SearchResult{
				Tracks: &spotify.Page[spotify.Track]{Items: []spotify.Track{{ID: "t1", Name: "One More Time"}}, Total: 1},
			}, nil
		},
	}

	rr := serve(t, configureServerRoutes(repo), "/search?q=daft+punk&type=track,album&limit=5&offset=10&market=AU")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, spotify.SearchQuery{
		Query:  "daft punk",
		Kinds:  []spotify.Kind{spotify.KindTrack, spotify.KindAlbum},
		Limit:  5,
		Offset: 10,
		Market: "AU",
	}, received)

	var result spotify.SearchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.NotNil(t, result.Tracks)
	assert.Equal(t, "t1", result.Tracks.Items[0].ID)
	assert.Nil(t, result.Albums)
}

func TestHandleSearch_DefaultsToTracks(t *testing.T) {
	var received spotify.SearchQuery
	repo := &fakeRepository{
		search: func(q spotify.SearchQuery) (spotify.SearchResult, error) {
			received = q
			return spotify.SearchResult{}, nil
		},
	}

	rr := serve(t, configureServerRoutes(repo), "/search?q=abba")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []spotify.Kind{spotify.KindTrack}, received.Kinds)
	assert.Zero(t, received.Limit)
}

func TestHandleSearch_RejectsBadParameters(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		expected string
	}{
		{"unknown type", "/search?q=x&type=podcast", `unknown resource kind "podcast"`},
		{"non-numeric limit", "/search?q=x&limit=lots", "limit must be an integer"},
		{"non-numeric offset", "/search?q=x&offset=1.5", "offset must be an integer"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepository{}

			rr := serve(t, configureServerRoutes(repo), tc.target)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.expected, decodeError(t, rr))
		})
	}
}

func TestHandleSearchKind(t *testing.T) {
	repo := &fakeRepository{
		searchArtists: func(query string, limit int) ([]spotify.Artist, error) {
			assert.Equal(t, "radiohead", query)
			assert.Equal(t, 3, limit)
			return []spotify.Artist{{ID: "a1", Name: "Radiohead"}}, nil
		},
		searchAlbums: func(string, int) ([]spotify.SimpleAlbum, error) {
			return []spotify.SimpleAlbum{}, nil
		},
	}
	handler := configureServerRoutes(repo)

	rr := serve(t, handler, "/search/artist?q=radiohead&limit=3")
	require.Equal(t, http.StatusOK, rr.Code)

	var artists []spotify.Artist
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &artists))
	assert.Equal(t, []spotify.Artist{{ID: "a1", Name: "Radiohead"}}, artists)

	// empty results are an empty array, not null
	rr = serve(t, handler, "/search/albums?q=nothing")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = serve(t, handler, "/search/playlist?q=x")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "search by playlists is only available through /search", decodeError(t, rr))

	rr = serve(t, handler, "/search/shows?q=x")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleGetTracks(t *testing.T) {
	var received []string
	repo := &fakeRepository{
		getTracks: func(ids []string) ([]spotify.Track, error) {
			received = ids
			return []spotify.Track{{ID: "a"}, {ID: "c"}}, nil
		},
	}
	handler := configureServerRoutes(repo)

	rr := serve(t, handler, "/tracks?ids=a,b,c")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"a", "b", "c"}, received)

	var tracks []spotify.Track
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tracks))
	assert.Len(t, tracks, 2)

	rr = serve(t, handler, "/tracks")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, received)
}

func TestHandleArtistTopTracks(t *testing.T) {
	repo := &fakeRepository{
		topTracks: func(artistID, market string) ([]spotify.Track, error) {
			assert.Equal(t, "artist-1", artistID)
			assert.Equal(t, "SE", market)
			return []spotify.Track{{ID: "t1"}}, nil
		},
	}

	rr := serve(t, configureServerRoutes(repo), "/artists/artist-1/top-tracks?market=SE")

	require.Equal(t, http.StatusOK, rr.Code)
	var tracks []spotify.Track
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tracks))
	require.Len(t, tracks, 1)
	assert.Equal(t, "t1", tracks[0].ID)
}

func TestHandleGetResource(t *testing.T) {
	repo := &fakeRepository{
		getByID: func(kind spotify.Kind, id string) (spotify.Resource, error) {
			switch kind {
			case spotify.KindAlbum:
				return &spotify.Album{ID: id, Name: "Discovery"}, nil
			case spotify.KindPlaylist:
				return nil, &apierror.Error{Kind: apierror.KindNotFound, Op: "spotify.GetPlaylist", StatusCode: 404}
			default:
				return nil, errNotConfigured
			}
		},
	}
	handler := configureServerRoutes(repo)

	rr := serve(t, handler, "/albums/alb-1")
	require.Equal(t, http.StatusOK, rr.Code)

	var album spotify.Album
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &album))
	assert.Equal(t, "alb-1", album.ID)
	assert.Equal(t, "Discovery", album.Name)

	rr = serve(t, handler, "/playlists/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "resource not found", decodeError(t, rr))

	rr = serve(t, handler, "/episodes/e1")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// errors without a classification don't leak their detail
	rr = serve(t, handler, "/artists/a1")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal Server Error", decodeError(t, rr))
}

func TestHandlers_UpstreamErrorStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		status     int
		retryAfter string
	}{
		{
			name:       "rate limited",
			err:        &apierror.Error{Kind: apierror.KindTransient, StatusCode: 429, RetryAfter: 30 * time.Second},
			status:     http.StatusServiceUnavailable,
			retryAfter: "30",
		},
		{
			name:   "auth failure",
			err:    apierror.Auth("oauth.Renew", "token exchange failed", nil),
			status: http.StatusBadGateway,
		},
		{
			name:   "transport failure",
			err:    apierror.FromTransport("spotify.GetTracks", errors.New("connection refused")),
			status: http.StatusBadGateway,
		},
		{
			name:   "invalid request",
			err:    apierror.Invalid("spotify.GetTracks", "id must not contain a comma"),
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepository{
				getTracks: func([]string) ([]spotify.Track, error) { return nil, tc.err },
			}

			rr := serve(t, configureServerRoutes(repo), "/tracks?ids=a")

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.retryAfter, rr.Header().Get("Retry-After"))
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestHandleHealthCheck_Success(t *testing.T) {
	ctx := context.Background()

	req, err := http.NewRequest("GET", "/healthcheck", nil)
	require.NoError(t, err)

	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	// act
	handler := handleHealthCheck()
	handler.ServeHTTP(rr, req)

	// assert
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))

	respBody := rr.Body.String()
	assert.Equal(t, "OK", respBody)
}

func TestWriteJSONError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeJSONError(rr, http.StatusTeapot, "short and stout")

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"short and stout"}`, rr.Body.String())
}

func TestMaxRequestSizeMiddleware(t *testing.T) {

	mw := maxRequestSize(10)

	var readError error
	var readBytes int64

	innerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readBytes, readError = io.CopyN(io.Discard, r.Body, 5*1024*1024)

		status := http.StatusOK
		if readError != nil {
			status = http.StatusBadRequest
		}

		w.WriteHeader(status)
	})

	handler := mw(innerHandler)

	body := bytes.NewBufferString("0123456789n123456789")
	req, err := http.NewRequest("GET", "/tracks", body)
	require.NoError(t, err)

	rr := httptest.NewRecorder()

	// act
	handler.ServeHTTP(rr, req)

	// assert
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.ErrorContains(t, readError, "http: request body too large")
	assert.Equal(t, int64(10), readBytes)

	respBody := rr.Body.String()
	assert.Equal(t, "", respBody)
}
