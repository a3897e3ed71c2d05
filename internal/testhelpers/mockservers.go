package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chinmina/spotify-bridge/internal/spotify"
)

// MockAccountsServer stands in for the accounts service token endpoint.
type MockAccountsServer struct {
	Server *httptest.Server

	mu         sync.Mutex
	tokenValue string
	expiresIn  int
	statusCode int
	lastUser   string

	requests atomic.Int32
}

// SetupMockAccountsServer creates a token endpoint at /api/token that issues
// tokens numbered by request, e.g. "token-1", "token-2".
func SetupMockAccountsServer(t *testing.T) *MockAccountsServer {
	t.Helper()

	mock := &MockAccountsServer{
		tokenValue: "token",
		expiresIn:  3600,
		statusCode: http.StatusOK,
	}

	router := http.NewServeMux()

	router.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		n := mock.requests.Add(1)

		mock.mu.Lock()
		status, value, expiresIn := mock.statusCode, mock.tokenValue, mock.expiresIn
		if user, _, ok := r.BasicAuth(); ok {
			mock.lastUser = user
		}
		mock.mu.Unlock()

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Invalid client"}`))
			return
		}

		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		WriteJSON(w, map[string]any{
			"access_token": fmt.Sprintf("%s-%d", value, n),
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	})

	mock.Server = httptest.NewServer(router)
	t.Cleanup(mock.Server.Close)

	return mock
}

// TokenURL is the URL of the token endpoint.
func (m *MockAccountsServer) TokenURL() string {
	return m.Server.URL + "/api/token"
}

// Requests is the number of token requests received.
func (m *MockAccountsServer) Requests() int {
	return int(m.requests.Load())
}

// LastClientID is the client ID presented by the most recent request.
func (m *MockAccountsServer) LastClientID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUser
}

// Reject makes subsequent token requests fail with the given status.
func (m *MockAccountsServer) Reject(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCode = status
}

// MockAPIServer stands in for the Web API, serving a fixed catalog.
type MockAPIServer struct {
	Server *httptest.Server

	mu        sync.Mutex
	tracks    map[string]spotify.Track
	artists   map[string]spotify.Artist
	albums    map[string]spotify.Album
	playlists map[string]spotify.Playlist
	topTracks map[string][]string
	// status, when set, is returned for every request instead of the catalog
	status int

	requests   atomic.Int32
	lastAuth   atomic.Value
	lastMarket atomic.Value
}

// SetupMockAPIServer creates a Web API server rooted at /v1.
func SetupMockAPIServer(t *testing.T) *MockAPIServer {
	t.Helper()

	mock := &MockAPIServer{
		tracks:    map[string]spotify.Track{},
		artists:   map[string]spotify.Artist{},
		albums:    map[string]spotify.Album{},
		playlists: map[string]spotify.Playlist{},
		topTracks: map[string][]string{},
	}

	router := http.NewServeMux()

	router.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("q"))
		types := strings.Split(r.URL.Query().Get("type"), ",")

		mock.mu.Lock()
		defer mock.mu.Unlock()

		result := map[string]any{}
		for _, typ := range types {
			switch typ {
			case "track":
				items := []spotify.Track{}
				for _, t := range mock.tracks {
					if strings.Contains(strings.ToLower(t.Name), q) {
						items = append(items, t)
					}
				}
				result["tracks"] = spotify.Page[spotify.Track]{Items: items, Total: len(items)}
			case "artist":
				items := []spotify.Artist{}
				for _, a := range mock.artists {
					if strings.Contains(strings.ToLower(a.Name), q) {
						items = append(items, a)
					}
				}
				result["artists"] = spotify.Page[spotify.Artist]{Items: items, Total: len(items)}
			case "album":
				items := []spotify.SimpleAlbum{}
				for _, a := range mock.albums {
					if strings.Contains(strings.ToLower(a.Name), q) {
						items = append(items, spotify.SimpleAlbum{ID: a.ID, Name: a.Name, AlbumType: a.AlbumType, TotalTracks: a.TotalTracks})
					}
				}
				result["albums"] = spotify.Page[spotify.SimpleAlbum]{Items: items, Total: len(items)}
			}
		}

		WriteJSON(w, result)
	})

	router.HandleFunc("GET /v1/tracks", func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		defer mock.mu.Unlock()

		tracks := []*spotify.Track{}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if t, ok := mock.tracks[id]; ok {
				tracks = append(tracks, &t)
			} else {
				tracks = append(tracks, nil)
			}
		}

		WriteJSON(w, map[string]any{"tracks": tracks})
	})

	router.HandleFunc("GET /v1/tracks/{id}", lookup(mock, func(id string) (any, bool) {
		t, ok := mock.tracks[id]
		return t, ok
	}))
	router.HandleFunc("GET /v1/artists/{id}", lookup(mock, func(id string) (any, bool) {
		a, ok := mock.artists[id]
		return a, ok
	}))
	router.HandleFunc("GET /v1/albums/{id}", lookup(mock, func(id string) (any, bool) {
		a, ok := mock.albums[id]
		return a, ok
	}))
	router.HandleFunc("GET /v1/playlists/{id}", lookup(mock, func(id string) (any, bool) {
		p, ok := mock.playlists[id]
		return p, ok
	}))

	router.HandleFunc("GET /v1/artists/{id}/top-tracks", func(w http.ResponseWriter, r *http.Request) {
		mock.lastMarket.Store(r.URL.Query().Get("market"))

		mock.mu.Lock()
		defer mock.mu.Unlock()

		ids, ok := mock.topTracks[r.PathValue("id")]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "Non existing id")
			return
		}

		tracks := make([]spotify.Track, 0, len(ids))
		for _, id := range ids {
			tracks = append(tracks, mock.tracks[id])
		}

		WriteJSON(w, map[string]any{"tracks": tracks})
	})

	// every request is counted and may be failed before routing
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.requests.Add(1)
		mock.lastAuth.Store(r.Header.Get("Authorization"))

		mock.mu.Lock()
		status := mock.status
		mock.mu.Unlock()

		if status != 0 {
			writeAPIError(w, status, http.StatusText(status))
			return
		}

		router.ServeHTTP(w, r)
	}))
	t.Cleanup(mock.Server.Close)

	return mock
}

func lookup(mock *MockAPIServer, find func(id string) (any, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		v, ok := find(r.PathValue("id"))
		mock.mu.Unlock()

		if !ok {
			writeAPIError(w, http.StatusNotFound, "Non existing id")
			return
		}

		WriteJSON(w, v)
	}
}

// APIURL is the versioned API root.
func (m *MockAPIServer) APIURL() string {
	return m.Server.URL + "/v1"
}

func (m *MockAPIServer) AddTrack(t spotify.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[t.ID] = t
}

func (m *MockAPIServer) AddArtist(a spotify.Artist, topTrackIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artists[a.ID] = a
	m.topTracks[a.ID] = topTrackIDs
}

func (m *MockAPIServer) AddAlbum(a spotify.Album) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albums[a.ID] = a
}

func (m *MockAPIServer) AddPlaylist(p spotify.Playlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlists[p.ID] = p
}

// FailWith makes every subsequent request fail with the given status. Zero
// restores normal behaviour.
func (m *MockAPIServer) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Requests is the number of requests received.
func (m *MockAPIServer) Requests() int {
	return int(m.requests.Load())
}

// LastAuthorization is the Authorization header of the most recent request.
func (m *MockAPIServer) LastAuthorization() string {
	v, _ := m.lastAuth.Load().(string)
	return v
}

// LastMarket is the market requested by the most recent top tracks request.
func (m *MockAPIServer) LastMarket() string {
	v, _ := m.lastMarket.Load().(string)
	return v
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"status": status, "message": message},
	})
}

// WriteJSON is a helper function that writes a JSON response.
// It sets the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
