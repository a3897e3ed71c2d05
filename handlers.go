package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/chinmina/spotify-bridge/internal/apierror"
	"github.com/chinmina/spotify-bridge/internal/audit"
	"github.com/chinmina/spotify-bridge/internal/spotify"
	"github.com/rs/zerolog/log"
)

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// handleSearch serves a search over one or more kinds, e.g.
// /search?q=daft+punk&type=track,album&limit=10.
func handleSearch(repo spotify.SearchRepository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		query, err := searchQuery(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		kinds := make([]string, len(query.Kinds))
		for i, k := range query.Kinds {
			kinds[i] = string(k)
		}
		entry := audit.Log(r.Context())
		entry.ResourceKind = strings.Join(kinds, ",")
		entry.Query = query.Query
		entry.Market = query.Market

		result, err := repo.Search(r.Context(), query)
		if err != nil {
			writeError(w, r, err)
			return
		}

		entry.Resolve(resultCount(result))
		writeJSON(w, result)
	})
}

// handleSearchKind serves a single-kind search, returning a bare array.
func handleSearchKind(repo spotify.SearchRepository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		kind, err := spotify.ParseKind(r.PathValue("kind"))
		if err != nil {
			writeError(w, r, apierror.Invalid("search", err.Error()))
			return
		}

		limit, err := intParam(r, "limit")
		if err != nil {
			writeError(w, r, err)
			return
		}

		q := r.URL.Query().Get("q")

		entry := audit.Log(r.Context())
		entry.ResourceKind = string(kind)
		entry.Query = q

		var (
			results any
			count   int
		)

		switch kind {
		case spotify.KindTrack:
			tracks, serr := repo.SearchTracks(r.Context(), q, limit)
			results, count, err = tracks, len(tracks), serr
		case spotify.KindArtist:
			artists, serr := repo.SearchArtists(r.Context(), q, limit)
			results, count, err = artists, len(artists), serr
		case spotify.KindAlbum:
			albums, serr := repo.SearchAlbums(r.Context(), q, limit)
			results, count, err = albums, len(albums), serr
		default:
			err = apierror.Invalid("search", fmt.Sprintf("search by %s is only available through /search", kind))
		}

		if err != nil {
			writeError(w, r, err)
			return
		}

		entry.Resolve(count)
		writeJSON(w, results)
	})
}

// handleGetTracks serves a batch lookup, e.g. /tracks?ids=a,b,c.
func handleGetTracks(repo spotify.TrackRepository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		var ids []string
		if raw := r.URL.Query().Get("ids"); raw != "" {
			ids = strings.Split(raw, ",")
		}

		entry := audit.Log(r.Context())
		entry.ResourceKind = string(spotify.KindTrack)
		entry.IDs = ids
		entry.Requested = len(ids)

		tracks, err := repo.GetTracks(r.Context(), ids)
		if err != nil {
			writeError(w, r, err)
			return
		}

		entry.Resolve(len(tracks))
		writeJSON(w, tracks)
	})
}

func handleArtistTopTracks(repo spotify.TrackRepository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		id := r.PathValue("id")
		market := r.URL.Query().Get("market")

		entry := audit.Log(r.Context())
		entry.ResourceKind = string(spotify.KindArtist)
		entry.ResourceID = id
		entry.Market = market

		tracks, err := repo.GetArtistTopTracks(r.Context(), id, market)
		if err != nil {
			writeError(w, r, err)
			return
		}

		entry.Resolve(len(tracks))
		writeJSON(w, tracks)
	})
}

// handleGetResource serves a single lookup by kind and ID, e.g.
// /albums/4m2880jivSbbyEGAKfITCa.
func handleGetResource(repo spotify.ResourceRepository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		kind, err := spotify.ParseKind(r.PathValue("kind"))
		if err != nil {
			// unknown top level paths are simply not found
			writeJSONError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
			return
		}

		id := r.PathValue("id")

		entry := audit.Log(r.Context())
		entry.ResourceKind = string(kind)
		entry.ResourceID = id

		resource, err := repo.GetByID(r.Context(), kind, id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		entry.Resolve(1)
		writeJSON(w, resource)
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

func searchQuery(r *http.Request) (spotify.SearchQuery, error) {
	params := r.URL.Query()

	query := spotify.SearchQuery{
		Query:  params.Get("q"),
		Market: params.Get("market"),
	}

	types := params.Get("type")
	if types == "" {
		types = "track"
	}
	for _, t := range strings.Split(types, ",") {
		kind, err := spotify.ParseKind(t)
		if err != nil {
			return query, apierror.Invalid("search", err.Error())
		}
		query.Kinds = append(query.Kinds, kind)
	}

	var err error
	if query.Limit, err = intParam(r, "limit"); err != nil {
		return query, err
	}
	if query.Offset, err = intParam(r, "offset"); err != nil {
		return query, err
	}

	return query, nil
}

// intParam reads an optional integer query parameter, returning zero when it
// is absent.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.Invalid("search", fmt.Sprintf("%s must be an integer", name))
	}

	return v, nil
}

func resultCount(result spotify.SearchResult) int {
	count := 0
	if result.Tracks != nil {
		count += len(result.Tracks.Items)
	}
	if result.Artists != nil {
		count += len(result.Artists.Items)
	}
	if result.Albums != nil {
		count += len(result.Albums.Items)
	}
	if result.Playlists != nil {
		count += len(result.Playlists.Items)
	}
	return count
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, payload any) {
	marshalledResponse, err := json.Marshal(payload)
	if err != nil {
		requestError(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(marshalledResponse)
	if err != nil {
		// record failure to log: trying to respond to the client at this
		// point will likely fail
		log.Info().Msgf("failed to write response: %v", err)
	}
}

// writeError records the failure in the audit log and responds with the
// status the error maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	audit.Log(r.Context()).Fail(err)

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(apiErr.RetryAfter.Seconds())))
	}

	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Warn().Err(err).Msg("request failed")
	} else {
		log.Ctx(r.Context()).Info().Err(err).Msg("request rejected")
	}

	writeJSONError(w, status, message)
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// At this point the status code has been written, so we can only log
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}

// errorStatus extracts HTTP status code and message from an error.
// Returns (StatusInternalServerError, StatusText) for errors that don't implement HTTPStatuser.
func errorStatus(err error) (int, string) {
	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody drains the request body by reading and discarding the contents.
// This is useful to ensure the request body is fully consumed, which is important
// for connection reuse in HTTP/1 clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5kb max: after this we'll assume the client is broken or malicious
		// and close the connection
		_, _ = io.CopyN(io.Discard, r.Body, 5*1024)
	}
}
