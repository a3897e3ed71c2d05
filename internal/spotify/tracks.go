package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/chinmina/spotify-bridge/internal/apierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// MaxBatchSize is the largest number of IDs the provider accepts in a single
// batch lookup.
const MaxBatchSize = 50

// GetTracks looks up several tracks in one request. Only the first
// MaxBatchSize IDs are requested. IDs the provider doesn't recognise are
// omitted from the result rather than failing the call; the order of the
// remaining tracks is preserved.
func (c *Client) GetTracks(ctx context.Context, ids []string) ([]Track, error) {
	const op = "spotify.GetTracks"

	if len(ids) == 0 {
		return []Track{}, nil
	}

	if len(ids) > MaxBatchSize {
		log.Ctx(ctx).Warn().
			Int("requested", len(ids)).
			Int("limit", MaxBatchSize).
			Msg("spotify: batch lookup truncated")
		ids = ids[:MaxBatchSize]
	}

	cleaned := make([]string, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, apierror.Invalid(op, "id must not be empty")
		}
		if strings.Contains(id, ",") {
			return nil, apierror.Invalid(op, fmt.Sprintf("id must not contain a comma: %q", id))
		}
		cleaned[i] = id
	}

	var envelope struct {
		Tracks []*Track `json:"tracks"`
	}

	params := url.Values{"ids": {strings.Join(cleaned, ",")}}
	if err := c.get(ctx, op, c.endpoint(params, string(KindTrack)), &envelope); err != nil {
		return nil, err
	}

	return derefAll(envelope.Tracks), nil
}

// GetArtistTopTracks returns the artist's most popular tracks in the given
// market. An empty market uses the configured default.
func (c *Client) GetArtistTopTracks(ctx context.Context, artistID, market string) ([]Track, error) {
	const op = "spotify.GetArtistTopTracks"

	artistID = strings.TrimSpace(artistID)
	if artistID == "" {
		return nil, apierror.Invalid(op, "artist id must not be empty")
	}

	if market == "" {
		market = c.defaultMarket
	}
	market, err := normalizeMarket(market)
	if err != nil {
		return nil, apierror.Invalid(op, err.Error())
	}

	var envelope struct {
		Tracks []*Track `json:"tracks"`
	}

	params := url.Values{"market": {market}}
	if err := c.get(ctx, op, c.endpoint(params, string(KindArtist), artistID, "top-tracks"), &envelope); err != nil {
		return nil, err
	}

	return derefAll(envelope.Tracks), nil
}

// normalizeMarket canonicalises a country code, e.g. "us" to "US".
func normalizeMarket(market string) (string, error) {
	region, err := language.ParseRegion(strings.TrimSpace(market))
	if err != nil || !region.IsCountry() {
		return "", fmt.Errorf("market must be a country code: %q", market)
	}

	return region.String(), nil
}

func derefAll[T any](items []*T) []T {
	values := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			values = append(values, *item)
		}
	}
	return values
}
