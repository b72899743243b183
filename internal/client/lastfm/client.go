// Package lastfm wraps the three Last.fm read operations the bot relies on:
// free-text track search, similar tracks and top tracks by tag.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiBase   = "http://ws.audioscrobbler.com/2.0/"
	userAgent = "melodyforge-bot/0.1"
)

// Last.fm API error codes.
const (
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrRateLimited   = errors.New("rate limit exceeded")
)

// Track is a candidate returned by a search-like operation, not yet fetched.
// Artist may be empty when the API omitted it.
type Track struct {
	Name   string
	Artist string
}

// DownloadQuery renders the free-text query the media fetcher resolves.
func (t Track) DownloadQuery() string {
	return strings.TrimSpace(t.Artist + " " + t.Name)
}

// Client describes the metadata operations the service layer relies on.
type Client interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	SimilarTracks(ctx context.Context, artist, track string, limit int) ([]Track, error)
	TopTracksByTag(ctx context.Context, tag string, limit int) ([]Track, error)
}

// HTTPClient wraps the stdlib client for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIClient implements Client against the Last.fm HTTP API.
type APIClient struct {
	httpClient HTTPClient
	apiKey     string
	baseURL    string
	logger     *zap.Logger
}

// NewClient builds a Last.fm API client.
func NewClient(httpClient HTTPClient, apiKey string, logger *zap.Logger) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &APIClient{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    apiBase,
		logger:     logger,
	}
}

// SearchTracks queries track.search for free-text matches.
func (c *APIClient) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}

	params := url.Values{
		"method": {"track.search"},
		"track":  {query},
	}

	body, err := c.doRequest(ctx, params, limit)
	if err != nil {
		return nil, fmt.Errorf("track.search: %w", err)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode track.search response: %w", err)
	}

	tracks := make([]Track, 0, len(payload.Results.TrackMatches.Track))
	for _, t := range payload.Results.TrackMatches.Track {
		tracks = append(tracks, Track{Name: t.Name, Artist: t.Artist})
	}

	return tracks, nil
}

// SimilarTracks queries track.getSimilar; both seed fields are required.
func (c *APIClient) SimilarTracks(ctx context.Context, artist, track string, limit int) ([]Track, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(track) == "" {
		return nil, fmt.Errorf("artist and track are required")
	}

	params := url.Values{
		"method":      {"track.getSimilar"},
		"artist":      {artist},
		"track":       {track},
		"autocorrect": {"1"},
	}

	body, err := c.doRequest(ctx, params, limit)
	if err != nil {
		return nil, fmt.Errorf("track.getSimilar: %w", err)
	}

	var payload similarResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode track.getSimilar response: %w", err)
	}

	return mapTracks(payload.SimilarTracks.Track), nil
}

// TopTracksByTag queries tag.getTopTracks for a genre mix.
func (c *APIClient) TopTracksByTag(ctx context.Context, tag string, limit int) ([]Track, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, fmt.Errorf("tag is empty")
	}

	params := url.Values{
		"method": {"tag.getTopTracks"},
		"tag":    {tag},
	}

	body, err := c.doRequest(ctx, params, limit)
	if err != nil {
		return nil, fmt.Errorf("tag.getTopTracks: %w", err)
	}

	var payload topTracksResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode tag.getTopTracks response: %w", err)
	}

	return mapTracks(payload.Tracks.Track), nil
}

// doRequest performs a single GET with the common parameters attached.
// No retries here: every operation is single-attempt by design.
func (c *APIClient) doRequest(ctx context.Context, params url.Values, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = 10
	}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(body, 256))
	}

	// Last.fm reports errors in-band with a 200 status.
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeRateLimited:
			return nil, ErrRateLimited
		default:
			return nil, fmt.Errorf("api error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	return body, nil
}

func mapTracks(dtos []trackDTO) []Track {
	tracks := make([]Track, 0, len(dtos))
	for _, t := range dtos {
		tracks = append(tracks, Track{Name: t.Name, Artist: string(t.Artist)})
	}
	return tracks
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
