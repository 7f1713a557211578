// Package httpapi implements the provider interfaces against JSON-over-HTTP
// metadata and lyric services.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/tonearmlabs/tonearm/pkg/providers"
)

// Catalog fetches album, artist, and track records from a catalog service at
// baseURL. A 404 is treated as "no record", not an error; 5xx and rate limits
// come back retryable.
type Catalog struct {
	baseURL string
	client  *http.Client
}

func NewCatalog(baseURL string) *Catalog {
	return &Catalog{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Catalog) GetAlbumByID(ctx context.Context, providerID string) (*providers.AlbumRecord, error) {
	var rec providers.AlbumRecord
	ok, err := getJSON(ctx, c.client, "catalog", fmt.Sprintf("%s/albums/%s", c.baseURL, url.PathEscape(providerID)), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (c *Catalog) GetArtistByID(ctx context.Context, providerID string) (*providers.ArtistRecord, error) {
	var rec providers.ArtistRecord
	ok, err := getJSON(ctx, c.client, "catalog", fmt.Sprintf("%s/artists/%s", c.baseURL, url.PathEscape(providerID)), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (c *Catalog) GetTrackByID(ctx context.Context, providerID string) (*providers.TrackRecord, error) {
	var rec providers.TrackRecord
	ok, err := getJSON(ctx, c.client, "catalog", fmt.Sprintf("%s/tracks/%s", c.baseURL, url.PathEscape(providerID)), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// Lyrics fetches lyrics from a lyric aggregation service at baseURL. The
// source name is passed through so one service can proxy multiple upstreams.
type Lyrics struct {
	baseURL string
	client  *http.Client
}

func NewLyrics(baseURL string) *Lyrics {
	return &Lyrics{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *Lyrics) GetLyricsByTrack(ctx context.Context, source, title, artist string) (*providers.LyricResult, error) {
	q := url.Values{}
	q.Set("source", source)
	q.Set("title", title)
	q.Set("artist", artist)

	var res providers.LyricResult
	ok, err := getJSON(ctx, l.client, source, fmt.Sprintf("%s/lyrics?%s", l.baseURL, q.Encode()), &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

// getJSON performs a GET and decodes the body into out. It returns false with
// no error on 404 so callers can distinguish "no record" from a failure.
func getJSON(ctx context.Context, client *http.Client, provider, rawURL string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, providers.Permanent(provider, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, providers.Transient(provider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return false, providers.Transient(provider, errors.Errorf("HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return false, providers.Permanent(provider, errors.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, providers.Transient(provider, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, providers.Permanent(provider, errors.Wrap(err, "malformed response body"))
	}
	return true, nil
}
