// Package transcoder talks to the hosted video transcoding API: direct upload
// sessions, asset lookups and asset deletion, plus the URL shapes for
// playback, thumbnails and text tracks.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"fknsrs.biz/p/vidshare/internal/ctxhttpclient"
)

const (
	AssetStatusPreparing = "preparing"
	AssetStatusReady     = "ready"
	AssetStatusErrored   = "errored"
)

var ErrAssetNotFound = fmt.Errorf("asset not found")

type Upload struct {
	ID      string
	URL     string
	Status  string
	AssetID string
}

type Track struct {
	ID     string
	Type   string
	Status string
}

type Asset struct {
	ID         string
	UploadID   string
	Status     string
	PlaybackID string
	DurationMS *int
	Tracks     []Track
}

// TextTrack returns the first text track, or nil.
func (a *Asset) TextTrack() *Track {
	for i := range a.Tracks {
		if a.Tracks[i].Type == "text" {
			return &a.Tracks[i]
		}
	}

	return nil
}

type API interface {
	CreateUpload(ctx context.Context, passthrough string) (*Upload, error)
	GetUpload(ctx context.Context, uploadID string) (*Upload, error)
	GetAsset(ctx context.Context, assetID string) (*Asset, error)
	DeleteAsset(ctx context.Context, assetID string) error
	ThumbnailURL(playbackID string) string
	PreviewURL(playbackID string) string
	TranscriptURL(playbackID, trackID string) string
}

type Config struct {
	BaseURL     string
	TokenID     string
	TokenSecret string
	CORSOrigin  string
	StreamURL   string
	ImageURL    string
}

type Client struct {
	c Config
}

var _ API = (*Client)(nil)

func New(c Config) *Client {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	c.StreamURL = strings.TrimSuffix(c.StreamURL, "/")
	c.ImageURL = strings.TrimSuffix(c.ImageURL, "/")

	return &Client{c: c}
}

func (c *Client) do(ctx context.Context, method, path string, body *gabs.Container) (*gabs.Container, error) {
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body.Bytes())
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.c.BaseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}

	req.SetBasicAuth(c.c.TokenID, c.c.TokenSecret)
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	d, err := ctxhttpclient.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(d) == 0 {
		return gabs.New(), nil
	}

	j, err := gabs.ParseJSON(d)
	if err != nil {
		return nil, fmt.Errorf("could not parse response: %w", err)
	}

	return j, nil
}

// CreateUpload opens a direct upload session. passthrough is echoed back on
// the asset and its webhooks.
func (c *Client) CreateUpload(ctx context.Context, passthrough string) (*Upload, error) {
	body := gabs.New()
	body.Set(c.c.CORSOrigin, "cors_origin")
	body.Set([]interface{}{"public"}, "new_asset_settings", "playback_policy")
	body.Set(passthrough, "new_asset_settings", "passthrough")
	body.Set([]interface{}{
		map[string]interface{}{
			"generated_subtitles": []interface{}{
				map[string]interface{}{"language_code": "en", "name": "English"},
			},
		},
	}, "new_asset_settings", "input")

	j, err := c.do(ctx, http.MethodPost, "/video/v1/uploads", body)
	if err != nil {
		return nil, fmt.Errorf("transcoder.Client.CreateUpload: %w", err)
	}

	id, _ := j.Path("data.id").Data().(string)
	u, _ := j.Path("data.url").Data().(string)
	if id == "" || u == "" {
		return nil, fmt.Errorf("transcoder.Client.CreateUpload: response missing data.id or data.url")
	}

	return &Upload{ID: id, URL: u, Status: str(j, "data.status")}, nil
}

func (c *Client) GetUpload(ctx context.Context, uploadID string) (*Upload, error) {
	j, err := c.do(ctx, http.MethodGet, "/video/v1/uploads/"+uploadID, nil)
	if err != nil {
		return nil, fmt.Errorf("transcoder.Client.GetUpload: %w", err)
	}

	return &Upload{
		ID:      str(j, "data.id"),
		URL:     str(j, "data.url"),
		Status:  str(j, "data.status"),
		AssetID: str(j, "data.asset_id"),
	}, nil
}

func (c *Client) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	j, err := c.do(ctx, http.MethodGet, "/video/v1/assets/"+assetID, nil)
	if err != nil {
		var statusErr *ctxhttpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("transcoder.Client.GetAsset: %s: %w", assetID, ErrAssetNotFound)
		}

		return nil, fmt.Errorf("transcoder.Client.GetAsset: %w", err)
	}

	a, err := ParseAsset(j.Path("data"))
	if err != nil {
		return nil, fmt.Errorf("transcoder.Client.GetAsset: %w", err)
	}

	return a, nil
}

// DeleteAsset removes an asset. An asset that is already gone counts as
// deleted.
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/video/v1/assets/"+assetID, nil); err != nil {
		var statusErr *ctxhttpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil
		}

		return fmt.Errorf("transcoder.Client.DeleteAsset: %w", err)
	}

	return nil
}

func (c *Client) ThumbnailURL(playbackID string) string {
	return c.c.ImageURL + "/" + playbackID + "/thumbnail.jpg"
}

func (c *Client) PreviewURL(playbackID string) string {
	return c.c.ImageURL + "/" + playbackID + "/animated.gif"
}

func (c *Client) TranscriptURL(playbackID, trackID string) string {
	return c.c.StreamURL + "/" + playbackID + "/text/" + trackID + ".txt"
}

const (
	assetIDPath         = "id"
	assetUploadIDPath   = "upload_id"
	assetStatusPath     = "status"
	assetPlaybackIDPath = "playback_ids.0.id"
	assetDurationPath   = "duration"
	assetTracksPath     = "tracks"
)

func str(j *gabs.Container, path string) string {
	if !j.ExistsP(path) {
		return ""
	}

	s, _ := j.Path(path).Data().(string)

	return s
}

// ParseAsset reads an asset object, as found under "data" in both API
// responses and webhook bodies.
func ParseAsset(j *gabs.Container) (*Asset, error) {
	if j == nil || j.Data() == nil {
		return nil, fmt.Errorf("transcoder.ParseAsset: no asset object")
	}

	a := Asset{
		ID:         str(j, assetIDPath),
		UploadID:   str(j, assetUploadIDPath),
		Status:     str(j, assetStatusPath),
		PlaybackID: str(j, assetPlaybackIDPath),
	}

	if j.ExistsP(assetDurationPath) {
		if f, ok := j.Path(assetDurationPath).Data().(float64); ok {
			ms := int(f * 1000)
			a.DurationMS = &ms
		}
	}

	for _, t := range j.Path(assetTracksPath).Children() {
		a.Tracks = append(a.Tracks, Track{
			ID:     str(t, "id"),
			Type:   str(t, "type"),
			Status: str(t, "status"),
		})
	}

	return &a, nil
}
