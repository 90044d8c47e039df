package transcoder

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Mock is an API for tests. The URL helpers are not mocked and return fixed
// "https://image.test" and "https://stream.test" URLs.
type Mock struct {
	mock.Mock
}

var _ API = (*Mock)(nil)

func (m *Mock) CreateUpload(ctx context.Context, passthrough string) (*Upload, error) {
	args := m.Called(ctx, passthrough)
	if v := args.Get(0); v != nil {
		return v.(*Upload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Mock) GetUpload(ctx context.Context, uploadID string) (*Upload, error) {
	args := m.Called(ctx, uploadID)
	if v := args.Get(0); v != nil {
		return v.(*Upload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Mock) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	args := m.Called(ctx, assetID)
	if v := args.Get(0); v != nil {
		return v.(*Asset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Mock) DeleteAsset(ctx context.Context, assetID string) error {
	return m.Called(ctx, assetID).Error(0)
}

func (m *Mock) ThumbnailURL(playbackID string) string {
	return "https://image.test/" + playbackID + "/thumbnail.jpg"
}

func (m *Mock) PreviewURL(playbackID string) string {
	return "https://image.test/" + playbackID + "/animated.gif"
}

func (m *Mock) TranscriptURL(playbackID, trackID string) string {
	return "https://stream.test/" + playbackID + "/text/" + trackID + ".txt"
}
