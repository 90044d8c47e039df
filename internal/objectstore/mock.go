package objectstore

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// Mock is a Store for tests. URL is not mocked; it returns
// "https://files.test/" + key.
type Mock struct {
	mock.Mock
}

var _ Store = (*Mock)(nil)

func (m *Mock) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

func (m *Mock) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	args := m.Called(ctx, key)
	if v := args.Get(0); v != nil {
		return v.(*ObjectInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Mock) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *Mock) URL(key string) string {
	return "https://files.test/" + key
}
