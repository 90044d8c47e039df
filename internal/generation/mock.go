package generation

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type Mock struct {
	mock.Mock
}

var _ Generator = (*Mock)(nil)

func (m *Mock) Generate(ctx context.Context, systemPrompt, input string) (string, error) {
	args := m.Called(ctx, systemPrompt, input)
	return args.String(0), args.Error(1)
}
