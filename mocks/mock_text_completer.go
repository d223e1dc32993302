package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoicesplit/internal/port"
)

// MockTextCompleter is a mock implementation of port.TextCompleter.
type MockTextCompleter struct {
	mock.Mock
}

func (m *MockTextCompleter) CheckCredential() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTextCompleter) Complete(ctx context.Context, input port.CompletionInput) (*port.CompletionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.CompletionOutput), args.Error(1)
}
