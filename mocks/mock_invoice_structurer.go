package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoicesplit/internal/parser"
)

// MockInvoiceStructurer is a mock implementation of service.InvoiceStructurer.
type MockInvoiceStructurer struct {
	mock.Mock
}

func (m *MockInvoiceStructurer) Structure(ctx context.Context, text string) (*parser.Result, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parser.Result), args.Error(1)
}
