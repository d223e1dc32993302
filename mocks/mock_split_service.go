package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/export"
	"invoicesplit/internal/service"
	"invoicesplit/internal/settlement"
)

// MockSplitService is a mock implementation of service.SplitService.
type MockSplitService struct {
	mock.Mock
}

func (m *MockSplitService) Create(ctx context.Context, names domain.Names) (*domain.Session, error) {
	args := m.Called(ctx, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSplitService) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSplitService) List(ctx context.Context) ([]domain.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Session), args.Error(1)
}

func (m *MockSplitService) Submit(ctx context.Context, id uuid.UUID, input service.SubmitInput) (*domain.Session, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSplitService) Toggle(ctx context.Context, id uuid.UUID, p domain.Participant, index int) (*settlement.Summary, error) {
	args := m.Called(ctx, id, p, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Summary), args.Error(1)
}

func (m *MockSplitService) Rename(ctx context.Context, id uuid.UUID, names domain.Names) (*domain.Session, error) {
	args := m.Called(ctx, id, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSplitService) Summary(ctx context.Context, id uuid.UUID) (*settlement.Summary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Summary), args.Error(1)
}

func (m *MockSplitService) Export(ctx context.Context, id uuid.UUID, format export.Format) (*service.ExportOutput, error) {
	args := m.Called(ctx, id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportOutput), args.Error(1)
}

func (m *MockSplitService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
