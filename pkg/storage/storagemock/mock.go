package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/wattwise/wattwise/pkg/storage"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetValue(ctx context.Context, sessionID, key string) (string, error) {
	args := m.Called(ctx, sessionID, key)
	return args.String(0), args.Error(1)
}

func (m *MockDatabase) SetValue(ctx context.Context, sessionID, key, value string) error {
	args := m.Called(ctx, sessionID, key, value)
	return args.Error(0)
}

func (m *MockDatabase) DeleteValue(ctx context.Context, sessionID, key string) error {
	args := m.Called(ctx, sessionID, key)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
